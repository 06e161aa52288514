package chain

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// ParseAddress accepts both the raw ("0:<hex>") and the user-friendly form.
func ParseAddress(s string) (*address.Address, error) {
	if wc, data, ok := strings.Cut(s, ":"); ok {
		workchain, err := strconv.ParseInt(wc, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid workchain in %q: %w", s, err)
		}
		hash, err := hex.DecodeString(data)
		if err != nil || len(hash) != 32 {
			return nil, fmt.Errorf("invalid raw address %q", s)
		}
		return address.NewAddress(0, byte(int8(workchain)), hash), nil
	}

	addr, err := address.ParseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}

// Raw renders addr as "<workchain>:<hex hash>".
func Raw(addr *address.Address) string {
	return fmt.Sprintf("%d:%s", addr.Workchain(), hex.EncodeToString(addr.Data()))
}

// Friendly renders addr in the bounceable url-safe form.
func Friendly(addr *address.Address) string {
	return addr.String()
}

// ToRaw converts an address string in either form to the raw form.
func ToRaw(s string) (string, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return Raw(addr), nil
}

// ToFriendly converts an address string in either form to the user-friendly form.
func ToFriendly(s string) (string, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return Friendly(addr), nil
}

// SameAddress reports whether a and b name the same account, whatever their form.
func SameAddress(a, b string) bool {
	ra, err := ToRaw(a)
	if err != nil {
		return false
	}
	rb, err := ToRaw(b)
	if err != nil {
		return false
	}
	return ra == rb
}
