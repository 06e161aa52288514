package chain

import (
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/yourorg/vault-metrics/internal/fault"
)

// StackEntry is one value of a get-method result as the v4 API encodes it.
type StackEntry struct {
	Type  string       `json:"type"`
	Value string       `json:"value,omitempty"`
	Cell  string       `json:"cell,omitempty"`
	Items []StackEntry `json:"items,omitempty"`
}

// Stack is the result of a get-method, top of stack last.
type Stack []StackEntry

func (s Stack) entry(i int, types ...string) (StackEntry, error) {
	if i < 0 || i >= len(s) {
		return StackEntry{}, fmt.Errorf("%w: stack has %d entries, want index %d", fault.ErrInvalidPayload, len(s), i)
	}
	e := s[i]
	for _, t := range types {
		if e.Type == t {
			return e, nil
		}
	}
	return StackEntry{}, fmt.Errorf("%w: stack entry %d is %q, want %v", fault.ErrInvalidPayload, i, e.Type, types)
}

// Int reads an integer entry.
func (s Stack) Int(i int) (*big.Int, error) {
	e, err := s.entry(i, "int")
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(e.Value, 0)
	if !ok {
		return nil, fmt.Errorf("%w: stack entry %d: bad integer %q", fault.ErrInvalidPayload, i, e.Value)
	}
	return v, nil
}

// Cell reads a cell, slice or builder entry.
func (s Stack) Cell(i int) (*cell.Cell, error) {
	e, err := s.entry(i, "cell", "slice", "builder")
	if err != nil {
		return nil, err
	}
	boc, err := base64.StdEncoding.DecodeString(e.Cell)
	if err != nil {
		return nil, fmt.Errorf("%w: stack entry %d: %v", fault.ErrInvalidPayload, i, err)
	}
	c, err := cell.FromBOC(boc)
	if err != nil {
		return nil, fmt.Errorf("%w: stack entry %d: %v", fault.ErrInvalidPayload, i, err)
	}
	return c, nil
}

// Address reads a slice entry holding a message address.
func (s Stack) Address(i int) (*address.Address, error) {
	c, err := s.Cell(i)
	if err != nil {
		return nil, err
	}
	addr, err := c.BeginParse().LoadAddr()
	if err != nil {
		return nil, fmt.Errorf("%w: stack entry %d: %v", fault.ErrInvalidPayload, i, err)
	}
	return addr, nil
}

// String reads a cell entry holding snake-encoded text. A null entry reads as "".
func (s Stack) String(i int) (string, error) {
	if i >= 0 && i < len(s) && s[i].Type == "null" {
		return "", nil
	}
	c, err := s.Cell(i)
	if err != nil {
		return "", err
	}
	str, err := c.BeginParse().LoadStringSnake()
	if err != nil {
		return "", fmt.Errorf("%w: stack entry %d: %v", fault.ErrInvalidPayload, i, err)
	}
	return str, nil
}

// Arg is a get-method argument.
type Arg interface {
	store(b *cell.Builder) error
}

type intArg struct{ v *big.Int }

// IntArg passes an integer argument.
func IntArg(v *big.Int) Arg { return intArg{v: v} }

func (a intArg) store(b *cell.Builder) error {
	if a.v.IsInt64() {
		// vm_stk_tinyint
		if err := b.StoreUInt(0x01, 8); err != nil {
			return err
		}
		return b.StoreInt(a.v.Int64(), 64)
	}
	// vm_stk_int
	if err := b.StoreUInt(0x0100, 15); err != nil {
		return err
	}
	return b.StoreBigInt(a.v, 257)
}

type sliceArg struct{ c *cell.Cell }

// AddressArg passes a message address as a slice argument.
func AddressArg(addr *address.Address) Arg {
	return sliceArg{c: cell.BeginCell().MustStoreAddr(addr).EndCell()}
}

func (a sliceArg) store(b *cell.Builder) error {
	// vm_stk_slice: the whole referenced cell
	if err := b.StoreUInt(0x04, 8); err != nil {
		return err
	}
	if err := b.StoreUInt(0, 10); err != nil {
		return err
	}
	if err := b.StoreUInt(uint64(a.c.BitsSize()), 10); err != nil {
		return err
	}
	if err := b.StoreUInt(0, 3); err != nil {
		return err
	}
	if err := b.StoreUInt(uint64(a.c.RefsNum()), 3); err != nil {
		return err
	}
	return b.StoreRef(a.c)
}

// encodeArgs serializes args as a VM stack and renders the BOC for the URL path.
func encodeArgs(args []Arg) (string, error) {
	b := cell.BeginCell()
	if err := b.StoreUInt(uint64(len(args)), 24); err != nil {
		return "", err
	}
	if err := storeStackTail(b, args); err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b.EndCell().ToBOC()), nil
}

func storeStackTail(b *cell.Builder, args []Arg) error {
	if len(args) == 0 {
		return nil
	}
	tail := cell.BeginCell()
	if err := storeStackTail(tail, args[:len(args)-1]); err != nil {
		return err
	}
	if err := b.StoreRef(tail.EndCell()); err != nil {
		return err
	}
	return args[len(args)-1].store(b)
}
