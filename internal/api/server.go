// Package api serves vault metrics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/vault-metrics/internal/aggregate"
	"github.com/yourorg/vault-metrics/internal/fallback"
	"github.com/yourorg/vault-metrics/internal/integrity"
	"github.com/yourorg/vault-metrics/internal/model"
)

//go:generate mockgen -source=server.go -destination=../mocks/api.go -package=mocks

const (
	internalError = "Internal server error"
	tooMany       = "Too many requests"
	version       = "1.0.0"
)

// Response headers carrying the signature of the vault list
const (
	HeaderSignature = "X-Signature"
	HeaderSigner    = "X-Signer"
)

// VaultSource provides the vault list.
type VaultSource interface {
	Vaults(ctx context.Context) ([]model.VaultMetrics, error)
}

// SourceFunc adapts a function to VaultSource.
type SourceFunc func(ctx context.Context) ([]model.VaultMetrics, error)

// Vaults calls f.
func (f SourceFunc) Vaults(ctx context.Context) ([]model.VaultMetrics, error) {
	return f(ctx)
}

// Options configures the server.
type Options struct {
	// ServingMode is reported by /status
	ServingMode    string
	FallbackMaxAge time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	// Signer signs the vault list when set
	Signer *integrity.Signer
	Clock  clockwork.Clock
}

// Server is the HTTP front end.
type Server struct {
	source  VaultSource
	guard   *fallback.Guard[[]model.VaultMetrics]
	opts    Options
	limiter *rate.Limiter
	clock   clockwork.Clock
	started time.Time
	engine  *gin.Engine
}

// New creates a Server answering from source.
func New(source VaultSource, opts Options) *Server {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Server{
		source:  source,
		opts:    opts,
		clock:   clock,
		started: clock.Now(),
		guard: fallback.New[[]model.VaultMetrics]("vaults", opts.FallbackMaxAge).
			WithClock(clock).
			WithFallbackCallback(func(_ error, age time.Duration) {
				staleAge.Set(age.Seconds())
			}),
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(requestLogger)
	r.Use(prometheusMetrics)

	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(s.rateLimit)
	v1.GET("/vaults", s.handleVaults)

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logrus.Info("Server stopped")
	return nil
}

func (s *Server) handleVaults(c *gin.Context) {
	vaults, err := s.guard.Call(c.Request.Context(), s.source.Vaults)
	if err != nil {
		logrus.WithError(err).Error("Failed to serve vaults")
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalError})
		return
	}
	if vaults == nil {
		vaults = []model.VaultMetrics{}
	}

	body, err := json.Marshal(vaults)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode vaults")
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalError})
		return
	}

	if s.opts.Signer != nil {
		sig, err := s.opts.Signer.Sign(body)
		if err != nil {
			logrus.WithError(err).Error("Failed to sign response")
			c.JSON(http.StatusInternalServerError, gin.H{"error": internalError})
			return
		}
		c.Header(HeaderSignature, sig.Signature)
		c.Header(HeaderSigner, sig.Signer)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"version":   version,
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"status":       "operational",
		"version":      version,
		"uptime":       s.clock.Since(s.started).String(),
		"serving_mode": s.opts.ServingMode,
		"fallback":     s.guard.Status(),
	}
	if last, ok := s.guard.Last(); ok {
		status["summary"] = aggregate.Summarize(last)
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) rateLimit(c *gin.Context) {
	if s.limiter != nil && !s.limiter.Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": tooMany})
		return
	}
	c.Next()
}
