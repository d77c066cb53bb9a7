package slapdtest

import (
	"context"
	"log/slog"
	"time"
)

// Option represents a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets a custom structured logger for lifecycle and tool
// invocation logging. If not provided, slog.Default() is used.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	srv, err := slapdtest.NewServer(cfg, slapdtest.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
			s.client.logger = logger
		}
	}
}

// WithStartedHook replaces the default seeding performed once the server
// is ready. The default hook adds the organization object at the suffix
// and the administrative role at the root DN; pass a hook that returns
// nil to start with an entirely empty directory.
//
// Example:
//
//	srv, err := slapdtest.NewServer(cfg, slapdtest.WithStartedHook(
//		func(ctx context.Context, s *slapdtest.Server) error {
//			return s.Add(ctx, customSeedLDIF)
//		}))
func WithStartedHook(hook func(context.Context, *Server) error) Option {
	return func(s *Server) {
		s.startedHook = hook
	}
}

// WithStartupTimeout bounds how long Start waits for the server to
// answer authenticated requests before giving up with ErrStartupTimeout.
func WithStartupTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.config.StartupTimeout = d
		}
	}
}

// WithPollInterval sets the pause between readiness probe attempts.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.config.PollInterval = d
		}
	}
}
