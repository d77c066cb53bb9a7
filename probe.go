package slapdtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// waitForReady polls the freshly spawned slapd with an authenticated
// no-op (ldapwhoami) until it answers. A probe failure is expected while
// the server is still binding its listener; what matters is whether the
// process is still alive. If it has already exited, the wait fails
// immediately with ErrExitedBeforeReady instead of retrying against a
// dead process. The loop sleeps PollInterval between attempts and is
// bounded by ctx, which Start derives from StartupTimeout.
func (s *Server) waitForReady(ctx context.Context) error {
	for {
		select {
		case err := <-s.exited:
			s.stopped()
			return &HarnessError{
				Op:  "Start",
				URI: s.uri,
				Err: fmt.Errorf("%w: %v", ErrExitedBeforeReady, err),
			}
		default:
		}

		s.logger.Debug("probing_slapd",
			slog.String("uri", s.uri))
		if err := s.client.Whoami(ctx); err == nil {
			return nil
		}

		select {
		case err := <-s.exited:
			s.stopped()
			return &HarnessError{
				Op:  "Start",
				URI: s.uri,
				Err: fmt.Errorf("%w: %v", ErrExitedBeforeReady, err),
			}
		case <-ctx.Done():
			// Only deadline expiry means the server was too slow; a
			// cancel is the caller's own decision and is reported as is.
			err := ctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", ErrStartupTimeout, err)
			}
			return &HarnessError{
				Op:  "Start",
				URI: s.uri,
				Err: err,
			}
		case <-time.After(s.config.PollInterval):
		}
	}
}
