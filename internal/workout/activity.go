package workout

import (
	"context"
	"log/slog"

	"github.com/myrjola/fitcoach/internal/errors"
)

// MarkActive records the activity timestamp in the background. Failures are logged and never reach the caller,
// and the write outlives the request that triggered it.
func (s *Service) MarkActive(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.background.Go(func() {
		defer func() {
			if err := errors.DecoratePanic(recover()); err != nil {
				s.logger.LogAttrs(ctx, slog.LevelError, "activity update panicked", errors.SlogError(err))
			}
		}()
		if err := s.repo.profiles.TouchActive(ctx, s.now()); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to record activity", errors.SlogError(err))
		}
	})
}
