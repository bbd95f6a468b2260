package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"BulletinDispatch/internal/ports"
)

// acquire takes the named job lock. A nil locker means the caller
// guarantees single-job execution itself.
func acquire(ctx context.Context, locker ports.JobLocker, job string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	release, err := locker.Acquire(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", job, err)
	}
	return release, nil
}

// raise reports a persistence failure to operators. The alert itself must
// not be lost to a cancelled batch context.
func raise(ctx context.Context, alerter ports.Alerter, log *slog.Logger, message string) {
	if alerter == nil {
		return
	}
	if err := alerter.Alert(context.WithoutCancel(ctx), message); err != nil {
		log.Error("alert delivery failed", "error", err)
	}
}
