package tenantstore

import (
	"context"
	"time"
)

// AwaitConsistency polls check with exponential backoff until it reports
// true or attempts run out. It exists for test harnesses and
// administrative paths that must observe an eventually-consistent write;
// production call paths must not depend on it — the provider makes no
// read-after-write promise and neither does this layer.
func AwaitConsistency(ctx context.Context, cfg WaitConfig, check func(ctx context.Context) (bool, error)) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	backoff := cfg.InitialBackoff
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > cfg.BackoffLimit {
			backoff = cfg.BackoffLimit
		}
	}
	return WithContext(ErrProviderUnavailable, map[string]interface{}{
		"attempts": cfg.MaxAttempts,
		"reason":   "condition not observed before attempts ran out",
	})
}
