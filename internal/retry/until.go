// Package retry holds the polling and status-forcing helpers shared by the
// provisioning handlers.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Default polling parameters for waiting on a child subprocess.
const (
	DefaultTimeout  = 10 * time.Minute
	DefaultInterval = 3 * time.Second
)

// Policy bounds a polling loop.
type Policy struct {
	Timeout  time.Duration
	Interval time.Duration
}

// DefaultPolicy returns the policy used when waiting for children.
func DefaultPolicy() Policy {
	return Policy{Timeout: DefaultTimeout, Interval: DefaultInterval}
}

var errNotYet = errors.New("condition not met")

// Until evaluates check until it reports true, the timeout elapses, or check
// returns an error. It returns true once check succeeded and false on
// timeout. Errors from check stop the loop and are returned unchanged. The
// final sleep is clamped to the remaining timeout, so Until never waits
// noticeably longer than p.Timeout.
func Until(ctx context.Context, p Policy, check func(ctx context.Context) (bool, error)) (bool, error) {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}

	backoff := goretry.WithMaxDuration(p.Timeout, goretry.NewConstant(p.Interval))

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return goretry.RetryableError(errNotYet)
		}
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNotYet):
		return false, nil
	default:
		return false, err
	}
}
