package workflow

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/peacock/internal/store"
)

// ActivityErrorInterceptor is a worker interceptor that gives activity
// errors the activity name as their error type, so failures show up by name
// in the Temporal UI. Errors for instances that no longer exist are marked
// non-retryable: retrying cannot bring the instance back.
type ActivityErrorInterceptor struct {
	interceptor.WorkerInterceptorBase
}

func (e *ActivityErrorInterceptor) InterceptActivity(
	ctx context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &activityErrorInterceptor{next: next}
}

type activityErrorInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	next interceptor.ActivityInboundInterceptor
}

func (e *activityErrorInterceptor) Init(outbound interceptor.ActivityOutboundInterceptor) error {
	return e.next.Init(outbound)
}

func (e *activityErrorInterceptor) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (interface{}, error) {
	result, err := e.next.ExecuteActivity(ctx, in)
	if err == nil {
		return result, nil
	}
	return result, typeActivityError(activity.GetInfo(ctx).ActivityType.Name, err)
}

// typeActivityError wraps err in an application error typed with the
// activity name. Errors that already carry a type are returned unchanged.
func typeActivityError(activityName string, err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError(err.Error(), activityName, err)
	}
	return temporal.NewApplicationError(err.Error(), activityName, err)
}
