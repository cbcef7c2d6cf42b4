package capture

import (
	"context"
	"errors"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
	"github.com/GriffinCanCode/trapcam/internal/resilience"
)

// Guard wraps action in a circuit breaker so a broken capture tool stops being
// invoked for every motion event. A nil breaker returns action unchanged.
func Guard(action Action, b *resilience.Breaker) Action {
	if b == nil {
		return action
	}
	return ActionFunc(func(ctx context.Context) error {
		err := b.Execute(ctx, action.Run)
		if errors.Is(err, resilience.ErrOpen) {
			return apperrors.Wrap(err, apperrors.ActionFailed, "capture suspended")
		}
		return err
	})
}
