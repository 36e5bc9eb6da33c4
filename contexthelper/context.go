package contexthelper

import "context"

// CheckCancellation reports whether ctx has already been cancelled,
// returning the context's error if so and nil otherwise.
func CheckCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
