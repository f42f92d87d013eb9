package glmix

import (
	"errors"
	"fmt"

	"github.com/hupe1980/glmix/dataset"
	"github.com/hupe1980/glmix/optimize"
)

var (
	// ErrNilModel is returned when a nil model is passed to an
	// operation that requires one.
	ErrNilModel = errors.New("model must not be nil")
)

// ErrUnsupportedModelType indicates a model of the wrong concrete kind
// was passed to a coordinate operation. This is fatal: no coercion or
// default handling is attempted.
type ErrUnsupportedModelType struct {
	Actual   string
	Expected string
}

func (e *ErrUnsupportedModelType) Error() string {
	return fmt.Sprintf("unsupported model type: got %s, want %s", e.Actual, e.Expected)
}

// ErrMissingEntityModel indicates a passive point whose entity has no
// entry in the gathered model map. This signals inconsistent
// dataset/model coordination upstream and is fatal; the point is never
// silently scored as zero.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrMissingEntityModel struct {
	EntityID any
	DatumID  uint64
	cause    error
}

func (e *ErrMissingEntityModel) Error() string {
	return fmt.Sprintf("no model for passive entity %v (datum %d)", e.EntityID, e.DatumID)
}

func (e *ErrMissingEntityModel) Unwrap() error { return e.cause }

// translateError normalizes internal errors at the public boundary.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, dataset.ErrNotCoPartitioned) {
		return fmt.Errorf("invalid dataset: %w", err)
	}
	if errors.Is(err, optimize.ErrShiftWithoutIntercept) {
		return fmt.Errorf("invalid normalization: %w", err)
	}

	return err
}
