package inference

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds, matched with errors.Is. Only ErrShapeMismatch is caller-correctable;
// the others mean no scoring is possible in this process.
var (
	ErrShapeMismatch        = errors.New("window buffer shape mismatch")
	ErrArtifactStaging      = errors.New("failed to stage model artifact")
	ErrModelDeserialization = errors.New("failed to load model")
	ErrForwardPass          = errors.New("forward pass failed")
)

// ShapeMismatchError reports a window buffer whose length doesn't match its count.
type ShapeMismatchError struct {
	Count int
	Got   int
	Want  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%v: got %d values for %d windows, expected %d", ErrShapeMismatch, e.Got, e.Count, e.Want)
}

// Is makes errors.Is(err, ErrShapeMismatch) hold.
func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// IsFatal reports whether err belongs to one of the unrecoverable kinds.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrShapeMismatch)
}
