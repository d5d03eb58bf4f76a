package geometry

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/pcgeom/octree"
)

// ErrorCode is the outcome of an algorithm. Every non nil error returned by this package
// wraps exactly one ErrorCode.
type ErrorCode int

// The possible outcomes.
const (
	NoError                 ErrorCode = 0
	InvalidInput            ErrorCode = -1
	NotEnoughPoints         ErrorCode = -2
	OctreeComputationFailed ErrorCode = -3
	ProcessFailed           ErrorCode = -4
	UnhandledCharacteristic ErrorCode = -5
	NotEnoughMemory         ErrorCode = -6
	ProcessCancelledByUser  ErrorCode = -7
)

func (c ErrorCode) Error() string {
	switch c {
	case NoError:
		return "no error"
	case InvalidInput:
		return "invalid input"
	case NotEnoughPoints:
		return "not enough points"
	case OctreeComputationFailed:
		return "octree computation failed"
	case ProcessFailed:
		return "process failed"
	case UnhandledCharacteristic:
		return "unhandled characteristic"
	case NotEnoughMemory:
		return "not enough memory"
	case ProcessCancelledByUser:
		return "process cancelled by user"
	default:
		return fmt.Sprintf("unknown error code %d", int(c))
	}
}

// CodeOf returns the ErrorCode wrapped by err. It is NoError for nil and ProcessFailed for
// errors that do not come from this package.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return NoError
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return ProcessFailed
}

// fromOctreeError maps the errors of the index and of the traversal engine onto codes.
// Errors returned by cell functions already wrap a code and are kept.
func fromOctreeError(err error) error {
	if err == nil {
		return nil
	}
	var code ErrorCode
	switch {
	case errors.As(err, &code):
		return err
	case errors.Is(err, octree.ErrCancelled):
		return errors.Wrap(ProcessCancelledByUser, err.Error())
	case errors.Is(err, octree.ErrNotEnoughPoints):
		return errors.Wrap(NotEnoughPoints, err.Error())
	case errors.Is(err, octree.ErrInvalidInput):
		return errors.Wrap(InvalidInput, err.Error())
	case errors.Is(err, octree.ErrTooManyPoints):
		return errors.Wrap(NotEnoughMemory, err.Error())
	default:
		return errors.Wrap(ProcessFailed, err.Error())
	}
}
