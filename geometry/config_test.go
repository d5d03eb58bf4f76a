package geometry

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/pcgeom/octree"
)

func TestErrorCodes(t *testing.T) {
	test.That(t, CodeOf(nil), test.ShouldEqual, NoError)
	test.That(t, CodeOf(errors.New("other")), test.ShouldEqual, ProcessFailed)

	err := errors.Wrap(NotEnoughPoints, "need more")
	test.That(t, CodeOf(err), test.ShouldEqual, NotEnoughPoints)
	test.That(t, errors.Is(err, NotEnoughPoints), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldEqual, "need more: not enough points")

	wrapped := fmt.Errorf("outer: %w", err)
	test.That(t, CodeOf(wrapped), test.ShouldEqual, NotEnoughPoints)

	test.That(t, int(ProcessCancelledByUser), test.ShouldEqual, -7)
	test.That(t, ErrorCode(-42).Error(), test.ShouldEqual, "unknown error code -42")

	for sentinel, code := range map[error]ErrorCode{
		octree.ErrCancelled:       ProcessCancelledByUser,
		octree.ErrNotEnoughPoints: NotEnoughPoints,
		octree.ErrInvalidInput:    InvalidInput,
		octree.ErrTooManyPoints:   NotEnoughMemory,
		errors.New("boom"):        ProcessFailed,
	} {
		test.That(t, CodeOf(fromOctreeError(sentinel)), test.ShouldEqual, code)
	}
	test.That(t, fromOctreeError(nil), test.ShouldBeNil)
	test.That(t, fromOctreeError(err), test.ShouldEqual, err)
}

func TestConfigValidate(t *testing.T) {
	conf := DefaultConfig()
	test.That(t, conf.Validate("path"), test.ShouldBeNil)

	conf.MaxThreads = -1
	conf.SphereMaxIterations = 0
	conf.Confidence = 1
	err := conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "max_threads")
	test.That(t, err.Error(), test.ShouldContainSubstring, "sphere_max_iterations")
	test.That(t, err.Error(), test.ShouldContainSubstring, "confidence")

	opts := &Options{Config: &conf}
	test.That(t, CodeOf(opts.validate()), test.ShouldEqual, InvalidInput)
	test.That(t, (*Options)(nil).validate(), test.ShouldBeNil)
	test.That(t, (*Options)(nil).config(), test.ShouldResemble, DefaultConfig())
}

func TestConfigFromAttributes(t *testing.T) {
	conf, err := ConfigFromAttributes(map[string]interface{}{
		"parallel":               false,
		"max_threads":            3,
		"sphere_evaluation_size": 50,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Parallel, test.ShouldBeFalse)
	test.That(t, conf.MaxThreads, test.ShouldEqual, 3)
	test.That(t, conf.SphereEvaluationSize, test.ShouldEqual, 50)
	test.That(t, conf.Confidence, test.ShouldEqual, DefaultConfig().Confidence)

	_, err = ConfigFromAttributes(map[string]interface{}{"confidence": 2.})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ConfigFromAttributes(map[string]interface{}{"max_threads": "many"})
	test.That(t, err, test.ShouldNotBeNil)
}
