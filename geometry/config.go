package geometry

import (
	"fmt"

	"github.com/edaniels/golog"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/pcgeom/logging"
	"go.viam.com/pcgeom/octree"
	"go.viam.com/pcgeom/progress"
)

// Config holds the tuning knobs shared by the algorithms.
type Config struct {
	// Parallel processes octree cells concurrently.
	Parallel bool `json:"parallel"`
	// MaxThreads bounds the number of concurrent cells; 0 picks a default from the
	// number of CPUs.
	MaxThreads int `json:"max_threads"`
	// SphereMaxIterations caps the number of samples drawn by DetectSphereRobust.
	SphereMaxIterations int `json:"sphere_max_iterations"`
	// SphereEvaluationSize is the number of points a sphere candidate is scored on.
	SphereEvaluationSize int `json:"sphere_evaluation_size"`
	// MinRelativeCenterShift stops the sphere refinement once the center moves by less
	// than this fraction of the radius.
	MinRelativeCenterShift float64 `json:"min_relative_center_shift"`
	// Confidence is the default probability that DetectSphereRobust draws at least one
	// sample free of outliers.
	Confidence float64 `json:"confidence"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Parallel:               true,
		SphereMaxIterations:    10000,
		SphereEvaluationSize:   1000,
		MinRelativeCenterShift: 1e-3,
		Confidence:             0.99,
	}
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	var err error
	if config.MaxThreads < 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationError(path,
			errors.Errorf("max_threads must be non negative, got %d", config.MaxThreads)))
	}
	if config.SphereMaxIterations <= 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationFieldRequiredError(path, "sphere_max_iterations"))
	}
	if config.SphereEvaluationSize < 4 {
		err = multierr.Combine(err, goutils.NewConfigValidationError(path,
			errors.Errorf("sphere_evaluation_size must be at least 4, got %d", config.SphereEvaluationSize)))
	}
	if config.MinRelativeCenterShift <= 0 {
		err = multierr.Combine(err, goutils.NewConfigValidationFieldRequiredError(path, "min_relative_center_shift"))
	}
	if config.Confidence <= 0 || config.Confidence >= 1 {
		err = multierr.Combine(err, goutils.NewConfigValidationError(path,
			errors.Errorf("confidence must be in (0, 1), got %v", config.Confidence)))
	}
	return err
}

// ConfigFromAttributes decodes an attribute map, such as a parsed JSON object, on top of
// the defaults and validates the result.
func ConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	conf := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &conf})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	if err := conf.Validate("config"); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (config Config) traversal() octree.TraversalConfig {
	return octree.TraversalConfig{Parallel: config.Parallel, MaxThreads: config.MaxThreads}
}

// Options are the optional collaborators of an algorithm. The zero value is usable.
type Options struct {
	// Octree is a prebuilt index of the processed cloud, reused across calls. It is built
	// on demand when nil.
	Octree *octree.Octree
	// Progress receives progress notifications and is polled for cancellation.
	Progress progress.Callback
	// Logger defaults to the global logger.
	Logger golog.Logger
	// Config defaults to DefaultConfig.
	Config *Config
}

func (opts *Options) logger() golog.Logger {
	if opts == nil {
		return logging.Global()
	}
	return logging.OrGlobal(opts.Logger)
}

func (opts *Options) config() Config {
	if opts == nil || opts.Config == nil {
		return DefaultConfig()
	}
	return *opts.Config
}

func (opts *Options) progress() progress.Callback {
	if opts == nil {
		return progress.OrNoop(nil)
	}
	return progress.OrNoop(opts.Progress)
}

func (opts *Options) validate() error {
	if opts == nil || opts.Config == nil {
		return nil
	}
	if err := opts.Config.Validate("options.config"); err != nil {
		return errors.Wrap(InvalidInput, err.Error())
	}
	return nil
}

func checkCloudSize(size, minimum int, what string) error {
	if size < minimum {
		return errors.Wrap(NotEnoughPoints, fmt.Sprintf("%s needs at least %d points, got %d", what, minimum, size))
	}
	return nil
}
