package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/atomic"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pcgeom/geometry"
	"go.viam.com/pcgeom/logging"
	"go.viam.com/pcgeom/neighbourhood"
	"go.viam.com/pcgeom/pointcloud"
	"go.viam.com/pcgeom/progress"
)

const loggerKey = "logger"

func setupLogger(c *cli.Context) error {
	var logger golog.Logger
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("pcgeom")
	} else {
		logger = logging.NewBlankLogger("pcgeom")
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[loggerKey] = logger
	return nil
}

func loggerFrom(c *cli.Context) golog.Logger {
	if logger, ok := c.App.Metadata[loggerKey].(golog.Logger); ok {
		return logger
	}
	return logging.NewBlankLogger("pcgeom")
}

// loadConfig reads the JSON attributes of the --config file, if any, on top of the defaults.
func loadConfig(c *cli.Context) (*geometry.Config, error) {
	conf := geometry.DefaultConfig()
	if path := c.String(flagConfig); path != "" {
		//nolint:gosec
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read config %q", path)
		}
		var attributes map[string]interface{}
		if err := json.Unmarshal(data, &attributes); err != nil {
			return nil, errors.Wrapf(err, "cannot parse config %q", path)
		}
		parsed, err := geometry.ConfigFromAttributes(attributes)
		if err != nil {
			return nil, err
		}
		conf = *parsed
	}
	if c.Bool(flagSequential) {
		conf.Parallel = false
	}
	return &conf, nil
}

// optionsFrom builds the algorithm options of a command. Progress is logged at debug level
// every tenth of the work.
func optionsFrom(c *cli.Context) (*geometry.Options, error) {
	conf, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := loggerFrom(c)
	lastDecile := atomic.NewInt64(-1)
	cb := progress.NewContextCallback(c.Context, func(fraction float64) {
		decile := int64(fraction * 10)
		if last := lastDecile.Load(); decile > last && lastDecile.CompareAndSwap(last, decile) {
			logger.Debugw("progress", "percent", decile*10)
		}
	})
	return &geometry.Options{Progress: cb, Logger: logger, Config: conf}, nil
}

func rngFrom(c *cli.Context) *rand.Rand {
	//nolint:gosec
	return rand.New(rand.NewSource(c.Int64(flagSeed)))
}

func pointCount(c *cli.Context, minimum int) (int, error) {
	n := c.Int(flagPoints)
	if n < minimum {
		return 0, errors.Errorf("--%s must be at least %d, got %d", flagPoints, minimum, n)
	}
	return n, nil
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("X:%.6f, Y:%.6f, Z:%.6f", v.X, v.Y, v.Z)
}

func render(c *cli.Context, t table.Writer) {
	fmt.Fprintln(c.App.Writer, t.Render())
}

// SphereAction detects a sphere centered on the origin among uniform outliers.
func SphereAction(c *cli.Context) error {
	n, err := pointCount(c, 4)
	if err != nil {
		return err
	}
	opts, err := optionsFrom(c)
	if err != nil {
		return err
	}
	ratio := c.Float64(flagOutliers)
	if ratio < 0 || ratio >= 1 {
		return errors.Errorf("--%s must be in [0, 1), got %v", flagOutliers, ratio)
	}
	radius := c.Float64(flagRadius)
	rng := rngFrom(c)

	outliers := int(float64(n) * ratio)
	points := pointcloud.SpherePoints(rng, r3.Vector{}, radius, n-outliers, c.Float64(flagNoise))
	span := r3.Vector{X: 2 * radius, Y: 2 * radius, Z: 2 * radius}
	points = append(points, pointcloud.UniformPoints(rng, span.Mul(-1), span, outliers)...)

	result, err := geometry.DetectSphereRobust(
		c.Context, pointcloud.New(points), ratio, c.Float64(flagConfidence), c.Int64(flagSeed), opts)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Center", "Radius", "RMS", "Inlier RMS", "Inliers"})
	t.AppendRow(table.Row{
		formatVector(result.Center),
		fmt.Sprintf("%.6f", result.Radius),
		fmt.Sprintf("%.6f", result.RMS),
		fmt.Sprintf("%.6f", result.InlierRMS),
		fmt.Sprintf("%d/%d", result.InlierCount, n),
	})
	render(c, t)
	return nil
}

// CircleAction fits a circle on points of a tilted circle.
func CircleAction(c *cli.Context) error {
	n, err := pointCount(c, 3)
	if err != nil {
		return err
	}
	opts, err := optionsFrom(c)
	if err != nil {
		return err
	}
	points := pointcloud.CirclePoints(
		rngFrom(c), r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: 1, Y: 1, Z: 1}, c.Float64(flagRadius), n, c.Float64(flagNoise))
	result, err := geometry.DetectCircle(c.Context, pointcloud.New(points), opts)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Center", "Normal", "Radius", "RMS"})
	t.AppendRow(table.Row{
		formatVector(result.Center),
		formatVector(result.Normal),
		fmt.Sprintf("%.6f", result.Radius),
		fmt.Sprintf("%.6f", result.RMS),
	})
	render(c, t)
	return nil
}

var densityNames = map[string]geometry.Density{
	"knn": geometry.DensityKNN,
	"2d":  geometry.Density2D,
	"3d":  geometry.Density3D,
}

// parseCharacteristic resolves the names of a characteristic and of its sub option.
func parseCharacteristic(name, option string) (geometry.Characteristic, int, error) {
	var characteristic geometry.Characteristic
	found := false
	for ch := geometry.Feature; ch <= geometry.MomentOrder1; ch++ {
		if ch.String() == name {
			characteristic, found = ch, true
			break
		}
	}
	if !found {
		return 0, 0, errors.Errorf("unknown characteristic %q", name)
	}

	switch characteristic {
	case geometry.Feature:
		for f := neighbourhood.EigenValuesSum; f.Valid(); f++ {
			if f.String() == option {
				return characteristic, int(f), nil
			}
		}
		return 0, 0, errors.Errorf("unknown feature %q", option)
	case geometry.Curvature:
		for t := neighbourhood.GaussianCurvature; t.Valid(); t++ {
			if t.String() == option {
				return characteristic, int(t), nil
			}
		}
		return 0, 0, errors.Errorf("unknown curvature type %q", option)
	case geometry.LocalDensity, geometry.ApproxLocalDensity:
		d, ok := densityNames[option]
		if !ok {
			names := lo.Keys(densityNames)
			sort.Strings(names)
			return 0, 0, errors.Errorf("unknown density %q, expected one of %v", option, names)
		}
		return characteristic, int(d), nil
	default:
		return characteristic, 0, nil
	}
}

// CharacteristicAction computes a characteristic on a noisy unit sphere and prints summary
// statistics of its valid values.
func CharacteristicAction(c *cli.Context) error {
	characteristic, subOption, err := parseCharacteristic(c.String(flagCharacteristic), c.String(flagOption))
	if err != nil {
		return err
	}
	n, err := pointCount(c, 1)
	if err != nil {
		return err
	}
	opts, err := optionsFrom(c)
	if err != nil {
		return err
	}
	cloud := pointcloud.New(pointcloud.SpherePoints(rngFrom(c), r3.Vector{}, 1, n, c.Float64(flagNoise)))
	out := pointcloud.NewScalarField(characteristic.String(), cloud.Size())
	if err := geometry.ComputeCharacteristic(
		c.Context, characteristic, subOption, cloud, c.Float64(flagKernelRadius), out, nil, opts); err != nil {
		return err
	}

	valid := stats.Float64Data(lo.Filter(out.Values(), func(v float64, _ int) bool {
		return !math.IsNaN(v)
	}))
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Characteristic", "Valid", "Min", "Max", "Mean", "Median", "Std Dev"})
	row := table.Row{characteristic.String(), fmt.Sprintf("%d/%d", len(valid), out.Size())}
	if len(valid) == 0 {
		row = append(row, "-", "-", "-", "-", "-")
	} else {
		for _, summary := range []func() (float64, error){
			valid.Min, valid.Max, valid.Mean, valid.Median, valid.StandardDeviation,
		} {
			v, err := summary()
			if err != nil {
				return err
			}
			row = append(row, fmt.Sprintf("%.6g", v))
		}
	}
	t.AppendRow(row)
	render(c, t)
	return nil
}

// DuplicatesAction flags the copies injected in a uniform cloud.
func DuplicatesAction(c *cli.Context) error {
	n, err := pointCount(c, 1)
	if err != nil {
		return err
	}
	copies := c.Int(flagDuplicates)
	if copies < 0 || copies > n {
		return errors.Errorf("--%s must be in [0, %d], got %d", flagDuplicates, n, copies)
	}
	opts, err := optionsFrom(c)
	if err != nil {
		return err
	}
	rng := rngFrom(c)
	points := pointcloud.UniformPoints(rng, r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1}, n)
	for _, i := range rng.Perm(n)[:copies] {
		points = append(points, points[i])
	}
	cloud := pointcloud.New(points)
	out := pointcloud.NewScalarField("duplicates", cloud.Size())
	if err := geometry.FlagDuplicatePoints(c.Context, cloud, c.Float64(flagMinDistance), out, opts); err != nil {
		return err
	}

	flagged := lo.Count(out.Values(), 1)
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Points", "Injected", "Flagged"})
	t.AppendRow(table.Row{cloud.Size(), copies, flagged})
	render(c, t)
	return nil
}

// ReductionsAction prints the gravity center and covariance matrix of a uniform cloud.
func ReductionsAction(c *cli.Context) error {
	n, err := pointCount(c, 1)
	if err != nil {
		return err
	}
	cloud := pointcloud.New(pointcloud.UniformPoints(
		rngFrom(c), r3.Vector{X: -1, Y: -2, Z: -3}, r3.Vector{X: 1, Y: 2, Z: 3}, n))
	center, err := geometry.ComputeGravityCenter(c.Context, cloud)
	if err != nil {
		return err
	}
	cov, err := geometry.ComputeCovarianceMatrix(c.Context, cloud, &center)
	if err != nil {
		return err
	}
	loggerFrom(c).Debugw("covariance", "matrix", fmt.Sprintf("%v", mat.Formatted(cov, mat.Squeeze())))

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Gravity Center", "Covariance"})
	for r := 0; r < 3; r++ {
		first := ""
		if r == 0 {
			first = formatVector(center)
		}
		t.AppendRow(table.Row{first, fmt.Sprintf("%.6f %.6f %.6f", cov.At(r, 0), cov.At(r, 1), cov.At(r, 2))})
	}
	render(c, t)
	return nil
}
