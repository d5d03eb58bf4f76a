// Package cli implements the pcgeom command line, which runs the geometry algorithms on
// synthetic clouds and prints their results as tables.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	flagDebug      = "debug"
	flagConfig     = "config"
	flagSeed       = "seed"
	flagPoints     = "points"
	flagSequential = "sequential"

	// Command flags.
	flagRadius         = "radius"
	flagNoise          = "noise"
	flagOutliers       = "outliers"
	flagConfidence     = "confidence"
	flagCharacteristic = "characteristic"
	flagOption         = "option"
	flagKernelRadius   = "kernel-radius"
	flagMinDistance    = "min-distance"
	flagDuplicates     = "duplicates"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "pcgeom",
		Usage:           "run point cloud geometry algorithms on synthetic clouds",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load algorithm configuration from JSON `FILE`",
			},
			&cli.Int64Flag{
				Name:  flagSeed,
				Value: 1,
				Usage: "seed of the synthetic cloud generator and of the robust fits",
			},
			&cli.IntFlag{
				Name:  flagPoints,
				Value: 10000,
				Usage: "number of points of the synthetic cloud",
			},
			&cli.BoolFlag{
				Name:  flagSequential,
				Usage: "process cells sequentially",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:  "sphere",
				Usage: "detect a sphere in a noisy sphere cloud with outliers",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: flagRadius, Value: 1, Usage: "radius of the generated sphere"},
					&cli.Float64Flag{Name: flagNoise, Value: 0.01, Usage: "radial noise amplitude"},
					&cli.Float64Flag{Name: flagOutliers, Value: 0.2, Usage: "ratio of outliers in the cloud"},
					&cli.Float64Flag{Name: flagConfidence, Usage: "detection confidence, 0 for the configured one"},
				},
				Action: SphereAction,
			},
			{
				Name:  "circle",
				Usage: "fit a circle on a noisy circle cloud",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: flagRadius, Value: 1, Usage: "radius of the generated circle"},
					&cli.Float64Flag{Name: flagNoise, Value: 0.01, Usage: "radial noise amplitude"},
				},
				Action: CircleAction,
			},
			{
				Name:      "characteristic",
				Usage:     "compute a per point characteristic on a noisy sphere cloud",
				UsageText: "pcgeom characteristic --characteristic feature --option planarity",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagCharacteristic,
						Required: true,
						Usage: "one of feature, curvature, local_density, approx_local_density, " +
							"roughness, moment_order1",
					},
					&cli.StringFlag{
						Name:  flagOption,
						Usage: "feature name, curvature type (gaussian, mean, normal_change_rate) or density (knn, 2d, 3d)",
					},
					&cli.Float64Flag{Name: flagKernelRadius, Value: 0.1, Usage: "neighbourhood radius"},
					&cli.Float64Flag{Name: flagNoise, Value: 0.005, Usage: "radial noise amplitude"},
				},
				Action: CharacteristicAction,
			},
			{
				Name:  "duplicates",
				Usage: "flag the duplicate points of a uniform cloud with injected copies",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: flagMinDistance, Value: 1e-6, Usage: "distance under which points are duplicates"},
					&cli.IntFlag{Name: flagDuplicates, Value: 100, Usage: "number of injected copies"},
				},
				Action: DuplicatesAction,
			},
			{
				Name:   "reductions",
				Usage:  "compute the gravity center and covariance matrix of a uniform cloud",
				Action: ReductionsAction,
			},
		},
	}
}
