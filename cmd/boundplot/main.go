package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cactusdynamics/boundplot"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

type options struct {
	plotData   []string
	labels     []string
	meshFile   string
	diracPoint []string

	configPath string
	host       string
	port       uint16
	noBrowser  bool
	logLevel   string
	snapshot   string
}

// Flags that take every following token up to the next --flag, the way
// argparse's nargs='+' does.
var multiValueFlags = map[string]bool{
	"--plot-data":   true,
	"--labels":      true,
	"--dirac-point": true,
}

// expandMultiValueFlags rewrites "--plot-data a b" into
// "--plot-data=a --plot-data=b" so the flags can be parsed as string arrays.
func expandMultiValueFlags(args []string) []string {
	out := make([]string, 0, len(args))
	current := ""
	for _, arg := range args {
		switch {
		case arg == "--":
			current = ""
			out = append(out, arg)
		case strings.HasPrefix(arg, "--"):
			name, _, _ := strings.Cut(arg, "=")
			if multiValueFlags[arg] {
				current = arg
				continue
			}

			current = ""
			if multiValueFlags[name] {
				// --flag=value keeps following tokens too.
				current = name
			}
			out = append(out, arg)
		case current != "":
			out = append(out, current+"="+arg)
		default:
			out = append(out, arg)
		}
	}
	return out
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "boundplot --plot-data <file>... [--labels <label>...] [--mesh-file <path>] [--dirac-point <x> <y>]",
		Short: "Interactive convergence plot with adjustable error bounds",
		Long: `boundplot overlays two error-bound curves with live-adjustable
coefficients on top of convergence data loaded from files, and optionally
draws the mesh with the Dirac point highlighted.

The figure is served to a browser window. Use --snapshot to render it to
a PNG, SVG or PDF file instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.plotData, "plot-data", nil, "series files, whitespace delimited x y columns (required)")
	flags.StringArrayVar(&opts.labels, "labels", nil, "legend label per series file")
	flags.StringVar(&opts.meshFile, "mesh-file", "", "mesh description file")
	flags.StringArrayVar(&opts.diracPoint, "dirac-point", nil, "x and y of the Dirac point, floats or fractions like 1/3")
	flags.StringVar(&opts.configPath, "config", "", "YAML settings file")
	flags.StringVar(&opts.host, "host", "", "listen host (default from settings, 127.0.0.1)")
	flags.Uint16Var(&opts.port, "port", 0, "listen port (default from settings, 5275; 0 picks a free port)")
	flags.BoolVar(&opts.noBrowser, "no-browser", false, "do not open a browser window")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.snapshot, "snapshot", "", "render the initial figure to this .png/.svg/.pdf file and exit")
	cmd.MarkFlagRequired("plot-data")

	return cmd
}

func loadSettings(cmd *cobra.Command, opts *options) (boundplot.Settings, error) {
	settings := boundplot.DefaultSettings()
	if opts.configPath != "" {
		var err error
		settings, err = boundplot.LoadSettings(opts.configPath)
		if err != nil {
			return boundplot.Settings{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		settings.Host = opts.host
	}
	if flags.Changed("port") {
		settings.Port = opts.port
	}
	if opts.noBrowser {
		settings.OpenBrowser = false
	}
	if flags.Changed("log-level") {
		settings.LogLevel = opts.logLevel
	}

	return settings, settings.Validate()
}

// loadFigure checks the arguments and reads every input. Nothing is served
// unless all of it succeeds.
func loadFigure(ctx context.Context, opts *options, settings boundplot.Settings) (*boundplot.Figure, error) {
	var dirac *boundplot.DiracPoint
	if len(opts.diracPoint) != 0 {
		var err error
		dirac, err = boundplot.ParseDiracPoint(opts.diracPoint)
		if err != nil {
			return nil, err
		}
	}

	series, err := boundplot.LoadAllSeries(ctx, opts.plotData, opts.labels)
	if err != nil {
		return nil, err
	}

	var mesh *boundplot.Mesh
	if opts.meshFile != "" {
		mesh, err = boundplot.LoadMesh(opts.meshFile)
		if err != nil {
			return nil, err
		}
	}

	if dirac != nil && mesh == nil {
		logrus.Warn("--dirac-point is only drawn on the mesh, ignoring it since there is no --mesh-file")
		dirac = nil
	}

	return boundplot.NewFigure(settings, series, mesh, dirac), nil
}

func writeSnapshot(figure *boundplot.Figure, path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !slices.Contains(boundplot.SnapshotFormats, format) {
		return fmt.Errorf("snapshot %s: unsupported extension, expected one of %v", path, boundplot.SnapshotFormats)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	err = boundplot.RenderFigure(f, figure, format, boundplot.DefaultSnapshotWidth, boundplot.DefaultSnapshotHeight)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}

	logrus.WithField("path", path).Info("wrote snapshot")
	return nil
}

func run(cmd *cobra.Command, opts *options) error {
	settings, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}

	level, _ := logrus.ParseLevel(settings.LogLevel)
	logrus.SetLevel(level)

	ctx := cmd.Context()

	figure, err := loadFigure(ctx, opts, settings)
	if err != nil {
		return err
	}

	if opts.snapshot != "" {
		return writeSnapshot(figure, opts.snapshot)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eventLoop := boundplot.NewEventLoop(boundplot.NewControlPanel(figure))
	eventLoop.Start(ctx)

	httpServer := boundplot.NewHttpServer(eventLoop, settings.Host, settings.Port, settings.OpenBrowser)
	err = httpServer.Run(ctx)

	cancel()
	eventLoop.Wait()
	return err
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(expandMultiValueFlags(os.Args[1:]))

	if err := cmd.ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("boundplot failed")
		stop()
		os.Exit(1)
	}
}
