package cli

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/balebuild/bale/pkg/build"
	"github.com/balebuild/bale/pkg/bundler"
	"github.com/balebuild/bale/pkg/config"
	"github.com/balebuild/bale/pkg/events"
	"github.com/balebuild/bale/pkg/project"
	"github.com/balebuild/bale/pkg/subcmd"
	"github.com/balebuild/bale/pkg/target"
	"github.com/balebuild/bale/pkg/transform"
	"github.com/balebuild/bale/pkg/watch"
)

const cmdExamples = `  # Bundle one entry to stdout:
  bale index.js > bundle.js

  # Bundle several entries into a directory:
  bale app.js admin.js out/

  # Read from stdin:
  cat index.css | bale --type css

  # Apply transform plugins:
  bale --use markdown,uglify index.js

  # Rebuild on changes:
  bale --watch app.js out/

  # Delegate to an installed subcommand (runs bale-serve):
  bale serve --port 8080`

type RunArgs struct {
	*RootArgs

	ConfigPath  string
	Global      string
	Output      string
	Root        string
	Type        string
	Use         string
	Copy        bool
	Development bool
	Quiet       bool
	Verbose     bool
	Watch       bool
}

func NewRunArgs(rootArgs *RootArgs) *RunArgs {
	return &RunArgs{
		RootArgs: rootArgs,
	}
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ra.ConfigPath, "config", "", "Path to the bale configuration file")
	cmd.Flags().BoolVar(&ra.Copy, "copy", false, "Copy files into output rather than symlinking")
	cmd.Flags().BoolVarP(&ra.Development, "development", "d", false, "Include development-only dependencies")
	cmd.Flags().StringVarP(&ra.Global, "global", "g", "", "Expose the built entry as the named global export")
	cmd.Flags().StringVarP(&ra.Output, "output", "o", "", "Output directory")
	cmd.Flags().BoolVarP(&ra.Quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.Flags().StringVarP(&ra.Root, "root", "r", "", "Project root, bypassing marker discovery")
	cmd.Flags().StringVarP(&ra.Type, "type", "t", "", "Content type for stdin-sourced builds")
	cmd.Flags().StringVarP(&ra.Use, "use", "u", "", "Comma-separated transform plugin names")
	cmd.Flags().BoolVarP(&ra.Verbose, "verbose", "v", false, "Emit resolution-phase events")
	cmd.Flags().BoolVarP(&ra.Watch, "watch", "w", false, "Rebuild on filesystem changes")

	err := cmd.MarkFlagDirname("output")
	if err != nil {
		panic(err)
	}
}

func run(cmd *cobra.Command, ra *RunArgs, argv []string) error {
	ctx := cmd.Context()

	cfg := loadConfig(ra.ConfigPath)

	reporter := events.NewReporter(cmd.ErrOrStderr(),
		events.WithQuiet(ra.Quiet || cfg.Quiet),
		events.WithVerbose(ra.Verbose || cfg.Verbose),
	)

	// A first positional that does not resolve as a file delegates the whole
	// invocation to an external subcommand binary.
	if len(argv) > 0 && isSubcommand(argv[0]) {
		return dispatch(cmd, reporter, cfg, argv)
	}

	root, err := project.FindRoot(ra.Root)
	if err != nil {
		return err
	}

	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))

	t, err := target.Resolve(argv, ra.Output, stdinTTY)
	if err != nil {
		return err
	}

	if t.Mode == target.ModeHelp {
		return cmd.Help()
	}

	slog.Debug("resolved build target",
		slog.String("mode", t.Mode.String()),
		slog.String("root", root),
		slog.String("outdir", t.OutDir),
		slog.Int("entries", len(t.Entries)),
	)

	transforms := transform.NewRegistry(root, reporter).Load(ra.Use)

	opts := []build.Opt{
		build.WithDevelopment(ra.Development),
		build.WithCopy(ra.Copy),
		build.WithGlobal(ra.Global),
		build.WithType(ra.Type),
		build.WithTransforms(transforms...),
		build.WithStdout(cmd.OutOrStdout()),
	}

	if ra.Watch {
		var watchOpts []watch.ControllerOpt
		if t.OutDir != "" {
			out, err := filepath.Abs(t.OutDir)
			if err == nil {
				watchOpts = append(watchOpts, watch.WithIgnore(out))
			}
		}

		opts = append(opts, build.WithWatch(watch.NewController(watchOpts...)))
	}

	orch := build.New(bundler.NewExecEngine(cfg.Engine), reporter, root, opts...)

	switch t.Mode {
	case target.ModeStdin:
		err = orch.RunStdin(ctx, cmd.InOrStdin())
	case target.ModeSingleStdout:
		err = orch.RunSingle(ctx, t.Entries[0])
	case target.ModeBatch:
		err = orch.RunBatch(ctx, t.Entries, t.OutDir)
	}

	if err != nil {
		var buildErr *bundler.BuildError
		if errors.As(err, &buildErr) {
			// Already reported through the error category; exit code only.
			return &ExitError{Code: 1}
		}

		return err
	}

	// Non-fatal reported errors (e.g. a plugin that failed to load) still
	// fail the invocation once the build itself has settled.
	if reporter.ErrorCount() > 0 {
		return &ExitError{Code: 1}
	}

	return nil
}

func loadConfig(path string) *config.Config {
	if path == "" {
		path = config.GetPath()
	}

	err := config.WriteDefault(path)
	if err != nil {
		slog.Warn("write default config", slog.Any("err", err))
	}

	cfg, err := config.Load(path)
	if err != nil {
		slog.Debug("could not read config, using defaults", slog.Any("err", err))
	}

	return cfg
}

// isSubcommand reports whether the first positional argument should be
// dispatched rather than built: it neither looks like a file nor exists on
// disk.
func isSubcommand(arg string) bool {
	if target.LooksLikeFile(arg) {
		return false
	}

	_, err := os.Stat(arg)

	return err != nil
}

func dispatch(cmd *cobra.Command, reporter *events.Reporter, cfg *config.Config, argv []string) error {
	var opts []subcmd.DispatcherOpt
	if cfg.Shim != "" {
		opts = append(opts, subcmd.WithShim(cfg.Shim))
	}

	code, err := subcmd.NewDispatcher(opts...).Run(cmd.Context(), argv[0], argv[1:])
	if err != nil {
		// Already reported through the error category; exit code only.
		reporter.Event(events.Error, err)

		return &ExitError{Code: 1}
	}

	if code != 0 {
		return &ExitError{Code: code}
	}

	return nil
}
