package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corey/autolink/internal/app"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	rootFlag    string
	debugFlag   bool
	contentFlag string
	outFlag     string
	workersFlag int
	noCacheFlag bool
	metricsFlag string
)

var rootCmd = &cobra.Command{
	Use:           "autolink",
	Short:         "autolink — automatic entity links for Markdown wikis",
	Long:          "Turns bare mentions of page titles and aliases into links, longest match first, outside code, links and components.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// projectRoot returns the project root (--root, or cwd by default) as an absolute path.
func projectRoot() string {
	dir := rootFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return abs
}

// loadConfig reads autolink.yaml and applies command-line overrides.
func loadConfig(cmd *cobra.Command, root string) (*app.Config, error) {
	cfg, err := app.LoadConfig(root)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("content") {
		cfg.ContentDir = absFrom(root, contentFlag)
	}
	if flags.Changed("out") {
		cfg.OutDir = absFrom(root, outFlag)
	}
	if flags.Changed("workers") && workersFlag > 0 {
		cfg.Workers = workersFlag
	}
	if debugFlag {
		cfg.Debug = true
	}
	return cfg, nil
}

// openApp loads configuration and wires the app. Lock timeouts on the build
// cache are turned into actionable guidance.
func openApp(cmd *cobra.Command, opts app.Options) (*app.App, error) {
	root := projectRoot()
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Debug, nil)

	opts.Version = version
	if noCacheFlag {
		opts.NoCache = true
	}
	if metricsFlag != "" {
		opts.MetricsFile = absFrom(root, metricsFlag)
	}

	a, err := app.New(root, cfg, opts)
	if err != nil {
		if isDBLockError(err) {
			return nil, fmt.Errorf("cannot open build cache: %s", diagnoseDBLock(root))
		}
		return nil, err
	}
	return a, nil
}

func absFrom(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// addBuildFlags registers the flags shared by build, check and watch.
func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&contentFlag, "content", "", "Markdown content directory (overrides content_dir)")
	cmd.Flags().StringVar(&outFlag, "out", "", "output directory; equal to --content rewrites in place (overrides out_dir)")
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "parallel rewrite workers (overrides workers)")
	cmd.Flags().BoolVar(&noCacheFlag, "no-cache", false, "ignore and do not update the build cache")
	cmd.Flags().StringVar(&metricsFlag, "metrics-file", "", "write Prometheus textfile metrics to this path")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s✗%s %v\n", colorRed, colorReset, err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "project root containing autolink.yaml (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "debug logging")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanCmd)
}
