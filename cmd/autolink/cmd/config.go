package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/autolink/internal/app"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  "Prints autolink.yaml with defaults applied, project paths and watch status.",
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	paths := app.NewPaths(root)

	watchStatus := fmt.Sprintf("%s✗ not running%s", colorYellow, colorReset)
	if pid := paths.ReadPID(); pid > 0 {
		watchStatus = fmt.Sprintf("%s✓ pid %d%s", colorGreen, pid, colorReset)
	}
	source := "markdown"
	if cfg.MySQLDSN != "" {
		source = "mysql"
	}

	fmt.Printf("%s⚡ autolink config%s\n", colorBold, colorReset)
	fmt.Printf("  Root:     %s\n", root)
	fmt.Printf("  File:     %s\n", app.ConfigPath(root))
	fmt.Printf("  Source:   %s\n", source)
	fmt.Printf("  Cache:    %s\n", paths.DB)
	fmt.Printf("  Report:   %s\n", paths.Report)
	fmt.Printf("  Watch:    %s\n", watchStatus)
	for _, w := range cfg.Warnings {
		fmt.Printf("  %s⚠ %s%s\n", colorYellow, w, colorReset)
	}

	data, err := cfg.YAML(root)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s", data)
	return nil
}
