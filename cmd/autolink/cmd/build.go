package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/autolink/internal/app"
)

var strictFlag bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Link every page and write the output",
	Long: "Builds the term index from all pages, rewrites every page in parallel and writes the result to out_dir.\n" +
		"Pages whose rewrite fails keep their original body and are listed in .autolink/report.json.",
	RunE: runBuild,
}

func init() {
	addBuildFlags(buildCmd)
	buildCmd.Flags().BoolVar(&strictFlag, "strict", false, "exit non-zero when any page failed")
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Build(context.Background())
	if err != nil {
		return err
	}

	fmt.Print(formatSummary(res.Report, "linked"))
	fmt.Printf("  %soutput:  %s%s\n", colorGray, a.Config.OutDir, colorReset)

	if strictFlag && res.Report.Failed > 0 {
		return fmt.Errorf("%d pages failed", res.Report.Failed)
	}
	return nil
}
