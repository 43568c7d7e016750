package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corey/autolink/internal/app"
)

var (
	checkAllFlag  bool
	checkJSONFlag bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show what build would link, without writing",
	Long:  "Dry run: rewrites every page in memory and prints per-page link counts. Nothing is written.",
	RunE:  runCheck,
}

func init() {
	addBuildFlags(checkCmd)
	checkCmd.Flags().BoolVar(&checkAllFlag, "all", false, "also list pages that would not change")
	checkCmd.Flags().BoolVar(&checkJSONFlag, "json", false, "print the report as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{DryRun: true})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Build(context.Background())
	if err != nil {
		return err
	}

	if checkJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Report)
	}

	fmt.Print(formatSummary(res.Report, "would link"))
	fmt.Print(formatResults(res.Results, checkAllFlag))
	return nil
}
