package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/corey/autolink/internal/app"
	"github.com/corey/autolink/internal/domain/terms"
)

var (
	indexCachedFlag bool
	indexLimitFlag  int
	indexJSONFlag   bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Show the term index",
	Long:  "Lists every linkable term in match priority order (longest first) with its target, plus dropped entries.",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&contentFlag, "content", "", "Markdown content directory (overrides content_dir)")
	indexCmd.Flags().BoolVar(&indexCachedFlag, "cached", false, "show the index persisted by the last build")
	indexCmd.Flags().IntVar(&indexLimitFlag, "limit", 0, "show at most this many terms")
	indexCmd.Flags().BoolVar(&indexJSONFlag, "json", false, "print entries as JSON")
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{DryRun: true, NoCache: !indexCachedFlag})
	if err != nil {
		return err
	}
	defer a.Close()

	var idx *terms.Index
	if indexCachedFlag {
		cached, snap, err := a.LastIndex()
		if err != nil {
			return fmt.Errorf("load index: %w", err)
		}
		if snap == nil {
			fmt.Println("⚡ no cached index — run autolink build first")
			return nil
		}
		fmt.Printf("%sbuilt %s%s\n", colorGray, time.Unix(snap.BuiltAt, 0).Format(time.RFC3339), colorReset)
		idx = cached
	} else {
		idx, err = a.Index(context.Background())
		if err != nil {
			return err
		}
	}

	if indexJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Entries  any             `json:"entries"`
			Warnings []terms.Warning `json:"warnings,omitempty"`
		}{idx.Entries(), idx.Warnings()})
	}

	fmt.Print(formatIndex(idx, indexLimitFlag))
	return nil
}
