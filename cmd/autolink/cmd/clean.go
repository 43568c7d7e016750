package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/autolink/internal/app"
)

var cleanForce bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the build cache, report and default output",
	Long:  "Removes the .autolink directory. Pages rewritten in place or to a custom out_dir are left alone.",
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "Skip confirmation prompt")
}

func runClean(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	paths := app.NewPaths(root)

	if _, err := os.Stat(paths.Root); os.IsNotExist(err) {
		fmt.Println("⚡ nothing to clean")
		return nil
	}
	if pid := paths.ReadPID(); pid > 0 {
		return fmt.Errorf("watch is running (pid %d); stop it before cleaning", pid)
	}

	if !cleanForce {
		fmt.Printf("⚠ This will delete %s for %s. Continue? [y/N] ", app.StateDir, filepath.Base(root))
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("cancelled")
			return nil
		}
	}

	if err := paths.RemoveAll(); err != nil {
		return err
	}
	fmt.Println("⚡ cleaned")
	return nil
}
