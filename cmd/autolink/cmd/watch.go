package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corey/autolink/internal/app"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild whenever a page or autolink.yaml changes",
	Long:  "Runs a build, then watches the content directory and rebuilds on every change until interrupted.",
	RunE:  runWatch,
}

func init() {
	addBuildFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	logFile, err := os.OpenFile(a.Paths.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	setupLogging(a.Config.Debug, logFile)

	if err := a.Paths.WritePID(os.Getpid()); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	defer a.Paths.CleanEphemeral()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("⚡ watching %s (ctrl-c to stop)\n", a.Config.ContentDir)
	err = a.Watch(ctx, func(res *app.BuildResult, err error) {
		stamp := time.Now().Format("15:04:05")
		if err != nil {
			fmt.Printf("%s%s%s %s✗ %v%s\n", colorGray, stamp, colorReset, colorRed, err, colorReset)
			return
		}
		rep := res.Report
		fmt.Printf("%s%s%s ⚡ %d pages │ %d changed │ %d links │ %d failed │ %dms\n",
			colorGray, stamp, colorReset, rep.Documents, rep.Changed, rep.LinksInserted, rep.Failed, rep.DurationMS)
	})
	if err != nil {
		return err
	}

	fmt.Println("\n⚡ stopped")
	return nil
}
