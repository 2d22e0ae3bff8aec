package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the monitoring loop without the control API",
	Long: `Run the monitoring loop headless until interrupted.

Every interval the schedule is resolved, a frame is captured and
analyzed, and alerts for unexcused students are persisted. Useful for
single-classroom deployments that are controlled over SSH instead of
the HTTP API.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.monitor.Start(ctx); err != nil {
		return fmt.Errorf("starting monitoring: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	p.log.Info("shutting down")
	return nil
}
