package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsvoboda/classwatch/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control API and the monitoring loop",
	Long: `Start the classwatch control API.

The API controls the monitoring lifecycle (start, stop, status, manual
capture) and serves the alert history. With --watch the monitoring
loop starts immediately; otherwise it waits for POST /monitor/start.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("watch", false, "Start monitoring immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}

	if mustGetBool(cmd, "watch") {
		if err := p.monitor.Start(ctx); err != nil {
			return fmt.Errorf("starting monitoring: %w", err)
		}
	}

	server := web.NewServer(host, port, web.Deps{
		Monitor:  p.monitor,
		Schedule: p.resolver,
		Alerts:   p.alerts,
		Log:      p.log,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		p.log.Info("shutting down")
		p.monitor.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			p.log.WithError(err).Error("error during shutdown")
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
