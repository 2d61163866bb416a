package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/memoryctl/memoryctl/internal/daemon"
	"github.com/memoryctl/memoryctl/internal/httpapi"
	"github.com/memoryctl/memoryctl/pkg/config"
)

var (
	servePort           int
	serveHost           string
	maintenanceInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server in the foreground",
	Long: `Starts the facade's REST API server and a background ticker that
runs maintenance and cluster rebuilds on a fixed interval, until
interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the memoryctl daemon is running",
	Run: func(cmd *cobra.Command, args []string) {
		runStatus()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (overrides config)")
	serveCmd.Flags().DurationVar(&maintenanceInterval, "maintenance_interval", time.Hour, "interval between background maintenance+cluster passes")
}

func runServe() {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if servePort > 0 {
		a.cfg.Server.Port = servePort
	}
	if serveHost != "" {
		a.cfg.Server.Host = serveHost
	}

	d := daemon.New(config.ConfigPath(), Version)
	if err := d.Start(a.cfg.Server.Enabled, a.cfg.Server.Host, a.cfg.Server.Port); err != nil {
		fmt.Printf("Warning: could not register daemon state: %v\n", err)
	}
	defer d.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go daemon.PeriodicJobs(ctx, a.facade, maintenanceInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nreceived %v, shutting down\n", sig)
		cancel()
	}()

	fmt.Printf("memoryctl v%s\n", Version)

	if !a.cfg.Server.Enabled {
		fmt.Println("REST API disabled (server.enabled=false); running background maintenance only")
		fmt.Println("Press Ctrl+C to stop")
		<-ctx.Done()
		return
	}

	server := httpapi.NewServer(a.facade, a.cfg)
	fmt.Printf("REST API listening on %s:%d\n", a.cfg.Server.Host, a.cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.StartWithContext(ctx, 10*time.Second); err != nil {
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	d := daemon.New(config.ConfigPath(), Version)
	status := d.Status()
	if !status.Running {
		fmt.Println("memoryctl daemon is not running")
		return
	}
	fmt.Printf("memoryctl daemon is running (PID: %d, uptime: %s)\n", status.PID, status.Uptime.Round(time.Second))
	if status.RESTEnabled {
		fmt.Printf("REST API: http://%s:%d\n", status.RESTHost, status.RESTPort)
	}
}
