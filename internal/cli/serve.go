package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/auralis-audio/aurascope/internal/collector"
	"github.com/auralis-audio/aurascope/internal/config"
	"github.com/auralis-audio/aurascope/internal/manager"
)

var (
	serveConfig    string
	servePort      uint16
	serveBind      string
	serveMode      string
	serveSeed      int64
	serveEntities  int
	serveChannels  int
	serveListeners int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a telemetry server fed by a simulated engine",
	Long: `Starts the telemetry pipeline against a simulated audio engine:
entities orbit a listener, channels play looping sounds, and the
captured snapshots stream to every connected observer.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "Configuration file (YAML or JSON)")
	serveCmd.Flags().Uint16Var(&servePort, "port", uint16(config.DefaultServerPort), "Port to listen on")
	serveCmd.Flags().StringVar(&serveBind, "bind", "127.0.0.1", "Address to bind to")
	serveCmd.Flags().StringVar(&serveMode, "mode", "timed", "Update mode: timed|on_change|per_frame|manual")
	serveCmd.Flags().Int64Var(&serveSeed, "seed", time.Now().UnixNano(), "Random seed for the simulated engine")
	serveCmd.Flags().IntVar(&serveEntities, "entities", 4, "Simulated entity count")
	serveCmd.Flags().IntVar(&serveChannels, "channels", 4, "Simulated channel count")
	serveCmd.Flags().IntVar(&serveListeners, "listeners", 1, "Simulated listener count")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if serveConfig != "" {
		loaded, err := config.Load(serveConfig)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	// Flags override the file.
	if cmd.Flags().Changed("port") {
		cfg.ServerPort = servePort
	}
	if cmd.Flags().Changed("bind") {
		cfg.BindAddress = serveBind
	}
	if cmd.Flags().Changed("mode") {
		cfg.UpdateMode = config.ParseUpdateMode(serveMode)
	}
	cfg.EnableNetworking = true

	engine := collector.NewSimulatedEngine(serveSeed, serveEntities, serveChannels, serveListeners)

	m := manager.Instance()
	if err := m.Initialize(cfg, engine); err != nil {
		return err
	}
	defer manager.Destroy()

	log.Printf("Serving telemetry on ws://%s:%d/stream (mode=%s)", cfg.BindAddress, m.ServerPort(), cfg.UpdateMode)
	log.Printf("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stats := m.GetStatistics()
	log.Printf("Shutting down: %d messages sent, %d dropped, %d bytes",
		stats.TotalMessagesSent, stats.MessagesDropped, stats.BytesTransmitted)
	return nil
}
