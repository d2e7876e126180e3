package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/auralis-audio/aurascope/internal/client"
	"github.com/auralis-audio/aurascope/internal/snapshot"
)

var (
	watchAddress   string
	watchJSON      bool
	watchReconnect bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to a telemetry server and print the stream",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchAddress, "address", "127.0.0.1:27002", "Telemetry server address")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print raw JSON records instead of summaries")
	watchCmd.Flags().BoolVar(&watchReconnect, "reconnect", false, "Reconnect automatically when the server drops")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := client.DefaultConfig()
	cfg.ServerAddress = watchAddress
	cfg.AutoReconnect = watchReconnect

	c := client.New(cfg)
	c.SetCallbacks(client.Callbacks{
		OnRawMessage: func(data []byte) {
			if watchJSON {
				fmt.Println(string(data))
			}
		},
		OnEngineData: func(d *snapshot.EngineData) {
			printSummary(d.Header, fmt.Sprintf("engine up=%.1fs voices=%d/%d cpu=%.1f%%",
				d.EngineUptime, d.ActiveVoiceCount, d.MaxVoiceCount, d.CPUUsagePercent))
		},
		OnEntityData: func(d *snapshot.EntityData) {
			printSummary(d.Header, fmt.Sprintf("entity %d pos=(%.2f, %.2f, %.2f) dist=%.2f",
				d.EntityID, d.Position[0], d.Position[1], d.Position[2], d.DistanceToListener))
		},
		OnChannelData: func(d *snapshot.ChannelData) {
			printSummary(d.Header, fmt.Sprintf("channel %d %s %q gain=%.2f pos=%.1fs/%.1fs",
				d.ChannelID, d.PlaybackState, d.SoundName, d.Gain, d.PlaybackPosition, d.TotalDuration))
		},
		OnListenerData: func(d *snapshot.ListenerData) {
			printSummary(d.Header, fmt.Sprintf("listener %d pos=(%.2f, %.2f, %.2f) env=%s",
				d.ListenerID, d.Position[0], d.Position[1], d.Position[2], d.CurrentEnvironment))
		},
		OnPerformanceData: func(d *snapshot.PerformanceData) {
			printSummary(d.Header, fmt.Sprintf("performance cpu=%.1f%% latency=%.1fms underruns=%d",
				d.TotalCPUUsage, d.LatencyMs, d.Underruns))
		},
		OnEvent: func(d *snapshot.EventData) {
			printSummary(d.Header, fmt.Sprintf("event %q %s", d.Name, d.Description))
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "stream error: %v\n", err)
		},
	})

	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Disconnect()

	fmt.Fprintf(os.Stderr, "Watching ws://%s/stream, press Ctrl+C to stop\n", watchAddress)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func printSummary(h snapshot.Header, text string) {
	if watchJSON {
		return
	}
	fmt.Printf("%s #%d %s\n", h.Timestamp.Format(time.TimeOnly), h.MessageID, text)
}
