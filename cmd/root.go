// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/callwatch/internal/capture"
	"firestige.xyz/callwatch/internal/config"
	"firestige.xyz/callwatch/internal/daemon"
	"firestige.xyz/callwatch/internal/log"
)

var (
	// Global flags
	configFile string

	// Root flags
	device   string
	readFile string
	list     bool
	format   string
	interval time.Duration
)

// rootCmd runs the watcher when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "callwatch",
	Short: "Watch a video call's media streams from packet metadata",
	Long: `callwatch sniffs UDP traffic sent to the conferencing service's signalling port
and reports whether video, audio and the call as a whole are active.

Source ports are classified by average packet size: large packets are video,
medium packets audio, small packets control. Once video and audio are found the
capture narrows to those ports until the call goes idle.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if list {
			return runDevices(cmd)
		}
		return runWatch(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")

	rootCmd.Flags().StringVarP(&device, "device", "d", "", "capture device (default: first usable device)")
	rootCmd.Flags().StringVarP(&readFile, "read", "r", "", "replay a pcap file instead of capturing live")
	rootCmd.Flags().BoolVar(&list, "list", false, "list capture devices and exit")
	rootCmd.Flags().StringVar(&format, "format", "", "status line format: text or json")
	rootCmd.Flags().DurationVar(&interval, "interval", 0, "status line interval, e.g. 100ms")
	rootCmd.MarkFlagsMutuallyExclusive("device", "read")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}

func runWatch(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	d := daemon.New(cfg, daemon.Options{ReadFile: readFile, Out: cmd.OutOrStdout()})
	if err := d.Start(); err != nil {
		log.GetLogger().WithError(err).Error("watcher failed to start")
		return err
	}
	if err := d.Run(); err != nil {
		log.GetLogger().WithError(err).Error("watcher stopped")
		return err
	}
	return nil
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Capture.Device = device
	}
	if flags.Changed("format") {
		cfg.Display.Format = format
	}
	if flags.Changed("interval") {
		cfg.Display.Interval = interval
	}
}

func runDevices(cmd *cobra.Command) error {
	devs, err := capture.ListDevices()
	if err != nil {
		return err
	}
	printDevices(cmd.OutOrStdout(), devs)
	return nil
}
