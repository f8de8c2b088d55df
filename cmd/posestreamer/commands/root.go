package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/PoseStreamer/internal/config"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "posestreamer",
		Short: "PoseStreamer - stream pose landmarks from a camera or video",
		Long: `PoseStreamer reads frames from a camera or a video file, runs a pose
estimation backend on each frame and fans the result out to independent
sinks while holding replay to the source frame rate.

Sinks:
  • Local preview window (X11) with the detected skeleton drawn on top
  • MJPEG network video over HTTP
  • OSC landmark broadcast over UDP
  • JSON landmark feed over websocket

Every sink can be toggled at runtime from the web UI or the REST API.`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/posestreamer/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "also write JSON logs to this rotating file")
	rootCmd.PersistentFlags().Bool("pretty", true, "human readable console logs")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))

	// POSESTREAMER_SERVER_PORT, POSESTREAMER_SOURCE_PATH, ...
	viper.SetEnvPrefix("POSESTREAMER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	logger.Init(viper.GetString("log_level"), viper.GetBool("pretty"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig opens the config file and applies flag and environment
// overrides on top of it. Overrides are not written back.
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}
	cfg := configMgr.Get()
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return configMgr, cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			cfg.ServerPort = port
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			cfg.LogLevel = level
		}
	}
	if viper.IsSet("log_file") {
		if path := viper.GetString("log_file"); path != "" {
			cfg.LogFile = path
		}
	}
	if viper.IsSet("source.path") {
		if path := viper.GetString("source.path"); path != "" {
			cfg.Source.Path = path
			cfg.Source.Camera = -1
		}
	}
	if viper.IsSet("source.camera") {
		cfg.Source.Camera = viper.GetInt("source.camera")
	}
	if viper.IsSet("source.fps") {
		cfg.Source.FPS = viper.GetFloat64("source.fps")
	}
	if viper.IsSet("detector.kind") {
		if kind := viper.GetString("detector.kind"); kind != "" {
			cfg.Detector.Kind = kind
		}
	}
	if viper.IsSet("inference.url") {
		if u := viper.GetString("inference.url"); u != "" {
			cfg.Inference.URL = u
		}
	}
	if viper.IsSet("pipeline.loop") {
		cfg.Pipeline.Loop = viper.GetBool("pipeline.loop")
	}
	if viper.IsSet("pipeline.auto_start") {
		cfg.Pipeline.AutoStart = viper.GetBool("pipeline.auto_start")
	}
	if viper.IsSet("sinks.osc.host") {
		if host := viper.GetString("sinks.osc.host"); host != "" {
			cfg.Sinks.OSC.Host = host
		}
	}
	if viper.IsSet("sinks.osc.port") {
		if port := viper.GetInt("sinks.osc.port"); port > 0 {
			cfg.Sinks.OSC.Port = port
		}
	}
	if viper.IsSet("sinks.preview.enabled") {
		cfg.Sinks.Preview.Enabled = viper.GetBool("sinks.preview.enabled")
	}
}
