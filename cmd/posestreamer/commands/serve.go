package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/bryanchriswhite/PoseStreamer/internal/api"
	"github.com/bryanchriswhite/PoseStreamer/internal/config"
	"github.com/bryanchriswhite/PoseStreamer/internal/detector"
	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/inference"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/pipeline"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink/mjpeg"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink/oscsink"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink/preview"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink/wsfeed"
)

// frames between debug-level frame size lines
const sizeLogEvery = 300

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PoseStreamer pipeline and HTTP server",
	Long: `Start the PoseStreamer HTTP server and, with --auto-start, the pose pipeline.

The server provides a REST API and web UI for starting and stopping the
pipeline, toggling sinks and the loop flag, and watching the MJPEG stream.`,
	Example: `  # Serve the default camera, start from the web UI
  posestreamer serve

  # Replay a clip in a loop, broadcasting OSC to another host
  posestreamer serve --path clip.mp4 --auto-start --osc-host 192.168.1.20

  # Offline test pattern without a model server
  posestreamer serve --path pattern --detector disabled --auto-start

  # Use the multi-person MoveNet backend
  posestreamer serve --detector movenet --inference-url http://gpu-box:8000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.Int("camera", 0, "camera index (ignored when --path is set)")
	f.String("path", "", "video file, image directory or \"pattern\"")
	f.Float64("fps", 0, "frame rate for image sequences")
	f.String("detector", "", "pose backend (mediapipe, mediapipe-multi, movenet, openpose, posenet, disabled)")
	f.String("inference-url", "", "model server base url")
	f.Bool("loop", true, "rewind the source at end of stream")
	f.Bool("auto-start", false, "start the pipeline immediately")
	f.String("osc-host", "", "OSC target host")
	f.Int("osc-port", 0, "OSC target port")
	f.Bool("preview", true, "open the local preview window")

	viper.BindPFlag("source.camera", f.Lookup("camera"))
	viper.BindPFlag("source.path", f.Lookup("path"))
	viper.BindPFlag("source.fps", f.Lookup("fps"))
	viper.BindPFlag("detector.kind", f.Lookup("detector"))
	viper.BindPFlag("inference.url", f.Lookup("inference-url"))
	viper.BindPFlag("pipeline.loop", f.Lookup("loop"))
	viper.BindPFlag("pipeline.auto_start", f.Lookup("auto-start"))
	viper.BindPFlag("sinks.osc.host", f.Lookup("osc-host"))
	viper.BindPFlag("sinks.osc.port", f.Lookup("osc-port"))
	viper.BindPFlag("sinks.preview.enabled", f.Lookup("preview"))
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.InitWithFile(cfg.LogLevel, viper.GetBool("pretty"), logger.FileOptions{Path: cfg.LogFile})
	log := logger.WithComponent("serve")
	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	kind, err := detector.ParseKind(cfg.Detector.Kind)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det := detector.New(ctx, detector.Config{
		Kind:           kind,
		Model:          cfg.Detector.Model,
		ScoreThreshold: cfg.Detector.ScoreThreshold,
		Split:          cfg.Sinks.OSC.Split,
	}, connector(cfg.Inference))

	fanout, video, feed, err := buildSinks(ctx, cfg, det)
	if err != nil {
		det.Close()
		return err
	}

	driver := pipeline.NewDriver(fanout, pipeline.Options{
		Loop:         cfg.Pipeline.Loop,
		Overlay:      cfg.Detector.Overlay,
		SizeLogEvery: sizeLogEvery,
	})

	server := api.NewServer(ctx, api.Deps{
		Driver:   driver,
		Sinks:    fanout,
		Config:   configMgr,
		Detector: det,
		MJPEG:    video,
		Feed:     feed,
	})

	if cfg.Pipeline.AutoStart {
		if err := server.Sessions().Start(cfg.Source.Selection()); err != nil {
			fanout.Close()
			det.Close()
			return fmt.Errorf("auto-start: %w", err)
		}
	}

	fmt.Printf("\n✓ Server started on http://localhost:%d\n", cfg.ServerPort)
	fmt.Printf("  MJPEG stream:  http://localhost:%d/stream\n", cfg.ServerPort)
	fmt.Printf("  OSC target:    %s\n", oscsink.Config{Host: cfg.Sinks.OSC.Host, Port: cfg.Sinks.OSC.Port}.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.ServerPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		driver.Stop()
		select {
		case <-driver.Done():
		case <-time.After(5 * time.Second):
			log.Warn().Msg("Pipeline did not stop in time")
		}
		return errors.Join(fanout.Close(), det.Close())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("Stopped")
	return nil
}

// connector opens the KServe runtime for a backend's model
func connector(cfg config.InferenceConfig) detector.Connector {
	return func(ctx context.Context, model string) (inference.Runtime, error) {
		return inference.NewHTTP(ctx, inference.HTTPConfig{
			URL:     cfg.URL,
			Model:   model,
			Timeout: cfg.Timeout,
		})
	}
}

// buildSinks creates every sink behind a switch and enables the configured
// ones. A sink that fails to initialize is reported and left inert.
func buildSinks(ctx context.Context, cfg *config.Config, det detector.Detector) (*sink.Fanout, *mjpeg.Sink, *wsfeed.Sink, error) {
	raw, err := frame.ParsePixelFormat(cfg.Sinks.MJPEG.PixelFormat)
	if err != nil {
		return nil, nil, nil, err
	}

	video := mjpeg.New(mjpeg.Config{Quality: cfg.Sinks.MJPEG.Quality, Raw: raw})
	feed := wsfeed.New(det)

	switches := []struct {
		sw *sink.Switch
		on bool
	}{
		{sink.NewSwitch(preview.New(preview.Config{
			Title:  cfg.Sinks.Preview.Title,
			Width:  cfg.Source.Width,
			Height: cfg.Source.Height,
		})), cfg.Sinks.Preview.Enabled},
		{sink.NewSwitch(video), cfg.Sinks.MJPEG.Enabled},
		{sink.NewSwitch(oscsink.New(oscsink.Config{
			Host: cfg.Sinks.OSC.Host,
			Port: cfg.Sinks.OSC.Port,
		}, det)), cfg.Sinks.OSC.Enabled},
		{sink.NewSwitch(feed), cfg.Sinks.Websocket.Enabled},
	}

	fanout := sink.NewFanout()
	for _, s := range switches {
		fanout.Add(s.sw)
		if s.on {
			// failure is logged by the switch; other sinks carry on
			s.sw.SetEnabled(ctx, true)
		}
	}
	return fanout, video, feed, nil
}
