// Command oscdump prints the OSC messages arriving on a UDP port. It is the
// quickest way to check what the posestreamer broadcast looks like.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/hypebeast/go-osc/osc"
	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
)

var (
	listenAddr string
	prefix     string
	limit      int64
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "oscdump",
	Short: "Print incoming OSC messages",
	Example: `  # Everything on the default port
  oscdump

  # Only the first person's head
  oscdump --prefix /p1/head

  # Stop after one frame of the legacy shape
  oscdump --count 36`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&listenAddr, "addr", "a", "127.0.0.1:5005", "UDP address to listen on")
	rootCmd.Flags().StringVarP(&prefix, "prefix", "p", "", "only print addresses starting with this")
	rootCmd.Flags().Int64VarP(&limit, "count", "n", 0, "exit after this many printed messages")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger.Init(logLevel, true)
	log := logger.WithComponent("oscdump")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}

	var printed atomic.Int64
	d := osc.NewStandardDispatcher()
	err = d.AddMsgHandler("*", func(msg *osc.Message) {
		if limit > 0 && printed.Load() >= limit {
			return
		}
		if !printMessage(os.Stdout, msg, prefix) {
			return
		}
		if n := printed.Add(1); limit > 0 && n >= limit {
			stop()
		}
	})
	if err != nil {
		conn.Close()
		return err
	}

	server := &osc.Server{Addr: listenAddr, Dispatcher: d}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	log.Info().Str("addr", conn.LocalAddr().String()).Msg("Listening for OSC")
	err = server.Serve(conn)
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		log.Info().Int64("printed", printed.Load()).Msg("Stopped")
		return nil
	}
	return err
}

// printMessage writes one line per message, dropping those outside prefix
func printMessage(w io.Writer, msg *osc.Message, prefix string) bool {
	if !strings.HasPrefix(msg.Address, prefix) {
		return false
	}
	args := make([]string, len(msg.Arguments))
	for i, a := range msg.Arguments {
		switch v := a.(type) {
		case float32:
			args[i] = fmt.Sprintf("%.4f", v)
		default:
			args[i] = fmt.Sprint(v)
		}
	}
	fmt.Fprintf(w, "%s %s\n", msg.Address, strings.Join(args, " "))
	return true
}
