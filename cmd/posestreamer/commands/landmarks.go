package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/PoseStreamer/internal/detector"
	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
)

var landmarksCmd = &cobra.Command{
	Use:   "landmarks [SCHEMA|DETECTOR]",
	Short: "Show landmark schemas",
	Long: `Without arguments, list the landmark schemas and the detector backends
that use them. With a schema id or a detector name, print the index to
name table. The names are the ones carried in OSC addresses and in the
websocket feed.`,
	Example: `  # List schemas
  posestreamer landmarks

  # Landmarks of the MoveNet backend
  posestreamer landmarks movenet

  # A schema by id
  posestreamer landmarks body25`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLandmarks,
}

func init() {
	rootCmd.AddCommand(landmarksCmd)
}

func runLandmarks(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	if len(args) == 0 {
		users := backendsBySchema()
		fmt.Fprintln(w, "SCHEMA\tPOINTS\tDETECTORS")
		for _, id := range landmark.IDs() {
			s, err := landmark.Lookup(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", id, s.Len(), strings.Join(users[id], ", "))
		}
		return w.Flush()
	}

	s, err := resolveSchema(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "INDEX\tNAME")
	for i, n := range s.Names() {
		fmt.Fprintf(w, "%d\t%s\n", i, n)
	}
	return w.Flush()
}

// resolveSchema accepts a schema id or a detector kind
func resolveSchema(arg string) (*landmark.Schema, error) {
	if s, err := landmark.Lookup(arg); err == nil {
		return s, nil
	}
	kind, err := detector.ParseKind(arg)
	if err != nil {
		return nil, fmt.Errorf("no schema or detector named %q", arg)
	}
	s := detector.SchemaFor(kind)
	if s == nil {
		return nil, fmt.Errorf("detector %q has no landmarks", arg)
	}
	return s, nil
}

func backendsBySchema() map[string][]string {
	out := map[string][]string{}
	for _, k := range detector.Kinds() {
		if s := detector.SchemaFor(k); s != nil {
			out[s.ID()] = append(out[s.ID()], string(k))
		}
	}
	return out
}
