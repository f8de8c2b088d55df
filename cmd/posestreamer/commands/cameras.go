package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/PoseStreamer/internal/source"
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List capture devices",
	Long: `List the video capture devices PoseStreamer can open.

The index column is the value for --camera or source.camera.`,
	Example: `  # List cameras in table format (default)
  posestreamer cameras

  # List cameras in JSON format
  posestreamer cameras --format json`,
	RunE: runCameras,
}

var camerasFormat string

func init() {
	rootCmd.AddCommand(camerasCmd)

	camerasCmd.Flags().StringVarP(&camerasFormat, "format", "f", "table", "output format (table or json)")
}

func runCameras(cmd *cobra.Command, args []string) error {
	cams, err := source.ListCameras()
	if err != nil {
		return fmt.Errorf("failed to list cameras: %w", err)
	}

	switch camerasFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cams)
	case "table":
		if len(cams) == 0 {
			fmt.Println("No cameras found")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tDEVICE\tNAME")
		for _, c := range cams {
			fmt.Fprintf(w, "%d\t%s\t%s\n", c.Index, c.Path, c.Name)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", camerasFormat)
	}
}
