package cmd

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanxfxteam/NitroGen/pkg/protocol"
)

var predictCmd = &cobra.Command{
	Use:   "predict <frame.png>",
	Short: "Request action predictions for a single frame",
	Long: `Load a PNG or JPEG game frame, send it to the model server, and print
the predicted gamepad actions in the selected output format.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadFrame(args[0])
		if err != nil {
			return err
		}

		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		actions, err := c.Predict(img)
		if err != nil {
			return fmt.Errorf("failed to predict: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(actions))
		return nil
	},
}

// loadFrame decodes a PNG or JPEG file into the wire image format.
func loadFrame(path string) (*protocol.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %q: %w", path, err)
	}

	bounds := src.Bounds()
	out := protocol.NewImage(bounds.Dy(), bounds.Dx())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			out.SetRGB(x-bounds.Min.X, y-bounds.Min.Y, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(predictCmd)
}
