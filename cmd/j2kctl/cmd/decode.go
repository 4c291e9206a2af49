package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jp2lab/j2kcodec/jpeg2000"
	"github.com/jp2lab/j2kcodec/jpeg2000/formats"
)

func newDecodeCmd() *cobra.Command {
	var (
		input, output string
		format        string
		rawDesc       string
		layer         int
		region        string
		reduce        int
	)
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "decode a J2K code stream to PNM, TIFF, or raw planar samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			dec := jpeg2000.NewDecoder()

			var samples [][]int32
			var width, height int
			if region != "" || reduce > 0 {
				win, err := parseRegionFlag(region)
				if err != nil {
					return err
				}
				res, err := dec.DecodeRegion(data, win, reduce)
				if err != nil {
					return fmt.Errorf("decoding region: %w", err)
				}
				samples, width, height = res.Planes, res.Width, res.Height
			} else if layer >= 0 {
				if err := dec.Open(data); err != nil {
					return fmt.Errorf("opening codestream: %w", err)
				}
				if err := dec.DecodeToLayer(layer); err != nil {
					return fmt.Errorf("decoding through layer %d: %w", layer, err)
				}
				samples, width, height = dec.GetImageData(), dec.Width(), dec.Height()
			} else {
				if err := dec.Decode(data); err != nil {
					return fmt.Errorf("decoding: %w", err)
				}
				samples, width, height = dec.GetImageData(), dec.Width(), dec.Height()
			}

			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			defer out.Close()

			switch format {
			case "pnm":
				img := &formats.PNMImage{
					Width:      width,
					Height:     height,
					Components: dec.Components(),
					MaxVal:     (1 << uint(dec.BitDepth())) - 1,
					Planes:     samples,
				}
				return formats.WritePNM(out, img)
			case "tiff":
				img := &formats.TIFFImage{
					Width:      width,
					Height:     height,
					Components: dec.Components(),
					BitDepth:   dec.BitDepth(),
					Planes:     samples,
				}
				return formats.WriteTIFF(out, img)
			case "raw":
				desc, err := formats.ParseRawDescriptor(rawDesc)
				if err != nil {
					return err
				}
				return formats.WriteRaw(out, desc, samples)
			default:
				return fmt.Errorf("unknown output format %q (want pnm|tiff|raw)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input J2K/JP2 path")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output image path")
	cmd.Flags().StringVar(&format, "format", "pnm", "output format: pnm|tiff|raw")
	cmd.Flags().StringVarP(&rawDesc, "raw-descriptor", "F", "", "raw descriptor w,h,nc,bpc,{s|u}@dxXdy:… (required when --format=raw)")
	cmd.Flags().IntVar(&layer, "layer", -1, "decode only through this quality layer (0-based); -1 = all layers")
	cmd.Flags().StringVar(&region, "region", "", "decode only this window, as fractions or pixels x0,y0,x1,y1 (e.g. 0.25,0.25,0.75,0.75)")
	cmd.Flags().IntVar(&reduce, "reduce", 0, "discard this many highest resolution levels (0 = full resolution)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

// parseRegionFlag accepts either fractional coordinates (0..1) or absolute
// pixel coordinates as "x0,y0,x1,y1".
func parseRegionFlag(s string) (jpeg2000.DecodeWindow, error) {
	if s == "" {
		return jpeg2000.DecodeWindow{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return jpeg2000.DecodeWindow{}, fmt.Errorf("region must be x0,y0,x1,y1, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return jpeg2000.DecodeWindow{}, fmt.Errorf("region value %q: %w", p, err)
		}
		vals[i] = v
	}
	fractional := vals[0] <= 1 && vals[1] <= 1 && vals[2] <= 1 && vals[3] <= 1
	return jpeg2000.DecodeWindow{
		X0:         vals[0],
		Y0:         vals[1],
		X1:         vals[2],
		Y1:         vals[3],
		Fractional: fractional,
	}, nil
}
