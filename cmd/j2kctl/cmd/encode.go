package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jp2lab/j2kcodec/jpeg2000"
	"github.com/jp2lab/j2kcodec/jpeg2000/formats"
)

var progressionOrders = map[string]uint8{"lrcp": 0, "rlcp": 1, "rpcl": 2, "pcrl": 3, "cprl": 4}

func newEncodeCmd() *cobra.Command {
	var (
		input, output  string
		format         string
		rawDesc        string
		rate           float64
		quality        int
		numResolutions int
		cblkSize       int
		precinctSize   int
		progression    string
		numLayers      int
		lossless       bool
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "encode a PNM, TIFF, or raw planar image to a J2K code stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("opening input: %w", err)
			}
			defer in.Close()

			var planes [][]int32
			var w, h, nc, bpc int
			switch format {
			case "pnm":
				img, err := formats.ReadPNM(in)
				if err != nil {
					return err
				}
				planes, w, h, nc = img.Planes, img.Width, img.Height, img.Components
				bpc = bitsFor(img.MaxVal)
			case "tiff":
				img, err := formats.ReadTIFF(in)
				if err != nil {
					return err
				}
				planes, w, h, nc, bpc = img.Planes, img.Width, img.Height, img.Components, img.BitDepth
			case "raw":
				desc, err := formats.ParseRawDescriptor(rawDesc)
				if err != nil {
					return err
				}
				planes, err = formats.ReadRaw(in, desc)
				if err != nil {
					return err
				}
				w, h, nc, bpc = desc.Width, desc.Height, desc.Components, desc.BitDepth
			default:
				return fmt.Errorf("unknown input format %q (want pnm|tiff|raw)", format)
			}

			params := jpeg2000.DefaultEncodeParams(w, h, nc, bpc, false)
			params.Lossless = lossless
			if !lossless {
				params.Quality = quality
			}
			if rate > 0 {
				params.TargetRatio = rate
			}
			if numResolutions > 0 {
				params.NumLevels = numResolutions - 1
			}
			if cblkSize > 0 {
				params.CodeBlockWidth = cblkSize
				params.CodeBlockHeight = cblkSize
			}
			if precinctSize > 0 {
				params.PrecinctWidth = precinctSize
				params.PrecinctHeight = precinctSize
			}
			if order, ok := progressionOrders[strings.ToLower(progression)]; ok {
				params.ProgressionOrder = order
			}
			if numLayers > 0 {
				params.NumLayers = numLayers
			}

			enc := jpeg2000.NewEncoder(params)
			data, err := enc.EncodeComponents(planes)
			if err != nil {
				return fmt.Errorf("encoding: %w", err)
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input image path")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output J2K path")
	cmd.Flags().StringVar(&format, "format", "pnm", "input format: pnm|tiff|raw")
	cmd.Flags().StringVarP(&rawDesc, "raw-descriptor", "F", "", "raw descriptor w,h,nc,bpc,{s|u}@dxXdy:… (required when --format=raw)")
	cmd.Flags().Float64VarP(&rate, "rate", "r", 0, "target compression ratio (orig/compressed); 0 = unconstrained")
	cmd.Flags().IntVarP(&quality, "quality", "q", 80, "lossy quality, 1-100")
	cmd.Flags().IntVarP(&numResolutions, "resolutions", "n", 0, "number of resolution levels; 0 = default")
	cmd.Flags().IntVarP(&cblkSize, "cblk-size", "c", 0, "code-block size (power of two); 0 = default")
	cmd.Flags().IntVarP(&precinctSize, "precinct-size", "b", 0, "precinct size (power of two); 0 = default")
	cmd.Flags().StringVarP(&progression, "progression", "p", "lrcp", "progression order: lrcp|rlcp|rpcl|pcrl|cprl")
	cmd.Flags().IntVar(&numLayers, "layers", 1, "number of quality layers")
	cmd.Flags().BoolVar(&lossless, "lossless", true, "use the reversible 5/3 wavelet instead of lossy 9/7")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

func bitsFor(maxVal int) int {
	bits := 1
	for (1 << uint(bits)) <= maxVal {
		bits++
	}
	return bits
}
