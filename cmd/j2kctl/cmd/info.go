package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jp2lab/j2kcodec/jpeg2000"
)

func newInfoCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "print the geometry of a J2K code stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			dec := jpeg2000.NewDecoder()
			if err := dec.Decode(data); err != nil {
				return fmt.Errorf("decoding: %w", err)
			}
			fmt.Printf("width=%d height=%d components=%d bit_depth=%d signed=%v\n",
				dec.Width(), dec.Height(), dec.Components(), dec.BitDepth(), dec.IsSigned())
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input J2K/JP2 path")
	cmd.MarkFlagRequired("input")
	return cmd
}
