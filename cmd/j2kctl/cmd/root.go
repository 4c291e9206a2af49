package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewRoot builds the j2kctl command tree: decode, encode, info, each backed
// directly by the jpeg2000 package's public API.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "j2kctl",
		Short: "encode and decode JPEG 2000 code streams",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			levelFlag, _ := cmd.Flags().GetString("log-level")
			var level slog.Level
			if err := level.UnmarshalText([]byte(strings.ToUpper(levelFlag))); err != nil {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
	root.AddCommand(newDecodeCmd(), newEncodeCmd(), newInfoCmd())
	return root
}
