// Command j2kctl is the CLI front end for the j2kcodec JPEG 2000 codec.
package main

import (
	"os"

	"github.com/jp2lab/j2kcodec/cmd/j2kctl/cmd"
)

func main() {
	if err := cmd.NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
