// archive-uploader uploads a directory of books, audio, video and images to a
// public archive, one item per file, resuming where a previous run stopped.
package main

import (
	"os"

	"github.com/rescale/archive-uploader/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
