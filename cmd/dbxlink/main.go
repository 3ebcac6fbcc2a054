// Command dbxlink talks to the Dropbox desktop daemon.
package main

import (
	"os"

	"github.com/tessro/dbxlink/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
