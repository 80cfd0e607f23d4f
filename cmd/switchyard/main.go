// Command switchyard operates the data-access router: it serves the query
// proxy, inspects the configured stores and runs backfills.
package main

import (
	"os"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
