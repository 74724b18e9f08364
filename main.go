package main

import (
	"github.com/mrlokans/offlinereader/internal/cli"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	cli.Version = Version
	if Commit != "unknown" {
		cli.Version = Version + " (" + Commit + ")"
	}
	cli.Execute()
}
