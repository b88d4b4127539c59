package main

import (
	"github.com/chwrapper/chwrapper/internal/cmd"
	"github.com/chwrapper/chwrapper/internal/server/handlers"
)

// Set via ldflags, e.g.
// go build -ldflags="-X main.version=0.1.0 -X main.commit=abc123 -X main.buildDate=2026-10-19"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		cmd.Fail(err)
	}
}
