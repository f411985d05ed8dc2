// capishare - command-line client for a personal file-sharing service.
package main

import (
	"os"

	"github.com/capiweb/capishare/internal/cli"
	"github.com/capiweb/capishare/internal/fips"
	"github.com/capiweb/capishare/internal/version"
)

// Set by ldflags:
//
//	go build -ldflags "-X main.Version=v0.2.0 -X main.BuildTime=$(date -u +%F)" ./cmd/capishare
var (
	Version   = ""
	BuildTime = ""
)

func init() {
	fips.Init()
}

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
