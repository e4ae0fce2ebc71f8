// tfsync lists a Telegram chat's files through the file server and keeps
// their download status live.
package main

import (
	"os"

	"github.com/telegram-files/tfsync/internal/cli"
	"github.com/telegram-files/tfsync/internal/version"
)

// Set by ldflags for release builds.
var (
	Version   = "v0.1.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
