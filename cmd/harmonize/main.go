// Command harmonize applies harmonization rules to CSV datasets, replays
// harmonization logs, manages the rule library and serves the RPC sidecar.
package main

import (
	"context"
	"os"

	"github.com/bmir-radx/harmonization-framework/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
