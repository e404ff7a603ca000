// Package main is the dcgrab command itself.
package main

import (
	"os"

	"go.viam.com/depthcam/cli"
	"go.viam.com/depthcam/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.Global().Error(err)
		os.Exit(1)
	}
}
