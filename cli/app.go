// Package cli contains the dcgrab command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// CLI flags.
const (
	debugFlag    = "debug"
	logLevelFlag = "log-level"
	logFileFlag  = "log-file"
	imageFlag    = "image-format"
	deviceFlag   = "device"
	indexFlag    = "index"
	framesFlag   = "frames"
	outFlag      = "out"
	setFlag      = "set"
	settingsFlag = "settings"
	filtersFlag  = "filters"
	watchFlag    = "watch"
	binaryFlag   = "binary-pcd"
)

var app = &cli.App{
	Name:            "dcgrab",
	Usage:           "capture frames from depth cameras",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  logLevelFlag,
			Usage: "minimum level of the logs: debug, info, warn or error",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  logFileFlag,
			Usage: "also write the logs to a rotated `FILE`",
		},
	},
	Before: setupLogging,
	After:  closeLogFile,
	Commands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "list the plugged devices of every family",
			Action: ListAction,
		},
		{
			Name:  "capture",
			Usage: "capture frames from a device and write them to a directory",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  deviceFlag,
					Usage: "device family: azure, orbbec, kinect2 or a full family name",
					Value: "azure",
				},
				&cli.UintFlag{
					Name:  indexFlag,
					Usage: "open index of the device",
				},
				&cli.IntFlag{
					Name:  framesFlag,
					Usage: "number of frames to write",
					Value: 10,
				},
				&cli.StringFlag{
					Name:     outFlag,
					Usage:    "write the frames to `DIR`",
					Required: true,
				},
				&cli.StringFlag{
					Name:  settingsFlag,
					Usage: "load device settings from a JSON `FILE`",
				},
				&cli.StringSliceFlag{
					Name:  setFlag,
					Usage: "override a setting, as key.path=value",
				},
				&cli.StringFlag{
					Name:  filtersFlag,
					Usage: "load depth filters from a JSON `FILE`",
				},
				&cli.BoolFlag{
					Name:  watchFlag,
					Usage: "reload the filters file when it changes",
				},
				&cli.StringFlag{
					Name:  imageFlag,
					Usage: "image file format: png or ppm",
					Value: "png",
				},
				&cli.BoolFlag{
					Name:  binaryFlag,
					Usage: "write binary point clouds instead of ascii ones",
				},
			},
			Action: CaptureAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the device settings",
			Action: SchemaAction,
		},
	},
}

// NewApp returns the app.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
