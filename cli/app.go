// Package cli contains the pcgrid command line app.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	flagConfig = "config"
	flagDebug  = "debug"

	// Encoding flags.
	flagCodec    = "codec"
	flagDims     = "dims"
	flagBBox     = "bbox"
	flagOut      = "out"
	flagParallel = "parallel"
	flagASCII    = "ascii"
)

var codecFlag = &cli.StringFlag{
	Name:  flagCodec,
	Usage: "codec to quantize with: wide, narrow or packed",
}

var dimsFlag = &cli.StringFlag{
	Name:  flagDims,
	Usage: "grid dimensions as `X,Y,Z` (each 1-255)",
}

var bboxFlag = &cli.StringFlag{
	Name:  flagBBox,
	Usage: "encoding domain as `MINX,MINY,MINZ,MAXX,MAXY,MAXZ`; defaults to the bounds of each cloud",
}

var app = &cli.App{
	Name:            "pcgrid",
	Usage:           "encode point clouds into compact voxel grid messages",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load encoding configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "encode",
			Usage:     "encode .pcd or .las files into .pcg messages",
			ArgsUsage: "<file> [file...]",
			Flags: []cli.Flag{
				codecFlag,
				dimsFlag,
				bboxFlag,
				&cli.StringFlag{
					Name:  flagOut,
					Usage: "directory to write messages to; defaults to the directory of each input",
				},
				&cli.IntFlag{
					Name:  flagParallel,
					Usage: "number of files to encode at once",
					Value: 4,
				},
			},
			Action: EncodeAction,
		},
		{
			Name:      "decode",
			Usage:     "decode a .pcg message into a point cloud file",
			ArgsUsage: "<file.pcg>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagOut,
					Usage: "`FILE` to write, .pcd or .las; defaults to the input with a .pcd extension",
				},
				&cli.BoolFlag{
					Name:  flagASCII,
					Usage: "write pcd output as ascii instead of binary",
				},
			},
			Action: DecodeAction,
		},
		{
			Name:      "inspect",
			Usage:     "print the header and occupied cells of a .pcg message",
			ArgsUsage: "<file.pcg>",
			Action:    InspectAction,
		},
		{
			Name:      "roundtrip",
			Usage:     "encode and decode a point cloud and report the reconstruction error",
			ArgsUsage: "<file>",
			Flags: []cli.Flag{
				codecFlag,
				dimsFlag,
				bboxFlag,
			},
			Action: RoundTripAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
