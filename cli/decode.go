package cli

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/pcgrid/encoder"
	"go.viam.com/pcgrid/logging"
	"go.viam.com/pcgrid/pointcloud"
)

// DecodeAction decodes a single message into a point cloud file.
func DecodeAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return Errorf("decode requires exactly one input file")
	}
	input := c.Args().First()
	output := c.String(flagOut)
	if output == "" {
		output = outputPath(input, "", ".pcd")
	}
	if output == input {
		return Errorf("refusing to overwrite input %q", input)
	}

	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withLogger(conf, func(logger logging.Logger) error {
		cloud, err := decodeFile(input, logger)
		if err != nil {
			return err
		}
		if c.Bool(flagASCII) {
			err = writeASCIIPCD(cloud, output)
		} else {
			err = pointcloud.WriteToFile(cloud, output)
		}
		if err != nil {
			return errors.Wrapf(err, "writing %q", output)
		}
		printf(c.App.Writer, "wrote %d points to %s", cloud.Size(), output)
		return nil
	})
}

func decodeFile(input string, logger logging.Logger) (pointcloud.PointCloud, error) {
	msg, err := os.ReadFile(filepath.Clean(input))
	if err != nil {
		return nil, err
	}
	cloud := pointcloud.New()
	if err := encoder.NewGridEncoder(logger).Decode(msg, cloud); err != nil {
		if encoder.IsFormatError(err) {
			return nil, errors.Wrapf(err, "%q is not a valid grid message", input)
		}
		return nil, err
	}
	return cloud, nil
}

func writeASCIIPCD(cloud pointcloud.PointCloud, fn string) (err error) {
	if !strings.EqualFold(filepath.Ext(fn), ".pcd") {
		return errors.Errorf("--%s requires a .pcd output, got %q", flagASCII, fn)
	}
	f, createErr := os.Create(filepath.Clean(fn))
	if createErr != nil {
		return createErr
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err = pointcloud.ToPCD(cloud, w, pointcloud.PCDAscii); err != nil {
		return err
	}
	return w.Flush()
}
