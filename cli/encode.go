package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"go.viam.com/pcgrid/config"
	"go.viam.com/pcgrid/encoder"
	"go.viam.com/pcgrid/logging"
	"go.viam.com/pcgrid/pointcloud"
)

// MessageExt is the extension of files holding an encoded grid message.
const MessageExt = ".pcg"

// EncodeAction encodes every file given as an argument.
func EncodeAction(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return Errorf("encode requires at least one input file")
	}
	conf, err := loadEncodeConfig(c)
	if err != nil {
		return err
	}
	return withLogger(conf, func(logger logging.Logger) error {
		outputs, err := encodeFiles(c.Context, conf, c.Args().Slice(), c.String(flagOut), c.Int(flagParallel), logger)
		for _, out := range outputs {
			if out != "" {
				printf(c.App.Writer, "wrote %s", out)
			}
		}
		return err
	})
}

// encodeFiles encodes the inputs concurrently, at most parallel at a time, each with its own
// encoder. It returns the paths written, in input order; entries for inputs that were not
// written are empty.
func encodeFiles(
	ctx context.Context,
	conf *config.Config,
	inputs []string,
	outDir string,
	parallel int,
	logger logging.Logger,
) ([]string, error) {
	if parallel < 1 {
		parallel = 1
	}
	outputs := make([]string, len(inputs))
	errs, ctx := errgroup.WithContext(ctx)
	errs.SetLimit(parallel)
	for i, input := range inputs {
		i, input := i, input
		errs.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := outputPath(input, outDir, MessageExt)
			if err := encodeFile(conf, input, out, logger.Sublogger(filepath.Base(input))); err != nil {
				return errors.Wrapf(err, "encoding %q", input)
			}
			outputs[i] = out
			return nil
		})
	}
	return outputs, errs.Wait()
}

func encodeFile(conf *config.Config, input, output string, logger logging.Logger) error {
	cloud, err := pointcloud.NewFromFile(input)
	if err != nil {
		return err
	}

	msg, err := encodeCloud(encoder.NewGridEncoder(logger), cloud, conf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, msg, 0o600); err != nil {
		return err
	}
	logger.Infow("encoded", "points", cloud.Size(), "bytes", len(msg), "output", output)
	return nil
}

// outputPath replaces the extension of input with ext, placing the result in dir if it is set.
func outputPath(input, dir, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ext
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base)
}

// encodeCloud encodes cloud over the configured bounding box, or over its own bounds when none
// is configured.
func encodeCloud(enc *encoder.GridEncoder, cloud pointcloud.PointCloud, conf *config.Config) ([]byte, error) {
	if conf.BoundingBox != nil {
		return enc.EncodeWithBounds(cloud, conf.GridDimensions, *conf.BoundingBox, *conf.Codec)
	}
	return enc.Encode(cloud, conf.GridDimensions, *conf.Codec)
}
