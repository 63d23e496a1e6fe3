package cli

import (
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/pcgrid/codec"
	"go.viam.com/pcgrid/config"
	"go.viam.com/pcgrid/grid"
	"go.viam.com/pcgrid/logging"
	"go.viam.com/pcgrid/pointcloud"
)

// loadConfig reads the --config file, if any, and applies the flags of c on top of it. The
// result is not validated since decoding needs none of the encoding settings.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var conf *config.Config
	if path := c.String(flagConfig); path != "" {
		var err error
		if conf, err = config.Read(path); err != nil {
			return nil, err
		}
	}

	overrides := config.Overrides{Debug: c.Bool(flagDebug)}
	if c.IsSet(flagCodec) {
		parsed, err := codec.ParseCodec(c.String(flagCodec))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid --%s", flagCodec)
		}
		overrides.Codec = &parsed
	}
	if c.IsSet(flagDims) {
		dims, err := grid.ParseDimensions(c.String(flagDims))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid --%s", flagDims)
		}
		overrides.GridDimensions = &dims
	}
	if c.IsSet(flagBBox) {
		bb, err := parseBoundingBox(c.String(flagBBox))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid --%s", flagBBox)
		}
		overrides.BoundingBox = &bb
	}
	return config.Merge(conf, overrides), nil
}

// loadEncodeConfig is loadConfig for commands that encode.
func loadEncodeConfig(c *cli.Context) (*config.Config, error) {
	conf, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate("config"); err != nil {
		return nil, err
	}
	return conf, nil
}

// withLogger runs fn with the logger described by conf and releases it afterwards.
func withLogger(conf *config.Config, fn func(logger logging.Logger) error) error {
	logger, closeLog := conf.NewLogger("pcgrid")
	err := fn(logger)
	utils.UncheckedError(logger.Sync())
	if closeErr := closeLog(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func parseBoundingBox(s string) (pointcloud.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return pointcloud.BoundingBox{}, errors.Errorf("expected 6 comma separated values, got %d", len(parts))
	}
	vals := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return pointcloud.BoundingBox{}, errors.Wrapf(err, "value %d", i)
		}
		vals[i] = v
	}
	bb := pointcloud.NewBoundingBox(
		r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]},
		r3.Vector{X: vals[3], Y: vals[4], Z: vals[5]},
	)
	return bb, bb.ValidateExtent()
}
