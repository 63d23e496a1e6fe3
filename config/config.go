// Package config defines the JSON description of an encode job and how it is read from disk.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/pcgrid/codec"
	"go.viam.com/pcgrid/grid"
	"go.viam.com/pcgrid/logging"
	"go.viam.com/pcgrid/pointcloud"
)

// Config describes how point clouds are encoded.
type Config struct {
	ConfigFilePath string `json:"-"`

	Codec          *codec.Codec            `json:"codec,omitempty"`
	GridDimensions grid.Dimensions         `json:"grid_dimensions"`
	BoundingBox    *pointcloud.BoundingBox `json:"bounding_box,omitempty"`
	Log            *LogConfig              `json:"log,omitempty"`
}

// LogConfig controls the level and destination of log output.
type LogConfig struct {
	Level logging.Level `json:"level"`
	// File, if set, receives log lines in addition to stdout.
	File string `json:"file,omitempty"`
	// MaxSizeMB is the size at which File is rotated. Zero uses the default.
	MaxSizeMB int `json:"max_size_mb,omitempty"`
}

// Validate ensures the configuration describes an encode job that can run.
func (conf *Config) Validate(path string) error {
	if conf.Codec == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "codec")
	}
	if err := conf.Codec.Validate(); err != nil {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.codec", path), err)
	}
	if conf.GridDimensions == (grid.Dimensions{}) {
		return utils.NewConfigValidationFieldRequiredError(path, "grid_dimensions")
	}
	if err := conf.GridDimensions.Validate(); err != nil {
		return utils.NewConfigValidationError(fmt.Sprintf("%s.grid_dimensions", path), err)
	}
	if conf.BoundingBox != nil {
		if err := conf.BoundingBox.ValidateExtent(); err != nil {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.bounding_box", path), err)
		}
	}
	if conf.Log != nil {
		if err := conf.Log.Validate(fmt.Sprintf("%s.log", path)); err != nil {
			return err
		}
	}
	return nil
}

// Validate ensures the log configuration is usable.
func (conf *LogConfig) Validate(path string) error {
	if conf.MaxSizeMB < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_size_mb must be positive, got %d", conf.MaxSizeMB))
	}
	return nil
}

// Read reads a config from the given file, expanding environment variables first. The config
// is not validated so that callers can apply overrides before calling Validate.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %q", filePath)
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	conf := Config{ConfigFilePath: originalPath}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&conf); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	return &conf, nil
}
