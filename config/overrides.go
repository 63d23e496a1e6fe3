package config

import (
	"go.viam.com/pcgrid/codec"
	"go.viam.com/pcgrid/grid"
	"go.viam.com/pcgrid/logging"
	"go.viam.com/pcgrid/pointcloud"
)

// Overrides holds values given on the command line. Unset fields leave the file value alone.
type Overrides struct {
	Codec          *codec.Codec
	GridDimensions *grid.Dimensions
	BoundingBox    *pointcloud.BoundingBox
	Debug          bool
}

// Merge returns a copy of conf with the overrides applied. conf may be nil, in which case the
// overrides alone make up the result.
func Merge(conf *Config, overrides Overrides) *Config {
	var merged Config
	if conf != nil {
		merged = *conf
		if conf.Log != nil {
			logConf := *conf.Log
			merged.Log = &logConf
		}
	}
	if overrides.Codec != nil {
		c := *overrides.Codec
		merged.Codec = &c
	}
	if overrides.GridDimensions != nil {
		merged.GridDimensions = *overrides.GridDimensions
	}
	if overrides.BoundingBox != nil {
		bb := *overrides.BoundingBox
		merged.BoundingBox = &bb
	}
	return merged.withDebug(overrides.Debug)
}

func (conf Config) withDebug(debug bool) *Config {
	if !debug {
		return &conf
	}
	if conf.Log == nil {
		conf.Log = &LogConfig{}
	}
	conf.Log.Level = logging.DEBUG
	return &conf
}
