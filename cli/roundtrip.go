package cli

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/pcgrid/codec"
	"go.viam.com/pcgrid/config"
	"go.viam.com/pcgrid/encoder"
	"go.viam.com/pcgrid/grid"
	"go.viam.com/pcgrid/logging"
	"go.viam.com/pcgrid/pointcloud"
)

// rawPointSize is the size of a point stored as float32 position and color.
const rawPointSize = 24

// RoundTripAction encodes and decodes a point cloud and reports how far the reconstruction is
// from the input.
func RoundTripAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return Errorf("roundtrip requires exactly one input file")
	}
	conf, err := loadEncodeConfig(c)
	if err != nil {
		return err
	}
	return withLogger(conf, func(logger logging.Logger) error {
		cloud, err := pointcloud.NewFromFile(c.Args().First())
		if err != nil {
			return err
		}
		report, err := roundTrip(cloud, conf, logger)
		if err != nil {
			return err
		}
		if report.Dropped > 0 {
			warningf(c.App.ErrWriter, "%d points fell outside the bounding box and were dropped", report.Dropped)
		}
		printf(c.App.Writer, "%s", report.String())
		return nil
	})
}

// AxisError summarizes the absolute reconstruction error along one axis.
type AxisError struct {
	Mean, StdDev, P95, Max float64
	// Bound is the largest error the codec allows on this axis.
	Bound float64
}

// RoundTripReport describes one encode and decode of a cloud.
type RoundTripReport struct {
	Codec        codec.Codec
	Dimensions   grid.Dimensions
	Points       int
	Dropped      int
	MessageBytes int
	Position     [3]AxisError
	Color        [3]AxisError
}

// CompressionRatio compares the size of the encoded points stored as float32 values to the
// message size.
func (r RoundTripReport) CompressionRatio() float64 {
	if r.MessageBytes == 0 {
		return 0
	}
	return float64((r.Points-r.Dropped)*rawPointSize) / float64(r.MessageBytes)
}

func (r RoundTripReport) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Attribute", "Mean", "StdDev", "P95", "Max", "Bound"})
	for i, axis := range []string{"x", "y", "z"} {
		e := r.Position[i]
		t.AppendRow(table.Row{axis, e.Mean, e.StdDev, e.P95, e.Max, e.Bound})
	}
	for i, channel := range []string{"r", "g", "b"} {
		e := r.Color[i]
		t.AppendRow(table.Row{channel, e.Mean, e.StdDev, e.P95, e.Max, e.Bound})
	}
	return fmt.Sprintf("%s %s: %d points, %d bytes, ratio %.2f\n%s",
		r.Codec, r.Dimensions, r.Points-r.Dropped, r.MessageBytes, r.CompressionRatio(), t.Render())
}

// roundTrip encodes cloud as conf describes, decodes the message and pairs every decoded point
// with its source point to measure the error.
func roundTrip(cloud pointcloud.PointCloud, conf *config.Config, logger logging.Logger) (RoundTripReport, error) {
	enc := encoder.NewGridEncoder(logger)
	msg, err := encodeCloud(enc, cloud, conf)
	if err != nil {
		return RoundTripReport{}, err
	}
	header, err := encoder.ReadHeader(msg)
	if err != nil {
		return RoundTripReport{}, err
	}
	decoded := pointcloud.NewWithPrealloc(cloud.Size())
	if err := enc.Decode(msg, decoded); err != nil {
		return RoundTripReport{}, err
	}

	// The decoder emits points cell by cell and in encounter order within a cell, so a stable
	// sort of the kept source points by cell index lines them up with the decoded points.
	g := grid.New()
	if err := g.Reset(header.Dimensions, header.BoundingBox, header.Codec); err != nil {
		return RoundTripReport{}, err
	}
	type indexed struct {
		cell  int
		point pointcloud.Point
	}
	kept := make([]indexed, 0, cloud.Size())
	cloud.Iterate(0, 0, func(_ int, p pointcloud.Point) bool {
		if header.BoundingBox.Contains(p.Position) {
			kept = append(kept, indexed{g.CellIndex(p.Position), p})
		}
		return true
	})
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].cell < kept[j].cell })
	if len(kept) != decoded.Size() {
		return RoundTripReport{}, Errorf("decoded %d points but encoded %d", decoded.Size(), len(kept))
	}

	posErrs, clrErrs := make([][]float64, 3), make([][]float64, 3)
	for i, src := range kept {
		got := decoded.At(i)
		clr := src.point.Color
		if !src.point.HasColor {
			clr = r3.Vector{}
		}
		appendAbs(posErrs, got.Position.Sub(src.point.Position))
		appendAbs(clrErrs, got.Color.Sub(clr))
	}

	report := RoundTripReport{
		Codec:        header.Codec,
		Dimensions:   header.Dimensions,
		Points:       cloud.Size(),
		Dropped:      cloud.Size() - len(kept),
		MessageBytes: len(msg),
	}
	if report.Position, err = summarizeAxes(posErrs, codec.MaxError(header.Codec, g.CellBoundingBox())); err != nil {
		return RoundTripReport{}, err
	}
	if report.Color, err = summarizeAxes(clrErrs, codec.MaxError(header.Codec, pointcloud.UnitBoundingBox())); err != nil {
		return RoundTripReport{}, err
	}
	return report, nil
}

func appendAbs(errs [][]float64, d r3.Vector) {
	errs[0] = append(errs[0], math.Abs(d.X))
	errs[1] = append(errs[1], math.Abs(d.Y))
	errs[2] = append(errs[2], math.Abs(d.Z))
}

func summarizeAxes(errs [][]float64, bound r3.Vector) ([3]AxisError, error) {
	bounds := [3]float64{bound.X, bound.Y, bound.Z}
	var out [3]AxisError
	for i, e := range errs {
		out[i].Bound = bounds[i]
		if len(e) == 0 {
			continue
		}
		out[i].Mean, out[i].StdDev = stat.MeanStdDev(e, nil)
		if len(e) == 1 {
			out[i].StdDev = 0
		}
		out[i].Max = floats.Max(e)
		p95, err := stats.Percentile(e, 95)
		if err != nil {
			return out, err
		}
		out[i].P95 = p95
	}
	return out, nil
}
