package encoder

import (
	"encoding/binary"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/pcgrid/codec"
	"go.viam.com/pcgrid/grid"
	"go.viam.com/pcgrid/logging"
	"go.viam.com/pcgrid/pointcloud"
)

var allCodecs = []codec.Codec{codec.Wide, codec.Narrow, codec.Packed}

func tenCube() pointcloud.BoundingBox {
	return pointcloud.NewBoundingBox(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10})
}

func TestEncodeScenario(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cloud, err := pointcloud.NewFromPoints(
		pointcloud.NewColoredPoint(r3.Vector{X: 9, Y: 9, Z: 9}, r3.Vector{X: 1}),
	)
	test.That(t, err, test.ShouldBeNil)

	enc := NewGridEncoder(logger)
	msg, err := enc.EncodeWithBounds(cloud, grid.NewDimensions(2, 2, 2), tenCube(), codec.Narrow)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(msg), test.ShouldEqual, HeaderSize+8*4+6)
	test.That(t, len(msg), test.ShouldEqual, MessageSize(grid.NewDimensions(2, 2, 2), codec.Narrow, 1))

	test.That(t, msg[:4], test.ShouldResemble, []byte{byte(codec.Narrow), 2, 2, 2})
	for idx := 0; idx < 7; idx++ {
		test.That(t, binary.LittleEndian.Uint32(msg[HeaderSize+idx*4:]), test.ShouldEqual, uint32(0))
	}
	cell7 := HeaderSize + 7*4
	test.That(t, binary.LittleEndian.Uint32(msg[cell7:]), test.ShouldEqual, uint32(1))
	test.That(t, msg[cell7+4:], test.ShouldResemble, []byte{204, 204, 204, 255, 0, 0})

	out := pointcloud.New()
	test.That(t, enc.Decode(msg, out), test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 1)
	p := out.At(0)
	test.That(t, p.Position.X, test.ShouldAlmostEqual, 9.0, 1e-9)
	test.That(t, p.Position.Y, test.ShouldAlmostEqual, 9.0, 1e-9)
	test.That(t, p.Position.Z, test.ShouldAlmostEqual, 9.0, 1e-9)
	test.That(t, p.Color, test.ShouldResemble, r3.Vector{X: 1})
	test.That(t, p.HasColor, test.ShouldBeTrue)
}

func TestRoundTripBound(t *testing.T) {
	bb := pointcloud.NewBoundingBox(r3.Vector{X: -4, Y: 0, Z: 2}, r3.Vector{X: 4, Y: 1, Z: 34})
	dims := grid.NewDimensions(4, 3, 5)
	cloud := pointcloud.MakeTestPointCloud(500, bb, 3)

	for _, c := range allCodecs {
		t.Run(c.String(), func(t *testing.T) {
			enc := NewGridEncoder(logging.NewTestLogger(t))
			msg, err := enc.EncodeWithBounds(cloud, dims, bb, c)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, len(msg), test.ShouldEqual, MessageSize(dims, c, cloud.Size()))

			out := pointcloud.New()
			test.That(t, enc.Decode(msg, out), test.ShouldBeNil)
			test.That(t, out.Size(), test.ShouldEqual, cloud.Size())

			// Decoded points come back cell-major, in encounter order inside each cell.
			ref := grid.New()
			test.That(t, ref.Reset(dims, bb, c), test.ShouldBeNil)
			order := make([]int, cloud.Size())
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(a, b int) bool {
				return ref.CellIndex(cloud.At(order[a]).Position) < ref.CellIndex(cloud.At(order[b]).Position)
			})

			posBound := codec.MaxError(c, ref.CellBoundingBox()).Add(r3.Vector{X: 1e-9, Y: 1e-9, Z: 1e-9})
			clrBound := codec.MaxError(c, pointcloud.UnitBoundingBox()).Add(r3.Vector{X: 1e-9, Y: 1e-9, Z: 1e-9})
			for i, srcIdx := range order {
				want, got := cloud.At(srcIdx), out.At(i)
				diff := got.Position.Sub(want.Position).Abs()
				test.That(t, diff.X, test.ShouldBeLessThanOrEqualTo, posBound.X)
				test.That(t, diff.Y, test.ShouldBeLessThanOrEqualTo, posBound.Y)
				test.That(t, diff.Z, test.ShouldBeLessThanOrEqualTo, posBound.Z)
				cdiff := got.Color.Sub(want.Color).Abs()
				test.That(t, cdiff.X, test.ShouldBeLessThanOrEqualTo, clrBound.X)
				test.That(t, cdiff.Y, test.ShouldBeLessThanOrEqualTo, clrBound.Y)
				test.That(t, cdiff.Z, test.ShouldBeLessThanOrEqualTo, clrBound.Z)
			}
		})
	}
}

func TestWideRoundTripIsExact(t *testing.T) {
	points := []pointcloud.Point{
		pointcloud.NewColoredPoint(r3.Vector{X: 1.5, Y: 2.25, Z: 9}, r3.Vector{X: 0.5, Y: 0.25, Z: 1}),
		pointcloud.NewColoredPoint(r3.Vector{X: 7.75, Y: 0.125, Z: 3}, r3.Vector{X: 0, Y: 0.75, Z: 0.125}),
		pointcloud.NewColoredPoint(r3.Vector{X: 10, Y: 10, Z: 10}, r3.Vector{X: 1, Y: 1, Z: 1}),
	}
	cloud, err := pointcloud.NewFromPoints(points...)
	test.That(t, err, test.ShouldBeNil)

	enc := NewGridEncoder(logging.NewTestLogger(t))
	msg, err := enc.EncodeWithBounds(cloud, grid.NewDimensions(2, 2, 2), tenCube(), codec.Wide)
	test.That(t, err, test.ShouldBeNil)

	out := pointcloud.New()
	test.That(t, enc.Decode(msg, out), test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 3)
	// cells 4, 1 and 7
	test.That(t, out.At(0), test.ShouldResemble, points[1])
	test.That(t, out.At(1), test.ShouldResemble, points[0])
	test.That(t, out.At(2), test.ShouldResemble, points[2])
}

func TestOutOfDomainPointsAreDropped(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	outside := r3.Vector{X: 10.5, Y: 5, Z: 5}
	cloud, err := pointcloud.NewFromPoints(
		pointcloud.NewColoredPoint(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 1}),
		pointcloud.NewColoredPoint(outside, r3.Vector{Y: 1}),
		pointcloud.NewColoredPoint(r3.Vector{X: -1, Y: -1, Z: -1}, r3.Vector{Z: 1}),
	)
	test.That(t, err, test.ShouldBeNil)

	for _, c := range allCodecs {
		enc := NewGridEncoder(logger)
		msg, err := enc.EncodeWithBounds(cloud, grid.NewDimensions(3, 3, 3), tenCube(), c)
		test.That(t, err, test.ShouldBeNil)
		out := pointcloud.New()
		test.That(t, enc.Decode(msg, out), test.ShouldBeNil)
		test.That(t, out.Size(), test.ShouldEqual, 1)
		test.That(t, out.At(0).Position.Distance(r3.Vector{X: 1, Y: 1, Z: 1}), test.ShouldBeLessThan, 0.1)
		test.That(t, out.MetaData().MaxX, test.ShouldBeLessThan, 10.0)
	}
	test.That(t, logs.FilterMessage("dropped points outside bounding box").Len(), test.ShouldEqual, len(allCodecs))
}

func TestEncodeUsesCloudBounds(t *testing.T) {
	cloud := pointcloud.MakeTestPointCloud(200,
		pointcloud.NewBoundingBox(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 2, Y: 3, Z: 4}), 9)

	enc := NewGridEncoder(logging.NewTestLogger(t))
	msg, err := enc.Encode(cloud, grid.NewDimensions(4, 4, 4), codec.Packed)
	test.That(t, err, test.ShouldBeNil)

	header, err := ReadHeader(msg)
	test.That(t, err, test.ShouldBeNil)
	meta := cloud.MetaData()
	test.That(t, header.BoundingBox.Min.X, test.ShouldBeLessThanOrEqualTo, meta.MinX)
	test.That(t, header.BoundingBox.Max.Z, test.ShouldBeGreaterThanOrEqualTo, meta.MaxZ)

	out := pointcloud.New()
	test.That(t, enc.Decode(msg, out), test.ShouldBeNil)
	// every point, including those on the faces of the tight box, survives
	test.That(t, out.Size(), test.ShouldEqual, cloud.Size())
}

func TestDeterminism(t *testing.T) {
	cloud := pointcloud.MakeTestPointCloud(300, tenCube(), 11)
	dims := grid.NewDimensions(5, 5, 5)

	for _, c := range allCodecs {
		enc := NewGridEncoder(logging.NewTestLogger(t))
		first, err := enc.EncodeWithBounds(cloud, dims, tenCube(), c)
		test.That(t, err, test.ShouldBeNil)
		second, err := enc.EncodeWithBounds(cloud, dims, tenCube(), c)
		test.That(t, err, test.ShouldBeNil)
		third, err := NewGridEncoder(logging.NewTestLogger(t)).EncodeWithBounds(cloud, dims, tenCube(), c)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, second, test.ShouldResemble, first)
		test.That(t, third, test.ShouldResemble, first)
	}
}

func TestBoundaryTieBreak(t *testing.T) {
	cloud, err := pointcloud.NewFromPoints(
		pointcloud.NewColoredPoint(r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{}),
	)
	test.That(t, err, test.ShouldBeNil)
	msg, err := NewGridEncoder(logging.NewTestLogger(t)).EncodeWithBounds(
		cloud, grid.NewDimensions(2, 2, 2), tenCube(), codec.Narrow)
	test.That(t, err, test.ShouldBeNil)

	summary, err := Inspect(msg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Counts, test.ShouldResemble, []uint32{1, 0, 0, 0, 0, 0, 0, 0})
}

func TestZeroDimensionRejected(t *testing.T) {
	cloud, err := pointcloud.NewFromPoints(pointcloud.NewPoint(r3.Vector{X: 1, Y: 1, Z: 1}))
	test.That(t, err, test.ShouldBeNil)
	enc := NewGridEncoder(logging.NewTestLogger(t))

	for _, dims := range []grid.Dimensions{{X: 0, Y: 2, Z: 2}, {X: 2, Y: 0, Z: 2}, {X: 2, Y: 2, Z: 0}} {
		msg, err := enc.EncodeWithBounds(cloud, dims, tenCube(), codec.Narrow)
		test.That(t, msg, test.ShouldBeNil)
		test.That(t, errors.Is(err, grid.ErrInvalidDimensions), test.ShouldBeTrue)
		test.That(t, IsFormatError(err), test.ShouldBeFalse)
	}

	_, err = enc.Encode(cloud, grid.NewDimensions(2, 2, 2), codec.Narrow)
	test.That(t, errors.Is(err, pointcloud.ErrDegenerateBoundingBox), test.ShouldBeTrue)

	_, err = enc.EncodeWithBounds(cloud, grid.NewDimensions(2, 2, 2), tenCube(), codec.Codec(42))
	test.That(t, errors.Is(err, codec.ErrUnknownCodec), test.ShouldBeTrue)

	_, err = enc.Encode(pointcloud.New(), grid.NewDimensions(2, 2, 2), codec.Narrow)
	test.That(t, errors.Is(err, pointcloud.ErrDegenerateBoundingBox), test.ShouldBeTrue)
}

func TestEmptyCloudWithBounds(t *testing.T) {
	enc := NewGridEncoder(logging.NewTestLogger(t))
	msg, err := enc.EncodeWithBounds(pointcloud.New(), grid.NewDimensions(3, 1, 2), tenCube(), codec.Packed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(msg), test.ShouldEqual, HeaderSize+6*4)

	out := pointcloud.New()
	test.That(t, enc.Decode(msg, out), test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 0)
}

func encodedSample(t *testing.T, c codec.Codec) []byte {
	t.Helper()
	msg, err := NewGridEncoder(logging.NewTestLogger(t)).EncodeWithBounds(
		pointcloud.MakeTestPointCloud(40, tenCube(), 5), grid.NewDimensions(2, 3, 2), tenCube(), c)
	test.That(t, err, test.ShouldBeNil)
	return msg
}

func TestMalformedMessages(t *testing.T) {
	enc := NewGridEncoder(logging.NewTestLogger(t))

	t.Run("truncated header", func(t *testing.T) {
		msg := encodedSample(t, codec.Narrow)
		for n := 0; n < HeaderSize; n++ {
			out := pointcloud.New()
			err := enc.Decode(msg[:n:n], out)
			test.That(t, errors.Is(err, ErrTruncatedHeader), test.ShouldBeTrue)
			test.That(t, out.Size(), test.ShouldEqual, 0)
		}
	})

	t.Run("unknown codec", func(t *testing.T) {
		msg := encodedSample(t, codec.Narrow)
		msg[0] = 3
		out := pointcloud.New()
		err := enc.Decode(msg, out)
		test.That(t, errors.Is(err, codec.ErrUnknownCodec), test.ShouldBeTrue)
		test.That(t, IsFormatError(err), test.ShouldBeTrue)
		test.That(t, out.Size(), test.ShouldEqual, 0)
	})

	t.Run("zero dimension", func(t *testing.T) {
		msg := encodedSample(t, codec.Narrow)
		msg[2] = 0
		err := enc.Decode(msg, pointcloud.New())
		test.That(t, errors.Is(err, ErrMalformedHeader), test.ShouldBeTrue)
		_, err = Inspect(msg)
		test.That(t, errors.Is(err, ErrMalformedHeader), test.ShouldBeTrue)
	})

	t.Run("truncated cells", func(t *testing.T) {
		for _, c := range allCodecs {
			msg := encodedSample(t, c)
			// every strict prefix past the header is rejected without reading past its end
			for n := HeaderSize; n < len(msg); n++ {
				out := pointcloud.New()
				err := enc.Decode(msg[:n:n], out)
				test.That(t, errors.Is(err, ErrTruncatedCell), test.ShouldBeTrue)
				test.That(t, out.Size(), test.ShouldEqual, 0)
			}
		}
	})

	t.Run("oversized count", func(t *testing.T) {
		msg := encodedSample(t, codec.Wide)
		binary.LittleEndian.PutUint32(msg[HeaderSize:], math.MaxUint32)
		err := enc.Decode(msg, pointcloud.New())
		test.That(t, errors.Is(err, ErrTruncatedCell), test.ShouldBeTrue)
		_, err = Inspect(msg)
		test.That(t, errors.Is(err, ErrTruncatedCell), test.ShouldBeTrue)
	})

	t.Run("cell counts exceed message", func(t *testing.T) {
		header, err := Header{
			Codec:       codec.Narrow,
			Dimensions:  grid.NewDimensions(255, 255, 255),
			BoundingBox: tenCube(),
		}.MarshalBinary()
		test.That(t, err, test.ShouldBeNil)

		numCells := enc.grid.NumCells()
		out := pointcloud.New()
		err = enc.Decode(header, out)
		test.That(t, errors.Is(err, ErrTruncatedCell), test.ShouldBeTrue)
		test.That(t, out.Size(), test.ShouldEqual, 0)
		// rejected before the grid is resized
		test.That(t, enc.grid.NumCells(), test.ShouldEqual, numCells)

		_, err = Inspect(header)
		test.That(t, errors.Is(err, ErrTruncatedCell), test.ShouldBeTrue)
	})

	t.Run("non-finite wide values", func(t *testing.T) {
		for _, bad := range []float32{
			float32(math.NaN()),
			float32(math.Inf(1)),
			float32(math.Inf(-1)),
		} {
			// the far corner lands last in the last cell, so every other point decodes fine
			cloud := pointcloud.MakeTestPointCloud(40, tenCube(), 5)
			test.That(t, cloud.Append(pointcloud.NewColoredPoint(r3.Vector{X: 10, Y: 10, Z: 10}, r3.Vector{Z: 1})),
				test.ShouldBeNil)
			msg, err := NewGridEncoder(logging.NewTestLogger(t)).EncodeWithBounds(
				cloud, grid.NewDimensions(2, 3, 2), tenCube(), codec.Wide)
			test.That(t, err, test.ShouldBeNil)
			binary.LittleEndian.PutUint32(msg[len(msg)-4:], math.Float32bits(bad))
			out := pointcloud.New()
			err = enc.Decode(msg, out)
			test.That(t, errors.Is(err, ErrMalformedCell), test.ShouldBeTrue)
			test.That(t, IsFormatError(err), test.ShouldBeTrue)
			test.That(t, out.Size(), test.ShouldEqual, 0)

			_, err = Inspect(msg)
			test.That(t, errors.Is(err, ErrMalformedCell), test.ShouldBeTrue)
		}
	})

	t.Run("out of range wide values are clamped", func(t *testing.T) {
		cloud, err := pointcloud.NewFromPoints(
			pointcloud.NewColoredPoint(r3.Vector{X: 9, Y: 9, Z: 9}, r3.Vector{X: 1}),
		)
		test.That(t, err, test.ShouldBeNil)
		msg, err := enc.EncodeWithBounds(cloud, grid.NewDimensions(2, 2, 2), tenCube(), codec.Wide)
		test.That(t, err, test.ShouldBeNil)

		// cell 7 holds the point; its position starts after the header and eight counts
		pos := HeaderSize + 8*cellCountSize
		binary.LittleEndian.PutUint32(msg[pos:], math.Float32bits(1e30))
		binary.LittleEndian.PutUint32(msg[pos+4:], math.Float32bits(-1e30))
		binary.LittleEndian.PutUint32(msg[pos+12:], math.Float32bits(-1e30))

		out := pointcloud.New()
		test.That(t, enc.Decode(msg, out), test.ShouldBeNil)
		test.That(t, out.Size(), test.ShouldEqual, 1)
		p := out.At(0)
		test.That(t, p.Position, test.ShouldResemble, r3.Vector{X: 10, Y: 5, Z: 9})
		test.That(t, p.Color, test.ShouldResemble, r3.Vector{X: 0})
	})

	t.Run("trailing bytes are ignored", func(t *testing.T) {
		msg := encodedSample(t, codec.Packed)
		out := pointcloud.New()
		test.That(t, enc.Decode(append(msg, 0xde, 0xad), out), test.ShouldBeNil)
		test.That(t, out.Size(), test.ShouldEqual, 40)
	})

	// the encoder is still usable after failures
	out := pointcloud.New()
	test.That(t, enc.Decode(encodedSample(t, codec.Narrow), out), test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 40)
}

func TestDecodeLogsAppendedPoints(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	enc := NewGridEncoder(logger)
	out := pointcloud.New()
	test.That(t, enc.Decode(encodedSample(t, codec.Packed), out), test.ShouldBeNil)

	decoded := logs.FilterMessage("decoded point cloud").All()
	test.That(t, len(decoded), test.ShouldEqual, 1)
	test.That(t, decoded[0].ContextMap()["points"], test.ShouldEqual, int64(out.Size()))
	test.That(t, decoded[0].ContextMap()["codec"], test.ShouldEqual, "packed")
}

func TestHeader(t *testing.T) {
	h := Header{
		Codec:       codec.Packed,
		Dimensions:  grid.NewDimensions(7, 1, 255),
		BoundingBox: pointcloud.NewBoundingBox(r3.Vector{X: -1.5, Y: 0, Z: 2}, r3.Vector{X: 3, Y: 0.25, Z: 1024}),
	}
	data, err := h.MarshalBinary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(data), test.ShouldEqual, HeaderSize)
	test.That(t, data[:4], test.ShouldResemble, []byte{2, 7, 1, 255})

	var got Header
	test.That(t, got.UnmarshalBinary(data), test.ShouldBeNil)
	test.That(t, cmp.Diff(h, got), test.ShouldBeEmpty)
}

func TestWidenToFloat32(t *testing.T) {
	bb := pointcloud.NewBoundingBox(r3.Vector{X: 0.1, Y: -0.1, Z: 1}, r3.Vector{X: 0.3, Y: -0.01, Z: 2})
	wide := widenToFloat32(bb)
	test.That(t, wide.Min.X, test.ShouldBeLessThanOrEqualTo, bb.Min.X)
	test.That(t, wide.Min.Y, test.ShouldBeLessThanOrEqualTo, bb.Min.Y)
	test.That(t, wide.Max.X, test.ShouldBeGreaterThanOrEqualTo, bb.Max.X)
	test.That(t, wide.Max.Y, test.ShouldBeGreaterThanOrEqualTo, bb.Max.Y)
	test.That(t, wide.Min.Z, test.ShouldEqual, 1.0)
	test.That(t, wide.Max.Z, test.ShouldEqual, 2.0)
	test.That(t, float64(float32(wide.Min.X)), test.ShouldEqual, wide.Min.X)
	test.That(t, float64(float32(wide.Max.Y)), test.ShouldEqual, wide.Max.Y)
}

func TestInspect(t *testing.T) {
	msg := encodedSample(t, codec.Narrow)
	summary, err := Inspect(msg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Codec, test.ShouldEqual, codec.Narrow)
	test.That(t, summary.Dimensions, test.ShouldResemble, grid.NewDimensions(2, 3, 2))
	test.That(t, len(summary.Counts), test.ShouldEqual, 12)
	test.That(t, summary.Points, test.ShouldEqual, 40)
	test.That(t, summary.Bytes, test.ShouldEqual, len(msg))
	total := uint32(0)
	occupied := 0
	for _, c := range summary.Counts {
		total += c
		if c > 0 {
			occupied++
		}
	}
	test.That(t, total, test.ShouldEqual, uint32(40))
	test.That(t, summary.OccupiedCells, test.ShouldEqual, occupied)
}

func TestConcurrentCallsOnOneEncoder(t *testing.T) {
	cloud := pointcloud.MakeTestPointCloud(100, tenCube(), 21)
	enc := NewGridEncoder(logging.NewTestLogger(t))
	want, err := enc.EncodeWithBounds(cloud, grid.NewDimensions(4, 4, 4), tenCube(), codec.Narrow)
	test.That(t, err, test.ShouldBeNil)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = enc.EncodeWithBounds(cloud, grid.NewDimensions(4, 4, 4), tenCube(), codec.Narrow)
			if errs[i] == nil {
				errs[i] = enc.Decode(results[i], pointcloud.New())
			}
		}(i)
	}
	wg.Wait()
	for i := range results {
		test.That(t, errs[i], test.ShouldBeNil)
		test.That(t, results[i], test.ShouldResemble, want)
	}
}
