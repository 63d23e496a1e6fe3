// Package encoder frames a voxel grid of quantized points into a single binary message and
// reconstructs an approximate point cloud from such a message.
//
// A message is a Header followed by every cell of the grid in linear index order (x fastest).
// Each cell is a little-endian uint32 attribute count followed by that many position and color
// pairs in the header's codec. Empty cells still write their zero count.
package encoder

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/pcgrid/codec"
	"go.viam.com/pcgrid/grid"
	"go.viam.com/pcgrid/logging"
	"go.viam.com/pcgrid/pointcloud"
)

const cellCountSize = 4

// GridEncoder encodes point clouds into grid messages and decodes them back. It owns a grid
// that is reused across calls; calls on one GridEncoder are serialized. Use one GridEncoder per
// goroutine to encode in parallel.
type GridEncoder struct {
	mu     sync.Mutex
	grid   *grid.Grid
	logger logging.Logger
}

// NewGridEncoder returns a GridEncoder logging to logger.
func NewGridEncoder(logger logging.Logger) *GridEncoder {
	return &GridEncoder{
		grid:   grid.New(),
		logger: logger,
	}
}

// Encode encodes cloud over its own bounding box.
func (e *GridEncoder) Encode(cloud pointcloud.PointCloud, dims grid.Dimensions, c codec.Codec) ([]byte, error) {
	return e.EncodeWithBounds(cloud, dims, cloud.MetaData().BoundingBox(), c)
}

// EncodeWithBounds encodes the points of cloud that lie inside bb. Points outside bb are
// dropped. The dimensions, box and codec are validated before any work is done.
func (e *GridEncoder) EncodeWithBounds(
	cloud pointcloud.PointCloud,
	dims grid.Dimensions,
	bb pointcloud.BoundingBox,
	c codec.Codec,
) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := bb.Validate(); err != nil {
		return nil, err
	}
	if err := e.grid.Reset(dims, widenToFloat32(bb), c); err != nil {
		return nil, err
	}
	stats, err := e.grid.Build(cloud)
	if err != nil {
		return nil, err
	}
	if stats.Dropped > 0 {
		e.logger.Debugw("dropped points outside bounding box", "dropped", stats.Dropped, "box", bb)
	}

	msg, err := encodeGrid(e.grid)
	if err != nil {
		return nil, err
	}
	e.logger.Debugw("encoded point cloud",
		"codec", c.String(),
		"dimensions", dims.String(),
		"points", stats.Points,
		"encoded", stats.Added,
		"occupied_cells", e.grid.OccupiedCells(),
		"bytes", len(msg),
	)
	return msg, nil
}

// MessageSize returns the size of a message holding points attributes in a grid of dims.
func MessageSize(dims grid.Dimensions, c codec.Codec, points int) int {
	return HeaderSize + dims.NumCells()*cellCountSize + points*c.AttributeSize()
}

func encodeGrid(g *grid.Grid) ([]byte, error) {
	q, err := g.Codec.Quantizer()
	if err != nil {
		return nil, err
	}
	valueSize := g.Codec.ValueSize()
	attrSize := g.Codec.AttributeSize()

	msg := make([]byte, MessageSize(g.Dimensions, g.Codec, g.Size()))
	Header{Codec: g.Codec, Dimensions: g.Dimensions, BoundingBox: g.BoundingBox}.put(msg)

	offset := HeaderSize
	for idx := 0; idx < g.NumCells(); idx++ {
		cell := g.Cell(idx)
		binary.LittleEndian.PutUint32(msg[offset:], uint32(len(cell)))
		offset += cellCountSize
		for _, attr := range cell {
			q.Put(msg[offset:], attr.Position)
			q.Put(msg[offset+valueSize:], attr.Color)
			offset += attrSize
		}
	}
	return msg, nil
}

// Decode reconstructs the points of msg and appends them to out, cell by cell in index order and
// in encounter order within a cell. The whole message is validated before anything is appended,
// so out is unchanged when msg is malformed. An error returned by out itself stops decoding and
// leaves the points appended so far. Use IsFormatError to tell the two apart.
func (e *GridEncoder) Decode(msg []byte, out pointcloud.PointCloud) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	header, err := e.decodeGrid(msg)
	if err != nil {
		return err
	}
	q, err := header.Codec.Quantizer()
	if err != nil {
		return err
	}

	cellBox := e.grid.CellBoundingBox()
	colorBox := pointcloud.UnitBoundingBox()
	appended := 0
	for idx := 0; idx < e.grid.NumCells(); idx++ {
		cell := e.grid.Cell(idx)
		if len(cell) == 0 {
			continue
		}
		origin := e.grid.CellOrigin(idx)
		for _, attr := range cell {
			p := pointcloud.NewColoredPoint(
				origin.Add(q.Dequantize(attr.Position, cellBox)),
				q.Dequantize(attr.Color, colorBox),
			)
			if err := out.Append(p); err != nil {
				return errors.Wrapf(err, "appending point of cell %d", idx)
			}
			appended++
		}
	}
	e.logger.Debugw("decoded point cloud",
		"codec", header.Codec.String(),
		"dimensions", header.Dimensions.String(),
		"points", appended,
	)
	return nil
}

// decodeGrid parses msg into the encoder's grid.
func (e *GridEncoder) decodeGrid(msg []byte) (Header, error) {
	header, err := ReadHeader(msg)
	if err != nil {
		return Header{}, err
	}
	if err := checkCellCounts(msg, header.Dimensions); err != nil {
		return Header{}, err
	}
	if err := e.grid.Reset(header.Dimensions, header.BoundingBox, header.Codec); err != nil {
		return Header{}, errors.Wrap(ErrMalformedHeader, err.Error())
	}
	q, err := header.Codec.Quantizer()
	if err != nil {
		return Header{}, err
	}

	trailing, err := walkCells(msg, header, func(idx int, payload []byte) error {
		return readCell(q, idx, payload, func(attr grid.Attribute) {
			e.grid.AddVoxel(idx, attr)
		})
	})
	if err != nil {
		return Header{}, err
	}
	if trailing > 0 {
		e.logger.Warnw("ignoring bytes after last cell", "bytes", trailing)
	}
	return header, nil
}

// checkCellCounts fails fast when msg is too short to hold the count of every cell of dims, so
// that a small message cannot make the decoder size a huge grid.
func checkCellCounts(msg []byte, dims grid.Dimensions) error {
	need := uint64(dims.NumCells()) * cellCountSize
	if have := uint64(len(msg) - HeaderSize); have < need {
		return errors.Wrapf(ErrTruncatedCell,
			"%s grid needs %d bytes of cell counts but only %d remain", dims, need, have)
	}
	return nil
}

// readCell reads the attributes of one cell payload, rejecting values no encoder writes.
func readCell(q codec.Quantizer, idx int, payload []byte, fn func(grid.Attribute)) error {
	valueSize := q.Codec().ValueSize()
	for off := 0; off < len(payload); off += 2 * valueSize {
		attr := grid.Attribute{
			Position: q.Read(payload[off:]),
			Color:    q.Read(payload[off+valueSize:]),
		}
		if !attr.Position.Finite() || !attr.Color.Finite() {
			return errors.Wrapf(ErrMalformedCell, "attribute %d of cell %d is not finite", off/(2*valueSize), idx)
		}
		fn(attr)
	}
	return nil
}

// walkCells calls fn with the attribute bytes of every cell of msg in index order, stopping at
// the first error. It never reads past the end of msg and returns the number of bytes left after
// the last cell.
func walkCells(msg []byte, header Header, fn func(idx int, payload []byte) error) (int, error) {
	attrSize := uint64(header.Codec.AttributeSize())
	offset := HeaderSize
	numCells := header.Dimensions.NumCells()
	for idx := 0; idx < numCells; idx++ {
		if len(msg)-offset < cellCountSize {
			return 0, errors.Wrapf(ErrTruncatedCell, "count of cell %d of %d", idx, numCells)
		}
		count := binary.LittleEndian.Uint32(msg[offset:])
		offset += cellCountSize

		size := uint64(count) * attrSize
		if size > uint64(len(msg)-offset) {
			return 0, errors.Wrapf(ErrTruncatedCell,
				"cell %d declares %d attributes but only %d bytes remain", idx, count, len(msg)-offset)
		}
		if err := fn(idx, msg[offset:offset+int(size)]); err != nil {
			return 0, err
		}
		offset += int(size)
	}
	return len(msg) - offset, nil
}

// Summary describes a message without reconstructing its points.
type Summary struct {
	Header
	// Counts holds the number of points of every cell in index order.
	Counts        []uint32
	Points        int
	OccupiedCells int
	Bytes         int
}

// Inspect validates msg and returns its header and per-cell point counts.
func Inspect(msg []byte) (Summary, error) {
	header, err := ReadHeader(msg)
	if err != nil {
		return Summary{}, err
	}
	if err := header.Dimensions.Validate(); err != nil {
		return Summary{}, errors.Wrap(ErrMalformedHeader, err.Error())
	}
	if err := checkCellCounts(msg, header.Dimensions); err != nil {
		return Summary{}, err
	}
	q, err := header.Codec.Quantizer()
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		Header: header,
		Counts: make([]uint32, header.Dimensions.NumCells()),
		Bytes:  len(msg),
	}
	if _, err := walkCells(msg, header, func(idx int, payload []byte) error {
		count := 0
		if err := readCell(q, idx, payload, func(grid.Attribute) { count++ }); err != nil {
			return err
		}
		summary.Counts[idx] = uint32(count)
		summary.Points += count
		if count > 0 {
			summary.OccupiedCells++
		}
		return nil
	}); err != nil {
		return Summary{}, err
	}
	return summary, nil
}
