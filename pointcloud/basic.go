package pointcloud

import (
	"math"

	"github.com/pkg/errors"
)

// basicPointCloud is the basic implementation of the PointCloud interface backed by
// a slice of points in insertion order.
type basicPointCloud struct {
	points []Point
	meta   MetaData
}

// New returns an empty PointCloud backed by a basicPointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud backed by a basicPointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: make([]Point, 0, size),
		meta:   NewMetaData(),
	}
}

// NewFromPoints returns a PointCloud holding the given points in order.
func NewFromPoints(points ...Point) (PointCloud, error) {
	cloud := NewWithPrealloc(len(points))
	for _, p := range points {
		if err := cloud.Append(p); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

func (cloud *basicPointCloud) At(i int) Point {
	return cloud.points[i]
}

// Append validates that the point has a finite position before adding it to the cloud.
func (cloud *basicPointCloud) Append(p Point) error {
	if err := validateFinite(p.Position.X); err != nil {
		return errors.Wrap(err, "x component")
	}
	if err := validateFinite(p.Position.Y); err != nil {
		return errors.Wrap(err, "y component")
	}
	if err := validateFinite(p.Position.Z); err != nil {
		return errors.Wrap(err, "z component")
	}
	cloud.points = append(cloud.points, p)
	cloud.meta.Merge(p)
	return nil
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(i int, p Point) bool) {
	start, end := 0, len(cloud.points)
	if numBatches > 0 {
		batchSize := (len(cloud.points) + numBatches - 1) / numBatches
		start = myBatch * batchSize
		end = start + batchSize
		if end > len(cloud.points) {
			end = len(cloud.points)
		}
	}
	for i := start; i < end; i++ {
		if !fn(i, cloud.points[i]) {
			return
		}
	}
}

func validateFinite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Errorf("%v is not a finite value", v)
	}
	return nil
}
