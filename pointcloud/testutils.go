package pointcloud

import (
	"math/rand"

	"github.com/golang/geo/r3"
)

// MakeTestPointCloud creates a test point cloud of n colored points spread uniformly over bb.
// The same seed always gives the same cloud.
func MakeTestPointCloud(n int, bb BoundingBox, seed int64) PointCloud {
	//nolint:gosec
	r := rand.New(rand.NewSource(seed))
	rng := bb.Range()
	cloud := &basicPointCloud{points: make([]Point, 0, n), meta: NewMetaData()}
	for i := 0; i < n; i++ {
		p := NewColoredPoint(
			r3.Vector{
				X: bb.Min.X + r.Float64()*rng.X,
				Y: bb.Min.Y + r.Float64()*rng.Y,
				Z: bb.Min.Z + r.Float64()*rng.Z,
			},
			r3.Vector{X: r.Float64(), Y: r.Float64(), Z: r.Float64()},
		)
		cloud.points = append(cloud.points, p)
		cloud.meta.Merge(p)
	}
	return cloud
}
