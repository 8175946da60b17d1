package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// cosineFunc is the SQL scalar function name used for ranking.
const cosineFunc = "vec_distance_cosine"

// VectorExtension proves that the cosine distance function has been
// registered with the SQLite driver. Open requires one.
type VectorExtension struct {
	driver string
}

// Driver returns the database/sql driver name the function is bound to.
func (v *VectorExtension) Driver() string { return v.driver }

var (
	vecOnce sync.Once
	vecExt  *VectorExtension
	vecErr  error
)

// InitVectorExtension registers vec_distance_cosine with the SQLite driver.
// It is safe to call any number of times; registration happens once per
// process.
func InitVectorExtension() (*VectorExtension, error) {
	vecOnce.Do(func() {
		if err := registerCosine(); err != nil {
			vecErr = rerrors.New(rerrors.ErrCodeStorageOpen, "register vector function", err)
			return
		}
		vecExt = &VectorExtension{driver: driverName}
	})
	return vecExt, vecErr
}

// encodeVector serialises v as little-endian float32.
func encodeVector(v []float32) []byte {
	blob := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(f))
	}
	return blob
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}

// cosineDistance returns 1 - cos(a, b), in [0, 2]. A zero vector has
// distance 1 to everything.
func cosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d != %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

func blobCosineDistance(a, b []byte) (float64, error) {
	va, err := decodeVector(a)
	if err != nil {
		return 0, err
	}
	vb, err := decodeVector(b)
	if err != nil {
		return 0, err
	}
	return cosineDistance(va, vb)
}

// similarityFromDistance maps a cosine distance to a score where higher
// is closer: identical directions score 1, opposite ones 0.
func similarityFromDistance(d float64) float64 {
	return 1 - d/2
}
