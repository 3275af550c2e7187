package ranking

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDegenerateVector is returned for vectors with zero norm, which
	// cannot be normalized for cosine similarity.
	ErrDegenerateVector = errors.New("degenerate vector (zero norm)")
	// ErrLengthMismatch is returned when two vectors disagree in length.
	ErrLengthMismatch = errors.New("vector length mismatch")
)

// Dot returns the dot product of two vectors of equal length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of a vector.
func Norm(a []float32) float64 {
	return math.Sqrt(Dot(a, a))
}

// Cosine returns the cosine similarity of two vectors of equal length,
// clamped to [-1, 1] against float rounding. Zero-norm inputs are rejected.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}

	normA := Norm(a)
	normB := Norm(b)
	if normA == 0 || normB == 0 {
		return 0, ErrDegenerateVector
	}

	cos := Dot(a, b) / (normA * normB)
	if math.IsNaN(cos) {
		return 0, ErrDegenerateVector
	}

	return math.Max(-1, math.Min(1, cos)), nil
}
