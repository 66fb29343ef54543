package utils

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// CosineSimilarity computes the cosine similarity of two equal-length
// float32 vectors.
func CosineSimilarity(A, B *tensor.Dense) (float32, error) {
	a := A.Float32s()
	b := B.Float32s()

	if len(a) != len(b) {
		return 0, errors.New("vectors must have the same length")
	}

	var dotProduct, normA, normB float64

	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)

	if normA == 0 || normB == 0 {
		return 0, errors.New("zero vector encountered")
	}

	cosineSimilarity := dotProduct / (normA * normB)

	return float32(cosineSimilarity), nil
}

// MeanSquare returns the mean of squared components over the whole tensor.
func MeanSquare(t *tensor.Dense) float32 {
	data := t.Float32s()
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += float64(v) * float64(v)
	}
	return float32(sum / float64(len(data)))
}

// RowSlice returns row i of a (N, D) tensor as a flat vector.
func RowSlice(t *tensor.Dense, i int) (*tensor.Dense, error) {
	row, err := t.Slice(tensor.S(i))
	if err != nil {
		return nil, err
	}
	return row.(*tensor.Dense), nil
}

// MeanPairwiseCosine computes the mean cosine similarity over all row pairs
// of two (N, D) and (M, D) embedding matrices.
func MeanPairwiseCosine(A, B *tensor.Dense) (float32, error) {
	if A.Shape()[1] != B.Shape()[1] {
		return 0, errors.Errorf("embedding dims differ: %d vs %d", A.Shape()[1], B.Shape()[1])
	}

	var total float64
	n, m := A.Shape()[0], B.Shape()[0]
	for i := 0; i < n; i++ {
		rowA, err := RowSlice(A, i)
		if err != nil {
			return 0, err
		}
		for j := 0; j < m; j++ {
			rowB, err := RowSlice(B, j)
			if err != nil {
				return 0, err
			}
			sim, err := CosineSimilarity(rowA, rowB)
			if err != nil {
				return 0, err
			}
			total += float64(sim)
		}
	}
	return float32(total / float64(n*m)), nil
}

// MeanEmbedding averages the rows of a (N, D) embedding matrix into a single
// D-length vector.
func MeanEmbedding(t *tensor.Dense) (*tensor.Dense, error) {
	n, d := t.Shape()[0], t.Shape()[1]
	data := t.Float32s()
	mean := make([]float32, d)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			mean[j] += data[i*d+j]
		}
	}
	for j := 0; j < d; j++ {
		mean[j] /= float32(n)
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(d),
		tensor.WithBacking(mean),
	), nil
}

// TileRows repeats the rows of a (N, D) matrix `times` times, preserving
// row order block-wise, producing (N*times, D).
func TileRows(t *tensor.Dense, times int) (*tensor.Dense, error) {
	if times < 1 {
		return nil, errors.Errorf("tile count must be >= 1, got %d", times)
	}
	n, d := t.Shape()[0], t.Shape()[1]
	src := t.Float32s()
	dst := make([]float32, 0, n*d*times)
	for i := 0; i < times; i++ {
		dst = append(dst, src...)
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n*times, d),
		tensor.WithBacking(dst),
	), nil
}
