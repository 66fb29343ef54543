package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func genVector(vals ...float32) *tensor.Dense {
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(vals)),
		tensor.WithBacking(vals),
	)
}

func genMatrix(rows [][]float32) *tensor.Dense {
	backing := make([]float32, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		backing = append(backing, row...)
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(rows), len(rows[0])),
		tensor.WithBacking(backing),
	)
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity(genVector(1, 2, 3), genVector(1, 2, 3))
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-6)

	sim, err = CosineSimilarity(genVector(1, 0), genVector(0, 1))
	assert.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-6)

	sim, err = CosineSimilarity(genVector(1, 1), genVector(-1, -1))
	assert.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-6)

	_, err = CosineSimilarity(genVector(1, 2), genVector(1, 2, 3))
	assert.Error(t, err)

	_, err = CosineSimilarity(genVector(0, 0), genVector(1, 2))
	assert.Error(t, err)
}

func TestMeanSquare(t *testing.T) {
	assert.InDelta(t, 0.0, MeanSquare(genVector(0, 0, 0)), 1e-6)
	// (4 + 9 + 1 + 0) / 4
	assert.InDelta(t, 3.5, MeanSquare(genVector(2, -3, 1, 0)), 1e-6)
}

func TestTileRows(t *testing.T) {
	src := genMatrix([][]float32{{1, 2}, {3, 4}})

	tiled, err := TileRows(src, 3)
	assert.NoError(t, err)
	assert.Equal(t, []int{6, 2}, []int(tiled.Shape()))
	assert.Equal(t, []float32{1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4}, tiled.Float32s())

	same, err := TileRows(src, 1)
	assert.NoError(t, err)
	assert.Equal(t, src.Float32s(), same.Float32s())

	_, err = TileRows(src, 0)
	assert.Error(t, err)
}

func TestMeanEmbedding(t *testing.T) {
	mean, err := MeanEmbedding(genMatrix([][]float32{{1, 2, 3}, {3, 4, 5}}))
	assert.NoError(t, err)
	assert.Equal(t, []int{3}, []int(mean.Shape()))
	assert.Equal(t, []float32{2, 3, 4}, mean.Float32s())
}

func TestMeanPairwiseCosine(t *testing.T) {
	// All rows identical on both sides: every pairwise similarity is 1.
	A := genMatrix([][]float32{{1, 1}, {2, 2}})
	B := genMatrix([][]float32{{3, 3}, {4, 4}, {5, 5}})
	sim, err := MeanPairwiseCosine(A, B)
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-5)

	// One orthogonal pair out of two.
	A = genMatrix([][]float32{{1, 0}})
	B = genMatrix([][]float32{{1, 0}, {0, 1}})
	sim, err = MeanPairwiseCosine(A, B)
	assert.NoError(t, err)
	assert.InDelta(t, 0.5, sim, 1e-5)

	_, err = MeanPairwiseCosine(genMatrix([][]float32{{1, 0}}), genMatrix([][]float32{{1, 0, 0}}))
	assert.Error(t, err)
}

func TestRowSlice(t *testing.T) {
	row, err := RowSlice(genMatrix([][]float32{{1, 2}, {3, 4}}), 1)
	assert.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, row.Float32s())
}
