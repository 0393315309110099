package acoustic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	f := Normalize(Features{
		Pitch:       []float64{0, 100, 200},
		Intensity:   []float64{0.1, 0.4, 0.2},
		Duration:    2.5,
		MeanPitchHz: 150,
	})
	assert.Equal(t, []float64{0, 0.5, 1}, f.Pitch)
	assert.InDeltaSlice(t, []float64{0.25, 1, 0.5}, f.Intensity, 1e-12)
	assert.InDelta(t, 0.5, f.Duration, 1e-12)
	assert.Equal(t, 150.0, f.MeanPitchHz)
}

func TestNormalize_DegenerateInputs(t *testing.T) {
	f := Normalize(Features{
		Pitch:     []float64{0, 0, 0},
		Intensity: []float64{0, 0},
		Duration:  12,
	})
	for _, v := range append(f.Pitch, f.Intensity...) {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		assert.Zero(t, v)
	}
	assert.Equal(t, 1.0, f.Duration)

	empty := Normalize(Features{})
	assert.Empty(t, empty.Pitch)
	assert.Empty(t, empty.Intensity)
	assert.Zero(t, empty.Duration)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := Features{Pitch: []float64{100, 200}, Intensity: []float64{0.2, 0.4}}
	Normalize(in)
	assert.Equal(t, []float64{100, 200}, in.Pitch)
	assert.Equal(t, []float64{0.2, 0.4}, in.Intensity)
}
