package aggregate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		in     []float64
		want   float64
		wantOK bool
	}{
		{"outlier ignored", []float64{10, 12, 100}, 12, true},
		{"unsorted input", []float64{100, 10, 12}, 12, true},
		{"even count", []float64{10, 20, 30, 40}, 25, true},
		{"single", []float64{42.5}, 42.5, true},
		{"empty", nil, 0, false},
		{"invalid dropped", []float64{0, -3, math.NaN(), math.Inf(1), 7}, 7, true},
		{"all invalid", []float64{0, math.NaN()}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, _ = Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}
