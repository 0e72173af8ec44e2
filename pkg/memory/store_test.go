package memory_test

import (
	"math"
	"testing"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
)

func TestValidEmbedding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		vec  []float32
		want bool
	}{
		{"nil", nil, false},
		{"empty", []float32{}, false},
		{"zero norm", []float32{0, 0, 0}, false},
		{"nan component", []float32{0.5, float32(math.NaN())}, false},
		{"inf component", []float32{0.5, float32(math.Inf(1))}, false},
		{"valid", []float32{0.1, -0.2, 0.3}, true},
		{"single component", []float32{1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := memory.ValidEmbedding(tt.vec); got != tt.want {
				t.Errorf("ValidEmbedding(%v) = %v, want %v", tt.vec, got, tt.want)
			}
		})
	}
}
