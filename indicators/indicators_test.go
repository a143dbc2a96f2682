package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var closes = []float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}

func TestNew(t *testing.T) {
	tests := []struct {
		kind string
		name string
	}{
		{"ema", "EMA(5)"},
		{"", "EMA(5)"},
		{"SMA", "MA(5)"},
		{"ma", "MA(5)"},
		{"roc", "ROC(5)"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			ind, err := New(tt.kind, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.name, ind.Name())
		})
	}

	_, err := New("wma", 5)
	assert.EqualError(t, err, `unknown indicator "wma" (supported: ema, sma, roc)`)
	_, err = New("ema", 0)
	assert.EqualError(t, err, "period must be positive, got 0")
}
