package prices

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	w := NewWindow(4)
	require.True(t, w.Average().IsZero())
	require.True(t, w.Volatility().IsZero())

	for _, p := range []int64{2, 4, 4, 4} {
		w.Add(decimal.NewFromInt(p))
	}
	require.True(t, w.Full())
	require.Equal(t, "3.5", w.Average().String())
	require.Equal(t, "1", w.Volatility().String())

	// the oldest sample drops out
	w.Add(decimal.NewFromInt(4))
	require.Equal(t, 4, w.Len())
	require.Equal(t, "4", w.Average().String())
	require.True(t, w.Volatility().IsZero())
}
