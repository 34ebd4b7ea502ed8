package prices

import (
	"math"

	"github.com/shopspring/decimal"
)

// Window is a fixed-size ring of price samples.
type Window struct {
	prices []decimal.Decimal
	index  int
	count  int
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{prices: make([]decimal.Decimal, size)}
}

func (w *Window) Add(price decimal.Decimal) {
	w.prices[w.index] = price
	w.index = (w.index + 1) % len(w.prices)
	if w.count < len(w.prices) {
		w.count++
	}
}

func (w *Window) Len() int {
	return w.count
}

func (w *Window) Full() bool {
	return w.count == len(w.prices)
}

func (w *Window) samples() []decimal.Decimal {
	if w.Full() {
		return w.prices
	}
	return w.prices[:w.count]
}

func (w *Window) Average() decimal.Decimal {
	if w.count == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, w.samples()...).Div(decimal.NewFromInt(int64(w.count)))
}

// Volatility is the sample standard deviation of the window.
func (w *Window) Volatility() decimal.Decimal {
	if w.count < 2 {
		return decimal.Zero
	}
	avg := w.Average()
	sum := decimal.Zero
	for _, p := range w.samples() {
		diff := p.Sub(avg)
		sum = sum.Add(diff.Mul(diff))
	}
	variance := sum.Div(decimal.NewFromInt(int64(w.count - 1)))
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}
