package result

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sugawarayuuta/sonnet"
)

// Record is the outcome of one replayed scenario entry.
type Record struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	AmountIn     uint64 `json:"amount_in,omitempty"`
	AmountOut    uint64 `json:"amount_out,omitempty"`
	LPFee        uint64 `json:"lp_fee,omitempty"`
	ThermoFee    uint64 `json:"thermo_fee,omitempty"`
	Rebate       uint64 `json:"rebate,omitempty"`
	TicksCrossed uint8  `json:"ticks_crossed,omitempty"`
	TotalFeeBps  uint32 `json:"total_fee_bps,omitempty"`
	Amount0      uint64 `json:"amount0,omitempty"`
	Amount1      uint64 `json:"amount1,omitempty"`

	Tick      int32  `json:"tick"`
	Price     string `json:"price"`
	Liquidity string `json:"liquidity"`
	Buffer0   uint64 `json:"buffer0"`
	Buffer1   uint64 `json:"buffer1"`
	Residual  string `json:"residual"`
}

// Snapshot values the strategy's holdings in token1 at the current price.
type Snapshot struct {
	Timestamp int64  `json:"timestamp"`
	Amount0   uint64 `json:"amount0"`
	Amount1   uint64 `json:"amount1"`
	Value     string `json:"value"`
	Price     string `json:"price"`
}

type Summary struct {
	Operations      int        `json:"operations"`
	Failed          int        `json:"failed"`
	Rebalances      int        `json:"rebalances"`
	StartValue      string     `json:"start_value,omitempty"`
	EndValue        string     `json:"end_value,omitempty"`
	PriceAverage    string     `json:"price_average"`
	PriceVolatility string     `json:"price_volatility"`
	Conserved       bool       `json:"conserved"`
	Snapshots       []Snapshot `json:"snapshots,omitempty"`
}

// JsonlWriter appends records to a JSONL file.
type JsonlWriter struct {
	path string
	mu   sync.Mutex
}

func NewJsonlWriter(path string) *JsonlWriter {
	return &JsonlWriter{path: path}
}

func (w *JsonlWriter) Path() string {
	return w.path
}

// Write appends one JSON line per value.
func (w *JsonlWriter) Write(values ...any) error {
	if len(values) == 0 {
		return nil
	}

	dir := filepath.Dir(w.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, v := range values {
		line, err := sonnet.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
