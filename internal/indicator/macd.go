package indicator

// MACDValue holds one MACD computation.
// Histogram is always Line − Signal at every ready tick.
type MACDValue struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes macdLine = EMA(fast) − EMA(slow) and smooths the line with a
// further EMA(signal). Ready only once all three EMAs are seeded.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA

	current MACDValue
}

// NewMACD creates a MACD with the given fast/slow/signal periods
// (typically 12, 26, 9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Update(close float64) {
	m.fast.Update(close)
	m.slow.Update(close)

	if !m.fast.Ready() || !m.slow.Ready() {
		return
	}

	line := m.fast.Value() - m.slow.Value()
	// The signal EMA consumes macd-line values, not closes, so it only
	// starts seeding once both price EMAs produce a line.
	m.signal.Update(line)

	if !m.signal.Ready() {
		return
	}

	m.current = MACDValue{
		Line:      line,
		Signal:    m.signal.Value(),
		Histogram: line - m.signal.Value(),
	}
}

// MACD returns the latest computed value.
func (m *MACD) MACD() MACDValue { return m.current }

// Value returns the histogram, satisfying the scalar Indicator interface.
func (m *MACD) Value() float64 { return m.current.Histogram }

func (m *MACD) Ready() bool {
	return m.fast.Ready() && m.slow.Ready() && m.signal.Ready()
}
