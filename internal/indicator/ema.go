package indicator

// EMA calculates Exponential Moving Average.
// O(1) per update — no window storage needed.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(close float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += close
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA formula: EMA = (Price - EMA_prev) * multiplier + EMA_prev
	e.current = (close-e.current)*e.multiplier + e.current
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }
