package indicator

import "math"

// Bands holds one Bollinger Bands computation: mean ± k standard deviations.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
	StdDev float64 `json:"std_dev"`
}

// Bollinger maintains a rolling window of closes plus running sum and
// sum-of-squares so each update is O(1): variance = sumSq/n − mean².
type Bollinger struct {
	period int
	k      float64

	buf   []float64
	idx   int
	count int
	sum   float64
	sumSq float64

	current Bands
}

// NewBollinger creates Bollinger Bands with the given period and band width k
// (typically 20 and 2).
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{
		period: period,
		k:      k,
		buf:    make([]float64, period),
	}
}

func (b *Bollinger) Name() string { return "BB" }

func (b *Bollinger) Update(close float64) {
	if b.count >= b.period {
		old := b.buf[b.idx]
		b.sum -= old
		b.sumSq -= old * old
	}

	b.buf[b.idx] = close
	b.sum += close
	b.sumSq += close * close
	b.idx = (b.idx + 1) % b.period
	b.count++

	if b.count < b.period {
		return
	}

	n := float64(b.period)
	mean := b.sum / n
	// Clamp at zero: sumSq/n − mean² can go fractionally negative from
	// floating-point cancellation on near-constant windows.
	variance := b.sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)

	b.current = Bands{
		Upper:  mean + b.k*std,
		Middle: mean,
		Lower:  mean - b.k*std,
		StdDev: std,
	}
}

// Bands returns the latest computed bands.
func (b *Bollinger) Bands() Bands { return b.current }

// Value returns the middle band, satisfying the scalar Indicator interface.
func (b *Bollinger) Value() float64 { return b.current.Middle }

func (b *Bollinger) Ready() bool { return b.count >= b.period }
