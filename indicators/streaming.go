package indicators

import "fmt"

// SimpleMA is a streaming simple moving average.
type SimpleMA struct {
	period int
	closes []float64
}

func NewMA(period int) *SimpleMA {
	return &SimpleMA{
		period: period,
		closes: make([]float64, 0, period),
	}
}

func (m *SimpleMA) Name() string { return fmt.Sprintf("MA(%d)", m.period) }

func (m *SimpleMA) Warmup() int { return m.period }

func (m *SimpleMA) Reset() { m.closes = m.closes[:0] }

func (m *SimpleMA) Update(c float64) {
	m.closes = append(m.closes, c)
	if len(m.closes) > m.period {
		m.closes = m.closes[1:]
	}
}

func (m *SimpleMA) Ready() bool { return len(m.closes) >= m.period }

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	sum := 0.0
	for _, c := range m.closes {
		sum += c
	}
	return sum / float64(len(m.closes))
}

// ExponentialMA is a streaming EMA seeded with the SMA of the first period
// closes.
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }

func (e *ExponentialMA) Warmup() int { return e.period }

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(c float64) {
	if e.count < e.period {
		e.warmupSum += c
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (c-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool { return e.count >= e.period }

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// RateOfChange is the fractional change over the last period updates.
type RateOfChange struct {
	period int
	closes []float64
}

func NewROC(period int) *RateOfChange {
	return &RateOfChange{period: period, closes: make([]float64, 0, period+1)}
}

func (r *RateOfChange) Name() string { return fmt.Sprintf("ROC(%d)", r.period) }

func (r *RateOfChange) Warmup() int { return r.period + 1 }

func (r *RateOfChange) Reset() { r.closes = r.closes[:0] }

func (r *RateOfChange) Update(c float64) {
	r.closes = append(r.closes, c)
	if len(r.closes) > r.period+1 {
		r.closes = r.closes[1:]
	}
}

func (r *RateOfChange) Ready() bool { return len(r.closes) > r.period && r.closes[0] != 0 }

func (r *RateOfChange) Value() float64 {
	if !r.Ready() {
		return 0
	}
	return r.closes[len(r.closes)-1]/r.closes[0] - 1
}
