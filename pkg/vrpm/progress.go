package vrpm

import "io"

// ProgressFunc receives byte progress while a long-running operation is
// in flight. done never decreases between calls and never exceeds
// total. A nil ProgressFunc disables reporting.
type ProgressFunc func(done, total int64)

// Meter accumulates completed bytes against a fixed total and forwards
// monotonic progress to a ProgressFunc.
type Meter struct {
	total    int64
	done     int64
	finished bool
	fn       ProgressFunc
}

// NewMeter creates a meter for total bytes of work. fn may be nil.
func NewMeter(total int64, fn ProgressFunc) *Meter {
	if total < 0 {
		total = 0
	}
	return &Meter{total: total, fn: fn}
}

// Add records n more completed bytes. Excess beyond the declared total
// is clamped so the fraction stays in [0,1].
func (m *Meter) Add(n int64) {
	if n <= 0 || m.finished {
		return
	}
	m.done += n
	if m.total > 0 && m.done > m.total {
		m.done = m.total
	}
	m.emit()
}

// Finish marks the work complete, forcing the fraction to 1.
func (m *Meter) Finish() {
	if m.finished {
		return
	}
	m.finished = true
	m.done = m.total
	m.emit()
}

// Fraction returns completed work in [0,1]. A zero-total meter reports
// 0 until Finish is called.
func (m *Meter) Fraction() float64 {
	if m.finished {
		return 1
	}
	if m.total <= 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// Count wraps r so every byte read advances the meter.
func (m *Meter) Count(r io.Reader) io.Reader {
	return &meterReader{r: r, m: m}
}

func (m *Meter) emit() {
	if m.fn != nil {
		m.fn(m.done, m.total)
	}
}

type meterReader struct {
	r io.Reader
	m *Meter
}

func (mr *meterReader) Read(p []byte) (int, error) {
	n, err := mr.r.Read(p)
	if n > 0 {
		mr.m.Add(int64(n))
	}
	return n, err
}
