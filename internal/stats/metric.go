// Package stats accumulates run results into batch statistics.
//
// Sums and sums of squares are kept as exact 128-bit integers, so absorbing
// results and merging partial accumulators are exactly associative and
// commutative: a batch produces bit-identical reports no matter how its runs
// were split across workers or in which order the partials were merged.
package stats

import (
	"math"
	"math/big"
	"math/bits"

	"github.com/nvandessel/rabbitsim/internal/constants"
)

// u128 is an unsigned 128-bit integer.
type u128 struct {
	hi, lo uint64
}

func (a u128) add(b u128) u128 {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	hi, _ := bits.Add64(a.hi, b.hi, carry)
	return u128{hi: hi, lo: lo}
}

func (a u128) big() *big.Int {
	n := new(big.Int).SetUint64(a.hi)
	n.Lsh(n, 64)
	return n.Or(n, new(big.Int).SetUint64(a.lo))
}

func square(v uint64) u128 {
	hi, lo := bits.Mul64(v, v)
	return u128{hi: hi, lo: lo}
}

// Metric tracks one non-negative integer quantity across runs.
// The zero value is not ready for use; call NewMetric.
type Metric struct {
	n     uint64
	sum   u128
	sumSq u128
	min   float64
	max   float64
}

// NewMetric returns the neutral element: no samples, min +Inf, max -Inf.
func NewMetric() Metric {
	return Metric{min: math.Inf(1), max: math.Inf(-1)}
}

// Add records one sample.
func (m *Metric) Add(v uint64) {
	m.n++
	m.sum = m.sum.add(u128{lo: v})
	m.sumSq = m.sumSq.add(square(v))
	f := float64(v)
	if f < m.min {
		m.min = f
	}
	if f > m.max {
		m.max = f
	}
}

// Merge folds o into m.
func (m *Metric) Merge(o Metric) {
	m.n += o.n
	m.sum = m.sum.add(o.sum)
	m.sumSq = m.sumSq.add(o.sumSq)
	m.min = math.Min(m.min, o.min)
	m.max = math.Max(m.max, o.max)
}

// Count is the number of samples.
func (m Metric) Count() uint64 { return m.n }

// Summary is the finalized view of a Metric.
type Summary struct {
	N    uint64  `json:"n"`
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	// CI95 is the half-width of the 95% confidence interval of the mean.
	CI95 float64 `json:"ci95"`
}

// Summary computes mean, population standard deviation and the 95%
// confidence half-width. With no samples every field is zero.
func (m Metric) Summary() Summary {
	if m.n == 0 {
		return Summary{}
	}

	n := new(big.Int).SetUint64(m.n)
	sum := m.sum.big()

	mean, _ := new(big.Rat).SetFrac(sum, n).Float64()

	// var = (n*sumSq - sum^2) / n^2, exact until the final rounding.
	num := new(big.Int).Mul(n, m.sumSq.big())
	num.Sub(num, new(big.Int).Mul(sum, sum))
	den := new(big.Int).Mul(n, n)
	variance, _ := new(big.Rat).SetFrac(num, den).Float64()
	sd := math.Sqrt(variance)

	return Summary{
		N:    m.n,
		Mean: mean,
		SD:   sd,
		Min:  m.min,
		Max:  m.max,
		CI95: constants.ConfidenceZ * sd / math.Sqrt(float64(m.n)),
	}
}
