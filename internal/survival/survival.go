// Package survival turns a base survival rate into the effective monthly rate
// used by the survival check.
package survival

import (
	"fmt"
	"math"

	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/rng"
)

// Strategy maps a base rate (percent) to an effective rate in [0, 100].
type Strategy interface {
	EffectiveRate(base float64, s rng.Stream) float64
	Method() constants.SurvivalMethod
}

// New returns the strategy for method. The Gaussian strategy uses
// constants.GaussianStdDev.
func New(method constants.SurvivalMethod) (Strategy, error) {
	switch method {
	case constants.SurvivalStatic, "":
		return Static{}, nil
	case constants.SurvivalGaussian:
		return Gaussian{StdDev: constants.GaussianStdDev}, nil
	case constants.SurvivalExponential:
		return Exponential{}, nil
	default:
		return nil, fmt.Errorf("unknown survival method %q (valid: static, gaussian, exponential)", method)
	}
}

// Static returns the base rate unchanged and draws nothing.
type Static struct{}

func (Static) EffectiveRate(base float64, _ rng.Stream) float64 {
	return clamp(base)
}

func (Static) Method() constants.SurvivalMethod { return constants.SurvivalStatic }

// Gaussian adds a Box-Muller normal deviate scaled by StdDev.
// Every call consumes two uniforms.
type Gaussian struct {
	StdDev float64
}

func (g Gaussian) EffectiveRate(base float64, s rng.Stream) float64 {
	u1 := s.Uniform01()
	u2 := s.Uniform01()
	// Float64 can return 0; log(0) would make the deviate infinite.
	if u1 <= 0 {
		u1 = math.SmallestNonzeroFloat64
	}
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return clamp(base + z*g.StdDev)
}

func (Gaussian) Method() constants.SurvivalMethod { return constants.SurvivalGaussian }

// Exponential draws x ~ Exp(lambda) with lambda = 1/(base/10) and maps it to
// the percentage 100*(1-e^-x). Every call consumes one uniform.
type Exponential struct{}

func (Exponential) EffectiveRate(base float64, s rng.Stream) float64 {
	u := s.Uniform01()
	if base <= 0 {
		return 0
	}
	lambda := 1 / (base / 10)
	x := -math.Log(u) / lambda
	return clamp(100 * (1 - math.Exp(-x)))
}

func (Exponential) Method() constants.SurvivalMethod { return constants.SurvivalExponential }

func clamp(rate float64) float64 {
	switch {
	case math.IsNaN(rate):
		return 0
	case rate < 0:
		return 0
	case rate > constants.MaxSurvivalRate:
		return constants.MaxSurvivalRate
	}
	return rate
}
