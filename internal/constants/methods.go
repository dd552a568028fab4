package constants

// SurvivalMethod selects how a base survival rate becomes the effective monthly rate.
type SurvivalMethod string

const (
	// SurvivalStatic uses the base rate unchanged.
	SurvivalStatic SurvivalMethod = "static"

	// SurvivalGaussian perturbs the base rate with Gaussian noise.
	SurvivalGaussian SurvivalMethod = "gaussian"

	// SurvivalExponential maps the base rate through an exponential draw.
	SurvivalExponential SurvivalMethod = "exponential"
)

// Valid returns true if the method is a recognized value.
func (m SurvivalMethod) Valid() bool {
	switch m {
	case SurvivalStatic, SurvivalGaussian, SurvivalExponential:
		return true
	}
	return false
}

// String returns the string representation of the method.
func (m SurvivalMethod) String() string {
	return string(m)
}

// LitterPolicy controls what happens to a female's litter counter at the
// annual fecundity refresh.
type LitterPolicy string

const (
	// LitterReset zeroes the counter whenever a new yearly target is drawn.
	LitterReset LitterPolicy = "reset"

	// LitterCarry keeps counting across years, so a female stops breeding once
	// her lifetime litters reach the current target.
	LitterCarry LitterPolicy = "carry"
)

// Valid returns true if the policy is a recognized value.
func (p LitterPolicy) Valid() bool {
	switch p {
	case LitterReset, LitterCarry:
		return true
	}
	return false
}

// String returns the string representation of the policy.
func (p LitterPolicy) String() string {
	return string(p)
}
