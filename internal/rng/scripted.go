package rng

import "fmt"

// Scripted replays fixed values. Tests use it to force a particular branch of
// the model without searching for a seed that happens to produce it.
type Scripted struct {
	Uniforms []float64
	Ints     []int

	ui, ii int
}

// Uniform01 returns the next scripted uniform. It panics when the script runs out.
func (s *Scripted) Uniform01() float64 {
	if s.ui >= len(s.Uniforms) {
		panic(fmt.Sprintf("rng: scripted stream exhausted after %d uniforms", s.ui))
	}
	v := s.Uniforms[s.ui]
	s.ui++
	return v
}

// Bounded returns the next scripted int reduced modulo n.
func (s *Scripted) Bounded(n int) int {
	if n <= 0 {
		panic("rng: Bounded called with n <= 0")
	}
	if s.ii >= len(s.Ints) {
		panic(fmt.Sprintf("rng: scripted stream exhausted after %d ints", s.ii))
	}
	v := s.Ints[s.ii]
	s.ii++
	return v % n
}

// Remaining reports how many scripted uniforms and ints are left.
func (s *Scripted) Remaining() (uniforms, ints int) {
	return len(s.Uniforms) - s.ui, len(s.Ints) - s.ii
}
