package population

import (
	"errors"
	"fmt"

	"github.com/nvandessel/rabbitsim/internal/constants"
)

// ErrCapacityExceeded is returned when growing the pool would pass its
// configured maximum capacity. The insert that triggered the growth is aborted
// and the pool is left exactly as it was.
var ErrCapacityExceeded = errors.New("population pool capacity exceeded")

// Pool owns every agent of a single run. It is not safe for concurrent use.
type Pool struct {
	agents []Agent // len == capacity; slots [0, count) have been used
	free   []int   // LIFO stack of dead slot indices, cap == capacity
	count  int

	deaths uint64

	initialCapacity int
	maxCapacity     int
}

// PoolOptions sizes a pool. Zero values select the defaults from constants.
type PoolOptions struct {
	InitialCapacity int
	// MaxCapacity of 0 uses the default cap; a negative value disables it.
	MaxCapacity int
}

// NewPool returns an empty pool. No storage is allocated until the first Add.
func NewPool(opts PoolOptions) *Pool {
	p := &Pool{
		initialCapacity: opts.InitialCapacity,
		maxCapacity:     opts.MaxCapacity,
	}
	if p.initialCapacity <= 0 {
		p.initialCapacity = constants.DefaultInitialCapacity
	}
	switch {
	case p.maxCapacity == 0:
		p.maxCapacity = constants.DefaultMaxCapacity
	case p.maxCapacity < 0:
		p.maxCapacity = 0
	}
	if p.maxCapacity > 0 && p.initialCapacity > p.maxCapacity {
		p.initialCapacity = p.maxCapacity
	}
	return p
}

// ensureCapacity grows the backing storage when every slot has been used.
// Both arrays are allocated before either is swapped in, so a refused growth
// leaves the pool untouched.
func (p *Pool) ensureCapacity() error {
	capacity := len(p.agents)
	if p.count < capacity {
		return nil
	}

	newCap := capacity * 2
	if newCap < p.initialCapacity {
		newCap = p.initialCapacity
	}
	if p.maxCapacity > 0 && newCap > p.maxCapacity {
		if capacity >= p.maxCapacity {
			return fmt.Errorf("%w: %d slots", ErrCapacityExceeded, p.maxCapacity)
		}
		newCap = p.maxCapacity
	}

	agents := make([]Agent, newCap)
	free := make([]int, len(p.free), newCap)
	copy(agents, p.agents)
	copy(free, p.free)

	p.agents = agents
	p.free = free
	return nil
}

// Add inserts a live agent and returns its slot index. The most recently
// freed slot is reused first; otherwise the agent is appended, growing the
// pool if needed.
func (p *Pool) Add(spec Spec) (int, error) {
	var idx int
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if err := p.ensureCapacity(); err != nil {
			return -1, err
		}
		idx = p.count
		p.count++
	}

	a := Agent{
		Sex:          spec.Sex,
		Alive:        true,
		Mature:       spec.Mature,
		Age:          spec.Age,
		SurvivalRate: spec.SurvivalRate,
	}
	if spec.Mature {
		a.MaturityAge = spec.Age
		// A zero maturity age would read as "not mature".
		if a.MaturityAge == 0 {
			a.MaturityAge = 1
		}
	}
	p.agents[idx] = a
	return idx, nil
}

// Kill marks the agent at idx dead and recycles its slot.
// Killing a dead or unknown slot is a programming error and panics.
func (p *Pool) Kill(idx int) {
	if idx < 0 || idx >= p.count {
		panic(fmt.Sprintf("population: kill of out-of-range slot %d (count %d)", idx, p.count))
	}
	a := &p.agents[idx]
	if !a.Alive {
		panic(fmt.Sprintf("population: double kill of slot %d", idx))
	}
	a.Alive = false
	a.Pregnant = false
	a.SurvivalMemo = false
	p.free = append(p.free, idx)
	p.deaths++
}

// Agent returns the slot at idx. The pointer is valid until the next Add,
// which may reallocate the backing storage.
func (p *Pool) Agent(idx int) *Agent {
	if idx < 0 || idx >= p.count {
		panic(fmt.Sprintf("population: slot %d out of range (count %d)", idx, p.count))
	}
	return &p.agents[idx]
}

// Count is the number of slots ever used (live and dead).
func (p *Pool) Count() int { return p.count }

// Alive is the number of live agents.
func (p *Pool) Alive() int { return p.count - len(p.free) }

// Deaths is the number of agents killed since the last Reset.
func (p *Pool) Deaths() uint64 { return p.deaths }

// Capacity is the number of allocated slots.
func (p *Pool) Capacity() int { return len(p.agents) }

// FreeSlots returns a copy of the free list, most recent last.
func (p *Pool) FreeSlots() []int {
	out := make([]int, len(p.free))
	copy(out, p.free)
	return out
}

// Census counts the live agents by sex.
func (p *Pool) Census() (females, males int) {
	for i := 0; i < p.count; i++ {
		a := &p.agents[i]
		if !a.Alive {
			continue
		}
		if a.Sex == Female {
			females++
		} else {
			males++
		}
	}
	return females, males
}

// Each calls fn for every live agent in slot order, stopping when fn returns false.
func (p *Pool) Each(fn func(idx int, a *Agent) bool) {
	for i := 0; i < p.count; i++ {
		if !p.agents[i].Alive {
			continue
		}
		if !fn(i, &p.agents[i]) {
			return
		}
	}
}

// Reset releases all storage. The pool can be reused for a fresh run.
func (p *Pool) Reset() {
	p.agents = nil
	p.free = nil
	p.count = 0
	p.deaths = 0
}
