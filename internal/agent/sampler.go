package agent

import (
	"math/rand"
	"sync"
	"time"
)

// Sampler is the pluggable source of market variability. Production uses a
// seeded generator; tests inject deterministic sequences so the randomized
// search and negotiation paths become reproducible.
type Sampler interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// randSampler wraps math/rand with a lock so concurrent conversations can
// share one source.
type randSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a Sampler seeded from seed, or from the clock when
// seed is zero.
func NewSampler(seed int64) Sampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &randSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s *randSampler) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *randSampler) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// FixedSampler replays a fixed sequence of values. Intended for tests that
// need deterministic market and negotiation outcomes. Values repeat from the
// start once exhausted.
type FixedSampler struct {
	mu     sync.Mutex
	Values []float64
	next   int
}

func (f *FixedSampler) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Values) == 0 {
		return 0.5
	}
	v := f.Values[f.next%len(f.Values)]
	f.next++
	return v
}

func (f *FixedSampler) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(f.Float64() * float64(n))
}
