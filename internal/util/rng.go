package util

import "math/rand"

// Sampler draws uniform values in [0,1). *rand.Rand satisfies it.
type Sampler interface {
	Float64() float64
}

// SamplerFunc adapts a plain function, mostly for tests that pin a roll.
type SamplerFunc func() float64

func (f SamplerFunc) Float64() float64 { return f() }

// Sequence replays the given values in order and then repeats the last one.
type Sequence struct {
	Values []float64
	i      int
}

func (s *Sequence) Float64() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.i]
	if s.i < len(s.Values)-1 {
		s.i++
	}
	return v
}

func New(seed int64) *rand.Rand {
	if seed == 0 {
		seed = 1
	}
	src := rand.NewSource(seed)
	return rand.New(src)
}

// Intn returns a value in [0,n) drawn from s. n <= 0 yields 0.
func Intn(s Sampler, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(s.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Shuffle is a Fisher-Yates shuffle driven by s.
func Shuffle(s Sampler, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := Intn(s, i+1)
		swap(i, j)
	}
}
