package app

import (
	"math/rand"
	"sync"

	"flag-quiz-service/internal/domain"
)

// Sampler hands out country codes in batches while keeping recently drawn codes
// out of the next draws. Codes live in exactly one of two pools: queue holds codes
// eligible for drawing, reserve holds codes withheld from immediate reselection.
type Sampler struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	initialized bool
	queue       []string
	reserve     []string
}

func NewSampler(rnd *rand.Rand) *Sampler {
	return &Sampler{rnd: rnd}
}

// Initialize shuffles codes and splits them at the midpoint: the first half is
// drawable, the second half is held in reserve.
func (s *Sampler) Initialize(codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return domain.ErrSamplerInitialized
	}
	s.initialized = true

	all := make([]string, len(codes))
	copy(all, codes)
	shuffle(s.rnd, all, len(all))

	mid := len(all) / 2
	s.queue = append([]string(nil), all[:mid]...)
	s.reserve = append([]string(nil), all[mid:]...)
	return nil
}

// Draw removes up to k codes from the front of the queue, refills the queue from
// the reserve and parks the drawn codes at the back of the reserve. A result
// shorter than k means the pool could not cover a full round.
func (s *Sampler) Draw(k int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k < 0 {
		k = 0
	}

	n := min(k, len(s.queue))
	drawn := make([]string, n)
	copy(drawn, s.queue[:n])
	s.queue = s.queue[n:]

	// Only the first k reserve positions take part in this draw.
	shuffle(s.rnd, s.reserve, k)
	m := min(k, len(s.reserve))
	s.queue = append(s.queue, s.reserve[:m]...)
	s.reserve = s.reserve[m:]

	s.reserve = append(s.reserve, drawn...)
	return drawn
}

// Len returns the number of codes held across both pools.
func (s *Sampler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) + len(s.reserve)
}

// pools returns copies of queue and reserve.
func (s *Sampler) pools() (queue, reserve []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queue...), append([]string(nil), s.reserve...)
}

// shuffle is a Fisher-Yates pass over the first limit positions of codes; each
// position i is swapped with a uniform pick from [i, len(codes)).
func shuffle(rnd *rand.Rand, codes []string, limit int) {
	limit = max(0, min(limit, len(codes)))
	for i := 0; i < limit; i++ {
		j := i + rnd.Intn(len(codes)-i)
		codes[i], codes[j] = codes[j], codes[i]
	}
}
