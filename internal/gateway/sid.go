package gateway

import (
	"math/rand"
	"sync"
	"time"
)

const sidLength = 20

var sidLetters = []rune("123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ")

// sidGenerator hands out Engine.IO session ids. They only need to be unique
// per process, not unguessable.
type sidGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSIDGenerator(seed int64) *sidGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &sidGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *sidGenerator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]rune, sidLength)
	for i := range b {
		b[i] = sidLetters[g.rng.Intn(len(sidLetters))]
	}
	return string(b)
}
