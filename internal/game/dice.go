package game

import (
	"encoding/binary"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// Dice is the session's only source of randomness. Two Dice built from the
// same seed produce the same setup.
type Dice struct {
	src *rand.ChaCha8
	rng *rand.Rand
}

// NewDice returns dice seeded with seed.
func NewDice(seed uint64) *Dice {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	src := rand.NewChaCha8(key)
	return &Dice{src: src, rng: rand.New(src)}
}

// RandomDice returns dice with an unpredictable seed.
func RandomDice() *Dice {
	return NewDice(rand.Uint64())
}

// IntN returns a uniform int in [0, n).
func (d *Dice) IntN(n int) int { return d.rng.IntN(n) }

// Pick returns a uniform element of items, which must not be empty.
func (d *Dice) Pick(items []string) string { return items[d.rng.IntN(len(items))] }

// Sample returns up to k distinct elements of items in random order.
func (d *Dice) Sample(items []string, k int) []string {
	perm := d.rng.Perm(len(items))
	if k > len(perm) {
		k = len(perm)
	}
	out := make([]string, k)
	for i := range out {
		out[i] = items[perm[i]]
	}
	return out
}

// Read fills p from the seeded stream.
func (d *Dice) Read(p []byte) (int, error) { return d.src.Read(p) }

// UUID returns a random UUID drawn from the seeded stream.
func (d *Dice) UUID() string {
	id, err := uuid.NewRandomFromReader(d)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ShortID returns an eight character lowercase id.
func (d *Dice) ShortID() string {
	return strings.ReplaceAll(d.UUID(), "-", "")[:8]
}
