package entity

import (
	"math/rand/v2"
	"sync"
)

// MarkPolicy decides which slot plays X once a game has both players.
type MarkPolicy interface {
	AssignX(game Game) Slot
}

type MarkPolicyFunc func(game Game) Slot

func (that MarkPolicyFunc) AssignX(game Game) Slot {
	return that(game)
}

// FirstJoinedPolicy - the slot filled first gets X. Slot1 is always filled before Slot2.
var FirstJoinedPolicy MarkPolicy = MarkPolicyFunc(func(Game) Slot {
	return FirstSlot
})

type randomPolicy struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomPolicy - coin flip per game, reproducible for a given seed.
func NewRandomPolicy(seed uint64) MarkPolicy {
	return &randomPolicy{
		rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint: gosec // it's ok
	}
}

func (that *randomPolicy) AssignX(Game) Slot {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.rnd.IntN(2) == 0 {
		return FirstSlot
	}
	return SecondSlot
}
