package model

import (
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// RandomActivation manages household activation and scheduling
type RandomActivation struct {
	Agents  []*Household
	Order   ActivationOrder
	Workers int

	src *rand.PCG
	rng *rand.Rand
}

// NewRandomActivation creates a new activation scheduler
func NewRandomActivation(order ActivationOrder, workers int, src *rand.PCG) *RandomActivation {
	return &RandomActivation{
		Agents:  make([]*Household, 0),
		Order:   order,
		Workers: workers,
		src:     src,
		rng:     rand.New(src),
	}
}

// AddAgent adds a household to the scheduler
func (ra *RandomActivation) AddAgent(agent *Household) {
	ra.Agents = append(ra.Agents, agent)
}

func (ra *RandomActivation) order() []int {
	indices := make([]int, len(ra.Agents))
	for i := range indices {
		indices[i] = i
	}
	if ra.Order == ActivationShuffled {
		ra.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}
	return indices
}

// Step activates all households once. With more than one worker the
// activations run concurrently, which is only safe because an activation
// reads frozen state and writes nothing but its own household.
func (ra *RandomActivation) Step(activate func(*Household)) {
	indices := ra.order()

	if ra.Workers <= 1 || len(indices) < 2 {
		for _, i := range indices {
			activate(ra.Agents[i])
		}
		return
	}

	workers := min(ra.Workers, len(indices))
	chunk := (len(indices) + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < len(indices); start += chunk {
		part := indices[start:min(start+chunk, len(indices))]
		g.Go(func() error {
			for _, i := range part {
				activate(ra.Agents[i])
			}
			return nil
		})
	}
	g.Wait()
}

// RandomState returns the serialized state of the shuffle source.
func (ra *RandomActivation) RandomState() ([]byte, error) {
	return ra.src.MarshalBinary()
}

// RestoreRandomState resets the shuffle source from RandomState output.
func (ra *RandomActivation) RestoreRandomState(data []byte) error {
	src := &rand.PCG{}
	if err := src.UnmarshalBinary(data); err != nil {
		return err
	}
	ra.src = src
	ra.rng = rand.New(src)
	return nil
}
