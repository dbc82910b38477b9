package env

import (
	"math"
	"math/rand"

	"github.com/born-ml/agents/internal/agent"
)

// PointMassMaxSteps caps an episode.
const PointMassMaxSteps = 100

// NewPointMass creates a continuous 1-D task: the agent observes its
// position x in [-1, 1] and moves by 0.1 * clip(action, -1, 1) per step,
// receiving reward -|x|. Episodes only end at PointMassMaxSteps.
func NewPointMass(numAgents int, seed int64) Environment {
	params := agent.BrainParameters{
		BrainName:             "PointMassBrain",
		VectorObservationSize: 1,
		ActionSize:            1,
		ActionSpaceType:       agent.Continuous,
		ActionDescriptions:    []string{"velocity"},
	}
	return newMultiAgent(params, numAgents, PointMassMaxSteps, seed, func() task { return &pointMass{} })
}

type pointMass struct {
	x float64
}

func (p *pointMass) reset(rng *rand.Rand) {
	p.x = rng.Float64()*2 - 1
}

func (p *pointMass) observe() []float64 {
	return []float64{p.x}
}

func (p *pointMass) apply(action []float64) (float64, bool) {
	p.x += 0.1 * math.Max(-1, math.Min(1, action[0]))
	p.x = math.Max(-1, math.Min(1, p.x))
	return -math.Abs(p.x), false
}
