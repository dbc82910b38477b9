package env

import (
	"math"
	"math/rand"

	"github.com/born-ml/agents/internal/agent"
)

// Classic cart-pole constants (Barto, Sutton & Anderson, 1983).
const (
	gravity        = 9.8
	cartMass       = 1.0
	poleMass       = 0.1
	totalMass      = cartMass + poleMass
	poleHalfLength = 0.5
	poleMassLength = poleMass * poleHalfLength
	forceMag       = 10.0
	tau            = 0.02
	thetaThreshold = 12 * 2 * math.Pi / 360
	xThreshold     = 2.4

	// CartPoleMaxSteps caps an episode.
	CartPoleMaxSteps = 500
)

// NewCartPole creates the discrete cart-pole balancing task: push the cart
// left (action 0) or right (action 1) to keep the pole upright. The reward
// is 1 per step; an episode ends when the pole falls past 12 degrees, the
// cart leaves [-2.4, 2.4], or after CartPoleMaxSteps steps.
func NewCartPole(numAgents int, seed int64) Environment {
	params := agent.BrainParameters{
		BrainName:             "CartPoleBrain",
		VectorObservationSize: 4,
		ActionSize:            2,
		ActionSpaceType:       agent.Discrete,
		ActionDescriptions:    []string{"left", "right"},
	}
	return newMultiAgent(params, numAgents, CartPoleMaxSteps, seed, func() task { return &cartPole{} })
}

type cartPole struct {
	x, xDot, theta, thetaDot float64
}

func (c *cartPole) reset(rng *rand.Rand) {
	c.x = rng.Float64()*0.1 - 0.05
	c.xDot = rng.Float64()*0.1 - 0.05
	c.theta = rng.Float64()*0.1 - 0.05
	c.thetaDot = rng.Float64()*0.1 - 0.05
}

func (c *cartPole) observe() []float64 {
	return []float64{c.x, c.xDot, c.theta, c.thetaDot}
}

func (c *cartPole) apply(action []float64) (float64, bool) {
	force := -forceMag
	if action[0] == 1 {
		force = forceMag
	}
	cos, sin := math.Cos(c.theta), math.Sin(c.theta)
	temp := (force + poleMassLength*c.thetaDot*c.thetaDot*sin) / totalMass
	thetaAcc := (gravity*sin - cos*temp) /
		(poleHalfLength * (4.0/3.0 - poleMass*cos*cos/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cos/totalMass

	c.x += tau * c.xDot
	c.xDot += tau * xAcc
	c.theta += tau * c.thetaDot
	c.thetaDot += tau * thetaAcc

	terminal := c.x < -xThreshold || c.x > xThreshold ||
		c.theta < -thetaThreshold || c.theta > thetaThreshold
	return 1, terminal
}
