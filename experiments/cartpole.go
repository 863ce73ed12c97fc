package experiments

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anyvec"
)

// CartPoleName is the name of the built-in pole
// balancing environment.
const CartPoleName = "CartPole"

const (
	cartPoleGravity     = 9.8
	cartPoleCartMass    = 1.0
	cartPolePoleMass    = 0.1
	cartPoleTotalMass   = cartPoleCartMass + cartPolePoleMass
	cartPoleHalfLength  = 0.5
	cartPolePoleMoment  = cartPolePoleMass * cartPoleHalfLength
	cartPoleForce       = 10.0
	cartPoleTimeDelta   = 0.02
	cartPoleXLimit      = 2.4
	cartPoleThetaLimit  = 12 * 2 * math.Pi / 360
	cartPoleMaxTimestep = 500
)

// CartPole is a pole balancing environment.
//
// Actions are one-hot vectors over two actions (push left,
// push right).
// Every step yields a reward of 1, and episodes end when
// the pole falls, the cart leaves the track, or the time
// limit is reached.
type CartPole struct {
	Creator anyvec.Creator
	Rand    *rand.Rand

	x, xDot, theta, thetaDot float64
	timestep                 int
}

// NewCartPole creates a CartPole environment.
//
// If gen is nil, a generator is seeded from the global
// source.
func NewCartPole(c anyvec.Creator, gen *rand.Rand) *CartPole {
	if gen == nil {
		gen = rand.New(rand.NewSource(rand.Int63()))
	}
	return &CartPole{Creator: c, Rand: gen}
}

// Reset starts a new episode.
func (c *CartPole) Reset() (anyvec.Vector, error) {
	c.x = c.uniformInit()
	c.xDot = c.uniformInit()
	c.theta = c.uniformInit()
	c.thetaDot = c.uniformInit()
	c.timestep = 0
	return c.obs(), nil
}

// Step applies a force to the cart.
func (c *CartPole) Step(action anyvec.Vector) (obs anyvec.Vector, reward float64,
	done bool, err error) {
	force := -cartPoleForce
	if anyvec.MaxIndex(action) == 1 {
		force = cartPoleForce
	}

	cosTheta := math.Cos(c.theta)
	sinTheta := math.Sin(c.theta)
	temp := (force + cartPolePoleMoment*c.thetaDot*c.thetaDot*sinTheta) /
		cartPoleTotalMass
	thetaAcc := (cartPoleGravity*sinTheta - cosTheta*temp) /
		(cartPoleHalfLength * (4.0/3.0 - cartPolePoleMass*cosTheta*cosTheta/cartPoleTotalMass))
	xAcc := temp - cartPolePoleMoment*thetaAcc*cosTheta/cartPoleTotalMass

	c.x += cartPoleTimeDelta * c.xDot
	c.xDot += cartPoleTimeDelta * xAcc
	c.theta += cartPoleTimeDelta * c.thetaDot
	c.thetaDot += cartPoleTimeDelta * thetaAcc
	c.timestep++

	done = math.Abs(c.x) > cartPoleXLimit || math.Abs(c.theta) > cartPoleThetaLimit ||
		c.timestep >= cartPoleMaxTimestep
	return c.obs(), 1, done, nil
}

// Close does nothing.
func (c *CartPole) Close() error {
	return nil
}

func (c *CartPole) uniformInit() float64 {
	return c.Rand.Float64()*0.1 - 0.05
}

func (c *CartPole) obs() anyvec.Vector {
	data := []float64{c.x, c.xDot, c.theta, c.thetaDot}
	return c.Creator.MakeVectorData(c.Creator.MakeNumericList(data))
}
