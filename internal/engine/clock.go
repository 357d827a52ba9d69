package engine

// Clock counts committed steps. Elapsed time is derived from the count, so
// N steps of dt always report exactly N*dt.
type Clock struct {
	step int
	dt   float64
}

func (c Clock) Step() int   { return c.step }
func (c Clock) Dt() float64 { return c.dt }

func (c Clock) Elapsed() float64 {
	return float64(c.step) * c.dt
}

func (c Clock) tick() Clock {
	return Clock{step: c.step + 1, dt: c.dt}
}
