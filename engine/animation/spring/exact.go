package spring

import (
	m "math"
)

// DefaultEpsilon separates the critically damped branch from the other two.
const DefaultEpsilon float32 = 1e-5

func kexp(x float32) float32 {
	return float32(m.Exp(float64(x)))
}

func ksqrt(x float32) float32 {
	return float32(m.Sqrt(float64(x)))
}

// SpringDamperExact advances the damped spring x'' + d x' + s (x - c) = 0 by
// exactly dt and returns the new position and velocity. c is the equilibrium
// once the goal velocity is accounted for.
func SpringDamperExact(x, v, xGoal, vGoal, stiffness, damping, dt, eps float32) (float32, float32) {
	g := xGoal
	q := vGoal
	s := stiffness
	d := damping
	c := g + (d*q)/(s+eps)
	y := d / 2.0
	disc := s - (d*d)/4.0

	switch {
	case kabs(disc) < eps:
		// critically damped
		j0 := x - c
		j1 := v + j0*y
		eydt := kexp(-y * dt)

		x = j0*eydt + dt*j1*eydt + c
		v = -y*j0*eydt - y*dt*j1*eydt + j1*eydt

	case disc > 0:
		// under damped
		w := ksqrt(disc)
		j := ksqrt(square(v+y*(x-c))/(w*w+eps) + square(x-c))
		p := float32(m.Atan(float64((v + (x-c)*y) / (-(x-c)*w + eps))))
		if x-c <= 0 {
			j = -j
		}
		eydt := kexp(-y * dt)
		cos := float32(m.Cos(float64(w*dt + p)))
		sin := float32(m.Sin(float64(w*dt + p)))

		x = j*eydt*cos + c
		v = -y*j*eydt*cos - w*j*eydt*sin

	default:
		// over damped
		root := ksqrt(d*d - 4*s)
		y0 := (d + root) / 2.0
		y1 := (d - root) / 2.0
		j1 := (c*y0 - x*y0 - v) / (y1 - y0)
		j0 := x - j1 - c
		ey0dt := kexp(-y0 * dt)
		ey1dt := kexp(-y1 * dt)

		x = j0*ey0dt + j1*ey1dt + c
		v = -y0*j0*ey0dt - y1*j1*ey1dt
	}
	return x, v
}

func square(x float32) float32 {
	return x * x
}

func kabs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
