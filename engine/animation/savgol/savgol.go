package savgol

import (
	"errors"
	"fmt"
	m "math"

	"gonum.org/v1/gonum/mat"

	"github.com/spaghettifunk/neuranim/engine/math"
)

// Use selects the orientation of the coefficients.
type Use string

const (
	// UseConv orders the coefficients for Convolve1D.
	UseConv Use = "conv"
	// UseDot orders the coefficients for a dot product with the window.
	UseDot Use = "dot"
)

var (
	ErrInvalidPolyOrder = errors.New("polyorder must be less than window_length")
	ErrInvalidDeriv     = errors.New("deriv must be non-negative")
	ErrInvalidPos       = errors.New("pos must be inside the window")
	ErrInvalidWindow    = errors.New("window_length must be odd and greater than polyorder, polyorder must be positive")
	ErrWindowTooLong    = errors.New("window_length must not exceed the number of samples in interp mode")
	ErrSolve            = errors.New("least squares solve failed")
)

// Coeffs returns the weights that, applied to windowLength samples, evaluate
// the deriv-th derivative of the least squares polynomial of degree polyOrder
// at offset pos of the window. A negative pos selects the window centre.
func Coeffs(windowLength, polyOrder, deriv int, delta, pos float64, use Use) ([]float32, error) {
	if polyOrder >= windowLength {
		return nil, fmt.Errorf("%w: polyorder %d, window_length %d", ErrInvalidPolyOrder, polyOrder, windowLength)
	}
	if deriv < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDeriv, deriv)
	}
	half := windowLength / 2
	if pos < 0 {
		if windowLength%2 == 0 {
			pos = float64(half) - 0.5
		} else {
			pos = float64(half)
		}
	}
	if pos >= float64(windowLength) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPos, pos)
	}
	if use != UseConv && use != UseDot {
		return nil, fmt.Errorf("%w: use %q", ErrInvalidMode, use)
	}

	out := make([]float32, windowLength)
	if deriv > polyOrder {
		return out, nil
	}

	x := make([]float64, windowLength)
	for i := range x {
		x[i] = float64(i) - pos
	}
	if use == UseConv {
		for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
			x[i], x[j] = x[j], x[i]
		}
	}

	// A[k][i] = x[i]^k, the coefficients are the minimum norm solution of A c = y
	rows := polyOrder + 1
	a := mat.NewDense(rows, windowLength, nil)
	for k := 0; k < rows; k++ {
		for i, xi := range x {
			a.Set(k, i, m.Pow(xi, float64(k)))
		}
	}
	y := mat.NewVecDense(rows, nil)
	y.SetVec(deriv, factorial(deriv)/m.Pow(delta, float64(deriv)))

	var aat mat.SymDense
	aat.SymOuterK(1, a)
	var chol mat.Cholesky
	if ok := chol.Factorize(&aat); !ok {
		return nil, ErrSolve
	}
	var z mat.VecDense
	if err := chol.SolveVecTo(&z, y); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolve, err)
	}
	var c mat.VecDense
	c.MulVec(a.T(), &z)

	for i := range out {
		out[i] = float32(c.AtVec(i))
	}
	return out, nil
}

// Filter smooths x with a Savitzky-Golay filter, or computes its deriv-th
// derivative when deriv > 0. delta is the sample spacing.
func Filter(x []math.Vec3, windowLength, polyOrder, deriv int, delta float32, mode Mode, cval math.Vec3) ([]math.Vec3, error) {
	if windowLength%2 == 0 || windowLength <= 0 || polyOrder <= 0 || windowLength <= polyOrder {
		return nil, fmt.Errorf("%w: window_length %d, polyorder %d", ErrInvalidWindow, windowLength, polyOrder)
	}
	if mode != ModeInterp {
		if _, err := ParseMode(string(mode)); err != nil {
			return nil, err
		}
	}

	coeffs, err := Coeffs(windowLength, polyOrder, deriv, float64(delta), -1, UseConv)
	if err != nil {
		return nil, err
	}

	if mode != ModeInterp {
		return Convolve1D(x, coeffs, mode, cval, 0)
	}

	if windowLength > len(x) {
		return nil, fmt.Errorf("%w: window_length %d, %d samples", ErrWindowTooLong, windowLength, len(x))
	}
	y, err := Convolve1D(x, coeffs, ModeConstant, cval, 0)
	if err != nil {
		return nil, err
	}
	if err := fitEdgesPolyfit(x, windowLength, polyOrder, deriv, float64(delta), y); err != nil {
		return nil, err
	}
	return y, nil
}

// fitEdgesPolyfit replaces the first and last windowLength/2 samples of y by
// the polynomial fitted to the first and last window of x.
func fitEdgesPolyfit(x []math.Vec3, windowLength, polyOrder, deriv int, delta float64, y []math.Vec3) error {
	half := windowLength / 2
	n := len(x)
	if err := fitEdge(x, 0, windowLength, 0, half, polyOrder, deriv, delta, y); err != nil {
		return err
	}
	return fitEdge(x, n-windowLength, n, n-half, n, polyOrder, deriv, delta, y)
}

func fitEdge(x []math.Vec3, windowStart, windowStop, interpStart, interpStop, polyOrder, deriv int, delta float64, y []math.Vec3) error {
	size := windowStop - windowStart

	// Vandermonde of the sample positions within the window, one column of
	// the right hand side per component
	v := mat.NewDense(size, polyOrder+1, nil)
	b := mat.NewDense(size, 3, nil)
	for i := 0; i < size; i++ {
		for k := 0; k <= polyOrder; k++ {
			v.Set(i, k, m.Pow(float64(i), float64(k)))
		}
		s := x[windowStart+i]
		b.Set(i, 0, float64(s.X))
		b.Set(i, 1, float64(s.Y))
		b.Set(i, 2, float64(s.Z))
	}

	var coeffs mat.Dense
	if err := coeffs.Solve(v, b); err != nil {
		return fmt.Errorf("%w: %v", ErrSolve, err)
	}

	scale := m.Pow(delta, float64(deriv))
	for i := interpStart; i < interpStop; i++ {
		t := float64(i - windowStart)
		var out [3]float64
		for k := deriv; k <= polyOrder; k++ {
			// d^deriv/dt^deriv of t^k
			term := fallingFactorial(k, deriv) * m.Pow(t, float64(k-deriv))
			for c := 0; c < 3; c++ {
				out[c] += coeffs.At(k, c) * term
			}
		}
		y[i] = math.NewVec3(float32(out[0]/scale), float32(out[1]/scale), float32(out[2]/scale))
	}
	return nil
}

func factorial(n int) float64 {
	return fallingFactorial(n, n)
}

// fallingFactorial returns n (n-1) ... (n-k+1).
func fallingFactorial(n, k int) float64 {
	out := 1.0
	for i := 0; i < k; i++ {
		out *= float64(n - i)
	}
	return out
}

// FilterTransforms smooths the position track of every bone of a sequence.
// frames is indexed [frame][bone]; rotations are kept as they are.
func FilterTransforms(frames [][]math.Transform, windowLength, polyOrder int, mode Mode) ([][]math.Transform, error) {
	if len(frames) == 0 {
		return frames, nil
	}
	numBones := len(frames[0])
	out := make([][]math.Transform, len(frames))
	for f := range frames {
		if len(frames[f]) != numBones {
			return nil, fmt.Errorf("frame %d has %d bones, expected %d", f, len(frames[f]), numBones)
		}
		out[f] = make([]math.Transform, numBones)
		copy(out[f], frames[f])
	}

	track := make([]math.Vec3, len(frames))
	for b := 0; b < numBones; b++ {
		for f := range frames {
			track[f] = frames[f][b].Position
		}
		smoothed, err := Filter(track, windowLength, polyOrder, 0, 1, mode, math.NewVec3Zero())
		if err != nil {
			return nil, err
		}
		for f := range frames {
			out[f][b].Position = smoothed[f]
		}
	}
	return out, nil
}
