package savgol

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spaghettifunk/neuranim/engine/math"
)

// Mode selects how samples outside of the sequence are produced.
type Mode string

const (
	// ModeReflect mirrors about the edge sample: (d c b | a b c d | c b a).
	ModeReflect Mode = "reflect"
	// ModeConstant uses the fill value.
	ModeConstant Mode = "constant"
	// ModeNearest repeats the edge sample.
	ModeNearest Mode = "nearest"
	// ModeWrap wraps around to the opposite edge.
	ModeWrap Mode = "wrap"
	// ModeInterp is only understood by Filter: the edges are replaced by a
	// polynomial fit instead of being padded.
	ModeInterp Mode = "interp"
)

var (
	ErrNoWeights     = errors.New("no filter weights given")
	ErrInvalidOrigin = errors.New("invalid origin")
	ErrInvalidMode   = errors.New("invalid boundary mode")
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeReflect, ModeConstant, ModeNearest, ModeWrap, ModeInterp:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// boundary maps an index into [0, n). ok is false when the constant fill
// value has to be used instead.
func boundary(idx, n int, mode Mode) (int, bool) {
	if idx >= 0 && idx < n {
		return idx, true
	}
	switch mode {
	case ModeReflect:
		if n == 1 {
			return 0, true
		}
		period := 2 * (n - 1)
		idx %= period
		if idx < 0 {
			idx += period
		}
		if idx >= n {
			idx = period - idx
		}
		return idx, true
	case ModeNearest:
		return math.Clamp(idx, 0, n-1), true
	case ModeWrap:
		idx %= n
		if idx < 0 {
			idx += n
		}
		return idx, true
	default:
		return 0, false
	}
}

// Correlate1D computes out[i] = sum_j weights[j] * input[i + j - len(weights)/2 - origin].
// The window is centred on i; a positive origin shifts it to the left.
func Correlate1D(input []math.Vec3, weights []float32, mode Mode, cval math.Vec3, origin int) ([]math.Vec3, error) {
	size := len(weights)
	if size == 0 {
		return nil, ErrNoWeights
	}
	if origin < -(size/2) || origin > (size-1)/2 {
		return nil, fmt.Errorf("%w: %d must be in [%d, %d]", ErrInvalidOrigin, origin, -(size / 2), (size-1)/2)
	}
	switch mode {
	case ModeReflect, ModeConstant, ModeNearest, ModeWrap:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	n := len(input)
	out := make([]math.Vec3, n)
	shift := size/2 + origin
	for i := 0; i < n; i++ {
		acc := math.NewVec3Zero()
		for j, w := range weights {
			idx, ok := boundary(i+j-shift, n, mode)
			if ok {
				acc = acc.Add(input[idx].MulScalar(w))
			} else {
				acc = acc.Add(cval.MulScalar(w))
			}
		}
		out[i] = acc
	}
	return out, nil
}

// Convolve1D is Correlate1D with the weights reversed. Even length kernels are
// shifted by one so that they stay aligned with the correlation.
func Convolve1D(input []math.Vec3, weights []float32, mode Mode, cval math.Vec3, origin int) ([]math.Vec3, error) {
	reversed := slices.Clone(weights)
	slices.Reverse(reversed)

	origin = -origin
	if len(weights)%2 == 0 {
		origin--
	}
	return Correlate1D(input, reversed, mode, cval, origin)
}
