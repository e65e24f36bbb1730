package nn

import (
	"errors"
	"fmt"
)

var ErrInvalidShape = errors.New("invalid tensor shape")

// TensorShape is the fixed shape of a model input or output.
type TensorShape []int

// Volume is the number of elements of a tensor of this shape.
func (s TensorShape) Volume() (int, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("%w: no dimensions", ErrInvalidShape)
	}
	volume := 1
	for _, d := range s {
		if d <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidShape, []int(s))
		}
		volume *= d
	}
	return volume, nil
}

// NewTensor allocates a zeroed buffer for shape.
func NewTensor(shape TensorShape) ([]float32, error) {
	volume, err := shape.Volume()
	if err != nil {
		return nil, err
	}
	return make([]float32, volume), nil
}
