package nn

import (
	"context"
)

// Engine runs a model with fixed input and output shapes. Run reads exactly
// the input volume from in and writes exactly the output volume to out.
type Engine interface {
	InputShape() TensorShape
	OutputShape() TensorShape
	Run(ctx context.Context, in, out []float32) error
}
