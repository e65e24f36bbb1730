package nn

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/spaghettifunk/neuranim/engine/assets/loaders"
)

var ErrBufferSize = errors.New("buffer does not match the tensor volume")

type denseLayer struct {
	weights *mat.Dense
	bias    *mat.VecDense
}

// Dense is a stack of affine layers with a ReLU between consecutive layers;
// the last layer is linear.
type Dense struct {
	name   string
	layers []denseLayer
}

func NewDense(md *loaders.ModelData) (*Dense, error) {
	if err := md.Validate(); err != nil {
		return nil, err
	}
	d := &Dense{name: md.Name}
	for _, l := range md.Layers {
		rows, cols := l.Outputs(), l.Inputs()
		w := make([]float64, rows*cols)
		for i, v := range l.Weights.Data {
			w[i] = float64(v)
		}
		b := make([]float64, rows)
		for i, v := range l.Bias.Data {
			b[i] = float64(v)
		}
		d.layers = append(d.layers, denseLayer{
			weights: mat.NewDense(rows, cols, w),
			bias:    mat.NewVecDense(rows, b),
		})
	}
	return d, nil
}

func (d *Dense) Name() string {
	return d.name
}

func (d *Dense) InputShape() TensorShape {
	_, cols := d.layers[0].weights.Dims()
	return TensorShape{1, cols}
}

func (d *Dense) OutputShape() TensorShape {
	rows, _ := d.layers[len(d.layers)-1].weights.Dims()
	return TensorShape{1, rows}
}

func (d *Dense) Run(ctx context.Context, in, out []float32) error {
	_, inputs := d.layers[0].weights.Dims()
	outputs, _ := d.layers[len(d.layers)-1].weights.Dims()
	if len(in) != inputs {
		return fmt.Errorf("%w: input has %d values, expected %d", ErrBufferSize, len(in), inputs)
	}
	if len(out) != outputs {
		return fmt.Errorf("%w: output has %d values, expected %d", ErrBufferSize, len(out), outputs)
	}

	x := make([]float64, len(in))
	for i, v := range in {
		x[i] = float64(v)
	}
	activation := mat.NewVecDense(len(x), x)

	for i, l := range d.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, _ := l.weights.Dims()
		next := mat.NewVecDense(rows, nil)
		next.MulVec(l.weights, activation)
		next.AddVec(next, l.bias)
		if i < len(d.layers)-1 {
			for r := 0; r < rows; r++ {
				if next.AtVec(r) < 0 {
					next.SetVec(r, 0)
				}
			}
		}
		activation = next
	}

	for i := range out {
		out[i] = float32(activation.AtVec(i))
	}
	return nil
}
