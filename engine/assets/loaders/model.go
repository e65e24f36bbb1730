package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/neuranim/engine/resources"
)

var ErrInvalidModel = errors.New("invalid model data")

// Layer is one affine layer: Weights is [outputs, inputs], Bias is [outputs].
type Layer struct {
	Weights *Tensor
	Bias    *Tensor
}

func (l Layer) Inputs() int {
	return int(l.Weights.Dims[1])
}

func (l Layer) Outputs() int {
	return int(l.Weights.Dims[0])
}

// ModelData is the raw content of a .model file: a sequence of weight and bias
// tensors, one pair per layer.
type ModelData struct {
	Name   string
	Layers []Layer
}

func (md *ModelData) Validate() error {
	if len(md.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidModel)
	}
	for i, l := range md.Layers {
		if len(l.Weights.Dims) != 2 || len(l.Bias.Dims) != 1 || l.Bias.Dims[0] != l.Weights.Dims[0] {
			return fmt.Errorf("%w: layer %d has weights %v and bias %v", ErrInvalidModel, i, l.Weights.Dims, l.Bias.Dims)
		}
		if i > 0 && md.Layers[i-1].Outputs() != l.Inputs() {
			return fmt.Errorf("%w: layer %d takes %d inputs, previous layer has %d outputs", ErrInvalidModel, i, l.Inputs(), md.Layers[i-1].Outputs())
		}
	}
	return nil
}

func ReadModel(r io.Reader) (*ModelData, error) {
	md := &ModelData{}
	for {
		weights, err := ReadTensor(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		bias, err := ReadTensor(r)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d has no bias: %v", ErrInvalidModel, len(md.Layers), err)
		}
		md.Layers = append(md.Layers, Layer{Weights: weights, Bias: bias})
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

func WriteModel(w io.Writer, md *ModelData) error {
	if err := md.Validate(); err != nil {
		return err
	}
	for _, l := range md.Layers {
		if err := WriteTensor(w, l.Weights.Dims, l.Weights.Data); err != nil {
			return err
		}
		if err := WriteTensor(w, l.Bias.Dims, l.Bias.Data); err != nil {
			return err
		}
	}
	return nil
}

func SaveModel(path string, md *ModelData) error {
	return saveFile(path, func(w io.Writer) error { return WriteModel(w, md) })
}

type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	md, err := ReadModel(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}
	md.Name = resources.ResourceName(path)

	var size uint64
	if fi, err := f.Stat(); err == nil {
		size = uint64(fi.Size())
	}
	return &resources.Resource{
		Name:     md.Name,
		FullPath: path,
		Type:     resources.ResourceTypeModel,
		DataSize: size,
		Data:     md,
	}, nil
}

func (ml *ModelLoader) Unload(*resources.Resource) error {
	return nil
}
