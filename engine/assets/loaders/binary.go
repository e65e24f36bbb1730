package loaders

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/neuranim/engine/resources"
)

// Tensor files are little endian: int32 dimension count, the int32
// dimensions, then the row major payload.

var ErrInvalidTensor = errors.New("invalid tensor")

// maxTensorDims guards against reading garbage as a dimension count.
const maxTensorDims = 16

type Tensor struct {
	Dims []int32
	Data []float32
}

// Volume is the product of the dimensions.
func Volume(dims []int32) (int, error) {
	if len(dims) == 0 {
		return 0, fmt.Errorf("%w: no dimensions", ErrInvalidTensor)
	}
	volume := 1
	for _, d := range dims {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension %d", ErrInvalidTensor, d)
		}
		volume *= int(d)
	}
	return volume, nil
}

func writeTensor[T float32 | int32](w io.Writer, dims []int32, data []T) error {
	volume, err := Volume(dims)
	if err != nil {
		return err
	}
	if volume != len(data) {
		return fmt.Errorf("%w: dimensions %v hold %d values, got %d", ErrInvalidTensor, dims, volume, len(data))
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(dims))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dims); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}

func readTensor[T float32 | int32](r io.Reader) ([]int32, []T, error) {
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, nil, err
	}
	if count <= 0 || count > maxTensorDims {
		return nil, nil, fmt.Errorf("%w: %d dimensions", ErrInvalidTensor, count)
	}
	dims := make([]int32, count)
	if err := binary.Read(r, binary.LittleEndian, dims); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTensor, err)
	}
	volume, err := Volume(dims)
	if err != nil {
		return nil, nil, err
	}
	data := make([]T, volume)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTensor, err)
	}
	return dims, data, nil
}

func WriteTensor(w io.Writer, dims []int32, data []float32) error {
	return writeTensor(w, dims, data)
}

func WriteTensorInt32(w io.Writer, dims []int32, data []int32) error {
	return writeTensor(w, dims, data)
}

// ReadTensor reads one float32 tensor. io.EOF is returned untouched when r is
// exhausted before the header.
func ReadTensor(r io.Reader) (*Tensor, error) {
	dims, data, err := readTensor[float32](r)
	if err != nil {
		return nil, err
	}
	return &Tensor{Dims: dims, Data: data}, nil
}

func ReadTensorInt32(r io.Reader) ([]int32, []int32, error) {
	return readTensor[int32](r)
}

// SaveTensor writes a float32 tensor file at path.
func SaveTensor(path string, dims []int32, data []float32) error {
	return saveFile(path, func(w io.Writer) error { return WriteTensor(w, dims, data) })
}

// SaveTensorInt32 writes an int32 tensor file at path.
func SaveTensorInt32(path string, dims []int32, data []int32) error {
	return saveFile(path, func(w io.Writer) error { return WriteTensorInt32(w, dims, data) })
}

func saveFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func LoadTensor(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTensor(bufio.NewReader(f))
}

// LoadTensorInt32 reads an int32 tensor file such as the exported parent indices.
func LoadTensorInt32(path string) ([]int32, []int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadTensorInt32(bufio.NewReader(f))
}

type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	t, err := LoadTensor(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tensor %s: %w", path, err)
	}
	return &resources.Resource{
		Name:     resources.ResourceName(path),
		FullPath: path,
		Type:     resources.ResourceTypeTensor,
		DataSize: uint64(4 * (1 + len(t.Dims) + len(t.Data))),
		Data:     t,
	}, nil
}

func (bl *BinaryLoader) Unload(*resources.Resource) error {
	return nil
}
