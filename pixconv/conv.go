// Package pixconv provides the convolutional operators
// used by image-to-image networks.
//
// All tensors are row-major depth-minor.
package pixconv

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Conv
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConv)
}

// Conv is a strided convolutional layer.
//
// Conv does not pad its input; put a Padding layer before
// it for that.
// Windows which do not fit entirely inside the input are
// skipped.
//
// Filters are stored as a FilterCount by
// (FilterHeight*FilterWidth*InputDepth) row-major matrix.
type Conv struct {
	FilterCount  int
	FilterWidth  int
	FilterHeight int

	StrideX int
	StrideY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	// NoBias disables the per-filter bias, which is
	// redundant before a normalization layer.
	NoBias bool

	Filters *anydiff.Var
	Biases  *anydiff.Var

	Conver Conver
}

// DeserializeConv deserializes a Conv.
//
// The Conver is created with CurrentConverMaker.
func DeserializeConv(d []byte) (*Conv, error) {
	var inW, inH, inD, fW, fH, sX, sY, noBias serializer.Int
	var f, b *anyvecsave.S
	err := serializer.DeserializeAny(d, &inW, &inH, &inD, &fW, &fH, &sX, &sY, &noBias, &f, &b)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Conv", err)
	}
	windowSize := int(fW * fH * inD)
	if windowSize == 0 || f.Vector.Len()%windowSize != 0 {
		return nil, errors.New("deserialize Conv: invalid filter size")
	}
	res := Conv{
		FilterCount:  f.Vector.Len() / windowSize,
		FilterWidth:  int(fW),
		FilterHeight: int(fH),
		StrideX:      int(sX),
		StrideY:      int(sY),
		InputWidth:   int(inW),
		InputHeight:  int(inH),
		InputDepth:   int(inD),
		NoBias:       noBias == 1,
		Filters:      anydiff.NewVar(f.Vector),
	}
	if !res.NoBias {
		if b.Vector.Len() != res.FilterCount {
			return nil, fmt.Errorf("deserialize Conv: %d biases for %d filters",
				b.Vector.Len(), res.FilterCount)
		}
		res.Biases = anydiff.NewVar(b.Vector)
	}
	res.Conver = CurrentConverMaker()(res)
	return &res, nil
}

// InitRand initializes the filters with normal noise
// scaled by 1/sqrt(fan-in), zeros the biases, and sets
// the Conver.
func (c *Conv) InitRand(cr anyvec.Creator) {
	c.InitZero(cr)
	randomFilters(c.Filters.Vector, float64(c.windowSize()))
}

// InitZero initializes the parameters to zero and sets
// the Conver.
func (c *Conv) InitZero(cr anyvec.Creator) {
	c.Filters, c.Biases = filterParams(cr, c.windowSize()*c.FilterCount, c.FilterCount,
		c.NoBias)
	c.Conver = CurrentConverMaker()(*c)
}

// OutputWidth returns the width of the output tensor.
func (c *Conv) OutputWidth() int {
	return numPositions(c.InputWidth, c.FilterWidth, c.StrideX)
}

// OutputHeight returns the height of the output tensor.
func (c *Conv) OutputHeight() int {
	return numPositions(c.InputHeight, c.FilterHeight, c.StrideY)
}

// OutputDepth returns the depth of the output tensor.
func (c *Conv) OutputDepth() int {
	return c.FilterCount
}

// Apply applies the layer with its Conver.
//
// The layer must have been initialized, and its fields
// should not change afterwards.
func (c *Conv) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	return c.Conver.Apply(in, batchSize)
}

// Parameters returns the filters, followed by the biases
// unless NoBias is set.
//
// If the layer is uninitialized, the result is nil.
func (c *Conv) Parameters() []*anydiff.Var {
	if !c.initialized() {
		return nil
	}
	return paramList(c.Filters, c.Biases)
}

// SerializerType returns the unique ID used to serialize
// a Conv with the serializer package.
func (c *Conv) SerializerType() string {
	return "github.com/unixpickle/pix2pix/pixconv.Conv"
}

// Serialize serializes the layer.
//
// If the layer was not yet initialized, this fails.
func (c *Conv) Serialize() ([]byte, error) {
	if !c.initialized() {
		return nil, errors.New("cannot serialize uninitialized Conv")
	}
	var noBias serializer.Int
	if c.NoBias {
		noBias = 1
	}
	return serializer.SerializeAny(
		serializer.Int(c.InputWidth),
		serializer.Int(c.InputHeight),
		serializer.Int(c.InputDepth),
		serializer.Int(c.FilterWidth),
		serializer.Int(c.FilterHeight),
		serializer.Int(c.StrideX),
		serializer.Int(c.StrideY),
		noBias,
		&anyvecsave.S{Vector: c.Filters.Vector},
		savedBiases(c.Filters, c.Biases),
	)
}

func (c *Conv) windowSize() int {
	return c.FilterWidth * c.FilterHeight * c.InputDepth
}

func (c *Conv) initialized() bool {
	return c.Filters != nil && (c.NoBias || c.Biases != nil)
}
