package pix2pix

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pix2pix/pixconv"
	"github.com/unixpickle/pix2pix/pixnet"
	"github.com/unixpickle/serializer"
)

func init() {
	var b Block
	serializer.RegisterTypedDeserializer(b.SerializerType(), DeserializeBlock)
}

const (
	blockFilterSize = 4
	blockStride     = 2
	blockPadding    = 1

	leakySlope = 0.2
)

// A Block is one resolution stage of a Generator.
//
// Applying a Block runs Conv, then Norm, then Activation,
// then Dropout.
// Nil Norm and Dropout layers are skipped.
type Block struct {
	Conv       pixnet.Layer
	Norm       *pixconv.InstanceNorm
	Activation pixnet.Layer
	Dropout    *pixnet.Dropout

	// Trace, if non-nil, is applied to the output.
	// It is not serialized.
	Trace *pixnet.Debug
}

// NewDownBlock creates a Block which halves the width and
// height of its input with a reflection-padded 4x4
// convolution followed by a leaky ReLU.
//
// If norm is true, the convolution has no bias and is
// followed by an instance normalization.
func NewDownBlock(c anyvec.Creator, inW, inH, inD, outD int, norm bool) *Block {
	pad := &pixconv.Padding{
		Mode:          pixconv.ReflectPadding,
		InputWidth:    inW,
		InputHeight:   inH,
		InputDepth:    inD,
		PaddingTop:    blockPadding,
		PaddingRight:  blockPadding,
		PaddingBottom: blockPadding,
		PaddingLeft:   blockPadding,
	}
	conv := &pixconv.Conv{
		FilterCount:  outD,
		FilterWidth:  blockFilterSize,
		FilterHeight: blockFilterSize,
		StrideX:      blockStride,
		StrideY:      blockStride,
		InputWidth:   pad.OutputWidth(),
		InputHeight:  pad.OutputHeight(),
		InputDepth:   inD,
		NoBias:       norm,
	}
	conv.InitRand(c)
	res := &Block{
		Conv:       pixnet.Net{pad, conv},
		Activation: &pixnet.LeakyReLU{Slope: leakySlope},
	}
	if norm {
		res.Norm = pixconv.NewInstanceNorm(c, outD)
	}
	return res
}

// NewUpBlock creates a Block which doubles the width and
// height of its input with a 4x4 transposed convolution.
//
// If norm is true, the convolution has no bias and is
// followed by an instance normalization.
// If keepProb is non-zero, the block ends with an enabled
// Dropout layer.
func NewUpBlock(c anyvec.Creator, inW, inH, inD, outD int, norm bool,
	activation pixnet.Layer, keepProb float64) *Block {
	conv := &pixconv.ConvTranspose{
		OutputDepth:  outD,
		FilterWidth:  blockFilterSize,
		FilterHeight: blockFilterSize,
		StrideX:      blockStride,
		StrideY:      blockStride,
		PaddingX:     blockPadding,
		PaddingY:     blockPadding,
		InputWidth:   inW,
		InputHeight:  inH,
		InputDepth:   inD,
		NoBias:       norm,
	}
	conv.InitRand(c)
	res := &Block{Conv: conv, Activation: activation}
	if norm {
		res.Norm = pixconv.NewInstanceNorm(c, outD)
	}
	if keepProb != 0 {
		res.Dropout = &pixnet.Dropout{Enabled: true, KeepProb: keepProb}
	}
	return res
}

// DeserializeBlock deserializes a Block.
func DeserializeBlock(d []byte) (*Block, error) {
	var conv, activation pixnet.Layer
	var norm, dropout pixnet.Net
	if err := serializer.DeserializeAny(d, &conv, &norm, &activation, &dropout); err != nil {
		return nil, essentials.AddCtx("deserialize Block", err)
	}
	res := &Block{Conv: conv, Activation: activation}
	if len(norm) == 1 {
		var ok bool
		if res.Norm, ok = norm[0].(*pixconv.InstanceNorm); !ok {
			return nil, fmt.Errorf("deserialize Block: unexpected norm: %T", norm[0])
		}
	}
	if len(dropout) == 1 {
		var ok bool
		if res.Dropout, ok = dropout[0].(*pixnet.Dropout); !ok {
			return nil, fmt.Errorf("deserialize Block: unexpected dropout: %T", dropout[0])
		}
	}
	return res, nil
}

// Apply applies the block to a batch.
func (b *Block) Apply(in anydiff.Res, batch int) anydiff.Res {
	return b.layers().Apply(in, batch)
}

// Parameters returns the convolution parameters followed
// by the normalization parameters.
func (b *Block) Parameters() []*anydiff.Var {
	return b.layers().Parameters()
}

// SerializerType returns the unique ID used to serialize
// a Block with the serializer package.
func (b *Block) SerializerType() string {
	return "github.com/unixpickle/pix2pix.Block"
}

// Serialize serializes the block.
func (b *Block) Serialize() ([]byte, error) {
	var norm, dropout pixnet.Net
	if b.Norm != nil {
		norm = pixnet.Net{b.Norm}
	}
	if b.Dropout != nil {
		dropout = pixnet.Net{b.Dropout}
	}
	return serializer.SerializeAny(b.Conv, norm, b.Activation, dropout)
}

func (b *Block) layers() pixnet.Net {
	res := pixnet.Net{b.Conv}
	if b.Norm != nil {
		res = append(res, b.Norm)
	}
	res = append(res, b.Activation)
	if b.Dropout != nil {
		res = append(res, b.Dropout)
	}
	if b.Trace != nil {
		res = append(res, b.Trace)
	}
	return res
}
