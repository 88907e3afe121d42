package pixconv

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/convmarkup"
	"github.com/unixpickle/pix2pix/pixnet"
)

// FromMarkup creates a sequential network from a markup
// description.
//
// For details on this format, see:
// https://github.com/unixpickle/convmarkup.
//
// Supported blocks are Conv, Padding (zero padding),
// Dropout, Debug, Repeat, ReLU, Sigmoid, Tanh, and
// BatchNorm.
// Since networks in this module normalize every image on
// its own, BatchNorm blocks are realized as InstanceNorm
// layers.
func FromMarkup(c anyvec.Creator, code string) (pixnet.Layer, error) {
	parsed, err := convmarkup.Parse(code)
	if err != nil {
		return nil, errors.New("parse markup: " + err.Error())
	}
	block, err := parsed.Block(convmarkup.Dims{}, convmarkup.DefaultCreators())
	if err != nil {
		return nil, errors.New("make markup block: " + err.Error())
	}
	chain := convmarkup.RealizerChain{convmarkup.MetaRealizer{}, Realizer(c)}
	instance, _, err := chain.Realize(convmarkup.Dims{}, block)
	if err != nil {
		return nil, errors.New("realize markup block: " + err.Error())
	}
	if layer, ok := instance.(pixnet.Layer); ok {
		return layer, nil
	} else {
		return nil, fmt.Errorf("not a pixnet.Layer: %T", instance)
	}
}

// Realizer creates a convmarkup.Realizer capable of
// realizing sequential convolutional networks.
//
// Realized objects will all implement pixnet.Layer.
//
// The Realizer is meant to be used in conjunction with a
// convmarkup.MetaRealizer:
//
//	convmarkup.RealizerChain{
//		convmarkup.MetaRealizer{},
//		pixconv.Realizer(creator),
//	}
//
// Debug blocks are realized as pixnet.Debug layers.
// The variance, raw, and mean attributes can be set to 1
// to enable the corresponding flags.
func Realizer(c anyvec.Creator) convmarkup.Realizer {
	return &realizer{creator: c}
}

type realizer struct {
	creator anyvec.Creator
}

func (r *realizer) Realize(chain convmarkup.RealizerChain, inDims convmarkup.Dims,
	b convmarkup.Block) (interface{}, error) {
	switch b := b.(type) {
	case *convmarkup.Root:
		return r.net(chain, inDims, b.Children)
	case *convmarkup.Conv:
		return r.conv(inDims, b)
	case *convmarkup.Activation:
		return r.activation(inDims, b)
	case *convmarkup.Padding:
		return r.padding(inDims, b)
	case *convmarkup.Dropout:
		return &pixnet.Dropout{KeepProb: b.Prob, Enabled: true}, nil
	case *convmarkup.Debug:
		return r.debug(inDims, b)
	default:
		return nil, convmarkup.ErrUnsupportedBlock
	}
}

func (r *realizer) net(chain convmarkup.RealizerChain, inDims convmarkup.Dims,
	ch []convmarkup.Block) (pixnet.Net, error) {
	var res pixnet.Net
	for _, b := range ch {
		// Avoiding nested pixnet.Net objects.
		if rep, ok := b.(*convmarkup.Repeat); ok {
			for i := 0; i < rep.N; i++ {
				net, err := r.net(chain, inDims, rep.Children)
				if err != nil {
					return nil, err
				}
				res = append(res, net...)
			}
			inDims = b.OutDims()
			continue
		}
		obj, _, err := chain.Realize(inDims, b)
		if err != nil {
			return nil, err
		} else if obj != nil {
			if layer, ok := obj.(pixnet.Layer); ok {
				res = append(res, layer)
			} else {
				return nil, fmt.Errorf("not a pixnet.Layer: %T", obj)
			}
		}
		inDims = b.OutDims()
	}
	return res, nil
}

func (r *realizer) conv(d convmarkup.Dims, b *convmarkup.Conv) (pixnet.Layer, error) {
	res := &Conv{
		FilterWidth:  b.FilterWidth,
		FilterHeight: b.FilterHeight,
		FilterCount:  b.FilterCount,
		StrideX:      b.StrideX,
		StrideY:      b.StrideY,
		InputWidth:   d.Width,
		InputHeight:  d.Height,
		InputDepth:   d.Depth,
	}
	res.InitRand(r.creator)
	return res, nil
}

func (r *realizer) activation(d convmarkup.Dims, b *convmarkup.Activation) (pixnet.Layer,
	error) {
	switch b.Name {
	case "BatchNorm":
		return NewInstanceNorm(r.creator, d.Depth), nil
	case "ReLU":
		return pixnet.ReLU, nil
	case "Sigmoid":
		return pixnet.Sigmoid, nil
	case "Tanh":
		return pixnet.Tanh, nil
	default:
		return nil, fmt.Errorf("unknown activation: %s", b.Name)
	}
}

func (r *realizer) padding(d convmarkup.Dims, b *convmarkup.Padding) (pixnet.Layer, error) {
	return &Padding{
		Mode:          ZeroPadding,
		InputWidth:    d.Width,
		InputHeight:   d.Height,
		InputDepth:    d.Depth,
		PaddingTop:    b.Top,
		PaddingRight:  b.Right,
		PaddingBottom: b.Bottom,
		PaddingLeft:   b.Left,
	}, nil
}

func (r *realizer) debug(d convmarkup.Dims, b *convmarkup.Debug) (pixnet.Layer, error) {
	return &pixnet.Debug{
		Depth:         d.Depth,
		PrintMean:     b.Attrs["mean"] == 1,
		PrintRaw:      b.Attrs["raw"] == 1,
		PrintVariance: b.Attrs["variance"] == 1,
	}, nil
}
