package pix2pix

import (
	"fmt"
	"io"
	"strconv"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pix2pix/pixconv"
	"github.com/unixpickle/pix2pix/pixnet"
	"github.com/unixpickle/serializer"
)

const (
	numEncoderBlocks = 7
	numDropoutBlocks = 4
)

func init() {
	var g Generator
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeGenerator)
}

// A Generator is a U-Net with skip connections between
// every encoder stage and its mirrored decoder stage.
type Generator struct {
	// Config with all defaults filled in.
	Config Config

	// Encoder stages, from the input downwards.
	Encoder []*Block

	// Bottleneck reduces the last encoder activation to a
	// single spatial position.
	Bottleneck *Block

	// Decoder stages, from the bottleneck upwards.
	// The last stage produces the output image.
	Decoder []*Block

	// mixers[i] joins the input of Decoder[i+1].
	mixers []*pixconv.DepthConcat
}

// NewGenerator creates a randomly initialized Generator.
//
// Dropout starts out enabled.
func NewGenerator(c anyvec.Creator, cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, essentials.AddCtx("new generator", err)
	}
	cfg = cfg.WithDefaults()
	res := &Generator{Config: cfg}

	encDepths := cfg.encoderDepths()
	decDepths := cfg.decoderDepths()

	w, h, d := cfg.Width, cfg.Height, cfg.InputDepth
	for i, outD := range encDepths {
		res.Encoder = append(res.Encoder, NewDownBlock(c, w, h, d, outD, i != 0))
		w, h, d = w/2, h/2, outD
	}
	res.Bottleneck = NewDownBlock(c, w, h, d, d, false)
	w, h = w/2, h/2

	for i, outD := range decDepths {
		last := i == len(decDepths)-1
		var activation pixnet.Layer = pixnet.ReLU
		if last {
			activation = pixnet.Tanh
		}
		var keepProb float64
		if i < numDropoutBlocks {
			keepProb = cfg.KeepProb
		}
		res.Decoder = append(res.Decoder, NewUpBlock(c, w, h, d, outD, !last, activation,
			keepProb))
		w, h = w*2, h*2
		if !last {
			d = outD + encDepths[len(encDepths)-(i+1)]
		}
	}

	res.makeMixers()
	return res, nil
}

// DeserializeGenerator deserializes a Generator.
func DeserializeGenerator(d []byte) (*Generator, error) {
	var inD, outD, features, width, height serializer.Int
	var keepProb serializer.Float64
	var encoder, decoder pixnet.Net
	var bottleneck *Block
	err := serializer.DeserializeAny(d, &inD, &outD, &features, &width, &height, &keepProb,
		&encoder, &bottleneck, &decoder)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Generator", err)
	}
	res := &Generator{
		Config: Config{
			InputDepth:  int(inD),
			OutputDepth: int(outD),
			Features:    int(features),
			Width:       int(width),
			Height:      int(height),
			KeepProb:    float64(keepProb),
		},
		Bottleneck: bottleneck,
	}
	if err := res.Config.Validate(); err != nil {
		return nil, essentials.AddCtx("deserialize Generator", err)
	}
	if len(encoder) != numEncoderBlocks || len(decoder) != numEncoderBlocks+1 {
		return nil, fmt.Errorf("deserialize Generator: unexpected stage counts %d and %d",
			len(encoder), len(decoder))
	}
	res.Encoder, err = blockList(encoder)
	if err == nil {
		res.Decoder, err = blockList(decoder)
	}
	if err != nil {
		return nil, essentials.AddCtx("deserialize Generator", err)
	}
	res.makeMixers()
	return res, nil
}

// InputSize returns the number of components in one input
// tensor.
func (g *Generator) InputSize() int {
	return g.Config.Width * g.Config.Height * g.Config.InputDepth
}

// OutputSize returns the number of components in one
// output tensor.
func (g *Generator) OutputSize() int {
	return g.Config.Width * g.Config.Height * g.Config.OutputDepth
}

// Apply applies the generator to a batch of images.
func (g *Generator) Apply(in anydiff.Res, batch int) anydiff.Res {
	if in.Output().Len() != batch*g.InputSize() {
		panic(fmt.Sprintf("input size %d should be %d (batch %d of %dx%dx%d)",
			in.Output().Len(), batch*g.InputSize(), batch, g.Config.Width,
			g.Config.Height, g.Config.InputDepth))
	}
	return g.applyFrom(0, in, batch)
}

// Parameters returns the parameters of the encoder, the
// bottleneck, and the decoder, in that order.
func (g *Generator) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, b := range g.blocks() {
		res = append(res, b.Parameters()...)
	}
	return res
}

// SetDropout enables or disables every dropout layer.
//
// Dropout should be disabled for inference.
func (g *Generator) SetDropout(enabled bool) {
	for _, b := range g.Decoder {
		if b.Dropout != nil {
			b.Dropout.Enabled = enabled
		}
	}
}

// SetTrace makes every stage log the mean and variance of
// each output channel to w.
//
// If w is nil, tracing is turned off.
func (g *Generator) SetTrace(w io.Writer) {
	encDepths := g.Config.encoderDepths()
	decDepths := g.Config.decoderDepths()
	depths := append(append(append([]int{}, encDepths...), encDepths[len(encDepths)-1]),
		decDepths...)
	for i, b := range g.blocks() {
		if w == nil {
			b.Trace = nil
			continue
		}
		b.Trace = &pixnet.Debug{
			Writer:        w,
			ID:            g.stageName(i),
			Depth:         depths[i],
			PrintMean:     true,
			PrintVariance: true,
		}
	}
}

// SerializerType returns the unique ID used to serialize
// a Generator with the serializer package.
func (g *Generator) SerializerType() string {
	return "github.com/unixpickle/pix2pix.Generator"
}

// Serialize serializes the generator.
func (g *Generator) Serialize() ([]byte, error) {
	var encoder, decoder pixnet.Net
	for _, b := range g.Encoder {
		encoder = append(encoder, b)
	}
	for _, b := range g.Decoder {
		decoder = append(decoder, b)
	}
	return serializer.SerializeAny(
		serializer.Int(g.Config.InputDepth),
		serializer.Int(g.Config.OutputDepth),
		serializer.Int(g.Config.Features),
		serializer.Int(g.Config.Width),
		serializer.Int(g.Config.Height),
		serializer.Float64(g.Config.KeepProb),
		encoder,
		g.Bottleneck,
		decoder,
	)
}

// applyFrom applies the encoder stage at the given level,
// every stage beneath it, and the decoder stage which
// mirrors it.
//
// The encoder output is pooled so that its two consumers
// share a single gradient.
func (g *Generator) applyFrom(level int, in anydiff.Res, batch int) anydiff.Res {
	if level == len(g.Encoder) {
		return g.Decoder[0].Apply(g.Bottleneck.Apply(in, batch), batch)
	}
	down := g.Encoder[level].Apply(in, batch)
	return anydiff.Pool(down, func(down anydiff.Res) anydiff.Res {
		inner := g.applyFrom(level+1, down, batch)
		idx := len(g.Encoder) - level
		return g.Decoder[idx].Apply(g.mixers[idx-1].Mix(inner, down, batch), batch)
	})
}

func (g *Generator) makeMixers() {
	encDepths := g.Config.encoderDepths()
	decDepths := g.Config.decoderDepths()
	g.mixers = nil
	for i := 0; i < len(encDepths); i++ {
		level := len(encDepths) - (i + 1)
		scale := 1 << uint(level+1)
		g.mixers = append(g.mixers, &pixconv.DepthConcat{
			Width:  g.Config.Width / scale,
			Height: g.Config.Height / scale,
			Depth1: decDepths[i],
			Depth2: encDepths[level],
		})
	}
}

func (g *Generator) blocks() []*Block {
	res := append([]*Block{}, g.Encoder...)
	res = append(res, g.Bottleneck)
	return append(res, g.Decoder...)
}

func (g *Generator) stageName(idx int) string {
	switch {
	case idx == 0:
		return "initial_down"
	case idx < len(g.Encoder):
		return "down" + strconv.Itoa(idx)
	case idx == len(g.Encoder):
		return "bottleneck"
	case idx == len(g.Encoder)+len(g.Decoder):
		return "final_up"
	default:
		return "up" + strconv.Itoa(idx-len(g.Encoder))
	}
}

func blockList(n pixnet.Net) ([]*Block, error) {
	res := make([]*Block, len(n))
	for i, x := range n {
		var ok bool
		if res[i], ok = x.(*Block); !ok {
			return nil, fmt.Errorf("not a Block: %T", x)
		}
	}
	return res, nil
}
