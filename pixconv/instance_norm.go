package pixconv

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const defaultINStabilizer = 1e-5

func init() {
	var n InstanceNorm
	serializer.RegisterTypedDeserializer(n.SerializerType(), DeserializeInstanceNorm)
}

// InstanceNorm is an instance normalization layer.
//
// Every channel of every tensor in a batch is normalized
// to zero mean and unit variance over its spatial
// positions, and then a learned per-channel affine
// transform is applied.
// Unlike batch normalization, the statistics of one
// tensor never affect another tensor in the batch.
type InstanceNorm struct {
	// Depth is the number of channels.
	Depth int

	// Post-normalization affine transform.
	Scalers *anydiff.Var
	Biases  *anydiff.Var

	// Stabilizer is added to variances to keep them from
	// being 0.
	//
	// If it is 0, a default of 1e-5 is used.
	Stabilizer float64
}

// DeserializeInstanceNorm deserializes an InstanceNorm.
func DeserializeInstanceNorm(d []byte) (*InstanceNorm, error) {
	var s, b *anyvecsave.S
	var stab serializer.Float64
	if err := serializer.DeserializeAny(d, &s, &b, &stab); err != nil {
		return nil, essentials.AddCtx("deserialize InstanceNorm", err)
	}
	if s.Vector.Len() != b.Vector.Len() {
		return nil, fmt.Errorf("deserialize InstanceNorm: %d scalers but %d biases",
			s.Vector.Len(), b.Vector.Len())
	}
	return &InstanceNorm{
		Depth:      s.Vector.Len(),
		Scalers:    anydiff.NewVar(s.Vector),
		Biases:     anydiff.NewVar(b.Vector),
		Stabilizer: float64(stab),
	}, nil
}

// NewInstanceNorm creates an InstanceNorm with identity
// scalers and zero biases.
func NewInstanceNorm(c anyvec.Creator, depth int) *InstanceNorm {
	oneScaler := c.MakeVector(depth)
	oneScaler.AddScalar(c.MakeNumeric(1))
	return &InstanceNorm{
		Depth:   depth,
		Scalers: anydiff.NewVar(oneScaler),
		Biases:  anydiff.NewVar(c.MakeVector(depth)),
	}
}

// Apply applies the layer to a batch of tensors.
func (n *InstanceNorm) Apply(in anydiff.Res, batch int) anydiff.Res {
	if batch == 0 || in.Output().Len()%(batch*n.Depth) != 0 {
		panic("invalid input size")
	}
	size := in.Output().Len() / batch
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		parts := make([]anydiff.Res, batch)
		for i := range parts {
			parts[i] = n.normalize(anydiff.Slice(in, i*size, (i+1)*size))
		}
		return anydiff.Concat(parts...)
	})
}

// Parameters returns a slice containing the scalers and
// biases, in that order.
func (n *InstanceNorm) Parameters() []*anydiff.Var {
	return []*anydiff.Var{n.Scalers, n.Biases}
}

// SerializerType returns the unique ID used to serialize
// an InstanceNorm with the serializer package.
func (n *InstanceNorm) SerializerType() string {
	return "github.com/unixpickle/pix2pix/pixconv.InstanceNorm"
}

// Serialize serializes the layer.
func (n *InstanceNorm) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: n.Scalers.Vector},
		&anyvecsave.S{Vector: n.Biases.Vector},
		serializer.Float64(n.Stabilizer),
	)
}

// normalize normalizes a single tensor.
func (n *InstanceNorm) normalize(sample anydiff.Res) anydiff.Res {
	return anydiff.Pool(sample, func(sample anydiff.Res) anydiff.Res {
		c := sample.Output().Creator()

		mean := channelMean(sample, n.Depth, false)
		centered := anydiff.AddRepeated(sample, anydiff.Scale(mean, c.MakeNumeric(-1)))
		return anydiff.Pool(centered, func(centered anydiff.Res) anydiff.Res {
			variance := channelMean(centered, n.Depth, true)
			variance = anydiff.AddScalar(variance, c.MakeNumeric(n.stabilizer()))
			normalizer := anydiff.Pow(variance, c.MakeNumeric(-0.5))
			return anydiff.ScaleAddRepeated(
				centered,
				anydiff.Mul(n.Scalers, normalizer),
				n.Biases,
			)
		})
	})
}

func (n *InstanceNorm) stabilizer() float64 {
	if n.Stabilizer == 0 {
		return defaultINStabilizer
	} else {
		return n.Stabilizer
	}
}
