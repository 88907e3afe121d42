package pixnet

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const defaultLeakySlope = 0.2

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
	var l LeakyReLU
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLeakyReLU)
}

// An Activation is a parameter-free activation function.
type Activation int

// These are the supported activation functions.
const (
	Tanh Activation = iota
	Sigmoid
	ReLU
)

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: data length (%d) should be 1", len(d))
	}
	a := Activation(d[0])
	if a > ReLU {
		return 0, fmt.Errorf("deserialize Activation: unknown activation ID: %d", a)
	}
	return a, nil
}

// Apply applies the activation function.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case Tanh:
		return anydiff.Tanh(in)
	case Sigmoid:
		return anydiff.Sigmoid(in)
	case ReLU:
		return anydiff.ClipPos(in)
	default:
		panic(fmt.Sprintf("unknown activation: %d", a))
	}
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/unixpickle/pix2pix/pixnet.Activation"
}

// Serialize serializes the activation.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}

// LeakyReLU is a rectifier which lets a scaled version of
// negative inputs through.
//
// It computes max(x, 0) + Slope*min(x, 0).
// If Slope is 0, a default of 0.2 is used.
type LeakyReLU struct {
	Slope float64
}

// DeserializeLeakyReLU deserializes a LeakyReLU.
func DeserializeLeakyReLU(d []byte) (*LeakyReLU, error) {
	var slope serializer.Float64
	if err := serializer.DeserializeAny(d, &slope); err != nil {
		return nil, essentials.AddCtx("deserialize LeakyReLU", err)
	}
	return &LeakyReLU{Slope: float64(slope)}, nil
}

// Apply applies the activation function.
func (l *LeakyReLU) Apply(in anydiff.Res, n int) anydiff.Res {
	slope := l.Slope
	if slope == 0 {
		slope = defaultLeakySlope
	}
	c := in.Output().Creator()
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		// slope*x + (1-slope)*max(x, 0)
		return anydiff.Add(
			anydiff.Scale(in, c.MakeNumeric(slope)),
			anydiff.Scale(anydiff.ClipPos(in), c.MakeNumeric(1-slope)),
		)
	})
}

// SerializerType returns the unique ID used to serialize
// a LeakyReLU with the serializer package.
func (l *LeakyReLU) SerializerType() string {
	return "github.com/unixpickle/pix2pix/pixnet.LeakyReLU"
}

// Serialize serializes the LeakyReLU.
func (l *LeakyReLU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(serializer.Float64(l.Slope))
}
