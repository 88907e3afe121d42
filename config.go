package pix2pix

import (
	"errors"
	"fmt"
)

// These are the defaults used for zero Config fields.
const (
	DefaultFeatures = 64
	DefaultSize     = 256
	DefaultKeepProb = 0.5
)

// SizeMultiple is the granularity of valid image widths
// and heights.
//
// Eight stride-2 stages reduce an image by this factor
// before the bottleneck.
const SizeMultiple = 256

// Config describes the shape of a Generator.
type Config struct {
	// InputDepth is the number of input channels.
	InputDepth int

	// OutputDepth is the number of output channels.
	// If 0, InputDepth is used.
	OutputDepth int

	// Features is the channel count of the first encoder
	// stage.
	// Deeper stages use multiples of it, up to 8x.
	// If 0, DefaultFeatures is used.
	Features int

	// Width and Height are the input (and output) image
	// dimensions.
	// If 0, DefaultSize is used.
	Width  int
	Height int

	// KeepProb is the keep probability of the decoder's
	// dropout layers.
	// If 0, DefaultKeepProb is used.
	KeepProb float64
}

// WithDefaults returns a copy of c with zero fields
// replaced by their defaults.
func (c Config) WithDefaults() Config {
	if c.OutputDepth == 0 {
		c.OutputDepth = c.InputDepth
	}
	if c.Features == 0 {
		c.Features = DefaultFeatures
	}
	if c.Width == 0 {
		c.Width = DefaultSize
	}
	if c.Height == 0 {
		c.Height = DefaultSize
	}
	if c.KeepProb == 0 {
		c.KeepProb = DefaultKeepProb
	}
	return c
}

// Validate checks that the configuration, after defaults
// are applied, describes a valid Generator.
func (c Config) Validate() error {
	c = c.WithDefaults()
	if c.InputDepth <= 0 {
		return errors.New("input depth must be positive")
	}
	if c.OutputDepth <= 0 {
		return errors.New("output depth must be positive")
	}
	if c.Features <= 0 {
		return errors.New("feature count must be positive")
	}
	if c.Width <= 0 || c.Width%SizeMultiple != 0 {
		return fmt.Errorf("width %d is not a positive multiple of %d", c.Width, SizeMultiple)
	}
	if c.Height <= 0 || c.Height%SizeMultiple != 0 {
		return fmt.Errorf("height %d is not a positive multiple of %d", c.Height,
			SizeMultiple)
	}
	if c.KeepProb <= 0 || c.KeepProb > 1 {
		return fmt.Errorf("keep probability %f out of range", c.KeepProb)
	}
	return nil
}

// encoderDepths returns the output depth of every encoder
// stage.
func (c Config) encoderDepths() []int {
	f := c.Features
	return []int{f, 2 * f, 4 * f, 8 * f, 8 * f, 8 * f, 8 * f}
}

// decoderDepths returns the output depth of every decoder
// stage, including the final one.
func (c Config) decoderDepths() []int {
	f := c.Features
	return []int{8 * f, 8 * f, 8 * f, 8 * f, 4 * f, 2 * f, f, c.OutputDepth}
}
