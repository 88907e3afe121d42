package pixconv

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// channelMeanRes averages every channel of a tensor over
// its spatial positions.
type channelMeanRes struct {
	In     anydiff.Res
	Square bool
	Scaler anyvec.Numeric
	Out    anyvec.Vector
}

// channelMean computes the per-channel mean of a
// depth-minor tensor.
//
// If square is true, the components are squared before
// they are averaged.
func channelMean(in anydiff.Res, depth int, square bool) anydiff.Res {
	if in.Output().Len()%depth != 0 {
		panic("depth must divide input size")
	}
	c := in.Output().Creator()
	positions := float64(in.Output().Len() / depth)
	summed := in.Output().Copy()
	if square {
		summed.Mul(in.Output())
	}
	out := anyvec.SumRows(summed, depth)
	out.Scale(c.MakeNumeric(1 / positions))

	// d/dx mean(x^2) = 2x/n
	scale := 1 / positions
	if square {
		scale *= 2
	}
	return &channelMeanRes{
		In:     in,
		Square: square,
		Scaler: c.MakeNumeric(scale),
		Out:    out,
	}
}

func (c *channelMeanRes) Output() anyvec.Vector {
	return c.Out
}

func (c *channelMeanRes) Vars() anydiff.VarSet {
	return c.In.Vars()
}

func (c *channelMeanRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	if !g.Intersects(c.In.Vars()) {
		return
	}
	u.Scale(c.Scaler)
	downstream := c.Out.Creator().MakeVector(c.In.Output().Len())
	anyvec.AddRepeated(downstream, u)
	if c.Square {
		downstream.Mul(c.In.Output())
	}
	c.In.Propagate(downstream, g)
}
