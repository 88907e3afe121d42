package pixconv

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// batchMap applies m.Map to every tensor in a packed
// batch of tensors of size m.InSize().
func batchMap(m anyvec.Mapper, in anyvec.Vector) anyvec.Vector {
	if in.Len()%m.InSize() != 0 {
		panic(fmt.Sprintf("input length %d not divisible by %d", in.Len(), m.InSize()))
	}
	n := in.Len() / m.InSize()
	results := make([]anyvec.Vector, n)
	for i := range results {
		out := in.Creator().MakeVector(m.OutSize())
		m.Map(in.Slice(i*m.InSize(), (i+1)*m.InSize()), out)
		results[i] = out
	}
	return in.Creator().Concat(results...)
}

// batchMapTranspose applies m.MapTranspose to every
// tensor in a packed batch of tensors of size
// m.OutSize().
func batchMapTranspose(m anyvec.Mapper, in anyvec.Vector) anyvec.Vector {
	if in.Len()%m.OutSize() != 0 {
		panic(fmt.Sprintf("input length %d not divisible by %d", in.Len(), m.OutSize()))
	}
	n := in.Len() / m.OutSize()
	results := make([]anyvec.Vector, n)
	for i := range results {
		out := in.Creator().MakeVector(m.InSize())
		m.MapTranspose(in.Slice(i*m.OutSize(), (i+1)*m.OutSize()), out)
		results[i] = out
	}
	return in.Creator().Concat(results...)
}

// gatherRes is the result of gathering every tensor in a
// batch through a Mapper.
type gatherRes struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	OutVec anyvec.Vector
}

func newGatherRes(in anydiff.Res, m anyvec.Mapper) *gatherRes {
	return &gatherRes{
		In:     in,
		Mapper: m,
		OutVec: batchMap(m, in.Output()),
	}
}

func (g *gatherRes) Output() anyvec.Vector {
	return g.OutVec
}

func (g *gatherRes) Vars() anydiff.VarSet {
	return g.In.Vars()
}

func (g *gatherRes) Propagate(u anyvec.Vector, grad anydiff.Grad) {
	if !grad.Intersects(g.In.Vars()) {
		return
	}
	g.In.Propagate(batchMapTranspose(g.Mapper, u), grad)
}

// scatterRes is the result of scattering every tensor in
// a batch through a Mapper.
// It is the transpose of a gatherRes.
type scatterRes struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	OutVec anyvec.Vector
}

func newScatterRes(in anydiff.Res, m anyvec.Mapper) *scatterRes {
	return &scatterRes{
		In:     in,
		Mapper: m,
		OutVec: batchMapTranspose(m, in.Output()),
	}
}

func (s *scatterRes) Output() anyvec.Vector {
	return s.OutVec
}

func (s *scatterRes) Vars() anydiff.VarSet {
	return s.In.Vars()
}

func (s *scatterRes) Propagate(u anyvec.Vector, grad anydiff.Grad) {
	if !grad.Intersects(s.In.Vars()) {
		return
	}
	s.In.Propagate(batchMap(s.Mapper, u), grad)
}
