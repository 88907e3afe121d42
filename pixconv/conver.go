package pixconv

import (
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Conver performs the computation of a Conv whose
// dimensions and parameters are fixed.
type Conver interface {
	Apply(in anydiff.Res, batchSize int) anydiff.Res
}

// A ConverMaker creates a Conver for a Conv layer.
//
// Alternative makers can provide other algorithms, such
// as back-end specific kernels.
type ConverMaker func(info Conv) Conver

var converMakerLock sync.RWMutex
var converMaker ConverMaker = MakeDefaultConver

// SetConverMaker changes the ConverMaker used by
// Conv.InitZero, Conv.InitRand, and DeserializeConv.
func SetConverMaker(f ConverMaker) {
	converMakerLock.Lock()
	converMaker = f
	converMakerLock.Unlock()
}

// CurrentConverMaker returns the ConverMaker set by
// SetConverMaker.
func CurrentConverMaker() ConverMaker {
	converMakerLock.RLock()
	defer converMakerLock.RUnlock()
	return converMaker
}

// MakeDefaultConver creates a Conver which multiplies the
// im2row matrix of each input by the filter matrix.
func MakeDefaultConver(c Conv) Conver {
	if !c.initialized() {
		panic("nil parameters")
	}
	return &conver{
		conv: c,
		im2row: &Im2Row{
			WindowWidth:  c.FilterWidth,
			WindowHeight: c.FilterHeight,
			StrideX:      c.StrideX,
			StrideY:      c.StrideY,
			InputWidth:   c.InputWidth,
			InputHeight:  c.InputHeight,
			InputDepth:   c.InputDepth,
		},
	}
}

// MakeParallelConver is like MakeDefaultConver, but the
// Conver processes the tensors of a batch concurrently.
func MakeParallelConver(c Conv) Conver {
	res := MakeDefaultConver(c).(*conver)
	res.parallel = true
	return res
}

type conver struct {
	conv     Conv
	im2row   *Im2Row
	parallel bool
}

func (c *conver) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	if c.conv.OutputWidth() == 0 || c.conv.OutputHeight() == 0 {
		return anydiff.NewConst(in.Output().Creator().MakeVector(0))
	}
	if in.Output().Len() != batchSize*c.im2row.InputSize() {
		panic("incorrect input size")
	}

	cr := in.Output().Creator()
	filters := c.filterMatrix()
	outputs := make([]anyvec.Vector, batchSize)
	c.im2row.Gather(in.Output(), c.parallel, func(i int, rows *anyvec.Matrix) {
		out := c.outputMatrix(cr.MakeVector(c.outputSize()))
		out.Product(false, true, cr.MakeNumeric(1), rows, filters, cr.MakeNumeric(0))
		outputs[i] = out.Data
	})

	outVec := cr.Concat(outputs...)
	return &convRes{
		Conver: c,
		N:      batchSize,
		In:     in,
		OutVec: outVec,
		V:      addBiases(in, outVec, c.conv.Filters, c.conv.Biases),
	}
}

func (c *conver) outputSize() int {
	return c.conv.OutputWidth() * c.conv.OutputHeight() * c.conv.OutputDepth()
}

// outputMatrix views an output tensor as a matrix with a
// row per position and a column per filter.
func (c *conver) outputMatrix(v anyvec.Vector) *anyvec.Matrix {
	return &anyvec.Matrix{
		Data: v,
		Rows: c.conv.OutputWidth() * c.conv.OutputHeight(),
		Cols: c.conv.OutputDepth(),
	}
}

func (c *conver) filterMatrix() *anyvec.Matrix {
	return &anyvec.Matrix{
		Data: c.conv.Filters.Vector,
		Rows: c.conv.FilterCount,
		Cols: c.im2row.RowSize(),
	}
}

type convRes struct {
	Conver *conver
	N      int
	In     anydiff.Res
	OutVec anyvec.Vector
	V      anydiff.VarSet
}

func (c *convRes) Output() anyvec.Vector {
	return c.OutVec
}

func (c *convRes) Vars() anydiff.VarSet {
	return c.V
}

func (c *convRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	layer := &c.Conver.conv
	propagateBiases(layer.Biases, u, g)

	doIn := g.Intersects(c.In.Vars())
	filterGrad, doFilters := g[layer.Filters]
	if !doIn && !doFilters {
		return
	}

	cr := u.Creator()
	one, zero := cr.MakeNumeric(1), cr.MakeNumeric(0)
	filters := c.Conver.filterMatrix()
	outSize := c.Conver.outputSize()
	im2row := c.Conver.im2row

	var gradLock sync.Mutex
	inUpstreams := make([]anyvec.Vector, c.N)
	backward := func(i int, rows *anyvec.Matrix) {
		upMat := c.Conver.outputMatrix(u.Slice(i*outSize, (i+1)*outSize))
		if doFilters {
			sampleGrad := *filters
			sampleGrad.Data = cr.MakeVector(filterGrad.Len())
			sampleGrad.Product(true, false, one, upMat, rows, zero)
			gradLock.Lock()
			filterGrad.Add(sampleGrad.Data)
			gradLock.Unlock()
		}
		if doIn {
			// The row matrix is scratch space at this point.
			rows.Product(false, false, one, upMat, filters, zero)
			inUp := cr.MakeVector(im2row.InputSize())
			im2row.Mapper(cr).MapTranspose(rows.Data, inUp)
			inUpstreams[i] = inUp
		}
	}

	// Filter gradients need the input rows.
	if doFilters {
		im2row.Gather(c.In.Output(), c.Conver.parallel, backward)
	} else {
		im2row.Loop(cr, c.N, c.Conver.parallel, backward)
	}

	if doIn {
		c.In.Propagate(cr.Concat(inUpstreams...), g)
	}
}
