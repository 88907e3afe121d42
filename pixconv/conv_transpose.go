package pixconv

import (
	"errors"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c ConvTranspose
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConvTranspose)
}

// ConvTranspose is a strided transposed convolution,
// sometimes called a "deconvolution".
//
// Every input position is multiplied by the filters and
// the resulting FilterWidth x FilterHeight x OutputDepth
// patch is summed into the output at StrideX, StrideY
// spacing.
// The result is then cropped by PaddingX columns and
// PaddingY rows on every side.
//
// Filters are stored as an InputDepth by
// (FilterHeight*FilterWidth*OutputDepth) row-major
// matrix, with each row in depth-minor order.
type ConvTranspose struct {
	OutputDepth  int
	FilterWidth  int
	FilterHeight int

	StrideX int
	StrideY int

	PaddingX int
	PaddingY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	NoBias bool

	// Parallel, if true, processes the batch on multiple
	// goroutines.
	Parallel bool

	Filters *anydiff.Var
	Biases  *anydiff.Var

	cacheLock  sync.Mutex
	im2row     *Im2Row
	cropMapper anyvec.Mapper
}

// DeserializeConvTranspose deserializes a ConvTranspose.
func DeserializeConvTranspose(d []byte) (*ConvTranspose, error) {
	var inW, inH, inD, outD, fW, fH, sX, sY, pX, pY, noBias serializer.Int
	var f, b *anyvecsave.S
	err := serializer.DeserializeAny(d, &inW, &inH, &inD, &outD, &fW, &fH, &sX, &sY,
		&pX, &pY, &noBias, &f, &b)
	if err != nil {
		return nil, essentials.AddCtx("deserialize ConvTranspose", err)
	}
	res := &ConvTranspose{
		OutputDepth:  int(outD),
		FilterWidth:  int(fW),
		FilterHeight: int(fH),
		StrideX:      int(sX),
		StrideY:      int(sY),
		PaddingX:     int(pX),
		PaddingY:     int(pY),
		InputWidth:   int(inW),
		InputHeight:  int(inH),
		InputDepth:   int(inD),
		NoBias:       noBias == 1,
		Filters:      anydiff.NewVar(f.Vector),
	}
	if f.Vector.Len() != res.InputDepth*res.rowSize() {
		return nil, errors.New("deserialize ConvTranspose: invalid filter size")
	}
	if !res.NoBias {
		if b.Vector.Len() != res.OutputDepth {
			return nil, errors.New("deserialize ConvTranspose: invalid bias size")
		}
		res.Biases = anydiff.NewVar(b.Vector)
	}
	return res, nil
}

// InitRand initializes the filters randomly and zeros the
// biases.
//
// The filters are scaled so that the output variance is
// roughly that of the input, given that each output is
// reached by about (FilterWidth/StrideX) *
// (FilterHeight/StrideY) input positions.
func (c *ConvTranspose) InitRand(cr anyvec.Creator) {
	c.InitZero(cr)
	randomFilters(c.Filters.Vector, float64(c.FilterWidth*c.FilterHeight*c.InputDepth)/
		float64(c.StrideX*c.StrideY))
}

// InitZero initializes the parameters to zero.
func (c *ConvTranspose) InitZero(cr anyvec.Creator) {
	c.Filters, c.Biases = filterParams(cr, c.InputDepth*c.rowSize(), c.OutputDepth,
		c.NoBias)
}

// OutputWidth returns the width of the output tensor.
func (c *ConvTranspose) OutputWidth() int {
	return c.fullWidth() - 2*c.PaddingX
}

// OutputHeight returns the height of the output tensor.
func (c *ConvTranspose) OutputHeight() int {
	return c.fullHeight() - 2*c.PaddingY
}

// Apply applies the layer to a batch of tensors.
//
// The layer must have been initialized.
func (c *ConvTranspose) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	if !c.initialized() {
		panic("nil parameters")
	}
	if c.OutputWidth() <= 0 || c.OutputHeight() <= 0 {
		panic("padding exceeds output size")
	}
	inSize := c.InputWidth * c.InputHeight * c.InputDepth
	if in.Output().Len() != batchSize*inSize {
		panic("incorrect input size")
	}

	cr := in.Output().Creator()
	im2row, crop := c.mappings(cr)
	filterMat := c.filterMatrix()
	one := cr.MakeNumeric(1)
	zero := cr.MakeNumeric(0)

	outputs := make([]anyvec.Vector, batchSize)
	forEachSample(batchSize, c.Parallel, func(_, i int) {
		colMat := im2row.MakeOut(cr)
		colMat.Product(false, false, one, c.inputMatrix(in.Output(), i), filterMat, zero)
		full := cr.MakeVector(im2row.InputSize())
		im2row.Mapper(cr).MapTranspose(colMat.Data, full)
		out := cr.MakeVector(crop.OutSize())
		crop.Map(full, out)
		outputs[i] = out
	})

	outData := cr.Concat(outputs...)

	return &convTransposeRes{
		Layer:  c,
		Im2Row: im2row,
		Crop:   crop,
		N:      batchSize,
		In:     in,
		OutVec: outData,
		V:      addBiases(in, outData, c.Filters, c.Biases),
	}
}

// Parameters returns the filters followed by the biases.
// If NoBias is set, only the filters are returned.
//
// If the layer is uninitialized, the result is nil.
func (c *ConvTranspose) Parameters() []*anydiff.Var {
	if !c.initialized() {
		return nil
	}
	return paramList(c.Filters, c.Biases)
}

// SerializerType returns the unique ID used to serialize
// a ConvTranspose with the serializer package.
func (c *ConvTranspose) SerializerType() string {
	return "github.com/unixpickle/pix2pix/pixconv.ConvTranspose"
}

// Serialize serializes the layer.
//
// If the layer was not yet initialized, this fails.
func (c *ConvTranspose) Serialize() ([]byte, error) {
	if !c.initialized() {
		return nil, errors.New("cannot serialize uninitialized ConvTranspose")
	}
	var noBias serializer.Int
	if c.NoBias {
		noBias = 1
	}
	return serializer.SerializeAny(
		serializer.Int(c.InputWidth),
		serializer.Int(c.InputHeight),
		serializer.Int(c.InputDepth),
		serializer.Int(c.OutputDepth),
		serializer.Int(c.FilterWidth),
		serializer.Int(c.FilterHeight),
		serializer.Int(c.StrideX),
		serializer.Int(c.StrideY),
		serializer.Int(c.PaddingX),
		serializer.Int(c.PaddingY),
		noBias,
		&anyvecsave.S{Vector: c.Filters.Vector},
		savedBiases(c.Filters, c.Biases),
	)
}

func (c *ConvTranspose) initialized() bool {
	return c.Filters != nil && (c.NoBias || c.Biases != nil)
}

func (c *ConvTranspose) rowSize() int {
	return c.FilterWidth * c.FilterHeight * c.OutputDepth
}

func (c *ConvTranspose) fullWidth() int {
	return (c.InputWidth-1)*c.StrideX + c.FilterWidth
}

func (c *ConvTranspose) fullHeight() int {
	return (c.InputHeight-1)*c.StrideY + c.FilterHeight
}

func (c *ConvTranspose) filterMatrix() *anyvec.Matrix {
	return &anyvec.Matrix{
		Data: c.Filters.Vector,
		Rows: c.InputDepth,
		Cols: c.rowSize(),
	}
}

func (c *ConvTranspose) inputMatrix(in anyvec.Vector, idx int) *anyvec.Matrix {
	return sampleMatrix(in, idx, c.InputWidth*c.InputHeight, c.InputDepth)
}

// mappings returns the Im2Row over the uncropped output
// and a mapper which gathers the cropped output from the
// uncropped output.
func (c *ConvTranspose) mappings(cr anyvec.Creator) (*Im2Row, anyvec.Mapper) {
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()
	if c.im2row == nil {
		c.im2row = &Im2Row{
			WindowWidth:  c.FilterWidth,
			WindowHeight: c.FilterHeight,
			StrideX:      c.StrideX,
			StrideY:      c.StrideY,
			InputWidth:   c.fullWidth(),
			InputHeight:  c.fullHeight(),
			InputDepth:   c.OutputDepth,
		}
	}
	if c.cropMapper == nil || c.cropMapper.Creator() != cr {
		fullW := c.fullWidth()
		table := make([]int, 0, c.OutputWidth()*c.OutputHeight()*c.OutputDepth)
		for y := 0; y < c.OutputHeight(); y++ {
			rowStart := ((y+c.PaddingY)*fullW + c.PaddingX) * c.OutputDepth
			for i := 0; i < c.OutputWidth()*c.OutputDepth; i++ {
				table = append(table, rowStart+i)
			}
		}
		c.cropMapper = cr.MakeMapper(c.im2row.InputSize(), table)
	}
	return c.im2row, c.cropMapper
}

type convTransposeRes struct {
	Layer  *ConvTranspose
	Im2Row *Im2Row
	Crop   anyvec.Mapper
	N      int
	In     anydiff.Res
	OutVec anyvec.Vector
	V      anydiff.VarSet
}

func (c *convTransposeRes) Output() anyvec.Vector {
	return c.OutVec
}

func (c *convTransposeRes) Vars() anydiff.VarSet {
	return c.V
}

func (c *convTransposeRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	cr := u.Creator()
	doIn := g.Intersects(c.In.Vars())
	filterGrad, doFilters := g[c.Layer.Filters]

	propagateBiases(c.Layer.Biases, u, g)
	if !doIn && !doFilters {
		return
	}

	outSize := u.Len() / c.N
	filterMat := c.Layer.filterMatrix()
	one := cr.MakeNumeric(1)
	zero := cr.MakeNumeric(0)

	inputUpstreams := make([]anyvec.Vector, c.N)
	var updateLock sync.Mutex
	forEachSample(c.N, c.Layer.Parallel, func(_, i int) {
		full := cr.MakeVector(c.Im2Row.InputSize())
		c.Crop.MapTranspose(u.Slice(i*outSize, (i+1)*outSize), full)
		colMat := c.Im2Row.MakeOut(cr)
		c.Im2Row.Mapper(cr).Map(full, colMat.Data)

		if doFilters {
			fgMat := *filterMat
			fgMat.Data = cr.MakeVector(filterGrad.Len())
			fgMat.Product(true, false, one, c.Layer.inputMatrix(c.In.Output(), i), colMat,
				zero)
			updateLock.Lock()
			filterGrad.Add(fgMat.Data)
			updateLock.Unlock()
		}
		if doIn {
			inUp := &anyvec.Matrix{
				Data: cr.MakeVector(c.Layer.InputWidth * c.Layer.InputHeight * c.Layer.InputDepth),
				Rows: c.Layer.InputWidth * c.Layer.InputHeight,
				Cols: c.Layer.InputDepth,
			}
			inUp.Product(false, true, one, colMat, filterMat, zero)
			inputUpstreams[i] = inUp.Data
		}
	})

	if doIn {
		c.In.Propagate(cr.Concat(inputUpstreams...), g)
	}
}
