package pixconv

import (
	"fmt"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var p Padding
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializePadding)
}

// PaddingMode determines how a Padding layer fills the
// border of its input.
type PaddingMode int

// These are the supported padding modes.
const (
	// ZeroPadding fills the border with zeros.
	ZeroPadding PaddingMode = iota

	// ReflectPadding mirrors the tensor about its edges,
	// without repeating the edge itself.
	// For a row [a b c d], a padding of 2 on each side
	// gives [c b a b c d c b].
	ReflectPadding
)

// A Padding layer adds a border to input tensors.
type Padding struct {
	Mode PaddingMode

	InputWidth  int
	InputHeight int
	InputDepth  int

	PaddingTop    int
	PaddingRight  int
	PaddingBottom int
	PaddingLeft   int

	mapperLock sync.Mutex
	mapper     anyvec.Mapper
}

// DeserializePadding deserializes a Padding.
func DeserializePadding(d []byte) (*Padding, error) {
	var mode, inW, inH, inD, pT, pR, pB, pL serializer.Int
	err := serializer.DeserializeAny(d, &mode, &inW, &inH, &inD, &pT, &pR, &pB, &pL)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Padding", err)
	}
	res := &Padding{
		Mode: PaddingMode(mode),

		InputWidth:  int(inW),
		InputHeight: int(inH),
		InputDepth:  int(inD),

		PaddingTop:    int(pT),
		PaddingRight:  int(pR),
		PaddingBottom: int(pB),
		PaddingLeft:   int(pL),
	}
	if err := res.check(); err != nil {
		return nil, essentials.AddCtx("deserialize Padding", err)
	}
	return res, nil
}

// OutputWidth returns the width of the padded tensor.
func (p *Padding) OutputWidth() int {
	return p.InputWidth + p.PaddingLeft + p.PaddingRight
}

// OutputHeight returns the height of the padded tensor.
func (p *Padding) OutputHeight() int {
	return p.InputHeight + p.PaddingTop + p.PaddingBottom
}

// Apply applies the layer.
//
// For ReflectPadding, every padding amount must be less
// than the corresponding input dimension.
func (p *Padding) Apply(in anydiff.Res, batch int) anydiff.Res {
	inSize := p.InputWidth * p.InputHeight * p.InputDepth
	if in.Output().Len() != batch*inSize {
		panic("incorrect input size")
	}
	if err := p.check(); err != nil {
		panic(err)
	}
	m := p.getMapper(in.Output().Creator())
	if p.Mode == ReflectPadding {
		return newGatherRes(in, m)
	}
	return newScatterRes(in, m)
}

// SerializerType returns the unique ID used to serialize
// a Padding with the serializer package.
func (p *Padding) SerializerType() string {
	return "github.com/unixpickle/pix2pix/pixconv.Padding"
}

// Serialize serializes a Padding.
func (p *Padding) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(p.Mode),
		serializer.Int(p.InputWidth),
		serializer.Int(p.InputHeight),
		serializer.Int(p.InputDepth),
		serializer.Int(p.PaddingTop),
		serializer.Int(p.PaddingRight),
		serializer.Int(p.PaddingBottom),
		serializer.Int(p.PaddingLeft),
	)
}

func (p *Padding) check() error {
	switch p.Mode {
	case ZeroPadding:
	case ReflectPadding:
		if p.PaddingLeft >= p.InputWidth || p.PaddingRight >= p.InputWidth ||
			p.PaddingTop >= p.InputHeight || p.PaddingBottom >= p.InputHeight {
			return fmt.Errorf("reflection padding too large for %dx%d input",
				p.InputWidth, p.InputHeight)
		}
	default:
		return fmt.Errorf("unknown padding mode: %d", p.Mode)
	}
	if p.PaddingLeft < 0 || p.PaddingRight < 0 || p.PaddingTop < 0 || p.PaddingBottom < 0 {
		return fmt.Errorf("negative padding")
	}
	return nil
}

func (p *Padding) getMapper(c anyvec.Creator) anyvec.Mapper {
	p.mapperLock.Lock()
	defer p.mapperLock.Unlock()
	if p.mapper != nil && p.mapper.Creator() == c {
		return p.mapper
	}
	if p.Mode == ReflectPadding {
		p.mapper = p.reflectMapper(c)
	} else {
		p.mapper = p.zeroMapper(c)
	}
	return p.mapper
}

// zeroMapper maps padded tensors to unpadded ones, so
// that padding is done with MapTranspose.
func (p *Padding) zeroMapper(c anyvec.Creator) anyvec.Mapper {
	newWidth := p.OutputWidth()
	outSize := newWidth * p.OutputHeight() * p.InputDepth
	table := make([]int, 0, p.InputWidth*p.InputHeight*p.InputDepth)

	for y := 0; y < p.InputHeight; y++ {
		yOffset := (y + p.PaddingTop) * newWidth * p.InputDepth
		for x := 0; x < p.InputWidth; x++ {
			xOffset := yOffset + (x+p.PaddingLeft)*p.InputDepth
			for z := 0; z < p.InputDepth; z++ {
				table = append(table, xOffset+z)
			}
		}
	}

	return c.MakeMapper(outSize, table)
}

// reflectMapper maps unpadded tensors to padded ones, so
// that padding is done with Map.
func (p *Padding) reflectMapper(c anyvec.Creator) anyvec.Mapper {
	inSize := p.InputWidth * p.InputHeight * p.InputDepth
	table := make([]int, 0, p.OutputWidth()*p.OutputHeight()*p.InputDepth)

	for y := -p.PaddingTop; y < p.InputHeight+p.PaddingBottom; y++ {
		yOffset := reflectIndex(y, p.InputHeight) * p.InputWidth * p.InputDepth
		for x := -p.PaddingLeft; x < p.InputWidth+p.PaddingRight; x++ {
			xOffset := yOffset + reflectIndex(x, p.InputWidth)*p.InputDepth
			for z := 0; z < p.InputDepth; z++ {
				table = append(table, xOffset+z)
			}
		}
	}

	return c.MakeMapper(inSize, table)
}

func reflectIndex(i, size int) int {
	if i < 0 {
		return -i
	} else if i >= size {
		return 2*(size-1) - i
	}
	return i
}
