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
	var d DepthConcat
	serializer.RegisterTypedDeserializer(d.SerializerType(), DeserializeDepthConcat)
}

// DepthConcat mixes two batches of tensors with the same
// width and height by concatenating them along the depth
// axis.
//
// At every spatial position, the output holds the Depth1
// channels of the first input followed by the Depth2
// channels of the second.
type DepthConcat struct {
	Width  int
	Height int
	Depth1 int
	Depth2 int

	mapperLock sync.Mutex
	mapper     anyvec.Mapper
}

// DeserializeDepthConcat deserializes a DepthConcat.
func DeserializeDepthConcat(d []byte) (*DepthConcat, error) {
	var w, h, d1, d2 serializer.Int
	if err := serializer.DeserializeAny(d, &w, &h, &d1, &d2); err != nil {
		return nil, essentials.AddCtx("deserialize DepthConcat", err)
	}
	return &DepthConcat{
		Width:  int(w),
		Height: int(h),
		Depth1: int(d1),
		Depth2: int(d2),
	}, nil
}

// OutputDepth returns Depth1 + Depth2.
func (d *DepthConcat) OutputDepth() int {
	return d.Depth1 + d.Depth2
}

// Mix concatenates the inputs along the depth axis.
func (d *DepthConcat) Mix(in1, in2 anydiff.Res, batch int) anydiff.Res {
	size1 := d.Width * d.Height * d.Depth1
	size2 := d.Width * d.Height * d.Depth2
	if in1.Output().Len() != batch*size1 || in2.Output().Len() != batch*size2 {
		panic(fmt.Sprintf("incorrect input sizes: %d and %d (batch %d, expected %dx%dx%d "+
			"and %dx%dx%d)", in1.Output().Len(), in2.Output().Len(), batch,
			d.Width, d.Height, d.Depth1, d.Width, d.Height, d.Depth2))
	}
	m := d.getMapper(in1.Output().Creator())
	return anydiff.Pool(in1, func(in1 anydiff.Res) anydiff.Res {
		return anydiff.Pool(in2, func(in2 anydiff.Res) anydiff.Res {
			// Lay out [in1[0], in2[0], in1[1], in2[1], ...]
			// and interleave each pair with the mapper.
			var parts []anydiff.Res
			for i := 0; i < batch; i++ {
				parts = append(parts, anydiff.Slice(in1, i*size1, (i+1)*size1),
					anydiff.Slice(in2, i*size2, (i+1)*size2))
			}
			return newGatherRes(anydiff.Concat(parts...), m)
		})
	})
}

// SerializerType returns the unique ID used to serialize
// a DepthConcat with the serializer package.
func (d *DepthConcat) SerializerType() string {
	return "github.com/unixpickle/pix2pix/pixconv.DepthConcat"
}

// Serialize serializes the DepthConcat.
func (d *DepthConcat) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(d.Width),
		serializer.Int(d.Height),
		serializer.Int(d.Depth1),
		serializer.Int(d.Depth2),
	)
}

// getMapper returns a mapper from a tensor joined end to
// end with a second tensor to the depth-wise
// concatenation of the two.
func (d *DepthConcat) getMapper(c anyvec.Creator) anyvec.Mapper {
	d.mapperLock.Lock()
	defer d.mapperLock.Unlock()
	if d.mapper != nil && d.mapper.Creator() == c {
		return d.mapper
	}
	positions := d.Width * d.Height
	offset2 := positions * d.Depth1
	table := make([]int, 0, positions*d.OutputDepth())
	for p := 0; p < positions; p++ {
		for z := 0; z < d.Depth1; z++ {
			table = append(table, p*d.Depth1+z)
		}
		for z := 0; z < d.Depth2; z++ {
			table = append(table, offset2+p*d.Depth2+z)
		}
	}
	d.mapper = c.MakeMapper(positions*d.OutputDepth(), table)
	return d.mapper
}
