package pixconv

import (
	"fmt"
	"image"
	"image/color"

	"github.com/unixpickle/anyvec"
)

// ImageToTensor converts an image to a tensor with values
// between -1 and 1.
//
// A depth of 3 produces RGB channels.
// A depth of 1 produces a single luminance channel.
func ImageToTensor(c anyvec.Creator, img image.Image, depth int) anyvec.Vector {
	if depth != 1 && depth != 3 {
		panic(fmt.Sprintf("unsupported image depth: %d", depth))
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	minX := img.Bounds().Min.X
	minY := img.Bounds().Min.Y

	res := make([]float64, 0, w*h*depth)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.At(minX+x, minY+y)
			if depth == 1 {
				gray := color.Gray16Model.Convert(px).(color.Gray16)
				res = append(res, unitToSigned(float64(gray.Y)/0xffff))
				continue
			}
			r, g, b, _ := px.RGBA()
			for _, comp := range []uint32{r, g, b} {
				res = append(res, unitToSigned(float64(comp)/0xffff))
			}
		}
	}

	return c.MakeVectorData(c.MakeNumericList(res))
}

// TensorToImage converts a tensor produced by a network
// (or by ImageToTensor) back into an image.
// Values in the tensor are clipped between -1 and 1.
//
// The anyvec.NumericList type must be []float32 or
// []float64.
func TensorToImage(width, height, depth int, v anyvec.Vector) image.Image {
	var rawData []float64
	switch data := v.Data().(type) {
	case []float64:
		rawData = data
	case []float32:
		rawData = make([]float64, len(data))
		for i, x := range data {
			rawData[i] = float64(x)
		}
	default:
		panic(fmt.Sprintf("unsupported numeric list: %T", data))
	}

	if len(rawData) != width*height*depth {
		panic("incorrect tensor size")
	}
	for i, x := range rawData {
		rawData[i] = (clipSigned(x) + 1) / 2
	}

	if depth == 1 {
		res := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				val := uint8(rawData[y*width+x]*0xff + 0.5)
				res.SetGray(x, y, color.Gray{Y: val})
			}
		}
		return res
	} else if depth != 3 {
		panic(fmt.Sprintf("unsupported image depth: %d", depth))
	}

	res := image.NewRGBA(image.Rect(0, 0, width, height))
	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var vals [3]uint8
			for z := 0; z < 3; z++ {
				vals[z] = uint8(rawData[idx]*0xff + 0.5)
				idx++
			}
			res.SetRGBA(x, y, color.RGBA{R: vals[0], G: vals[1], B: vals[2], A: 0xff})
		}
	}

	return res
}

func unitToSigned(x float64) float64 {
	return x*2 - 1
}

func clipSigned(x float64) float64 {
	if x < -1 {
		return -1
	} else if x > 1 {
		return 1
	}
	return x
}
