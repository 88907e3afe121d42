package pixconv

import (
	"math"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
)

func TestPaddingOutput(t *testing.T) {
	pl := &Padding{
		InputWidth:  3,
		InputHeight: 4,
		InputDepth:  2,

		PaddingTop:    1,
		PaddingBottom: 2,
		PaddingLeft:   3,
		PaddingRight:  1,
	}

	inTensor := anyvec32.MakeVectorData([]float32{
		3.868200, 1.104760, 0.360270, 0.046398, 0.800748, -0.579334,
		-0.540134, -0.095748, -0.240087, 0.298587, 0.018990, 0.481808,
		-0.656787, -0.061479, 1.997873, 0.108665, 1.788285, 0.222048,
		1.153895, 0.780207, -0.655182, 0.495345, -0.244460, -0.841344,
	})

	expected := []float32{
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 3.868200, 1.104760, 0.360270, 0.046398, 0.800748, -0.579334, 0, 0,
		0, 0, 0, 0, 0, 0, -0.540134, -0.095748, -0.240087, 0.298587, 0.018990, 0.481808, 0, 0,
		0, 0, 0, 0, 0, 0, -0.656787, -0.061479, 1.997873, 0.108665, 1.788285, 0.222048, 0, 0,
		0, 0, 0, 0, 0, 0, 1.153895, 0.780207, -0.655182, 0.495345, -0.244460, -0.841344, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	actual := pl.Apply(anydiff.NewConst(inTensor), 1).Output().Data().([]float32)
	checkPaddingOutput(t, expected, actual)
}

func TestPaddingReflectOutput(t *testing.T) {
	pl := &Padding{
		Mode: ReflectPadding,

		InputWidth:  3,
		InputHeight: 2,
		InputDepth:  1,

		PaddingTop:    1,
		PaddingBottom: 1,
		PaddingLeft:   1,
		PaddingRight:  1,
	}
	inTensor := anyvec32.MakeVectorData([]float32{
		1, 2, 3,
		4, 5, 6,

		-1, -2, -3,
		-4, -5, -6,
	})
	expected := []float32{
		5, 4, 5, 6, 5,
		2, 1, 2, 3, 2,
		5, 4, 5, 6, 5,
		2, 1, 2, 3, 2,

		-5, -4, -5, -6, -5,
		-2, -1, -2, -3, -2,
		-5, -4, -5, -6, -5,
		-2, -1, -2, -3, -2,
	}
	actual := pl.Apply(anydiff.NewConst(inTensor), 2).Output().Data().([]float32)
	checkPaddingOutput(t, expected, actual)
}

func TestPaddingReflectDepth(t *testing.T) {
	pl := &Padding{
		Mode: ReflectPadding,

		InputWidth:  2,
		InputHeight: 1,
		InputDepth:  2,

		PaddingLeft:  1,
		PaddingRight: 1,
	}
	inTensor := anyvec32.MakeVectorData([]float32{1, 2, 3, 4})
	expected := []float32{3, 4, 1, 2, 3, 4, 1, 2}
	actual := pl.Apply(anydiff.NewConst(inTensor), 1).Output().Data().([]float32)
	checkPaddingOutput(t, expected, actual)
}

func TestPaddingProp(t *testing.T) {
	for _, mode := range []PaddingMode{ZeroPadding, ReflectPadding} {
		layer := &Padding{
			Mode: mode,

			InputWidth:  4,
			InputHeight: 4,
			InputDepth:  2,

			PaddingTop:    1,
			PaddingBottom: 2,
			PaddingLeft:   3,
			PaddingRight:  1,
		}
		img := anyvec32.MakeVector(4 * 4 * 2 * 2)
		anyvec.Rand(img, anyvec.Uniform, nil)
		inVar := anydiff.NewVar(img)

		checker := anydifftest.ResChecker{
			F: func() anydiff.Res {
				return layer.Apply(inVar, 2)
			},
			V: []*anydiff.Var{inVar},
		}
		checker.FullCheck(t)
	}
}

func TestPaddingReflectTooLarge(t *testing.T) {
	layer := &Padding{
		Mode: ReflectPadding,

		InputWidth:  2,
		InputHeight: 3,
		InputDepth:  1,

		PaddingLeft: 2,
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	layer.Apply(anydiff.NewConst(anyvec32.MakeVector(6)), 1)
}

func TestPaddingSerialize(t *testing.T) {
	layer := &Padding{
		Mode: ReflectPadding,

		InputWidth:  5,
		InputHeight: 6,
		InputDepth:  3,

		PaddingTop:    1,
		PaddingBottom: 2,
		PaddingLeft:   3,
		PaddingRight:  4,
	}
	data, err := serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *Padding
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(layer, newLayer) {
		t.Error("layers differ")
	}

	layer.PaddingLeft = 5
	data, err = serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	if err := serializer.DeserializeAny(data, &newLayer); err == nil {
		t.Error("expected error for oversized reflection")
	}
}

func checkPaddingOutput(t *testing.T, expected, actual []float32) {
	if len(actual) != len(expected) {
		t.Fatalf("len should be %d but got %d", len(expected), len(actual))
	}
	for i, x := range expected {
		a := actual[i]
		if math.IsNaN(float64(a)) || math.Abs(float64(a-x)) > 1e-3 {
			t.Errorf("value %d: should be %f but got %f", i, x, a)
		}
	}
}
