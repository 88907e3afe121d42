package pixnet

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestLeakyReLUOutput(t *testing.T) {
	in := anyvec64.MakeVectorData([]float64{-2, -0.5, 0, 0.5, 3})
	for _, slope := range []float64{0, 0.1} {
		l := &LeakyReLU{Slope: slope}
		actual := l.Apply(anydiff.NewConst(in), 1).Output().Data().([]float64)
		s := slope
		if s == 0 {
			s = 0.2
		}
		expected := []float64{-2 * s, -0.5 * s, 0, 0.5, 3}
		for i, x := range expected {
			if math.Abs(actual[i]-x) > 1e-8 {
				t.Errorf("slope %f: output %d should be %f but got %f", slope, i, x, actual[i])
			}
		}
	}
}

func TestLeakyReLUProp(t *testing.T) {
	in := anyvec64.MakeVector(30)
	anyvec.Rand(in, anyvec.Normal, nil)
	inVar := anydiff.NewVar(in)
	checker := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return (&LeakyReLU{}).Apply(inVar, 3)
		},
		V: []*anydiff.Var{inVar},
	}
	checker.FullCheck(t)
}

func TestActivationOutput(t *testing.T) {
	in := anyvec64.MakeVectorData([]float64{-1, 0, 2})
	relu := ReLU.Apply(anydiff.NewConst(in), 1).Output().Data().([]float64)
	if relu[0] != 0 || relu[1] != 0 || relu[2] != 2 {
		t.Errorf("bad ReLU output: %v", relu)
	}
	tanh := Tanh.Apply(anydiff.NewConst(in), 1).Output().Data().([]float64)
	if math.Abs(tanh[2]-math.Tanh(2)) > 1e-8 {
		t.Errorf("bad Tanh output: %v", tanh)
	}
}
