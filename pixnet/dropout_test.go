package pixnet

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestDropoutDisabled(t *testing.T) {
	in := anyvec64.MakeVectorData([]float64{1, -2, 3})
	inRes := anydiff.NewConst(in)
	out := (&Dropout{KeepProb: 0.5}).Apply(inRes, 1)
	if out != inRes {
		t.Error("disabled dropout should be the identity")
	}
}

func TestDropoutEnabled(t *testing.T) {
	const size = 20000
	in := anyvec64.MakeVector(size)
	in.AddScalar(2.0)
	d := &Dropout{Enabled: true, KeepProb: 0.25}
	out := d.Apply(anydiff.NewConst(in), 1).Output().Data().([]float64)

	var kept int
	var sum float64
	for i, x := range out {
		if x != 0 {
			kept++
			if math.Abs(x-8) > 1e-8 {
				t.Fatalf("component %d: kept value should be 8 but got %f", i, x)
			}
		}
		sum += x
	}
	if frac := float64(kept) / size; math.Abs(frac-0.25) > 0.02 {
		t.Errorf("kept fraction should be about 0.25 but got %f", frac)
	}
	if mean := sum / size; math.Abs(mean-2) > 0.15 {
		t.Errorf("mean should be about 2 but got %f", mean)
	}
}

func TestDropoutProp(t *testing.T) {
	in := anyvec64.MakeVector(100)
	anyvec.Rand(in, anyvec.Normal, nil)
	inVar := anydiff.NewVar(in)
	out := (&Dropout{Enabled: true, KeepProb: 0.5}).Apply(inVar, 1)

	grad := anydiff.NewGrad(inVar)
	upstream := anyvec64.MakeVector(100)
	upstream.AddScalar(1.0)
	out.Propagate(upstream, grad)

	outData := out.Output().Data().([]float64)
	gradData := grad[inVar].Data().([]float64)
	for i, g := range gradData {
		if outData[i] == 0 && g != 0 && in.Data().([]float64)[i] != 0 {
			t.Fatalf("gradient %d should be masked", i)
		} else if outData[i] != 0 && math.Abs(g-2) > 1e-8 {
			t.Fatalf("gradient %d should be 2 but got %f", i, g)
		}
	}
}
