package pixconv

import (
	"math"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestInstanceNormSerialize(t *testing.T) {
	layer := NewInstanceNorm(anyvec64.CurrentCreator(), 4)
	anyvec.Rand(layer.Scalers.Vector, anyvec.Normal, nil)
	anyvec.Rand(layer.Biases.Vector, anyvec.Normal, nil)
	layer.Stabilizer = 1e-3
	data, err := serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *InstanceNorm
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(layer, newLayer) {
		t.Error("layers differ")
	}
}

func TestInstanceNormOutput(t *testing.T) {
	layer := &InstanceNorm{
		Depth:   2,
		Scalers: anydiff.NewVar(anyvec64.MakeVectorData([]float64{2, -3})),
		Biases:  anydiff.NewVar(anyvec64.MakeVectorData([]float64{-1.5, 2})),
	}
	vec := anyvec64.MakeVectorData([]float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,

		5, 0,
		5, 1,
		5, 0,
		5, 1,
	})
	actual := layer.Apply(anydiff.NewConst(vec), 2).Output().Data().([]float64)

	// The first tensor has channels [1 2 3 4] (mean 2.5,
	// variance 1.25) and [10 20 30 40] (mean 25, variance
	// 125).
	// The second has a constant channel 0 and channel 1
	// [0 1 0 1] (mean 0.5, variance 0.25).
	var expected []float64
	for i := 0; i < 4; i++ {
		x := float64(i + 1)
		norm0 := (x - 2.5) / math.Sqrt(1.25+1e-5)
		norm1 := (10*x - 25) / math.Sqrt(125+1e-5)
		expected = append(expected, 2*norm0-1.5, -3*norm1+2)
	}
	for i := 0; i < 4; i++ {
		norm := (float64(i%2) - 0.5) / math.Sqrt(0.25+1e-5)
		expected = append(expected, -1.5, -3*norm+2)
	}

	for i, x := range expected {
		a := actual[i]
		if math.IsNaN(a) || math.Abs(a-x) > 1e-5 {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestInstanceNormLargeMean(t *testing.T) {
	layer := NewInstanceNorm(anyvec32.CurrentCreator(), 1)
	vec := anyvec32.MakeVectorData([]float32{10000.5, 9999.5, 10000.5, 9999.5})
	actual := layer.Apply(anydiff.NewConst(vec), 1).Output().Data().([]float32)
	expected := []float32{1, -1, 1, -1}
	for i, x := range expected {
		a := actual[i]
		if math.IsNaN(float64(a)) || math.Abs(float64(a-x)) > 1e-3 {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestInstanceNormIndependent(t *testing.T) {
	c := anyvec64.CurrentCreator()
	layer := NewInstanceNorm(c, 3)
	anyvec.Rand(layer.Scalers.Vector, anyvec.Normal, nil)
	anyvec.Rand(layer.Biases.Vector, anyvec.Normal, nil)

	batch := c.MakeVector(5 * 3 * 4)
	anyvec.Rand(batch, anyvec.Normal, nil)
	joint := layer.Apply(anydiff.NewConst(batch), 4).Output().Data().([]float64)

	for i := 0; i < 4; i++ {
		sample := batch.Slice(i*15, (i+1)*15)
		single := layer.Apply(anydiff.NewConst(sample), 1).Output().Data().([]float64)
		for j, x := range single {
			if math.Abs(x-joint[i*15+j]) > 1e-8 {
				t.Fatalf("sample %d: batched output differs", i)
			}
		}
	}
}

func TestInstanceNormProp(t *testing.T) {
	c := anyvec64.CurrentCreator()
	layer := NewInstanceNorm(c, 2)
	anyvec.Rand(layer.Scalers.Vector, anyvec.Normal, nil)
	anyvec.Rand(layer.Biases.Vector, anyvec.Normal, nil)
	input := c.MakeVector(24)
	anyvec.Rand(input, anyvec.Normal, nil)
	inVar := anydiff.NewVar(input)

	checker := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return layer.Apply(inVar, 3)
		},
		V: []*anydiff.Var{inVar, layer.Scalers, layer.Biases},
	}
	checker.FullCheck(t)
}
