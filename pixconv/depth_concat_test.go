package pixconv

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestDepthConcatOutput(t *testing.T) {
	mixer := &DepthConcat{Width: 2, Height: 1, Depth1: 1, Depth2: 2}
	in1 := anyvec64.MakeVectorData([]float64{1, 2, 3, 4})
	in2 := anyvec64.MakeVectorData([]float64{10, 11, 12, 13, 20, 21, 22, 23})
	actual := mixer.Mix(anydiff.NewConst(in1), anydiff.NewConst(in2), 2).Output()
	expected := []float64{
		1, 10, 11, 2, 12, 13,
		3, 20, 21, 4, 22, 23,
	}
	if !reflect.DeepEqual(actual.Data(), expected) {
		t.Errorf("expected %v but got %v", expected, actual.Data())
	}
}

func TestDepthConcatProp(t *testing.T) {
	mixer := &DepthConcat{Width: 3, Height: 2, Depth1: 2, Depth2: 3}
	v1 := anyvec64.MakeVector(3 * 2 * 2 * 2)
	v2 := anyvec64.MakeVector(3 * 2 * 3 * 2)
	anyvec.Rand(v1, anyvec.Normal, nil)
	anyvec.Rand(v2, anyvec.Normal, nil)
	in1 := anydiff.NewVar(v1)
	in2 := anydiff.NewVar(v2)

	checker := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return mixer.Mix(in1, in2, 2)
		},
		V: []*anydiff.Var{in1, in2},
	}
	checker.FullCheck(t)
}

func TestDepthConcatSerialize(t *testing.T) {
	mixer := &DepthConcat{Width: 3, Height: 2, Depth1: 2, Depth2: 3}
	data, err := serializer.SerializeAny(mixer)
	if err != nil {
		t.Fatal(err)
	}
	var newMixer *DepthConcat
	if err := serializer.DeserializeAny(data, &newMixer); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(mixer, newMixer) {
		t.Error("mixers differ")
	}
}
