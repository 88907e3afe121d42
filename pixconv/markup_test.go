package pixconv

import (
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/pix2pix/pixnet"
)

func TestFromMarkup(t *testing.T) {
	code := `
Input(w=8, h=8, d=3)
Padding(l=1, r=1, t=1, b=1)
Conv(w=4, h=4, n=5, sx=2, sy=2)
BatchNorm
ReLU
Repeat(n=2) {
	Padding(l=1, r=1, t=1, b=1)
	Conv(w=3, h=3, n=5)
	Tanh
}
`
	c := anyvec32.CurrentCreator()
	layer, err := FromMarkup(c, code)
	if err != nil {
		t.Fatal(err)
	}
	net, ok := layer.(pixnet.Net)
	if !ok {
		t.Fatalf("unexpected type: %T", layer)
	}
	if len(net) != 10 {
		t.Fatalf("expected 10 layers but got %d", len(net))
	}
	if _, ok := net[2].(*InstanceNorm); !ok {
		t.Errorf("BatchNorm should be an InstanceNorm, got %T", net[2])
	}
	if n := len(net.Parameters()); n != 8 {
		t.Errorf("expected 8 parameters but got %d", n)
	}

	out := net.Apply(anydiff.NewConst(c.MakeVector(8*8*3*2)), 2)
	if out.Output().Len() != 4*4*5*2 {
		t.Errorf("unexpected output length: %d", out.Output().Len())
	}
}

func TestFromMarkupErrors(t *testing.T) {
	c := anyvec32.CurrentCreator()
	if _, err := FromMarkup(c, "Input(w=8, h=8, d=3)\nSoftmax\n"); err == nil {
		t.Error("expected error for Softmax")
	}
	if _, err := FromMarkup(c, "Conv(w=3"); err == nil {
		t.Error("expected parse error")
	}
}
