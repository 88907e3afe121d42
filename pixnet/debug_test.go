package pixnet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestDebugPassThrough(t *testing.T) {
	var buf bytes.Buffer
	d := &Debug{
		Writer:        &buf,
		ID:            "stage",
		Depth:         2,
		PrintShape:    true,
		PrintMean:     true,
		PrintVariance: true,
	}
	in := anydiff.NewConst(anyvec64.MakeVectorData([]float64{1, 10, 3, 10, 5, 10, 7, 10}))
	if out := d.Apply(in, 2); out != in {
		t.Fatal("input should be returned untouched")
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines but got %d: %q", len(lines), buf.String())
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "Debug (stage):") {
			t.Errorf("unexpected line: %q", l)
		}
	}
	if !strings.Contains(lines[0], "4 components") {
		t.Errorf("unexpected shape line: %q", lines[0])
	}
	if lines[1] != "Debug (stage): mean: [4 10]" {
		t.Errorf("unexpected mean line: %q", lines[1])
	}
	if lines[2] != "Debug (stage): variance: [5 0]" {
		t.Errorf("unexpected variance line: %q", lines[2])
	}
}
