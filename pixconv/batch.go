package pixconv

import (
	"math"
	"runtime"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
)

// forEachSample calls f for every index in [0, n).
//
// If parallel is set, calls happen concurrently on up to
// GOMAXPROCS goroutines, and f receives the index of the
// goroutine running it.
// Otherwise, calls happen in order with a worker index of
// 0.
func forEachSample(n int, parallel bool, f func(worker, i int)) {
	if !parallel || n < 2 {
		for i := 0; i < n; i++ {
			f(0, i)
		}
		return
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > n {
		numWorkers = n
	}
	indices := make(chan int, n)
	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range indices {
				f(w, i)
			}
		}(w)
	}
	wg.Wait()
}

// numWorkers returns the number of distinct worker indices
// forEachSample may pass to f.
func numWorkers(n int, parallel bool) int {
	if !parallel || n < 2 {
		return 1
	}
	if procs := runtime.GOMAXPROCS(0); procs < n {
		return procs
	}
	return n
}

// sampleMatrix views the idx-th tensor of a packed batch
// as a row-major matrix.
func sampleMatrix(batch anyvec.Vector, idx, rows, cols int) *anyvec.Matrix {
	size := rows * cols
	return &anyvec.Matrix{
		Data: batch.Slice(idx*size, (idx+1)*size),
		Rows: rows,
		Cols: cols,
	}
}

// randomFilters fills filters with normal noise scaled by
// 1/sqrt(fanIn).
func randomFilters(filters anyvec.Vector, fanIn float64) {
	anyvec.Rand(filters, anyvec.Normal, nil)
	filters.Scale(filters.Creator().MakeNumeric(1 / math.Sqrt(fanIn)))
}

// filterParams creates zero filters and, unless noBias is
// set, zero biases.
func filterParams(cr anyvec.Creator, filterSize, biasSize int,
	noBias bool) (filters, biases *anydiff.Var) {
	filters = anydiff.NewVar(cr.MakeVector(filterSize))
	if !noBias {
		biases = anydiff.NewVar(cr.MakeVector(biasSize))
	}
	return
}

// paramList returns the filters and, if present, the
// biases.
func paramList(filters, biases *anydiff.Var) []*anydiff.Var {
	if filters == nil {
		return nil
	}
	if biases == nil {
		return []*anydiff.Var{filters}
	}
	return []*anydiff.Var{filters, biases}
}

// savedBiases returns the biases for serialization, using
// an empty vector when the layer has none.
func savedBiases(filters, biases *anydiff.Var) *anyvecsave.S {
	if biases == nil {
		return &anyvecsave.S{Vector: filters.Vector.Creator().MakeVector(0)}
	}
	return &anyvecsave.S{Vector: biases.Vector}
}

// addBiases adds the biases to every position of a
// depth-minor output batch and returns the variables the
// output depends on.
func addBiases(in anydiff.Res, out anyvec.Vector, filters,
	biases *anydiff.Var) anydiff.VarSet {
	ours := anydiff.VarSet{}
	ours.Add(filters)
	if biases != nil {
		anyvec.AddRepeated(out, biases.Vector)
		ours.Add(biases)
	}
	return anydiff.MergeVarSets(in.Vars(), ours)
}

// propagateBiases adds the per-channel sums of a
// depth-minor upstream vector to biasGrad.
func propagateBiases(biases *anydiff.Var, upstream anyvec.Vector, g anydiff.Grad) {
	if biases == nil {
		return
	}
	biasGrad, ok := g[biases]
	if !ok {
		return
	}
	biasGrad.Add(anyvec.SumRows(upstream, biasGrad.Len()))
}
