package pixconv

import (
	"fmt"
	"sync"

	"github.com/unixpickle/anyvec"
)

// Im2Row maps the windows of a tensor to the rows of a
// matrix.
//
// Windows are WindowWidth by WindowHeight boxes placed at
// every StrideX, StrideY step for which they fit entirely
// inside the tensor.
// Rows are ordered like the window positions (row-major),
// and every row holds its window in row-major depth-minor
// order.
//
// A Conv gathers its input into rows and multiplies them
// by its filters.
// A ConvTranspose does the reverse, summing rows into its
// uncropped output.
//
// The mapping is cached, so the fields should not change
// after the first use.
type Im2Row struct {
	WindowWidth  int
	WindowHeight int

	StrideX int
	StrideY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	mapperLock sync.Mutex
	mapper     anyvec.Mapper
}

// InputSize returns the size of a windowed tensor.
func (m *Im2Row) InputSize() int {
	return m.InputWidth * m.InputHeight * m.InputDepth
}

// NumX returns the number of horizontal window positions.
func (m *Im2Row) NumX() int {
	return numPositions(m.InputWidth, m.WindowWidth, m.StrideX)
}

// NumY returns the number of vertical window positions.
func (m *Im2Row) NumY() int {
	return numPositions(m.InputHeight, m.WindowHeight, m.StrideY)
}

// RowSize returns the size of a window.
func (m *Im2Row) RowSize() int {
	return m.WindowWidth * m.WindowHeight * m.InputDepth
}

// MakeOut allocates a zero row matrix.
func (m *Im2Row) MakeOut(c anyvec.Creator) *anyvec.Matrix {
	rows := m.NumX() * m.NumY()
	return &anyvec.Matrix{
		Data: c.MakeVector(rows * m.RowSize()),
		Rows: rows,
		Cols: m.RowSize(),
	}
}

// Gather maps every tensor in a packed batch to a row
// matrix and passes it to f.
//
// The row matrix is reused between calls to f on the same
// goroutine, so f must not retain it.
// If parallel is set, f may be called concurrently and out
// of order.
func (m *Im2Row) Gather(batch anyvec.Vector, parallel bool,
	f func(idx int, rows *anyvec.Matrix)) {
	inSize := m.InputSize()
	if batch.Len()%inSize != 0 {
		panic(fmt.Sprintf("input length %d not divisible by %d", batch.Len(), inSize))
	}
	mapper := m.Mapper(batch.Creator())
	m.Loop(batch.Creator(), batch.Len()/inSize, parallel, func(i int, rows *anyvec.Matrix) {
		mapper.Map(batch.Slice(i*inSize, (i+1)*inSize), rows.Data)
		f(i, rows)
	})
}

// Loop is like Gather for a batch of n tensors, except
// that nothing is mapped.
// The row matrices passed to f hold arbitrary data.
func (m *Im2Row) Loop(c anyvec.Creator, n int, parallel bool,
	f func(idx int, rows *anyvec.Matrix)) {
	scratch := make([]*anyvec.Matrix, numWorkers(n, parallel))
	for i := range scratch {
		scratch[i] = m.MakeOut(c)
	}
	forEachSample(n, parallel, func(worker, i int) {
		f(i, scratch[worker])
	})
}

// Mapper returns the mapping as an anyvec.Mapper.
//
// Map gathers a tensor into a row matrix.
// MapTranspose sums a row matrix back into a tensor.
func (m *Im2Row) Mapper(c anyvec.Creator) anyvec.Mapper {
	m.mapperLock.Lock()
	defer m.mapperLock.Unlock()
	if m.mapper == nil || m.mapper.Creator() != c {
		m.mapper = c.MakeMapper(m.InputSize(), m.table())
	}
	return m.mapper
}

func (m *Im2Row) table() []int {
	numX, numY := m.NumX(), m.NumY()
	span := m.WindowWidth * m.InputDepth
	table := make([]int, 0, numX*numY*m.RowSize())
	for winY := 0; winY < numY; winY++ {
		for winX := 0; winX < numX; winX++ {
			top, left := winY*m.StrideY, winX*m.StrideX
			for y := top; y < top+m.WindowHeight; y++ {
				start := (y*m.InputWidth + left) * m.InputDepth
				for i := 0; i < span; i++ {
					table = append(table, start+i)
				}
			}
		}
	}
	return table
}

// numPositions counts the placements of a window along a
// dimension.
func numPositions(size, window, stride int) int {
	if size < window {
		return 0
	}
	return 1 + (size-window)/stride
}
