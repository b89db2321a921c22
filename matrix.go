package pfrp

import (
	"fmt"
	"strings"
)

// Matrix is a square n x n integer matrix held in a single row-major
// buffer.  Index arguments are checked on every access; an out of range
// index is a programming error and panics.
type Matrix struct {
	n    int
	data []int64
}

// NewMatrix is a constructor, all elements start at zero
func NewMatrix(n int) *Matrix {
	if n < 0 {
		panic(fmt.Errorf("negative matrix dimension %d", n))
	}
	return &Matrix{n: n, data: make([]int64, n*n)}
}

// MatrixFromRows builds a matrix from nested rows, which must all have length len(rows)
func MatrixFromRows(rows [][]int64) (*Matrix, error) {
	m := NewMatrix(len(rows))
	for i, row := range rows {
		if len(row) != m.n {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), m.n)
		}
		copy(m.data[i*m.n:(i+1)*m.n], row)
	}
	return m, nil
}

// Dim returns n
func (m *Matrix) Dim() int {
	return m.n
}

func (m *Matrix) index(i, j int) int {
	if i < 0 || i >= m.n || j < 0 || j >= m.n {
		panic(fmt.Errorf("matrix index (%d,%d) outside %dx%d", i, j, m.n, m.n))
	}
	return i*m.n + j
}

// At returns element (i,j)
func (m *Matrix) At(i, j int) int64 {
	return m.data[m.index(i, j)]
}

// Set assigns element (i,j)
func (m *Matrix) Set(i, j int, v int64) {
	m.data[m.index(i, j)] = v
}

// Add increments element (i,j) by v
func (m *Matrix) Add(i, j int, v int64) {
	m.data[m.index(i, j)] += v
}

// Row returns a copy of row i
func (m *Matrix) Row(i int) []int64 {
	m.index(i, 0)
	row := make([]int64, m.n)
	copy(row, m.data[i*m.n:(i+1)*m.n])
	return row
}

// Flatten returns a row-major copy of the elements
func (m *Matrix) Flatten() []int64 {
	flat := make([]int64, len(m.data))
	copy(flat, m.data)
	return flat
}

// Reset sets every element to zero
func (m *Matrix) Reset() {
	for idx := range m.data {
		m.data[idx] = 0
	}
}

// Clone returns a deep copy
func (m *Matrix) Clone() *Matrix {
	return &Matrix{n: m.n, data: m.Flatten()}
}

// String renders the matrix one row per line
func (m *Matrix) String() string {
	var sb strings.Builder
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d", m.At(i, j))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
