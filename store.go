package pfrp

// store.go holds the forwarding-probability matrix of the whole network
// and the topology (link id) matrix derived from it when it is loaded

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// NoLink marks a pair of nodes without a physical link in the topology matrix
const NoLink = -1

// Store owns the probability and topology matrices.  The topology is fixed
// when the store is loaded, the probability matrix is replaced wholesale by Apply.
type Store struct {
	nodeNum int
	prob    *Matrix // prob[i][j] is the weight node i gives to forwarding toward j
	topo    *Matrix // NoLink, or the directional link id of i -> j
	edgeNum int

	// number of tokens following the nodeNum^2 that were read, ignored
	extraTokens int
}

// LoadStore reads the initial probability file and derives the topology from it
func LoadStore(filename string, nodeNum int) (*Store, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, &ConfigError{Path: filename, Err: err}
	}
	defer f.Close()

	st, err := ParseStore(f, nodeNum)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok && ce.Path == "" {
			ce.Path = filename
		}
		return nil, err
	}
	return st, nil
}

// ParseStore reads a comma delimited, row-major stream of nodeNum^2 non-negative
// integers.  Only the comma delimits tokens, so line breaks may appear anywhere
// around a value.  A stream with fewer tokens is a configuration error; it is
// never zero-filled.
func ParseStore(r io.Reader, nodeNum int) (*Store, error) {
	if nodeNum < 0 {
		return nil, configErrorf("", "negative node count %d", nodeNum)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	want := nodeNum * nodeNum
	tokens := strings.Split(string(raw), ",")
	// a stream with no values at all still splits into one (empty) token
	if len(tokens) == 1 && strings.TrimSpace(tokens[0]) == "" {
		tokens = tokens[:0]
	}
	if len(tokens) < want {
		return nil, configErrorf("", "probability stream holds %d tokens, want %d", len(tokens), want)
	}

	prob := NewMatrix(nodeNum)
	for idx := 0; idx < want; idx++ {
		tkn := strings.TrimSpace(tokens[idx])
		v, perr := strconv.ParseInt(tkn, 10, 64)
		if perr != nil {
			return nil, configErrorf("", "token %d (%q) is not an integer", idx, tkn)
		}
		if v < 0 {
			return nil, configErrorf("", "token %d is negative (%d)", idx, v)
		}
		prob.Set(idx/nodeNum, idx%nodeNum, v)
	}

	extra := 0
	for _, tkn := range tokens[want:] {
		if strings.TrimSpace(tkn) != "" {
			extra++
		}
	}

	st := &Store{nodeNum: nodeNum, prob: prob, extraTokens: extra}
	if err := st.deriveTopology(); err != nil {
		return nil, err
	}
	return st, nil
}

// deriveTopology assigns the directional link id pair (2k, 2k+1) to the k-th
// linked pair (i,j), i < j, visited in row-major order
func (st *Store) deriveTopology() error {
	st.topo = NewMatrix(st.nodeNum)
	edgeCount := 0
	for i := 0; i < st.nodeNum; i++ {
		if st.prob.At(i, i) != 0 {
			return configErrorf("", "node %d assigns weight %d to itself", i, st.prob.At(i, i))
		}
		st.topo.Set(i, i, NoLink)
		for j := i + 1; j < st.nodeNum; j++ {
			if st.prob.At(i, j) != 0 || st.prob.At(j, i) != 0 {
				st.topo.Set(i, j, int64(2*edgeCount))
				st.topo.Set(j, i, int64(2*edgeCount+1))
				edgeCount++
			} else {
				st.topo.Set(i, j, NoLink)
				st.topo.Set(j, i, NoLink)
			}
		}
	}
	st.edgeNum = edgeCount
	return nil
}

// NodeNum returns the number of nodes the store was loaded for
func (st *Store) NodeNum() int {
	return st.nodeNum
}

// EdgeNum returns the number of distinct physical links
func (st *Store) EdgeNum() int {
	return st.edgeNum
}

// Weight returns prob[i][j]
func (st *Store) Weight(i, j int) int64 {
	return st.prob.At(i, j)
}

// LinkID returns the directional link id of i -> j, or NoLink
func (st *Store) LinkID(i, j int) int {
	return int(st.topo.At(i, j))
}

// Probabilities returns a copy of the probability matrix
func (st *Store) Probabilities() *Matrix {
	return st.prob.Clone()
}

// Topology returns a copy of the topology matrix
func (st *Store) Topology() *Matrix {
	return st.topo.Clone()
}

// Apply replaces the probability matrix
func (st *Store) Apply(m *Matrix) error {
	if m == nil || m.Dim() != st.nodeNum {
		dim := -1
		if m != nil {
			dim = m.Dim()
		}
		return fmt.Errorf("probability matrix has dimension %d, want %d", dim, st.nodeNum)
	}
	st.prob = m.Clone()
	return nil
}

// neighbors lists, in storage order, the nodes to which node assigns a non-zero weight
func (st *Store) neighbors(node int) []int {
	nbrs := make([]int, 0)
	for j := 0; j < st.nodeNum; j++ {
		if st.prob.At(node, j) != 0 {
			nbrs = append(nbrs, j)
		}
	}
	return nbrs
}
