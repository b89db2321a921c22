package pfrp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// mesh3 links every pair of three nodes with weight 1
const mesh3 = "0,1,1,1,0,1,1,1,0"

// line4 is the chain 0 - 1 - 2 - 3
const line4 = "0,1,0,0,\n1,0,1,0,\n0,1,0,1,\n0,0,1,0"

func writeProbFile(t *testing.T, content string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "prob.txt")
	require.NoError(t, os.WriteFile(fn, []byte(content), 0644))
	return fn
}

// seqRand replays a fixed sequence of variates, cycling
type seqRand struct {
	vals []float64
	idx  int
}

func (sr *seqRand) RandU01() float64 {
	v := sr.vals[sr.idx%len(sr.vals)]
	sr.idx++
	return v
}

// fakeTransport records requests and answers them from a reply function
type fakeTransport struct {
	requests []string
	reply    func(request string) string
	err      error
	closed   bool
}

func (ft *fakeTransport) Exchange(request string) (string, error) {
	ft.requests = append(ft.requests, request)
	if ft.err != nil {
		return "", ft.err
	}
	if ft.reply == nil {
		return "reward received", nil
	}
	return ft.reply(request), nil
}

func (ft *fakeTransport) Close() error {
	ft.closed = true
	return nil
}

func (ft *fakeTransport) kinds() []string {
	kinds := make([]string, len(ft.requests))
	for idx, req := range ft.requests {
		kinds[idx] = req[:1]
	}
	return kinds
}

func testConfig(t *testing.T, content string, nodeNum int, mode SimMode) *Config {
	cfg := DefaultConfig()
	cfg.NodeNum = nodeNum
	cfg.RoutingFile = writeProbFile(t, content)
	cfg.SimMode = mode
	cfg.TotalStep = 10
	cfg.SurvivalTime = 2.0
	return cfg
}
