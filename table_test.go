package pfrp

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replyLinks answers state requests with the given body and everything else with an ack
func replyLinks(body string) func(string) string {
	return func(request string) string {
		if strings.HasPrefix(request, "s@@") {
			return body
		}
		return "reward received"
	}
}

// closeStep drives step through the step-end barrier of every node
func closeStep(t *testing.T, table *Table, step int, now float64) {
	t.Helper()
	for node := 0; node < table.NodeNum(); node++ {
		require.NoError(t, table.SignalStepEnd(step, now))
	}
}

// updateStep drives step through the update barrier of every node
func updateStep(t *testing.T, table *Table, step int) error {
	t.Helper()
	var err error
	for node := 0; node < table.NodeNum(); node++ {
		err = table.RequestUpdate(step)
	}
	return err
}

func TestSingleAgentCycle(t *testing.T) {
	ft := &fakeTransport{reply: replyLinks("1,1,1,1,1,1")}
	table, err := NewTable(testConfig(t, mesh3, 3, SingleAgent), WithTransport(ft))
	require.NoError(t, err)

	// one megabyte over the direct link 0 -> 2
	pkt := PacketDesc{Src: "H0", Dst: "H2", Protocol: "pfrpsa", ID: table.NextSendID(), Step: 0}
	_, _, err = table.Route("Net.R0", pkt, 1024*1024)
	require.NoError(t, err)
	assert.Equal(t, 1, table.NextSendID())

	require.NoError(t, table.RecordExpected(0, 2))
	require.NoError(t, table.RecordDelivery(0, 0, 0.1, 0.5))
	require.NoError(t, table.RecordDelivery(0, 1, 0.3, 0.6))
	closeStep(t, table, 0, 1.0)
	assert.Equal(t, Finalized, table.State(0))

	// the warm-up step sends no reward
	assert.Empty(t, ft.requests)

	require.NoError(t, updateStep(t, table, 0))
	require.Len(t, ft.requests, 1)
	assert.Equal(t, "s@@0@@0.000000,0.000000,1.000000,0.000000,0.000000,0.000000,0.000000,0.000000,0.000000", ft.requests[0])
	assert.Equal(t, 0, table.NextSendID())

	snap, err := table.Snapshot()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				assert.Equal(t, int64(0), snap.Probabilities.At(i, j))
				continue
			}
			assert.Equal(t, int64(50), snap.Probabilities.At(i, j))
		}
	}

	// step 1 closes before its packets arrive
	require.NoError(t, table.RecordExpected(1, 2))
	closeStep(t, table, 1, 2.0)
	assert.Equal(t, BarrierClosed, table.State(1))
	require.NoError(t, table.RecordDelivery(1, 0, 0.2, 2.1))
	assert.Equal(t, BarrierClosed, table.State(1))
	require.NoError(t, table.RecordDelivery(1, 1, 0.4, 2.2))
	assert.Equal(t, Finalized, table.State(1))

	require.Len(t, ft.requests, 2)
	assert.Equal(t, "r@@1@@0.300000,0.000000", ft.requests[1])

	// late arrivals do not finalize again
	require.NoError(t, table.RecordDelivery(1, 2, 0.9, 2.3))
	assert.Equal(t, []string{"s", "r"}, ft.kinds())

	require.NoError(t, table.Close())
	assert.True(t, ft.closed)
}

func TestMultiAgentAppliesReplyVerbatim(t *testing.T) {
	ft := &fakeTransport{reply: replyLinks("0,10,90,20,0,80,30,70,0")}
	table, err := NewTable(testConfig(t, mesh3, 3, MultiAgent), WithTransport(ft))
	require.NoError(t, err)

	require.NoError(t, updateStep(t, table, 0))
	snap, err := table.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 10, 90, 20, 0, 80, 30, 70, 0}, snap.Probabilities.Flatten())

	// steps with nothing expected finalize as soon as they close
	closeStep(t, table, 0, 1.0)
	closeStep(t, table, 1, 2.0)
	require.Len(t, ft.requests, 2)

	reward := ft.requests[1]
	fields := strings.Split(reward, "@@")
	require.Len(t, fields, 3)
	assert.Equal(t, "r", fields[0])
	assert.Equal(t, "1", fields[1])
	segs := strings.Split(fields[2], "/")
	assert.Len(t, segs, 3)
	for _, seg := range segs {
		assert.Equal(t, 1, strings.Count(seg, ","))
	}
}

func TestDesyncLeavesProbabilities(t *testing.T) {
	cases := []struct {
		name  string
		mode  SimMode
		reply string
	}{
		{"short link weights", SingleAgent, "1,2"},
		{"non-numeric weights", SingleAgent, "1,2,x,4,5,6"},
		{"short matrix", MultiAgent, "0,1,1"},
		{"self loop", MultiAgent, "5,10,90,20,0,80,30,70,0"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ft := &fakeTransport{reply: replyLinks(c.reply)}
			table, err := NewTable(testConfig(t, mesh3, 3, c.mode), WithTransport(ft))
			require.NoError(t, err)
			before, err := table.Snapshot()
			require.NoError(t, err)

			err = updateStep(t, table, 0)
			var perr *ProtocolError
			require.True(t, errors.As(err, &perr), "error %v", err)
			assert.Equal(t, c.mode, perr.Mode)
			assert.Equal(t, 0, perr.Step)

			after, err := table.Snapshot()
			require.NoError(t, err)
			assert.Equal(t, before.Probabilities.Flatten(), after.Probabilities.Flatten())
		})
	}
}

func TestExchangeFailure(t *testing.T) {
	ft := &fakeTransport{err: errors.New("peer gone")}
	table, err := NewTable(testConfig(t, mesh3, 3, SingleAgent), WithTransport(ft))
	require.NoError(t, err)

	err = updateStep(t, table, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ft.err))
}

func TestTimeoutFinalization(t *testing.T) {
	tm := CreateTraceManager("timeout", true)
	table, err := NewTable(testConfig(t, mesh3, 3, Static), WithTrace(tm))
	require.NoError(t, err)

	require.NoError(t, table.RecordExpected(0, 5))
	closeStep(t, table, 0, 1.0)
	assert.Equal(t, BarrierClosed, table.State(0))

	require.NoError(t, table.RecordDelivery(0, 0, 0.1, 2.9))
	assert.Equal(t, BarrierClosed, table.State(0))

	// any call at or past the survival time expires the step
	require.NoError(t, table.SignalStepEnd(1, 3.0))
	assert.Equal(t, Finalized, table.State(0))
	assert.Equal(t, Open, table.State(1))

	require.Len(t, tm.Traces[0], 2)
	assert.Equal(t, "timeout", tm.Traces[0][0].TraceType)
	assert.Equal(t, "discard", tm.Traces[0][1].TraceType)
}

func TestStaticModeResetsCounters(t *testing.T) {
	table, err := NewTable(testConfig(t, mesh3, 3, Static))
	require.NoError(t, err)

	pkt := PacketDesc{Src: "H0", Dst: "H1", Protocol: "other"}
	_, _, err = table.Route("Net.R0", pkt, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), table.counters.Bytes(0, 1))

	require.NoError(t, updateStep(t, table, 0))
	assert.Equal(t, int64(0), table.counters.Bytes(0, 1))

	// rewards without a transport are logged only
	closeStep(t, table, 0, 1.0)
	closeStep(t, table, 1, 2.0)
	assert.Equal(t, Finalized, table.State(1))
	assert.NoError(t, table.Close())
}

func TestStaticModeRewardsOverTransport(t *testing.T) {
	ft := &fakeTransport{}
	table, err := NewTable(testConfig(t, mesh3, 3, Static), WithTransport(ft))
	require.NoError(t, err)

	require.NoError(t, updateStep(t, table, 0))
	closeStep(t, table, 0, 1.0)
	closeStep(t, table, 1, 2.0)
	assert.Equal(t, []string{"r"}, ft.kinds())
}

func TestRecordPassSkipsHosts(t *testing.T) {
	table, err := NewTable(testConfig(t, mesh3, 3, MultiAgent), WithTransport(&fakeTransport{}))
	require.NoError(t, err)

	pkt := PacketDesc{Src: "H0", Dst: "H2", Protocol: "pfrpma", ID: 3, Step: 0}
	require.NoError(t, table.RecordPass("Net.H0", pkt))
	require.NoError(t, table.RecordPass("Net.R0", pkt))
	assert.Error(t, table.RecordPass("Net.R0", PacketDesc{Src: "H0", Dst: "H2", Step: 99}))
}

func TestLearningModeNeedsTransport(t *testing.T) {
	_, err := NewTable(testConfig(t, mesh3, 3, SingleAgent))
	var cerr *ConfigError
	assert.True(t, errors.As(err, &cerr))

	_, err = NewTable(nil)
	assert.True(t, errors.As(err, &cerr))
}

func TestNewTableBadFile(t *testing.T) {
	cfg := testConfig(t, "0,1,1", 3, Static)
	_, err := NewTable(cfg)
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, cfg.RoutingFile, cerr.Path)
}

func TestSharedInstance(t *testing.T) {
	var shared Shared
	_, err := shared.Get()
	assert.True(t, errors.Is(err, ErrNotInitialized))

	_, err = shared.Init(testConfig(t, "0,1", 2, Static))
	assert.Error(t, err)
	_, err = shared.Get()
	assert.True(t, errors.Is(err, ErrNotInitialized))

	first, err := shared.Init(testConfig(t, mesh3, 3, Static))
	require.NoError(t, err)
	second, err := shared.Init(testConfig(t, line4, 4, Static))
	require.NoError(t, err)
	assert.Same(t, first, second)

	got, err := shared.Get()
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, 3, got.NodeNum())
}

func TestNormalizeLinkWeights(t *testing.T) {
	st := loadStore(t, line4, 4)
	weights := make([]float64, 2*st.EdgeNum())

	// node 1 holds links to 0 and to 2
	weights[st.LinkID(1, 0)] = 3
	weights[st.LinkID(1, 2)] = 1
	// node 2 has only zero or negative weights
	weights[st.LinkID(2, 1)] = -4
	weights[st.LinkID(2, 3)] = 0
	// node 0 gets a vanishing share after rounding
	weights[st.LinkID(0, 1)] = 0

	prob := NormalizeLinkWeights(st, weights)
	assert.Equal(t, int64(75), prob.At(1, 0))
	assert.Equal(t, int64(25), prob.At(1, 2))
	assert.Equal(t, int64(50), prob.At(2, 1))
	assert.Equal(t, int64(50), prob.At(2, 3))
	assert.Equal(t, int64(100), prob.At(0, 1))
	assert.Equal(t, int64(0), prob.At(0, 2))

	weights[st.LinkID(1, 0)] = 1000
	weights[st.LinkID(1, 2)] = 1
	prob = NormalizeLinkWeights(st, weights)
	assert.Equal(t, int64(99), prob.At(1, 0))
	assert.Equal(t, int64(minProb), prob.At(1, 2))
}
