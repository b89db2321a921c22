package pfrp

// aggregator.go turns the per-packet delay samples of a step into the
// metrics reported to the learner when the step is finalized

import (
	"sort"

	"github.com/iti/pfrp/wire"
)

// Aggregator collects delay samples by step.  Two variants exist: one
// reports the whole network as a single unit, the other reports each node.
type Aggregator interface {
	// RecordPass notes that packet pktID of step passed through router node
	RecordPass(step, node, pktID int)

	// RecordSample notes that packet pktID of step arrived with the given delay
	RecordSample(step, pktID int, delay float64)

	// Collected returns the number of samples recorded for step
	Collected(step int) int

	// Finalize computes the metrics of step given the number of packets
	// sent in it, and drops the samples of the step
	Finalize(step, expected int) wire.Reward
}

// NewAggregator returns the aggregator the simulation mode calls for
func NewAggregator(mode SimMode, nodeNum int) Aggregator {
	if mode == MultiAgent {
		return newPerNodeAggregator(nodeNum)
	}
	return newGlobalAggregator()
}

// lossRate is 1 - arrived/sent, defined as 0 when nothing was sent
func lossRate(arrived, sent int) float64 {
	if sent <= 0 {
		return 0.0
	}
	return 1.0 - float64(arrived)/float64(sent)
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// globalAggregator keeps the delays of each step as a list
type globalAggregator struct {
	delays map[int][]float64
}

func newGlobalAggregator() *globalAggregator {
	return &globalAggregator{delays: make(map[int][]float64)}
}

func (ga *globalAggregator) RecordPass(step, node, pktID int) {}

func (ga *globalAggregator) RecordSample(step, pktID int, delay float64) {
	ga.delays[step] = append(ga.delays[step], delay)
}

func (ga *globalAggregator) Collected(step int) int {
	return len(ga.delays[step])
}

func (ga *globalAggregator) Finalize(step, expected int) wire.Reward {
	samples := ga.delays[step]
	delete(ga.delays, step)
	m := wire.Metric{AvgDelay: mean(samples), LossRate: lossRate(len(samples), expected)}
	return wire.Reward{Step: step, Metrics: []wire.Metric{m}}
}

// perNodeStep is the state of one step under the per-node variant
type perNodeStep struct {
	passed   []map[int]bool  // passed[node] is the set of packet ids seen at node
	delays   map[int]float64 // packet id -> delay, for packets that arrived
	arrivals int
}

// perNodeAggregator keeps, for each step, the packets seen at each node
// and the delays of the packets that arrived
type perNodeAggregator struct {
	nodeNum int
	steps   map[int]*perNodeStep
}

func newPerNodeAggregator(nodeNum int) *perNodeAggregator {
	return &perNodeAggregator{nodeNum: nodeNum, steps: make(map[int]*perNodeStep)}
}

func (pa *perNodeAggregator) stepState(step int) *perNodeStep {
	ps, present := pa.steps[step]
	if !present {
		ps = &perNodeStep{passed: make([]map[int]bool, pa.nodeNum), delays: make(map[int]float64)}
		for node := range ps.passed {
			ps.passed[node] = make(map[int]bool)
		}
		pa.steps[step] = ps
	}
	return ps
}

func (pa *perNodeAggregator) RecordPass(step, node, pktID int) {
	if node < 0 || node >= pa.nodeNum {
		return
	}
	pa.stepState(step).passed[node][pktID] = true
}

func (pa *perNodeAggregator) RecordSample(step, pktID int, delay float64) {
	ps := pa.stepState(step)
	ps.delays[pktID] = delay
	ps.arrivals++
}

func (pa *perNodeAggregator) Collected(step int) int {
	ps, present := pa.steps[step]
	if !present {
		return 0
	}
	return ps.arrivals
}

func (pa *perNodeAggregator) Finalize(step, expected int) wire.Reward {
	ps := pa.stepState(step)
	delete(pa.steps, step)

	rwd := wire.Reward{Step: step, Metrics: make([]wire.Metric, pa.nodeNum)}
	for node := 0; node < pa.nodeNum; node++ {
		delays := make([]float64, 0, len(ps.passed[node]))
		for pktID := range ps.passed[node] {
			if delay, arrived := ps.delays[pktID]; arrived {
				delays = append(delays, delay)
			}
		}
		// summation order fixed so reports are reproducible
		sort.Float64s(delays)
		rwd.Metrics[node] = wire.Metric{
			AvgDelay: mean(delays),
			LossRate: lossRate(len(delays), len(ps.passed[node])),
		}
	}
	return rwd
}
