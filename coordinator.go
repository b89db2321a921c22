package pfrp

// coordinator.go holds the per-step synchronization state.  Every step has
// two independent nodeNum-party barriers: the step-end barrier, signaled by
// each node when its sending phase for the step ends, and the update
// barrier, signaled by each node when it asks for new probabilities.

import (
	"container/heap"
	"fmt"
)

// StepState is the life-cycle position of a step
type StepState int

const (
	Open StepState = iota
	BarrierClosed
	Finalized
)

var stepStateToStr map[StepState]string = map[StepState]string{Open: "open", BarrierClosed: "closed", Finalized: "finalized"}

func (ss StepState) String() string {
	return stepStateToStr[ss]
}

// stepRecord holds the synchronization state of one step
type stepRecord struct {
	step         int
	expected     int     // packets the nodes reported sending in the step
	barrierCount int     // nodes that signaled the end of their sending phase
	closed       bool    // all nodes have signaled the step-end barrier
	closeTime    float64 // time of the last step-end signal
	finalized    bool    // metrics for the step have been computed
	updateCount  int     // nodes that signaled the update barrier
}

func (sr *stepRecord) state() StepState {
	if sr.finalized {
		return Finalized
	}
	if sr.closed {
		return BarrierClosed
	}
	return Open
}

// pendingHeap and its methods implement a min-priority heap on the
// close times of steps whose barrier closed but which are not finalized
type pendingHeap []*stepRecord

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].closeTime == h[j].closeTime {
		return h[i].step < h[j].step
	}
	return h[i].closeTime < h[j].closeTime
}
func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) {
	*h = append(*h, x.(*stepRecord))
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Coordinator tracks the barriers of every step of a run
type Coordinator struct {
	nodeNum      int
	totalStep    int
	survivalTime float64

	steps   []*stepRecord // indexed by step, grown on demand up to totalStep
	pending pendingHeap   // closed, unfinalized steps
}

// NewCoordinator is a constructor
func NewCoordinator(nodeNum, totalStep int, survivalTime float64) *Coordinator {
	cd := new(Coordinator)
	cd.nodeNum = nodeNum
	cd.totalStep = totalStep
	cd.survivalTime = survivalTime
	cd.steps = make([]*stepRecord, 0)
	cd.pending = make(pendingHeap, 0)
	heap.Init(&cd.pending)
	return cd
}

// record returns the record of step, creating it and any missing
// predecessors on first reference
func (cd *Coordinator) record(step int) (*stepRecord, error) {
	if step < 0 || step >= cd.totalStep {
		return nil, fmt.Errorf("%w: step %d, total %d", ErrStepRange, step, cd.totalStep)
	}
	for len(cd.steps) <= step {
		cd.steps = append(cd.steps, &stepRecord{step: len(cd.steps)})
	}
	return cd.steps[step], nil
}

// RecordExpected adds count to the number of packets expected for step
func (cd *Coordinator) RecordExpected(step, count int) error {
	sr, err := cd.record(step)
	if err != nil {
		return err
	}
	sr.expected += count
	return nil
}

// Expected returns the number of packets expected for step
func (cd *Coordinator) Expected(step int) int {
	if step < 0 || step >= len(cd.steps) {
		return 0
	}
	return cd.steps[step].expected
}

// SignalBarrier counts one node's arrival at the step-end barrier.  The
// nodeNum-th arrival closes the barrier at closeTime and returns true.
func (cd *Coordinator) SignalBarrier(step int, closeTime float64) (bool, error) {
	sr, err := cd.record(step)
	if err != nil {
		return false, err
	}
	if sr.barrierCount >= cd.nodeNum {
		return false, fmt.Errorf("%w: step-end barrier of step %d", ErrBarrierOverflow, step)
	}
	sr.barrierCount++
	if sr.barrierCount < cd.nodeNum {
		return false, nil
	}
	sr.closed = true
	sr.closeTime = closeTime
	if !sr.finalized {
		heap.Push(&cd.pending, sr)
	}
	return true, nil
}

// SignalUpdate counts one node's arrival at the update barrier, returning
// true on the nodeNum-th arrival
func (cd *Coordinator) SignalUpdate(step int) (bool, error) {
	sr, err := cd.record(step)
	if err != nil {
		return false, err
	}
	if sr.updateCount >= cd.nodeNum {
		return false, fmt.Errorf("%w: update barrier of step %d", ErrBarrierOverflow, step)
	}
	sr.updateCount++
	return sr.updateCount == cd.nodeNum, nil
}

// State returns the life-cycle position of step
func (cd *Coordinator) State(step int) StepState {
	if step < 0 || step >= len(cd.steps) {
		return Open
	}
	return cd.steps[step].state()
}

// Closed reports whether the step-end barrier of step has closed
func (cd *Coordinator) Closed(step int) bool {
	return cd.State(step) != Open
}

// MarkFinalized moves step to Finalized.  It returns false if the step
// was already finalized, and so is the gate that makes finalization happen once.
func (cd *Coordinator) MarkFinalized(step int) bool {
	sr, err := cd.record(step)
	if err != nil || sr.finalized {
		return false
	}
	sr.finalized = true
	return true
}

// Expired removes and returns, oldest first, the closed steps not yet
// finalized whose close time lies survivalTime or more before now.
// The timeout is evaluated by polling on every event rather than by a
// timer; the scan stops at the oldest pending step that is still alive.
func (cd *Coordinator) Expired(now float64) []int {
	expired := make([]int, 0)
	for cd.pending.Len() > 0 {
		oldest := cd.pending[0]
		if oldest.finalized {
			heap.Pop(&cd.pending)
			continue
		}
		if now-oldest.closeTime < cd.survivalTime {
			break
		}
		heap.Pop(&cd.pending)
		expired = append(expired, oldest.step)
	}
	return expired
}
