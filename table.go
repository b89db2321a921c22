package pfrp

// table.go assembles the routing table: the probability store, the
// traffic counters, the step coordinator, the delay aggregator and the
// channel to the learner.  Every simulated node calls into one Table.

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/iti/rngstream"
	pfrplog "github.com/iti/pfrp/log"
	"go.uber.org/multierr"
	"gopkg.in/op/go-logging.v1"
)

// Option configures a Table at construction
type Option func(*Table)

// WithTransport sets the transport to the learner.  It is required by the
// learning modes; in static mode it is optional and, if given, carries rewards.
func WithTransport(transport Transport) Option {
	return func(t *Table) { t.transport = transport }
}

// WithLogger sets the logger, by default records are discarded
func WithLogger(log *logging.Logger) Option {
	return func(t *Table) { t.log = log }
}

// WithRand sets the random stream the next hop draw uses
func WithRand(rng RandSource) Option {
	return func(t *Table) { t.rng = rng }
}

// WithTrace sets the trace manager that records learner messages
func WithTrace(tm *TraceManager) Option {
	return func(t *Table) { t.trace = tm }
}

// Table is the probabilistic routing table of the whole network, and its
// statistics and feedback engine.  Its methods are safe to call from any
// goroutine, but the engine assumes the callers' events are dispatched one
// at a time: an exchange with the learner holds the table until the reply
// arrives, stalling every caller.
type Table struct {
	mu sync.Mutex

	nodeNum   int
	totalStep int
	mode      SimMode

	store     *Store
	counters  *Counters
	coord     *Coordinator
	agg       Aggregator
	transport Transport
	learner   *Learner
	rng       RandSource
	log       *logging.Logger
	trace     *TraceManager

	warmedUp bool    // the first finalized step has been discarded
	sendID   int     // next packet sequence id of the update cycle
	now      float64 // latest time reported by a caller
}

// Snapshot is a read-only copy of the routing state
type Snapshot struct {
	Probabilities *Matrix
	Topology      *Matrix
	EdgeNum       int
}

// NewTable loads the initial probabilities named by cfg and builds a table ready for routing
func NewTable(cfg *Config, opts ...Option) (*Table, error) {
	if cfg == nil {
		return nil, &ConfigError{Err: errors.New("no configuration")}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := new(Table)
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = pfrplog.Discard("pfrp")
	}
	if t.rng == nil {
		t.rng = rngstream.New(cfg.RngName)
	}
	if cfg.SimMode.Learning() && t.transport == nil {
		return nil, &ConfigError{Err: fmt.Errorf("mode %s needs a transport to the learner", cfg.SimMode)}
	}

	st, err := LoadStore(cfg.RoutingFile, cfg.NodeNum)
	if err != nil {
		return nil, err
	}
	if st.extraTokens > 0 {
		t.log.Warningf("%s holds %d values beyond the %d used", cfg.RoutingFile, st.extraTokens, cfg.NodeNum*cfg.NodeNum)
	}
	if comps := st.Components(); len(comps) > 1 {
		t.log.Warningf("topology has %d disconnected components", len(comps))
	}

	t.nodeNum = cfg.NodeNum
	t.totalStep = cfg.TotalStep
	t.mode = cfg.SimMode
	t.store = st
	t.counters = NewCounters(cfg.NodeNum)
	t.coord = NewCoordinator(cfg.NodeNum, cfg.TotalStep, cfg.SurvivalTime)
	t.agg = NewAggregator(cfg.SimMode, cfg.NodeNum)
	if t.transport != nil {
		t.learner = NewLearner(t.transport, cfg.SimMode, t.log)
	}

	t.log.Noticef("routing table for %d nodes, %d links, mode %s", t.nodeNum, st.EdgeNum(), t.mode)
	t.log.Debugf("probabilities:\n%stopology:\n%s", st.prob, st.topo)
	return t, nil
}

func (t *Table) ready() error {
	if t == nil || t.store == nil {
		return ErrNotInitialized
	}
	return nil
}

// Route returns the name of the next device for pkt at the dotted location
// path, and the egress interface to reach it.  Router to router hops count
// size bytes against the traffic counter of the chosen link.
func (t *Table) Route(locPath string, pkt PacketDesc, size int) (string, int, error) {
	hop, err := t.RouteHop(locPath, pkt, size)
	if err != nil {
		return "", 0, err
	}
	return hop.Label, hop.Egress, nil
}

// RouteHop is Route returning the full routing decision
func (t *Table) RouteHop(locPath string, pkt PacketDesc, size int) (Hop, error) {
	if err := t.ready(); err != nil {
		return Hop{}, err
	}
	loc, err := ParseLocation(locPath)
	if err != nil {
		return Hop{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	hop, err := t.store.route(loc, pkt, size, t.rng, t.counters)
	if err != nil {
		return Hop{}, err
	}
	switch {
	case loc.IsHost:
		routedPackets.WithLabelValues("first").Inc()
	case hop.Final:
		routedPackets.WithLabelValues("final").Inc()
	default:
		routedPackets.WithLabelValues("transit").Inc()
	}
	return hop, nil
}

// RecordPass notes that pkt passed the router at locPath.  Only the
// per-node aggregator uses it; passes by hosts are not counted.
func (t *Table) RecordPass(locPath string, pkt PacketDesc) error {
	if err := t.ready(); err != nil {
		return err
	}
	loc, err := ParseLocation(locPath)
	if err != nil {
		return err
	}
	if loc.IsHost {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.coord.record(pkt.Step); err != nil {
		return err
	}
	if t.coord.State(pkt.Step) == Finalized {
		return nil
	}
	t.agg.RecordPass(pkt.Step, loc.NodeID, pkt.ID)
	return nil
}

// RecordExpected adds count to the packets sent in step
func (t *Table) RecordExpected(step, count int) error {
	if err := t.ready(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.coord.RecordExpected(step, count)
}

// SignalStepEnd is called by each node once per step, when its sending
// phase for the step ends at time now
func (t *Table) SignalStepEnd(step int, now float64) error {
	if err := t.ready(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now

	closed, err := t.coord.SignalBarrier(step, now)
	if err != nil {
		return err
	}
	if closed {
		t.log.Debugf("step %d closed at %g, %d packets expected", step, now, t.coord.Expected(step))
		if t.agg.Collected(step) >= t.coord.Expected(step) {
			err = t.finalize(step, CompleteTrace)
		}
	}
	return multierr.Append(err, t.finalizeExpired(now))
}

// RecordDelivery records the delay of packet pktID sent in step, arriving
// at its destination at time now
func (t *Table) RecordDelivery(step, pktID int, delay float64, now float64) error {
	if err := t.ready(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now

	if _, err := t.coord.record(step); err != nil {
		return err
	}
	deliveredPackets.Inc()

	var err error
	switch t.coord.State(step) {
	case Finalized:
		t.log.Debugf("late packet %d of finalized step %d ignored", pktID, step)
	case BarrierClosed:
		t.agg.RecordSample(step, pktID, delay)
		if t.agg.Collected(step) >= t.coord.Expected(step) {
			err = t.finalize(step, CompleteTrace)
		}
	default:
		t.agg.RecordSample(step, pktID, delay)
	}
	return multierr.Append(err, t.finalizeExpired(now))
}

// RequestUpdate is called by each node once per step when it is ready for
// new probabilities.  The nodeNum-th call runs the update cycle: the traffic
// counters go to the learner and its reply replaces the probabilities.
// In static mode the counters are only reset.
func (t *Table) RequestUpdate(step int) error {
	if err := t.ready(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	fire, err := t.coord.SignalUpdate(step)
	if err != nil || !fire {
		return err
	}

	if !t.mode.Learning() {
		t.counters.Reset()
		return nil
	}

	t.trace.AddTrace(t.now, step, StateTrace, "")
	err = t.learner.ReportState(step, t.counters, t.store)
	t.sendID = 0
	if err != nil {
		return err
	}
	t.trace.AddTrace(t.now, step, UpdateTrace, strings.TrimSpace(t.store.prob.String()))
	t.log.Infof("probabilities updated after step %d", step)
	t.log.Debugf("probabilities:\n%s", t.store.prob)
	return nil
}

// NextSendID returns a packet sequence id, unique within the update cycle
func (t *Table) NextSendID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.sendID
	t.sendID++
	return id
}

// State returns the life-cycle position of step
func (t *Table) State(step int) StepState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.coord.State(step)
}

// Snapshot returns a copy of the routing state
func (t *Table) Snapshot() (Snapshot, error) {
	if err := t.ready(); err != nil {
		return Snapshot{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{Probabilities: t.store.Probabilities(), Topology: t.store.Topology(), EdgeNum: t.store.EdgeNum()}, nil
}

// Mode returns the simulation mode
func (t *Table) Mode() SimMode {
	return t.mode
}

// NodeNum returns the number of nodes
func (t *Table) NodeNum() int {
	return t.nodeNum
}

// TotalStep returns the number of steps in the run
func (t *Table) TotalStep() int {
	return t.totalStep
}

// Close releases the transport to the learner
func (t *Table) Close() error {
	if err := t.ready(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.transport == nil {
		return nil
	}
	return t.transport.Close()
}

// finalizeExpired finalizes every closed step that has outlived the survival time
func (t *Table) finalizeExpired(now float64) error {
	var err error
	for _, step := range t.coord.Expired(now) {
		err = multierr.Append(err, t.finalize(step, TimeoutTrace))
	}
	return err
}

// finalize computes and reports the metrics of step, at most once per step.
// The first step ever finalized is discarded as warm-up.
func (t *Table) finalize(step int, trigger TraceKind) error {
	if !t.coord.MarkFinalized(step) {
		return nil
	}
	rwd := t.agg.Finalize(step, t.coord.Expected(step))
	finalizedSteps.WithLabelValues(trigger.String()).Inc()
	t.trace.AddTrace(t.now, step, trigger, "")

	if !t.warmedUp {
		t.warmedUp = true
		warmupSteps.Inc()
		t.trace.AddTrace(t.now, step, DiscardTrace, "")
		t.log.Infof("step %d finalized (%s), discarded as warm-up", step, trigger)
		return nil
	}

	t.log.Infof("step %d finalized (%s)", step, trigger)
	t.trace.AddTrace(t.now, step, RewardTrace, rwd.Encode())
	if t.learner == nil {
		t.log.Noticef("reward %s", rwd.Encode())
		return nil
	}
	return t.learner.ReportReward(rwd)
}
