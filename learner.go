package pfrp

// learner.go exchanges state and reward messages with the external learner
// and turns its replies into forwarding probabilities

import (
	"fmt"
	"math"

	"github.com/iti/pfrp/wire"
	"gopkg.in/op/go-logging.v1"
)

// Transport carries one request to the learner and blocks for its reply.
// Only one exchange is ever outstanding.
type Transport interface {
	Exchange(request string) (string, error)
	Close() error
}

// probScale is the total weight a node distributes over its links
// after single-agent normalization
const probScale = 100

// minProb is the floor on a normalized link weight, no link is ever
// starved completely
const minProb = 1

// Learner is the request/reply channel to the learner
type Learner struct {
	transport Transport
	mode      SimMode
	log       *logging.Logger
}

// NewLearner is a constructor
func NewLearner(transport Transport, mode SimMode, log *logging.Logger) *Learner {
	return &Learner{transport: transport, mode: mode, log: log}
}

// ReportState sends the traffic counters of the update cycle ending at
// step, resets them, and applies the probabilities the learner replies with.
// A reply that does not fit the mode leaves the probabilities unchanged and
// is returned as a *ProtocolError.
func (lrn *Learner) ReportState(step int, counters *Counters, st *Store) error {
	state := wire.State{Step: step, Megabytes: counters.Megabytes()}
	request := state.Encode()
	lrn.log.Debugf("state %s", request)

	reply, err := lrn.transport.Exchange(request)
	learnerExchanges.WithLabelValues(string(wire.KindState)).Inc()
	if err != nil {
		return fmt.Errorf("state exchange for step %d: %w", step, err)
	}
	counters.Reset()

	var prob *Matrix
	switch lrn.mode {
	case SingleAgent:
		weights, perr := wire.ParseLinkWeights(reply, st.EdgeNum())
		if perr != nil {
			return lrn.desync(step, perr)
		}
		for id, w := range weights {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return lrn.desync(step, fmt.Errorf("link %d weight %v is not finite", id, w))
			}
		}
		prob = NormalizeLinkWeights(st, weights)
	case MultiAgent:
		vals, perr := wire.ParseProbabilities(reply, st.NodeNum())
		if perr != nil {
			return lrn.desync(step, perr)
		}
		prob = NewMatrix(st.NodeNum())
		for idx, v := range vals {
			prob.Set(idx/st.NodeNum(), idx%st.NodeNum(), v)
		}
		for i := 0; i < st.NodeNum(); i++ {
			if prob.At(i, i) != 0 {
				return lrn.desync(step, fmt.Errorf("node %d assigned weight %d to itself", i, prob.At(i, i)))
			}
		}
	default:
		return fmt.Errorf("mode %s does not learn", lrn.mode)
	}

	if err := st.Apply(prob); err != nil {
		return lrn.desync(step, err)
	}
	return nil
}

// ReportReward sends the metrics of a finalized step and waits for the
// learner's acknowledgement, whose content is not interpreted
func (lrn *Learner) ReportReward(rwd wire.Reward) error {
	request := rwd.Encode()
	lrn.log.Debugf("reward %s", request)

	_, err := lrn.transport.Exchange(request)
	learnerExchanges.WithLabelValues(string(wire.KindReward)).Inc()
	if err != nil {
		return fmt.Errorf("reward exchange for step %d: %w", rwd.Step, err)
	}
	return nil
}

// Close releases the transport
func (lrn *Learner) Close() error {
	return lrn.transport.Close()
}

func (lrn *Learner) desync(step int, err error) error {
	protocolErrors.Inc()
	perr := &ProtocolError{Mode: lrn.mode, Step: step, Err: err}
	lrn.log.Error(perr.Error())
	return perr
}

// NormalizeLinkWeights turns one weight per directional link into integer
// probabilities: each node splits probScale over its links in proportion to
// their weights, with a floor of minProb.  Negative weights count as zero; a
// node whose weights are all zero splits evenly.
func NormalizeLinkWeights(st *Store, weights []float64) *Matrix {
	n := st.NodeNum()
	prob := NewMatrix(n)
	for i := 0; i < n; i++ {
		totalWeight := 0.0
		degree := 0
		for j := 0; j < n; j++ {
			if id := st.LinkID(i, j); id != NoLink {
				totalWeight += nonNegative(weights[id])
				degree++
			}
		}
		for j := 0; j < n; j++ {
			id := st.LinkID(i, j)
			if id == NoLink {
				continue
			}
			var p int64
			if totalWeight > 0 {
				p = int64(nonNegative(weights[id]) / totalWeight * probScale)
			} else {
				p = int64(probScale / degree)
			}
			if p < minProb {
				p = minProb
			}
			prob.Set(i, j, p)
		}
	}
	return prob
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
