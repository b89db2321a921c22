package sim

import (
	"strconv"
	"strings"

	"github.com/iti/pfrp"
	"github.com/iti/pfrp/wire"
)

// UniformLearner returns a learner stand-in that answers every state
// request with equal weights on every link, so the probabilities settle on
// an even split, and acknowledges every reward.  It lets a learning mode
// run end to end without the gym side.
func UniformLearner(mode pfrp.SimMode, st *pfrp.Store) func(string) string {
	var stateReply string
	switch mode {
	case pfrp.SingleAgent:
		weights := make([]string, 2*st.EdgeNum())
		for idx := range weights {
			weights[idx] = wire.FormatFloat(1.0)
		}
		stateReply = strings.Join(weights, wire.ValueSep)
	case pfrp.MultiAgent:
		unit := make([]float64, 2*st.EdgeNum())
		for idx := range unit {
			unit[idx] = 1.0
		}
		prob := pfrp.NormalizeLinkWeights(st, unit).Flatten()
		vals := make([]string, len(prob))
		for idx, v := range prob {
			vals[idx] = strconv.FormatInt(v, 10)
		}
		stateReply = strings.Join(vals, wire.ValueSep)
	}

	return func(request string) string {
		req, err := wire.ParseRequest(request)
		if err != nil || req.Kind == wire.KindReward {
			return wire.RewardReceived
		}
		return stateReply
	}
}

// HandlerTransport runs a learner handler in-process, in place of a socket
type HandlerTransport struct {
	Handler func(string) string
}

// Exchange answers request with the handler
func (ht *HandlerTransport) Exchange(request string) (string, error) {
	return ht.Handler(request), nil
}

// Close does nothing
func (ht *HandlerTransport) Close() error {
	return nil
}
