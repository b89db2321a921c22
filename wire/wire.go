// Package wire is the codec for the messages exchanged with the learner.
//
// Requests from the routing table are text of the form
//
//	s@@<step>@@<b00>,<b01>,...,<b(N-1)(N-1)>           state
//	r@@<step>@@<avgDelay>,<lossRate>                    reward, whole network
//	r@@<step>@@<avgDelay0>,<lossRate0>/<avgDelay1>,...  reward, per node
//
// Replies to a state request are comma lists: 2*edgeNum link weights for
// the single-agent learner, nodeNum^2 integer probabilities for the
// multi-agent one.  Replies to a reward request are not interpreted.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Delimiters of the text protocol
const (
	FieldSep  = "@@"
	ValueSep  = ","
	MetricSep = "/"
)

// Replies the gym side sends in answer to reward and episode messages
const (
	RewardReceived = "reward received"
	EndEpisode     = "end episode"
)

// Kind tags a request
type Kind string

const (
	KindState  Kind = "s"
	KindReward Kind = "r"
)

// ErrTokenCount is wrapped by every error caused by a message carrying the
// wrong number of values
var ErrTokenCount = errors.New("wire: wrong token count")

// FormatFloat renders values the way the gym side has always received
// them: fixed point with six decimals
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// State carries the per-pair traffic of one update cycle
type State struct {
	Step      int
	Megabytes []float64 // row-major nodeNum x nodeNum
}

// Encode renders the state request
func (s State) Encode() string {
	vals := make([]string, len(s.Megabytes))
	for idx, v := range s.Megabytes {
		vals[idx] = FormatFloat(v)
	}
	return string(KindState) + FieldSep + strconv.Itoa(s.Step) + FieldSep + strings.Join(vals, ValueSep)
}

// Metric is the delay and loss of one reporting unit, the whole network
// or a single node
type Metric struct {
	AvgDelay float64
	LossRate float64
}

// Reward carries the metrics of one finalized step
type Reward struct {
	Step    int
	Metrics []Metric
}

// Encode renders the reward request
func (r Reward) Encode() string {
	segs := make([]string, len(r.Metrics))
	for idx, m := range r.Metrics {
		segs[idx] = FormatFloat(m.AvgDelay) + ValueSep + FormatFloat(m.LossRate)
	}
	return string(KindReward) + FieldSep + strconv.Itoa(r.Step) + FieldSep + strings.Join(segs, MetricSep)
}

// Request is a decoded request, as seen by the learner
type Request struct {
	Kind Kind
	Step int
	Body string
}

// ParseRequest splits a request into its three fields
func ParseRequest(msg string) (Request, error) {
	fields := strings.SplitN(msg, FieldSep, 3)
	if len(fields) != 3 {
		return Request{}, fmt.Errorf("%w: request %q has %d fields, want 3", ErrTokenCount, msg, len(fields))
	}
	kind := Kind(fields[0])
	if kind != KindState && kind != KindReward {
		return Request{}, fmt.Errorf("wire: unknown request kind %q", fields[0])
	}
	step, err := strconv.Atoi(fields[1])
	if err != nil {
		return Request{}, fmt.Errorf("wire: bad step %q: %w", fields[1], err)
	}
	return Request{Kind: kind, Step: step, Body: fields[2]}, nil
}

// State decodes the body of a state request
func (req Request) State() (State, error) {
	if req.Kind != KindState {
		return State{}, fmt.Errorf("wire: request kind %q is not a state", req.Kind)
	}
	vals, err := parseFloats(req.Body, -1)
	if err != nil {
		return State{}, err
	}
	return State{Step: req.Step, Megabytes: vals}, nil
}

// Reward decodes the body of a reward request
func (req Request) Reward() (Reward, error) {
	if req.Kind != KindReward {
		return Reward{}, fmt.Errorf("wire: request kind %q is not a reward", req.Kind)
	}
	rwd := Reward{Step: req.Step, Metrics: make([]Metric, 0)}
	for _, seg := range strings.Split(req.Body, MetricSep) {
		vals, err := parseFloats(seg, 2)
		if err != nil {
			return Reward{}, err
		}
		rwd.Metrics = append(rwd.Metrics, Metric{AvgDelay: vals[0], LossRate: vals[1]})
	}
	return rwd, nil
}

// ParseLinkWeights decodes a single-agent reply, one weight per directional link
func ParseLinkWeights(reply string, edgeNum int) ([]float64, error) {
	return parseFloats(reply, 2*edgeNum)
}

// ParseProbabilities decodes a multi-agent reply, the row-major nodeNum x nodeNum
// matrix of final probabilities
func ParseProbabilities(reply string, nodeNum int) ([]int64, error) {
	tokens, err := splitValues(reply, nodeNum*nodeNum)
	if err != nil {
		return nil, err
	}
	vals := make([]int64, len(tokens))
	for idx, tkn := range tokens {
		v, perr := strconv.ParseInt(tkn, 10, 64)
		if perr != nil {
			// tolerate learners that format integral values as floats
			f, ferr := strconv.ParseFloat(tkn, 64)
			if ferr != nil {
				return nil, fmt.Errorf("wire: value %d (%q) is not numeric", idx, tkn)
			}
			v = int64(f)
		}
		if v < 0 {
			return nil, fmt.Errorf("wire: value %d is negative (%d)", idx, v)
		}
		vals[idx] = v
	}
	return vals, nil
}

func parseFloats(body string, want int) ([]float64, error) {
	tokens, err := splitValues(body, want)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, len(tokens))
	for idx, tkn := range tokens {
		v, perr := strconv.ParseFloat(tkn, 64)
		if perr != nil {
			return nil, fmt.Errorf("wire: value %d (%q) is not numeric", idx, tkn)
		}
		vals[idx] = v
	}
	return vals, nil
}

// splitValues splits a comma list, trimming whitespace and an enclosing
// pair of brackets.  want < 0 accepts any count.
func splitValues(body string, want int) ([]string, error) {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "[") && strings.HasSuffix(body, "]") {
		body = strings.TrimSpace(body[1 : len(body)-1])
	}
	tokens := []string{}
	if body != "" {
		tokens = strings.Split(body, ValueSep)
	}
	if want >= 0 && len(tokens) != want {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrTokenCount, len(tokens), want)
	}
	for idx := range tokens {
		tokens[idx] = strings.TrimSpace(tokens[idx])
	}
	return tokens, nil
}
