package pfrp

// routing.go selects the next hop and egress interface of a packet at a
// router, based on the probabilistic routing table

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// RandSource is a stream of U(0,1) variates.  *rngstream.RngStream satisfies it.
type RandSource interface {
	RandU01() float64
}

// NextHop selects the next hop of a packet at node bound for dst.  A direct
// weight toward dst short-cuts the choice.  Otherwise a neighbor is drawn
// with probability proportional to node's outgoing weights; the draw does
// not consider whether the neighbor leads toward dst.
func (st *Store) NextHop(node, dst int, rng RandSource) (int, error) {
	if err := st.checkNode(node); err != nil {
		return 0, err
	}
	if err := st.checkNode(dst); err != nil {
		return 0, err
	}
	if st.prob.At(node, dst) != 0 {
		return dst, nil
	}

	candidates := st.neighbors(node)
	if len(candidates) == 0 {
		return 0, fmt.Errorf("node %d has no neighbor with non-zero weight", node)
	}
	var probSum int64
	for _, nbr := range candidates {
		probSum += st.prob.At(node, nbr)
	}

	randProb := int64(math.Floor(rng.RandU01() * float64(probSum)))
	if randProb >= probSum {
		randProb = probSum - 1
	}

	var curProb int64
	for _, nbr := range candidates {
		curProb += st.prob.At(node, nbr)
		if randProb <= curProb {
			return nbr, nil
		}
	}
	// unreachable, the running total ends at probSum > randProb
	return candidates[len(candidates)-1], nil
}

// EgressIndex returns the interface through which node forwards to next.
// Interfaces are numbered over the neighbors with non-zero weight in storage
// order, starting at 1 as index 0 is the loopback.
func (st *Store) EgressIndex(node, next int) (int, error) {
	if err := st.checkNode(node); err != nil {
		return 0, err
	}
	pos := slices.Index(st.neighbors(node), next)
	if pos < 0 {
		return 0, fmt.Errorf("node %d has no weighted link to %d", node, next)
	}
	return pos + 1, nil
}

// hostEgressIndex is the interface of a router toward its attached host,
// placed after the loopback and every peer link
func (st *Store) hostEgressIndex(node int) int {
	return len(st.neighbors(node)) + 1
}

func (st *Store) checkNode(node int) error {
	if node < 0 || node >= st.nodeNum {
		return fmt.Errorf("node id %d outside [0,%d)", node, st.nodeNum)
	}
	return nil
}

// Hop is the routing decision for a packet at one location
type Hop struct {
	Label  string // name of the next device, "R{k}" or "H{k}"
	Egress int    // egress interface index
	Next   int    // node id of the next device
	Final  bool   // true when the next device is the destination host
}

// route computes the next hop of pkt at loc and accounts for its bytes
func (st *Store) route(loc Location, pkt PacketDesc, size int, rng RandSource, bytes *Counters) (Hop, error) {
	if err := st.checkNode(loc.NodeID); err != nil {
		return Hop{}, err
	}

	// first hop: from host to its router
	if loc.IsHost {
		return Hop{Label: RouterName(loc.NodeID), Egress: 1, Next: loc.NodeID}, nil
	}

	dst, err := pkt.DstID()
	if err != nil {
		return Hop{}, err
	}
	if err := st.checkNode(dst); err != nil {
		return Hop{}, err
	}

	// final hop: from router to its host
	if loc.NodeID == dst {
		return Hop{Label: HostName(dst), Egress: st.hostEgressIndex(dst), Next: dst, Final: true}, nil
	}

	next, err := st.NextHop(loc.NodeID, dst, rng)
	if err != nil {
		return Hop{}, err
	}
	egress, err := st.EgressIndex(loc.NodeID, next)
	if err != nil {
		return Hop{}, err
	}
	bytes.Count(loc.NodeID, next, size)
	return Hop{Label: RouterName(next), Egress: egress, Next: next}, nil
}
