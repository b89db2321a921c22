// Package sim drives a routing table with simulated traffic.  Every node k
// of the topology is a host Hk attached to a router Rk; hosts send packets
// to a fixed random destination, routers forward them hop by hop with the
// decisions of the routing table, and the event manager orders it all in
// simulated time.
package sim

import (
	"fmt"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/pfrp"
	"github.com/iti/rngstream"
	"go.uber.org/multierr"
	"gopkg.in/op/go-logging.v1"
)

// NetworkName is the first element of every location path in the harness
const NetworkName = "Net"

// Stats counts what happened to the packets of a run
type Stats struct {
	Sent        int
	Delivered   int
	TTLDropped  int // dropped after more than maxhops hops
	LinkDropped int // dropped by link loss
	Steps       int // steps completed by every host
}

// transit is a packet on its way through the network
type transit struct {
	pkt       pkt
	startTime float64
	hops      int
}

type pkt struct {
	desc pfrp.PacketDesc
	size int
}

// Network holds the hosts and the shared state of one run
type Network struct {
	cfg     *pfrp.Config
	table   *pfrp.Table
	hosts   []*HostApp
	rngstrm *rngstream.RngStream // drives link loss
	log     *logging.Logger

	stats Stats
	err   error
}

// New builds a network for the nodes of table.  cfg supplies the traffic
// parameters; it must be the configuration the table was built from.
func New(cfg *pfrp.Config, table *pfrp.Table, log *logging.Logger) (*Network, error) {
	if err := cfg.ValidateHarness(); err != nil {
		return nil, err
	}
	if table.NodeNum() < 2 {
		return nil, fmt.Errorf("sim: need at least 2 nodes, have %d", table.NodeNum())
	}

	nw := new(Network)
	nw.cfg = cfg
	nw.table = table
	nw.log = log
	nw.rngstrm = rngstream.New(cfg.RngName + "-links")
	nw.hosts = make([]*HostApp, table.NodeNum())
	for k := range nw.hosts {
		nw.hosts[k] = createHostApp(nw, k)
	}
	return nw, nil
}

// Hosts returns the host applications, indexed by node id
func (nw *Network) Hosts() []*HostApp {
	return nw.hosts
}

// Stats returns the packet counts of the run so far
func (nw *Network) Stats() Stats {
	return nw.stats
}

// Run simulates until the configured stop time, returning every error
// the routing table reported along the way
func (nw *Network) Run() error {
	evtMgr := evtm.New()
	for _, host := range nw.hosts {
		host.start(evtMgr)
	}
	evtMgr.Run(nw.cfg.StopTime)
	return nw.err
}

// report remembers an error returned by the routing table
func (nw *Network) report(err error) {
	if err == nil {
		return
	}
	nw.log.Error(err.Error())
	nw.err = multierr.Append(nw.err, err)
}

// hopDelay is the time a packet takes over one link
func (nw *Network) hopDelay(size int) float64 {
	bits := float64(8 * size)
	return nw.cfg.HopLatency + bits/(nw.cfg.Bandwidth*1e6)
}

// enterDevice is the event handler called when a packet reaches a host or
// router.  The context is the location path of the device.
func enterDevice(evtMgr *evtm.EventManager, context any, data any) any {
	nw, locPath, tr := unpackHop(context, data)
	now := evtMgr.CurrentSeconds()

	loc, err := pfrp.ParseLocation(locPath)
	if err != nil {
		nw.report(err)
		return nil
	}
	dst, _ := tr.pkt.desc.DstID()

	// arrival at the destination host
	if loc.IsHost && loc.NodeID == dst && tr.hops > 0 {
		nw.stats.Delivered++
		nw.hosts[dst].numReceived++
		nw.report(nw.table.RecordDelivery(tr.pkt.desc.Step, tr.pkt.desc.ID, now-tr.startTime, now))
		return nil
	}

	if !loc.IsHost {
		nw.report(nw.table.RecordPass(locPath, tr.pkt.desc))
	}

	tr.hops++
	if tr.hops > nw.cfg.MaxHops {
		nw.stats.TTLDropped++
		return nil
	}

	label, _, err := nw.table.Route(locPath, tr.pkt.desc, tr.pkt.size)
	if err != nil {
		nw.report(err)
		return nil
	}

	if nw.cfg.DropRate > 0 && nw.rngstrm.RandU01() < nw.cfg.DropRate {
		nw.stats.LinkDropped++
		return nil
	}

	next := NetworkName + "." + label
	evtMgr.Schedule(hopContext{nw: nw, locPath: next}, tr, enterDevice, vrtime.SecondsToTime(nw.hopDelay(tr.pkt.size)))
	return nil
}

// hopContext identifies the device an enterDevice event is delivered to
type hopContext struct {
	nw      *Network
	locPath string
}

func unpackHop(context any, data any) (*Network, string, *transit) {
	hc := context.(hopContext)
	return hc.nw, hc.locPath, data.(*transit)
}
