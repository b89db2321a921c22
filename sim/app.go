package sim

// app.go holds the host application: it generates the traffic of one node
// and reports the end of each of its steps to the routing table

import (
	"math"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/pfrp"
	"github.com/iti/rngstream"
)

// HostApp is the sending application on host Hk
type HostApp struct {
	nw   *Network
	node int
	name string
	dst  int // destination node, fixed for the run

	sendInterval float64 // mean time between packets
	stepNum      int
	timerStep    float64 // start time of the current step
	sentInStep   int

	numSent     int
	numReceived int

	rngstrm *rngstream.RngStream
}

// createHostApp is a constructor
func createHostApp(nw *Network, node int) *HostApp {
	app := new(HostApp)
	app.nw = nw
	app.node = node
	app.name = pfrp.HostName(node)
	app.rngstrm = rngstream.New(nw.cfg.RngName + "-" + app.name)

	// packets per second = flow rate (Mbit/s) in bytes over the message length
	pcktRate := nw.cfg.FlowRate * 1024 * 1024 / 8 / float64(nw.cfg.MessageLength)
	app.sendInterval = 1.0 / pcktRate
	app.dst = app.pickDst(nw.table.NodeNum())
	return app
}

// pickDst draws a destination uniformly from the nodes other than self
func (app *HostApp) pickDst(nodeNum int) int {
	draw := int(math.Floor(app.rngstrm.RandU01() * float64(nodeNum-1)))
	if draw >= nodeNum-1 {
		draw = nodeNum - 2
	}
	if draw >= app.node {
		draw++
	}
	return draw
}

// Name returns the host name
func (app *HostApp) Name() string {
	return app.name
}

// Dst returns the destination node of the host's traffic
func (app *HostApp) Dst() int {
	return app.dst
}

// Sent returns the number of packets the host sent
func (app *HostApp) Sent() int {
	return app.numSent
}

// Received returns the number of packets that arrived at the host
func (app *HostApp) Received() int {
	return app.numReceived
}

// Step returns the step the host is sending in
func (app *HostApp) Step() int {
	return app.stepNum
}

func (app *HostApp) locPath() string {
	return NetworkName + "." + app.name
}

// start schedules the first send at time zero
func (app *HostApp) start(evtMgr *evtm.EventManager) {
	evtMgr.Schedule(app, nil, hostSend, vrtime.SecondsToTime(0.0))
}

// hostSend is the event handler of the host's send timer.  When a step's
// time has run out the host reports the step before sending the next packet.
func hostSend(evtMgr *evtm.EventManager, context any, data any) any {
	app := context.(*HostApp)
	nw := app.nw
	table := nw.table
	now := evtMgr.CurrentSeconds()

	// no more packets are sent once every step is done
	if app.stepNum >= table.TotalStep() {
		return nil
	}

	if now-app.timerStep > nw.cfg.StepTime {
		step := app.stepNum
		nw.report(table.RecordExpected(step, app.sentInStep))
		nw.report(table.SignalStepEnd(step, now))
		nw.report(table.RequestUpdate(step))

		app.stepNum++
		app.sentInStep = 0
		app.timerStep = now
		if app.stepNum > nw.stats.Steps {
			nw.stats.Steps = app.stepNum
		}
		if app.stepNum >= table.TotalStep() {
			return nil
		}
	}

	app.sendPacket(evtMgr, now)

	// inter-send times are uniform within 10% of the mean
	u01 := app.rngstrm.RandU01()
	interval := app.sendInterval * (0.9 + 0.2*u01)
	if now+interval < nw.cfg.StopTime {
		evtMgr.Schedule(app, nil, hostSend, vrtime.SecondsToTime(interval))
	}
	return nil
}

// sendPacket names a packet and hands it to the host's own location,
// from where the routing table forwards it to the attached router
func (app *HostApp) sendPacket(evtMgr *evtm.EventManager, now float64) {
	nw := app.nw
	desc := pfrp.PacketDesc{
		Src:      app.name,
		Dst:      pfrp.HostName(app.dst),
		Protocol: nw.table.Mode().ProtocolTag(),
		ID:       nw.table.NextSendID(),
		Step:     app.stepNum,
	}
	tr := &transit{pkt: pkt{desc: desc, size: nw.cfg.MessageLength}, startTime: now}
	app.numSent++
	app.sentInStep++
	nw.stats.Sent++
	evtMgr.Schedule(hopContext{nw: nw, locPath: app.locPath()}, tr, enterDevice, vrtime.SecondsToTime(0.0))
}
