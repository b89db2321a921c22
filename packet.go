package pfrp

// packet.go holds the naming conventions the per-node application uses
// for packets and for its position in the simulated network

import (
	"fmt"
	"strconv"
	"strings"
)

// Node names are a kind prefix followed by the node id, e.g. "H3" or "R3"
const (
	HostPrefix   = "H"
	RouterPrefix = "R"
)

// PacketDesc describes a packet, carried in the simulator as the packet
// name "{src}-{dst}-{protocol}-{id}-{step}", e.g. H0-H5-pfrpsa-4387-0
type PacketDesc struct {
	Src      string // label of the sending host
	Dst      string // label of the destination host
	Protocol string // routing protocol tag, see SimMode.ProtocolTag
	ID       int    // sequence id, unique within an update cycle
	Step     int    // step the packet was sent in
}

// String renders the packet name
func (pd PacketDesc) String() string {
	return fmt.Sprintf("%s-%s-%s-%d-%d", pd.Src, pd.Dst, pd.Protocol, pd.ID, pd.Step)
}

// DstID returns the node id embedded in the destination label
func (pd PacketDesc) DstID() (int, error) {
	_, id, err := parseNodeName(pd.Dst)
	return id, err
}

// SrcID returns the node id embedded in the source label
func (pd PacketDesc) SrcID() (int, error) {
	_, id, err := parseNodeName(pd.Src)
	return id, err
}

// ParsePacketName inverts PacketDesc.String
func ParsePacketName(name string) (PacketDesc, error) {
	fields := strings.Split(name, "-")
	if len(fields) != 5 {
		return PacketDesc{}, fmt.Errorf("packet name %q has %d fields, want 5", name, len(fields))
	}
	id, err := strconv.Atoi(fields[3])
	if err != nil {
		return PacketDesc{}, fmt.Errorf("packet name %q: bad id: %w", name, err)
	}
	step, err := strconv.Atoi(fields[4])
	if err != nil {
		return PacketDesc{}, fmt.Errorf("packet name %q: bad step: %w", name, err)
	}
	return PacketDesc{Src: fields[0], Dst: fields[1], Protocol: fields[2], ID: id, Step: step}, nil
}

// HostName returns the name of host k
func HostName(k int) string {
	return HostPrefix + strconv.Itoa(k)
}

// RouterName returns the name of router k
func RouterName(k int) string {
	return RouterPrefix + strconv.Itoa(k)
}

// Location is the position of the caller, parsed from a dotted
// path "{network}.{node}", e.g. "Net.R2"
type Location struct {
	Network string
	IsHost  bool
	NodeID  int
}

// ParseLocation splits a dotted module path into network and node
func ParseLocation(locPath string) (Location, error) {
	fields := strings.Split(locPath, ".")
	if len(fields) < 2 {
		return Location{}, fmt.Errorf("location %q is not of the form network.node", locPath)
	}
	prefix, id, err := parseNodeName(fields[1])
	if err != nil {
		return Location{}, fmt.Errorf("location %q: %w", locPath, err)
	}
	return Location{Network: fields[0], IsHost: prefix == HostPrefix, NodeID: id}, nil
}

// String renders the dotted path
func (loc Location) String() string {
	if loc.IsHost {
		return loc.Network + "." + HostName(loc.NodeID)
	}
	return loc.Network + "." + RouterName(loc.NodeID)
}

func parseNodeName(name string) (string, int, error) {
	if len(name) < 2 {
		return "", 0, fmt.Errorf("node name %q too short", name)
	}
	prefix := name[:1]
	if prefix != HostPrefix && prefix != RouterPrefix {
		return "", 0, fmt.Errorf("node name %q is neither host nor router", name)
	}
	id, err := strconv.Atoi(name[1:])
	if err != nil || id < 0 {
		return "", 0, fmt.Errorf("node name %q has no node id", name)
	}
	return prefix, id, nil
}
