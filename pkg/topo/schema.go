// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package topo contains the description of a P4 testbed topology: its nodes, switches and the links
// between them, together with the per-switch table entries.
package topo

import (
	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/p4bench/pkg/entries"
)

var log = logging.GetLogger("topo")

// ConnType is the kind of devices connected by a link
type ConnType string

const (
	// NodeToNode connects two nodes
	NodeToNode ConnType = "Node_to_Node"
	// NodeToSwitch connects a node (device1) to a switch (device2)
	NodeToSwitch ConnType = "Node_to_Switch"
	// SwitchToSwitch connects two switches
	SwitchToSwitch ConnType = "Switch_to_Switch"
)

// IsValid returns true if the connection type is one of the known kinds
func (c ConnType) IsValid() bool {
	return c == NodeToNode || c == NodeToSwitch || c == SwitchToSwitch
}

// Ports is a set of used port numbers, kept in the order they were taken
type Ports []int

// Has returns true if the port is already used
func (p Ports) Has(port int) bool {
	for _, used := range p {
		if used == port {
			return true
		}
	}
	return false
}

// Add marks the port as used; returns false if it was used already
func (p *Ports) Add(port int) bool {
	if p.Has(port) {
		return false
	}
	*p = append(*p, port)
	return true
}

// Generate takes and returns the lowest unused port
func (p *Ports) Generate() int {
	port := FirstFree(*p, 0)
	*p = append(*p, port)
	return port
}

// FirstFree returns the lowest integer not less than start which is not present in used
func FirstFree(used []int, start int) int {
	taken := make(map[int]bool, len(used))
	for _, u := range used {
		taken[u] = true
	}
	n := start
	for taken[n] {
		n++
	}
	return n
}

// Node is a description of an end host
type Node struct {
	Name      string
	ID        int
	IPv4Addr  string
	MACAddr   string
	UsedPorts Ports
}

// NewNode creates a new node with the given name and ID
func NewNode(name string, id int) *Node {
	return &Node{Name: name, ID: id}
}

// Switch is a description of a P4 switch and the table entries to be installed on it
type Switch struct {
	Name            string
	P4ProgName      string
	P4InfoPath      string
	ServerPort      int
	UsedPorts       Ports
	TableEntries    []entries.TableEntry
	TableEntryFiles []string
}

// NewSwitch creates a new switch running the given P4 program
func NewSwitch(name string, p4ProgName string, p4InfoPath string, serverPort int) *Switch {
	return &Switch{
		Name:       name,
		P4ProgName: p4ProgName,
		P4InfoPath: p4InfoPath,
		ServerPort: serverPort,
	}
}

// AddTableEntry appends the entry to the switch table entries; no duplicate check is made
func (s *Switch) AddTableEntry(entry entries.TableEntry) {
	s.TableEntries = append(s.TableEntries, entry)
}

// UpdateTable records a reference to the given table entry file, unless already recorded
func (s *Switch) UpdateTable(fileName string) bool {
	for _, f := range s.TableEntryFiles {
		if f == fileName {
			return false
		}
	}
	s.TableEntryFiles = append(s.TableEntryFiles, fileName)
	return true
}

// Link is a description of a connection between two devices, referenced by name.
// Fields are declared in serialized key order.
type Link struct {
	Device1     string   `json:"device1" yaml:"device1"`
	Device1Port int      `json:"device1_port" yaml:"device1_port"`
	Device2     string   `json:"device2" yaml:"device2"`
	Device2Port int      `json:"device2_port" yaml:"device2_port"`
	ConnType    ConnType `json:"type" yaml:"type"`
}

// IsValid returns true if both devices are named, both ports are set and the connection type is known
func (l Link) IsValid() bool {
	return l.Device1 != "" && l.Device2 != "" &&
		l.Device1Port >= 0 && l.Device2Port >= 0 &&
		l.ConnType.IsValid()
}

// DeviceKind distinguishes nodes from switches
type DeviceKind int

const (
	// NodeDevice is an end host
	NodeDevice DeviceKind = iota + 1
	// SwitchDevice is a P4 switch
	SwitchDevice
)

// Device is either a node or a switch, as indicated by its kind
type Device struct {
	Kind   DeviceKind
	Node   *Node
	Switch *Switch
}

// Name returns the name of the node or switch
func (d Device) Name() string {
	if d.Kind == SwitchDevice {
		return d.Switch.Name
	}
	return d.Node.Name
}

// Ports returns the used ports of the node or switch
func (d Device) Ports() *Ports {
	if d.Kind == SwitchDevice {
		return &d.Switch.UsedPorts
	}
	return &d.Node.UsedPorts
}

// LinkType returns the connection type of a link between devices of the given kinds
func LinkType(kind1 DeviceKind, kind2 DeviceKind) ConnType {
	switch {
	case kind1 == NodeDevice && kind2 == NodeDevice:
		return NodeToNode
	case kind1 == SwitchDevice && kind2 == SwitchDevice:
		return SwitchToSwitch
	}
	return NodeToSwitch
}
