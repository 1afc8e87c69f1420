// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"github.com/onosproject/onos-lib-go/pkg/errors"
)

// Setup holds the nodes, switches and links of a testbed topology. Entities are only ever appended;
// uniqueness is the responsibility of the caller and is checked again by Validate.
type Setup struct {
	Nodes    []*Node
	Switches []*Switch
	Links    []Link
}

// NewSetup creates a new empty setup
func NewSetup() *Setup {
	return &Setup{}
}

// AddNode appends the node
func (s *Setup) AddNode(node *Node) {
	s.Nodes = append(s.Nodes, node)
}

// AddSwitch appends the switch
func (s *Setup) AddSwitch(sw *Switch) {
	s.Switches = append(s.Switches, sw)
}

// AddLink appends the link
func (s *Setup) AddLink(link Link) {
	s.Links = append(s.Links, link)
}

// UpdateSwitchTable records a reference to the table entry file on the named switch
func (s *Setup) UpdateSwitchTable(switchName string, fileName string) error {
	sw := s.Switch(switchName)
	if sw == nil {
		return errors.NewNotFound("Switch %s not found", switchName)
	}
	sw.UpdateTable(fileName)
	return nil
}

// Node returns the node with the given name; nil if there is none
func (s *Setup) Node(name string) *Node {
	for _, n := range s.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// NodeByID returns the node with the given ID; nil if there is none
func (s *Setup) NodeByID(id int) *Node {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Switch returns the switch with the given name; nil if there is none
func (s *Setup) Switch(name string) *Switch {
	for _, sw := range s.Switches {
		if sw.Name == name {
			return sw
		}
	}
	return nil
}

// Device returns the node or switch with the given name
func (s *Setup) Device(name string) (Device, bool) {
	if n := s.Node(name); n != nil {
		return Device{Kind: NodeDevice, Node: n}, true
	}
	if sw := s.Switch(name); sw != nil {
		return Device{Kind: SwitchDevice, Switch: sw}, true
	}
	return Device{}, false
}

// NodeIDs returns the IDs of all nodes
func (s *Setup) NodeIDs() []int {
	ids := make([]int, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// ServerPorts returns the server ports of all switches
func (s *Setup) ServerPorts() []int {
	ports := make([]int, 0, len(s.Switches))
	for _, sw := range s.Switches {
		ports = append(ports, sw.ServerPort)
	}
	return ports
}
