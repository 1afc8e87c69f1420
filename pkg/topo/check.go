// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/p4bench/pkg/entries"
	"github.com/onosproject/p4bench/pkg/p4info"
	"inet.af/netaddr"
)

// SchemaLoader provides the P4 program definitions stored at a given P4Info path
type SchemaLoader interface {
	Load(path string) (*p4info.Info, error)
}

// Validate checks the setup and returns every problem found with its nodes, switches and links.
// Table entries of switches with a P4Info path are checked last, using the given loader; that check
// stops at the first invalid entry across all switches, so at most one table entry problem is
// reported. Table entries are not checked if the loader is nil.
func (s *Setup) Validate(schemas SchemaLoader) []error {
	var problems []error
	problems = append(problems, s.validateNodes()...)
	problems = append(problems, s.validateSwitches()...)
	problems = append(problems, s.validateLinks()...)
	if schemas != nil {
		if err := s.validateTableEntries(schemas); err != nil {
			problems = append(problems, err)
		}
	}
	log.Debugf("Checked %d nodes, %d switches and %d links; %d problems found",
		len(s.Nodes), len(s.Switches), len(s.Links), len(problems))
	return problems
}

func (s *Setup) validateNodes() []error {
	var problems []error
	names := make(map[string]int)
	ids := make(map[int]int)
	for _, n := range s.Nodes {
		names[n.Name]++
		ids[n.ID]++
	}

	reportedNames := make(map[string]bool)
	reportedIDs := make(map[int]bool)
	for _, n := range s.Nodes {
		if names[n.Name] != 1 && !reportedNames[n.Name] {
			reportedNames[n.Name] = true
			problems = append(problems, errors.NewAlreadyExists("Node %s is defined %d times", n.Name, names[n.Name]))
		}
		if ids[n.ID] != 1 && !reportedIDs[n.ID] {
			reportedIDs[n.ID] = true
			problems = append(problems, errors.NewAlreadyExists("Node id %d is used by %d nodes", n.ID, ids[n.ID]))
		}
		if len(n.UsedPorts) == 0 {
			problems = append(problems, errors.NewInvalid("Node %s is not connected to the network", n.Name))
		}
		if n.IPv4Addr != "" {
			if ip, err := netaddr.ParseIP(n.IPv4Addr); err != nil || !ip.Is4() {
				problems = append(problems, errors.NewInvalid("Node %s has invalid IPv4 address %q", n.Name, n.IPv4Addr))
			}
		}
	}
	return problems
}

func (s *Setup) validateSwitches() []error {
	var problems []error
	names := make(map[string]int)
	serverPorts := make(map[int]int)
	for _, sw := range s.Switches {
		names[sw.Name]++
		serverPorts[sw.ServerPort]++
	}

	reportedNames := make(map[string]bool)
	reportedPorts := make(map[int]bool)
	for _, sw := range s.Switches {
		if names[sw.Name] != 1 && !reportedNames[sw.Name] {
			reportedNames[sw.Name] = true
			problems = append(problems, errors.NewAlreadyExists("Switch %s is defined %d times", sw.Name, names[sw.Name]))
		}
		if serverPorts[sw.ServerPort] != 1 && !reportedPorts[sw.ServerPort] {
			reportedPorts[sw.ServerPort] = true
			problems = append(problems, errors.NewAlreadyExists("Server port %d is used by %d switches", sw.ServerPort, serverPorts[sw.ServerPort]))
		}
		if s.Node(sw.Name) != nil && !reportedNames[sw.Name] {
			reportedNames[sw.Name] = true
			problems = append(problems, errors.NewAlreadyExists("Name %s is used by both a node and a switch", sw.Name))
		}
		if len(sw.UsedPorts) == 0 {
			problems = append(problems, errors.NewInvalid("Switch %s is not connected to the network", sw.Name))
		}
	}
	return problems
}

func (s *Setup) validateLinks() []error {
	var problems []error
	for _, l := range s.Links {
		if !l.IsValid() {
			problems = append(problems, errors.NewInvalid("Link between %s and %s is not valid", l.Device1, l.Device2))
			continue
		}
		d1, ok1 := s.Device(l.Device1)
		d2, ok2 := s.Device(l.Device2)
		if !ok1 || !ok2 {
			problems = append(problems, errors.NewNotFound("Link between %s and %s refers to an unknown device", l.Device1, l.Device2))
			continue
		}
		if expected := LinkType(d1.Kind, d2.Kind); expected != l.ConnType || (l.ConnType == NodeToSwitch && d1.Kind != NodeDevice) {
			problems = append(problems, errors.NewInvalid("Link between %s and %s has type %s; expected %s with the node first",
				l.Device1, l.Device2, l.ConnType, expected))
		}
	}
	return problems
}

func (s *Setup) validateTableEntries(schemas SchemaLoader) error {
	for _, sw := range s.Switches {
		if sw.P4InfoPath == "" {
			continue
		}
		info, err := schemas.Load(sw.P4InfoPath)
		if err != nil {
			log.Warnf("Switch %s: unable to load P4Info: %v", sw.Name, err)
			return err
		}
		if err := entries.NewValidator(info).Validate(sw.TableEntries); err != nil {
			log.Warnf("Switch %s has an invalid table entry: %v", sw.Name, err)
			return err
		}
	}
	return nil
}
