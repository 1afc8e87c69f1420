// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"github.com/onosproject/p4bench/pkg/entries"
)

// Document is the persisted form of a setup, as consumed by the test framework.
// Struct fields are declared in key order so that encoded output has sorted keys.
type Document struct {
	Links    []Link                `json:"links" yaml:"links"`
	Nodes    map[string]NodeInfo   `json:"nodes" yaml:"nodes"`
	Switches map[string]SwitchInfo `json:"switches" yaml:"switches"`
}

// NodeInfo is the persisted form of a node
type NodeInfo struct {
	ID        int    `json:"id" yaml:"id"`
	IPv4Addr  string `json:"ipv4_addr" yaml:"ipv4_addr"`
	MACAddr   string `json:"mac_addr,omitempty" yaml:"mac_addr,omitempty"`
	UsedPorts []int  `json:"used_ports" yaml:"used_ports"`
}

// SwitchInfo is the persisted form of a switch
type SwitchInfo struct {
	P4InfoPath      string               `json:"p4_info_path" yaml:"p4_info_path"`
	P4ProgName      string               `json:"p4_prog_name" yaml:"p4_prog_name"`
	ServerPort      int                  `json:"server_port" yaml:"server_port"`
	TableEntries    []entries.TableEntry `json:"table_entries" yaml:"table_entries"`
	TableEntryFiles []string             `json:"table_entry_files,omitempty" yaml:"table_entry_files,omitempty"`
	UsedPorts       []int                `json:"used_ports" yaml:"used_ports"`
}

// Document produces the persisted form of the setup; the setup itself is left untouched
func (s *Setup) Document() *Document {
	doc := &Document{
		Links:    make([]Link, 0, len(s.Links)),
		Nodes:    make(map[string]NodeInfo, len(s.Nodes)),
		Switches: make(map[string]SwitchInfo, len(s.Switches)),
	}
	for _, n := range s.Nodes {
		doc.Nodes[n.Name] = NodeInfo{
			ID:        n.ID,
			IPv4Addr:  n.IPv4Addr,
			MACAddr:   n.MACAddr,
			UsedPorts: copyPorts(n.UsedPorts),
		}
	}
	for _, sw := range s.Switches {
		tableEntries := make([]entries.TableEntry, 0, len(sw.TableEntries))
		for _, e := range sw.TableEntries {
			tableEntries = append(tableEntries, e.Copy())
		}
		var files []string
		if len(sw.TableEntryFiles) > 0 {
			files = append(files, sw.TableEntryFiles...)
		}
		doc.Switches[sw.Name] = SwitchInfo{
			P4InfoPath:      sw.P4InfoPath,
			P4ProgName:      sw.P4ProgName,
			ServerPort:      sw.ServerPort,
			TableEntries:    tableEntries,
			TableEntryFiles: files,
			UsedPorts:       copyPorts(sw.UsedPorts),
		}
	}
	doc.Links = append(doc.Links, s.Links...)
	return doc
}

func copyPorts(ports Ports) []int {
	c := make([]int, 0, len(ports))
	return append(c, ports...)
}
