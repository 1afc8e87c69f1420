// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"
)

// dotDevice is a DOT-aware node or switch.
type dotDevice struct {
	graph.Node
	name  string
	attrs []encoding.Attribute
}

func (d *dotDevice) DOTID() string { return strconv.Quote(d.name) }

func (d *dotDevice) Attributes() []encoding.Attribute { return d.attrs }

// dotLink is a DOT-aware link, labelled with its ports.
type dotLink struct {
	multi.Line
	attrs []encoding.Attribute
}

func (l *dotLink) Attributes() []encoding.Attribute { return l.attrs }

// MarshalDOT renders the setup as an undirected DOT multigraph; nodes are drawn as boxes, switches
// as ellipses labelled with their P4 program, and links carry their port numbers as end labels.
func MarshalDOT(s *Setup) ([]byte, error) {
	g := multi.NewUndirectedGraph()
	devices := make(map[string]*dotDevice, len(s.Nodes)+len(s.Switches))

	for _, n := range s.Nodes {
		label := n.Name
		if n.IPv4Addr != "" {
			label = n.Name + "\n" + n.IPv4Addr
		}
		d := &dotDevice{Node: g.NewNode(), name: n.Name, attrs: []encoding.Attribute{
			{Key: "shape", Value: "box"},
			{Key: "label", Value: fmt.Sprintf("%q", label)},
		}}
		g.AddNode(d)
		devices[n.Name] = d
	}
	for _, sw := range s.Switches {
		label := sw.Name
		if sw.P4ProgName != "" {
			label = sw.Name + "\n" + sw.P4ProgName
		}
		d := &dotDevice{Node: g.NewNode(), name: sw.Name, attrs: []encoding.Attribute{
			{Key: "shape", Value: "ellipse"},
			{Key: "label", Value: fmt.Sprintf("%q", label)},
		}}
		g.AddNode(d)
		devices[sw.Name] = d
	}

	for _, l := range s.Links {
		from, ok1 := devices[l.Device1]
		to, ok2 := devices[l.Device2]
		if !ok1 || !ok2 {
			log.Warnf("Not rendering link between unknown devices %s and %s", l.Device1, l.Device2)
			continue
		}
		line := g.NewLine(from, to).(multi.Line)
		g.SetLine(&dotLink{Line: line, attrs: []encoding.Attribute{
			{Key: "taillabel", Value: strconv.Quote(strconv.Itoa(l.Device1Port))},
			{Key: "headlabel", Value: strconv.Quote(strconv.Itoa(l.Device2Port))},
		}})
	}
	return dot.MarshalMulti(g, "setup", "", "\t")
}
