// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package builder provides the stateful facade used to describe a testbed setup incrementally:
// devices, links and table entries are added one by one, with IDs, ports and IP addresses generated
// on demand, and the result is checked and saved in the form consumed by the benchmark harness.
package builder

import (
	"net"
	"os"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/p4bench/pkg/entries"
	"github.com/onosproject/p4bench/pkg/p4info"
	"github.com/onosproject/p4bench/pkg/topo"
	"inet.af/netaddr"
)

var log = logging.GetLogger("builder")

const (
	// AutoPort requests a port to be generated for a link endpoint
	AutoPort = -1

	// FirstServerPort is the lowest gRPC server port given to a switch
	FirstServerPort = 50051
)

// Builder accumulates a setup description; it is not safe for concurrent use
type Builder struct {
	setup   *topo.Setup
	schemas *p4info.Cache
	ips     *ipAllocator

	lastEntry   *entries.TableEntry
	fileEntries []entries.TableEntry

	checked  bool
	problems []error
}

// Option configures a builder
type Option func(b *Builder)

// WithSchemaCache shares the given P4Info cache with the builder
func WithSchemaCache(cache *p4info.Cache) Option {
	return func(b *Builder) {
		b.schemas = cache
	}
}

// New creates a builder with an empty setup
func New(opts ...Option) *Builder {
	b := &Builder{
		setup:   topo.NewSetup(),
		schemas: p4info.NewCache(),
		ips:     newIPAllocator(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Setup returns the setup described so far. Changes made through it bypass the builder checks;
// they are only caught by the next CheckForErrors or SaveSetupToFile.
func (b *Builder) Setup() *topo.Setup {
	return b.setup
}

// Schemas returns the P4Info cache used for checking table entries
func (b *Builder) Schemas() *p4info.Cache {
	return b.schemas
}

// marks the previous check result as stale
func (b *Builder) changed() {
	b.checked = false
	b.problems = nil
}

type nodeOptions struct {
	ipv4    string
	mac     string
	id      int
	hasID   bool
	freshIP bool
	domain  string
}

// NodeOption configures a node created by AddNewNode
type NodeOption func(o *nodeOptions)

// WithIPv4 sets the IPv4 address of the node
func WithIPv4(addr string) NodeOption {
	return func(o *nodeOptions) {
		o.ipv4 = addr
	}
}

// WithMAC sets the MAC address of the node
func WithMAC(addr string) NodeOption {
	return func(o *nodeOptions) {
		o.mac = addr
	}
}

// WithNodeID sets the ID of the node instead of generating one
func WithNodeID(id int) NodeOption {
	return func(o *nodeOptions) {
		o.id = id
		o.hasID = true
	}
}

// WithFreshIPv4 gives the node a newly allocated IPv4 address within the given domain,
// e.g. "10.0"; an empty domain continues from the last allocated address.
func WithFreshIPv4(domain string) NodeOption {
	return func(o *nodeOptions) {
		o.freshIP = true
		o.domain = domain
	}
}

// AddNewNode creates a node and adds it to the setup. The node ID is generated unless given.
// The node is rejected if its name or its ID is already used by another node, or its name by a switch.
func (b *Builder) AddNewNode(name string, opts ...NodeOption) (*topo.Node, error) {
	o := &nodeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if name == "" {
		return nil, errors.NewInvalid("Node name must not be empty")
	}
	if !o.hasID {
		o.id = topo.FirstFree(b.setup.NodeIDs(), 0)
	} else if o.id < 0 {
		return nil, errors.NewInvalid("Node %s: invalid id %d", name, o.id)
	}
	if o.mac != "" {
		if _, err := net.ParseMAC(o.mac); err != nil {
			return nil, errors.NewInvalid("Node %s: invalid MAC address %q", name, o.mac)
		}
	}
	if o.ipv4 != "" {
		if ip, err := netaddr.ParseIP(o.ipv4); err != nil || !ip.Is4() {
			return nil, errors.NewInvalid("Node %s: invalid IPv4 address %q", name, o.ipv4)
		}
	}
	if err := b.checkUniqueNode(name, o.id); err != nil {
		return nil, err
	}

	node := topo.NewNode(name, o.id)
	node.MACAddr = o.mac
	node.IPv4Addr = o.ipv4
	if node.IPv4Addr == "" && o.freshIP {
		ip, err := b.ips.allocate(o.domain)
		if err != nil {
			return nil, err
		}
		node.IPv4Addr = ip.String()
	}
	b.insertNode(node)
	return node, nil
}

// AddNodeToSetup adds an already constructed node to the setup, unless its name or ID is taken;
// node and switch names share one name space
func (b *Builder) AddNodeToSetup(node *topo.Node) error {
	if err := b.checkUniqueNode(node.Name, node.ID); err != nil {
		return err
	}
	b.insertNode(node)
	return nil
}

func (b *Builder) checkUniqueNode(name string, id int) error {
	if b.setup.Node(name) != nil {
		log.Warnf("Not adding node %s: name already used", name)
		return errors.NewAlreadyExists("Node %s already exists", name)
	}
	if b.setup.Switch(name) != nil {
		log.Warnf("Not adding node %s: name already used by a switch", name)
		return errors.NewAlreadyExists("Name %s is already used by a switch", name)
	}
	if n := b.setup.NodeByID(id); n != nil {
		log.Warnf("Not adding node %s: id %d already used by node %s", name, id, n.Name)
		return errors.NewAlreadyExists("Node id %d is already used by node %s", id, n.Name)
	}
	return nil
}

func (b *Builder) insertNode(node *topo.Node) {
	if ip, err := netaddr.ParseIP(node.IPv4Addr); err == nil && ip.Is4() {
		b.ips.reserve(ip)
	}
	b.setup.AddNode(node)
	b.changed()
	log.Debugf("Added node %s with id %d", node.Name, node.ID)
}

type switchOptions struct {
	p4InfoPath    string
	serverPort    int
	hasServerPort bool
}

// SwitchOption configures a switch created by AddNewSwitch
type SwitchOption func(o *switchOptions)

// WithP4InfoPath sets the P4Info file describing the switch program; its table entries are
// checked against it.
func WithP4InfoPath(path string) SwitchOption {
	return func(o *switchOptions) {
		o.p4InfoPath = path
	}
}

// WithServerPort sets the gRPC server port of the switch; a negative port is generated
func WithServerPort(port int) SwitchOption {
	return func(o *switchOptions) {
		o.serverPort = port
		o.hasServerPort = port >= 0
	}
}

// AddNewSwitch creates a switch running the given P4 program and adds it to the setup.
// The server port is generated from 50051 upwards unless given. The P4Info file, if any, must exist.
func (b *Builder) AddNewSwitch(name string, p4ProgName string, opts ...SwitchOption) (*topo.Switch, error) {
	o := &switchOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if name == "" {
		return nil, errors.NewInvalid("Switch name must not be empty")
	}
	if o.p4InfoPath != "" {
		if _, err := os.Stat(o.p4InfoPath); err != nil {
			log.Warnf("Not adding switch %s: could not find P4Info file %s", name, o.p4InfoPath)
			return nil, errors.NewNotFound("P4Info file %s not found", o.p4InfoPath)
		}
	}
	if !o.hasServerPort {
		o.serverPort = topo.FirstFree(b.setup.ServerPorts(), FirstServerPort)
	}
	sw := topo.NewSwitch(name, p4ProgName, o.p4InfoPath, o.serverPort)
	if err := b.AddSwitchToSetup(sw); err != nil {
		return nil, err
	}
	return sw, nil
}

// AddSwitchToSetup adds an already constructed switch to the setup, unless its name or
// server port is taken
func (b *Builder) AddSwitchToSetup(sw *topo.Switch) error {
	if b.setup.Switch(sw.Name) != nil {
		log.Warnf("Not adding switch %s: name already used", sw.Name)
		return errors.NewAlreadyExists("Switch %s already exists", sw.Name)
	}
	if b.setup.Node(sw.Name) != nil {
		log.Warnf("Not adding switch %s: name already used by a node", sw.Name)
		return errors.NewAlreadyExists("Name %s is already used by a node", sw.Name)
	}
	for _, s := range b.setup.Switches {
		if s.ServerPort == sw.ServerPort {
			log.Warnf("Not adding switch %s: server port %d already used by switch %s", sw.Name, sw.ServerPort, s.Name)
			return errors.NewAlreadyExists("Server port %d is already used by switch %s", sw.ServerPort, s.Name)
		}
	}
	b.setup.AddSwitch(sw)
	b.changed()
	log.Debugf("Added switch %s running %s on server port %d", sw.Name, sw.P4ProgName, sw.ServerPort)
	return nil
}

// UpdateSwitchP4Info changes the P4 program and P4Info file of the named switch
func (b *Builder) UpdateSwitchP4Info(switchName string, p4ProgName string, p4InfoPath string) error {
	sw := b.setup.Switch(switchName)
	if sw == nil {
		return errors.NewNotFound("Switch %s not found", switchName)
	}
	if p4InfoPath != "" {
		if _, err := os.Stat(p4InfoPath); err != nil {
			return errors.NewNotFound("P4Info file %s not found", p4InfoPath)
		}
	}
	sw.P4ProgName = p4ProgName
	sw.P4InfoPath = p4InfoPath
	b.changed()
	return nil
}

// AddNewLink connects the two named devices, each of which may be a node or a switch. Ports given
// as AutoPort are generated; requested ports must not be in use on their device.
func (b *Builder) AddNewLink(device1 string, device2 string, port1 int, port2 int) (topo.Link, error) {
	dev1, ok := b.setup.Device(device1)
	if !ok {
		log.Warnf("Failed to add link between %s and %s: device %s not found", device1, device2, device1)
		return topo.Link{}, errors.NewNotFound("Device %s not found", device1)
	}
	dev2, ok := b.setup.Device(device2)
	if !ok {
		log.Warnf("Failed to add link between %s and %s: device %s not found", device1, device2, device2)
		return topo.Link{}, errors.NewNotFound("Device %s not found", device2)
	}
	if device1 == device2 {
		return topo.Link{}, errors.NewInvalid("Device %s cannot be linked to itself", device1)
	}
	if port1 >= 0 && dev1.Ports().Has(port1) {
		log.Warnf("Failed to add link between %s and %s: port %d already used on %s", device1, device2, port1, device1)
		return topo.Link{}, errors.NewConflict("Port %d is already used on %s", port1, device1)
	}
	if port2 >= 0 && dev2.Ports().Has(port2) {
		log.Warnf("Failed to add link between %s and %s: port %d already used on %s", device1, device2, port2, device2)
		return topo.Link{}, errors.NewConflict("Port %d is already used on %s", port2, device2)
	}

	var link topo.Link
	switch {
	case dev1.Kind == topo.NodeDevice && dev2.Kind == topo.NodeDevice:
		link = b.linkNodeToNode(dev1.Node, dev2.Node, port1, port2)
	case dev1.Kind == topo.NodeDevice && dev2.Kind == topo.SwitchDevice:
		link = b.linkNodeToSwitch(dev1.Node, dev2.Switch, port1, port2)
	case dev1.Kind == topo.SwitchDevice && dev2.Kind == topo.NodeDevice:
		link = b.linkNodeToSwitch(dev2.Node, dev1.Switch, port2, port1)
	default:
		link = b.linkSwitchToSwitch(dev1.Switch, dev2.Switch, port1, port2)
	}
	b.changed()
	log.Debugf("Added %s link %s:%d - %s:%d", link.ConnType, link.Device1, link.Device1Port, link.Device2, link.Device2Port)
	return link, nil
}

func (b *Builder) linkNodeToNode(node1 *topo.Node, node2 *topo.Node, port1 int, port2 int) topo.Link {
	link := topo.Link{
		Device1:     node1.Name,
		Device1Port: takePort(&node1.UsedPorts, port1),
		Device2:     node2.Name,
		Device2Port: takePort(&node2.UsedPorts, port2),
		ConnType:    topo.NodeToNode,
	}
	b.setup.AddLink(link)
	return link
}

func (b *Builder) linkNodeToSwitch(node *topo.Node, sw *topo.Switch, nodePort int, switchPort int) topo.Link {
	link := topo.Link{
		Device1:     node.Name,
		Device1Port: takePort(&node.UsedPorts, nodePort),
		Device2:     sw.Name,
		Device2Port: takePort(&sw.UsedPorts, switchPort),
		ConnType:    topo.NodeToSwitch,
	}
	b.setup.AddLink(link)
	return link
}

func (b *Builder) linkSwitchToSwitch(sw1 *topo.Switch, sw2 *topo.Switch, port1 int, port2 int) topo.Link {
	link := topo.Link{
		Device1:     sw1.Name,
		Device1Port: takePort(&sw1.UsedPorts, port1),
		Device2:     sw2.Name,
		Device2Port: takePort(&sw2.UsedPorts, port2),
		ConnType:    topo.SwitchToSwitch,
	}
	b.setup.AddLink(link)
	return link
}

// marks the requested port as used, or generates one if none is requested
func takePort(ports *topo.Ports, port int) int {
	if port < 0 {
		return ports.Generate()
	}
	ports.Add(port)
	return port
}

// GenerateFreshIP allocates an IPv4 address not issued before by this builder. The domain holds
// up to four leading octets, e.g. "10.0"; missing octets start at 1. Without a domain, allocation
// continues from the last issued address, or from 172.168.1.1.
func (b *Builder) GenerateFreshIP(domain string) (netaddr.IP, error) {
	return b.ips.allocate(domain)
}

// Problems returns all problems found in the setup; see topo.Setup.Validate
func (b *Builder) Problems() []error {
	if !b.checked {
		b.problems = b.setup.Validate(b.schemas)
		b.checked = true
	}
	return b.problems
}

// CheckForErrors checks the setup, logging every problem found; returns true if the setup has errors
func (b *Builder) CheckForErrors() bool {
	log.Infof("Checking setup with %d nodes, %d switches and %d links",
		len(b.setup.Nodes), len(b.setup.Switches), len(b.setup.Links))
	b.checked = false
	problems := b.Problems()
	for _, p := range problems {
		log.Warnf("%v", p)
	}
	if len(problems) > 0 {
		log.Warnf("Setup has %d problems", len(problems))
		return true
	}
	log.Infof("No problems found")
	return false
}
