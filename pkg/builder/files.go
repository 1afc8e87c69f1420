// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/p4bench/pkg/entries"
	"github.com/onosproject/p4bench/pkg/topo"
	"gopkg.in/yaml.v3"
)

// SaveSetupToFile writes the setup to the given path; - for stdout. The setup is checked first
// and is not written if it has any problems.
func (b *Builder) SaveSetupToFile(path string) error {
	if b.CheckForErrors() {
		log.Warnf("Not saving setup to %s: %d problems found", path, len(b.problems))
		return errors.NewInvalid("Setup has %d problems; not saved to %s", len(b.problems), path)
	}
	data, err := marshalFile(path, b.setup.Document())
	if err != nil {
		return err
	}
	log.Infof("Saving setup to %s", path)
	return writeFile(path, data)
}

// WriteSetup writes the setup as JSON to the given writer, without checking it
func (b *Builder) WriteSetup(w io.Writer) error {
	data, err := marshalFile("", b.setup.Document())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteDOT writes a DOT rendering of the setup to the given writer
func (b *Builder) WriteDOT(w io.Writer) error {
	data, err := topo.MarshalDOT(b.setup)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ReadBaseFromFile replaces the setup of the builder with the saved one, adding its switches, nodes
// and links in that order. Table entries are not restored; table entry file references are.
// If any of them is rejected, the builder is left as it was.
func (b *Builder) ReadBaseFromFile(path string) error {
	return b.readFromFile(path, false)
}

// ReadFromFile is like ReadBaseFromFile, but restores the switch table entries as well
func (b *Builder) ReadFromFile(path string) error {
	return b.readFromFile(path, true)
}

func (b *Builder) readFromFile(path string, withEntries bool) error {
	doc, err := LoadDocument(path)
	if err != nil {
		log.Warnf("Failed to read %s: %v", path, err)
		return err
	}
	staged := New(WithSchemaCache(b.schemas))
	if err := staged.addDocument(doc, withEntries); err != nil {
		log.Warnf("Failed to read %s: %v", path, err)
		return err
	}
	b.setup = staged.setup
	b.ips = staged.ips
	b.lastEntry = staged.lastEntry
	b.changed()
	log.Infof("Read %d switches, %d nodes and %d links from %s", len(doc.Switches), len(doc.Nodes), len(doc.Links), path)
	return nil
}

func (b *Builder) addDocument(doc *topo.Document, withEntries bool) error {
	for _, name := range switchNames(doc.Switches) {
		info := doc.Switches[name]
		port := info.ServerPort
		if port == 0 {
			port = AutoPort
		}
		if _, err := b.AddNewSwitch(name, info.P4ProgName, WithP4InfoPath(info.P4InfoPath), WithServerPort(port)); err != nil {
			return err
		}
		for _, f := range info.TableEntryFiles {
			if err := b.AddTableEntryFile(name, f); err != nil {
				return err
			}
		}
		if withEntries {
			for _, entry := range info.TableEntries {
				if err := b.AddTableEntryToSwitch(name, entry); err != nil {
					return err
				}
			}
		}
	}

	for _, name := range nodeNames(doc.Nodes) {
		info := doc.Nodes[name]
		if _, err := b.AddNewNode(name, WithNodeID(info.ID), WithIPv4(info.IPv4Addr), WithMAC(info.MACAddr)); err != nil {
			return err
		}
	}

	for _, l := range doc.Links {
		if _, err := b.AddNewLink(l.Device1, l.Device2, l.Device1Port, l.Device2Port); err != nil {
			return err
		}
	}
	return nil
}

// LoadDocument reads a saved setup from the given path; - for stdin
func LoadDocument(path string) (*topo.Document, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	doc := &topo.Document{}
	if err := unmarshalFile(path, data, doc); err != nil {
		return nil, errors.NewInvalid("Unable to parse setup %s: %v", path, err)
	}
	return doc, nil
}

// LoadTableEntries reads a list of table entries from the given path; - for stdin
func LoadTableEntries(path string) ([]entries.TableEntry, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var tableEntries []entries.TableEntry
	if err := unmarshalFile(path, data, &tableEntries); err != nil {
		return nil, errors.NewInvalid("Unable to parse table entries %s: %v", path, err)
	}
	return tableEntries, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Encodes as YAML for .yaml and .yml paths; as JSON with sorted keys and 4 space indent otherwise
func marshalFile(path string, v interface{}) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(v)
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func unmarshalFile(path string, data []byte, v interface{}) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	// numbers are kept as written, so that values beyond 2^53 survive
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("File %s not found", path)
		}
		return nil, err
	}
	return data, nil
}

func writeFile(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func switchNames(m map[string]topo.SwitchInfo) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func nodeNames(m map[string]topo.NodeInfo) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
