// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"os"
	"path/filepath"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/p4bench/pkg/entries"
	"github.com/spf13/viper"
)

// Recipe is a declarative description of a setup, applied to a builder in order:
// switches with their table entries, then nodes, then links
type Recipe struct {
	Switches []SwitchRecipe `mapstructure:"switches" yaml:"switches"`
	Nodes    []NodeRecipe   `mapstructure:"nodes" yaml:"nodes"`
	Links    []LinkRecipe   `mapstructure:"links" yaml:"links"`
}

// SwitchRecipe describes a switch and its table entries
type SwitchRecipe struct {
	Name       string `mapstructure:"name" yaml:"name"`
	P4ProgName string `mapstructure:"p4_prog_name" yaml:"p4_prog_name"`
	P4InfoPath string `mapstructure:"p4_info_path" yaml:"p4_info_path"`
	// 0 or less for a generated port
	ServerPort int `mapstructure:"server_port" yaml:"server_port"`
	// Entries missing a table or action continue from the entry before them
	Entries []EntryRecipe `mapstructure:"entries" yaml:"entries"`
	// Table entry files whose entries are added to the switch
	EntryFiles []string `mapstructure:"entry_files" yaml:"entry_files"`
	// Table entry files referenced by the switch, left for the harness to install
	EntryFileRefs []string `mapstructure:"entry_file_refs" yaml:"entry_file_refs"`
}

// EntryRecipe describes a table entry. Match fields and action parameters are given as lists of
// name/value pairs, since the P4 names they carry contain dots.
type EntryRecipe struct {
	Table    string        `mapstructure:"table" yaml:"table"`
	Action   string        `mapstructure:"action" yaml:"action"`
	Priority int32         `mapstructure:"priority" yaml:"priority"`
	Match    []FieldRecipe `mapstructure:"match" yaml:"match"`
	Params   []FieldRecipe `mapstructure:"params" yaml:"params"`
}

// FieldRecipe is a named match field or action parameter value
type FieldRecipe struct {
	Name  string      `mapstructure:"name" yaml:"name"`
	Value interface{} `mapstructure:"value" yaml:"value"`
}

// NodeRecipe describes a node
type NodeRecipe struct {
	Name string `mapstructure:"name" yaml:"name"`
	// generated if not given
	ID       *int   `mapstructure:"id" yaml:"id"`
	IPv4Addr string `mapstructure:"ipv4_addr" yaml:"ipv4_addr"`
	MACAddr  string `mapstructure:"mac_addr" yaml:"mac_addr"`
	// Allocate a fresh address in the given domain if no address is given
	FreshIP  bool   `mapstructure:"fresh_ip" yaml:"fresh_ip"`
	IPDomain string `mapstructure:"ip_domain" yaml:"ip_domain"`
}

// LinkRecipe describes a link; ports are generated if not given
type LinkRecipe struct {
	Device1     string `mapstructure:"device1" yaml:"device1"`
	Device2     string `mapstructure:"device2" yaml:"device2"`
	Device1Port *int   `mapstructure:"device1_port" yaml:"device1_port"`
	Device2Port *int   `mapstructure:"device2_port" yaml:"device2_port"`
}

// LoadRecipe loads the recipe from the specified YAML or JSON file; - for stdin
func LoadRecipe(path string) (*Recipe, error) {
	log.Infof("Loading setup recipe from %s", path)
	cfg, err := readConfig(path)
	if err != nil {
		return nil, errors.NewInvalid("Unable to read recipe %s: %v", path, err)
	}
	recipe := &Recipe{}
	if err := cfg.Unmarshal(recipe); err != nil {
		return nil, errors.NewInvalid("Unable to parse recipe %s: %v", path, err)
	}
	return recipe, nil
}

// Reads configuration from the specified path (- for stdin) via viper; ready to Unmarshal
func readConfig(path string) (*viper.Viper, error) {
	cfg := viper.New()
	cfg.SetConfigType("yaml")
	if path == "-" {
		if err := cfg.ReadConfig(os.Stdin); err != nil {
			return cfg, err
		}
	} else {
		cfg.SetConfigName(filepath.Base(path))
		cfg.AddConfigPath(filepath.Dir(path))
		if err := cfg.ReadInConfig(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Apply adds everything the recipe describes to the builder, stopping at the first failure
func (b *Builder) Apply(recipe *Recipe) error {
	for _, sr := range recipe.Switches {
		port := sr.ServerPort
		if port <= 0 {
			port = AutoPort
		}
		if _, err := b.AddNewSwitch(sr.Name, sr.P4ProgName, WithP4InfoPath(sr.P4InfoPath), WithServerPort(port)); err != nil {
			return err
		}
		for _, er := range sr.Entries {
			entry := er.tableEntry()
			var err error
			if entry.TableName == "" || entry.ActionName == "" {
				err = b.AddTableEntryFromPrevious(sr.Name, entry)
			} else {
				err = b.AddTableEntryToSwitch(sr.Name, entry)
			}
			if err != nil {
				return err
			}
		}
		for _, f := range sr.EntryFiles {
			if err := b.AddTableEntryFileToSwitch(sr.Name, f); err != nil {
				return err
			}
		}
		for _, f := range sr.EntryFileRefs {
			if err := b.AddTableEntryFile(sr.Name, f); err != nil {
				return err
			}
		}
	}

	for _, nr := range recipe.Nodes {
		opts := []NodeOption{WithIPv4(nr.IPv4Addr), WithMAC(nr.MACAddr)}
		if nr.ID != nil {
			opts = append(opts, WithNodeID(*nr.ID))
		}
		if nr.FreshIP || nr.IPDomain != "" {
			opts = append(opts, WithFreshIPv4(nr.IPDomain))
		}
		if _, err := b.AddNewNode(nr.Name, opts...); err != nil {
			return err
		}
	}

	for _, lr := range recipe.Links {
		if _, err := b.AddNewLink(lr.Device1, lr.Device2, portOrAuto(lr.Device1Port), portOrAuto(lr.Device2Port)); err != nil {
			return err
		}
	}
	log.Infof("Applied recipe with %d switches, %d nodes and %d links",
		len(recipe.Switches), len(recipe.Nodes), len(recipe.Links))
	return nil
}

func (er EntryRecipe) tableEntry() entries.TableEntry {
	return entries.TableEntry{
		TableName:    er.Table,
		ActionName:   er.Action,
		Priority:     er.Priority,
		MatchFields:  fieldMap(er.Match),
		ActionParams: fieldMap(er.Params),
	}
}

func fieldMap(fields []FieldRecipe) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return m
}

func portOrAuto(port *int) int {
	if port == nil {
		return AutoPort
	}
	return *port
}
