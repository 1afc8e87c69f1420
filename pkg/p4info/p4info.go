// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package p4info loads P4Info descriptors and exposes the table, action and match-field
// definitions needed to check table entries
package p4info

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/onos-lib-go/pkg/logging"
	p4configv1 "github.com/p4lang/p4runtime/go/p4/config/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

var log = logging.GetLogger("p4info")

// LoadP4Info loads the specified file containing a P4Info descriptor; the encoding is chosen from
// the file extension: .json for protoJSON, .bin or .pb for binary protobuf, text format otherwise
func LoadP4Info(path string) (*p4configv1.P4Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("P4Info file %s not found", path)
		}
		return nil, err
	}

	info := &p4configv1.P4Info{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = protojson.Unmarshal(data, info)
	case ".bin", ".pb":
		err = proto.Unmarshal(data, info)
	default:
		err = prototext.Unmarshal(data, info)
	}
	if err != nil {
		return nil, errors.NewInvalid("Unable to parse P4Info file %s: %v", path, err)
	}
	return info, nil
}

// Load loads the specified P4Info file and returns its table and action definitions
func Load(path string) (*Info, error) {
	log.Infof("Loading P4Info from %s", path)
	pi, err := LoadP4Info(path)
	if err != nil {
		return nil, err
	}
	return FromP4Info(pi), nil
}

// FromP4Info creates table and action definitions from the given P4Info descriptor
func FromP4Info(pi *p4configv1.P4Info) *Info {
	info := &Info{
		info:    pi,
		tables:  make([]*Table, 0, len(pi.GetTables())),
		actions: make([]*Action, 0, len(pi.GetActions())),
	}
	for _, t := range pi.GetTables() {
		info.tables = append(info.tables, newTable(t))
	}
	for _, a := range pi.GetActions() {
		info.actions = append(info.actions, newAction(a))
	}
	log.Debugf("Tables: %d; actions: %d", len(info.tables), len(info.actions))
	return info
}

func newTable(t *p4configv1.Table) *Table {
	table := &Table{
		ID:          t.GetPreamble().GetId(),
		Name:        t.GetPreamble().GetName(),
		Alias:       t.GetPreamble().GetAlias(),
		MatchFields: make([]*MatchField, 0, len(t.GetMatchFields())),
		ActionRefs:  make([]uint32, 0, len(t.GetActionRefs())),
		Size:        t.GetSize(),
	}
	for _, mf := range t.GetMatchFields() {
		table.MatchFields = append(table.MatchFields, &MatchField{
			ID:        mf.GetId(),
			Name:      mf.GetName(),
			Bitwidth:  mf.GetBitwidth(),
			MatchType: MatchType(mf.GetMatchType()),
		})
	}
	for _, ar := range t.GetActionRefs() {
		table.ActionRefs = append(table.ActionRefs, ar.GetId())
	}
	return table
}

func newAction(a *p4configv1.Action) *Action {
	action := &Action{
		ID:     a.GetPreamble().GetId(),
		Name:   a.GetPreamble().GetName(),
		Alias:  a.GetPreamble().GetAlias(),
		Params: make([]*ActionParam, 0, len(a.GetParams())),
	}
	for _, p := range a.GetParams() {
		action.Params = append(action.Params, &ActionParam{
			ID:       p.GetId(),
			Name:     p.GetName(),
			Bitwidth: p.GetBitwidth(),
		})
	}
	return action
}
