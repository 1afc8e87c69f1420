// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package p4info

import (
	"fmt"

	p4configv1 "github.com/p4lang/p4runtime/go/p4/config/v1"
)

// MatchType is the kind of match performed on a table match field
type MatchType int32

// Match type codes, as assigned by the P4Info descriptor
const (
	Unspecified = MatchType(p4configv1.MatchField_UNSPECIFIED)
	Exact       = MatchType(p4configv1.MatchField_EXACT)
	LPM         = MatchType(p4configv1.MatchField_LPM)
	Ternary     = MatchType(p4configv1.MatchField_TERNARY)
	Range       = MatchType(p4configv1.MatchField_RANGE)
	Optional    = MatchType(p4configv1.MatchField_OPTIONAL)
)

func (m MatchType) String() string {
	switch m {
	case Exact:
		return "exact"
	case LPM:
		return "lpm"
	case Ternary:
		return "ternary"
	case Range:
		return "range"
	case Optional:
		return "optional"
	}
	return fmt.Sprintf("match_type(%d)", int32(m))
}

// Table is a description of a P4 table
type Table struct {
	ID          uint32
	Name        string
	Alias       string
	MatchFields []*MatchField
	ActionRefs  []uint32
	Size        int64
}

// MatchField is a description of a single table match field
type MatchField struct {
	ID        uint32
	Name      string
	Bitwidth  int32
	MatchType MatchType
}

// Action is a description of a P4 action
type Action struct {
	ID     uint32
	Name   string
	Alias  string
	Params []*ActionParam
}

// ActionParam is a description of a single action parameter
type ActionParam struct {
	ID       uint32
	Name     string
	Bitwidth int32
}

// MatchField returns the match field with the given name; nil if the table has no such field
func (t *Table) MatchField(name string) *MatchField {
	for _, mf := range t.MatchFields {
		if mf.Name == name {
			return mf
		}
	}
	return nil
}

// HasActionRef returns true if the table references the action with the given ID
func (t *Table) HasActionRef(id uint32) bool {
	for _, ref := range t.ActionRefs {
		if ref == id {
			return true
		}
	}
	return false
}

// Param returns the parameter with the given name; nil if the action has no such parameter
func (a *Action) Param(name string) *ActionParam {
	for _, p := range a.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Info holds the table and action definitions of a single P4 program
type Info struct {
	info    *p4configv1.P4Info
	tables  []*Table
	actions []*Action
}

// NewInfo creates program definitions from explicitly given tables and actions
func NewInfo(tables []*Table, actions []*Action) *Info {
	return &Info{info: &p4configv1.P4Info{}, tables: tables, actions: actions}
}

// P4Info returns the underlying P4Info descriptor
func (i *Info) P4Info() *p4configv1.P4Info {
	return i.info
}

// ListTables returns all table definitions
func (i *Info) ListTables() []*Table {
	return i.tables
}

// ListActions returns all action definitions
func (i *Info) ListActions() []*Action {
	return i.actions
}

// Table returns the table whose name or alias matches the given name
func (i *Info) Table(name string) *Table {
	for _, t := range i.tables {
		if t.Name == name || (t.Alias != "" && t.Alias == name) {
			return t
		}
	}
	return nil
}

// Action returns the action whose name or alias matches the given name
func (i *Info) Action(name string) *Action {
	for _, a := range i.actions {
		if a.Name == name || (a.Alias != "" && a.Alias == name) {
			return a
		}
	}
	return nil
}

// ActionByID returns the action with the given ID
func (i *Info) ActionByID(id uint32) *Action {
	for _, a := range i.actions {
		if a.ID == id {
			return a
		}
	}
	return nil
}
