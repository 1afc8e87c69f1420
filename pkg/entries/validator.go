// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package entries

import (
	"sort"
	"strings"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/p4bench/pkg/p4info"
)

// Schema provides the table and action definitions of a P4 program
type Schema interface {
	ListTables() []*p4info.Table
	ListActions() []*p4info.Action
}

// Validator checks table entries against the tables and actions of a P4 program
type Validator struct {
	schema Schema
}

// NewValidator creates a validator for the given program schema
func NewValidator(schema Schema) *Validator {
	return &Validator{schema: schema}
}

// Validate checks the given entries in order and stops at the first invalid one, returning its error.
// Only the first offending entry is reported; fix it and validate again to find any further ones.
func (v *Validator) Validate(entries []TableEntry) error {
	for i, entry := range entries {
		if err := v.ValidateEntry(entry); err != nil {
			log.Warnf("Table entry %d is invalid: %+v", i, entry)
			return err
		}
	}
	return nil
}

// ValidateEntry checks the table, match fields, action and action parameters of a single entry
func (v *Validator) ValidateEntry(entry TableEntry) error {
	if entry.TableName == "" {
		return errors.NewInvalid("Table entry has no table_name")
	}
	table := v.table(entry.TableName)
	if table == nil {
		return errors.NewNotFound("Table %s not found; known tables: %s", entry.TableName, tableNames(v.schema.ListTables()))
	}

	if err := v.validateMatchFields(table, entry.MatchFields); err != nil {
		return err
	}

	if entry.ActionName == "" {
		return errors.NewInvalid("Table entry for %s has no action_name", table.Name)
	}
	action := v.action(entry.ActionName)
	if action == nil {
		return errors.NewNotFound("Action %s not found; available actions for table %s: %s",
			entry.ActionName, table.Name, actionNames(v.tableActions(table)))
	}
	if len(table.ActionRefs) > 0 && !table.HasActionRef(action.ID) {
		return errors.NewInvalid("Action %s cannot be used with table %s; available actions: %s",
			action.Name, table.Name, actionNames(v.tableActions(table)))
	}
	return validateActionParams(action, entry.ActionParams)
}

func (v *Validator) validateMatchFields(table *p4info.Table, fields map[string]interface{}) error {
	if len(table.MatchFields) == 0 {
		if len(fields) > 0 {
			return errors.NewInvalid("Table %s has no match fields; got %d", table.Name, len(fields))
		}
		return nil
	}
	if len(fields) == 0 {
		return errors.NewInvalid("Table entry for %s has no match_fields; expected: %s",
			table.Name, matchFieldNames(table.MatchFields))
	}

	for _, name := range sortedKeys(fields) {
		if table.MatchField(name) == nil {
			return errors.NewInvalid("Match field %s is not a field of table %s; expected: %s",
				name, table.Name, matchFieldNames(table.MatchFields))
		}
	}

	for _, mf := range table.MatchFields {
		value, ok := fields[mf.Name]
		if !ok {
			continue
		}
		if mf.MatchType == p4info.LPM {
			if err := validateLPM(mf, value); err != nil {
				return err
			}
		}
		// Exact, ternary and the remaining match kinds are not shape-checked here
	}
	return nil
}

func validateLPM(mf *p4info.MatchField, value interface{}) error {
	pair, ok := Sequence(value)
	if !ok || len(pair) != 2 {
		return errors.NewInvalid("LPM match on %s requires [value, prefix-length]; got %v", mf.Name, value)
	}
	prefixLen, ok := IntValue(pair[1])
	if !ok {
		return errors.NewInvalid("LPM prefix length of %s must be an integer; got %v", mf.Name, pair[1])
	}
	if prefixLen < 0 || (mf.Bitwidth > 0 && prefixLen > int64(mf.Bitwidth)) {
		return errors.NewInvalid("LPM prefix length %d of %s is out of range [0, %d]", prefixLen, mf.Name, mf.Bitwidth)
	}
	return nil
}

func validateActionParams(action *p4info.Action, params map[string]interface{}) error {
	if len(action.Params) == 0 {
		if len(params) > 0 {
			return errors.NewInvalid("Action %s takes no parameters; got %d", action.Name, len(params))
		}
		return nil
	}
	if len(params) == 0 {
		return errors.NewInvalid("Action %s requires parameters: %s", action.Name, paramNames(action.Params))
	}

	for _, name := range sortedKeys(params) {
		if action.Param(name) == nil {
			return errors.NewInvalid("Parameter %s is not a parameter of action %s; expected: %s",
				name, action.Name, paramNames(action.Params))
		}
	}

	for _, p := range action.Params {
		value, ok := params[p.Name]
		if !ok {
			return errors.NewInvalid("Action %s is missing parameter %s", action.Name, p.Name)
		}
		if p.Bitwidth > 0 {
			if _, err := EncodeValue(value, p.Bitwidth); err != nil {
				return errors.NewInvalid("Parameter %s of action %s: %s", p.Name, action.Name, err.Error())
			}
		}
	}
	return nil
}

func (v *Validator) table(name string) *p4info.Table {
	for _, t := range v.schema.ListTables() {
		if t.Name == name || (t.Alias != "" && t.Alias == name) {
			return t
		}
	}
	return nil
}

func (v *Validator) action(name string) *p4info.Action {
	for _, a := range v.schema.ListActions() {
		if a.Name == name || (a.Alias != "" && a.Alias == name) {
			return a
		}
	}
	return nil
}

// Returns the actions referenced by the table; all actions if the table lists none
func (v *Validator) tableActions(table *p4info.Table) []*p4info.Action {
	if len(table.ActionRefs) == 0 {
		return v.schema.ListActions()
	}
	actions := make([]*p4info.Action, 0, len(table.ActionRefs))
	for _, a := range v.schema.ListActions() {
		if table.HasActionRef(a.ID) {
			actions = append(actions, a)
		}
	}
	return actions
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func tableNames(tables []*p4info.Table) string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}

func actionNames(actions []*p4info.Action) string {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func matchFieldNames(fields []*p4info.MatchField) string {
	names := make([]string, 0, len(fields))
	for _, mf := range fields {
		names = append(names, mf.Name)
	}
	return strings.Join(names, ", ")
}

func paramNames(params []*p4info.ActionParam) string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}
