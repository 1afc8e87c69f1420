// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package entries contains the table entry description and its validation against P4Info
// table and action definitions.
package entries

import (
	"github.com/onosproject/onos-lib-go/pkg/logging"
)

var log = logging.GetLogger("entries")

// TableEntry is a description of a rule binding a match on a table to an action and its parameters.
// Match values are keyed by match field name; LPM values are [value, prefix-length] pairs, ternary
// values are [value, mask] pairs and range values are [low, high] pairs.
// Fields are declared in serialized key order.
type TableEntry struct {
	ActionName   string                 `json:"action_name" yaml:"action_name" mapstructure:"action_name"`
	ActionParams map[string]interface{} `json:"action_params" yaml:"action_params" mapstructure:"action_params"`
	MatchFields  map[string]interface{} `json:"match_fields" yaml:"match_fields" mapstructure:"match_fields"`
	Priority     int32                  `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
	TableName    string                 `json:"table_name" yaml:"table_name" mapstructure:"table_name"`
}

// Copy returns a copy of the entry with its own match field and action parameter maps; missing
// maps are replaced by empty ones
func (e TableEntry) Copy() TableEntry {
	c := e
	c.MatchFields = copyMap(e.MatchFields)
	c.ActionParams = copyMap(e.ActionParams)
	return c
}

// Merge produces a new entry from the previous one, overriding it with whatever is given in the
// partial entry. Empty names reuse the previous names; given match fields and action parameters
// are merged over the previous ones, key by key.
func Merge(previous TableEntry, partial TableEntry) TableEntry {
	entry := previous.Copy()
	if partial.TableName != "" {
		entry.TableName = partial.TableName
	}
	if partial.ActionName != "" {
		entry.ActionName = partial.ActionName
	}
	if partial.Priority != 0 {
		entry.Priority = partial.Priority
	}
	entry.MatchFields = mergeMap(entry.MatchFields, partial.MatchFields)
	entry.ActionParams = mergeMap(entry.ActionParams, partial.ActionParams)
	return entry
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func mergeMap(base map[string]interface{}, overrides map[string]interface{}) map[string]interface{} {
	if len(overrides) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]interface{}, len(overrides))
	}
	for k, v := range overrides {
		base[k] = v
	}
	return base
}
