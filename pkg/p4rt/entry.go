// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package p4rt translates table entries into P4Runtime messages and installs them on switches
package p4rt

import (
	"math/big"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/p4bench/pkg/entries"
	"github.com/onosproject/p4bench/pkg/p4info"
	p4api "github.com/p4lang/p4runtime/go/p4/v1"
)

var log = logging.GetLogger("p4rt")

// BuildTableEntry translates the table entry into its P4Runtime form using the IDs and bitwidths
// of the given P4 program. Match values are expected in the following shapes: exact and optional
// take a single value, LPM takes [value, prefix-length], ternary takes [value, mask] or a single
// value matched with a full mask, and range takes [low, high].
func BuildTableEntry(info *p4info.Info, entry entries.TableEntry) (*p4api.TableEntry, error) {
	table := info.Table(entry.TableName)
	if table == nil {
		return nil, errors.NewNotFound("Table %s not found", entry.TableName)
	}
	for name := range entry.MatchFields {
		if table.MatchField(name) == nil {
			return nil, errors.NewInvalid("Match field %s is not a field of table %s", name, table.Name)
		}
	}

	matches := make([]*p4api.FieldMatch, 0, len(entry.MatchFields))
	for _, mf := range table.MatchFields {
		value, ok := entry.MatchFields[mf.Name]
		if !ok {
			continue
		}
		fm, err := buildFieldMatch(mf, value)
		if err != nil {
			return nil, err
		}
		matches = append(matches, fm)
	}

	action := info.Action(entry.ActionName)
	if action == nil {
		return nil, errors.NewNotFound("Action %s not found", entry.ActionName)
	}
	params := make([]*p4api.Action_Param, 0, len(action.Params))
	for _, p := range action.Params {
		value, ok := entry.ActionParams[p.Name]
		if !ok {
			return nil, errors.NewInvalid("Action %s requires parameter %s", action.Name, p.Name)
		}
		b, err := entries.EncodeValue(value, p.Bitwidth)
		if err != nil {
			return nil, err
		}
		params = append(params, &p4api.Action_Param{ParamId: p.ID, Value: b})
	}

	return &p4api.TableEntry{
		TableId:  table.ID,
		Match:    matches,
		Priority: entry.Priority,
		Action: &p4api.TableAction{
			Type: &p4api.TableAction_Action{
				Action: &p4api.Action{ActionId: action.ID, Params: params},
			},
		},
	}, nil
}

func buildFieldMatch(mf *p4info.MatchField, value interface{}) (*p4api.FieldMatch, error) {
	fm := &p4api.FieldMatch{FieldId: mf.ID}
	switch mf.MatchType {
	case p4info.Exact:
		b, err := entries.EncodeValue(value, mf.Bitwidth)
		if err != nil {
			return nil, err
		}
		fm.FieldMatchType = &p4api.FieldMatch_Exact_{Exact: &p4api.FieldMatch_Exact{Value: b}}

	case p4info.LPM:
		pair, ok := entries.Sequence(value)
		if !ok || len(pair) != 2 {
			return nil, errors.NewInvalid("LPM match on %s requires [value, prefix-length]; got %v", mf.Name, value)
		}
		b, err := entries.EncodeValue(pair[0], mf.Bitwidth)
		if err != nil {
			return nil, err
		}
		prefixLen, ok := entries.IntValue(pair[1])
		if !ok || prefixLen < 0 || prefixLen > int64(mf.Bitwidth) {
			return nil, errors.NewInvalid("LPM prefix length of %s is not valid; got %v", mf.Name, pair[1])
		}
		fm.FieldMatchType = &p4api.FieldMatch_Lpm{Lpm: &p4api.FieldMatch_LPM{Value: b, PrefixLen: int32(prefixLen)}}

	case p4info.Ternary:
		var b, mask []byte
		var err error
		if pair, ok := entries.Sequence(value); ok {
			if len(pair) != 2 {
				return nil, errors.NewInvalid("Ternary match on %s requires [value, mask]; got %v", mf.Name, value)
			}
			if b, err = entries.EncodeValue(pair[0], mf.Bitwidth); err != nil {
				return nil, err
			}
			if mask, err = entries.EncodeValue(pair[1], mf.Bitwidth); err != nil {
				return nil, err
			}
		} else {
			if b, err = entries.EncodeValue(value, mf.Bitwidth); err != nil {
				return nil, err
			}
			mask = fullMask(mf.Bitwidth)
		}
		fm.FieldMatchType = &p4api.FieldMatch_Ternary_{Ternary: &p4api.FieldMatch_Ternary{Value: b, Mask: mask}}

	case p4info.Range:
		pair, ok := entries.Sequence(value)
		if !ok || len(pair) != 2 {
			return nil, errors.NewInvalid("Range match on %s requires [low, high]; got %v", mf.Name, value)
		}
		low, err := entries.EncodeValue(pair[0], mf.Bitwidth)
		if err != nil {
			return nil, err
		}
		high, err := entries.EncodeValue(pair[1], mf.Bitwidth)
		if err != nil {
			return nil, err
		}
		fm.FieldMatchType = &p4api.FieldMatch_Range_{Range: &p4api.FieldMatch_Range{Low: low, High: high}}

	case p4info.Optional:
		b, err := entries.EncodeValue(value, mf.Bitwidth)
		if err != nil {
			return nil, err
		}
		fm.FieldMatchType = &p4api.FieldMatch_Optional_{Optional: &p4api.FieldMatch_Optional{Value: b}}

	default:
		return nil, errors.NewNotSupported("Match field %s has unsupported match type %s", mf.Name, mf.MatchType)
	}
	return fm, nil
}

// Returns the canonical bytes of a mask with all bitwidth bits set
func fullMask(bitwidth int32) []byte {
	if bitwidth <= 0 {
		return []byte{0}
	}
	mask := new(big.Int).Lsh(big.NewInt(1), uint(bitwidth))
	return mask.Sub(mask, big.NewInt(1)).Bytes()
}
