// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package entries

import (
	"encoding/json"
	"testing"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/p4bench/pkg/p4info"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSchema() *p4info.Info {
	return p4info.NewInfo(
		[]*p4info.Table{
			{
				ID:    1,
				Name:  "Ingress.ipv4_lpm",
				Alias: "ipv4_lpm",
				MatchFields: []*p4info.MatchField{
					{ID: 1, Name: "hdr.ipv4.dst_addr", Bitwidth: 32, MatchType: p4info.LPM},
				},
				ActionRefs: []uint32{10, 11},
				Size:       1024,
			},
			{
				ID:    2,
				Name:  "Ingress.acl",
				Alias: "acl",
				MatchFields: []*p4info.MatchField{
					{ID: 1, Name: "hdr.ipv4.protocol", Bitwidth: 8, MatchType: p4info.Ternary},
					{ID: 2, Name: "standard_metadata.ingress_port", Bitwidth: 9, MatchType: p4info.Exact},
				},
			},
		},
		[]*p4info.Action{
			{ID: 10, Name: "Ingress.ipv4_forward", Alias: "ipv4_forward",
				Params: []*p4info.ActionParam{{ID: 1, Name: "egress_port", Bitwidth: 9}}},
			{ID: 11, Name: "Ingress.drop", Alias: "drop"},
			{ID: 12, Name: "Ingress.set_dst", Alias: "set_dst",
				Params: []*p4info.ActionParam{{ID: 1, Name: "dst_mac", Bitwidth: 48}, {ID: 2, Name: "port", Bitwidth: 9}}},
		},
	)
}

func forwardEntry(match interface{}, port interface{}) TableEntry {
	return TableEntry{
		TableName:    "Ingress.ipv4_lpm",
		ActionName:   "Ingress.ipv4_forward",
		MatchFields:  map[string]interface{}{"hdr.ipv4.dst_addr": match},
		ActionParams: map[string]interface{}{"egress_port": port},
	}
}

func TestValidLPMEntry(t *testing.T) {
	v := NewValidator(newTestSchema())
	assert.NoError(t, v.ValidateEntry(forwardEntry([]interface{}{"10.0.1.1", 32}, 1)))
	assert.NoError(t, v.ValidateEntry(forwardEntry([]interface{}{"10.0.0.0", 8}, 511)))
	assert.NoError(t, v.ValidateEntry(forwardEntry([]interface{}{"10.0.1.1", float64(32)}, float64(3))))
}

func TestInvalidLPMEntry(t *testing.T) {
	v := NewValidator(newTestSchema())

	err := v.ValidateEntry(forwardEntry([]interface{}{"10.0.1.1"}, 1))
	assert.True(t, errors.IsInvalid(err))

	err = v.ValidateEntry(forwardEntry("10.0.1.1", 1))
	assert.True(t, errors.IsInvalid(err))

	err = v.ValidateEntry(forwardEntry([]interface{}{"10.0.1.1", "32"}, 1))
	assert.True(t, errors.IsInvalid(err))

	err = v.ValidateEntry(forwardEntry([]interface{}{"10.0.1.1", 33}, 1))
	assert.True(t, errors.IsInvalid(err))
}

func TestParamBitwidth(t *testing.T) {
	v := NewValidator(newTestSchema())
	// 2^9 is the first value that does not fit
	assert.Error(t, v.ValidateEntry(forwardEntry([]interface{}{"10.0.1.1", 32}, 512)))
	assert.Error(t, v.ValidateEntry(forwardEntry([]interface{}{"10.0.1.1", 32}, -1)))
	assert.NoError(t, v.ValidateEntry(forwardEntry([]interface{}{"10.0.1.1", 32}, 12)))
}

func TestTableResolution(t *testing.T) {
	v := NewValidator(newTestSchema())

	entry := forwardEntry([]interface{}{"10.0.1.1", 32}, 1)
	entry.TableName = "ipv4_lpm"
	entry.ActionName = "ipv4_forward"
	assert.NoError(t, v.ValidateEntry(entry))

	entry.TableName = "Ingress.unknown"
	err := v.ValidateEntry(entry)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Ingress.ipv4_lpm, Ingress.acl")

	entry.TableName = ""
	assert.True(t, errors.IsInvalid(v.ValidateEntry(entry)))
}

func TestMatchFieldNames(t *testing.T) {
	v := NewValidator(newTestSchema())

	entry := forwardEntry([]interface{}{"10.0.1.1", 32}, 1)
	entry.MatchFields = map[string]interface{}{"hdr.ipv4.src_addr": []interface{}{"10.0.1.1", 32}}
	assert.True(t, errors.IsInvalid(v.ValidateEntry(entry)))

	entry.MatchFields = nil
	assert.True(t, errors.IsInvalid(v.ValidateEntry(entry)))
}

func TestActionResolution(t *testing.T) {
	v := NewValidator(newTestSchema())

	entry := forwardEntry([]interface{}{"10.0.1.1", 32}, 1)
	entry.ActionName = "Ingress.unknown"
	err := v.ValidateEntry(entry)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Ingress.ipv4_forward, Ingress.drop")

	entry.ActionName = ""
	assert.True(t, errors.IsInvalid(v.ValidateEntry(entry)))

	// set_dst exists but is not one of the table's actions
	entry.ActionName = "Ingress.set_dst"
	entry.ActionParams = map[string]interface{}{"dst_mac": "00:00:00:00:00:01", "port": 1}
	assert.True(t, errors.IsInvalid(v.ValidateEntry(entry)))
}

func TestActionParams(t *testing.T) {
	v := NewValidator(newTestSchema())

	entry := forwardEntry([]interface{}{"10.0.1.1", 32}, 1)
	entry.ActionParams = nil
	assert.True(t, errors.IsInvalid(v.ValidateEntry(entry)))

	entry.ActionParams = map[string]interface{}{"port": 1}
	assert.True(t, errors.IsInvalid(v.ValidateEntry(entry)))

	entry.ActionName = "drop"
	entry.ActionParams = map[string]interface{}{}
	assert.NoError(t, v.ValidateEntry(entry))

	entry.ActionParams = map[string]interface{}{"egress_port": 1}
	assert.True(t, errors.IsInvalid(v.ValidateEntry(entry)))
}

func TestMultipleFieldsAndParams(t *testing.T) {
	schema := newTestSchema()
	schema.ListTables()[1].ActionRefs = nil
	v := NewValidator(schema)

	entry := TableEntry{
		TableName:  "Ingress.acl",
		ActionName: "Ingress.set_dst",
		MatchFields: map[string]interface{}{
			"hdr.ipv4.protocol":              []interface{}{6, "0xff"},
			"standard_metadata.ingress_port": 3,
		},
		ActionParams: map[string]interface{}{"dst_mac": "00:00:00:00:00:01", "port": 2},
	}
	assert.NoError(t, v.ValidateEntry(entry))

	delete(entry.ActionParams, "port")
	assert.True(t, errors.IsInvalid(v.ValidateEntry(entry)))
}

func TestValidateStopsAtFirstError(t *testing.T) {
	v := NewValidator(newTestSchema())
	good := forwardEntry([]interface{}{"10.0.1.1", 32}, 1)
	badLength := forwardEntry([]interface{}{"10.0.1.1"}, 1)
	badTable := good.Copy()
	badTable.TableName = "nope"

	assert.NoError(t, v.Validate([]TableEntry{good, good}))

	err := v.Validate([]TableEntry{good, badLength, badTable})
	assert.True(t, errors.IsInvalid(err))

	err = v.Validate([]TableEntry{badTable, badLength})
	assert.True(t, errors.IsNotFound(err))
}

func TestValidateDecodedJSON(t *testing.T) {
	data := `{"table_name": "Ingress.ipv4_lpm", "action_name": "Ingress.ipv4_forward",
		"match_fields": {"hdr.ipv4.dst_addr": ["10.0.2.2", 32]}, "action_params": {"egress_port": 2}}`
	entry := TableEntry{}
	require.NoError(t, json.Unmarshal([]byte(data), &entry))
	assert.NoError(t, NewValidator(newTestSchema()).ValidateEntry(entry))
}
