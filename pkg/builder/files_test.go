// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/p4bench/pkg/entries"
	"github.com/onosproject/p4bench/pkg/p4info"
	"github.com/onosproject/p4bench/pkg/topo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Creates N1, N2 -- S1 -- S2 -- N3 with one table entry on S1
func newTestBuilder(t *testing.T) *Builder {
	b := New()
	_, err := b.AddNewSwitch("S1", "basic", WithP4InfoPath(basicP4Info))
	require.NoError(t, err)
	_, err = b.AddNewSwitch("S2", "basic")
	require.NoError(t, err)
	_, err = b.AddNewNode("N1", WithIPv4("10.0.1.1"), WithMAC("00:00:00:00:01:01"))
	require.NoError(t, err)
	_, err = b.AddNewNode("N2", WithFreshIPv4("10.0"))
	require.NoError(t, err)
	_, err = b.AddNewNode("N3", WithNodeID(9))
	require.NoError(t, err)
	for _, l := range [][2]string{{"N1", "S1"}, {"S1", "N2"}, {"S1", "S2"}, {"N3", "S2"}} {
		_, err = b.AddNewLink(l[0], l[1], AutoPort, AutoPort)
		require.NoError(t, err)
	}
	require.NoError(t, b.AddTableEntryToSwitch("S1", entries.TableEntry{
		TableName:    "Ingress.ipv4_lpm",
		ActionName:   "Ingress.ipv4_forward",
		MatchFields:  map[string]interface{}{"hdr.ipv4.dst_addr": []interface{}{"10.0.1.1", 32}},
		ActionParams: map[string]interface{}{"egress_port": 1},
	}))
	require.NoError(t, b.AddTableEntryFile("S2", "s2-entries.json"))
	return b
}

func assertSameSetup(t *testing.T, expected *topo.Setup, actual *topo.Setup) {
	require.Len(t, actual.Nodes, len(expected.Nodes))
	for _, n := range expected.Nodes {
		a := actual.Node(n.Name)
		require.NotNil(t, a, n.Name)
		assert.Equal(t, n.ID, a.ID)
		assert.Equal(t, n.IPv4Addr, a.IPv4Addr)
		assert.Equal(t, n.MACAddr, a.MACAddr)
		assert.ElementsMatch(t, n.UsedPorts, a.UsedPorts)
	}
	require.Len(t, actual.Switches, len(expected.Switches))
	for _, sw := range expected.Switches {
		a := actual.Switch(sw.Name)
		require.NotNil(t, a, sw.Name)
		assert.Equal(t, sw.P4ProgName, a.P4ProgName)
		assert.Equal(t, sw.P4InfoPath, a.P4InfoPath)
		assert.Equal(t, sw.ServerPort, a.ServerPort)
		assert.Equal(t, sw.TableEntryFiles, a.TableEntryFiles)
		assert.ElementsMatch(t, sw.UsedPorts, a.UsedPorts)
		assert.Empty(t, a.TableEntries)
	}
	assert.Equal(t, expected.Links, actual.Links)
}

func TestSaveAndReadSetup(t *testing.T) {
	for _, name := range []string{"setup.json", "setup.yaml"} {
		t.Run(name, func(t *testing.T) {
			b := newTestBuilder(t)
			path := filepath.Join(t.TempDir(), name)
			assert.NoError(t, b.SaveSetupToFile(path))

			restored := New()
			assert.NoError(t, restored.ReadBaseFromFile(path))
			assertSameSetup(t, b.Setup(), restored.Setup())

			// issued addresses are known to the restored builder
			ip, err := restored.GenerateFreshIP("10.0")
			assert.NoError(t, err)
			assert.Equal(t, "10.0.1.3", ip.String())
		})
	}
}

func TestSavedFormat(t *testing.T) {
	b := New()
	_, _ = b.AddNewNode("N1", WithIPv4("10.0.1.1"))
	_, _ = b.AddNewSwitch("S1", "basic")
	_, _ = b.AddNewLink("N1", "S1", AutoPort, 1)
	_ = b.AddTableEntryToSwitch("S1", entries.TableEntry{TableName: "Ingress.acl", ActionName: "Ingress.drop"})
	path := filepath.Join(t.TempDir(), "setup.json")
	require.NoError(t, b.SaveSetupToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	expected := `{
    "links": [
        {
            "device1": "N1",
            "device1_port": 0,
            "device2": "S1",
            "device2_port": 1,
            "type": "Node_to_Switch"
        }
    ],
    "nodes": {
        "N1": {
            "id": 0,
            "ipv4_addr": "10.0.1.1",
            "used_ports": [
                0
            ]
        }
    },
    "switches": {
        "S1": {
            "p4_info_path": "",
            "p4_prog_name": "basic",
            "server_port": 50051,
            "table_entries": [
                {
                    "action_name": "Ingress.drop",
                    "action_params": {},
                    "match_fields": {},
                    "table_name": "Ingress.acl"
                }
            ],
            "used_ports": [
                1
            ]
        }
    }
}
`
	assert.Equal(t, expected, string(data))

	buf := &bytes.Buffer{}
	assert.NoError(t, b.WriteSetup(buf))
	assert.Equal(t, expected, buf.String())
}

func TestSaveRefusesInvalidSetup(t *testing.T) {
	b := New()
	_, _ = b.AddNewNode("N1")
	path := filepath.Join(t.TempDir(), "setup.json")
	err := b.SaveSetupToFile(path)
	assert.True(t, errors.IsInvalid(err))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadMissingFile(t *testing.T) {
	b := New()
	err := b.ReadBaseFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.IsNotFound(err))

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{nodes"), 0644))
	err = b.ReadBaseFromFile(path)
	assert.True(t, errors.IsInvalid(err))
}

func TestTableEntriesFile(t *testing.T) {
	b := New()
	valid := entries.TableEntry{
		TableName:    "Ingress.ipv4_lpm",
		ActionName:   "Ingress.ipv4_forward",
		MatchFields:  map[string]interface{}{"hdr.ipv4.dst_addr": []interface{}{"10.0.1.1", 32}},
		ActionParams: map[string]interface{}{"egress_port": 1},
	}
	assert.NoError(t, b.AddTableEntryToFile(valid, basicP4Info))

	invalid := valid.Copy()
	invalid.ActionParams = map[string]interface{}{"egress_port": 512}
	assert.True(t, errors.IsInvalid(b.AddTableEntryToFile(invalid, basicP4Info)))

	// without P4Info the entry is taken as is
	assert.NoError(t, b.AddTableEntryToFile(invalid, ""))
	assert.True(t, errors.IsNotFound(b.AddTableEntryToFile(valid, "missing.p4info.txt")))
	assert.Len(t, b.FileEntries(), 2)

	for _, name := range []string{"entries.json", "entries.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, b.SaveTableEntriesToFile(path))
			loaded, err := LoadTableEntries(path)
			require.NoError(t, err)
			require.Len(t, loaded, 2)
			assert.Equal(t, "Ingress.ipv4_lpm", loaded[0].TableName)

			sb := New()
			_, err = sb.AddNewSwitch("S1", "basic", WithP4InfoPath(basicP4Info))
			require.NoError(t, err)
			_, err = sb.AddNewNode("N1")
			require.NoError(t, err)
			_, err = sb.AddNewLink("N1", "S1", AutoPort, AutoPort)
			require.NoError(t, err)
			require.NoError(t, sb.AddTableEntryFileToSwitch("S1", path))
			assert.Len(t, sb.Setup().Switch("S1").TableEntries, 2)
			// the second entry does not fit the egress_port bitwidth
			assert.True(t, sb.CheckForErrors())
			assert.Len(t, sb.Problems(), 1)
			assert.True(t, errors.IsNotFound(sb.AddTableEntryFileToSwitch("S2", path)))
			assert.True(t, errors.IsNotFound(sb.AddTableEntryFileToSwitch("S1", path+".missing")))
		})
	}
}

func TestEmptyTableEntriesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, New().SaveTableEntriesToFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriteDOT(t *testing.T) {
	b := newTestBuilder(t)
	buf := &bytes.Buffer{}
	assert.NoError(t, b.WriteDOT(buf))
	assert.Contains(t, buf.String(), "graph setup {")
	assert.Contains(t, buf.String(), "S2")
}

func TestReadWithTableEntries(t *testing.T) {
	b := newTestBuilder(t)
	path := filepath.Join(t.TempDir(), "setup.json")
	require.NoError(t, b.SaveSetupToFile(path))

	restored := New()
	require.NoError(t, restored.ReadFromFile(path))
	tableEntries := restored.Setup().Switch("S1").TableEntries
	require.Len(t, tableEntries, 1)
	assert.Equal(t, "Ingress.ipv4_lpm", tableEntries[0].TableName)
	assert.False(t, restored.CheckForErrors())
}

func TestSaveChecksChangesMadeThroughSetup(t *testing.T) {
	b := New()
	_, _ = b.AddNewNode("N1", WithIPv4("10.0.1.1"))
	_, _ = b.AddNewSwitch("S1", "basic")
	_, _ = b.AddNewLink("N1", "S1", AutoPort, AutoPort)
	require.False(t, b.CheckForErrors())

	b.Setup().Node("N1").IPv4Addr = "10.0.1.300"
	path := filepath.Join(t.TempDir(), "setup.json")
	assert.True(t, errors.IsInvalid(b.SaveSetupToFile(path)))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFailedReadLeavesBuilderUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
    "links": [{"device1": "N1", "device1_port": 0, "device2": "S9", "device2_port": 0, "type": "Node_to_Switch"}],
    "nodes": {"N1": {"id": 0, "ipv4_addr": "10.0.1.1", "used_ports": [0]}},
    "switches": {"S1": {"p4_info_path": "", "p4_prog_name": "basic", "server_port": 50051, "table_entries": [], "used_ports": [0]}}
}`), 0644))

	b := New()
	_, err := b.AddNewNode("X1")
	require.NoError(t, err)
	assert.True(t, errors.IsNotFound(b.ReadBaseFromFile(path)))
	assert.NotNil(t, b.Setup().Node("X1"))
	assert.Nil(t, b.Setup().Node("N1"))
	assert.Nil(t, b.Setup().Switch("S1"))

	// a successful read replaces the setup
	good := filepath.Join(t.TempDir(), "good.json")
	require.NoError(t, newTestBuilder(t).SaveSetupToFile(good))
	require.NoError(t, b.ReadBaseFromFile(good))
	assert.Nil(t, b.Setup().Node("X1"))
	assert.NotNil(t, b.Setup().Switch("S2"))
	assert.Len(t, b.Setup().Nodes, 3)
}

func TestSavedEntriesWithoutMaps(t *testing.T) {
	b := New()
	require.NoError(t, b.AddTableEntryToFile(entries.TableEntry{TableName: "Ingress.acl", ActionName: "Ingress.drop"}, ""))
	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, b.SaveTableEntriesToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[
    {
        "action_name": "Ingress.drop",
        "action_params": {},
        "match_fields": {},
        "table_name": "Ingress.acl"
    }
]
`, string(data))
}

func TestTableEntriesKeepLargeNumbers(t *testing.T) {
	schemas := p4info.NewCache()
	schemas.Put("wide.p4info.txt", p4info.NewInfo(
		[]*p4info.Table{{
			ID:          1,
			Name:        "Ingress.cookies",
			MatchFields: []*p4info.MatchField{{ID: 1, Name: "meta.flow_id", Bitwidth: 64, MatchType: p4info.Exact}},
			ActionRefs:  []uint32{2},
		}},
		[]*p4info.Action{{ID: 2, Name: "Ingress.mark", Params: []*p4info.ActionParam{{ID: 1, Name: "cookie", Bitwidth: 64}}}},
	))

	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{
    "table_name": "Ingress.cookies",
    "action_name": "Ingress.mark",
    "match_fields": {"meta.flow_id": 9007199254740993},
    "action_params": {"cookie": 18446744073709551615}
}]`), 0644))

	loaded, err := LoadTableEntries(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	b := New(WithSchemaCache(schemas))
	require.NoError(t, b.AddTableEntryToFile(loaded[0], "wide.p4info.txt"))

	out := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, b.SaveTableEntriesToFile(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"meta.flow_id": 9007199254740993`)
	assert.Contains(t, string(data), `"cookie": 18446744073709551615`)

	// one past the parameter bitwidth is still rejected
	require.NoError(t, os.WriteFile(path, []byte(`[{"table_name": "Ingress.cookies", "action_name": "Ingress.mark",
    "match_fields": {"meta.flow_id": 1}, "action_params": {"cookie": 18446744073709551616}}]`), 0644))
	loaded, err = LoadTableEntries(path)
	require.NoError(t, err)
	assert.True(t, errors.IsInvalid(b.AddTableEntryToFile(loaded[0], "wide.p4info.txt")))
}
