// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package p4info

// Cache loads each P4Info file at most once
type Cache struct {
	infos map[string]*Info
}

// NewCache creates a new empty P4Info cache
func NewCache() *Cache {
	return &Cache{infos: make(map[string]*Info)}
}

// Load returns the definitions from the specified P4Info file, loading the file on first use
func (c *Cache) Load(path string) (*Info, error) {
	if info, ok := c.infos[path]; ok {
		return info, nil
	}
	info, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.infos[path] = info
	return info, nil
}

// Put registers the given definitions under the specified path
func (c *Cache) Put(path string, info *Info) {
	c.infos[path] = info
}
