// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/p4bench/pkg/entries"
)

// AddTableEntryToSwitch appends the table entry to the named switch. Entries are not checked until
// the setup is; see CheckForErrors.
func (b *Builder) AddTableEntryToSwitch(switchName string, entry entries.TableEntry) error {
	sw := b.setup.Switch(switchName)
	if sw == nil {
		log.Warnf("Not adding table entry for %s: switch %s not found", entry.TableName, switchName)
		return errors.NewNotFound("Switch %s not found", switchName)
	}
	entry = entry.Copy()
	sw.AddTableEntry(entry)
	last := entry.Copy()
	b.lastEntry = &last
	b.changed()
	return nil
}

// AddTableEntryFromPrevious appends a table entry to the named switch, taking whatever the partial
// entry leaves out from the entry added last. Given match fields and action parameters are merged
// over the previous ones.
func (b *Builder) AddTableEntryFromPrevious(switchName string, partial entries.TableEntry) error {
	var previous entries.TableEntry
	if b.lastEntry != nil {
		previous = *b.lastEntry
	}
	entry := entries.Merge(previous, partial)
	if entry.TableName == "" || entry.ActionName == "" {
		return errors.NewInvalid("Table entry for switch %s has no table or action and there is no previous entry", switchName)
	}
	return b.AddTableEntryToSwitch(switchName, entry)
}

// AddTableEntryFileToSwitch reads the table entries stored in the given file and appends them
// to the named switch
func (b *Builder) AddTableEntryFileToSwitch(switchName string, path string) error {
	if b.setup.Switch(switchName) == nil {
		return errors.NewNotFound("Switch %s not found", switchName)
	}
	tableEntries, err := LoadTableEntries(path)
	if err != nil {
		log.Warnf("Failed to add table entry file %s to switch %s: %v", path, switchName, err)
		return err
	}
	for _, entry := range tableEntries {
		if err := b.AddTableEntryToSwitch(switchName, entry); err != nil {
			return err
		}
	}
	log.Infof("Added %d table entries from %s to switch %s", len(tableEntries), path, switchName)
	return nil
}

// AddTableEntryFile records a reference to the given table entry file on the named switch;
// the file content is left for the harness to install.
func (b *Builder) AddTableEntryFile(switchName string, path string) error {
	if err := b.setup.UpdateSwitchTable(switchName, path); err != nil {
		return err
	}
	b.changed()
	return nil
}

// AddTableEntryToFile collects a table entry to be saved with SaveTableEntriesToFile. If a P4Info
// path is given, the entry is checked against it first and rejected if invalid.
func (b *Builder) AddTableEntryToFile(entry entries.TableEntry, p4InfoPath string) error {
	if p4InfoPath != "" {
		info, err := b.schemas.Load(p4InfoPath)
		if err != nil {
			return err
		}
		if err := entries.NewValidator(info).ValidateEntry(entry); err != nil {
			log.Warnf("Not adding table entry for %s: %v", entry.TableName, err)
			return err
		}
	}
	b.fileEntries = append(b.fileEntries, entry.Copy())
	return nil
}

// FileEntries returns the table entries collected by AddTableEntryToFile
func (b *Builder) FileEntries() []entries.TableEntry {
	return b.fileEntries
}

// SaveTableEntriesToFile writes the table entries collected by AddTableEntryToFile to the given
// path; - for stdout
func (b *Builder) SaveTableEntriesToFile(path string) error {
	tableEntries := b.fileEntries
	if tableEntries == nil {
		tableEntries = []entries.TableEntry{}
	}
	data, err := marshalFile(path, tableEntries)
	if err != nil {
		return err
	}
	log.Infof("Saving %d table entries to %s", len(tableEntries), path)
	return writeFile(path, data)
}
