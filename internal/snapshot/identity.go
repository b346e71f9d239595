// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package snapshot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Class is the retention tier a snapshot belongs to.
type Class string

// Snapshot classes.
const (
	ClassDaily   Class = "daily"
	ClassWeekly  Class = "weekly"
	ClassMonthly Class = "monthly"
)

// Classes lists every class in ascending tier order.
var Classes = []Class{ClassDaily, ClassWeekly, ClassMonthly}

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	switch c {
	case ClassDaily, ClassWeekly, ClassMonthly:
		return true
	}
	return false
}

// ParseClass converts a string to a Class.
func ParseClass(s string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown snapshot class %q", s)
	}
	return c, nil
}

// LabelLayout is the time layout of labels created by Snapvault.
const LabelLayout = "2006-01-02"

var labelPattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._:-]*$`)

// LabelFor returns the label for a snapshot taken at t, in t's location.
func LabelFor(t time.Time) string {
	return t.Format(LabelLayout)
}

// Identity is the typed name of a managed snapshot.
type Identity struct {
	Dataset string
	Class   Class
	Label   string
}

// NewIdentity validates and builds an Identity.
func NewIdentity(dataset string, class Class, label string) (Identity, error) {
	if dataset == "" || strings.ContainsAny(dataset, "@ \t\n") {
		return Identity{}, fmt.Errorf("%w: invalid dataset %q", ErrMalformedName, dataset)
	}
	if !class.Valid() {
		return Identity{}, fmt.Errorf("%w: invalid class %q", ErrMalformedName, class)
	}
	if !labelPattern.MatchString(label) {
		return Identity{}, fmt.Errorf("%w: invalid label %q", ErrMalformedName, label)
	}
	return Identity{Dataset: dataset, Class: class, Label: label}, nil
}

// Suffix returns "<class>-<label>", the part after '@'.
func (id Identity) Suffix() string {
	return string(id.Class) + "-" + id.Label
}

// Name returns the full snapshot name "<dataset>@<class>-<label>".
func (id Identity) Name() string {
	return id.Dataset + "@" + id.Suffix()
}

// SamePoint reports whether two identities name the same point in time,
// ignoring the dataset. A replicated snapshot keeps its suffix on the remote
// dataset, so this is how local and remote snapshots are matched.
func (id Identity) SamePoint(other Identity) bool {
	return id.Class == other.Class && id.Label == other.Label
}

// OnDataset returns the identity of the same point in time on another dataset.
func (id Identity) OnDataset(dataset string) Identity {
	id.Dataset = dataset
	return id
}

func (id Identity) String() string {
	return id.Name()
}

// Ref is a catalog entry: a parsed identity plus what the store reported.
type Ref struct {
	Identity Identity

	// RawName is the name exactly as listed by the store.
	RawName string

	// CreateTXG is the creation transaction group, 0 when not reported.
	// It orders snapshots that share a label.
	CreateTXG uint64

	// GUID is the snapshot's guid property, 0 when not reported. A received
	// snapshot keeps the guid of the snapshot it was sent from.
	GUID uint64
}

// SameContent reports whether r and other may hold the same data. It is
// false only when both report a guid and the guids differ.
func (r Ref) SameContent(other Ref) bool {
	if r.GUID == 0 || other.GUID == 0 {
		return true
	}
	return r.GUID == other.GUID
}

func (r Ref) String() string {
	return r.RawName
}

// Parse parses a listed snapshot name. When dataset is non-empty the name
// must belong to exactly that dataset.
func Parse(raw, dataset string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	ds, suffix, ok := strings.Cut(raw, "@")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q is not a snapshot name", ErrMalformedName, raw)
	}
	if dataset != "" && ds != dataset {
		return Ref{}, fmt.Errorf("%w: %q does not belong to %s", ErrMalformedName, raw, dataset)
	}
	classPart, label, ok := strings.Cut(suffix, "-")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q has no class prefix", ErrMalformedName, raw)
	}
	id, err := NewIdentity(ds, Class(classPart), label)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Identity: id, RawName: raw}, nil
}

// ListingColumns are the zfs list columns ParseListing understands.
const ListingColumns = "name,createtxg,guid"

// ParseListing parses one line of "zfs list -H -p -o name,createtxg,guid"
// output. Missing or non-numeric numeric columns are left at 0.
func ParseListing(line, dataset string) (Ref, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	ref, err := Parse(fields[0], dataset)
	if err != nil {
		return Ref{}, err
	}
	if len(fields) > 1 {
		ref.CreateTXG = parseNumber(fields[1])
	}
	if len(fields) > 2 {
		ref.GUID = parseNumber(fields[2])
	}
	return ref, nil
}

func parseNumber(field string) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(field), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
