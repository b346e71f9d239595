// Snapvault - Tiered ZFS Snapshot Backup Orchestrator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/snapvault

package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/snapvault/internal/command"
	"github.com/tomtom215/snapvault/internal/logging"
)

// missingDatasetMessage is the zfs stderr for a dataset that does not exist.
const missingDatasetMessage = "dataset does not exist"

// CatalogConfig configures a Catalog.
type CatalogConfig struct {
	// Binary is the zfs executable. Default: zfs
	Binary string

	// ListTimeout bounds each enumeration. Default: 60s
	ListTimeout time.Duration
}

// Catalog enumerates managed snapshots on one target host.
type Catalog struct {
	runner  command.Runner
	target  command.Target
	binary  string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewCatalog creates a Catalog that lists snapshots on target.
func NewCatalog(runner command.Runner, target command.Target, cfg CatalogConfig) *Catalog {
	if cfg.Binary == "" {
		cfg.Binary = "zfs"
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = time.Minute
	}
	if target == nil {
		target = command.Local{}
	}
	return &Catalog{
		runner:  runner,
		target:  target,
		binary:  cfg.Binary,
		timeout: cfg.ListTimeout,
		logger: logging.With().
			Str("component", "catalog").
			Str("target", target.String()).
			Logger(),
	}
}

// Target returns the host this catalog enumerates.
func (c *Catalog) Target() command.Target {
	return c.target
}

// ListAll returns every managed snapshot of dataset across all classes,
// oldest first. Names not following the managed pattern are skipped.
func (c *Catalog) ListAll(ctx context.Context, dataset string) ([]Ref, error) {
	cmd := c.target.Wrap(command.Command{
		Name:    c.binary,
		Args:    []string{"list", "-H", "-p", "-t", "snapshot", "-o", ListingColumns, "-d", "1", dataset},
		Timeout: c.timeout,
	})

	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		if command.StderrContains(err, missingDatasetMessage) {
			c.logger.Debug().Str("dataset", dataset).Msg("Dataset does not exist, no snapshots")
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s on %s: %w", ErrEnumerationFailed, dataset, c.target, err)
	}

	lines := res.Lines()
	refs := make([]Ref, 0, len(lines))
	skipped := 0
	for _, line := range lines {
		ref, perr := ParseListing(line, dataset)
		if perr != nil {
			skipped++
			c.logger.Debug().Str("entry", logging.SanitizeValue(line)).Msg("Skipping unmanaged snapshot")
			continue
		}
		refs = append(refs, ref)
	}
	if skipped > 0 {
		c.logger.Info().
			Str("dataset", dataset).
			Int("skipped", skipped).
			Int("managed", len(refs)).
			Msg("Skipped snapshots not matching the managed naming pattern")
	}

	sortRefs(refs)
	return refs, nil
}

// List returns the snapshots of one class, ascending by label.
func (c *Catalog) List(ctx context.Context, dataset string, class Class) ([]Ref, error) {
	all, err := c.ListAll(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return FilterClass(all, class), nil
}

// Latest returns the newest snapshot of one class, or nil when there is none.
func (c *Catalog) Latest(ctx context.Context, dataset string, class Class) (*Ref, error) {
	refs, err := c.List(ctx, dataset, class)
	if err != nil {
		return nil, err
	}
	return last(refs), nil
}

// LatestAny returns the newest snapshot across all classes, or nil when
// there is none.
func (c *Catalog) LatestAny(ctx context.Context, dataset string) (*Ref, error) {
	refs, err := c.ListAll(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return last(refs), nil
}

// FilterClass returns the entries of refs with the given class, keeping order.
func FilterClass(refs []Ref, class Class) []Ref {
	out := make([]Ref, 0, len(refs))
	for _, ref := range refs {
		if ref.Identity.Class == class {
			out = append(out, ref)
		}
	}
	return out
}

// Find returns the entry of refs naming the same point in time as id,
// ignoring the dataset, or nil.
func Find(refs []Ref, id Identity) *Ref {
	for i := range refs {
		if refs[i].Identity.SamePoint(id) {
			return &refs[i]
		}
	}
	return nil
}

// sortRefs orders by label, then by creation txg when every entry reports
// one. Entries that still compare equal keep enumeration order.
func sortRefs(refs []Ref) {
	byTXG := true
	for _, r := range refs {
		if r.CreateTXG == 0 {
			byTXG = false
			break
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.Identity.Label != b.Identity.Label {
			return a.Identity.Label < b.Identity.Label
		}
		return byTXG && a.CreateTXG < b.CreateTXG
	})
}

func last(refs []Ref) *Ref {
	if len(refs) == 0 {
		return nil
	}
	ref := refs[len(refs)-1]
	return &ref
}
