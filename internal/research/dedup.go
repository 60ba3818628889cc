// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import "github.com/pdiddy/evidence-engine/pkg/types"

// DedupStats summarizes a Deduplicator's state.
type DedupStats struct {
	SeenKeys           int `json:"seen_keys"`
	DuplicatesFiltered int `json:"duplicates_filtered"`
}

// Deduplicator tracks identity keys across all rounds of one session.
// The key set only grows. A Deduplicator is not safe for concurrent use;
// the fetcher calls it after all provider tasks have settled.
type Deduplicator struct {
	seen       map[string]struct{}
	duplicates int
}

// NewDeduplicator returns an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// IsSeen reports whether rec's identity was already accepted. Records
// without an identity are never seen.
func (d *Deduplicator) IsSeen(rec types.SourceRecord) bool {
	key := rec.IdentityKey()
	if key == "" {
		return false
	}
	_, ok := d.seen[key]
	return ok
}

// MarkSeen records rec's identity.
func (d *Deduplicator) MarkSeen(rec types.SourceRecord) {
	if key := rec.IdentityKey(); key != "" {
		d.seen[key] = struct{}{}
	}
}

// Filter returns the records not seen before and marks them, in one pass.
// Repeats within records are dropped too.
func (d *Deduplicator) Filter(records []types.SourceRecord) []types.SourceRecord {
	out := make([]types.SourceRecord, 0, len(records))
	for _, rec := range records {
		if d.IsSeen(rec) {
			d.duplicates++
			continue
		}
		d.MarkSeen(rec)
		out = append(out, rec)
	}
	return out
}

// FilterArticles tags records as PubMed articles and filters them.
func (d *Deduplicator) FilterArticles(records []types.SourceRecord) []types.SourceRecord {
	return d.Filter(tag(records, types.ProviderPubMed))
}

// FilterPreprints tags records as medRxiv preprints and filters them.
func (d *Deduplicator) FilterPreprints(records []types.SourceRecord) []types.SourceRecord {
	return d.Filter(tag(records, types.ProviderMedRxiv))
}

// FilterTrials tags records as registered trials and filters them.
func (d *Deduplicator) FilterTrials(records []types.SourceRecord) []types.SourceRecord {
	return d.Filter(tag(records, types.ProviderClinicalTrials))
}

// FilterWebResults tags records as web results and filters them.
func (d *Deduplicator) FilterWebResults(records []types.SourceRecord) []types.SourceRecord {
	return d.Filter(tag(records, types.ProviderExa))
}

// FilterFor dispatches to the wrapper for provider k.
func (d *Deduplicator) FilterFor(k types.ProviderKind, records []types.SourceRecord) []types.SourceRecord {
	switch k {
	case types.ProviderPubMed:
		return d.FilterArticles(records)
	case types.ProviderMedRxiv:
		return d.FilterPreprints(records)
	case types.ProviderClinicalTrials:
		return d.FilterTrials(records)
	case types.ProviderExa:
		return d.FilterWebResults(records)
	default:
		return d.Filter(records)
	}
}

// Stats returns the number of distinct keys seen and duplicates dropped.
func (d *Deduplicator) Stats() DedupStats {
	return DedupStats{SeenKeys: len(d.seen), DuplicatesFiltered: d.duplicates}
}

func tag(records []types.SourceRecord, k types.ProviderKind) []types.SourceRecord {
	out := make([]types.SourceRecord, len(records))
	for i, rec := range records {
		rec.Kind = k
		out[i] = rec
	}
	return out
}
