package engine

import "sort"

// Conflict reports one ledger record claimed by more than one bank entry's
// suggestion. The claiming pass never produces these within a single run;
// they appear when suggestions from different runs, or manually edited
// suggestions, are held side by side before committing.
type Conflict struct {
	// TargetKey is the contested record in kind:id form.
	TargetKey string `json:"target_key"`
	// EntryIDs are the bank entries whose suggestions claim the record,
	// sorted ascending.
	EntryIDs []string `json:"entry_ids"`
}

// ComputeConflicts scans a suggestion map for ledger records claimed by two
// or more entries. The result is sorted by target key; each conflict lists
// every claimant, so resolving one means dismissing all but one of them.
func ComputeConflicts(suggestions map[string]Suggestion) []Conflict {
	claimants := make(map[string][]string)

	entryIDs := make([]string, 0, len(suggestions))
	for id := range suggestions {
		entryIDs = append(entryIDs, id)
	}
	sort.Strings(entryIDs)

	for _, entryID := range entryIDs {
		for _, ref := range suggestions[entryID].Targets() {
			key := ref.Key()
			claimants[key] = append(claimants[key], entryID)
		}
	}

	var conflicts []Conflict
	for key, ids := range claimants {
		if len(ids) < 2 {
			continue
		}
		conflicts = append(conflicts, Conflict{TargetKey: key, EntryIDs: ids})
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].TargetKey < conflicts[j].TargetKey })

	return conflicts
}

// ConflictingEntries flattens conflicts into a per-entry view: each entry id
// maps to the other entries it is in contention with.
func ConflictingEntries(conflicts []Conflict) map[string][]string {
	out := make(map[string][]string)
	for _, c := range conflicts {
		for _, id := range c.EntryIDs {
			for _, other := range c.EntryIDs {
				if other != id {
					out[id] = append(out[id], other)
				}
			}
		}
	}
	for id := range out {
		sort.Strings(out[id])
		out[id] = dedupeSorted(out[id])
	}
	return out
}

func dedupeSorted(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}
