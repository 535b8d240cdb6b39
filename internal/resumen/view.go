package resumen

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"cobranza/internal/core"
)

// DisplayLimit is how many operations the summary screen shows before the
// officer asks for the full list.
const DisplayLimit = 10

// View filters and sorts an operation list for display. It is pure: the
// input slice is never mutated and identical inputs always produce the same
// ordering (ties keep their relative input order).
//
// The query is a trimmed, case-insensitive substring match against client
// name or credit id; a blank query keeps everything. Sorting defaults to
// descending; ascending inverts the comparison uniformly for every key.
func View(ops []core.Operation, query string, key core.SortKey, ascending bool) []core.Operation {
	filtered := filter(ops, query)

	less := lessFunc(key)
	sort.SliceStable(filtered, func(i, j int) bool {
		if ascending {
			return less(filtered[j], filtered[i])
		}
		return less(filtered[i], filtered[j])
	})

	return filtered
}

// DisplaySlice applies the first-N presentation convention. It only limits
// what is shown; summary totals are computed before this cut.
func DisplaySlice(ops []core.Operation, showAll bool) []core.Operation {
	if showAll || len(ops) <= DisplayLimit {
		return ops
	}
	return ops[:DisplayLimit]
}

func filter(ops []core.Operation, query string) []core.Operation {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		out := make([]core.Operation, len(ops))
		copy(out, ops)
		return out
	}

	out := make([]core.Operation, 0, len(ops))
	for _, op := range ops {
		if strings.Contains(strings.ToLower(op.ClientName), term) ||
			strings.Contains(strings.ToLower(op.CreditID), term) {
			out = append(out, op)
		}
	}
	return out
}

// lessFunc returns the descending-order comparison for key. Name and credit
// comparisons are locale-aware; the date key compares registration
// timestamps, not business dates.
func lessFunc(key core.SortKey) func(a, b core.Operation) bool {
	switch key {
	case core.SortByName:
		coll := collate.New(language.Spanish, collate.IgnoreCase)
		return func(a, b core.Operation) bool {
			return coll.CompareString(a.ClientName, b.ClientName) > 0
		}
	case core.SortByCredit:
		coll := collate.New(language.Spanish, collate.IgnoreCase)
		return func(a, b core.Operation) bool {
			return coll.CompareString(a.CreditID, b.CreditID) > 0
		}
	default: // core.SortByDate
		return func(a, b core.Operation) bool {
			return a.RegisteredTime().After(b.RegisteredTime())
		}
	}
}
