package navigation

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/samirrijal/fieldnav/internal/core/domain"
)

// ParseWaypointQuery turns user input such as "2, 2, x, 9, 1" into an
// ordered list of known customer ids. Tokens are separated by commas,
// semicolons or whitespace. Non-numeric tokens and ids absent from knownIDs
// are dropped; duplicates keep their first position.
func ParseWaypointQuery(text string, knownIDs []int64) []int64 {
	known := make(map[int64]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = struct{}{}
	}

	requested := requestedIDs(text)
	ids := make([]int64, 0, len(requested))
	seen := make(map[int64]struct{}, len(requested))
	for _, id := range requested {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// requestedIDs returns every numeric token of text in input order.
func requestedIDs(text string) []int64 {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	ids := make([]int64, 0, len(tokens))
	for _, tok := range tokens {
		if id, err := strconv.ParseInt(tok, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// resolve maps ids onto records, in the order of ids.
func resolve(ids []int64, records []domain.Customer) []domain.Customer {
	byID := make(map[int64]domain.Customer, len(records))
	for _, c := range records {
		byID[c.ID] = c
	}
	out := make([]domain.Customer, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func customerIDs(records []domain.Customer) []int64 {
	ids := make([]int64, len(records))
	for i, c := range records {
		ids[i] = c.ID
	}
	return ids
}
