package state

import (
	"sort"
	"strings"
	"time"

	"planhub/cli/internal/planapi"
)

// reconcileMessages merges partially overlapping message sources into one
// ordered, deduplicated transcript. Input order only matters for resolving
// duplicate ids: the first-seen copy of an id wins, so callers fold a
// re-fetch in after the live list. The final order is a pure function of
// (createdAt, id) regardless of interleaving.
func reconcileMessages(in []planapi.Message, newID func() string, now time.Time) []planapi.Message {
	out := make([]planapi.Message, 0, len(in))
	seen := make(map[planapi.ID]struct{}, len(in))
	for _, m := range in {
		if isAbsentMessage(m) {
			continue
		}
		m = normalizeMessage(m, newID, now)
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return compareMessages(out[i], out[j]) < 0
	})
	return out
}

// isAbsentMessage reports a slot the server filled with null or an empty
// object. A message that only lacks some fields is normalized, not dropped.
func isAbsentMessage(m planapi.Message) bool {
	return m.ID == "" && m.Role == "" && m.Content == "" && m.CreatedAt.IsZero()
}

// normalizeMessage fills the fields a partial server payload may omit: a
// generated id, ASSISTANT role, empty content and the current time.
func normalizeMessage(m planapi.Message, newID func() string, now time.Time) planapi.Message {
	if m.ID == "" {
		m.ID = planapi.ID(newID())
	}
	if m.Role == "" {
		m.Role = planapi.RoleAssistant
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = planapi.NewTime(now)
	}
	return m
}

// compareMessages is the three-tier transcript comparator: createdAt when
// both sides have one and they differ, then numeric id when both ids parse
// as integers and differ, then the id as a plain string. Locally generated
// ids are non-numeric while server ids may be numeric, so every tier must
// hold a total order without panicking.
func compareMessages(a, b planapi.Message) int {
	if !a.CreatedAt.IsZero() && !b.CreatedAt.IsZero() && !a.CreatedAt.Equal(b.CreatedAt.Time) {
		if a.CreatedAt.Before(b.CreatedAt.Time) {
			return -1
		}
		return 1
	}
	na, aok := a.ID.Num()
	nb, bok := b.ID.Num()
	if aok && bok && na != nb {
		if na < nb {
			return -1
		}
		return 1
	}
	return strings.Compare(string(a.ID), string(b.ID))
}

// removeMessageByID is the inverse delta of an optimistic append.
func removeMessageByID(in []planapi.Message, id planapi.ID) []planapi.Message {
	out := in[:0:0]
	for _, m := range in {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
