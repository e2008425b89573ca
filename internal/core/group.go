package core

import (
	"fmt"
	"strings"
)

// Group is the fixed, ordered set of participants sharing the ledger.
// The zero value is an empty group.
type Group struct {
	members []Participant
	index   map[Participant]int
}

// NewGroup builds a group from display names, trimming blanks and dropping
// duplicates while preserving the first-seen order.
func NewGroup(names ...string) (Group, error) {
	g := Group{index: make(map[Participant]int, len(names))}
	for _, n := range names {
		p := Participant(strings.TrimSpace(n))
		if p == "" {
			continue
		}
		if _, ok := g.index[p]; ok {
			continue
		}
		g.index[p] = len(g.members)
		g.members = append(g.members, p)
	}
	if len(g.members) < 2 {
		return Group{}, fmt.Errorf("%w: a group needs at least two participants, got %d", ErrInvalidInput, len(g.members))
	}
	return g, nil
}

// MustGroup is NewGroup for fixed literals; it panics on error.
func MustGroup(names ...string) Group {
	g, err := NewGroup(names...)
	if err != nil {
		panic(err)
	}
	return g
}

// Members returns the participants in configuration order.
func (g Group) Members() []Participant {
	return append([]Participant(nil), g.members...)
}

func (g Group) Len() int { return len(g.members) }

func (g Group) Contains(p Participant) bool {
	_, ok := g.index[p]
	return ok
}

// Index returns the position of p, or -1.
func (g Group) Index(p Participant) int {
	if i, ok := g.index[p]; ok {
		return i
	}
	return -1
}

// Lookup resolves a user-typed name, ignoring case and surrounding spaces.
func (g Group) Lookup(name string) (Participant, bool) {
	name = strings.TrimSpace(name)
	if p := Participant(name); g.Contains(p) {
		return p, true
	}
	for _, p := range g.members {
		if strings.EqualFold(string(p), name) {
			return p, true
		}
	}
	return "", false
}

func (g Group) String() string {
	names := make([]string, len(g.members))
	for i, p := range g.members {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
