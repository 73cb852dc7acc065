package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// Cycle is a chain of records that contain each other, for example
// ["A", "B", "A"]. Record types are built bottom-up, so such a chain can
// never be constructed.
type Cycle struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// AnalyzeCycles reports record reference cycles found by a depth-first walk
// over field types. Every back edge yields one cycle, rotated to start at
// its smallest record name; cycles over the same records are reported once.
// The result is sorted by path and is empty, not nil, when there are none.
func AnalyzeCycles(decls []RecordDecl) []Cycle {
	refs := references(decls)

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	slices.Sort(names)

	const (
		unseen = iota
		open
		done
	)
	state := make(map[string]int, len(names))
	var stack []string
	seen := make(map[string]bool)
	cycles := []Cycle{}

	var walk func(string)
	walk = func(name string) {
		state[name] = open
		stack = append(stack, name)
		for _, ref := range refs[name] {
			switch state[ref] {
			case unseen:
				walk(ref)
			case open:
				loop := stack[slices.Index(stack, ref):]
				c := newCycle(loop)
				key := memberKey(loop)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, c)
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
	}
	for _, name := range names {
		if state[name] == unseen {
			walk(name)
		}
	}

	slices.SortFunc(cycles, func(a, b Cycle) int {
		return slices.Compare(a.Path, b.Path)
	})
	return cycles
}

// references maps each declared record to the declared records its fields
// hold, in field order.
func references(decls []RecordDecl) map[string][]string {
	refs := make(map[string][]string, len(decls))
	for _, d := range decls {
		refs[d.Name] = nil
	}
	for _, d := range decls {
		for _, f := range d.Fields {
			ref := recordRef(f.Type)
			if _, ok := refs[ref]; ok && ref != "" {
				refs[d.Name] = append(refs[d.Name], ref)
			}
		}
	}
	return refs
}

// newCycle closes loop back on itself, starting from its smallest name.
func newCycle(loop []string) Cycle {
	start := slices.Index(loop, slices.Min(loop))
	path := make([]string, 0, len(loop)+1)
	path = append(path, loop[start:]...)
	path = append(path, loop[:start]...)
	path = append(path, path[0])

	if len(loop) == 1 {
		return Cycle{Path: path, Message: fmt.Sprintf("record %s contains itself", path[0])}
	}
	return Cycle{Path: path, Message: "records contain each other: " + strings.Join(path, " -> ")}
}

func memberKey(loop []string) string {
	members := slices.Clone(loop)
	slices.Sort(members)
	return strings.Join(members, "\x00")
}
