package components

import (
	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

// NodeEntry is one row of the node list.
type NodeEntry struct {
	ID      string
	Status  build.NodeStatus
	Step    build.StepKind
	Message string
}

// NodeList holds node rows in build order.
type NodeList struct {
	entries []NodeEntry
}

// NewNodeList constructs a node list from the build order and the latest
// known state of every node. Nodes without state are pending.
func NewNodeList(order []string, nodes map[string]NodeEntry) NodeList {
	entries := make([]NodeEntry, 0, len(order))
	for _, id := range order {
		entry, ok := nodes[id]
		if !ok {
			entry = NodeEntry{Status: build.StatusPending}
		}
		entry.ID = id
		if entry.Status == "" {
			entry.Status = build.StatusPending
		}
		entries = append(entries, entry)
	}
	return NodeList{entries: entries}
}

// Entries returns the ordered node entries.
func (l NodeList) Entries() []NodeEntry {
	clone := make([]NodeEntry, len(l.entries))
	copy(clone, l.entries)
	return clone
}
