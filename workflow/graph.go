package workflow

import (
	"slices"

	"github.com/Abraxas-365/supportflow/catalog"
)

// NodeByID returns the node with the given id
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// Outgoing returns the edges leaving a node, in declaration order
func (w *Workflow) Outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges entering a node, in declaration order
func (w *Workflow) Incoming(nodeID string) []Edge {
	var in []Edge
	for _, e := range w.Edges {
		if e.To == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// TriggerNodes returns every trigger node in declaration order. Trigger
// nodes with incoming edges are still entry points.
func (w *Workflow) TriggerNodes() []Node {
	var triggers []Node
	for _, n := range w.Nodes {
		if n.Kind == catalog.KindTrigger {
			triggers = append(triggers, n)
		}
	}
	return triggers
}

// RemoveNode deletes a node together with every node reachable only
// through it, and all edges touching removed nodes. It returns the removed
// node ids in declaration order.
func (w *Workflow) RemoveNode(id string) ([]string, error) {
	if _, ok := w.NodeByID(id); !ok {
		return nil, ErrNodeNotFound().WithDetail("node_id", id)
	}

	adjacency := make(map[string][]string)
	for _, e := range w.Edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	// Everything downstream of the removed node
	downstream := reachable(adjacency, []string{id}, "")
	delete(downstream, id)

	// Nodes outside the removed subtree keep alive whatever they reach
	// without passing through the removed node
	var seeds []string
	for _, n := range w.Nodes {
		if n.ID != id && !downstream[n.ID] {
			seeds = append(seeds, n.ID)
		}
	}
	kept := reachable(adjacency, seeds, id)

	removed := map[string]bool{id: true}
	for n := range downstream {
		if !kept[n] {
			removed[n] = true
		}
	}

	var removedIDs []string
	w.Nodes = slices.DeleteFunc(w.Nodes, func(n Node) bool {
		if removed[n.ID] {
			removedIDs = append(removedIDs, n.ID)
			return true
		}
		return false
	})
	w.Edges = slices.DeleteFunc(w.Edges, func(e Edge) bool {
		return removed[e.From] || removed[e.To]
	})

	return removedIDs, nil
}

// reachable walks the adjacency map breadth-first from seeds, never
// entering blocked
func reachable(adjacency map[string][]string, seeds []string, blocked string) map[string]bool {
	seen := make(map[string]bool)
	queue := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s != blocked && !seen[s] {
			seen[s] = true
			queue = append(queue, s)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[current] {
			if next == blocked || seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}

	return seen
}
