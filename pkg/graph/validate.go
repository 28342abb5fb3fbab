package graph

import (
	"fmt"
	"maps"
	"slices"
)

// ValidationSeverity indicates whether a validation finding blocks shader
// generation or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks generation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID == 0 {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %d: %s", e.Severity, e.NodeID, e.Message)
}

// HasErrors reports whether any finding has error severity.
func HasErrors(findings []ValidationError) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs the structural checks on the graph and returns every
// finding. An empty slice means the graph is valid. Validate never mutates
// the graph.
func Validate(s *System) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRoots(s)...)
	errs = append(errs, validateLinks(s)...)
	errs = append(errs, validateUUIDs(s)...)
	errs = append(errs, validateDAG(s)...)
	errs = append(errs, validateOrphans(s)...)
	return errs
}

// validateRoots checks that exactly one node is marked as root.
func validateRoots(s *System) []ValidationError {
	var roots []*Node
	for _, n := range s.Nodes() {
		if n.IsRoot {
			roots = append(roots, n)
		}
	}
	switch len(roots) {
	case 1:
		return nil
	case 0:
		return []ValidationError{{
			Message:  "graph has no material root",
			Severity: SeverityError,
		}}
	}
	var errs []ValidationError
	for _, r := range roots[1:] {
		errs = append(errs, ValidationError{
			NodeID:   r.ID,
			Message:  fmt.Sprintf("extra material root (graph has %d)", len(roots)),
			Severity: SeverityError,
		})
	}
	return errs
}

// validateLinks checks that every link joins an existing output pin to an
// existing input pin on different nodes, and that no input has more than
// one incoming link.
func validateLinks(s *System) []ValidationError {
	var errs []ValidationError
	incoming := make(map[PinID]int)

	for _, l := range s.Links() {
		start, end := s.pins[l.Start], s.pins[l.End]
		if start == nil || end == nil {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("link %d references a missing pin", l.ID),
				Severity: SeverityError,
			})
			continue
		}
		if start.Kind != PinOutput || end.Kind != PinInput {
			errs = append(errs, ValidationError{
				NodeID:   start.Node,
				Message:  fmt.Sprintf("link %d is not ordered output to input", l.ID),
				Severity: SeverityError,
			})
		}
		if start.Node == end.Node {
			errs = append(errs, ValidationError{
				NodeID:   start.Node,
				Message:  fmt.Sprintf("link %d joins a node to itself", l.ID),
				Severity: SeverityError,
			})
		}
		incoming[l.End]++
	}

	pins := slices.Sorted(maps.Keys(incoming))
	for _, pin := range pins {
		if count := incoming[pin]; count > 1 {
			errs = append(errs, ValidationError{
				NodeID:   s.pins[pin].Node,
				Message:  fmt.Sprintf("input %q has %d links", s.pins[pin].Name, count),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateUUIDs checks that node UUIDs are present and unique.
func validateUUIDs(s *System) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]NodeID)
	for _, n := range s.Nodes() {
		if n.UUID == "" {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  "node has no UUID",
				Severity: SeverityError,
			})
			continue
		}
		if prev, ok := seen[n.UUID]; ok {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("UUID %s already used by node %d", n.UUID, prev),
				Severity: SeverityError,
			})
			continue
		}
		seen[n.UUID] = n.ID
	}
	return errs
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
// If we encounter a gray node during traversal, we have found a cycle.
func validateDAG(s *System) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	downstream := s.downstreamIndex()
	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %d is part of a cycle", id),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		for _, next := range downstream[id] {
			if visit(next) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, n := range s.Nodes() {
		if color[n.ID] == white && visit(n.ID) {
			// One cycle error is sufficient; stop early.
			break
		}
	}
	return errs
}

// validateOrphans warns about nodes whose output never reaches the root.
func validateOrphans(s *System) []ValidationError {
	root := s.Root()
	if root == nil {
		return nil
	}

	upstream := make(map[NodeID][]NodeID)
	for from, tos := range s.downstreamIndex() {
		for _, to := range tos {
			upstream[to] = append(upstream[to], from)
		}
	}

	reachable := map[NodeID]bool{root.ID: true}
	queue := []NodeID{root.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, prev := range upstream[current] {
			if !reachable[prev] {
				reachable[prev] = true
				queue = append(queue, prev)
			}
		}
	}

	var errs []ValidationError
	for _, n := range s.Nodes() {
		if !reachable[n.ID] {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("node %q does not feed the material root", n.Name),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// downstreamIndex maps each node to the nodes its outputs feed, in link
// order.
func (s *System) downstreamIndex() map[NodeID][]NodeID {
	idx := make(map[NodeID][]NodeID)
	for _, l := range s.Links() {
		start, end := s.pins[l.Start], s.pins[l.End]
		if start == nil || end == nil {
			continue
		}
		idx[start.Node] = append(idx[start.Node], end.Node)
	}
	return idx
}
