package routingalgorithm

import "github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"

// Exclusion hides edges and nodes from a single search. The shared graph is
// never modified.
type Exclusion struct {
	Edges map[datastructure.EdgeKey]struct{}
	Nodes map[int32]struct{}
}

func NewExclusion() *Exclusion {
	return &Exclusion{
		Edges: make(map[datastructure.EdgeKey]struct{}),
		Nodes: make(map[int32]struct{}),
	}
}

func (x *Exclusion) ExcludeEdge(from, to int32) {
	x.Edges[datastructure.EdgeKey{From: from, To: to}] = struct{}{}
}

func (x *Exclusion) ExcludeNode(v int32) {
	x.Nodes[v] = struct{}{}
}

// allows reports whether the directed edge from -> to may be relaxed.
func (x *Exclusion) allows(from, to int32) bool {
	if x == nil {
		return true
	}
	if _, ok := x.Nodes[to]; ok {
		return false
	}
	if _, ok := x.Nodes[from]; ok {
		return false
	}
	_, ok := x.Edges[datastructure.EdgeKey{From: from, To: to}]
	return !ok
}
