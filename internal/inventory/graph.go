package inventory

import (
	"fmt"
	"sort"

	"ai-force-assess/internal/store"
)

// DependencyGraph is a directed graph over asset IDs. An edge source->target
// means the source asset depends on the target.
type DependencyGraph struct {
	nodes   map[string]store.Asset
	forward map[string][]string // asset -> assets it depends on
	reverse map[string][]string // asset -> assets that depend on it
}

// BuildGraph constructs a graph from the tenant's assets and dependency
// edges. Edges referencing unknown assets are dropped.
func BuildGraph(assets []store.Asset, deps []store.AssetDependency) *DependencyGraph {
	g := &DependencyGraph{
		nodes:   make(map[string]store.Asset, len(assets)),
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
	}
	for _, a := range assets {
		g.nodes[a.AssetID] = a
	}
	seen := make(map[string]bool)
	for _, d := range deps {
		if _, ok := g.nodes[d.SourceAssetID]; !ok {
			continue
		}
		if _, ok := g.nodes[d.TargetAssetID]; !ok {
			continue
		}
		key := d.SourceAssetID + "->" + d.TargetAssetID
		if seen[key] {
			continue
		}
		seen[key] = true
		g.forward[d.SourceAssetID] = append(g.forward[d.SourceAssetID], d.TargetAssetID)
		g.reverse[d.TargetAssetID] = append(g.reverse[d.TargetAssetID], d.SourceAssetID)
	}
	return g
}

// Size returns node and edge counts.
func (g *DependencyGraph) Size() (nodes, edges int) {
	for _, targets := range g.forward {
		edges += len(targets)
	}
	return len(g.nodes), edges
}

// HasCycle reports whether the graph contains a dependency cycle, using
// Kahn's algorithm: if topological ordering cannot consume every node, the
// leftover nodes form at least one cycle.
func (g *DependencyGraph) HasCycle() bool {
	return len(g.cyclicNodes()) > 0
}

// CyclicNodes returns the asset IDs involved in cycles, sorted.
func (g *DependencyGraph) CyclicNodes() []string {
	nodes := g.cyclicNodes()
	sort.Strings(nodes)
	return nodes
}

func (g *DependencyGraph) cyclicNodes() []string {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = 0
	}
	for _, targets := range g.forward {
		for _, t := range targets {
			inDegree[t]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	consumed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		consumed++
		for _, t := range g.forward[id] {
			inDegree[t]--
			if inDegree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}

	if consumed == len(g.nodes) {
		return nil
	}
	var cyclic []string
	for id, deg := range inDegree {
		if deg > 0 {
			cyclic = append(cyclic, id)
		}
	}
	return cyclic
}

// BlastRadius returns the asset IDs transitively impacted if the given asset
// goes down: everything that depends on it, directly or indirectly. The asset
// itself is not included.
func (g *DependencyGraph) BlastRadius(assetID string) ([]string, error) {
	if _, ok := g.nodes[assetID]; !ok {
		return nil, fmt.Errorf("unknown asset %s", assetID)
	}

	visited := map[string]bool{assetID: true}
	queue := []string{assetID}
	var impacted []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range g.reverse[id] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			impacted = append(impacted, dep)
			queue = append(queue, dep)
		}
	}
	sort.Strings(impacted)
	return impacted, nil
}

// MoveGroups partitions the inventory into weakly connected components.
// Assets in the same component share dependencies and should migrate in the
// same wave. Groups are ordered largest first; members are sorted.
func (g *DependencyGraph) MoveGroups() [][]string {
	visited := make(map[string]bool, len(g.nodes))
	var groups [][]string

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, start := range ids {
		if visited[start] {
			continue
		}
		visited[start] = true
		group := []string{start}
		queue := []string{start}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, next := range append(append([]string{}, g.forward[id]...), g.reverse[id]...) {
				if visited[next] {
					continue
				}
				visited[next] = true
				group = append(group, next)
				queue = append(queue, next)
			}
		}
		sort.Strings(group)
		groups = append(groups, group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i]) > len(groups[j])
	})
	return groups
}

// DependencyCount returns direct out-degree and in-degree for an asset.
func (g *DependencyGraph) DependencyCount(assetID string) (dependsOn, dependedOnBy int) {
	return len(g.forward[assetID]), len(g.reverse[assetID])
}
