package flow

// WouldCreateCycle reports whether adding a directed edge from source to
// target would close a cycle in the graph formed by edges. A self-loop
// always counts. Otherwise the candidate edge closes a cycle exactly when
// target already reaches source, checked with an iterative depth-first
// walk over an adjacency index.
func WouldCreateCycle(edges []Edge, source, target string) bool {
	if source == target {
		return true
	}

	adj := make(map[string][]string, len(edges))
	for i := range edges {
		adj[edges[i].Source] = append(adj[edges[i].Source], edges[i].Target)
	}

	seen := map[string]struct{}{target: {}}
	stack := []string{target}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == source {
			return true
		}
		for _, next := range adj[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return false
}
