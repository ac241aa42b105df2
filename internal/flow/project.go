package flow

// Project joins persisted nodes against the current task records, producing
// the domain tier the runtime adapter renders from. A node whose taskId no
// longer matches any record keeps a nil Resolved: a stale reference is a
// display condition, not an error, and re-linking the task later heals it
// on the next projection.
func Project(nodes []Node, records []TaskRecord) []DomainNode {
	byID := make(map[string]TaskRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	out := make([]DomainNode, len(nodes))
	for i, n := range nodes {
		dn := DomainNode{Node: n}
		if n.Data.TaskID != "" {
			if r, ok := byID[n.Data.TaskID]; ok {
				rec := r
				dn.Resolved = &rec
			}
		}
		out[i] = dn
	}
	return out
}
