package trace

// unionFind tracks connectivity between named nodes using union by rank
// and path compression.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// add registers a node in its own set. Adding a known node is a no-op.
func (u *unionFind) add(key string) {
	if _, ok := u.parent[key]; ok {
		return
	}
	u.parent[key] = key
	u.rank[key] = 0
}

func (u *unionFind) has(key string) bool {
	_, ok := u.parent[key]
	return ok
}

// union merges the sets containing a and b
func (u *unionFind) union(a, b string) {
	rootA := u.find(a)
	rootB := u.find(b)
	if rootA == rootB {
		return
	}

	// Union by rank
	switch {
	case u.rank[rootA] < u.rank[rootB]:
		u.parent[rootA] = rootB
	case u.rank[rootA] > u.rank[rootB]:
		u.parent[rootB] = rootA
	default:
		u.parent[rootB] = rootA
		u.rank[rootA]++
	}
}

// find returns the representative of the set containing key
func (u *unionFind) find(key string) string {
	root := key
	for u.parent[root] != root {
		root = u.parent[root]
	}

	// Path compression
	for key != root {
		next := u.parent[key]
		u.parent[key] = root
		key = next
	}
	return root
}
