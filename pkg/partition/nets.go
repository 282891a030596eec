package partition

import (
	"fmt"
	"sort"

	"github.com/OpenTraceLab/diode/pkg/circuit"
	"github.com/OpenTraceLab/diode/pkg/naming"
)

// NetIdentifiers assigns an identifier to every net, index aligned with
// nets. The assignment only depends on net names and endpoint lists, never
// on the order of nets, so repeated runs agree.
//
//   - named nets use their sanitized name (or the rename given in renames)
//   - unnamed nets are numbered net_1, net_2... in canonical order
//   - nets whose identifiers collide get _1, _2... in canonical order
//   - identifiers found in reserved or among the keywords get a _net suffix
//
// Canonical order sorts nets by their endpoint lists, comparing reference
// designators then pins.
func NetIdentifiers(nets []*circuit.Net, reserved map[string]bool, renames map[string]string) []string {
	order := make([]int, len(nets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return canonicalLess(nets[order[a]], nets[order[b]])
	})

	idents := make([]string, len(nets))
	for i, n := range nets {
		if v, ok := renames[n.Name]; ok && n.Name != "" {
			idents[i] = naming.Net(v)
		}
		if idents[i] == "" {
			idents[i] = naming.Net(n.Name)
		}
	}

	unnamed := 0
	for _, i := range order {
		if idents[i] == "" {
			unnamed++
			idents[i] = fmt.Sprintf("net_%d", unnamed)
		}
	}

	groups := make(map[string][]int)
	for _, i := range order {
		groups[idents[i]] = append(groups[idents[i]], i)
	}
	for base, members := range groups {
		if len(members) < 2 {
			continue
		}
		for k, i := range members {
			idents[i] = fmt.Sprintf("%s_%d", base, k+1)
		}
	}

	for i, id := range idents {
		if reserved[id] || naming.IsKeyword(id) {
			idents[i] = id + "_net"
		}
	}

	used := make(map[string]bool, len(idents))
	for _, i := range order {
		id := idents[i]
		for n := 2; used[id]; n++ {
			id = fmt.Sprintf("%s_%d", idents[i], n)
		}
		idents[i] = id
		used[id] = true
	}

	return idents
}

// canonicalLess compares endpoint lists element by element. Net names break
// ties between identical lists.
func canonicalLess(a, b *circuit.Net) bool {
	for i := 0; i < len(a.Endpoints) && i < len(b.Endpoints); i++ {
		ea, eb := a.Endpoints[i], b.Endpoints[i]
		if ea != eb {
			return ea.Less(eb)
		}
	}
	if len(a.Endpoints) != len(b.Endpoints) {
		return len(a.Endpoints) < len(b.Endpoints)
	}
	return a.Name < b.Name
}
