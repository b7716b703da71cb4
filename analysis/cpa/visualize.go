package cpa

import (
	"fmt"

	"github.com/lokeshkvn/cpachecker/utils/dot"
)

// ToDotGraph renders the abstract reachability graph as a dot graph.
// Nodes are labelled with their control location and abstract state; the
// root is highlighted.
func (r *ReachedSet) ToDotGraph(title string) *dot.DotGraph {
	dg := &dot.DotGraph{
		Name:  "ARG",
		Title: title,
		Options: map[string]string{
			"nodesep": fmt.Sprint(0.4),
			"rankdir": "TB",
		},
	}

	dnodes := map[*Node]*dot.DotNode{}
	r.ForEach(func(n *Node) {
		attrs := dot.DotAttrs{
			"label": fmt.Sprintf("%d @ %s\n%s", n.ID, n.Loc, n.State),
		}
		if n == r.root {
			attrs["fillcolor"] = "palegreen"
		}
		if n.Loc.IsExit() {
			attrs["fillcolor"] = "lightyellow"
		}
		dn := &dot.DotNode{ID: fmt.Sprint(n.ID), Attrs: attrs}
		dnodes[n] = dn
		dg.Nodes = append(dg.Nodes, dn)
	})

	r.ForEach(func(n *Node) {
		for _, child := range n.Children() {
			dg.Edges = append(dg.Edges, &dot.DotEdge{
				From: dnodes[n],
				To:   dnodes[child],
			})
		}
	})

	return dg
}
