package cfa

import (
	"fmt"
	"sort"

	"github.com/lokeshkvn/cpachecker/utils/dot"
)

// ToDotGraph renders the control-flow automaton as a dot graph. Edges
// carrying lock effects are highlighted and labelled with the effect
// sequence; summarized call edges are dashed.
func (g *Graph) ToDotGraph() *dot.DotGraph {
	dg := &dot.DotGraph{
		Name:  "CFA",
		Title: g.Fn.String(),
		Options: map[string]string{
			"minlen":  fmt.Sprint(2),
			"nodesep": fmt.Sprint(0.4),
			"rankdir": "TB",
		},
	}

	dnodes := map[*Node]*dot.DotNode{}
	nodes := []*Node{}
	g.ForEachNode(func(n *Node) {
		nodes = append(nodes, n)
	})
	// Deterministic output, keyed on the location string.
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].String() < nodes[j].String()
	})

	for _, n := range nodes {
		attrs := dot.DotAttrs{"label": n.String()}
		switch {
		case n == g.entry:
			attrs["fillcolor"] = "palegreen"
		case n.IsExit():
			attrs["fillcolor"] = "lightcoral"
			attrs["style"] = "filled,rounded"
		}
		dn := &dot.DotNode{ID: n.String(), Attrs: attrs}
		dnodes[n] = dn
		dg.Nodes = append(dg.Nodes, dn)
	}

	for _, n := range nodes {
		for _, e := range n.Succs() {
			attrs := dot.DotAttrs{}
			switch {
			case e.Call != nil:
				attrs["label"] = "call " + e.Call.Name()
				attrs["style"] = "dashed"
			case len(e.Effects) > 0:
				label := ""
				for i, effect := range e.Effects {
					if i > 0 {
						label += "; "
					}
					label += effect.String()
				}
				attrs["label"] = label
				attrs["color"] = "blue"
			}
			dg.Edges = append(dg.Edges, &dot.DotEdge{
				From:  dnodes[e.From],
				To:    dnodes[e.To],
				Attrs: attrs,
			})
		}
	}

	return dg
}
