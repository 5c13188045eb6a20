// Package visualization renders friendship networks in various output formats.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/party"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat returns the format named by s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: dot, json)", s)
	}
}

// NoVoteColor fills agents that have not voted yet.
const NoVoteColor = "lightgray"

// palette colors parties without a configured color, by party ID.
var palette = []string{
	"steelblue",
	"tomato",
	"mediumseagreen",
	"goldenrod",
	"mediumpurple",
	"lightseagreen",
	"sandybrown",
	"hotpink",
	"slategray",
	"yellowgreen",
}

// PartyColor returns the color for a party: the entry in colors for its name
// when present, otherwise a palette color chosen by ID.
func PartyColor(parties *party.Registry, id int, colors map[string]string) string {
	if c, ok := colors[parties.Name(id)]; ok && c != "" {
		return c
	}
	if id < 0 {
		return NoVoteColor
	}
	return palette[id%len(palette)]
}

// RenderDOT produces a Graphviz DOT representation of the friendship network.
// Agents are filled with the color of their last committed vote.
func RenderDOT(net *network.Network, parties *party.Registry, colors map[string]string) string {
	var b strings.Builder
	b.WriteString("graph electsim {\n")
	b.WriteString("  layout=neato;\n")
	b.WriteString("  overlap=false;\n")
	b.WriteString("  node [shape=circle, style=filled, label=\"\", width=0.15, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [color=\"#00000033\"];\n\n")

	for i, a := range net.Agents() {
		color, tooltip := NoVoteColor, "no vote"
		if vote, ok := a.LastVote(); ok {
			color = PartyColor(parties, vote, colors)
			tooltip = parties.Name(vote)
		}
		b.WriteString(fmt.Sprintf("  %d [fillcolor=%q, tooltip=%q];\n",
			i, color, fmt.Sprintf("agent %d: %s", i, tooltip)))
	}
	b.WriteString("\n")

	for _, e := range net.Edges() {
		b.WriteString(fmt.Sprintf("  %d -- %d;\n", e.A, e.B))
	}

	if parties.Len() > 0 {
		b.WriteString("\n  subgraph cluster_legend {\n")
		b.WriteString("    label=\"Parties\";\n")
		for _, id := range parties.OrderedIDs() {
			b.WriteString(fmt.Sprintf("    \"party_%d\" [shape=box, label=%q, fillcolor=%q, width=0];\n",
				id, truncate(parties.Name(id), 40), PartyColor(parties, id, colors)))
		}
		b.WriteString("  }\n")
	}

	b.WriteString("}\n")
	return b.String()
}

// Node is one agent in the JSON graph.
type Node struct {
	ID       int       `json:"id"`
	Position []float64 `json:"position"`
	Vote     int       `json:"vote"`
	Party    string    `json:"party,omitempty"`
	Color    string    `json:"color"`
	Degree   int       `json:"degree"`
}

// Graph is the JSON representation of a network.
type Graph struct {
	Nodes     []Node         `json:"nodes"`
	Edges     []network.Edge `json:"edges"`
	Parties   []string       `json:"parties"`
	NodeCount int            `json:"node_count"`
	EdgeCount int            `json:"edge_count"`
}

// RenderJSON produces a graph representation with nodes and edges arrays.
// Agents without a vote have Vote -1 and no party.
func RenderJSON(net *network.Network, parties *party.Registry, colors map[string]string) Graph {
	nodes := make([]Node, 0, net.Len())
	for i, a := range net.Agents() {
		n := Node{
			ID:       i,
			Position: a.Position().Values(),
			Vote:     -1,
			Color:    NoVoteColor,
			Degree:   len(a.Friends()),
		}
		if vote, ok := a.LastVote(); ok {
			n.Vote = vote
			n.Party = parties.Name(vote)
			n.Color = PartyColor(parties, vote, colors)
		}
		nodes = append(nodes, n)
	}

	edges := net.Edges()
	return Graph{
		Nodes:     nodes,
		Edges:     edges,
		Parties:   parties.Names(),
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
