package network

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the shape of the friendship graph.
type Stats struct {
	Nodes          int     `json:"nodes"`
	Edges          int     `json:"edges"`
	MinDegree      int     `json:"min_degree"`
	MaxDegree      int     `json:"max_degree"`
	MeanDegree     float64 `json:"mean_degree"`
	DegreeStdDev   float64 `json:"degree_stddev"`
	Clustering     float64 `json:"clustering"`
	MeanPathLength float64 `json:"mean_path_length"`
	PathSources    int     `json:"path_sources"`
	Connected      bool    `json:"connected"`
}

// Graph returns the friendship graph as a gonum undirected graph whose node
// ids are agent indices.
func (n *Network) Graph() *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for i := range n.agents {
		g.AddNode(simple.Node(i))
	}
	for _, e := range n.Edges() {
		g.SetEdge(simple.Edge{F: simple.Node(e.A), T: simple.Node(e.B)})
	}
	return g
}

// Stats computes degree statistics, the average local clustering coefficient
// and the mean shortest path length. Path lengths are measured from at most
// sources evenly spaced agents; sources <= 0 uses every agent. Unreachable
// pairs are left out of the mean and clear Connected.
func (n *Network) Stats(sources int) Stats {
	s := Stats{Nodes: len(n.agents), Connected: true}
	if len(n.agents) == 0 {
		return s
	}

	degrees := make([]float64, len(n.agents))
	s.MinDegree = math.MaxInt
	var clustering float64
	for i, a := range n.agents {
		d := len(a.Friends())
		degrees[i] = float64(d)
		s.Edges += d
		s.MinDegree = min(s.MinDegree, d)
		s.MaxDegree = max(s.MaxDegree, d)
		clustering += n.localClustering(i)
	}
	s.Edges /= 2
	s.MeanDegree = stat.Mean(degrees, nil)
	if len(degrees) > 1 {
		s.DegreeStdDev = stat.StdDev(degrees, nil)
	}
	s.Clustering = clustering / float64(len(n.agents))

	g := n.Graph()
	step := 1
	if sources > 0 && sources < len(n.agents) {
		step = (len(n.agents) + sources - 1) / sources
	}
	var total float64
	var pairs int
	for src := 0; src < len(n.agents); src += step {
		s.PathSources++
		shortest := path.DijkstraFrom(simple.Node(src), g)
		for dst := range n.agents {
			if dst == src {
				continue
			}
			w := shortest.WeightTo(int64(dst))
			if math.IsInf(w, 1) {
				s.Connected = false
				continue
			}
			total += w
			pairs++
		}
	}
	if pairs > 0 {
		s.MeanPathLength = total / float64(pairs)
	}
	return s
}

// localClustering is the fraction of agent i's friend pairs that are
// themselves friends.
func (n *Network) localClustering(i int) float64 {
	friends := n.agents[i].Friends()
	k := len(friends)
	if k < 2 {
		return 0
	}
	links := 0
	for x := 0; x < k; x++ {
		a := n.agents[friends[x]]
		for y := x + 1; y < k; y++ {
			if _, ok := a.Relationship(friends[y]); ok {
				links++
			}
		}
	}
	return float64(links) / float64(k*(k-1)/2)
}
