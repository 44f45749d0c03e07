package relate

import (
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/news"
)

const maxArticlesPerEdge = 20

// ArticleRef points back to an article that showed a link.
type ArticleRef struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
}

// Node is one entity of the network.
type Node struct {
	Name       string     `json:"name"`
	Kind       EntityKind `json:"kind"`
	Articles   int        `json:"articles"`
	Degree     int        `json:"degree"`
	Centrality float64    `json:"centrality"` // degree / (nodes - 1)
	// Mean polarity towards the actor over the linking articles that scored it.
	Sentiment *float64 `json:"sentiment,omitempty"`
}

// Edge is an undirected link; Source sorts before Target.
type Edge struct {
	Source   string       `json:"source"`
	Target   string       `json:"target"`
	Weight   int          `json:"weight"` // articles showing the link
	Types    []Type       `json:"types"`
	Articles []ArticleRef `json:"articles"`
}

// Network aggregates the relationships of a set of articles. Nodes are
// ordered by degree, edges by weight, ties by name.
type Network struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Network builds the cross-article relationship network of articles.
func (x *Extractor) Network(articles []*news.Article) *Network {
	type nodeAcc struct {
		kind     EntityKind
		articles int
		sum      float64
		samples  int
		peers    map[string]bool
	}
	type edgeAcc struct {
		edge  *Edge
		types map[Type]bool
	}
	nodes := make(map[string]*nodeAcc)
	edges := make(map[string]*edgeAcc)

	for _, a := range articles {
		rels := x.Extract(a)
		if len(rels) == 0 {
			continue
		}
		inArticle := make(map[string]bool)
		pairInArticle := make(map[string]bool)
		for _, r := range rels {
			for _, e := range []entity{{r.Source, r.SourceKind}, {r.Target, r.TargetKind}} {
				n, ok := nodes[e.name]
				if !ok {
					n = &nodeAcc{kind: e.kind, peers: make(map[string]bool)}
					nodes[e.name] = n
				}
				if !inArticle[e.name] {
					inArticle[e.name] = true
					n.articles++
					if v, ok := a.SentimentFor(e.name); ok && e.kind == KindActor {
						n.sum += v
						n.samples++
					}
				}
			}
			nodes[r.Source].peers[r.Target] = true
			nodes[r.Target].peers[r.Source] = true

			src, dst := r.Source, r.Target
			if dst < src {
				src, dst = dst, src
			}
			key := src + "\x00" + dst
			acc, ok := edges[key]
			if !ok {
				acc = &edgeAcc{edge: &Edge{Source: src, Target: dst}, types: make(map[Type]bool)}
				edges[key] = acc
			}
			if !acc.types[r.Type] {
				acc.types[r.Type] = true
				acc.edge.Types = append(acc.edge.Types, r.Type)
			}
			if !pairInArticle[key] {
				pairInArticle[key] = true
				acc.edge.Weight++
				if len(acc.edge.Articles) < maxArticlesPerEdge {
					acc.edge.Articles = append(acc.edge.Articles, ArticleRef{
						Title:     a.Text.Title.Plain,
						Link:      a.Link,
						Source:    a.Source,
						Published: a.Published,
					})
				}
			}
		}
	}

	net := &Network{Nodes: []Node{}, Edges: []Edge{}}
	for name, n := range nodes {
		node := Node{Name: name, Kind: n.kind, Articles: n.articles, Degree: len(n.peers)}
		if len(nodes) > 1 {
			node.Centrality = round2(float64(node.Degree) / float64(len(nodes)-1))
		}
		if n.samples > 0 {
			mean := round2(n.sum / float64(n.samples))
			node.Sentiment = &mean
		}
		net.Nodes = append(net.Nodes, node)
	}
	sort.Slice(net.Nodes, func(i, j int) bool {
		if net.Nodes[i].Degree != net.Nodes[j].Degree {
			return net.Nodes[i].Degree > net.Nodes[j].Degree
		}
		return net.Nodes[i].Name < net.Nodes[j].Name
	})

	for _, acc := range edges {
		sortTypes(acc.edge.Types)
		net.Edges = append(net.Edges, *acc.edge)
	}
	sortEdges(net.Edges)

	x.logger.Debug("relationship network built",
		zap.Int("articles", len(articles)),
		zap.Int("nodes", len(net.Nodes)),
		zap.Int("edges", len(net.Edges)))
	return net
}

// Query narrows a network view. Zero fields do not restrict.
type Query struct {
	Entity    string // either end, case-insensitive
	Type      Type
	MinWeight int
	Limit     int // edges
}

// Select returns the edges matching q and the nodes they touch. Node
// figures still describe the whole network.
func (n *Network) Select(q Query) *Network {
	out := &Network{Nodes: []Node{}, Edges: []Edge{}}
	if n == nil {
		return out
	}
	keep := make(map[string]bool)
	for _, e := range n.Edges {
		if q.Entity != "" && !strings.EqualFold(e.Source, q.Entity) && !strings.EqualFold(e.Target, q.Entity) {
			continue
		}
		if q.Type != "" && !hasType(e.Types, q.Type) {
			continue
		}
		if e.Weight < q.MinWeight {
			continue
		}
		if q.Limit > 0 && len(out.Edges) >= q.Limit {
			break
		}
		out.Edges = append(out.Edges, e)
		keep[e.Source] = true
		keep[e.Target] = true
	}
	for _, node := range n.Nodes {
		if keep[node.Name] {
			out.Nodes = append(out.Nodes, node)
		}
	}
	return out
}

func hasType(types []Type, t Type) bool {
	for _, have := range types {
		if have == t {
			return true
		}
	}
	return false
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
}
