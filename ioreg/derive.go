package ioreg

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"
)

var ErrCycle = errors.New("derived groups form a cycle")

type groupNode struct {
	group *Group
	id    int64
}

func (n *groupNode) ID() int64 {
	return n.id
}

func makeNode(nodes map[string]*groupNode, g *Group) *groupNode {
	if node, ok := nodes[g.Name]; ok {
		return node
	}
	hasher := fnv.New64()
	hasher.Write([]byte(g.Name))
	node := &groupNode{group: g, id: int64(hasher.Sum64())}
	nodes[g.Name] = node
	return node
}

// resolve copies the registers of every derived group from the group it is
// derived from. Groups are visited in dependency order so chains resolve.
func (m *Map) resolve() error {
	byName := map[string]*Group{}
	for i := range m.Groups {
		byName[m.Groups[i].Name] = &m.Groups[i]
	}

	var errs []error
	graph := multi.NewDirectedGraph()
	nodes := map[string]*groupNode{}
	for i := range m.Groups {
		g := &m.Groups[i]
		node := makeNode(nodes, g)
		if graph.Node(node.ID()) == nil {
			graph.AddNode(node)
		}
		if g.DerivedFrom == "" {
			continue
		}

		src, ok := byName[g.DerivedFrom]
		switch {
		case g.DerivedFrom == g.Name:
			errs = append(errs, fmt.Errorf("%w: %s", ErrCycle, g.Name))
		case !ok:
			errs = append(errs, fmt.Errorf("%w: %s is derived from unknown group %s", ErrInvalidMap, g.Name, g.DerivedFrom))
		case len(g.Registers) > 0:
			errs = append(errs, fmt.Errorf("%w: derived group %s declares registers", ErrInvalidMap, g.Name))
		default:
			graph.SetLine(graph.NewLine(makeNode(nodes, src), node))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	sorted, err := topo.Sort(graph)
	if err != nil {
		var names []string
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			for _, cycle := range cycles {
				for _, n := range cycle {
					names = append(names, n.(*groupNode).group.Name)
				}
			}
		}
		return fmt.Errorf("%w: %s", ErrCycle, strings.Join(names, ", "))
	}

	for _, node := range sorted {
		g := node.(*groupNode).group
		if g.DerivedFrom == "" {
			g.typeName = g.Name + "_STR"
			continue
		}
		src := byName[g.DerivedFrom]
		g.Registers = src.Registers
		if g.Size == 0 {
			g.Size = src.Size
		}
		g.typeName = src.typeName
	}
	return nil
}
