// Package viz draws who can see which list: owners point at their lists and lists point at the
// identities they are shared with.
package viz

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/todo-sync/pkg/todo"
)

func identityNode(identity string) string {
	return "user:" + identity
}

func listNode(id int64) string {
	return "list:" + strconv.FormatInt(id, 10)
}

// RenderShareGraph writes an SVG of lists and the identities attached to them.
func RenderShareGraph(lists []*todo.List, w io.Writer) error {
	g := graphviz.New()
	defer g.Close()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	nodes := make(map[string]*cgraph.Node)
	node := func(name, label string, shape cgraph.Shape) (*cgraph.Node, error) {
		if n, ok := nodes[name]; ok {
			return n, nil
		}
		n, err := graph.CreateNode(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(label).SetShape(shape)
		nodes[name] = n
		return n, nil
	}

	var edgeCounter int
	edge := func(from, to *cgraph.Node, label string) error {
		edgeCounter++
		e, err := graph.CreateEdge(strconv.Itoa(edgeCounter), from, to)
		if err != nil {
			return fmt.Errorf("failed to create edge: %w", err)
		}
		e.SetLabel(label)
		return nil
	}

	for _, l := range lists {
		ln, err := node(listNode(l.ID), fmt.Sprintf("#%d %s (%d tasks)", l.ID, l.Name, len(l.Tasks)), cgraph.BoxShape)
		if err != nil {
			return err
		}
		on, err := node(identityNode(l.Owner), l.Owner, cgraph.EllipseShape)
		if err != nil {
			return err
		}
		if err := edge(on, ln, "owns"); err != nil {
			return err
		}
		for _, identity := range l.SharedWith {
			sn, err := node(identityNode(identity), identity, cgraph.EllipseShape)
			if err != nil {
				return err
			}
			if err := edge(ln, sn, "shared"); err != nil {
				return err
			}
		}
	}

	if err := g.Render(graph, graphviz.SVG, w); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}

func RenderToTemp(lists []*todo.List) (string, error) {
	var buff bytes.Buffer
	if err := RenderShareGraph(lists, &buff); err != nil {
		return "", err
	}
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("sharegraph-%d%d.svg", time.Now().UnixNano(), rand.Int()))
	if err := os.WriteFile(tf, buff.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write: %w", err)
	}
	return tf, nil
}
