// ABOUTME: Stage-transition graph between two deal snapshots
// ABOUTME: One edge per (old, new) stage pair, weighted by how many deals moved
package viz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/logging"
	"github.com/harperreed/crmpulse/models"
)

// GraphFormat picks the rendered output.
type GraphFormat string

const (
	FormatDOT GraphFormat = "dot"
	FormatSVG GraphFormat = "svg"
	FormatPNG GraphFormat = "png"
)

// FormatFromPath picks a format from a file extension, defaulting to DOT.
func FormatFromPath(path string) GraphFormat {
	switch {
	case strings.HasSuffix(path, ".svg"):
		return FormatSVG
	case strings.HasSuffix(path, ".png"):
		return FormatPNG
	default:
		return FormatDOT
	}
}

// TransitionGraph renders stage transitions. Stages are nodes; each edge
// is labeled with the number of deals that moved along it.
func TransitionGraph(ctx context.Context, transitions []models.StageTransition, format GraphFormat) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create graphviz: %w", err)
	}
	defer func() {
		if err := gv.Close(); err != nil {
			logging.Component("viz").Warn("failed to close graphviz", "err", err)
		}
	}()

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}
	defer func() {
		if err := graph.Close(); err != nil {
			logging.Component("viz").Warn("failed to close graph", "err", err)
		}
	}()

	graph.SetLabel(fmt.Sprintf("Переходы между этапами (%d)", len(transitions)))
	graph.SetRankDir(cgraph.LRRank)

	counts := diff.TransitionCounts(transitions)
	pairs := make([][2]string, 0, len(counts))
	for pair := range counts {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	nodes := make(map[string]*cgraph.Node)
	node := func(stage string) (*cgraph.Node, error) {
		if n, ok := nodes[stage]; ok {
			return n, nil
		}
		n, err := graph.CreateNodeByName(fmt.Sprintf("stage_%d", len(nodes)))
		if err != nil {
			return nil, fmt.Errorf("failed to create stage node: %w", err)
		}
		n.SetLabel(stage)
		n.SetShape("box")
		n.SetStyle("filled")
		n.SetFillColor("lightyellow")
		nodes[stage] = n
		return n, nil
	}

	for i, pair := range pairs {
		from, err := node(pair[0])
		if err != nil {
			return nil, err
		}
		to, err := node(pair[1])
		if err != nil {
			return nil, err
		}
		edge, err := graph.CreateEdgeByName(fmt.Sprintf("move_%d", i), from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to create transition edge: %w", err)
		}
		n := counts[pair]
		edge.SetLabel(fmt.Sprint(n))
		edge.SetPenWidth(float64(min(n, 8)))
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, renderFormat(format), &buf); err != nil {
		return nil, fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.Bytes(), nil
}

func renderFormat(f GraphFormat) graphviz.Format {
	switch f {
	case FormatSVG:
		return graphviz.SVG
	case FormatPNG:
		return graphviz.PNG
	default:
		return graphviz.XDOT
	}
}

// WriteTransitionGraph renders the graph into w.
func WriteTransitionGraph(ctx context.Context, w io.Writer, transitions []models.StageTransition, format GraphFormat) error {
	data, err := TransitionGraph(ctx, transitions, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
