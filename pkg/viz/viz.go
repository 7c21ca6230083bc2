// Package viz renders the notes in a server database as an SVG graph:
// one node per category, one node per note, edges from category to note.
// Handy when eyeballing how a database has grown.
package viz

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/inkwell-notes/inkwell/pkg/note"
)

func RenderNotesToSvg(notes []note.Note, outputPath string) error {
	g := graphviz.New()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}

	categories := make(map[string]*cgraph.Node)
	var edgeCounter int
	for _, n := range notes {
		category := n.Category
		if category == "" {
			category = "(none)"
		}
		cn, ok := categories[category]
		if !ok {
			cn, err = graph.CreateNode("category:" + category)
			if err != nil {
				return fmt.Errorf("failed to create category node: %w", err)
			}
			cn.SetLabel(category)
			cn.SetShape(cgraph.FolderShape)
			categories[category] = cn
		}

		nn, err := graph.CreateNode(fmt.Sprintf("note:%d", n.ID))
		if err != nil {
			return fmt.Errorf("failed to create note node: %w", err)
		}
		nn.SetLabel(fmt.Sprintf("#%d %s\n%s %s", n.ID, n.Title, n.OwnerName, n.UpdatedAt))
		nn.SetShape(cgraph.NoteShape)

		edgeCounter++
		if _, err := graph.CreateEdge(fmt.Sprintf("%d", edgeCounter), cn, nn); err != nil {
			return fmt.Errorf("failed to create edge: %w", err)
		}
	}

	var buff bytes.Buffer
	if err := g.Render(graph, graphviz.SVG, &buff); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}

	if err := os.WriteFile(outputPath, buff.Bytes(), os.ModePerm); err != nil {
		return fmt.Errorf("failed to write")
	}
	return nil
}

func RenderToTemp(notes []note.Note) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("%d%d.svg", time.Now().UnixNano(), rand.Int()))
	if err := RenderNotesToSvg(notes, tf); err != nil {
		return "", err
	}
	return tf, nil
}
