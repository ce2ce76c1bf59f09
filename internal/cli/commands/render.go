package commands

import (
	"strings"

	"github.com/leapstack-labs/datatree/internal/cli/output"
	"github.com/leapstack-labs/datatree/internal/document"
	"github.com/leapstack-labs/datatree/pkg/datatree"
)

// renderTree writes t in the renderer's effective mode.
func renderTree(r *output.Renderer, title string, t *datatree.Tree) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(document.FromTree(t))
	case output.ModeMarkdown:
		r.Header(1, title)
		r.KeyValue("nodes", t.Len())
		r.Println("")
		r.Code(t.String())
		return nil
	default:
		styles := r.Styles()
		r.Header(1, title)
		for _, line := range strings.Split(t.String(), "\n") {
			if i := strings.Index(line, "Group: "); i >= 0 {
				line = line[:i] + styles.Bold.Render("Group: ") + styles.Path.Render(line[i+len("Group: "):])
			}
			r.Println(line)
		}
		return nil
	}
}
