package datatree

import "strings"

const (
	branchMid  = "├── "
	branchLast = "└── "
	pipe       = "│   "
	blank      = "    "
)

// String renders the tree with each node's dataset summary indented beneath it.
func (t *Tree) String() string {
	var b strings.Builder
	b.WriteString("<datatree.Tree>\n")
	t.render(&b, t.Root(), "", "")
	return strings.TrimRight(b.String(), "\n")
}

func (t *Tree) render(b *strings.Builder, id NodeID, head, body string) {
	n := t.nodes[id]
	b.WriteString(head)
	b.WriteString("Group: ")
	b.WriteString(t.Path(id))
	b.WriteByte('\n')

	lead := body + blank
	if len(n.children) > 0 {
		lead = body + pipe
	}
	if n.data != nil {
		for _, line := range n.data.SummaryLines() {
			b.WriteString(strings.TrimRight(lead+line, " "))
			b.WriteByte('\n')
		}
	}
	for i, c := range n.children {
		if i == len(n.children)-1 {
			t.render(b, c, body+branchLast, body+blank)
		} else {
			t.render(b, c, body+branchMid, body+pipe)
		}
	}
}
