package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"markdown", ModeMarkdown},
		{"md", ModeMarkdown},
		{" json ", ModeJSON},
		{"html", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTest(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTest(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTest(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestRenderer_Markdown(t *testing.T) {
	r, out, errOut := newTest(ModeMarkdown, false)

	r.Header(2, "Stored trees")
	r.KeyValue("node_count", 3)
	r.Success("saved")
	r.Code("Group: /")
	r.Warning("careful")

	got := out.String()
	assert.Contains(t, got, "## Stored trees\n")
	assert.Contains(t, got, "- **Node Count**: 3\n")
	assert.Contains(t, got, "saved\n")
	assert.Contains(t, got, "```\nGroup: /\n```\n")
	assert.Contains(t, errOut.String(), "! careful")
}

func TestRenderer_TextWithoutTTYHasNoANSI(t *testing.T) {
	r, out, _ := newTest(ModeText, false)
	r.Header(1, "Tree")
	r.Success("done")
	r.Muted("quiet")

	assert.NotContains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "Tree\n")
	assert.Contains(t, out.String(), "✓ done\n")
}

func TestRenderer_Table(t *testing.T) {
	rows := [][]string{{"exp", "4"}, {"base", "1"}}

	r, out, _ := newTest(ModeMarkdown, false)
	r.Table([]string{"name", "nodes"}, rows)
	md := out.String()
	assert.Contains(t, md, "| Name | Nodes |")
	assert.Contains(t, md, "| exp | 4 |")

	r, out, _ = newTest(ModeText, false)
	r.Table([]string{"name", "nodes"}, rows)
	text := out.String()
	// Text tables upper-case headers.
	assert.Contains(t, strings.ToUpper(text), "NAME")
	assert.Contains(t, text, "exp")
	assert.True(t, strings.Contains(text, "┌") || strings.Contains(text, "─"))
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTest(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"nodes": 2}))
	assert.Equal(t, "{\n  \"nodes\": 2\n}\n", out.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Sub", FormatHeader(3, "Sub"))
	assert.Equal(t, "Log Level", Title("log_level"))
	assert.Equal(t, "```yaml\na: 1\n```", FormatCodeBlock("yaml", "a: 1\n"))
}
