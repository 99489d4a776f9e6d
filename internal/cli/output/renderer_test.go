package output

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newTestRenderer(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := map[string]OutputMode{
		"":         ModeAuto,
		"auto":     ModeAuto,
		"TEXT":     ModeText,
		"md":       ModeMarkdown,
		"markdown": ModeMarkdown,
		"json":     ModeJSON,
		"bogus":    ModeAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, Mode(in), in)
	}
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTestRenderer(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestNewRenderer_NonFileIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
}

func TestHeader(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Header(2, "Waterfall")
	assert.Equal(t, "## Waterfall\n\n", out.String())

	r, out, _ = newTestRenderer(ModeJSON, false)
	r.Header(1, "Waterfall")
	assert.Empty(t, out.String())

	r, out, _ = newTestRenderer(ModeText, false)
	r.Header(1, "Waterfall")
	assert.Equal(t, "Waterfall\n\n", out.String())
}

func TestTable(t *testing.T) {
	rows := [][]string{{"main_BA_1", "1,000"}, {"main_BA_2", "5"}}

	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Table([]string{"Condition", "Drop"}, rows, 1)
	md := out.String()
	assert.Contains(t, md, "| Condition | Drop |")
	assert.Contains(t, md, "| main_BA_1 | 1,000 |")
	assert.False(t, ansi.MatchString(md))

	r, out, _ = newTestRenderer(ModeText, false)
	r.Table([]string{"Condition", "Drop"}, rows, 1)
	txt := out.String()
	assert.Contains(t, txt, "CONDITION")
	assert.Contains(t, txt, "main_BA_2")
	assert.Contains(t, txt, "┌")
}

func TestMessages(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeMarkdown, false)
	r.Success("done")
	r.Muted("hint")
	r.Warning("careful")
	r.Error("broken")
	r.StatusLine("email", "failed", "no such column")
	assert.Equal(t, "**done**\n> hint\n- **email**: failed (no such column)\n", out.String())
	assert.Equal(t, "Warning: careful\nError: broken\n", errOut.String())

	r, out, errOut = newTestRenderer(ModeText, false)
	r.Success("done")
	r.Error("broken")
	r.StatusLine("sms", "completed", "")
	assert.Equal(t, "✓ done\n  ✓ sms\n", out.String())
	assert.Equal(t, "✗ broken\n", errOut.String())
	assert.False(t, ansi.MatchString(out.String()+errOut.String()), "no color without a terminal")
}

func TestJSONAndNumber(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.JSON(CleanupOutput{Dropped: []string{"w.t"}}))
	assert.JSONEq(t, `{"dropped":["w.t"]}`, out.String())

	assert.Equal(t, "1,234,567", r.Number(1234567))
	assert.Equal(t, "-5", r.Number(-5))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
	assert.Equal(t, "- **Run:** abc", FormatKeyValue("Run", "abc"))
	assert.Equal(t, "```sql\nSELECT 1\n```", FormatCodeBlock("sql", "SELECT 1\n"))
	assert.True(t, strings.HasPrefix(FormatCodeBlock("", "x"), "```\n"))
}

func TestKeyValue(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.KeyValue("Lead", "Sam")
	assert.Equal(t, "- **Lead:** Sam\n", out.String())

	r, out, _ = newTestRenderer(ModeText, false)
	r.KeyValue("Lead", "Sam")
	assert.Equal(t, "Lead: Sam\n", out.String())
}
