package models

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(highlighting.WithStyle("github")),
	),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// RenderText renders the message text as HTML. Assistant answers are treated as markdown, while user
// input is escaped and rendered verbatim, so a user can't inject markup into the page.
func (m Message) RenderText() (string, error) {
	if m.Role == RoleUser {
		return strings.ReplaceAll(html.EscapeString(m.Text), "\n", "<br>"), nil
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(m.Text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}
