package main

import (
	"bytes"
	"context"
	"html"
	"log/slog"
)

// renderMarkdownToHTML renders an assistant reply. Raw HTML in the source is omitted by goldmark's default
// renderer. On failure the escaped source is returned.
func (app *application) renderMarkdownToHTML(ctx context.Context, markdown string) string {
	var buf bytes.Buffer
	if err := app.markdown.Convert([]byte(markdown), &buf); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "failed to render markdown", slog.Any("error", err))
		return html.EscapeString(markdown)
	}
	return buf.String()
}
