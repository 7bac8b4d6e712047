// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/batchrun/internal/ui/styles"
)

// MaxPreviewBytes caps how much of a script is read for the preview.
const MaxPreviewBytes = 64 * 1024

// ErrBinary is returned for files that do not look like text.
var ErrBinary = errors.New("binary file")

// =============================================================================
// PREVIEW
// =============================================================================

// Preview shows a highlighted script in a scrollable viewport.
type Preview struct {
	vp   viewport.Model
	path string
}

// NewPreview creates an empty preview.
func NewPreview() *Preview {
	return &Preview{vp: viewport.New(0, 0)}
}

// Open loads path into the preview.
func (p *Preview) Open(path string, dark bool) error {
	code, err := ReadScript(path)
	if err != nil {
		return err
	}
	p.path = path
	p.vp.SetContent(Highlight(path, code, dark))
	p.vp.GotoTop()
	return nil
}

// Path returns the previewed file.
func (p *Preview) Path() string { return p.path }

// SetSize sets the viewport dimensions.
func (p *Preview) SetSize(width, height int) {
	p.vp.Width = width
	p.vp.Height = height
}

// Update forwards scrolling input.
func (p *Preview) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.vp, cmd = p.vp.Update(msg)
	return cmd
}

// View renders a title line and the viewport.
func (p *Preview) View(th *styles.Theme) string {
	return th.Title.Render(filepath.Base(p.path)) + th.Muted.Render("  esc to close") + "\n" + p.vp.View()
}

// ReadScript reads up to MaxPreviewBytes of a text file.
func ReadScript(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxPreviewBytes))
	if err != nil {
		return "", err
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", ErrBinary
	}
	return string(data), nil
}

// Highlight renders code with terminal colors, picking the lexer from the file
// name and falling back to content analysis. Plain code is returned on error.
func Highlight(path, code string, dark bool) string {
	lexer := lexers.Match(filepath.Base(path))
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if !dark {
		styleName = "github"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
