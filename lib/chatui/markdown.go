// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// wrapBreakpoints are the characters ansi.Wrap may break after in
// addition to spaces.
const wrapBreakpoints = " ,.;-+|/"

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown

	styleRendererOnce sync.Once
	styleRenderer     *lipgloss.Renderer
)

func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(
			extension.Strikethrough,
			extension.TaskList,
			extension.Linkify,
		))
	})
	return markdownParser
}

// ansiRenderer returns a lipgloss renderer pinned to ANSI256, so output
// is colored even when stdout is not a terminal (tests, pipes into a
// pager). SetColorProfile is needed because the renderer otherwise
// re-detects the profile from the environment.
func ansiRenderer() *lipgloss.Renderer {
	styleRendererOnce.Do(func() {
		styleRenderer = lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
		styleRenderer.SetColorProfile(termenv.ANSI256)
	})
	return styleRenderer
}

// RenderMarkdown renders assistant text for a terminal of the given
// width. Soft line breaks reflow; code blocks keep their lines.
//
// Partial input renders too: an unterminated fence is a code block
// that ends at the end of the text, so output is stable while a reply
// is still being revealed.
func RenderMarkdown(input string, theme Theme, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	source := []byte(input)
	document := parser().Parser().Parse(text.NewReader(source))

	writer := &markdownWriter{
		source: source,
		theme:  theme,
		width:  width,
		styles: ansiRenderer(),
	}
	ast.Walk(document, writer.visit)
	return strings.TrimRight(writer.out.String(), "\n")
}

// markdownWriter accumulates inline runs per block and wraps each block
// as a unit when it closes.
type markdownWriter struct {
	source []byte
	theme  Theme
	width  int
	styles *lipgloss.Renderer

	out     strings.Builder
	newline int // trailing newlines in out
	inline  strings.Builder

	indent      []string // blockquote and list continuation prefixes
	firstPrefix string   // replaces the indent on a list item's first line
	lists       []*listLevel

	bold, italic, struck int
}

type listLevel struct {
	ordered bool
	next    int
	tight   bool
}

func (writer *markdownWriter) style() lipgloss.Style {
	return writer.styles.NewStyle()
}

func (writer *markdownWriter) prefix() string {
	return strings.Join(writer.indent, "")
}

func (writer *markdownWriter) available() int {
	return max(writer.width-ansi.StringWidth(writer.prefix()), 10)
}

func (writer *markdownWriter) write(s string) {
	if s == "" {
		return
	}
	writer.out.WriteString(s)
	trimmed := strings.TrimRight(s, "\n")
	if trimmed == "" {
		writer.newline += len(s)
	} else {
		writer.newline = len(s) - len(trimmed)
	}
}

// breakLines guarantees at least n newlines at the end of the output.
// Nothing is written before the first block.
func (writer *markdownWriter) breakLines(n int) {
	if writer.out.Len() == 0 {
		return
	}
	for writer.newline < n {
		writer.write("\n")
	}
}

func (writer *markdownWriter) tight() bool {
	return len(writer.lists) > 0 && writer.lists[len(writer.lists)-1].tight
}

// emit writes a rendered block, prefixing every line.
func (writer *markdownWriter) emit(block string) {
	continuation := writer.prefix()
	for index, line := range strings.Split(block, "\n") {
		if index == 0 && writer.firstPrefix != "" {
			writer.write(writer.firstPrefix)
			writer.firstPrefix = ""
		} else {
			writer.write(continuation)
		}
		writer.write(line + "\n")
	}
}

func (writer *markdownWriter) flushParagraph() {
	content := writer.inline.String()
	writer.inline.Reset()
	if content == "" {
		return
	}
	writer.emit(ansi.Wrap(content, writer.available(), wrapBreakpoints))
	if !writer.tight() {
		writer.breakLines(2)
	}
}

func (writer *markdownWriter) textStyle() lipgloss.Style {
	style := writer.style().Foreground(writer.theme.NormalText)
	if writer.bold > 0 {
		style = style.Bold(true)
	}
	if writer.italic > 0 {
		style = style.Italic(true)
	}
	if writer.struck > 0 {
		style = style.Strikethrough(true)
	}
	return style
}

func (writer *markdownWriter) faint(s string) string {
	return writer.style().Foreground(writer.theme.FaintText).Render(s)
}

func (writer *markdownWriter) lines(node ast.Node) string {
	var content strings.Builder
	segments := node.Lines()
	for index := range segments.Len() {
		segment := segments.At(index)
		content.Write(segment.Value(writer.source))
	}
	return strings.TrimRight(content.String(), "\n")
}

// literal returns the raw text under an inline node.
func (writer *markdownWriter) literal(node ast.Node) string {
	var content strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch child := child.(type) {
		case *ast.Text:
			content.Write(child.Segment.Value(writer.source))
		case *ast.String:
			content.Write(child.Value)
		default:
			content.WriteString(writer.literal(child))
		}
	}
	return content.String()
}

func (writer *markdownWriter) visit(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		if entering {
			writer.inline.Reset()
		} else {
			writer.flushParagraph()
		}

	case *ast.Heading:
		if entering {
			writer.inline.Reset()
			return ast.WalkContinue, nil
		}
		content := ansi.Strip(writer.inline.String())
		writer.inline.Reset()
		if content == "" {
			return ast.WalkContinue, nil
		}
		style := writer.style().Bold(true).Foreground(writer.theme.HeaderForeground)
		if node.Level > 2 {
			style = style.Foreground(writer.theme.NormalText)
		}
		writer.breakLines(2)
		writer.emit(ansi.Wrap(style.Render(content), writer.available(), wrapBreakpoints))
		writer.breakLines(2)

	case *ast.FencedCodeBlock:
		if entering {
			writer.codeBlock(writer.lines(node), string(node.Language(writer.source)))
		}
		return ast.WalkSkipChildren, nil

	case *ast.CodeBlock:
		if entering {
			writer.codeBlock(writer.lines(node), "")
		}
		return ast.WalkSkipChildren, nil

	case *ast.Blockquote:
		if entering {
			writer.indent = append(writer.indent, writer.style().Foreground(writer.theme.BorderColor).Render("│")+" ")
		} else {
			writer.indent = writer.indent[:len(writer.indent)-1]
			writer.breakLines(2)
		}

	case *ast.List:
		if entering {
			writer.lists = append(writer.lists, &listLevel{
				ordered: node.IsOrdered(),
				next:    node.Start,
				tight:   node.IsTight,
			})
		} else {
			writer.lists = writer.lists[:len(writer.lists)-1]
			if !writer.tight() {
				writer.breakLines(2)
			}
		}

	case *ast.ListItem:
		writer.listItem(entering)

	case *ast.ThematicBreak:
		if entering {
			writer.breakLines(2)
			rule := strings.Repeat("─", writer.available())
			writer.emit(writer.style().Foreground(writer.theme.BorderColor).Render(rule))
			writer.breakLines(2)
		}

	case *ast.HTMLBlock:
		if entering {
			if content := strings.TrimSpace(writer.lines(node)); content != "" {
				writer.emit(writer.faint(content))
				writer.breakLines(2)
			}
		}
		return ast.WalkSkipChildren, nil

	case *ast.Text:
		if entering {
			writer.inline.WriteString(writer.textStyle().Render(string(node.Segment.Value(writer.source))))
			switch {
			case node.HardLineBreak():
				writer.inline.WriteString("\n")
			case node.SoftLineBreak():
				writer.inline.WriteString(" ")
			}
		}

	case *ast.String:
		if entering {
			writer.inline.WriteString(writer.textStyle().Render(string(node.Value)))
		}

	case *ast.Emphasis:
		counter := &writer.italic
		if node.Level >= 2 {
			counter = &writer.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case *extast.Strikethrough:
		if entering {
			writer.struck++
		} else {
			writer.struck--
		}

	case *ast.CodeSpan:
		if entering {
			code := writer.style().Foreground(writer.theme.FaintText).Render(writer.literal(node))
			writer.inline.WriteString(code)
		}
		return ast.WalkSkipChildren, nil

	case *ast.Link:
		if entering {
			label := writer.textStyle().Underline(true).Render(writer.literal(node))
			writer.inline.WriteString(label)
			if destination := string(node.Destination); destination != "" {
				writer.inline.WriteString(" " + writer.faint("("+destination+")"))
			}
		}
		return ast.WalkSkipChildren, nil

	case *ast.AutoLink:
		if entering {
			url := string(node.URL(writer.source))
			writer.inline.WriteString(writer.style().Foreground(writer.theme.LinkForeground).Render(url))
		}
		return ast.WalkSkipChildren, nil

	case *ast.Image:
		if entering {
			writer.inline.WriteString(writer.faint(fmt.Sprintf("[image: %s]", writer.literal(node))))
		}
		return ast.WalkSkipChildren, nil

	case *ast.RawHTML:
		if entering {
			var html strings.Builder
			for index := range node.Segments.Len() {
				segment := node.Segments.At(index)
				html.Write(segment.Value(writer.source))
			}
			writer.inline.WriteString(writer.faint(html.String()))
		}
		return ast.WalkSkipChildren, nil

	case *extast.TaskCheckBox:
		if entering {
			box := "[ ] "
			if node.IsChecked {
				box = "[x] "
			}
			writer.inline.WriteString(writer.textStyle().Render(box))
		}
	}
	return ast.WalkContinue, nil
}

func (writer *markdownWriter) listItem(entering bool) {
	if len(writer.lists) == 0 {
		return
	}
	level := writer.lists[len(writer.lists)-1]
	if !entering {
		writer.indent = writer.indent[:len(writer.indent)-1]
		if level.tight {
			writer.breakLines(1)
		} else {
			writer.breakLines(2)
		}
		return
	}

	bullet := "• "
	if level.ordered {
		bullet = fmt.Sprintf("%d. ", level.next)
		level.next++
	}
	writer.firstPrefix = writer.prefix() + writer.style().Foreground(writer.theme.FaintText).Render(bullet)
	writer.indent = append(writer.indent, strings.Repeat(" ", ansi.StringWidth(bullet)))
}

// codeBlock highlights code with chroma when the language is known and
// falls back to faint text otherwise. Lines are never wrapped.
func (writer *markdownWriter) codeBlock(code, language string) {
	rendered := ""
	if language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err == nil {
			rendered = strings.TrimRight(buffer.String(), "\n")
		}
	}
	if rendered == "" {
		rendered = writer.faint(code)
	}
	writer.breakLines(2)
	writer.emit(rendered)
	writer.breakLines(2)
}
