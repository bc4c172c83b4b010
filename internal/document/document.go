// Package document extracts plain text from uploaded résumés and postings.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxSize is the largest document accepted.
const MaxSize = 10 << 20

var (
	// ErrUnsupported is returned for file types that cannot be read.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrTooLarge is returned for documents over MaxSize.
	ErrTooLarge = errors.New("document too large")
	// ErrNoText is returned when a document yields no text.
	ErrNoText = errors.New("no text content found")
)

// Supported reports whether name has an extension Extract can read.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".docx", ".html", ".htm", ".txt", ".text", ".md":
		return true
	}
	return false
}

// Extract returns the text of a document, choosing the reader by the
// extension of name.
func Extract(name string, data []byte) (string, error) {
	if len(data) > MaxSize {
		return "", ErrTooLarge
	}

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		text, err = pdfText(data)
	case ".docx":
		text, err = docxText(data)
	case ".html", ".htm":
		text, err = htmlText(bytes.NewReader(data))
	case ".txt", ".text", ".md":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s: not valid UTF-8 text", name)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err != nil {
		return "", err
	}

	text = CleanText(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// ReadFile reads and extracts the document at path.
func ReadFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxSize {
		return "", ErrTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Extract(filepath.Base(path), data)
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading docx: %w", err)
	}
	defer doc.Close()
	return wordXMLText(doc.Editable().GetContent()), nil
}

// wordXMLText flattens WordprocessingML into text: runs of w:t are joined,
// w:tab becomes a tab and paragraphs and breaks become newlines.
func wordXMLText(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))
	var sb strings.Builder
	inText := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "w:t":
				inText = true
			case "w:tab":
				sb.WriteByte('\t')
			case "w:br", "w:cr":
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "w:t":
				inText = false
			case "w:p":
				sb.WriteByte('\n')
			}
		case html.TextToken:
			if inText {
				sb.Write(z.Text())
			}
		}
	}
}

// htmlText returns the visible text of an HTML document. Block elements
// end a line; script and style contents are skipped.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Head:
				return
			case atom.Br:
				sb.WriteByte('\n')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			sb.WriteByte('\n')
		}
	}
	walk(doc)
	return sb.String(), nil
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Table,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Section, atom.Article, atom.Header, atom.Footer, atom.Blockquote, atom.Pre:
		return true
	}
	return false
}

// CleanText trims every line, collapses runs of spaces and drops blank lines.
func CleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
