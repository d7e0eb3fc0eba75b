// Package loader reads knowledge base documents from the filesystem.
//
// Supported formats: plain text (.txt), Markdown (.md), HTML (.html/.htm),
// PDF (.pdf) and MedQuAD-style question/answer JSON (.json). A file that
// fails to parse is skipped with a LoadError; the rest of the batch loads.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"github.com/JPisOP007/jeevo/internal/log"
)

// Document is one loaded source document, not yet chunked or embedded.
type Document struct {
	// Source is a short human-readable label derived from the filename,
	// used for answer citations ("[Source 1: malaria prevention]").
	Source string

	// Path is the file the document came from, relative to the load root.
	Path string

	// Kind is the detected format: "text", "markdown", "html", "pdf", "qa".
	Kind string

	// Content is the extracted plain text.
	Content string

	// Metadata carries per-document attributes stored alongside each chunk.
	Metadata map[string]string
}

// LoadError describes a single file that failed to load. The batch
// continues past it.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader walks a directory and extracts text from the supported formats.
type Loader struct {
	logger log.Logger
}

// New creates a Loader. The logger must not be nil.
func New(logger log.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadDir loads every supported file under dir. Files that fail to parse
// are skipped and reported in the returned error as joined *LoadError
// values; the returned documents are still valid when the error is non-nil.
// Unsupported extensions are ignored silently.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]Document, error) {
	var (
		docs     []Document
		loadErrs []error
	)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}

		fileDocs, loadErr := l.LoadFile(path)
		if loadErr != nil {
			l.logger.Warn("skipping document",
				"path", rel,
				"error", loadErr)
			loadErrs = append(loadErrs, &LoadError{Path: rel, Err: loadErr})
			return nil
		}
		for i := range fileDocs {
			fileDocs[i].Path = rel
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	l.logger.Info("documents loaded",
		"dir", dir,
		"loaded", len(docs),
		"failed", len(loadErrs))

	return docs, errors.Join(loadErrs...)
}

// LoadFile extracts the documents contained in a single file. Most formats
// yield one document; a MedQuAD JSON file yields one per question/answer pair.
func (l *Loader) LoadFile(path string) ([]Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt":
		return l.loadPlain(path, "text")
	case ".md", ".markdown":
		return l.loadPlain(path, "markdown")
	case ".html", ".htm":
		return l.loadHTML(path)
	case ".pdf":
		return l.loadPDF(path)
	case ".json":
		return l.loadQA(path)
	default:
		return nil, nil
	}
}

func (l *Loader) loadPlain(path, kind string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, errors.New("empty document")
	}
	return []Document{l.newDocument(path, kind, content)}, nil
}

func (l *Loader) loadHTML(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	// Scripts and styles contribute no readable text.
	doc.Find("script, style, noscript").Remove()

	content := collapseWhitespace(doc.Find("body").Text())
	if content == "" {
		content = collapseWhitespace(doc.Text())
	}
	if content == "" {
		return nil, errors.New("no text content in HTML")
	}

	d := l.newDocument(path, "html", content)
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		d.Source = title
		d.Metadata["title"] = title
	}
	return []Document{d}, nil
}

func (l *Loader) loadPDF(path string) ([]Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, fmt.Errorf("reading PDF text: %w", err)
	}

	content := collapseWhitespace(buf.String())
	if content == "" {
		return nil, errors.New("no text extracted from PDF")
	}
	return []Document{l.newDocument(path, "pdf", content)}, nil
}

// qaFile is the MedQuAD-style question/answer corpus format.
type qaFile struct {
	QAPairs []qaPair `json:"qa_pairs"`
}

type qaPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source"`
	Focus    string `json:"focus"`
}

func (l *Loader) loadQA(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file qaFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing QA JSON: %w", err)
	}
	if len(file.QAPairs) == 0 {
		return nil, errors.New("no qa_pairs in JSON document")
	}

	docs := make([]Document, 0, len(file.QAPairs))
	for i, pair := range file.QAPairs {
		question := strings.TrimSpace(pair.Question)
		answer := strings.TrimSpace(pair.Answer)
		if question == "" || answer == "" {
			continue
		}

		d := l.newDocument(path, "qa", fmt.Sprintf("Question: %s\n\nAnswer: %s", question, answer))
		d.Metadata["question"] = question
		if pair.Source != "" {
			d.Source = pair.Source
			d.Metadata["origin"] = pair.Source
		}
		if pair.Focus != "" {
			d.Metadata["focus"] = pair.Focus
		}
		d.Metadata["pair"] = fmt.Sprintf("%d", i)
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		return nil, errors.New("no usable qa_pairs in JSON document")
	}
	return docs, nil
}

func (l *Loader) newDocument(path, kind, content string) Document {
	return Document{
		Source:  SourceLabel(path),
		Path:    path,
		Kind:    kind,
		Content: content,
		Metadata: map[string]string{
			"kind": kind,
			"file": filepath.Base(path),
		},
	}
}

// SourceLabel derives a citation label from a file path: the filename stem
// with underscores and hyphens turned into spaces.
func SourceLabel(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.ReplaceAll(stem, "-", " ")
	return strings.TrimSpace(stem)
}

// collapseWhitespace normalizes runs of whitespace to single spaces while
// keeping paragraph breaks (blank lines) intact.
func collapseWhitespace(s string) string {
	paragraphs := strings.Split(s, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n\n")
}
