// Package drawing reads the text annotations scraped from a drawing by the
// upstream extraction tool.
package drawing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// DefaultMaxBytes bounds the size of an annotation document.
const DefaultMaxBytes = 32 << 20

// AnnotationSource yields the annotations of one drawing.
type AnnotationSource interface {
	Annotations(ctx context.Context) ([]component.TextAnnotation, error)
}

// Document is an annotation export.  On disk it is either this object or a
// bare JSON array of annotations.
type Document struct {
	Name        string                     `json:"name,omitempty"`
	Source      string                     `json:"source,omitempty"`
	Annotations []component.TextAnnotation `json:"annotations"`

	// Skipped lists annotations dropped while decoding.
	Skipped []Skipped `json:"-"`
}

// Skipped is an annotation Decode could not use.
type Skipped struct {
	Index   int
	Content string
	Reason  string
}

// Warnings renders Skipped as one line per annotation.
func (d *Document) Warnings() []string {
	if len(d.Skipped) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.Skipped))
	for _, s := range d.Skipped {
		out = append(out, fmt.Sprintf("annotation %d skipped: %s", s.Index, s.Reason))
	}
	return out
}

var validKinds = map[component.AnnotationKind]bool{
	"":                            true,
	component.AnnotationText:      true,
	component.AnnotationMText:     true,
	component.AnnotationAttribute: true,
	component.AnnotationDimension: true,
	component.AnnotationLeader:    true,
}

// Decode reads a document from r.  Annotations with blank content are
// dropped.  Annotations of an unknown kind are dropped and listed in
// Skipped.
func Decode(r io.Reader, maxBytes int64) (*Document, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnnotationSourceRead, "failed to read annotations")
	}
	if int64(len(data)) > maxBytes {
		return nil, errors.Newf(errors.ErrCodeAnnotationSourceInvalid, "annotation document exceeds %d bytes", maxBytes)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeAnnotationSourceInvalid, "annotation document is empty")
	}

	var doc Document
	if data[0] == '[' {
		err = json.Unmarshal(data, &doc.Annotations)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnnotationSourceInvalid, "malformed annotation document")
	}

	kept := doc.Annotations[:0]
	for i, a := range doc.Annotations {
		if strings.TrimSpace(a.Content) == "" {
			continue
		}
		if !validKinds[a.Kind] {
			doc.Skipped = append(doc.Skipped, Skipped{
				Index:   i,
				Content: a.Content,
				Reason:  fmt.Sprintf("unknown kind %q", a.Kind),
			})
			continue
		}
		kept = append(kept, a)
	}
	doc.Annotations = kept
	return &doc, nil
}

// FileSource reads a document from a file, or from stdin when the path is "-".
type FileSource struct {
	path     string
	maxBytes int64
	stdin    io.Reader
}

// NewFileSource returns a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, maxBytes: DefaultMaxBytes, stdin: os.Stdin}
}

// WithStdin replaces the reader used for "-".
func (s *FileSource) WithStdin(r io.Reader) *FileSource {
	s.stdin = r
	return s
}

// Path returns the configured path.
func (s *FileSource) Path() string { return s.path }

// Document loads and decodes the file.  A document without a name is named
// after the file.
func (s *FileSource) Document(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCancelled, "annotation read cancelled")
	}
	if s.path == "" {
		return nil, errors.InvalidParam("annotation file path is required")
	}

	var r io.Reader
	if s.path == "-" {
		r = s.stdin
	} else {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeAnnotationSourceRead, "failed to open annotation file").WithDetail(s.path)
		}
		defer f.Close()
		r = f
	}

	doc, err := Decode(r, s.maxBytes)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok && s.path != "-" {
			return nil, appErr.WithDetail(s.path)
		}
		return nil, err
	}
	if s.path != "-" {
		if doc.Source == "" {
			doc.Source = filepath.Base(s.path)
		}
		if doc.Name == "" {
			doc.Name = strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
		}
	}
	return doc, nil
}

// Annotations implements AnnotationSource.
func (s *FileSource) Annotations(ctx context.Context) ([]component.TextAnnotation, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Annotations, nil
}

//Personal.AI order the ending
