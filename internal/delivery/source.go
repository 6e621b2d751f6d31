package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
	"github.com/Riboost-Studio/label-print-agent/internal/templates"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatText Format = "txt"
)

var errPDFUnavailable = errors.New("pdf rendering unavailable")

// PDFRenderer turns a structured document into a paginated PDF.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, doc *model.StructuredDocument) ([]byte, error)
}

// Source materialises one job's document on demand, once per format.
// Every file it writes is uniquely named so concurrent jobs never collide.
type Source struct {
	JobID    string
	Document *model.StructuredDocument

	dir  string
	pdf  PDFRenderer
	stem string

	mu      sync.Mutex
	paths   map[Format]string
	errs    map[Format]error
	created []string
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func newSource(dir string, pdf PDFRenderer, jobID string, doc *model.StructuredDocument) *Source {
	return &Source{
		JobID:    jobID,
		Document: doc,
		dir:      dir,
		pdf:      pdf,
		stem:     fmt.Sprintf("summary_%s_%s", unsafeName.ReplaceAllString(jobID, "_"), uuid.NewString()[:8]),
		paths:    map[Format]string{},
		errs:     map[Format]error{},
	}
}

// Path returns the artifact for f, rendering and writing it on first use.
func (s *Source) Path(ctx context.Context, f Format) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.paths[f]; ok {
		return p, nil
	}
	if err, ok := s.errs[f]; ok {
		return "", err
	}

	data, err := s.render(ctx, f)
	if err == nil {
		var p string
		p, err = s.write(string(f), data)
		if err == nil {
			s.paths[f] = p
			return p, nil
		}
	}
	s.errs[f] = err
	return "", err
}

func (s *Source) render(ctx context.Context, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return templates.DocumentText(s.Document), nil
	case FormatHTML:
		return templates.DocumentHTML(s.Document)
	case FormatPDF:
		if s.pdf == nil {
			return nil, errPDFUnavailable
		}
		return s.pdf.RenderPDF(ctx, s.Document)
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// viewerArtifact writes a fresh HTML copy for the viewer fallback.
func (s *Source) viewerArtifact() (string, error) {
	data, err := templates.DocumentHTML(s.Document)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write("view.html", data)
}

// write must be called with s.mu held.
func (s *Source) write(suffix string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(s.dir, s.stem+"."+suffix)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	s.created = append(s.created, p)
	return p, nil
}

// Created lists every file written so far.
func (s *Source) Created() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.created...)
}
