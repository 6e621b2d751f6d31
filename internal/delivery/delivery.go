package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

// Delivery sends structured documents to the host's default printer.
type Delivery struct {
	mechanisms []Mechanism
	viewer     Viewer
	pdf        PDFRenderer
	dir        string
	logger     *slog.Logger
}

type Options struct {
	Mechanisms []Mechanism
	Viewer     Viewer
	// PDF may be nil; PDF-based mechanisms then fail and the chain moves on.
	PDF    PDFRenderer
	TmpDir string
	Logger *slog.Logger
}

func New(opts Options) *Delivery {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Delivery{
		mechanisms: opts.Mechanisms,
		viewer:     opts.Viewer,
		pdf:        opts.PDF,
		dir:        opts.TmpDir,
		logger:     logger,
	}
}

// MechanismNames lists the chain in trial order.
func (d *Delivery) MechanismNames() []string {
	names := make([]string, 0, len(d.mechanisms))
	for _, m := range d.mechanisms {
		names = append(names, m.Name())
	}
	return names
}

// Deliver tries each mechanism in order and stops at the first success. When
// all fail, the document is written to a fresh artifact and opened in a viewer.
// Files listed in the outcome's Artifacts belong to the caller.
func (d *Delivery) Deliver(ctx context.Context, jobID string, doc *model.StructuredDocument) model.DeliveryOutcome {
	src := newSource(d.dir, d.pdf, jobID, doc)
	out := model.DeliveryOutcome{Channel: model.ChannelDocument}

	var errs []error
	for _, m := range d.mechanisms {
		err := m.Submit(ctx, src)
		if err == nil {
			d.logger.Info("document submitted", "job", jobID, "method", m.Name())
			out.Success = true
			out.Method = m.Name()
			out.Artifacts = src.Created()
			return out
		}
		d.logger.Warn("delivery mechanism failed", "job", jobID, "method", m.Name(), "err", err)
		errs = append(errs, err)
	}

	viewErr := d.openViewer(ctx, src)
	out.Artifacts = src.Created()
	if viewErr == nil {
		d.logger.Info("document opened for manual printing", "job", jobID, "viewer", d.viewer.Name())
		out.Success = true
		out.Method = "viewer:" + d.viewer.Name()
		return out
	}

	errs = append(errs, viewErr)
	out.ErrorKind = model.ErrorKindAllMechanismsExhausted
	out.Err = fmt.Errorf("%w: %w", ErrAllMechanismsExhausted, errors.Join(errs...))
	d.logger.Error("document delivery exhausted", "job", jobID, "err", out.Err)
	return out
}

func (d *Delivery) openViewer(ctx context.Context, src *Source) error {
	if d.viewer == nil {
		return errors.New("no viewer available")
	}
	path, err := src.viewerArtifact()
	if err != nil {
		return fmt.Errorf("viewer artifact: %w", err)
	}
	return d.viewer.Open(ctx, path)
}
