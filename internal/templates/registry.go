package templates

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

var (
	ErrUnknownTemplate = errors.New("unknown template")
	ErrMissingField    = errors.New("missing required field")
)

type UnknownTemplateError struct {
	Name string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("Unknown template: %s", e.Name)
}

func (e *UnknownTemplateError) Unwrap() error { return ErrUnknownTemplate }

type MissingFieldError struct {
	Template string
	Field    string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("template %s: %s %q", e.Template, ErrMissingField, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// Kind is the closed set of template families.
type Kind int

const (
	// KindLabel renders a thermal CommandStream for the Device Channel.
	KindLabel Kind = iota + 1
	// KindSummary renders a StructuredDocument for Document Delivery.
	KindSummary
)

func (k Kind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// Field is a required payload field and the keys it may arrive under.
type Field struct {
	Name string
	Keys []string
}

type labelFunc func(p model.Payload, generatedAt time.Time) model.CommandStream

type summaryFunc func(p model.Payload, generatedAt time.Time) *model.StructuredDocument

// Template binds a public template name to a pure render function.
type Template struct {
	Name     string
	Kind     Kind
	Required []Field

	label   labelFunc
	summary summaryFunc
}

// Render checks required fields and produces the artifact for t.Kind.
func (t Template) Render(p model.Payload, generatedAt time.Time) (model.RenderedArtifact, error) {
	for _, f := range t.Required {
		if _, ok := p.String(f.Keys...); !ok {
			return model.RenderedArtifact{}, &MissingFieldError{Template: t.Name, Field: f.Name}
		}
	}
	switch t.Kind {
	case KindLabel:
		return model.RenderedArtifact{Kind: model.ArtifactCommandStream, Commands: t.label(p, generatedAt)}, nil
	case KindSummary:
		return model.RenderedArtifact{Kind: model.ArtifactDocument, Document: t.summary(p, generatedAt)}, nil
	default:
		return model.RenderedArtifact{}, fmt.Errorf("template %s: invalid kind %d", t.Name, t.Kind)
	}
}

// Registry maps template names, including legacy aliases, to templates.
type Registry struct {
	templates map[string]Template
}

var palletIDField = Field{Name: "palletId", Keys: []string{"palletId", "pallet_id", "palet_id"}}

// NewRegistry returns a registry holding the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{templates: map[string]Template{}}

	label := Template{Name: "label", Kind: KindLabel, Required: []Field{palletIDField}, label: palletLabel}
	summary := Template{Name: "summary", Kind: KindSummary, Required: []Field{palletIDField}, summary: palletSummary}

	r.Register(label)
	r.Register(summary)
	r.alias("pallet_label", "label")
	r.alias("pallet_content_list_a5", "summary")

	r.Register(Template{
		Name:     "location_label",
		Kind:     KindLabel,
		Required: []Field{{Name: "locationId", Keys: []string{"locationId", "location_id", "id"}}},
		label:    locationLabel,
	})
	r.Register(Template{Name: "test_label", Kind: KindLabel, label: testLabel})
	r.Register(Template{
		Name:     "custom_zpl",
		Kind:     KindLabel,
		Required: []Field{{Name: "zpl", Keys: []string{"zpl", "zpl_command"}}},
		label:    customZPL,
	})
	return r
}

func (r *Registry) Register(t Template) {
	r.templates[t.Name] = t
}

// alias registers target under a legacy name; errors report the name the caller used.
func (r *Registry) alias(name, target string) {
	t := r.templates[target]
	t.Name = name
	r.templates[name] = t
}

// Resolve returns the template for name or an *UnknownTemplateError carrying it verbatim.
func (r *Registry) Resolve(name string) (Template, error) {
	t, ok := r.templates[name]
	if !ok {
		return Template{}, &UnknownTemplateError{Name: name}
	}
	return t, nil
}

// Render resolves name and renders payload. It performs no I/O and reads no clock.
func (r *Registry) Render(name string, p model.Payload, generatedAt time.Time) (model.RenderedArtifact, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return model.RenderedArtifact{}, err
	}
	return t.Render(p, generatedAt)
}

// Names lists every accepted template name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
