package model

import "time"

// CommandStream is a raw printer-control byte sequence such as ZPL.
type CommandStream []byte

type Row struct {
	Label string
	Value string
}

type Section struct {
	Title string
	Rows  []Row
}

type Item struct {
	Code        string
	Description string
	Quantity    float64
	Unit        string
}

// StructuredDocument is the platform-agnostic summary prior to OS rendering.
// A nil Items slice means the item table is omitted.
type StructuredDocument struct {
	Title       string
	Sections    []Section
	Items       []Item
	GeneratedAt time.Time
}

func (d *StructuredDocument) HasItems() bool {
	return d != nil && d.Items != nil
}

// Section returns the section with the given title.
func (d *StructuredDocument) Section(title string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Title == title {
			return s, true
		}
	}
	return Section{}, false
}

type ArtifactKind int

const (
	ArtifactCommandStream ArtifactKind = iota + 1
	ArtifactDocument
)

// RenderedArtifact holds exactly one of Commands or Document, selected by Kind.
type RenderedArtifact struct {
	Kind     ArtifactKind
	Commands CommandStream
	Document *StructuredDocument
}

// DeliveryOutcome is the result of one attempted leg.
type DeliveryOutcome struct {
	Channel   Channel
	Success   bool
	Method    string
	ErrorKind ErrorKind
	Err       error
	// Artifacts lists temporary files the caller must remove after a delay.
	Artifacts []string
}
