package delivery

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeMechanism struct {
	name   string
	format Format
	err    error
	rec    *recorder
}

func (m *fakeMechanism) Name() string { return m.name }

func (m *fakeMechanism) Submit(ctx context.Context, src *Source) error {
	m.rec.add(m.name)
	if m.err != nil {
		return m.err
	}
	if m.format != "" {
		_, err := src.Path(ctx, m.format)
		return err
	}
	return nil
}

type fakeViewer struct {
	err    error
	opened []string
}

func (v *fakeViewer) Name() string { return "fake-viewer" }

func (v *fakeViewer) Open(_ context.Context, path string) error {
	v.opened = append(v.opened, path)
	return v.err
}

type fakePDF struct{ err error }

func (p fakePDF) RenderPDF(_ context.Context, doc *model.StructuredDocument) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF-1.4\n" + doc.Title), nil
}

func sampleDoc() *model.StructuredDocument {
	return &model.StructuredDocument{
		Title: "Pallet Content Summary",
		Sections: []model.Section{{Title: "Basic Info", Rows: []model.Row{
			{Label: "Pallet ID", Value: "PLT-001"},
			{Label: "Location", Value: "A1"},
		}}},
		GeneratedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	d := New(Options{
		Mechanisms: []Mechanism{
			&fakeMechanism{name: "m1", err: boom, rec: rec},
			&fakeMechanism{name: "m2", err: boom, rec: rec},
			&fakeMechanism{name: "m3", rec: rec},
			&fakeMechanism{name: "m4", rec: rec},
		},
		Viewer: &fakeViewer{},
		TmpDir: t.TempDir(),
	})

	out := d.Deliver(context.Background(), "j1", sampleDoc())
	assert.True(t, out.Success)
	assert.Equal(t, "m3", out.Method)
	assert.Equal(t, model.ChannelDocument, out.Channel)
	assert.Equal(t, model.ErrorKindNone, out.ErrorKind)
	assert.Equal(t, []string{"m1", "m2", "m3"}, rec.list())
}

func TestViewerFallback(t *testing.T) {
	rec := &recorder{}
	dir := t.TempDir()
	viewer := &fakeViewer{}
	d := New(Options{
		Mechanisms: []Mechanism{&fakeMechanism{name: "m1", err: errors.New("no printer"), rec: rec}},
		Viewer:     viewer,
		TmpDir:     dir,
	})

	out := d.Deliver(context.Background(), "j/2", sampleDoc())
	require.True(t, out.Success)
	assert.Equal(t, "viewer:fake-viewer", out.Method)

	require.Len(t, viewer.opened, 1)
	artifact := viewer.opened[0]
	assert.Equal(t, dir, filepath.Dir(artifact))
	assert.True(t, strings.HasPrefix(filepath.Base(artifact), "summary_j_2_"))
	assert.Contains(t, out.Artifacts, artifact)

	body, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Contains(t, string(body), "PLT-001")
}

func TestAllMechanismsExhausted(t *testing.T) {
	rec := &recorder{}
	viewer := &fakeViewer{err: errors.New("no display")}
	d := New(Options{
		Mechanisms: []Mechanism{
			&fakeMechanism{name: "m1", err: errors.New("a"), rec: rec},
			&fakeMechanism{name: "m2", err: errors.New("b"), rec: rec},
		},
		Viewer: viewer,
		TmpDir: t.TempDir(),
	})

	out := d.Deliver(context.Background(), "j3", sampleDoc())
	assert.False(t, out.Success)
	assert.Equal(t, model.ErrorKindAllMechanismsExhausted, out.ErrorKind)
	assert.ErrorIs(t, out.Err, ErrAllMechanismsExhausted)
	assert.Contains(t, out.Err.Error(), "no display")
	// The viewer artifact was still created before the attempt.
	assert.Len(t, viewer.opened, 1)
	assert.FileExists(t, viewer.opened[0])
}

func TestNoViewerIsExhaustion(t *testing.T) {
	d := New(Options{TmpDir: t.TempDir()})
	out := d.Deliver(context.Background(), "j4", sampleDoc())
	assert.False(t, out.Success)
	assert.Equal(t, model.ErrorKindAllMechanismsExhausted, out.ErrorKind)
}

func TestSourceRendersEachFormatOnce(t *testing.T) {
	dir := t.TempDir()
	src := newSource(dir, fakePDF{}, "j5", sampleDoc())

	p1, err := src.Path(context.Background(), FormatPDF)
	require.NoError(t, err)
	p2, err := src.Path(context.Background(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, ".pdf", filepath.Ext(p1))

	txt, err := src.Path(context.Background(), FormatText)
	require.NoError(t, err)
	body, err := os.ReadFile(txt)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Pallet ID:")

	assert.Len(t, src.Created(), 2)
}

func TestSourceWithoutPDFRenderer(t *testing.T) {
	src := newSource(t.TempDir(), nil, "j6", sampleDoc())
	_, err := src.Path(context.Background(), FormatPDF)
	assert.ErrorIs(t, err, errPDFUnavailable)
	assert.Empty(t, src.Created())
}

func TestSourceNamesAreUniquePerJob(t *testing.T) {
	dir := t.TempDir()
	a := newSource(dir, nil, "same", sampleDoc())
	b := newSource(dir, nil, "same", sampleDoc())
	pa, err := a.Path(context.Background(), FormatHTML)
	require.NoError(t, err)
	pb, err := b.Path(context.Background(), FormatHTML)
	require.NoError(t, err)
	assert.NotEqual(t, pa, pb)
}

type scriptedRunner struct {
	mu      sync.Mutex
	calls   [][]string
	results map[string]runResult
}

type runResult struct {
	out []byte
	err error
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	res := r.results[name]
	return res.out, res.err
}

func (r *scriptedRunner) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		out = append(out, c[0])
	}
	return out
}

func TestLinuxChainProbesDefaultPrinter(t *testing.T) {
	runner := &scriptedRunner{results: map[string]runResult{
		"lpstat": {out: []byte("no system default destination\n")},
		"lpr":    {err: errors.New("exit status 1")},
	}}
	mechanisms, viewer := Platform("linux", runner)
	require.Len(t, mechanisms, 3)
	assert.Equal(t, "xdg-open", viewer.Name())

	d := New(Options{Mechanisms: mechanisms, Viewer: viewer, PDF: fakePDF{}, TmpDir: t.TempDir()})
	out := d.Deliver(context.Background(), "j7", sampleDoc())

	require.True(t, out.Success)
	assert.Equal(t, "lp-text", out.Method)
	// lp is skipped after the failed probe, lpr fails, then the text conversion is printed.
	assert.Equal(t, []string{"lpstat", "lpr", "lp"}, runner.names())
	last := runner.calls[len(runner.calls)-1]
	assert.Equal(t, ".txt", filepath.Ext(last[len(last)-1]))
}

func TestLinuxChainUsesLpWhenDefaultExists(t *testing.T) {
	runner := &scriptedRunner{results: map[string]runResult{
		"lpstat": {out: []byte("system default destination: Office_Laser\n")},
	}}
	mechanisms, viewer := Platform("linux", runner)
	d := New(Options{Mechanisms: mechanisms, Viewer: viewer, PDF: fakePDF{}, TmpDir: t.TempDir()})

	out := d.Deliver(context.Background(), "j8", sampleDoc())
	require.True(t, out.Success)
	assert.Equal(t, "lp", out.Method)
	assert.Equal(t, []string{"lpstat", "lp"}, runner.names())
}

func TestPlatformChains(t *testing.T) {
	runner := &scriptedRunner{}

	mechanisms, viewer := Platform("darwin", runner)
	assert.Len(t, mechanisms, 3)
	assert.Equal(t, "open", viewer.Name())

	mechanisms, viewer = Platform("windows", runner)
	names := New(Options{Mechanisms: mechanisms}).MechanismNames()
	assert.Equal(t, []string{"powershell-print", "notepad"}, names)
	assert.Equal(t, "rundll32", viewer.Name())
}

func TestPowerShellQuoting(t *testing.T) {
	assert.Equal(t, `'C:\Temp\it''s.pdf'`, psQuote(`C:\Temp\it's.pdf`))
}

func TestCleanerRemovesAfterDelay(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "summary.pdf")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	c := NewCleaner(20*time.Millisecond, nil)
	c.Schedule(p)
	assert.FileExists(t, p)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(p)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return c.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCleanerFlush(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "summary.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	c := NewCleaner(time.Hour, nil)
	c.Schedule(p, p)
	assert.Equal(t, 1, c.Pending())
	c.Flush()
	assert.NoFileExists(t, p)
	assert.Equal(t, 0, c.Pending())
}

func TestBasicPDFDrawsDocument(t *testing.T) {
	doc := sampleDoc()
	doc.Items = []model.Item{{Code: "M1", Description: "Résine", Quantity: 2, Unit: "bag"}}

	pdf, err := BasicPDF{}.RenderPDF(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.Greater(t, len(pdf), 500)
}

func TestPDFChainFallsBack(t *testing.T) {
	chain := PDFChain{fakePDF{err: errors.New("chrome crashed")}, fakePDF{}}
	pdf, err := chain.RenderPDF(context.Background(), sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4\nPallet Content Summary", string(pdf))

	_, err = PDFChain{fakePDF{err: errors.New("a")}, fakePDF{err: errors.New("b")}}.RenderPDF(context.Background(), sampleDoc())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")

	_, err = PDFChain{}.RenderPDF(context.Background(), sampleDoc())
	assert.ErrorIs(t, err, errPDFUnavailable)
}
