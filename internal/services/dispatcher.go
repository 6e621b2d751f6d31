package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Riboost-Studio/label-print-agent/internal/device"
	"github.com/Riboost-Studio/label-print-agent/internal/metrics"
	"github.com/Riboost-Studio/label-print-agent/internal/model"
	"github.com/Riboost-Studio/label-print-agent/internal/templates"
)

// documentTimeout bounds one document leg, covering PDF rendering and every print command.
const documentTimeout = 2 * time.Minute

var (
	ErrQueueFull      = errors.New("device queue full")
	ErrDuplicateJob   = errors.New("job already in flight")
	ErrMissingJobID   = errors.New("job has no jobId")
	ErrShuttingDown   = errors.New("agent shutting down")
	errSummarySkipped = errors.New("summary skipped because the label failed")
)

// DeviceSender is the dispatcher's view of the Device Channel session.
type DeviceSender interface {
	Send(ctx context.Context, data []byte) error
	Reconnect(ctx context.Context) error
}

// DocumentDeliverer sends a structured document to the host's default printer.
type DocumentDeliverer interface {
	Deliver(ctx context.Context, jobID string, doc *model.StructuredDocument) model.DeliveryOutcome
}

// Reporter carries one result event per job back to the server.
type Reporter interface {
	Report(jobID string, res model.PrintResult)
}

// ReportFunc adapts a plain function to Reporter.
type ReportFunc func(jobID string, res model.PrintResult)

func (f ReportFunc) Report(jobID string, res model.PrintResult) { f(jobID, res) }

// ArtifactCleaner removes temporary delivery files after a delay.
type ArtifactCleaner interface {
	Schedule(paths ...string)
}

type DispatcherOptions struct {
	Registry  *templates.Registry
	Device    DeviceSender
	Documents DocumentDeliverer
	Reporter  Reporter
	Cleaner   ArtifactCleaner
	Metrics   *metrics.Collector
	Logger    *slog.Logger
	Policy    model.DispatchConfig

	// Observe, when set, is called on every job state transition.
	Observe func(jobID string, state model.JobState)
	Now     func() time.Time
}

// Dispatcher drives jobs from receipt to a single reported result. Device legs
// run one at a time on a dedicated worker; document legs run concurrently.
type Dispatcher struct {
	registry *templates.Registry
	device   DeviceSender
	docs     DocumentDeliverer
	reporter Reporter
	cleaner  ArtifactCleaner
	metrics  *metrics.Collector
	logger   *slog.Logger
	policy   model.DispatchConfig
	observe  func(string, model.JobState)
	now      func() time.Time

	deviceQ chan *jobRun
	docSem  chan struct{}
	legs    sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
}

// jobRun is a rendered job waiting for, or going through, delivery.
type jobRun struct {
	job      model.Job
	commands model.CommandStream
	summary  *model.StructuredDocument
	outcomes []model.DeliveryOutcome
	notes    []string

	// done is set for printer_command runs, which answer through it instead of a job result.
	done func(error)
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	policy := opts.Policy
	if policy.QueueCapacity <= 0 {
		policy.QueueCapacity = 32
	}
	if policy.DocumentWorkers <= 0 {
		policy.DocumentWorkers = 2
	}
	d := &Dispatcher{
		registry: opts.Registry,
		device:   opts.Device,
		docs:     opts.Documents,
		reporter: opts.Reporter,
		cleaner:  opts.Cleaner,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		policy:   policy,
		observe:  opts.Observe,
		now:      opts.Now,
		deviceQ:  make(chan *jobRun, policy.QueueCapacity),
		docSem:   make(chan struct{}, policy.DocumentWorkers),
		inflight: map[string]struct{}{},
	}
	if d.registry == nil {
		d.registry = templates.NewRegistry()
	}
	if d.metrics == nil {
		d.metrics = metrics.NewCollector()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Submit accepts a job. Template and payload errors are reported immediately;
// otherwise the job is queued for the device worker or handed to a document leg.
// The returned error only signals jobs that were not accepted for reporting.
func (d *Dispatcher) Submit(job model.Job) error {
	d.metrics.RecordReceived()
	if job.ID == "" {
		return ErrMissingJobID
	}

	d.mu.Lock()
	if _, dup := d.inflight[job.ID]; dup {
		d.mu.Unlock()
		d.logger.Warn("ignoring duplicate job", "job", job.ID)
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	d.inflight[job.ID] = struct{}{}
	closed := d.closed
	d.mu.Unlock()

	d.transition(job.ID, model.JobReceived)
	log := d.logger.With("job", job.ID, "template", job.Template)
	log.Info("print job received", "requested_by", job.RequestedBy)

	if closed {
		d.reject(job, "shutdown", ErrShuttingDown)
		return nil
	}
	if job.PayloadErr != nil {
		d.reject(job, "invalid_payload", fmt.Errorf("invalid payload: %w", job.PayloadErr))
		return nil
	}

	tmpl, err := d.registry.Resolve(job.Template)
	if err != nil {
		d.reject(job, "unknown_template", err)
		return nil
	}
	d.transition(job.ID, model.JobTemplateResolved)

	generatedAt := d.now()
	artifact, err := tmpl.Render(job.Payload, generatedAt)
	if err != nil {
		d.reject(job, "missing_field", err)
		return nil
	}
	run := &jobRun{job: job}

	switch artifact.Kind {
	case model.ArtifactCommandStream:
		run.commands = artifact.Commands
		if job.Payload.Bool("printSummary", "print_summary") {
			// Labels without pallet identity still print; the summary is dropped with a note.
			summary, err := d.registry.Render("summary", job.Payload, generatedAt)
			if err != nil {
				log.Warn("summary not rendered", "err", err)
				run.notes = append(run.notes, fmt.Sprintf("summary skipped: %v", err))
			} else {
				run.summary = summary.Document
			}
		}
		d.transition(job.ID, model.JobRendered)
		d.enqueueDevice(run)
	case model.ArtifactDocument:
		run.summary = artifact.Document
		d.transition(job.ID, model.JobRendered)
		d.startDocumentLeg(run)
	}
	return nil
}

// SubmitCommand queues raw device commands behind any waiting labels. done is
// called exactly once with the delivery error, or nil on success.
func (d *Dispatcher) SubmitCommand(cmd model.PrinterCommandEvent, done func(error)) {
	artifact, err := d.registry.Render("custom_zpl", model.Payload{"zpl": cmd.Command}, d.now())
	if err != nil {
		done(err)
		return
	}
	d.enqueueDevice(&jobRun{job: model.Job{Template: "custom_zpl"}, commands: artifact.Commands, done: done})
}

func (d *Dispatcher) enqueueDevice(run *jobRun) {
	var err error
	d.mu.Lock()
	switch {
	case d.closed:
		err = ErrShuttingDown
	default:
		select {
		case d.deviceQ <- run:
			d.metrics.SetDeviceQueueDepth(len(d.deviceQ))
		default:
			err = fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(d.deviceQ))
		}
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("device leg not queued", "job", run.job.ID, "err", err)
		d.finishFailed(run, model.ChannelDevice, err)
	}
}

// Run is the device worker. It processes queued device legs strictly in order
// until ctx is cancelled, then fails whatever is still queued and waits for
// running document legs.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			d.shutdown()
			return nil
		}
		select {
		case run := <-d.deviceQ:
			d.metrics.SetDeviceQueueDepth(len(d.deviceQ))
			d.processDevice(ctx, run)
		case <-ctx.Done():
			d.shutdown()
			return nil
		}
	}
}

func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	for {
		select {
		case run := <-d.deviceQ:
			d.finishFailed(run, model.ChannelDevice, ErrShuttingDown)
		default:
			d.metrics.SetDeviceQueueDepth(0)
			d.legs.Wait()
			return
		}
	}
}

// QueueDepth reports how many jobs wait for the device.
func (d *Dispatcher) QueueDepth() int {
	return len(d.deviceQ)
}

func (d *Dispatcher) processDevice(ctx context.Context, run *jobRun) {
	// An accepted job runs to completion even during shutdown.
	legCtx := context.WithoutCancel(ctx)
	log := d.logger.With("job", run.job.ID)
	if run.done != nil {
		log = d.logger.With("printer_command", true)
	}

	start := time.Now()
	err := d.sendWithRetry(legCtx, log, run.commands)
	d.metrics.RecordLeg(string(model.ChannelDevice), err == nil, time.Since(start).Seconds())

	out := model.DeliveryOutcome{Channel: model.ChannelDevice, Success: err == nil, Method: "usb"}
	if err != nil {
		out.Err = err
		out.ErrorKind = deviceErrorKind(err)
		log.Error("thermal print failed", "err", err)
	} else {
		if run.done == nil {
			d.transition(run.job.ID, model.JobDeviceDelivered)
		}
		log.Info("thermal label printed")
	}
	run.outcomes = append(run.outcomes, out)

	if run.summary != nil {
		if out.Success || d.policy.AlwaysSummarize {
			d.startDocumentLeg(run)
			return
		}
		run.notes = append(run.notes, errSummarySkipped.Error())
	}
	d.finish(run)
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, log *slog.Logger, data []byte) error {
	err := d.device.Send(ctx, data)
	if err == nil || !retryableDeviceError(err) {
		return err
	}

	log.Warn("device send failed, reconnecting for one retry", "err", err)
	d.metrics.RecordDeviceRetry()
	if rerr := d.device.Reconnect(ctx); rerr != nil {
		return fmt.Errorf("%w; reconnect failed: %w", err, rerr)
	}
	return d.device.Send(ctx, data)
}

// retryableDeviceError is the single place deciding whether a device failure gets a reconnect-and-retry.
func retryableDeviceError(err error) bool {
	return errors.Is(err, device.ErrLink) || errors.Is(err, device.ErrHandleInvalid)
}

func deviceErrorKind(err error) model.ErrorKind {
	switch {
	case errors.Is(err, device.ErrHandleInvalid):
		return model.ErrorKindHandleInvalid
	case errors.Is(err, device.ErrLink):
		return model.ErrorKindLink
	case errors.Is(err, device.ErrPermissionDenied):
		return model.ErrorKindPermissionDenied
	case errors.Is(err, device.ErrNotFound):
		return model.ErrorKindNotFound
	default:
		return model.ErrorKindLink
	}
}

// startDocumentLeg runs Document Delivery off the calling goroutine, bounded by the worker semaphore.
func (d *Dispatcher) startDocumentLeg(run *jobRun) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.finishFailed(run, model.ChannelDocument, ErrShuttingDown)
		return
	}
	d.legs.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.legs.Done()
		d.docSem <- struct{}{}
		defer func() { <-d.docSem }()

		ctx, cancel := context.WithTimeout(context.Background(), documentTimeout)
		defer cancel()

		start := time.Now()
		out := d.docs.Deliver(ctx, run.job.ID, run.summary)
		d.metrics.RecordLeg(string(model.ChannelDocument), out.Success, time.Since(start).Seconds())
		if out.Success {
			d.metrics.RecordDocumentMethod(out.Method)
			d.transition(run.job.ID, model.JobDocumentDelivered)
		}
		if d.cleaner != nil && len(out.Artifacts) > 0 {
			d.cleaner.Schedule(out.Artifacts...)
		}
		run.outcomes = append(run.outcomes, out)
		d.finish(run)
	}()
}

// finishFailed reports a leg that could not be attempted.
func (d *Dispatcher) finishFailed(run *jobRun, channel model.Channel, err error) {
	run.outcomes = append(run.outcomes, model.DeliveryOutcome{Channel: channel, Err: err})
	d.finish(run)
}

// finish reports the job once; success requires every attempted leg to succeed.
func (d *Dispatcher) finish(run *jobRun) {
	if run.done != nil {
		var err error
		for _, o := range run.outcomes {
			if !o.Success {
				err = o.Err
			}
		}
		run.done(err)
		return
	}

	res := model.PrintResult{Success: true}
	var parts []string
	for _, o := range run.outcomes {
		if !o.Success {
			res.Success = false
		}
		parts = append(parts, describeOutcome(o))
	}
	parts = append(parts, run.notes...)
	res.Message = strings.Join(parts, "; ")
	d.report(run.job, res, model.JobReported)
}

func (d *Dispatcher) reject(job model.Job, reason string, err error) {
	d.metrics.RecordRejected(reason)
	d.logger.Warn("print job rejected", "job", job.ID, "reason", reason, "err", err)
	d.report(job, model.PrintResult{Success: false, Message: err.Error()}, model.JobRejected)
}

func (d *Dispatcher) report(job model.Job, res model.PrintResult, terminal model.JobState) {
	d.mu.Lock()
	delete(d.inflight, job.ID)
	d.mu.Unlock()

	d.transition(job.ID, terminal)
	d.reporter.Report(job.ID, res)
	d.metrics.RecordReported(res.Success)
	d.logger.Info("print job finished", "job", job.ID, "success", res.Success, "message", res.Message)
}

func (d *Dispatcher) transition(jobID string, state model.JobState) {
	if d.observe != nil {
		d.observe(jobID, state)
	}
}

func describeOutcome(o model.DeliveryOutcome) string {
	switch o.Channel {
	case model.ChannelDevice:
		if o.Success {
			return "Thermal label printed successfully"
		}
		return fmt.Sprintf("Thermal print job failed: %v", o.Err)
	default:
		if o.Success {
			return "Summary sent to printer via " + o.Method
		}
		return fmt.Sprintf("Summary print failed: %v", o.Err)
	}
}
