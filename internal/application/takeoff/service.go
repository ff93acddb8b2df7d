package takeoff

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// ============================================================================
// Result
// ============================================================================

// Takeoff is the complete result of one run: recognised components with net
// measures, the deduction report and the bill of quantities.
type Takeoff struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Source         string                 `json:"source,omitempty"`
	Labels         int                    `json:"labels"`
	Components     []*component.Component `json:"components"`
	Deduction      *DeductionReport       `json:"deduction"`
	Summary        *QuantitySummary       `json:"summary"`
	ExportLocation string                 `json:"export_location,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	Duration       time.Duration          `json:"duration"`
}

// RunRequest is the input of Service.Run.
type RunRequest struct {
	Name        string                     `json:"name"`
	Source      string                     `json:"source,omitempty"`
	Annotations []component.TextAnnotation `json:"annotations"`

	// Warnings raised before the run, such as skipped annotations.  They are
	// copied to the takeoff.
	Warnings []string `json:"warnings,omitempty"`
}

// ============================================================================
// Collaborators
// ============================================================================

// ComponentRecognizer converts annotations to components.
type ComponentRecognizer interface {
	Recognize(ctx context.Context, anns []component.TextAnnotation) ([]*component.Component, error)
}

// Deducer applies cross-component deductions in place.
type Deducer interface {
	Apply(ctx context.Context, comps []*component.Component) (*DeductionReport, error)
}

// Repository persists takeoff results.
type Repository interface {
	Save(ctx context.Context, t *Takeoff) error
	FindByID(ctx context.Context, id string) (*Takeoff, error)
	List(ctx context.Context, limit, offset int) ([]*Takeoff, error)
}

// Exporter writes a takeoff to external storage and returns its location.
type Exporter interface {
	Export(ctx context.Context, t *Takeoff) (string, error)
}

// Publisher announces completed takeoffs.
type Publisher interface {
	PublishCompleted(ctx context.Context, t *Takeoff) error
}

// RunMetrics records one observation per finished run.
type RunMetrics interface {
	RecordTakeoff(status string, d time.Duration, components, abnormal int)
}

// ============================================================================
// Service
// ============================================================================

// Service runs and retrieves takeoffs.
type Service interface {
	Run(ctx context.Context, req *RunRequest) (*Takeoff, error)
	Get(ctx context.Context, id string) (*Takeoff, error)
	List(ctx context.Context, limit, offset int) ([]*Takeoff, error)
}

// ServiceOption customises the service.
type ServiceOption func(*serviceImpl)

// WithRepository enables persistence.  A failed save fails the run.
func WithRepository(r Repository) ServiceOption { return func(s *serviceImpl) { s.repo = r } }

// WithExporter enables report export.  Export failures are recorded as
// warnings.
func WithExporter(e Exporter) ServiceOption { return func(s *serviceImpl) { s.exporter = e } }

// WithPublisher enables completion events.  Publish failures are recorded as
// warnings.
func WithPublisher(p Publisher) ServiceOption { return func(s *serviceImpl) { s.publisher = p } }

// WithRunMetrics sets the run telemetry sink.
func WithRunMetrics(m RunMetrics) ServiceOption { return func(s *serviceImpl) { s.metrics = m } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption { return func(s *serviceImpl) { s.now = now } }

type serviceImpl struct {
	recognizer ComponentRecognizer
	deducer    Deducer
	repo       Repository
	exporter   Exporter
	publisher  Publisher
	metrics    RunMetrics
	logger     logging.Logger
	now        func() time.Time
}

// NewService wires the takeoff pipeline.
func NewService(rec ComponentRecognizer, ded Deducer, logger logging.Logger, opts ...ServiceOption) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		recognizer: rec,
		deducer:    ded,
		metrics:    noopRunMetrics{},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run recognises, deducts, summarises and then hands the result to the
// configured sinks in order: repository, exporter, publisher.
func (s *serviceImpl) Run(ctx context.Context, req *RunRequest) (*Takeoff, error) {
	if req == nil || len(req.Annotations) == 0 {
		return nil, errors.New(errors.ErrCodeTakeoffEmptyDrawing, "drawing has no annotations")
	}
	start := s.now()
	t := &Takeoff{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Source:    req.Source,
		Labels:    len(req.Annotations),
		Warnings:  append([]string(nil), req.Warnings...),
		CreatedAt: start.UTC(),
	}
	if t.Name == "" {
		t.Name = "takeoff-" + t.ID[:8]
	}
	log := s.logger.With(logging.String("takeoff_id", t.ID))

	comps, err := s.recognizer.Recognize(ctx, req.Annotations)
	if err != nil {
		s.metrics.RecordTakeoff("failed", s.now().Sub(start), 0, 0)
		return nil, s.stageError(err, errors.ErrCodeTakeoffRecognition, "recognition failed")
	}
	report, err := s.deducer.Apply(ctx, comps)
	if err != nil {
		s.metrics.RecordTakeoff("failed", s.now().Sub(start), len(comps), 0)
		return nil, s.stageError(err, errors.ErrCodeTakeoffDeduction, "deduction failed")
	}
	t.Components = comps
	t.Deduction = report
	t.Summary = Summarize(comps)
	t.Duration = s.now().Sub(start)

	if s.repo != nil {
		if err := s.repo.Save(ctx, t); err != nil {
			log.Error("takeoff persist failed", logging.Err(err))
			s.metrics.RecordTakeoff("failed", t.Duration, len(comps), t.Summary.AbnormalCount)
			return nil, errors.Wrap(err, errors.ErrCodeTakeoffPersistFailed, "failed to persist takeoff")
		}
	}
	if s.exporter != nil {
		loc, err := s.exporter.Export(ctx, t)
		if err != nil {
			log.Warn("takeoff export failed", logging.Err(err))
			t.Warnings = append(t.Warnings, "export: "+err.Error())
		} else {
			t.ExportLocation = loc
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishCompleted(ctx, t); err != nil {
			log.Warn("takeoff event publish failed", logging.Err(err))
			t.Warnings = append(t.Warnings, "publish: "+err.Error())
		}
	}

	status := "completed"
	if len(t.Warnings) > 0 {
		status = "completed_with_warnings"
	}
	s.metrics.RecordTakeoff(status, t.Duration, len(comps), t.Summary.AbnormalCount)

	log.Info("takeoff completed",
		logging.String("name", t.Name),
		logging.Int("labels", t.Labels),
		logging.Int("components", len(t.Components)),
		logging.Int("abnormal", t.Summary.AbnormalCount),
		logging.Float64("total_volume", t.Summary.TotalVolume),
		logging.Float64("total_cost", t.Summary.TotalCost),
		logging.Duration("duration", t.Duration))
	return t, nil
}

func (s *serviceImpl) stageError(err error, code errors.ErrorCode, msg string) error {
	if errors.IsCode(err, errors.CodeCancelled) {
		return err
	}
	s.logger.Error(msg, logging.Err(err))
	return errors.Wrap(err, code, msg)
}

// Get loads a persisted takeoff.
func (s *serviceImpl) Get(ctx context.Context, id string) (*Takeoff, error) {
	if s.repo == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "takeoff persistence is not configured")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.InvalidParam("invalid takeoff id").WithDetail(id)
	}
	return s.repo.FindByID(ctx, id)
}

// List returns persisted takeoffs, newest first.
func (s *serviceImpl) List(ctx context.Context, limit, offset int) ([]*Takeoff, error) {
	if s.repo == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "takeoff persistence is not configured")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

type noopRunMetrics struct{}

func (noopRunMetrics) RecordTakeoff(string, time.Duration, int, int) {}
