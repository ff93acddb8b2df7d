package recognizer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds tuneable parameters for recognition.
type Config struct {
	// Concurrency bounds the number of labels recognised at once.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// VerifyBelow is the confidence under which the verifier is consulted.
	VerifyBelow float64 `json:"verify_below" yaml:"verify_below"`

	// ValidThreshold promotes Pending components to Valid.
	ValidThreshold float64 `json:"valid_threshold" yaml:"valid_threshold"`

	// VerifyTimeout bounds a single verification call.  Zero disables the
	// per-call deadline.
	VerifyTimeout time.Duration `json:"verify_timeout" yaml:"verify_timeout"`

	// ClampConfidence bounds final confidence to [0, 1].
	ClampConfidence bool `json:"clamp_confidence" yaml:"clamp_confidence"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     8,
		VerifyBelow:     VerifyBelow,
		ValidThreshold:  ValidThreshold,
		VerifyTimeout:   10 * time.Second,
		ClampConfidence: true,
	}
}

// ---------------------------------------------------------------------------
// Dependency interfaces
// ---------------------------------------------------------------------------

// PriceLookup resolves a category label to a unit price.
type PriceLookup interface {
	Lookup(ctx context.Context, label string) (*component.PriceItem, bool)
}

// Metrics records recognition telemetry.
type Metrics interface {
	RecordLabel(matched bool)
	RecordComponent(kind, status string)
	RecordVerification(outcome string)
	RecordPriceLookup(hit bool)
	ObserveStage(stage string, d time.Duration)
}

// ---------------------------------------------------------------------------
// Recognizer
// ---------------------------------------------------------------------------

// Recognizer runs the per-label recognition stages.
type Recognizer struct {
	classifier *Classifier
	extractor  *DimensionExtractor
	checker    *StandardsChecker
	verifier   Verifier
	prices     PriceLookup
	config     Config
	metrics    Metrics
	logger     logging.Logger
}

// Option customises a Recognizer.
type Option func(*Recognizer)

// WithVerifier enables external verification.
func WithVerifier(v Verifier) Option { return func(r *Recognizer) { r.verifier = v } }

// WithPriceLookup enables costing.
func WithPriceLookup(p PriceLookup) Option { return func(r *Recognizer) { r.prices = p } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option { return func(r *Recognizer) { r.metrics = m } }

// WithRules replaces the classification pattern library.
func WithRules(rules []Rule) Option {
	return func(r *Recognizer) { r.classifier = NewClassifier(rules) }
}

// WithRanges replaces the plausibility table.
func WithRanges(ranges []PlausibleRange) Option {
	return func(r *Recognizer) { r.checker = NewStandardsChecker(ranges, r.config.ValidThreshold) }
}

// New constructs a Recognizer.  Options are applied after the defaults, so a
// verifier and price lookup are optional.
func New(cfg Config, logger logging.Logger, opts ...Option) (*Recognizer, error) {
	if cfg.Concurrency < 0 {
		return nil, errors.Newf(errors.ErrCodeValidation, "recognition concurrency must be >= 0, got %d", cfg.Concurrency)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if cfg.VerifyBelow <= 0 {
		cfg.VerifyBelow = VerifyBelow
	}
	if cfg.ValidThreshold <= 0 {
		cfg.ValidThreshold = ValidThreshold
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := &Recognizer{
		classifier: NewClassifier(nil),
		extractor:  NewDimensionExtractor(logger),
		checker:    NewStandardsChecker(nil, cfg.ValidThreshold),
		config:     cfg,
		metrics:    noopMetrics{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = noopMetrics{}
	}
	return r, nil
}

// Recognize converts annotations into components, preserving input order and
// dropping labels that match no category.  Labels are processed concurrently;
// a failure in one label never aborts the others.  The only error is
// cancellation of ctx.
func (r *Recognizer) Recognize(ctx context.Context, anns []component.TextAnnotation) ([]*component.Component, error) {
	if len(anns) == 0 {
		return []*component.Component{}, nil
	}
	start := time.Now()
	defer func() { r.metrics.ObserveStage("recognition", time.Since(start)) }()

	results := make([]*component.Component, len(anns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)
	for i := range anns {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.recognizeIsolated(gctx, anns[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCancelled, "recognition cancelled")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCancelled, "recognition cancelled")
	}

	out := make([]*component.Component, 0, len(results))
	for _, c := range results {
		if c != nil {
			out = append(out, c)
		}
	}
	r.logger.Info("recognition complete",
		logging.Int("labels", len(anns)),
		logging.Int("components", len(out)),
		logging.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (r *Recognizer) recognizeIsolated(ctx context.Context, ann component.TextAnnotation) (c *component.Component) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("label recognition panicked",
				logging.String("text", ann.Content),
				logging.String("panic", fmt.Sprint(p)))
			c = nil
		}
	}()
	return r.RecognizeOne(ctx, ann)
}

// RecognizeOne runs every stage for a single annotation.  It returns nil when
// the label matches no category.
func (r *Recognizer) RecognizeOne(ctx context.Context, ann component.TextAnnotation) *component.Component {
	c := r.classifier.Classify(ann)
	r.metrics.RecordLabel(c != nil)
	if c == nil {
		r.logger.Debug("label dropped", logging.String("text", ann.Content), logging.String("layer", ann.Layer))
		return nil
	}

	r.extractor.ExtractDimensions(NormaliseText(ann.Content), c)
	c.Measure()
	r.checker.ApplyStandardsCheck(c)
	r.verify(ctx, c)

	if r.config.ClampConfidence {
		c.ClampConfidence()
	}
	r.price(ctx, c)

	r.metrics.RecordComponent(string(c.Kind), string(c.Status))
	return c
}

func (r *Recognizer) verify(ctx context.Context, c *component.Component) {
	if r.verifier == nil || c.Confidence >= r.config.VerifyBelow {
		return
	}
	vctx := ctx
	if r.config.VerifyTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, r.config.VerifyTimeout)
		defer cancel()
	}

	verdict, err := r.verifier.Verify(vctx, NewVerificationRequest(c))
	if err != nil {
		r.metrics.RecordVerification("error")
		r.logger.Warn("verification failed, keeping confidence",
			logging.String("text", c.SourceText),
			logging.Float64("confidence", c.Confidence),
			logging.Err(err))
		return
	}
	if verdict == nil {
		r.metrics.RecordVerification("empty")
		return
	}
	r.metrics.RecordVerification(string(verdict.Outcome))
	applyVerdict(c, verdict)
	c.PromoteIfConfident(r.config.ValidThreshold)
}

func (r *Recognizer) price(ctx context.Context, c *component.Component) {
	if r.prices == nil {
		return
	}
	item, ok := r.prices.Lookup(ctx, c.Category)
	r.metrics.RecordPriceLookup(ok)
	if !ok {
		return
	}
	c.Price = item
	c.RefreshCost()
}

// Classifier exposes the classifier in use.
func (r *Recognizer) Classifier() *Classifier { return r.classifier }

// ---------------------------------------------------------------------------
// No-op fallbacks
// ---------------------------------------------------------------------------

type noopMetrics struct{}

func (noopMetrics) RecordLabel(bool)                   {}
func (noopMetrics) RecordComponent(string, string)     {}
func (noopMetrics) RecordVerification(string)          {}
func (noopMetrics) RecordPriceLookup(bool)             {}
func (noopMetrics) ObserveStage(string, time.Duration) {}

//Personal.AI order the ending
