package recognizer

import (
	"context"
	"math"

	"github.com/turtacn/KeyQTO/internal/domain/component"
)

// Verification constants.
const (
	// VerifyBelow is the confidence under which external verification runs.
	VerifyBelow = 0.9

	// VerifiedBoost is the confidence change of an accept or reject verdict.
	VerifiedBoost = 0.1

	// MaxAdjustment bounds the delta of an adjust verdict.
	MaxAdjustment = 0.2
)

// Outcome is the decision carried by a Verdict.
type Outcome string

const (
	OutcomeAccept Outcome = "accept"
	OutcomeReject Outcome = "reject"
	OutcomeAdjust Outcome = "adjust"
)

// Verdict is the structured answer of a verification collaborator.
type Verdict struct {
	Outcome Outcome `json:"outcome"`
	Delta   float64 `json:"delta,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// ConfidenceDelta maps the verdict to a confidence change.  Unknown outcomes
// contribute nothing.
func (v Verdict) ConfidenceDelta() float64 {
	switch v.Outcome {
	case OutcomeAccept:
		return VerifiedBoost
	case OutcomeReject:
		return -VerifiedBoost
	case OutcomeAdjust:
		return math.Max(-MaxAdjustment, math.Min(MaxAdjustment, v.Delta))
	}
	return 0
}

// VerificationRequest describes one low-confidence recognition.
type VerificationRequest struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Length     float64 `json:"length,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Diameter   float64 `json:"diameter,omitempty"`
}

// NewVerificationRequest captures the fields of c a verifier needs.
func NewVerificationRequest(c *component.Component) VerificationRequest {
	return VerificationRequest{
		Text:       c.SourceText,
		Category:   c.Category,
		Confidence: c.Confidence,
		Length:     c.Length,
		Width:      c.Width,
		Height:     c.Height,
		Diameter:   c.Diameter,
	}
}

// Verifier is the external verification collaborator.  Implementations own
// their transport, caching and rate limiting.
type Verifier interface {
	Verify(ctx context.Context, req VerificationRequest) (*Verdict, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, req VerificationRequest) (*Verdict, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, req VerificationRequest) (*Verdict, error) {
	return f(ctx, req)
}

// AcceptOnSuccess wraps a collaborator that only reports success or failure.
// Every successful call is an accept verdict.
func AcceptOnSuccess(check func(ctx context.Context, text string) error) Verifier {
	return VerifierFunc(func(ctx context.Context, req VerificationRequest) (*Verdict, error) {
		if err := check(ctx, req.Text); err != nil {
			return nil, err
		}
		return &Verdict{Outcome: OutcomeAccept}, nil
	})
}

// applyVerdict folds v into c.  A reject leaves an already anomalous status
// untouched and otherwise marks the component for review.
func applyVerdict(c *component.Component, v *Verdict) {
	if v == nil {
		return
	}
	c.AdjustConfidence(v.ConfidenceDelta())
	if v.Outcome == OutcomeReject && !c.IsAbnormal() {
		c.MarkAnomalous(component.ReasonVerification)
	}
}

//Personal.AI order the ending
