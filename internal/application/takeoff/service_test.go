package takeoff

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
	"github.com/turtacn/KeyQTO/internal/testutil"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// MockRepository is a mock implementation of Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Save(ctx context.Context, t *Takeoff) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id string) (*Takeoff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Takeoff), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, limit, offset int) ([]*Takeoff, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Takeoff), args.Error(1)
}

// MockExporter is a mock implementation of Exporter.
type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) Export(ctx context.Context, t *Takeoff) (string, error) {
	args := m.Called(ctx, t)
	return args.String(0), args.Error(1)
}

// MockPublisher is a mock implementation of Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishCompleted(ctx context.Context, t *Takeoff) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

type stubRecognizer struct {
	comps []*component.Component
	err   error
}

func (s stubRecognizer) Recognize(context.Context, []component.TextAnnotation) ([]*component.Component, error) {
	return s.comps, s.err
}

type stubDeducer struct{ err error }

func (s stubDeducer) Apply(context.Context, []*component.Component) (*DeductionReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &DeductionReport{}, nil
}

func drawing() *RunRequest {
	at := func(x float64) component.Position { return component.Position{X: x} }
	return &RunRequest{
		Name:   "level 3",
		Source: "L3.json",
		Annotations: []component.TextAnnotation{
			{Content: "C30现浇板 10000×10000 h=120", Layer: "S-STRU", Position: at(0)},
			{Content: "C30混凝土柱600×600×3000", Layer: "S-STRU", Position: at(1)},
			{Content: "剪力墙 40000×200×3000", Layer: "S-STRU", Position: at(20)},
			{Content: "M0920 900×2000", Layer: "S-STRU", Position: at(21)},
			{Content: "设计说明", Layer: "S-STRU", Position: at(50)},
		},
	}
}

func newPipeline(t *testing.T, opts ...ServiceOption) Service {
	t.Helper()
	rec, err := recognizer.New(recognizer.DefaultConfig(), nil)
	require.NoError(t, err)
	return NewService(rec, NewEngine(DefaultDeductionConfig(), nil, nil), nil, opts...)
}

func TestRun_FullPipeline(t *testing.T) {
	repo := new(MockRepository)
	exporter := new(MockExporter)
	publisher := new(MockPublisher)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*takeoff.Takeoff")).Return(nil)
	exporter.On("Export", mock.Anything, mock.Anything).Return("s3://exports/level-3.csv", nil)
	publisher.On("PublishCompleted", mock.Anything, mock.Anything).Return(nil)

	svc := newPipeline(t, WithRepository(repo), WithExporter(exporter), WithPublisher(publisher))

	res, err := svc.Run(context.Background(), drawing())

	require.NoError(t, err)
	assert.Equal(t, "level 3", res.Name)
	assert.Equal(t, 5, res.Labels)
	require.Len(t, res.Components, 4)
	assert.Equal(t, "s3://exports/level-3.csv", res.ExportLocation)
	assert.Empty(t, res.Warnings)

	slab := res.Components[0]
	assert.Equal(t, component.KindSlab, slab.Kind)
	assert.InDelta(t, 99.64, slab.Area, 1e-9)
	assert.InDelta(t, 11.957, res.Summary.ByType["C30 concrete slab"].Volume, 1e-9)

	wall := res.Components[2]
	assert.InDelta(t, 23.64, wall.Volume, 1e-9)

	repo.AssertExpectations(t)
	exporter.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestRun_EmptyDrawing(t *testing.T) {
	svc := newPipeline(t)

	_, err := svc.Run(context.Background(), &RunRequest{Name: "empty"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeTakeoffEmptyDrawing))

	_, err = svc.Run(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTakeoffEmptyDrawing))
}

func TestRun_CarriesRequestWarnings(t *testing.T) {
	req := drawing()
	req.Warnings = []string{`annotation 7 skipped: unknown kind "hatch"`}

	res, err := newPipeline(t).Run(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, req.Warnings, res.Warnings)
	assert.NotEmpty(t, res.Components)
}

func TestRun_DefaultName(t *testing.T) {
	req := drawing()
	req.Name = "   "

	res, err := newPipeline(t).Run(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "takeoff-"+res.ID[:8], res.Name)
}

func TestRun_PersistFailureFailsRun(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(stderrors.New("connection refused"))
	publisher := new(MockPublisher)

	svc := newPipeline(t, WithRepository(repo), WithPublisher(publisher))

	res, err := svc.Run(context.Background(), drawing())

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTakeoffPersistFailed))
	publisher.AssertNotCalled(t, "PublishCompleted", mock.Anything, mock.Anything)
}

func TestRun_ExportAndPublishFailuresAreWarnings(t *testing.T) {
	exporter := new(MockExporter)
	exporter.On("Export", mock.Anything, mock.Anything).Return("", stderrors.New("bucket missing"))
	publisher := new(MockPublisher)
	publisher.On("PublishCompleted", mock.Anything, mock.Anything).Return(stderrors.New("broker down"))
	log := testutil.NewMockLogger()

	rec, err := recognizer.New(recognizer.DefaultConfig(), nil)
	require.NoError(t, err)
	svc := NewService(rec, NewEngine(DefaultDeductionConfig(), nil, nil), log,
		WithExporter(exporter), WithPublisher(publisher))

	res, err := svc.Run(context.Background(), drawing())

	require.NoError(t, err)
	assert.Empty(t, res.ExportLocation)
	assert.Equal(t, []string{"export: bucket missing", "publish: broker down"}, res.Warnings)
	assert.Equal(t, 2, log.CountLevel("warn"))
	assert.True(t, log.HasMessage("info", "takeoff completed"))
}

func TestRun_StageErrors(t *testing.T) {
	comps := []*component.Component{component.New("concrete column", component.KindColumn, 0.85)}

	_, err := NewService(stubRecognizer{err: stderrors.New("boom")}, stubDeducer{}, nil).Run(context.Background(), drawing())
	assert.True(t, errors.IsCode(err, errors.ErrCodeTakeoffRecognition))

	_, err = NewService(stubRecognizer{comps: comps}, stubDeducer{err: stderrors.New("boom")}, nil).Run(context.Background(), drawing())
	assert.True(t, errors.IsCode(err, errors.ErrCodeTakeoffDeduction))

	cancelled := errors.Wrap(context.Canceled, errors.CodeCancelled, "recognition cancelled")
	_, err = NewService(stubRecognizer{err: cancelled}, stubDeducer{}, nil).Run(context.Background(), drawing())
	assert.True(t, errors.IsCode(err, errors.CodeCancelled))
	assert.False(t, errors.IsCode(err, errors.ErrCodeTakeoffRecognition))
}

func TestRun_UsesClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.FixedZone("CST", 8*3600))
	svc := NewService(stubRecognizer{}, stubDeducer{}, nil, WithClock(func() time.Time { return fixed }))

	res, err := svc.Run(context.Background(), drawing())

	require.NoError(t, err)
	assert.Equal(t, fixed.UTC(), res.CreatedAt)
	assert.Zero(t, res.Duration)
	assert.Zero(t, res.Summary.TotalComponents)
}

type recordedRun struct {
	status               string
	components, abnormal int
}

type stubRunMetrics struct{ runs []recordedRun }

func (m *stubRunMetrics) RecordTakeoff(status string, _ time.Duration, components, abnormal int) {
	m.runs = append(m.runs, recordedRun{status, components, abnormal})
}

func TestRun_RecordsMetrics(t *testing.T) {
	m := &stubRunMetrics{}
	comps := []*component.Component{component.New("concrete column", component.KindColumn, 0.85)}

	_, err := NewService(stubRecognizer{comps: comps}, stubDeducer{}, nil, WithRunMetrics(m)).Run(context.Background(), drawing())
	require.NoError(t, err)
	_, err = NewService(stubRecognizer{comps: comps}, stubDeducer{err: stderrors.New("boom")}, nil, WithRunMetrics(m)).Run(context.Background(), drawing())
	require.Error(t, err)

	publisher := new(MockPublisher)
	publisher.On("PublishCompleted", mock.Anything, mock.Anything).Return(stderrors.New("broker down"))
	_, err = NewService(stubRecognizer{comps: comps}, stubDeducer{}, nil, WithRunMetrics(m), WithPublisher(publisher)).Run(context.Background(), drawing())
	require.NoError(t, err)

	assert.Equal(t, []recordedRun{
		{"completed", 1, 0},
		{"failed", 1, 0},
		{"completed_with_warnings", 1, 0},
	}, m.runs)
}

func TestGet(t *testing.T) {
	repo := new(MockRepository)
	id := "2b1f1b7e-4f55-4a43-9a8c-5b0d7d1b2c3a"
	repo.On("FindByID", mock.Anything, id).Return(&Takeoff{ID: id}, nil)
	repo.On("FindByID", mock.Anything, "6f1c2a8e-0000-4000-8000-000000000000").
		Return(nil, errors.New(errors.CodeTakeoffNotFound, "takeoff not found"))
	svc := NewService(stubRecognizer{}, stubDeducer{}, nil, WithRepository(repo))

	got, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	_, err = svc.Get(context.Background(), "6f1c2a8e-0000-4000-8000-000000000000")
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.Get(context.Background(), "not-a-uuid")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestGetAndList_WithoutRepository(t *testing.T) {
	svc := NewService(stubRecognizer{}, stubDeducer{}, nil)

	_, err := svc.Get(context.Background(), "2b1f1b7e-4f55-4a43-9a8c-5b0d7d1b2c3a")
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))

	_, err = svc.List(context.Background(), 10, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestList_ClampsPaging(t *testing.T) {
	repo := new(MockRepository)
	repo.On("List", mock.Anything, 20, 0).Return([]*Takeoff{{ID: "a"}}, nil)
	svc := NewService(stubRecognizer{}, stubDeducer{}, nil, WithRepository(repo))

	got, err := svc.List(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.List(context.Background(), 1000, 0)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "List", 2)
}

//Personal.AI order the ending
