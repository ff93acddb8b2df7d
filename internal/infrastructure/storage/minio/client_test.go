package minio

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	pkgerrors "github.com/turtacn/KeyQTO/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

func (m *MockMinIOAPI) SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error {
	args := m.Called(ctx, bucketName, config)
	return args.Error(0)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinIOAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockMinIOAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

func (m *MockMinIOAPI) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expiry, reqParams)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

type ClientTestSuite struct {
	suite.Suite
	api    *MockMinIOAPI
	client *MinIOClient
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.client = NewMinIOClientWithAPI(s.api, &MinIOConfig{Bucket: "exports"}, nil)
}

func (s *ClientTestSuite) TearDownTest() {
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestApplyDefaults() {
	cfg := &MinIOConfig{}
	ApplyDefaults(cfg)
	s.Equal("us-east-1", cfg.Region)
	s.Equal("keyqto-exports", cfg.Bucket)
	s.Equal("takeoffs/", cfg.Prefix)
	s.Equal([]string{"markdown", "csv", "materials_csv"}, cfg.Formats)
	s.Equal(90, cfg.RetentionDays)
	s.Equal(time.Hour, cfg.PresignExpiry)
}

func (s *ClientTestSuite) TestNewMinIOClient_Validation() {
	_, err := NewMinIOClient(nil, nil)
	s.True(pkgerrors.IsCode(err, pkgerrors.CodeInvalidParam))
	_, err = NewMinIOClient(&MinIOConfig{}, nil)
	s.True(pkgerrors.IsCode(err, pkgerrors.CodeInvalidParam))
}

func (s *ClientTestSuite) TestEnsureBucket_Exists() {
	s.api.On("BucketExists", mock.Anything, "exports").Return(true, nil)
	s.NoError(s.client.EnsureBucket(context.Background()))
}

func (s *ClientTestSuite) TestEnsureBucket_Creates() {
	s.api.On("BucketExists", mock.Anything, "exports").Return(false, nil)
	s.api.On("MakeBucket", mock.Anything, "exports", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)
	s.NoError(s.client.EnsureBucket(context.Background()))
}

func (s *ClientTestSuite) TestEnsureBucket_Error() {
	s.api.On("BucketExists", mock.Anything, "exports").Return(false, errors.New("denied"))
	err := s.client.EnsureBucket(context.Background())
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeExternalService))
}

func (s *ClientTestSuite) TestSetupLifecycleRules() {
	s.api.On("SetBucketLifecycle", mock.Anything, "exports", mock.MatchedBy(func(cfg *lifecycle.Configuration) bool {
		return len(cfg.Rules) == 1 &&
			cfg.Rules[0].RuleFilter.Prefix == "takeoffs/" &&
			cfg.Rules[0].Expiration.Days == lifecycle.ExpirationDays(90)
	})).Return(errors.New("not implemented"))

	s.client.SetupLifecycleRules(context.Background())
}

func (s *ClientTestSuite) TestHealthCheck() {
	s.api.On("BucketExists", mock.Anything, "exports").Return(true, nil).Once()
	status, err := s.client.HealthCheck(context.Background())
	s.NoError(err)
	s.True(status.Healthy)

	s.api.On("BucketExists", mock.Anything, "exports").Return(false, errors.New("unreachable")).Once()
	status, err = s.client.HealthCheck(context.Background())
	s.Error(err)
	s.False(status.Healthy)
	s.Equal("unreachable", status.Error)
}

func (s *ClientTestSuite) TestPresignedGetURL() {
	u, _ := url.Parse("http://minio:9000/exports/takeoffs/a/summary.md?X-Amz-Signature=x")
	s.api.On("PresignedGetObject", mock.Anything, "exports", "takeoffs/a/summary.md", time.Hour, url.Values(nil)).Return(u, nil)

	got, err := s.client.PresignedGetURL(context.Background(), "takeoffs/a/summary.md", 0)
	s.NoError(err)
	s.Equal(u.String(), got)
}

func (s *ClientTestSuite) TestClosed() {
	s.NoError(s.client.Close())
	_, err := s.client.PresignedGetURL(context.Background(), "k", 0)
	s.Equal(ErrMinIOClientClosed, err)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestNewMinIOClientWithAPI_NilConfig(t *testing.T) {
	c := NewMinIOClientWithAPI(new(MockMinIOAPI), nil, nil)
	assert.Equal(t, "keyqto-exports", c.Config().Bucket)
}

//Personal.AI order the ending
