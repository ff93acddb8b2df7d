//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/postgres"
	"github.com/turtacn/KeyQTO/internal/testutil"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

type TakeoffRepoIntegrationSuite struct {
	suite.Suite
	conn *postgres.Connection
	repo takeoff.Repository
}

func (s *TakeoffRepoIntegrationSuite) SetupSuite() {
	pg := testutil.StartPostgres(s.T())
	conn, err := postgres.NewConnection(postgres.PostgresConfig{
		Host:     pg.Host,
		Port:     pg.Port,
		Database: pg.Database,
		Username: pg.Username,
		Password: pg.Password,
	}, testutil.NewNopLogger())
	s.Require().NoError(err)
	s.Require().NoError(postgres.NewMigrator(conn, testutil.NewNopLogger()).Up())

	s.conn = conn
	s.repo = NewPostgresTakeoffRepo(conn, testutil.NewNopLogger())
}

func (s *TakeoffRepoIntegrationSuite) TearDownSuite() {
	if s.conn != nil {
		s.NoError(s.conn.Close())
	}
}

func (s *TakeoffRepoIntegrationSuite) SetupTest() {
	_, err := s.conn.DB().Exec(`TRUNCATE takeoffs`)
	s.Require().NoError(err)
}

func (s *TakeoffRepoIntegrationSuite) TestSaveAndFindByID() {
	ctx := context.Background()
	want := sampleTakeoff()

	s.Require().NoError(s.repo.Save(ctx, want))
	got, err := s.repo.FindByID(ctx, want.ID)

	s.Require().NoError(err)
	s.Equal(want.Name, got.Name)
	s.Equal(want.Source, got.Source)
	s.Equal(want.Labels, got.Labels)
	s.Equal(want.Warnings, got.Warnings)
	s.Equal(want.Duration, got.Duration)
	s.True(want.CreatedAt.Equal(got.CreatedAt))
	s.Require().Len(got.Components, 1)
	s.Equal("KZ1", got.Components[0].Category)
	s.InDelta(1.2, got.Summary.TotalVolume, 1e-9)
	s.InDelta(0.08, got.Deduction.VolumeRemoved, 1e-9)
}

func (s *TakeoffRepoIntegrationSuite) TestSaveReplacesExisting() {
	ctx := context.Background()
	t := sampleTakeoff()
	s.Require().NoError(s.repo.Save(ctx, t))

	t.Name = "level 2 structure rev B"
	t.Warnings = nil
	s.Require().NoError(s.repo.Save(ctx, t))

	got, err := s.repo.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.Equal("level 2 structure rev B", got.Name)
	s.Nil(got.Warnings)
}

func (s *TakeoffRepoIntegrationSuite) TestFindByID_NotFound() {
	ctx := context.Background()

	_, err := s.repo.FindByID(ctx, uuid.NewString())
	s.True(errors.IsCode(err, errors.ErrCodeTakeoffNotFound))

	_, err = s.repo.FindByID(ctx, "not-a-uuid")
	s.True(errors.IsCode(err, errors.ErrCodeTakeoffNotFound))
}

func (s *TakeoffRepoIntegrationSuite) TestListNewestFirst() {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		t := sampleTakeoff()
		t.ID = uuid.NewString()
		t.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		s.Require().NoError(s.repo.Save(ctx, t))
		ids = append(ids, t.ID)
	}

	page, err := s.repo.List(ctx, 2, 0)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(ids[2], page[0].ID)
	s.Equal(ids[1], page[1].ID)

	rest, err := s.repo.List(ctx, 2, 2)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal(ids[0], rest[0].ID)
}

func TestTakeoffRepoIntegrationSuite(t *testing.T) {
	suite.Run(t, new(TakeoffRepoIntegrationSuite))
}
