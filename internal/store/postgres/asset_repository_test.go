package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/value"
	"github.com/goto/pulumi-marmot/internal/store/postgres"
	"github.com/goto/salt/log"
	"github.com/stretchr/testify/suite"
)

type AssetRepositoryTestSuite struct {
	suite.Suite
	ctx        context.Context
	client     *postgres.Client
	cfg        postgres.Config
	repository *postgres.AssetRepository
}

func (r *AssetRepositoryTestSuite) SetupSuite() {
	var err error

	logger := log.NewLogrus()
	r.client, r.cfg, err = newTestClient(r.T(), logger)
	if err != nil {
		r.T().Fatal(err)
	}

	r.ctx = context.TODO()
	r.repository, err = postgres.NewAssetRepository(r.client)
	if err != nil {
		r.T().Fatal(err)
	}
}

func (r *AssetRepositoryTestSuite) SetupTest() {
	if err := r.client.ExecQueries(r.ctx, []string{"TRUNCATE TABLE assets"}); err != nil {
		r.T().Fatal(err)
	}
}

func (r *AssetRepositoryTestSuite) newAsset(name string) asset.Asset {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	schema := value.NewMap()
	schema.Set("fields", value.List(
		value.Object(value.MapOf("name", "id", "type", "string")),
		value.Object(value.MapOf("name", "amount", "type", "double")),
	))
	priority := 1

	ast := asset.Asset{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        asset.TypeTopic,
		Description: "order events",
		Services:    []string{"kafka"},
		Tags:        []string{"pii"},
		Metadata:    value.MapOf("zeta", "last", "alpha", "first"),
		Schema:      schema,
		ExternalLinks: []asset.ExternalLink{
			{Name: "docs", URL: "https://docs.example.com/orders"},
		},
		Sources: []asset.Source{
			{Name: "producer", Priority: &priority, Properties: value.MapOf("team", "core")},
		},
		Environments: map[string]asset.Environment{
			"prod": {Name: "Production", Path: "prod/orders"},
		},
		Version:   asset.BaseVersion,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return ast.Normalize()
}

func (r *AssetRepositoryTestSuite) TestInsertAndGet() {
	r.Run("should round trip every field", func() {
		ast := r.newAsset("orders")
		_, err := r.repository.Insert(r.ctx, ast)
		r.Require().NoError(err)

		got, err := r.repository.GetByID(r.ctx, ast.ID)
		r.Require().NoError(err)
		r.Equal(ast.MRN, got.MRN)
		r.Equal(ast.Services, got.Services)
		r.True(ast.Metadata.Equal(got.Metadata))
		r.Equal([]string{"zeta", "alpha"}, got.Metadata.Keys())
		r.True(ast.Schema.Equal(got.Schema))
		r.Equal(ast.ExternalLinks, got.ExternalLinks)
		r.Equal(ast.Environments, got.Environments)
		r.Require().Len(got.Sources, 1)
		r.Equal(1, *got.Sources[0].Priority)
		r.True(ast.CreatedAt.Equal(got.CreatedAt))

		byMRN, err := r.repository.GetByMRN(r.ctx, ast.MRN)
		r.Require().NoError(err)
		r.Equal(ast.ID, byMRN.ID)
	})

	r.Run("should return already exists for a taken mrn", func() {
		ast := r.newAsset("payments")
		_, err := r.repository.Insert(r.ctx, ast)
		r.Require().NoError(err)

		dup := r.newAsset("payments")
		_, err = r.repository.Insert(r.ctx, dup)
		r.ErrorAs(err, new(asset.AlreadyExistsError))
	})

	r.Run("should read empty collections as nil", func() {
		ast := r.newAsset("bare")
		ast.Services, ast.Tags, ast.Metadata, ast.Schema = nil, nil, nil, nil
		ast.ExternalLinks, ast.Sources, ast.Environments = nil, nil, nil
		_, err := r.repository.Insert(r.ctx, ast)
		r.Require().NoError(err)

		got, err := r.repository.GetByID(r.ctx, ast.ID)
		r.Require().NoError(err)
		r.Nil(got.Services)
		r.Nil(got.Metadata)
		r.Nil(got.Environments)
	})

	r.Run("should return not found for unknown ids", func() {
		_, err := r.repository.GetByID(r.ctx, uuid.NewString())
		r.ErrorAs(err, new(asset.NotFoundError))

		_, err = r.repository.GetByID(r.ctx, "not-a-uuid")
		r.ErrorAs(err, new(asset.NotFoundError))

		_, err = r.repository.GetByMRN(r.ctx, "mrn://default/topic/missing")
		r.ErrorAs(err, new(asset.NotFoundError))
	})
}

func (r *AssetRepositoryTestSuite) TestUpdate() {
	ast := r.newAsset("orders")
	_, err := r.repository.Insert(r.ctx, ast)
	r.Require().NoError(err)

	r.Run("should write when the expected version matches", func() {
		next := ast.Clone()
		next.Description = "changed"
		next.Version = "0.2"
		_, err := r.repository.Update(r.ctx, next, asset.BaseVersion)
		r.Require().NoError(err)

		got, err := r.repository.GetByID(r.ctx, ast.ID)
		r.Require().NoError(err)
		r.Equal("changed", got.Description)
		r.Equal("0.2", got.Version)
	})

	r.Run("should report a version conflict", func() {
		next := ast.Clone()
		next.Version = "0.3"
		_, err := r.repository.Update(r.ctx, next, asset.BaseVersion)

		var conflict asset.VersionConflictError
		r.Require().ErrorAs(err, &conflict)
		r.Equal("0.2", conflict.Actual)
	})

	r.Run("should report not found for a missing row", func() {
		missing := r.newAsset("missing")
		_, err := r.repository.Update(r.ctx, missing, asset.BaseVersion)
		r.ErrorAs(err, new(asset.NotFoundError))
	})
}

func (r *AssetRepositoryTestSuite) TestDeleteByID() {
	ast := r.newAsset("orders")
	_, err := r.repository.Insert(r.ctx, ast)
	r.Require().NoError(err)

	r.NoError(r.repository.DeleteByID(r.ctx, ast.ID))
	r.ErrorAs(r.repository.DeleteByID(r.ctx, ast.ID), new(asset.NotFoundError))
}

func (r *AssetRepositoryTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(r.ctx)
	cancel()

	_, err := r.repository.GetByID(ctx, uuid.NewString())
	r.ErrorIs(err, context.Canceled)
}

func TestAssetRepository(t *testing.T) {
	suite.Run(t, &AssetRepositoryTestSuite{})
}
