package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/goto/pulumi-marmot/internal/store/postgres"
	"github.com/goto/salt/log"
	"github.com/stretchr/testify/suite"
)

type LineageRepositoryTestSuite struct {
	suite.Suite
	ctx        context.Context
	client     *postgres.Client
	repository *postgres.LineageRepository
}

func (r *LineageRepositoryTestSuite) SetupSuite() {
	var err error

	logger := log.NewLogrus()
	r.client, _, err = newTestClient(r.T(), logger)
	if err != nil {
		r.T().Fatal(err)
	}

	r.ctx = context.TODO()
	r.repository, err = postgres.NewLineageRepository(r.client)
	if err != nil {
		r.T().Fatal(err)
	}
}

func (r *LineageRepositoryTestSuite) SetupTest() {
	if err := r.client.ExecQueries(r.ctx, []string{"TRUNCATE TABLE lineage_edges"}); err != nil {
		r.T().Fatal(err)
	}
}

func (r *LineageRepositoryTestSuite) edge(source, target string) lineage.Edge {
	return lineage.Edge{
		ID:        uuid.NewString(),
		Source:    source,
		Target:    target,
		Type:      lineage.TypeDirect,
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (r *LineageRepositoryTestSuite) TestInsert() {
	r.Run("should store and fetch an edge", func() {
		e := r.edge("mrn://default/topic/a", "mrn://default/table/b")
		_, err := r.repository.Insert(r.ctx, e)
		r.Require().NoError(err)

		got, err := r.repository.GetByID(r.ctx, e.ID)
		r.Require().NoError(err)
		r.Equal(e, got)

		byPair, err := r.repository.GetByPair(r.ctx, e.Source, e.Target)
		r.Require().NoError(err)
		r.Equal(e.ID, byPair.ID)
	})

	r.Run("should reject a duplicate pair", func() {
		e := r.edge("mrn://default/topic/c", "mrn://default/table/d")
		_, err := r.repository.Insert(r.ctx, e)
		r.Require().NoError(err)

		_, err = r.repository.Insert(r.ctx, r.edge(e.Source, e.Target))
		r.ErrorAs(err, new(lineage.AlreadyExistsError))
	})

	r.Run("should reject a self loop", func() {
		_, err := r.repository.Insert(r.ctx, r.edge("mrn://default/topic/x", "mrn://default/topic/x"))
		r.ErrorAs(err, new(lineage.InvalidError))
	})
}

func (r *LineageRepositoryTestSuite) TestUpdate() {
	a := r.edge("mrn://default/topic/a", "mrn://default/table/b")
	b := r.edge("mrn://default/topic/a", "mrn://default/table/c")
	for _, e := range []lineage.Edge{a, b} {
		_, err := r.repository.Insert(r.ctx, e)
		r.Require().NoError(err)
	}

	r.Run("should move the target and keep the id", func() {
		moved := a
		moved.Target = "mrn://default/table/z"
		got, err := r.repository.Update(r.ctx, moved)
		r.Require().NoError(err)
		r.Equal(a.ID, got.ID)
		r.Equal(moved.Target, got.Target)
	})

	r.Run("should reject a pair taken by another edge", func() {
		clash := b
		clash.Target = "mrn://default/table/z"
		_, err := r.repository.Update(r.ctx, clash)
		r.ErrorAs(err, new(lineage.AlreadyExistsError))
	})

	r.Run("should return not found for a missing edge", func() {
		_, err := r.repository.Update(r.ctx, r.edge("mrn://default/topic/q", "mrn://default/topic/r"))
		r.ErrorAs(err, new(lineage.NotFoundError))
	})
}

func (r *LineageRepositoryTestSuite) TestListAndDelete() {
	edges := []lineage.Edge{
		r.edge("mrn://default/topic/a", "mrn://default/table/b"),
		r.edge("mrn://default/topic/a", "mrn://default/table/c"),
		r.edge("mrn://default/table/b", "mrn://default/table/c"),
	}
	for _, e := range edges {
		_, err := r.repository.Insert(r.ctx, e)
		r.Require().NoError(err)
	}

	got, err := r.repository.List(r.ctx, lineage.Filter{Source: "mrn://default/topic/a"})
	r.Require().NoError(err)
	r.Len(got, 2)

	got, err = r.repository.List(r.ctx, lineage.Filter{Target: "mrn://default/table/c"})
	r.Require().NoError(err)
	r.Len(got, 2)

	r.NoError(r.repository.DeleteByID(r.ctx, edges[0].ID))
	r.ErrorAs(r.repository.DeleteByID(r.ctx, edges[0].ID), new(lineage.NotFoundError))

	got, err = r.repository.List(r.ctx, lineage.Filter{})
	r.Require().NoError(err)
	r.Len(got, 2)
}

func TestLineageRepository(t *testing.T) {
	suite.Run(t, &LineageRepositoryTestSuite{})
}
