package mocks

import (
	"context"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/stretchr/testify/mock"
)

type AssetRepository struct {
	mock.Mock
}

func (repo *AssetRepository) GetByID(ctx context.Context, id string) (asset.Asset, error) {
	args := repo.Called(ctx, id)
	return args.Get(0).(asset.Asset), args.Error(1)
}

func (repo *AssetRepository) GetByMRN(ctx context.Context, mrn string) (asset.Asset, error) {
	args := repo.Called(ctx, mrn)
	return args.Get(0).(asset.Asset), args.Error(1)
}

func (repo *AssetRepository) Insert(ctx context.Context, ast asset.Asset) (asset.Asset, error) {
	args := repo.Called(ctx, ast)
	if fn, ok := args.Get(0).(func(context.Context, asset.Asset) asset.Asset); ok {
		return fn(ctx, ast), args.Error(1)
	}
	return args.Get(0).(asset.Asset), args.Error(1)
}

func (repo *AssetRepository) Update(ctx context.Context, ast asset.Asset, expectedVersion string) (asset.Asset, error) {
	args := repo.Called(ctx, ast, expectedVersion)
	if fn, ok := args.Get(0).(func(context.Context, asset.Asset, string) asset.Asset); ok {
		return fn(ctx, ast, expectedVersion), args.Error(1)
	}
	return args.Get(0).(asset.Asset), args.Error(1)
}

func (repo *AssetRepository) DeleteByID(ctx context.Context, id string) error {
	args := repo.Called(ctx, id)
	return args.Error(0)
}

type LineageRepository struct {
	mock.Mock
}

func (repo *LineageRepository) GetByID(ctx context.Context, id string) (lineage.Edge, error) {
	args := repo.Called(ctx, id)
	return args.Get(0).(lineage.Edge), args.Error(1)
}

func (repo *LineageRepository) GetByPair(ctx context.Context, source, target string) (lineage.Edge, error) {
	args := repo.Called(ctx, source, target)
	return args.Get(0).(lineage.Edge), args.Error(1)
}

func (repo *LineageRepository) Insert(ctx context.Context, e lineage.Edge) (lineage.Edge, error) {
	args := repo.Called(ctx, e)
	if fn, ok := args.Get(0).(func(context.Context, lineage.Edge) lineage.Edge); ok {
		return fn(ctx, e), args.Error(1)
	}
	return args.Get(0).(lineage.Edge), args.Error(1)
}

func (repo *LineageRepository) Update(ctx context.Context, e lineage.Edge) (lineage.Edge, error) {
	args := repo.Called(ctx, e)
	if fn, ok := args.Get(0).(func(context.Context, lineage.Edge) lineage.Edge); ok {
		return fn(ctx, e), args.Error(1)
	}
	return args.Get(0).(lineage.Edge), args.Error(1)
}

func (repo *LineageRepository) DeleteByID(ctx context.Context, id string) error {
	args := repo.Called(ctx, id)
	return args.Error(0)
}

func (repo *LineageRepository) List(ctx context.Context, flt lineage.Filter) ([]lineage.Edge, error) {
	args := repo.Called(ctx, flt)
	return args.Get(0).([]lineage.Edge), args.Error(1)
}

type AssetResolver struct {
	mock.Mock
}

func (r *AssetResolver) Exists(ctx context.Context, mrn string) (bool, error) {
	args := r.Called(ctx, mrn)
	return args.Bool(0), args.Error(1)
}
