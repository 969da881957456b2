package mocks

import (
	"context"
	"io"

	"catalogue/internal/model"
	"catalogue/internal/service"
	"catalogue/internal/storage"
	"github.com/stretchr/testify/mock"
)

type MockCatalogueService struct {
	mock.Mock
}

var _ service.CatalogueService = (*MockCatalogueService)(nil)

func (m *MockCatalogueService) ListCategory(ctx context.Context, category string) ([]model.FileEntry, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FileEntry), args.Error(1)
}

func (m *MockCatalogueService) OpenFile(ctx context.Context, category, filename string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, category, filename)
	if args.Get(0) == nil {
		return nil, args.Get(1).(storage.ObjectInfo), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(storage.ObjectInfo), args.Error(2)
}

func (m *MockCatalogueService) ConvertDocx(ctx context.Context, category, filename string) (string, error) {
	args := m.Called(ctx, category, filename)
	return args.String(0), args.Error(1)
}

func (m *MockCatalogueService) Upload(ctx context.Context, category string, r io.Reader, originalFilename string, size int64) (*model.FileEntry, error) {
	args := m.Called(ctx, category, r, originalFilename, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileEntry), args.Error(1)
}
