package mocks

import (
	"context"

	"soup-server/internal/models"
	"soup-server/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// SoupRepository is a mock type for the repository.SoupRepository type
type SoupRepository struct {
	mock.Mock
}

func (_m *SoupRepository) CreateSoup(ctx context.Context, params repository.CreateSoupParams) (*models.Soup, error) {
	ret := _m.Called(ctx, params)

	var r0 *models.Soup
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Soup)
	}
	return r0, ret.Error(1)
}

func (_m *SoupRepository) GetSoup(ctx context.Context, id uuid.UUID) (*models.Soup, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.Soup
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Soup)
	}
	return r0, ret.Error(1)
}

func (_m *SoupRepository) ListSoups(ctx context.Context) ([]models.Soup, error) {
	ret := _m.Called(ctx)

	var r0 []models.Soup
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Soup)
	}
	return r0, ret.Error(1)
}

func (_m *SoupRepository) ReplaceSoup(ctx context.Context, soup *models.Soup) error {
	ret := _m.Called(ctx, soup)
	return ret.Error(0)
}

func (_m *SoupRepository) AddTry(ctx context.Context, soupID uuid.UUID, try *models.Try) error {
	ret := _m.Called(ctx, soupID, try)
	return ret.Error(0)
}

func (_m *SoupRepository) DeleteSoupCascade(ctx context.Context, id uuid.UUID) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

var _ repository.SoupRepository = (*SoupRepository)(nil)
