package owners_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-petevents/internal/models"
	"ms-petevents/internal/owners"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetOwner(ctx context.Context, id string) (*models.Owner, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Owner), args.Error(1)
}

func (m *MockDBLayer) CreateOwner(ctx context.Context, owner models.Owner) error {
	args := m.Called(owner)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateOwner(ctx context.Context, owner models.Owner) error {
	args := m.Called(owner)
	return args.Error(0)
}

func TestGetOrCreateProfileCreatesFromClaims(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := owners.NewOwnerService(mockDB)

	created := &models.Owner{ID: "owner-a", DisplayName: "Ana", Email: "ana@example.com"}
	mockDB.On("GetOwner", "owner-a").Return(nil, models.ErrNotFound).Once()
	mockDB.On("CreateOwner", mock.MatchedBy(func(o models.Owner) bool {
		return o.ID == "owner-a" && o.DisplayName == "Ana" && o.Email == "ana@example.com" && !o.CreatedAt.IsZero()
	})).Return(nil)
	mockDB.On("GetOwner", "owner-a").Return(created, nil).Once()

	owner, err := svc.GetOrCreateProfile(context.Background(), "owner-a", models.Claims{Subject: "owner-a", Name: " Ana ", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, created, owner)
	mockDB.AssertExpectations(t)
}

func TestGetOrCreateProfileReturnsExisting(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := owners.NewOwnerService(mockDB)
	existing := &models.Owner{ID: "owner-a", DisplayName: "Ana"}
	mockDB.On("GetOwner", "owner-a").Return(existing, nil)

	owner, err := svc.GetOrCreateProfile(context.Background(), "owner-a", models.Claims{})
	require.NoError(t, err)
	assert.Equal(t, existing, owner)
	mockDB.AssertNotCalled(t, "CreateOwner", mock.Anything)
}

func TestGetOrCreateProfileErrors(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := owners.NewOwnerService(mockDB)

	_, err := svc.GetOrCreateProfile(context.Background(), "", models.Claims{})
	assert.ErrorIs(t, err, owners.ErrUnauthenticated)

	mockDB.On("GetOwner", "owner-a").Return(nil, errors.New("db down"))
	_, err = svc.GetOrCreateProfile(context.Background(), "owner-a", models.Claims{})
	assert.EqualError(t, err, "db down")
}

func TestUpdateProfile(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := owners.NewOwnerService(mockDB)
	mockDB.On("GetOwner", "owner-a").Return(&models.Owner{ID: "owner-a", DisplayName: "Ana"}, nil)
	mockDB.On("UpdateOwner", mock.MatchedBy(func(o models.Owner) bool {
		return o.DisplayName == "Ana María"
	})).Return(nil)

	name := "  Ana María "
	owner, err := svc.UpdateProfile(context.Background(), "owner-a", models.ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", owner.DisplayName)

	empty := "   "
	_, err = svc.UpdateProfile(context.Background(), "owner-a", models.ProfileUpdate{DisplayName: &empty})
	assert.ErrorIs(t, err, owners.ErrInvalidProfile)

	photo := "javascript:alert(1)"
	_, err = svc.UpdateProfile(context.Background(), "owner-a", models.ProfileUpdate{PhotoURL: &photo})
	assert.ErrorIs(t, err, owners.ErrInvalidProfile)
}

func TestAuthorName(t *testing.T) {
	assert.Equal(t, "Ana", owners.AuthorName(&models.Owner{DisplayName: "Ana", Email: "x@example.com"}))
	assert.Equal(t, "ben", owners.AuthorName(&models.Owner{Email: "ben@example.com"}))
	assert.Equal(t, "Anonymous", owners.AuthorName(&models.Owner{}))
	assert.Equal(t, "Anonymous", owners.AuthorName(nil))
}
