package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// TestGrantTableName pins the migrated table name to the one the raw orphan
// purge SQL deletes from; without the TableName override gorm would migrate
// the model into "grants" and the purge would fail at runtime.
func TestGrantTableName(t *testing.T) {
	parsed, err := schema.Parse(&Grant{}, &sync.Map{}, schema.NamingStrategy{})
	assert.NoError(t, err)
	assert.Equal(t, "access_grants", parsed.Table)
}

// mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Upsert(ctx context.Context, grant *Grant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockRepository) Find(ctx context.Context, canvasID, userID string) (*Grant, error) {
	args := m.Called(ctx, canvasID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Grant), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, canvasID, userID string) (bool, error) {
	args := m.Called(ctx, canvasID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListForCanvas(ctx context.Context, canvasID string) ([]Grant, error) {
	args := m.Called(ctx, canvasID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Grant), args.Error(1)
}

func (m *MockRepository) CountByRole(ctx context.Context, canvasID string, role Role) (int64, error) {
	args := m.Called(ctx, canvasID, role)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) DeleteAllForCanvas(ctx context.Context, canvasID string) (int64, error) {
	args := m.Called(ctx, canvasID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) DeleteOrphaned(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestRoleOrder(t *testing.T) {
	assert.True(t, RoleOwner.AtLeast(RoleViewer))
	assert.True(t, RoleOwner.AtLeast(RoleEditor))
	assert.True(t, RoleOwner.AtLeast(RoleOwner))
	assert.True(t, RoleEditor.AtLeast(RoleViewer))
	assert.False(t, RoleEditor.AtLeast(RoleOwner))
	assert.False(t, RoleViewer.AtLeast(RoleEditor))
	assert.False(t, RoleViewer.AtLeast(RoleOwner))
	assert.False(t, Role("admin").Valid())
	assert.False(t, Role("admin").AtLeast(RoleViewer))
}

// TestHasAccess_Monotonic verifies that access checks follow the total
// role order for every held/required combination.
func TestHasAccess_Monotonic(t *testing.T) {
	roles := []Role{RoleViewer, RoleEditor, RoleOwner}

	for _, held := range roles {
		for _, required := range roles {
			mockRepo := new(MockRepository)
			service := NewService(mockRepo)

			mockRepo.On("Find", mock.Anything, "c1", "u1").Return(&Grant{
				CanvasID: "c1",
				UserID:   "u1",
				Role:     held,
			}, nil)

			ok, err := service.HasAccess(context.Background(), "c1", "u1", required)
			assert.NoError(t, err)
			assert.Equal(t, held.Rank() >= required.Rank(), ok,
				"held=%s required=%s", held, required)
		}
	}
}

func TestHasAccess_AbsentGrant(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	mockRepo.On("Find", mock.Anything, "c1", "u1").Return(nil, gorm.ErrRecordNotFound)

	ok, err := service.HasAccess(context.Background(), "c1", "u1", RoleViewer)
	assert.NoError(t, err)
	assert.False(t, ok)
}

// TestHasAccess_StoreFailure verifies that a broken store is reported as an
// error, never as "no access".
func TestHasAccess_StoreFailure(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	mockRepo.On("Find", mock.Anything, "c1", "u1").Return(nil, errors.New("connection refused"))

	_, err := service.HasAccess(context.Background(), "c1", "u1", RoleViewer)
	assert.Error(t, err)
}

func TestHasAccess_ExpiredGrantIsAbsent(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	expired := time.Now().Add(-time.Hour)
	mockRepo.On("Find", mock.Anything, "c1", "u1").Return(&Grant{
		CanvasID:  "c1",
		UserID:    "u1",
		Role:      RoleOwner,
		ExpiresAt: &expired,
	}, nil)

	ok, err := service.HasAccess(context.Background(), "c1", "u1", RoleViewer)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestGrant_UpsertsCompositeKey(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	mockRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(g *Grant) bool {
		return g.CanvasID == "c1" && g.UserID == "u2" && g.Role == RoleEditor && g.GrantedByID == "u1"
	})).Return(nil)

	grant, err := service.Grant(context.Background(), "c1", "u2", RoleEditor, "u1", nil)
	assert.NoError(t, err)
	assert.Equal(t, RoleEditor, grant.Role)
	assert.False(t, grant.GrantedAt.IsZero())
	mockRepo.AssertExpectations(t)

	// re-granting a lower role is a downgrade, not a rejection
	mockRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(g *Grant) bool {
		return g.CanvasID == "c1" && g.UserID == "u2" && g.Role == RoleViewer
	})).Return(nil)

	grant, err = service.Grant(context.Background(), "c1", "u2", RoleViewer, "u1", nil)
	assert.NoError(t, err)
	assert.Equal(t, RoleViewer, grant.Role)
}

func TestGrant_RejectsUnknownRole(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	_, err := service.Grant(context.Background(), "c1", "u2", Role("superuser"), "u1", nil)
	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "Upsert")
}

func TestRevoke_ReportsWhetherRemoved(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	mockRepo.On("Delete", mock.Anything, "c1", "u2").Return(true, nil).Once()
	removed, err := service.Revoke(context.Background(), "c1", "u2")
	assert.NoError(t, err)
	assert.True(t, removed)

	mockRepo.On("Delete", mock.Anything, "c1", "u2").Return(false, nil).Once()
	removed, err = service.Revoke(context.Background(), "c1", "u2")
	assert.NoError(t, err)
	assert.False(t, removed)
}

func TestCascadeDeleteForCanvas(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo)

	mockRepo.On("DeleteAllForCanvas", mock.Anything, "c1").Return(int64(3), nil)

	count, err := service.CascadeDeleteForCanvas(context.Background(), "c1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
	mockRepo.AssertExpectations(t)
}
