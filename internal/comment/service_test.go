package comment

import (
	"collaborative-canvas-backend/internal/access"
	"collaborative-canvas-backend/internal/errors"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Upsert(ctx context.Context, comment *Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockRepository) Find(ctx context.Context, canvasID, commentID string) (*Comment, error) {
	args := m.Called(ctx, canvasID, commentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Comment), args.Error(1)
}

func (m *MockRepository) ListByCanvas(ctx context.Context, canvasID string) ([]Comment, error) {
	args := m.Called(ctx, canvasID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Comment), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, canvasID, commentID string) (bool, error) {
	args := m.Called(ctx, canvasID, commentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) DeleteAllForCanvas(ctx context.Context, canvasID string) (int64, error) {
	args := m.Called(ctx, canvasID)
	return args.Get(0).(int64), args.Error(1)
}

// mock implementation of the Authorizer interface
type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) Authorize(ctx context.Context, canvasID, userID string, required access.Role) error {
	args := m.Called(ctx, canvasID, userID, required)
	return args.Error(0)
}

func TestUpsert_ViewerMayComment(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAuth := new(MockAuthorizer)
	service := NewService(mockRepo, mockAuth)

	mockAuth.On("Authorize", mock.Anything, "c1", "userB", access.RoleViewer).Return(nil)
	mockRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(c *Comment) bool {
		return c.CanvasID == "c1" && c.ID == "m1" && c.AuthorID == "userB" && c.Text == "looks good"
	})).Return(nil)
	mockRepo.On("Find", mock.Anything, "c1", "m1").Return(&Comment{
		CanvasID: "c1", ID: "m1", AuthorID: "userB", Timestamp: 42, Text: "looks good",
	}, nil)

	comment, err := service.Upsert(context.Background(), "c1", "userB", CommentInput{
		ID: "m1", Timestamp: 42, Text: "looks good",
	})
	assert.NoError(t, err)
	assert.Equal(t, "m1", comment.ID)
	mockAuth.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

// TestUpsert_ResubmissionKeepsCreatedAt verifies the idempotent write: a
// repeated client message updates text and timestamp, and the response
// reflects the original created_at preserved by the store.
func TestUpsert_ResubmissionKeepsCreatedAt(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAuth := new(MockAuthorizer)
	service := NewService(mockRepo, mockAuth)

	originalCreatedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mockAuth.On("Authorize", mock.Anything, "c1", "userB", access.RoleViewer).Return(nil)
	mockRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("Find", mock.Anything, "c1", "m1").Return(&Comment{
		CanvasID: "c1", ID: "m1", AuthorID: "userB", Timestamp: 43,
		Text: "edited", CreatedAt: originalCreatedAt,
	}, nil)

	comment, err := service.Upsert(context.Background(), "c1", "userB", CommentInput{
		ID: "m1", Timestamp: 43, Text: "edited",
	})
	assert.NoError(t, err)
	assert.Equal(t, originalCreatedAt, comment.CreatedAt)
}

func TestUpsert_RequiresIDAndText(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAuth := new(MockAuthorizer)
	service := NewService(mockRepo, mockAuth)

	_, err := service.Upsert(context.Background(), "c1", "userB", CommentInput{Text: "no id"})
	apiErr, ok := err.(*errors.APIError)
	assert.True(t, ok)
	assert.Equal(t, 422, apiErr.Status)

	_, err = service.Upsert(context.Background(), "c1", "userB", CommentInput{ID: "m1"})
	apiErr, ok = err.(*errors.APIError)
	assert.True(t, ok)
	assert.Equal(t, 422, apiErr.Status)

	mockAuth.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestUpsert_NoAccess(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAuth := new(MockAuthorizer)
	service := NewService(mockRepo, mockAuth)

	mockAuth.On("Authorize", mock.Anything, "c1", "stranger", access.RoleViewer).
		Return(errors.Forbidden("You don't have permission for this canvas", nil))

	_, err := service.Upsert(context.Background(), "c1", "stranger", CommentInput{
		ID: "m1", Timestamp: 1, Text: "hi",
	})
	apiErr, ok := err.(*errors.APIError)
	assert.True(t, ok)
	assert.Equal(t, 403, apiErr.Status)
	mockRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestListByCanvas_AuthorizedRead(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAuth := new(MockAuthorizer)
	service := NewService(mockRepo, mockAuth)

	thread := []Comment{
		{CanvasID: "c1", ID: "m1", Timestamp: 10, Text: "first"},
		{CanvasID: "c1", ID: "m2", Timestamp: 20, Text: "second"},
	}
	mockAuth.On("Authorize", mock.Anything, "c1", "userB", access.RoleViewer).Return(nil)
	mockRepo.On("ListByCanvas", mock.Anything, "c1").Return(thread, nil)

	comments, err := service.ListByCanvas(context.Background(), "c1", "userB")
	assert.NoError(t, err)
	assert.Len(t, comments, 2)
	assert.Equal(t, "m1", comments[0].ID)
	mockAuth.AssertExpectations(t)
}

func TestDelete_UnknownComment(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAuth := new(MockAuthorizer)
	service := NewService(mockRepo, mockAuth)

	mockAuth.On("Authorize", mock.Anything, "c1", "userB", access.RoleViewer).Return(nil)
	mockRepo.On("Delete", mock.Anything, "c1", "missing").Return(false, nil)

	err := service.Delete(context.Background(), "c1", "userB", "missing")
	apiErr, ok := err.(*errors.APIError)
	assert.True(t, ok)
	assert.Equal(t, 404, apiErr.Status)
}

func TestDelete_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAuth := new(MockAuthorizer)
	service := NewService(mockRepo, mockAuth)

	mockAuth.On("Authorize", mock.Anything, "c1", "userB", access.RoleViewer).Return(nil)
	mockRepo.On("Delete", mock.Anything, "c1", "m1").Return(true, nil)

	err := service.Delete(context.Background(), "c1", "userB", "m1")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

// TestDeleteAllForCanvas exercises the cascade hook used by canvas deletion;
// no authorization check happens here because the caller already holds owner.
func TestDeleteAllForCanvas(t *testing.T) {
	mockRepo := new(MockRepository)
	mockAuth := new(MockAuthorizer)
	service := NewService(mockRepo, mockAuth)

	mockRepo.On("DeleteAllForCanvas", mock.Anything, "c1").Return(int64(3), nil)

	removed, err := service.DeleteAllForCanvas(context.Background(), "c1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	mockAuth.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
