package comment

import (
	"collaborative-canvas-backend/internal/access"
	"collaborative-canvas-backend/internal/errors"
	"context"
	defError "errors"
	"time"
)

// Authorizer decides whether a user may act on a canvas. Satisfied by the
// canvas reconciler, which also applies owner self-heal. Comments carry no
// role model of their own: viewer access is enough to read and to post.
type Authorizer interface {
	Authorize(ctx context.Context, canvasID, userID string, required access.Role) error
}

type Service interface {
	Upsert(ctx context.Context, canvasID, userID string, input CommentInput) (*Comment, error)
	ListByCanvas(ctx context.Context, canvasID, userID string) ([]Comment, error)
	Delete(ctx context.Context, canvasID, userID, commentID string) error
	DeleteAllForCanvas(ctx context.Context, canvasID string) (int64, error)
}

type CommentInput struct {
	ID        string
	Timestamp int64
	Text      string
}

type DefaultService struct {
	repository Repository
	authorizer Authorizer
}

// NewService creates a new comment service
func NewService(repository Repository, authorizer Authorizer) Service {
	return &DefaultService{
		repository: repository,
		authorizer: authorizer,
	}
}

func (s *DefaultService) Upsert(ctx context.Context, canvasID, userID string, input CommentInput) (*Comment, error) {
	if input.ID == "" {
		return nil, errors.NewValidationError(defError.New("comment id is required"))
	}
	if input.Text == "" {
		return nil, errors.NewValidationError(defError.New("comment text is required"))
	}
	if err := s.authorizer.Authorize(ctx, canvasID, userID, access.RoleViewer); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	comment := &Comment{
		CanvasID:  canvasID,
		ID:        input.ID,
		AuthorID:  userID,
		Timestamp: input.Timestamp,
		Text:      input.Text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repository.Upsert(ctx, comment); err != nil {
		return nil, err
	}
	// re-read so a re-submission reports the original created_at
	return s.repository.Find(ctx, canvasID, input.ID)
}

func (s *DefaultService) ListByCanvas(ctx context.Context, canvasID, userID string) ([]Comment, error) {
	if err := s.authorizer.Authorize(ctx, canvasID, userID, access.RoleViewer); err != nil {
		return nil, err
	}
	return s.repository.ListByCanvas(ctx, canvasID)
}

func (s *DefaultService) Delete(ctx context.Context, canvasID, userID, commentID string) error {
	if err := s.authorizer.Authorize(ctx, canvasID, userID, access.RoleViewer); err != nil {
		return err
	}
	removed, err := s.repository.Delete(ctx, canvasID, commentID)
	if err != nil {
		return err
	}
	if !removed {
		return errors.NotFound("Comment not found", nil)
	}
	return nil
}

// DeleteAllForCanvas is the cascade hook used by canvas deletion; the
// caller has already authorized the delete at owner level.
func (s *DefaultService) DeleteAllForCanvas(ctx context.Context, canvasID string) (int64, error) {
	return s.repository.DeleteAllForCanvas(ctx, canvasID)
}
