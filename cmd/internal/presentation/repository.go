//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=../mocks/mock_presentation_repository.go -package=mocks
package presentation

import "context"

// Repository is the persistence boundary for presentations and slides.
//
// Implementations return ErrNotFound / ErrSlideNotFound (possibly wrapped in
// OpError) for missing rows.
type Repository interface {
	FindByID(ctx context.Context, id string) (Session, error)
	FindByAccessCode(ctx context.Context, code string) (Session, error)
	// ExistsByAccessCode reports whether a non-expired session holds code.
	ExistsByAccessCode(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, s Session) error
	FindSlideByOrder(ctx context.Context, presentationID string, order int) (Slide, error)
}
