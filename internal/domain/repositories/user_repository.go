package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *entities.User) error

	// FindByID retrieves a user by ID
	FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error)

	// FindByEmail retrieves a user by email
	FindByEmail(ctx context.Context, email string) (*entities.User, error)

	// FindByIDs retrieves several users at once
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entities.User, error)
}
