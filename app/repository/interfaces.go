package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/launchfox/launchfox/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	Count() (int64, error)

	GetProviderAccount(provider, providerUserID string) (*models.ProviderAccount, error)
	SaveProviderAccount(account *models.ProviderAccount) error
}

// ItemRepository defines the interface for item-related database operations
type ItemRepository interface {
	Create(item *models.Item) error
	GetByUUID(userID uint, itemUUID string) (*models.Item, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Item, error)
	Update(item *models.Item) error
	Delete(userID uint, itemUUID string) error
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User UserRepository
	Item ItemRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Item: NewItemRepository(db),
	}
}
