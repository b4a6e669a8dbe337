package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/launchfox/launchfox/app/models"
)

// itemRepository implements the ItemRepository interface
type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new item repository instance
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

// Create creates a new item in the database
func (r *itemRepository) Create(item *models.Item) error {
	return r.db.Create(item).Error
}

// GetByUUID retrieves an item by UUID, scoped to its owner. Other users' items
// are indistinguishable from missing ones.
func (r *itemRepository) GetByUUID(userID uint, itemUUID string) (*models.Item, error) {
	var item models.Item
	err := r.db.Where("uuid = ? AND user_id = ?", itemUUID, userID).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetByUserID retrieves items for a specific user with pagination
func (r *itemRepository) GetByUserID(userID uint, offset, limit int) ([]models.Item, error) {
	var items []models.Item
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	return items, err
}

// Update updates an existing item
func (r *itemRepository) Update(item *models.Item) error {
	return r.db.Save(item).Error
}

// Delete removes an item by UUID, scoped to its owner.
func (r *itemRepository) Delete(userID uint, itemUUID string) error {
	res := r.db.Where("uuid = ? AND user_id = ?", itemUUID, userID).Delete(&models.Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByUser returns the number of items owned by the user.
func (r *itemRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
