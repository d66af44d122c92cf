package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avilesdev/storefront-backend/internal/repo"
	"github.com/avilesdev/storefront-backend/pkg/db/models"
	"github.com/avilesdev/storefront-backend/pkg/pagination"
)

// Repository exposes catalog persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a products repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// List returns a page of products ordered newest first.
func (r *Repository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Product, error) {
	query := r.DB(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID loads a single product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Latest returns the most recently created product.
func (r *Repository) Latest(ctx context.Context) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).
		Order("created_at DESC").
		Order("id DESC").
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Create inserts a new product.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Create(product).Error
}

// Update persists the modified columns of an existing product.
func (r *Repository) Update(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Save(product).Error
}

// Delete removes the product row. Returns gorm.ErrRecordNotFound when absent.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.DB(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Count reports the number of catalog rows.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}

// InsertBatch bulk-creates products in chunks.
func (r *Repository) InsertBatch(ctx context.Context, rows []models.Product, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(rows)
	}
	return r.DB(ctx).CreateInBatches(&rows, batchSize).Error
}
