package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/sellhub/internal/models"
	"github.com/diewo77/sellhub/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	maxNameLength     = 100
	maxCategoryLength = 100
)

// ProductInput is the payload of a product creation.
type ProductInput struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (in ProductInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLength("name", in.Name, maxNameLength, v)
	validation.Required("category", in.Category, v)
	validation.MaxLength("category", in.Category, maxCategoryLength, v)
	validation.NonNegativeInt("quantity", in.Quantity, v)
	validation.Price("price", in.Price, v)
	return v
}

// ProductPatch carries the fields of a partial update; nil means "leave as is".
type ProductPatch struct {
	Name     *string          `json:"name"`
	Category *string          `json:"category"`
	Quantity *int             `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

func (p ProductPatch) Validate() validation.Violations {
	v := validation.Violations{}
	if p.Name != nil {
		validation.Required("name", *p.Name, v)
		validation.MaxLength("name", *p.Name, maxNameLength, v)
	}
	if p.Category != nil {
		validation.Required("category", *p.Category, v)
		validation.MaxLength("category", *p.Category, maxCategoryLength, v)
	}
	if p.Quantity != nil {
		validation.NonNegativeInt("quantity", *p.Quantity, v)
	}
	if p.Price != nil {
		validation.Price("price", *p.Price, v)
	}
	return v
}

// ListFilter narrows a product listing. Query matches name or category, case-insensitively.
type ListFilter struct {
	Query string
}

// CatalogService manages products.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// Create validates and inserts a product.
func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	p := models.Product{
		Name:     strings.TrimSpace(in.Name),
		Category: strings.TrimSpace(in.Category),
		Quantity: in.Quantity,
		Price:    in.Price.Round(2),
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &p, nil
}

// List returns non-deleted products, newest first.
func (s *CatalogService) List(ctx context.Context, f ListFilter) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(category) LIKE ?)", like, like)
	}
	var products []models.Product
	if err := q.Order("created_at DESC").Order("id DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Get returns a product by id, including soft-deleted ones.
func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Unscoped().First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

// Update applies the supplied fields of patch and refreshes updated_at.
func (s *CatalogService) Update(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	if err := patch.Validate().Err(); err != nil {
		return nil, err
	}
	updates := map[string]any{"updated_at": time.Now()}
	if patch.Name != nil {
		updates["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Category != nil {
		updates["category"] = strings.TrimSpace(*patch.Category)
	}
	if patch.Quantity != nil {
		updates["quantity"] = *patch.Quantity
	}
	if patch.Price != nil {
		updates["price"] = patch.Price.Round(2)
	}

	var p models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().First(&p, id).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Model(&p).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Unscoped().First(&p, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	return &p, nil
}

// Delete soft-deletes a product and returns it. Deleting an already deleted
// product returns it unchanged.
func (s *CatalogService) Delete(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().First(&p, id).Error; err != nil {
			return err
		}
		if p.IsDeleted() {
			return nil
		}
		if err := tx.Delete(&p).Error; err != nil {
			return err
		}
		return tx.Unscoped().First(&p, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("delete product %d: %w", id, err)
	}
	return &p, nil
}
