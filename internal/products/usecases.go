package products

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ProductUseCase handles the catalog business logic
type ProductUseCase struct {
	repository Repository
	logger     *zap.Logger
}

// NewProductUseCase creates a new ProductUseCase
func NewProductUseCase(repository Repository, logger *zap.Logger) *ProductUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductUseCase{repository: repository, logger: logger}
}

func (uc *ProductUseCase) GetAll(ctx context.Context) ([]Product, error) {
	return uc.repository.FindAll(ctx)
}

func (uc *ProductUseCase) GetByID(ctx context.Context, id int64) (*Product, error) {
	product, err := uc.repository.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return product, nil
}

// Create stores a new product; any incoming id is ignored
func (uc *ProductUseCase) Create(ctx context.Context, product Product) (*Product, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}
	product.ID = 0

	saved, err := uc.repository.Insert(ctx, &product)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("product created", zap.Int64("product_id", saved.ID), zap.Int("quantity", saved.Quantity))
	return saved, nil
}

// CreateBulk stores every product or none of them
func (uc *ProductUseCase) CreateBulk(ctx context.Context, products []Product) ([]Product, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: at least one product is required", ErrInvalidProduct)
	}
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		products[i].ID = 0
	}

	saved, err := uc.repository.InsertAll(ctx, products)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("products created", zap.Int("count", len(saved)))
	return saved, nil
}

// Update replaces the stored fields of the product with the given id
func (uc *ProductUseCase) Update(ctx context.Context, id int64, product Product) (*Product, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}
	product.ID = id

	saved, err := uc.repository.Update(ctx, &product)
	if err != nil {
		return nil, notFound(err, id)
	}

	uc.logger.Debug("product replaced",
		zap.Int64("product_id", id),
		zap.Int("quantity", saved.Quantity),
	)
	return saved, nil
}

func (uc *ProductUseCase) Delete(ctx context.Context, id int64) error {
	if err := uc.repository.Delete(ctx, id); err != nil {
		return notFound(err, id)
	}
	uc.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

func notFound(err error, id int64) error {
	if errors.Is(err, ErrProductNotFound) {
		return fmt.Errorf("%w with id: %d", ErrProductNotFound, id)
	}
	return err
}
