package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"lendflow/internal/apperr"
	"lendflow/internal/cache"
	"lendflow/internal/model"
	"lendflow/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	productCacheKey = "products:active"
	productCacheTTL = 5 * time.Minute
)

type CreateProductRequest struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	MinAmount   string `json:"min_amount" binding:"required"`
	MaxAmount   string `json:"max_amount" binding:"required"`
}

type ProductResponse struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MinAmount   string `json:"min_amount"`
	MaxAmount   string `json:"max_amount"`
	IsActive    bool   `json:"is_active"`
}

// ProductService manages the loan product catalog. The catalog changes
// rarely, so ListActive is served through the cache port; writes invalidate.
type ProductService interface {
	Create(ctx context.Context, actor model.Actor, req CreateProductRequest) (*ProductResponse, error)
	ListActive(ctx context.Context) ([]ProductResponse, error)
	// GetActiveByCode looks a product up for application intake. Inactive
	// products are rejected.
	GetActiveByCode(ctx context.Context, code string) (*model.LoanProduct, error)
}

type productService struct {
	repo  repository.ProductRepository
	cache cache.Cache
}

func NewProductService(repo repository.ProductRepository, c cache.Cache) ProductService {
	return &productService{repo: repo, cache: c}
}

func (s *productService) Create(ctx context.Context, actor model.Actor, req CreateProductRequest) (*ProductResponse, error) {
	if !actor.Role.Elevated() {
		return nil, apperr.New(apperr.KindUnauthorized, "role %s may not manage the product catalog", actor.Role)
	}

	minAmount, err := decimal.NewFromString(req.MinAmount)
	if err != nil || minAmount.IsNegative() {
		return nil, apperr.New(apperr.KindValidation, "invalid min amount %q", req.MinAmount)
	}
	maxAmount, err := decimal.NewFromString(req.MaxAmount)
	if err != nil || maxAmount.LessThan(minAmount) {
		return nil, apperr.New(apperr.KindValidation, "max amount must be at least the min amount")
	}
	if _, err := s.repo.GetByCode(ctx, req.Code); err == nil {
		return nil, apperr.New(apperr.KindValidation, "product code %q already exists", req.Code)
	}

	product := &model.LoanProduct{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		MinAmount:   minAmount,
		MaxAmount:   maxAmount,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, productCacheKey); err != nil {
		log.Printf("product cache invalidation failed: %v", err)
	}

	resp := toProductResponse(*product)
	return &resp, nil
}

func (s *productService) ListActive(ctx context.Context) ([]ProductResponse, error) {
	if raw, ok, err := s.cache.Get(ctx, productCacheKey); err == nil && ok {
		var cached []ProductResponse
		if json.Unmarshal(raw, &cached) == nil {
			return cached, nil
		}
	}

	products, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}

	if raw, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, productCacheKey, raw, productCacheTTL); err != nil {
			log.Printf("product cache write failed: %v", err)
		}
	}
	return out, nil
}

func (s *productService) GetActiveByCode(ctx context.Context, code string) (*model.LoanProduct, error) {
	product, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperr.New(apperr.KindValidation, "product %s is no longer offered", code)
	}
	return product, nil
}

func toProductResponse(p model.LoanProduct) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		MinAmount:   p.MinAmount.StringFixed(2),
		MaxAmount:   p.MaxAmount.StringFixed(2),
		IsActive:    p.IsActive,
	}
}
