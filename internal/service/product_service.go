package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
)

const (
	productListCacheKey = "products:first_page"
	productListCacheTTL = 60 * time.Second
)

// ProductInput — входные данные создания/обновления товара
type ProductInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       int64  `json:"price" binding:"required"`
	Stock       int    `json:"stock"`
	Image       string `json:"image"`
}

// ProductPage — пагинированный список товаров
type ProductPage struct {
	Products []entity.Product `json:"products"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PerPage  int              `json:"per_page"`
}

// ProductService предоставляет методы для работы с каталогом
type ProductService struct {
	productRepo repository.ProductRepository
	cacheRepo   repository.CacheRepository
}

func NewProductService(productRepo repository.ProductRepository, cacheRepo repository.CacheRepository) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		cacheRepo:   cacheRepo,
	}
}

func (s *ProductService) validate(input *ProductInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return fmt.Errorf("%w: product name is required", apperrors.ErrValidation)
	}
	if input.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", apperrors.ErrValidation)
	}
	if input.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", apperrors.ErrValidation)
	}
	return nil
}

// List возвращает пагинированный список товаров. Первая страница без
// фильтров отдаётся из кеша (60s) — это самый горячий запрос витрины.
func (s *ProductService) List(filters repository.ProductFilters, page, pageSize int) (*ProductPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}

	cacheable := s.cacheRepo != nil && page == 1 && pageSize == 20 &&
		filters.Category == "" && filters.Search == ""

	if cacheable {
		var cached ProductPage
		if err := s.cacheRepo.GetJSON(productListCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	offset := (page - 1) * pageSize
	products, total, err := s.productRepo.ListWithFilters(filters, pageSize, offset)
	if err != nil {
		return nil, err
	}

	result := &ProductPage{
		Products: products,
		Total:    total,
		Page:     page,
		PerPage:  pageSize,
	}

	if cacheable {
		if err := s.cacheRepo.SetJSON(productListCacheKey, result, productListCacheTTL); err != nil {
			log.Printf("[ProductService] failed to cache product list: %v", err)
		}
	}

	return result, nil
}

func (s *ProductService) Get(id uint) (*entity.Product, error) {
	return s.productRepo.GetByID(id)
}

func (s *ProductService) Create(input ProductInput) (*entity.Product, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	product := &entity.Product{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Stock:       input.Stock,
		Image:       input.Image,
	}
	if err := s.productRepo.Create(product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	s.invalidateListCache()
	return product, nil
}

func (s *ProductService) Update(id uint, input ProductInput) (*entity.Product, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	product := &entity.Product{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Stock:       input.Stock,
		Image:       input.Image,
	}
	if err := s.productRepo.Update(product); err != nil {
		return nil, err
	}
	s.invalidateListCache()
	return s.productRepo.GetByID(id)
}

func (s *ProductService) Delete(id uint) error {
	if err := s.productRepo.Delete(id); err != nil {
		return err
	}
	s.invalidateListCache()
	return nil
}

func (s *ProductService) invalidateListCache() {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(productListCacheKey); err != nil {
		log.Printf("[ProductService] failed to invalidate product list cache: %v", err)
	}
}
