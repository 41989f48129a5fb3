package service

import (
	"context"
	"fmt"

	"github.com/utafrali/storefront/internal/domain"
)

// CartService serves the cart summary.
type CartService struct {
	carts CartBackend
}

// NewCartService creates a new cart service.
func NewCartService(carts CartBackend) *CartService {
	return &CartService{carts: carts}
}

// Badge returns the cart items and their total quantity. The count is
// derived on every call.
func (s *CartService) Badge(ctx context.Context, token string) (*domain.CartBadge, error) {
	items, err := s.carts.GetCart(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	return &domain.CartBadge{Items: items, Count: domain.ItemCount(items)}, nil
}
