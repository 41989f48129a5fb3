package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
)

// cartSize is a size option as the backend sends it, with decimal prices.
type cartSize struct {
	Weight   domain.SizeWeight `json:"weight"`
	Price    float64           `json:"price"`
	OldPrice float64           `json:"oldPrice"`
	Servings int               `json:"servings"`
}

type cartItem struct {
	ProductID    string     `json:"productId"`
	Name         string     `json:"name"`
	Sizes        []cartSize `json:"sizes"`
	SizeSelected string     `json:"sizeSelected"`
	Quantity     int        `json:"quantity"`
}

// GetCart reads the shopper's cart as line items with prices in cents.
func (cl *Client) GetCart(ctx context.Context, token string) ([]domain.LineItem, error) {
	env, err := cl.do(ctx, call{
		method:  http.MethodGet,
		path:    pathCart,
		token:   token,
		service: "cart",
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		Items []cartItem `json:"items"`
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("cart: %w: %w", ErrMalformedResponse, err)
		}
	}

	items := make([]domain.LineItem, 0, len(data.Items))
	for _, it := range data.Items {
		sizes := make([]domain.SizeOption, 0, len(it.Sizes))
		for _, s := range it.Sizes {
			sizes = append(sizes, domain.SizeOption{
				Weight:   s.Weight,
				Price:    domain.CentsFromAmount(s.Price),
				OldPrice: domain.CentsFromAmount(s.OldPrice),
				Servings: s.Servings,
			})
		}
		items = append(items, domain.LineItem{
			ProductID:    it.ProductID,
			ProductName:  it.Name,
			Sizes:        sizes,
			SizeSelected: it.SizeSelected,
			Quantity:     it.Quantity,
		})
	}
	return items, nil
}
