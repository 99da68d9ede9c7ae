package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"autoreply-bot/models"
)

const shopifyAPIVersion = "2024-01"

// ShopifyClient reads the product catalogue from the Shopify Admin REST API
type ShopifyClient struct {
	client *http.Client
}

// NewShopifyClient creates a Shopify client
func NewShopifyClient(client *http.Client) *ShopifyClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ShopifyClient{client: client}
}

type shopifyProductsResponse struct {
	Products []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		BodyHTML    string `json:"body_html"`
		ProductType string `json:"product_type"`
		Status      string `json:"status"`
		UpdatedAt   string `json:"updated_at"`
		Variants    []struct {
			Price             string `json:"price"`
			InventoryQuantity int    `json:"inventory_quantity"`
		} `json:"variants"`
		Image *struct {
			Src string `json:"src"`
		} `json:"image"`
	} `json:"products"`
}

// storeBaseURL accepts "mystore", "mystore.myshopify.com" or a full URL
func storeBaseURL(storeURL string) string {
	s := strings.TrimRight(strings.TrimSpace(storeURL), "/")
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".myshopify.com"
	}
	return "https://" + s
}

// FetchProducts returns the store's products mapped to the bot's product model
func (s *ShopifyClient) FetchProducts(ctx context.Context, storeURL, accessToken string) ([]models.Product, error) {
	if storeURL == "" || accessToken == "" {
		return nil, fmt.Errorf("store url and access token are required")
	}

	endpoint := fmt.Sprintf("%s/admin/api/%s/products.json?limit=250", storeBaseURL(storeURL), shopifyAPIVersion)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read shopify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Shopify API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("shopify API error: status %d", resp.StatusCode)
	}

	var parsed shopifyProductsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode shopify products: %w", err)
	}

	products := make([]models.Product, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		product := models.Product{
			ProductID:    strconv.FormatInt(p.ID, 10),
			Title:        p.Title,
			Description:  p.BodyHTML,
			Category:     p.ProductType,
			Availability: p.Status == "" || p.Status == "active",
		}
		if len(p.Variants) > 0 {
			product.Price = p.Variants[0].Price
		}
		if p.Image != nil {
			product.ImageURL = p.Image.Src
		}
		if t, err := time.Parse(time.RFC3339, p.UpdatedAt); err == nil {
			product.UpdatedAt = t
		}
		products = append(products, product)
	}

	slog.Info("Fetched Shopify products", "store", storeURL, "count", len(products))
	return products, nil
}
