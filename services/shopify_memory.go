package services

import (
	"sort"
	"sync/atomic"
	"time"

	"autoreply-bot/models"
)

// defaultCategories are served until the first store sync completes
var defaultCategories = []string{"ملابس", "اكسسوارات", "احذية"}

const popularItemsLimit = 5

// ShopifyMemory holds the current inventory snapshot. Replace swaps the whole snapshot
// atomically; readers always see either the old or the new one.
type ShopifyMemory struct {
	current atomic.Pointer[models.ShopifySnapshot]
}

// NewShopifyMemory creates a memory seeded with the default categories
func NewShopifyMemory() *ShopifyMemory {
	m := &ShopifyMemory{}
	m.current.Store(&models.ShopifySnapshot{
		Categories: append([]string(nil), defaultCategories...),
	})
	return m
}

// Snapshot returns the current snapshot. Callers must treat it as read-only.
func (m *ShopifyMemory) Snapshot() *models.ShopifySnapshot {
	return m.current.Load()
}

// Replace builds a snapshot from products and swaps it in
func (m *ShopifyMemory) Replace(products []models.Product) *models.ShopifySnapshot {
	snap := BuildSnapshot(products, time.Now())
	m.current.Store(snap)
	return snap
}

// BuildSnapshot derives categories and popular items from a product list.
// Categories are de-duplicated and sorted; products without a category are skipped.
func BuildSnapshot(products []models.Product, syncedAt time.Time) *models.ShopifySnapshot {
	owned := append([]models.Product(nil), products...)

	seen := make(map[string]bool)
	categories := []string{}
	for _, p := range owned {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	if len(categories) == 0 {
		categories = append(categories, defaultCategories...)
	}

	popular := owned
	if len(popular) > popularItemsLimit {
		popular = popular[:popularItemsLimit]
	}

	return &models.ShopifySnapshot{
		Products:     owned,
		Categories:   categories,
		PopularItems: append([]models.Product(nil), popular...),
		SyncedAt:     syncedAt,
	}
}
