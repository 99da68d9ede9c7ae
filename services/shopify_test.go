package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply-bot/models"
)

func TestBuildSnapshot(t *testing.T) {
	products := []models.Product{
		{Title: "تيشيرت", Category: "ملابس"},
		{Title: "ساعة", Category: "اكسسوارات"},
		{Title: "بنطلون", Category: "ملابس"},
		{Title: "بدون قسم"},
	}
	synced := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	snap := BuildSnapshot(products, synced)
	assert.Equal(t, []string{"اكسسوارات", "ملابس"}, snap.Categories)
	assert.Len(t, snap.Products, 4)
	assert.Len(t, snap.PopularItems, 4)
	assert.Equal(t, synced, snap.SyncedAt)

	// the snapshot owns its products
	products[0].Title = "changed"
	assert.Equal(t, "تيشيرت", snap.Products[0].Title)
}

func TestBuildSnapshot_PopularLimitAndDefaults(t *testing.T) {
	var products []models.Product
	for i := 0; i < 8; i++ {
		products = append(products, models.Product{Title: fmt.Sprintf("p%d", i)})
	}

	snap := BuildSnapshot(products, time.Now())
	assert.Len(t, snap.PopularItems, popularItemsLimit)
	assert.Equal(t, defaultCategories, snap.Categories)
}

func TestShopifyMemory_DefaultSnapshot(t *testing.T) {
	m := NewShopifyMemory()
	assert.Equal(t, []string{"ملابس", "اكسسوارات", "احذية"}, m.Snapshot().Categories)
	assert.Empty(t, m.Snapshot().Products)
}

func TestShopifyMemory_ConcurrentReplace(t *testing.T) {
	m := NewShopifyMemory()
	a := []models.Product{{Title: "a1", Category: "A"}, {Title: "a2", Category: "A"}}
	b := []models.Product{{Title: "b1", Category: "B"}}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Replace(a)
		}()
		go func() {
			defer wg.Done()
			snap := m.Snapshot()
			// readers see a whole snapshot, never a mix
			switch len(snap.Products) {
			case 0:
				assert.Len(t, snap.Categories, 3)
			case 2:
				assert.Equal(t, []string{"A"}, snap.Categories)
			case 1:
				assert.Equal(t, []string{"B"}, snap.Categories)
			}
		}()
		if i%10 == 0 {
			m.Replace(b)
		}
	}
	wg.Wait()
}

func TestStoreBaseURL(t *testing.T) {
	assert.Equal(t, "https://mystore.myshopify.com", storeBaseURL("mystore"))
	assert.Equal(t, "https://shop.example.com", storeBaseURL("shop.example.com/"))
	assert.Equal(t, "http://localhost:9000", storeBaseURL("http://localhost:9000"))
}

func TestFetchProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/products.json", r.URL.Path)
		assert.Equal(t, "250", r.URL.Query().Get("limit"))
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))

		io.WriteString(w, `{"products":[
			{"id":101,"title":"جاكيت جلد","product_type":"ملابس","status":"active",
			 "updated_at":"2024-02-01T10:00:00Z",
			 "variants":[{"price":"450.00"}],"image":{"src":"https://cdn/img.jpg"}},
			{"id":102,"title":"نظارة","product_type":"اكسسوارات","status":"draft","variants":[]}
		]}`)
	}))
	defer server.Close()

	products, err := NewShopifyClient(server.Client()).FetchProducts(context.Background(), server.URL, "shpat_test")
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, models.Product{
		ProductID:    "101",
		Title:        "جاكيت جلد",
		Price:        "450.00",
		Category:     "ملابس",
		ImageURL:     "https://cdn/img.jpg",
		Availability: true,
		UpdatedAt:    time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	}, products[0])
	assert.False(t, products[1].Availability)
	assert.Empty(t, products[1].Price)
}

func TestFetchProducts_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewShopifyClient(server.Client())

	_, err := client.FetchProducts(context.Background(), server.URL, "bad")
	assert.ErrorContains(t, err, "status 401")

	_, err = client.FetchProducts(context.Background(), "", "token")
	assert.Error(t, err)
}
