package models

import "time"

// Product is a store product known to the bot
type Product struct {
	ProductID    string    `bson:"product_id" json:"product_id"`
	Title        string    `bson:"title" json:"title"`
	Description  string    `bson:"description,omitempty" json:"description,omitempty"`
	Price        string    `bson:"price" json:"price"`
	Category     string    `bson:"category" json:"category"`
	ImageURL     string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Availability bool      `bson:"availability" json:"availability"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// ShopifySnapshot is an immutable view of the store inventory.
// A sync builds a new snapshot and swaps it in; readers never see partial updates.
type ShopifySnapshot struct {
	Products     []Product `json:"products"`
	Categories   []string  `json:"categories"`
	PopularItems []Product `json:"popular_items"`
	SyncedAt     time.Time `json:"synced_at"`
}

// ConnectionResult is the structured outcome of a connection test
type ConnectionResult struct {
	Service string      `json:"service"`
	Status  string      `json:"status"` // "success" or "error"
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Connection test statuses
const (
	ConnectionSuccess = "success"
	ConnectionError   = "error"
)
