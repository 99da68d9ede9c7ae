package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReportCounters is the aggregate the daily report is rendered from
type ReportCounters struct {
	Date      time.Time        `json:"date"`
	Orders    OrderCounters    `json:"orders"`
	Customers CustomerCounters `json:"customers"`
	Agents    AgentCounters    `json:"agents"`
}

// OrderCounters summarises the orders of one day
type OrderCounters struct {
	Total     int     `json:"total"`
	Value     float64 `json:"value"`
	Succeeded int     `json:"succeeded"`
	Cancelled int     `json:"cancelled"`
}

// CustomerCounters splits the day's customers into first-time and returning
type CustomerCounters struct {
	New       int `json:"new"`
	Returning int `json:"returning"`
}

// AgentCounters is the delivery agent snapshot for the day
type AgentCounters struct {
	Active   int    `json:"active"`
	TopAgent string `json:"top_agent"`
}

// AgentPerformance feeds the per-agent WhatsApp report
type AgentPerformance struct {
	CompletedOrders int     `json:"completed_orders"`
	TotalSales      float64 `json:"total_sales"`
	CustomerRating  float64 `json:"customer_rating"`
	Rank            int     `json:"rank"`
}

// Order is a customer order handled by a delivery agent
type Order struct {
	OrderID       string    `bson:"order_id" json:"order_id"`
	CustomerName  string    `bson:"customer_name" json:"customer_name"`
	CustomerPhone string    `bson:"customer_phone" json:"customer_phone"`
	Product       string    `bson:"product" json:"product"`
	Quantity      int       `bson:"quantity" json:"quantity"`
	Value         float64   `bson:"value" json:"value"`
	Status        string    `bson:"status" json:"status"` // new, assigned, in_progress, delivered, cancelled
	AgentID       string    `bson:"agent_id,omitempty" json:"agent_id,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderNew       = "new"
	OrderAssigned  = "assigned"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

// ReportRecord is a generated report and its delivery outcome
type ReportRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportType string             `bson:"report_type" json:"report_type"`
	Title      string             `bson:"title" json:"title"`
	Content    string             `bson:"content" json:"content"`
	Recipients []string           `bson:"recipients" json:"recipients"`
	Status     string             `bson:"status" json:"status"` // "sent" or "failed"
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	SentAt     *time.Time         `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
}
