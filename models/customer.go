package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Customer is a buyer identified by phone number
type Customer struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Phone        string             `bson:"phone" json:"phone"`
	Name         string             `bson:"name" json:"name"`
	FirstOrderAt time.Time          `bson:"first_order_at" json:"first_order_at"`
	OrdersCount  int                `bson:"orders_count" json:"orders_count"`
}

// Agent is a delivery agent
type Agent struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AgentID  string             `bson:"agent_id" json:"agent_id"`
	Name     string             `bson:"name" json:"name"`
	Phone    string             `bson:"phone" json:"phone"`
	IsActive bool               `bson:"is_active" json:"is_active"`
	Rating   float64            `bson:"rating" json:"rating"`
}
