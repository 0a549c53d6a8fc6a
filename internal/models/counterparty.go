package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Counterparty is a supplier or buyer the pharmacy exchanges documents with.
type Counterparty struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CounterpartyID string             `bson:"counterpartyID" json:"counterpartyID"`
	Name           string             `bson:"name" json:"name"`
	TaxNumber      string             `bson:"taxNumber" json:"taxNumber"`
	Phone          string             `bson:"phone" json:"phone"`
	Address        Address            `bson:"address" json:"address"`
	Status         string             `bson:"status" json:"status"` // "ACTIVE", "INACTIVE"
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
