package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a medical product in the pharmacy catalog.
type Product struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SKU            string             `bson:"sku" json:"sku"`
	Name           string             `bson:"name" json:"name"`
	Description    string             `bson:"description" json:"description"`
	Unit           string             `bson:"unit" json:"unit"`         // e.g., "pack", "bottle", "ampoule"
	Category       string             `bson:"category" json:"category"` // e.g., "RX", "OTC", "SUPPLEMENT"
	Manufacturer   string             `bson:"manufacturer" json:"manufacturer"`
	Prescription   bool               `bson:"prescription" json:"prescription"`
	Active         bool               `bson:"active" json:"active"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
