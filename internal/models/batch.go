package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Batch is a concrete product series with its own barcode and expiry.
// Receiving documents reference batches, not bare products.
type Batch struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BatchID   string             `bson:"batchID" json:"batchID"` // e.g., "BATCH-1A2B3C4D"
	SKU       string             `bson:"sku" json:"sku"`
	Series    string             `bson:"series" json:"series"`
	Barcode   string             `bson:"barcode" json:"barcode"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
