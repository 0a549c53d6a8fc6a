package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Pharmacy struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PharmacyID string             `bson:"pharmacyID" json:"pharmacyID"` // User-friendly unique ID, e.g., "ph-centro-01"
	Name       string             `bson:"name" json:"name"`
	Address    Address            `bson:"address" json:"address"`
	Status     string             `bson:"status" json:"status"` // e.g., "ACTIVE", "INACTIVE"
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
