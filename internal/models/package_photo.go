package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PackagePhoto is an uploaded photo of a received package, attached to a
// document line. Selecting photos in the acceptance step implies the
// accepted quantity.
type PackagePhoto struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID string             `bson:"documentID" json:"documentID"`
	ItemID     string             `bson:"itemID" json:"itemID"`
	PhotoURL   string             `bson:"photoURL" json:"photoURL"`
	UploadedBy string             `bson:"uploadedBy" json:"uploadedBy"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
