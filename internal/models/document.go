package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document types.
const (
	DocumentTypeReceiving = "RECEIVING"
	DocumentTypeReturn    = "RETURN"
)

// Document statuses.
const (
	DocumentStatusDraft     = "DRAFT"
	DocumentStatusVerifying = "VERIFYING"
	DocumentStatusReceived  = "RECEIVED"
	DocumentStatusCancelled = "CANCELLED"
)

// Discrepancy reasons. Fixed enumerated set; anything else is rejected.
const (
	ReasonExpired          = "expired"
	ReasonDamaged          = "damaged"
	ReasonWrongBatch       = "wrong_batch"
	ReasonWrongProduct     = "wrong_product"
	ReasonQuantityMismatch = "quantity_mismatch"
	ReasonNoSeries         = "no_series"
	ReasonOther            = "other"
)

// Discrepancy statuses (soft-delete semantics).
const (
	DiscrepancyStatusRecorded  = "RECORDED"
	DiscrepancyStatusCancelled = "CANCELLED"
)

// ValidDiscrepancyReason reports whether reason belongs to the enumerated set.
func ValidDiscrepancyReason(reason string) bool {
	switch reason {
	case ReasonExpired, ReasonDamaged, ReasonWrongBatch, ReasonWrongProduct,
		ReasonQuantityMismatch, ReasonNoSeries, ReasonOther:
		return true
	}
	return false
}

// Discrepancy is an operator-recorded mismatch on a document line.
// Immutable once recorded except for cancellation (status flip).
type Discrepancy struct {
	DiscrepancyID string    `bson:"discrepancyID" json:"discrepancyID"`
	ItemID        string    `bson:"itemID" json:"itemID"`
	Reason        string    `bson:"reason" json:"reason"`
	Quantity      int       `bson:"quantity" json:"quantity"`
	Comment       string    `bson:"comment,omitempty" json:"comment,omitempty"`
	Status        string    `bson:"status" json:"status"`
	RecordedBy    string    `bson:"recordedBy" json:"recordedBy"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}

// DocumentItem is one expected line of an inbound document. Quantities are
// server-authoritative: clients never mutate them locally, they refetch.
type DocumentItem struct {
	ItemID           string        `bson:"itemID" json:"itemID"`
	SKU              string        `bson:"sku" json:"sku"`
	ProductName      string        `bson:"productName" json:"productName"`
	BatchID          string        `bson:"batchID" json:"batchID"`
	Barcode          string        `bson:"barcode" json:"barcode"`
	QuantityExpected int           `bson:"quantityExpected" json:"quantityExpected"`
	QuantityScanned  int           `bson:"quantityScanned" json:"quantityScanned"`
	QuantityAccepted int           `bson:"quantityAccepted" json:"quantityAccepted"`
	Price            string        `bson:"price" json:"price"` // decimal string, see ParsePrice
	IsDiscrepancy    bool          `bson:"isDiscrepancy" json:"isDiscrepancy"`
	Discrepancies    []Discrepancy `bson:"discrepancies,omitempty" json:"discrepancies,omitempty"`
}

// QuantityRemaining is the quantity an "accept all remaining" decision covers.
func (it *DocumentItem) QuantityRemaining() int {
	return it.QuantityExpected - it.QuantityScanned
}

// Document is an inbound shipment record verified one scan at a time.
type Document struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID     string             `bson:"documentID" json:"documentID"` // e.g., "DOC-1A2B3C4D"
	Type           string             `bson:"type" json:"type"`
	Status         string             `bson:"status" json:"status"`
	CounterpartyID string             `bson:"counterpartyID" json:"counterpartyID"`
	PharmacyID     string             `bson:"pharmacyID" json:"pharmacyID"`
	Items          []DocumentItem     `bson:"items" json:"items"`
	TotalPrice     string             `bson:"totalPrice,omitempty" json:"totalPrice,omitempty"`
	ParentID       string             `bson:"parentID,omitempty" json:"parentID,omitempty"` // set on RETURN documents
	CreatedBy      string             `bson:"createdBy" json:"createdBy"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
	CompletedAt    *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Item filter modes for read-side projections.
const (
	FilterAll             = "all"
	FilterAcceptedOnly    = "accepted"
	FilterDiscrepancyOnly = "discrepancy"
)

// FilterItems projects the item list for one of the read-side views. It
// carries no workflow state: the same list filtered twice gives the same
// result until the document is refetched.
func FilterItems(items []DocumentItem, mode string) []DocumentItem {
	out := []DocumentItem{}
	for _, it := range items {
		switch mode {
		case FilterAcceptedOnly:
			if it.QuantityAccepted > 0 {
				out = append(out, it)
			}
		case FilterDiscrepancyOnly:
			if it.IsDiscrepancy {
				out = append(out, it)
			}
		default:
			out = append(out, it)
		}
	}
	return out
}
