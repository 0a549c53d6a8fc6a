package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pharmacy-pos-api-server/internal/models"
	"pharmacy-pos-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DocumentHandler struct {
	DB  *mongo.Database
	Hub *socket.Hub
}

// --- Structs cho Request Body ---

type CreateDocumentItemRequest struct {
	BatchID          string `json:"batchID" binding:"required"`
	QuantityExpected int    `json:"quantityExpected" binding:"required,min=1"`
	Price            string `json:"price"`
}

type CreateDocumentRequest struct {
	CounterpartyID string                      `json:"counterpartyID" binding:"required"`
	PharmacyID     string                      `json:"pharmacyID"`
	Items          []CreateDocumentItemRequest `json:"items" binding:"required,min=1"`
}

type ValidateScanRequest struct {
	Code    string `json:"code"`
	BatchID string `json:"batch_id"`
}

type AcceptItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type RecordDiscrepancyRequest struct {
	Reason   string `json:"reason" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Comment  string `json:"comment"`
}

// CreateDocument tạo một chứng từ nhập hàng mới ở trạng thái VERIFYING.
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pharmacyID := req.PharmacyID
	if pharmacyID == "" {
		pharmacyID = c.GetString("user_pharmacy_id")
	}

	// Kiểm tra counterparty có tồn tại không
	var counterparty models.Counterparty
	err := h.DB.Collection("counterparties").FindOne(context.Background(),
		bson.M{"counterpartyID": req.CounterpartyID}).Decode(&counterparty)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Counterparty not found: %s", req.CounterpartyID)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check counterparty existence"})
		return
	}

	items := make([]models.DocumentItem, 0, len(req.Items))
	for _, reqItem := range req.Items {
		var batch models.Batch
		err := h.DB.Collection("batches").FindOne(context.Background(),
			bson.M{"batchID": reqItem.BatchID}).Decode(&batch)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Batch not found: %s", reqItem.BatchID)})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check batch existence"})
			return
		}

		var product models.Product
		err = h.DB.Collection("products").FindOne(context.Background(),
			bson.M{"sku": batch.SKU}).Decode(&product)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to resolve product for batch %s", batch.BatchID)})
			return
		}

		if _, err := models.ParsePrice(reqItem.Price); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		items = append(items, models.DocumentItem{
			ItemID:           uuid.New().String(),
			SKU:              batch.SKU,
			ProductName:      product.Name,
			BatchID:          batch.BatchID,
			Barcode:          batch.Barcode,
			QuantityExpected: reqItem.QuantityExpected,
			Price:            reqItem.Price,
		})
	}

	newDoc := models.Document{
		DocumentID:     fmt.Sprintf("DOC-%s", strings.ToUpper(uuid.New().String()[:8])),
		Type:           models.DocumentTypeReceiving,
		Status:         models.DocumentStatusVerifying,
		CounterpartyID: req.CounterpartyID,
		PharmacyID:     pharmacyID,
		Items:          items,
		CreatedBy:      c.GetString("user_id"),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	result, err := h.DB.Collection("documents").InsertOne(context.Background(), newDoc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create document"})
		return
	}
	newDoc.ID = result.InsertedID.(primitive.ObjectID)

	c.JSON(http.StatusCreated, newDoc)
}

// GetDocument trả về chứng từ theo documentID. The optional "filter" query
// param applies the read-side item projection (all/accepted/discrepancy).
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, ok := h.findDocument(c)
	if !ok {
		return
	}

	if filter := c.Query("filter"); filter != "" && filter != models.FilterAll {
		doc.Items = models.FilterItems(doc.Items, filter)
	}
	c.JSON(http.StatusOK, doc)
}

// GetAllDocuments lấy danh sách chứng từ, lọc theo type/status nếu có.
func (h *DocumentHandler) GetAllDocuments(c *gin.Context) {
	filter := bson.M{}
	if t := c.Query("type"); t != "" {
		filter["type"] = t
	}
	if s := c.Query("status"); s != "" {
		filter["status"] = s
	}

	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := h.DB.Collection("documents").Find(context.Background(), filter, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query documents"})
		return
	}
	defer cursor.Close(context.Background())

	var docs []models.Document
	if err = cursor.All(context.Background(), &docs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode documents"})
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

// ValidateScan resolves a scanned batch/code against the expected lines and
// returns the matching line, or 404 when no line matches.
func (h *DocumentHandler) ValidateScan(c *gin.Context) {
	var req ValidateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	code := req.Code
	if code == "" {
		code = req.BatchID
	}
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Scan payload carries no code or batch identifier"})
		return
	}

	doc, ok := h.findDocument(c)
	if !ok {
		return
	}
	if doc.Status != models.DocumentStatusVerifying {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Document %s is not being verified", doc.DocumentID)})
		return
	}

	for i := range doc.Items {
		it := &doc.Items[i]
		if it.Barcode == code || it.BatchID == code {
			c.JSON(http.StatusOK, it)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Scanned code %s does not match any expected line", code)})
}

// AcceptItem accepts a quantity on a line. The quantity is bounded by the
// remaining amount (quantityExpected - quantityScanned).
func (h *DocumentHandler) AcceptItem(c *gin.Context) {
	var req AcceptItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, ok := h.findDocument(c)
	if !ok {
		return
	}
	if doc.Status != models.DocumentStatusVerifying {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Document %s is not being verified", doc.DocumentID)})
		return
	}

	itemID := c.Param("itemID")
	item := findItem(doc, itemID)
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document item not found"})
		return
	}
	if remaining := item.QuantityRemaining(); req.Quantity > remaining {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fmt.Sprintf("Quantity %d exceeds remaining %d on line %s", req.Quantity, remaining, itemID),
		})
		return
	}

	item.QuantityScanned += req.Quantity
	item.QuantityAccepted += req.Quantity

	if !h.saveItems(c, doc) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "item": item})
}

// RecordDiscrepancy records an operator-reported mismatch on a line.
func (h *DocumentHandler) RecordDiscrepancy(c *gin.Context) {
	var req RecordDiscrepancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidDiscrepancyReason(req.Reason) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown discrepancy reason: %s", req.Reason)})
		return
	}

	doc, ok := h.findDocument(c)
	if !ok {
		return
	}
	if doc.Status != models.DocumentStatusVerifying {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Document %s is not being verified", doc.DocumentID)})
		return
	}

	itemID := c.Param("itemID")
	item := findItem(doc, itemID)
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document item not found"})
		return
	}
	if req.Quantity > item.QuantityExpected {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fmt.Sprintf("Quantity %d exceeds expected %d on line %s", req.Quantity, item.QuantityExpected, itemID),
		})
		return
	}

	disc := models.Discrepancy{
		DiscrepancyID: uuid.New().String(),
		ItemID:        item.ItemID,
		Reason:        req.Reason,
		Quantity:      req.Quantity,
		Comment:       req.Comment,
		Status:        models.DiscrepancyStatusRecorded,
		RecordedBy:    c.GetString("user_id"),
		CreatedAt:     time.Now(),
	}
	item.Discrepancies = append(item.Discrepancies, disc)
	item.IsDiscrepancy = true
	item.QuantityScanned += req.Quantity

	if !h.saveItems(c, doc) {
		return
	}
	c.JSON(http.StatusCreated, disc)
}

// CancelDiscrepancy soft-deletes a recorded discrepancy and re-opens the
// line for further scanning.
func (h *DocumentHandler) CancelDiscrepancy(c *gin.Context) {
	doc, ok := h.findDocument(c)
	if !ok {
		return
	}

	discrepancyID := c.Param("discrepancyID")
	for i := range doc.Items {
		item := &doc.Items[i]
		for j := range item.Discrepancies {
			d := &item.Discrepancies[j]
			if d.DiscrepancyID != discrepancyID {
				continue
			}
			if d.Status == models.DiscrepancyStatusCancelled {
				c.JSON(http.StatusConflict, gin.H{"error": "Discrepancy is already cancelled"})
				return
			}
			d.Status = models.DiscrepancyStatusCancelled
			item.QuantityScanned -= d.Quantity
			item.IsDiscrepancy = hasRecordedDiscrepancy(item)

			if !h.saveItems(c, doc) {
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "success", "item": item})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Discrepancy not found"})
}

// CompleteDocument marks the whole document as received.
func (h *DocumentHandler) CompleteDocument(c *gin.Context) {
	doc, ok := h.findDocument(c)
	if !ok {
		return
	}
	if doc.Status != models.DocumentStatusVerifying {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Document %s is not being verified", doc.DocumentID)})
		return
	}

	now := time.Now()
	_, err := h.DB.Collection("documents").UpdateOne(context.Background(),
		bson.M{"documentID": doc.DocumentID},
		bson.M{"$set": bson.M{
			"status":      models.DocumentStatusReceived,
			"completedAt": now,
			"updatedAt":   now,
		}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete document"})
		return
	}

	// Let the companion phone know this session is done scanning.
	userID := c.GetString("user_id")
	env, envErr := socket.NewEnvelope(socket.EventStatusUpdated, models.SessionStatus{
		Status: models.SessionStatusNotReady,
	})
	if envErr == nil {
		h.Hub.Send(userID, socket.RolePhone, env)
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Receiving completed for document " + doc.DocumentID})
}

// CreateReturn builds a RETURN document out of the recorded (uncancelled)
// discrepancy quantities. Totals use decimal arithmetic.
func (h *DocumentHandler) CreateReturn(c *gin.Context) {
	doc, ok := h.findDocument(c)
	if !ok {
		return
	}

	var returnItems []models.DocumentItem
	total := decimal.Zero
	for _, item := range doc.Items {
		qty := 0
		for _, d := range item.Discrepancies {
			if d.Status == models.DiscrepancyStatusRecorded {
				qty += d.Quantity
			}
		}
		if qty == 0 {
			continue
		}
		price, err := models.ParsePrice(item.Price)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		returnItems = append(returnItems, models.DocumentItem{
			ItemID:           uuid.New().String(),
			SKU:              item.SKU,
			ProductName:      item.ProductName,
			BatchID:          item.BatchID,
			Barcode:          item.Barcode,
			QuantityExpected: qty,
			Price:            item.Price,
		})
	}
	if len(returnItems) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Document has no recorded discrepancies to return"})
		return
	}

	returnDoc := models.Document{
		DocumentID:     fmt.Sprintf("RET-%s", strings.ToUpper(uuid.New().String()[:8])),
		Type:           models.DocumentTypeReturn,
		Status:         models.DocumentStatusDraft,
		CounterpartyID: doc.CounterpartyID,
		PharmacyID:     doc.PharmacyID,
		Items:          returnItems,
		TotalPrice:     total.String(),
		ParentID:       doc.DocumentID,
		CreatedBy:      c.GetString("user_id"),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	result, err := h.DB.Collection("documents").InsertOne(context.Background(), returnDoc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create return document"})
		return
	}
	returnDoc.ID = result.InsertedID.(primitive.ObjectID)

	c.JSON(http.StatusCreated, returnDoc)
}

// --- helpers ---

func (h *DocumentHandler) findDocument(c *gin.Context) (*models.Document, bool) {
	documentID := c.Param("id")
	var doc models.Document
	err := h.DB.Collection("documents").FindOne(context.Background(),
		bson.M{"documentID": documentID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve document"})
		}
		return nil, false
	}
	return &doc, true
}

func (h *DocumentHandler) saveItems(c *gin.Context, doc *models.Document) bool {
	_, err := h.DB.Collection("documents").UpdateOne(context.Background(),
		bson.M{"documentID": doc.DocumentID},
		bson.M{"$set": bson.M{"items": doc.Items, "updatedAt": time.Now()}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update document"})
		return false
	}
	return true
}

func findItem(doc *models.Document, itemID string) *models.DocumentItem {
	for i := range doc.Items {
		if doc.Items[i].ItemID == itemID {
			return &doc.Items[i]
		}
	}
	return nil
}

func hasRecordedDiscrepancy(item *models.DocumentItem) bool {
	for _, d := range item.Discrepancies {
		if d.Status == models.DiscrepancyStatusRecorded {
			return true
		}
	}
	return false
}
