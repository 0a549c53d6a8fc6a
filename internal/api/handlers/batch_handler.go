package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pharmacy-pos-api-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type BatchHandler struct {
	DB *mongo.Database
}

type CreateBatchRequest struct {
	SKU       string    `json:"sku" binding:"required"`
	Series    string    `json:"series" binding:"required"`
	Barcode   string    `json:"barcode" binding:"required"`
	ExpiresAt time.Time `json:"expiresAt" binding:"required"`
}

// CreateBatch tạo một lô sản phẩm mới cho SKU đã có.
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Kiểm tra sản phẩm có tồn tại không
	var product models.Product
	err := h.DB.Collection("products").FindOne(context.Background(), bson.M{"sku": req.SKU}).Decode(&product)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Product not found: %s", req.SKU)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check product existence"})
		return
	}

	// Một barcode chỉ được gắn với một lô
	count, err := h.DB.Collection("batches").CountDocuments(context.Background(), bson.M{"barcode": req.Barcode})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error checking for batch"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Batch with this barcode already exists"})
		return
	}

	newBatch := models.Batch{
		BatchID:   fmt.Sprintf("BATCH-%s", strings.ToUpper(uuid.New().String()[:8])),
		SKU:       req.SKU,
		Series:    req.Series,
		Barcode:   req.Barcode,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: time.Now(),
	}

	result, err := h.DB.Collection("batches").InsertOne(context.Background(), newBatch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create batch"})
		return
	}
	newBatch.ID = result.InsertedID.(primitive.ObjectID)

	c.JSON(http.StatusCreated, newBatch)
}

// GetBatchByBarcode tra cứu lô theo barcode (dùng khi quét mã).
func (h *BatchHandler) GetBatchByBarcode(c *gin.Context) {
	barcode := c.Param("barcode")

	var batch models.Batch
	err := h.DB.Collection("batches").FindOne(context.Background(), bson.M{"barcode": barcode}).Decode(&batch)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve batch"})
		}
		return
	}

	c.JSON(http.StatusOK, batch)
}

// GetBatchesBySKU lấy các lô của một sản phẩm.
func (h *BatchHandler) GetBatchesBySKU(c *gin.Context) {
	sku := c.Param("sku")

	cursor, err := h.DB.Collection("batches").Find(context.Background(), bson.M{"sku": sku})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query batches"})
		return
	}
	defer cursor.Close(context.Background())

	var batches []models.Batch
	if err = cursor.All(context.Background(), &batches); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode batches"})
		return
	}
	if batches == nil {
		batches = []models.Batch{}
	}
	c.JSON(http.StatusOK, batches)
}
