package handlers

import (
	"context"
	"net/http"
	"time"

	"pharmacy-pos-api-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type CounterpartyHandler struct {
	DB *mongo.Database
}

type CreateCounterpartyRequest struct {
	CounterpartyID string         `json:"counterpartyID" binding:"required"`
	Name           string         `json:"name" binding:"required"`
	TaxNumber      string         `json:"taxNumber"`
	Phone          string         `json:"phone"`
	Address        AddressRequest `json:"address"`
}

// CreateCounterparty tạo một nhà cung cấp mới
func (h *CounterpartyHandler) CreateCounterparty(c *gin.Context) {
	var req CreateCounterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	collection := h.DB.Collection("counterparties")

	count, err := collection.CountDocuments(context.Background(), bson.M{"counterpartyID": req.CounterpartyID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error checking for counterparty"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Counterparty with this ID already exists"})
		return
	}

	newCounterparty := models.Counterparty{
		CounterpartyID: req.CounterpartyID,
		Name:           req.Name,
		TaxNumber:      req.TaxNumber,
		Phone:          req.Phone,
		Address: models.Address{
			FullText:  req.Address.FullText,
			Latitude:  req.Address.Latitude,
			Longitude: req.Address.Longitude,
		},
		Status:    "ACTIVE",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	result, err := collection.InsertOne(context.Background(), newCounterparty)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create counterparty"})
		return
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		newCounterparty.ID = oid
	}

	c.JSON(http.StatusCreated, newCounterparty)
}

// GetAllCounterparties lấy danh sách nhà cung cấp
func (h *CounterpartyHandler) GetAllCounterparties(c *gin.Context) {
	collection := h.DB.Collection("counterparties")

	cursor, err := collection.Find(context.Background(), bson.M{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query counterparties"})
		return
	}
	defer cursor.Close(context.Background())

	var counterparties []models.Counterparty
	if err = cursor.All(context.Background(), &counterparties); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode counterparties"})
		return
	}

	if counterparties == nil {
		counterparties = []models.Counterparty{}
	}

	c.JSON(http.StatusOK, counterparties)
}

// GetCounterpartyByID lấy thông tin nhà cung cấp theo counterpartyID
func (h *CounterpartyHandler) GetCounterpartyByID(c *gin.Context) {
	counterpartyID := c.Param("id")

	var counterparty models.Counterparty
	err := h.DB.Collection("counterparties").FindOne(context.Background(),
		bson.M{"counterpartyID": counterpartyID}).Decode(&counterparty)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Counterparty not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve counterparty"})
		}
		return
	}

	c.JSON(http.StatusOK, counterparty)
}

// UpdateCounterparty cập nhật thông tin nhà cung cấp
func (h *CounterpartyHandler) UpdateCounterparty(c *gin.Context) {
	counterpartyID := c.Param("id")

	var req CreateCounterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := h.DB.Collection("counterparties").UpdateOne(context.Background(),
		bson.M{"counterpartyID": counterpartyID}, bson.M{"$set": bson.M{
			"name":      req.Name,
			"taxNumber": req.TaxNumber,
			"phone":     req.Phone,
			"address":   req.Address,
			"updatedAt": time.Now(),
		}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update counterparty"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Counterparty updated successfully"})
}
