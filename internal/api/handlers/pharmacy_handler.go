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

type PharmacyHandler struct {
	DB *mongo.Database
}

type AddressRequest struct {
	FullText  string  `json:"fullText" binding:"required"`
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

type CreatePharmacyRequest struct {
	PharmacyID string         `json:"pharmacyID" binding:"required"`
	Name       string         `json:"name" binding:"required"`
	Address    AddressRequest `json:"address" binding:"required"`
}

// CreatePharmacy tạo một nhà thuốc mới
func (h *PharmacyHandler) CreatePharmacy(c *gin.Context) {
	var req CreatePharmacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	collection := h.DB.Collection("pharmacies")

	// Kiểm tra xem pharmacyID đã tồn tại chưa
	count, err := collection.CountDocuments(context.Background(), bson.M{"pharmacyID": req.PharmacyID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error checking for pharmacy"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Pharmacy with this ID already exists"})
		return
	}

	newPharmacy := models.Pharmacy{
		PharmacyID: req.PharmacyID,
		Name:       req.Name,
		Address: models.Address{
			FullText:  req.Address.FullText,
			Latitude:  req.Address.Latitude,
			Longitude: req.Address.Longitude,
		},
		Status:    "ACTIVE",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	result, err := collection.InsertOne(context.Background(), newPharmacy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create pharmacy"})
		return
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		newPharmacy.ID = oid
	}

	c.JSON(http.StatusCreated, newPharmacy)
}

// GetAllPharmacies lấy danh sách tất cả các nhà thuốc
func (h *PharmacyHandler) GetAllPharmacies(c *gin.Context) {
	collection := h.DB.Collection("pharmacies")

	cursor, err := collection.Find(context.Background(), bson.M{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query pharmacies"})
		return
	}
	defer cursor.Close(context.Background())

	var pharmacies []models.Pharmacy
	if err = cursor.All(context.Background(), &pharmacies); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode pharmacies"})
		return
	}

	if pharmacies == nil {
		pharmacies = []models.Pharmacy{}
	}

	c.JSON(http.StatusOK, pharmacies)
}

// GetPharmacyByID lấy thông tin nhà thuốc theo pharmacyID
func (h *PharmacyHandler) GetPharmacyByID(c *gin.Context) {
	pharmacyID := c.Param("id")

	collection := h.DB.Collection("pharmacies")
	var pharmacy models.Pharmacy
	err := collection.FindOne(context.Background(), bson.M{"pharmacyID": pharmacyID}).Decode(&pharmacy)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Pharmacy not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve pharmacy"})
		}
		return
	}

	c.JSON(http.StatusOK, pharmacy)
}

// UpdatePharmacy cập nhật thông tin nhà thuốc theo pharmacyID
func (h *PharmacyHandler) UpdatePharmacy(c *gin.Context) {
	pharmacyID := c.Param("id")

	var req CreatePharmacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	collection := h.DB.Collection("pharmacies")

	_, err := collection.UpdateOne(context.Background(), bson.M{"pharmacyID": pharmacyID}, bson.M{"$set": bson.M{
		"name":      req.Name,
		"address":   req.Address,
		"updatedAt": time.Now(),
	}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update pharmacy"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Pharmacy updated successfully"})
}

// DeletePharmacy xóa một nhà thuốc theo pharmacyID
func (h *PharmacyHandler) DeletePharmacy(c *gin.Context) {
	pharmacyID := c.Param("id")

	collection := h.DB.Collection("pharmacies")
	_, err := collection.DeleteOne(context.Background(), bson.M{"pharmacyID": pharmacyID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete pharmacy"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Pharmacy deleted successfully"})
}
