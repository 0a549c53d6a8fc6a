package handlers

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"pharmacy-pos-api-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type ProductHandler struct {
	DB *mongo.Database
}

type CreateProductRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Unit         string `json:"unit" binding:"required"`
	Category     string `json:"category" binding:"required"`
	Manufacturer string `json:"manufacturer"`
	Prescription bool   `json:"prescription"`
}

// CreateProduct xử lý việc tạo sản phẩm mới.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newProduct := models.Product{
		SKU:          generateSKU(req.Category),
		Name:         req.Name,
		Description:  req.Description,
		Unit:         req.Unit,
		Category:     req.Category,
		Manufacturer: req.Manufacturer,
		Prescription: req.Prescription,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	result, err := h.DB.Collection("products").InsertOne(context.Background(), newProduct)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}
	newProduct.ID = result.InsertedID.(primitive.ObjectID)

	c.JSON(http.StatusCreated, newProduct)
}

// GetAllProducts truy vấn danh sách sản phẩm, lọc theo category nếu có.
func (h *ProductHandler) GetAllProducts(c *gin.Context) {
	filter := bson.M{}
	if category := c.Query("category"); category != "" {
		filter["category"] = category
	}
	if active := c.Query("active"); active != "" {
		filter["active"] = active == "true"
	}

	cursor, err := h.DB.Collection("products").Find(context.Background(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query products"})
		return
	}
	defer cursor.Close(context.Background())

	var products []models.Product
	if err = cursor.All(context.Background(), &products); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode products"})
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, products)
}

// GetProductBySKU lấy thông tin sản phẩm theo SKU.
func (h *ProductHandler) GetProductBySKU(c *gin.Context) {
	sku := c.Param("sku")

	var product models.Product
	err := h.DB.Collection("products").FindOne(context.Background(), bson.M{"sku": sku}).Decode(&product)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve product"})
		}
		return
	}
	c.JSON(http.StatusOK, product)
}

// UpdateProduct cập nhật thông tin sản phẩm theo SKU.
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	sku := c.Param("sku")

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := h.DB.Collection("products").UpdateOne(context.Background(), bson.M{"sku": sku}, bson.M{"$set": bson.M{
		"name":         req.Name,
		"description":  req.Description,
		"unit":         req.Unit,
		"category":     req.Category,
		"manufacturer": req.Manufacturer,
		"prescription": req.Prescription,
		"updatedAt":    time.Now(),
	}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully"})
}

// generateSKU tự động tạo SKU theo category
func generateSKU(category string) string {
	prefix := strings.ToUpper(strings.TrimSpace(category))

	datePart := time.Now().Format("20060102")

	randomPart := randString(4)

	return fmt.Sprintf("%s-%s-%s", prefix, datePart, randomPart)
}

// Sinh chuỗi ngẫu nhiên
func randString(n int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
