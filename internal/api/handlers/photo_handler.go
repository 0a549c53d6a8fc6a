package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pharmacy-pos-api-server/internal/models"
	"pharmacy-pos-api-server/internal/s3"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type PhotoHandler struct {
	DB         *mongo.Database
	S3Uploader *s3.Uploader
}

// UploadPackagePhoto nhận ảnh kiện hàng cho một dòng chứng từ và đẩy lên S3.
func (h *PhotoHandler) UploadPackagePhoto(c *gin.Context) {
	documentID := c.Param("id")
	itemID := c.Param("itemID")

	// Chứng từ và dòng phải tồn tại trước khi upload
	var doc models.Document
	err := h.DB.Collection("documents").FindOne(context.Background(),
		bson.M{"documentID": documentID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve document"})
		}
		return
	}
	if findItem(&doc, itemID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document item not found"})
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photo file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open uploaded file"})
		return
	}
	defer file.Close()

	objectKey := fmt.Sprintf("documents/%s/items/%s/%s", documentID, itemID, uuid.New().String())
	photoURL, err := h.S3Uploader.UploadFile(c.Request.Context(), file, objectKey,
		fileHeader.Header.Get("Content-Type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo", "details": err.Error()})
		return
	}

	photo := models.PackagePhoto{
		DocumentID: documentID,
		ItemID:     itemID,
		PhotoURL:   photoURL,
		UploadedBy: c.GetString("user_id"),
		CreatedAt:  time.Now(),
	}
	result, err := h.DB.Collection("package_photos").InsertOne(context.Background(), photo)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save photo record"})
		return
	}
	photo.ID = result.InsertedID.(primitive.ObjectID)

	c.JSON(http.StatusCreated, photo)
}

// GetPackagePhotos trả về các ảnh đã upload cho một dòng chứng từ.
func (h *PhotoHandler) GetPackagePhotos(c *gin.Context) {
	documentID := c.Param("id")
	itemID := c.Param("itemID")

	cursor, err := h.DB.Collection("package_photos").Find(context.Background(),
		bson.M{"documentID": documentID, "itemID": itemID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query photos"})
		return
	}
	defer cursor.Close(context.Background())

	var photos []models.PackagePhoto
	if err = cursor.All(context.Background(), &photos); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode photos"})
		return
	}
	if photos == nil {
		photos = []models.PackagePhoto{}
	}
	c.JSON(http.StatusOK, photos)
}
