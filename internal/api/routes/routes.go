package routes

import (
	"pharmacy-pos-api-server/config"
	"pharmacy-pos-api-server/internal/api/handlers"
	"pharmacy-pos-api-server/internal/api/middleware"
	"pharmacy-pos-api-server/internal/s3"
	"pharmacy-pos-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SetupRouter nhận vào các thành phần phụ thuộc và thiết lập các route
func SetupRouter(
	cfg config.Config,
	db *mongo.Database,
	s3Uploader *s3.Uploader,
	wsHub *socket.Hub,
	log *zap.Logger,
) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	// Khởi tạo các handlers
	userHandler := &handlers.UserHandler{DB: db, Cfg: cfg}
	pharmacyHandler := &handlers.PharmacyHandler{DB: db}
	counterpartyHandler := &handlers.CounterpartyHandler{DB: db}
	productHandler := &handlers.ProductHandler{DB: db}
	batchHandler := &handlers.BatchHandler{DB: db}
	documentHandler := &handlers.DocumentHandler{DB: db, Hub: wsHub}
	photoHandler := &handlers.PhotoHandler{DB: db, S3Uploader: s3Uploader}
	reportHandler := &handlers.ReportHandler{DB: db}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub, Log: log}

	apiV1 := router.Group("/api/v1")
	{
		// Route cho WebSocket (token qua query param)
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		// Nhóm API authentication
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", userHandler.Login)
		}

		// Nhóm API quản trị, yêu cầu vai trò "superadmin"
		admin := apiV1.Group("/admin")
		admin.Use(middleware.Authenticate())
		admin.Use(middleware.Authorize("superadmin"))
		{
			admin.POST("/users", userHandler.CreateUser)

			pharmacies := admin.Group("/pharmacies")
			{
				pharmacies.POST("/", pharmacyHandler.CreatePharmacy)
				pharmacies.GET("/", pharmacyHandler.GetAllPharmacies)
				pharmacies.GET("/:id", pharmacyHandler.GetPharmacyByID)
				pharmacies.PUT("/:id", pharmacyHandler.UpdatePharmacy)
				pharmacies.DELETE("/:id", pharmacyHandler.DeletePharmacy)
			}
		}

		// Nhóm các API nghiệp vụ chính
		businessRoutes := apiV1.Group("/")
		businessRoutes.Use(middleware.Authenticate())
		businessRoutes.Use(middleware.Authorize("admin", "operator", "superadmin"))
		{
			counterparties := businessRoutes.Group("/counterparties")
			{
				counterparties.POST("/", counterpartyHandler.CreateCounterparty)
				counterparties.GET("/", counterpartyHandler.GetAllCounterparties)
				counterparties.GET("/:id", counterpartyHandler.GetCounterpartyByID)
				counterparties.PUT("/:id", counterpartyHandler.UpdateCounterparty)
			}

			products := businessRoutes.Group("/products")
			{
				products.POST("/", productHandler.CreateProduct)
				products.GET("/", productHandler.GetAllProducts)
				products.GET("/:sku", productHandler.GetProductBySKU)
				products.PUT("/:sku", productHandler.UpdateProduct)
				products.GET("/:sku/batches", batchHandler.GetBatchesBySKU)
			}

			batches := businessRoutes.Group("/batches")
			{
				batches.POST("/", batchHandler.CreateBatch)
				batches.GET("/barcode/:barcode", batchHandler.GetBatchByBarcode)
			}

			documents := businessRoutes.Group("/documents")
			{
				documents.POST("/", documentHandler.CreateDocument)
				documents.GET("/", documentHandler.GetAllDocuments)
				documents.GET("/:id", documentHandler.GetDocument)

				// Scan/accept/discrepancy workflow của quá trình nhập hàng
				documents.POST("/:id/scan", documentHandler.ValidateScan)
				documents.POST("/:id/items/:itemID/accept", documentHandler.AcceptItem)
				documents.POST("/:id/items/:itemID/discrepancies", documentHandler.RecordDiscrepancy)
				documents.DELETE("/:id/discrepancies/:discrepancyID", documentHandler.CancelDiscrepancy)
				documents.POST("/:id/complete", documentHandler.CompleteDocument)
				documents.POST("/:id/return", documentHandler.CreateReturn)

				// Ảnh kiện hàng
				documents.POST("/:id/items/:itemID/photos", photoHandler.UploadPackagePhoto)
				documents.GET("/:id/items/:itemID/photos", photoHandler.GetPackagePhotos)

				// Báo cáo đối soát
				documents.GET("/:id/report", reportHandler.ExportVerificationReport)
			}
		}
	}

	return router
}
