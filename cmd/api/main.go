package main

import (
	"context"
	"log"
	"time"

	"pharmacy-pos-api-server/config"
	"pharmacy-pos-api-server/internal/api/routes"
	"pharmacy-pos-api-server/internal/auth"
	"pharmacy-pos-api-server/internal/database"
	"pharmacy-pos-api-server/internal/s3"
	"pharmacy-pos-api-server/internal/socket"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	// .env (nếu có) được nạp trước khi đọc config
	godotenv.Load()

	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	auth.JwtSecret = []byte(cfg.JWT.Secret)

	// 2. Structured logger
	logger, err := newLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Could not create logger: %v", err)
	}
	defer logger.Sync()

	// 3. Kết nối MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		logger.Fatal("failed to ping MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.Mongo.DBName)

	// 4. Đảm bảo tài khoản superadmin có sẵn
	if err := database.SeedSuperAdmin(db); err != nil {
		logger.Fatal("failed to seed super admin", zap.Error(err))
	}

	// 5. S3 uploader cho ảnh kiện hàng
	s3Uploader, err := s3.NewUploader(cfg.S3)
	if err != nil {
		logger.Fatal("failed to create S3 uploader", zap.Error(err))
	}

	// 6. WebSocket hub cho kênh quét từ điện thoại
	wsHub := socket.NewHub(logger)

	// 7. Router với tất cả các thành phần cần thiết
	router := routes.SetupRouter(cfg, db, s3Uploader, wsHub, logger)

	// 8. Start server
	logger.Info("starting API server", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("failed to run server", zap.Error(err))
	}
}

func newLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = level
	}
	return zapCfg.Build()
}
