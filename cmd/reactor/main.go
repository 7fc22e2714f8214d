package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"github.com/Liyixin95/polars/internal/config"
	"github.com/Liyixin95/polars/internal/driver"
	"github.com/Liyixin95/polars/internal/email"
	"github.com/Liyixin95/polars/internal/reactor/api"
	"github.com/Liyixin95/polars/internal/reactor/hub"
	middleware "github.com/Liyixin95/polars/internal/reactor/middleware"
	"github.com/Liyixin95/polars/internal/reactor/store"
	"github.com/Liyixin95/polars/internal/storage"
	"github.com/Liyixin95/polars/internal/worker"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 0. Load Config
	cfg := config.Load()

	slog.Info("Starting Reactor", "env", cfg.AppEnv, "driver", cfg.Driver)

	// 1. Initialize Store (Database)
	if cfg.DatabaseDSN == "" {
		slog.Error("DATABASE_DSN not set")
		os.Exit(1)
	}

	st, err := store.NewStore(cfg.DatabaseDSN)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}

	// 2. Run Migration
	if err := st.InitSchema(); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database Connected & Schema Initialized")

	// 3. Select the read backend handle
	handle, err := readHandle(cfg)
	if err != nil {
		slog.Error("Failed to initialize read backend", "error", err)
		os.Exit(1)
	}

	// 4. Storage provider for frame snapshots
	provider, err := storageProvider(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// 5. Email sender
	var sender email.Sender
	if cfg.SMTPHost != "" {
		sender = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		slog.Warn("SMTP_HOST not set, notifications will be logged only")
		sender = email.NewLogSender()
	}

	// 6. Worker pool
	pool := worker.NewPool(cfg.WorkerCount, cfg.MaxDBConcurrency, handle, provider, sender, cfg.Compression, cfg.AttachFile)
	pool.Start()
	defer pool.Stop()

	// 7. Initialize Hub (WebSocket Manager)
	h := hub.NewHub()

	// 8. Initialize Handlers
	handler := api.NewHandler(st, h, pool, cfg.APISecret, cfg.JWTSecret, cfg.DefaultTimeout)

	// 9. Setup Routes & Middleware
	mux := http.NewServeMux()
	mux.HandleFunc("/read", handler.HandleRead)
	mux.HandleFunc("/agent/control", handler.HandleControl)
	mux.HandleFunc("/agent/data", handler.HandleData)
	mux.HandleFunc("/dashboard/stream", handler.HandleDashboard)
	mux.HandleFunc("/auth/register", handler.HandleRegister)
	mux.HandleFunc("/auth/login", handler.HandleLogin)
	mux.HandleFunc("/auth/keys/create", handler.HandleCreateKey)
	mux.HandleFunc("/auth/keys/list", handler.HandleListKeys)

	// Wrap with Middleware
	finalHandler := middleware.CORS(cfg.AllowedOrigins, cfg.AppEnv)(mux)

	slog.Info("Reactor listening", "port", cfg.ServerPort)
	if err := http.ListenAndServe(":"+cfg.ServerPort, finalHandler); err != nil {
		slog.Error("Server failed", "error", err)
	}
}

// readHandle builds the connection handle that read jobs execute against.
// SQL backends hand out pooled connections per read; mongo shares a client.
func readHandle(cfg *config.Config) (any, error) {
	switch cfg.Driver {
	case "postgres":
		engine := driver.NewPostgresEngine(cfg.DatabaseDSN)
		if err := engine.Ping(context.Background()); err != nil {
			return nil, err
		}
		return engine, nil
	case "mongo":
		client := driver.NewMongoClient(cfg.MongoURI)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			return nil, err
		}
		return client, nil
	default:
		engine := driver.NewMySQLEngine(cfg.DatabaseDSN)
		if err := engine.Ping(context.Background()); err != nil {
			return nil, err
		}
		return engine, nil
	}
}

func storageProvider(cfg *config.Config) (storage.Provider, error) {
	if cfg.StorageType == "local" {
		slog.Info("Using local storage", "path", cfg.LocalStoragePath)
		return storage.NewLocalProvider(cfg.LocalStoragePath), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = &cfg.S3Endpoint
		}
		o.UsePathStyle = cfg.S3PathStyle
	})

	slog.Info("Using S3 storage", "bucket", cfg.S3Bucket, "region", cfg.AWSRegion)
	return storage.NewS3Provider(client, cfg.S3Bucket), nil
}
