package main

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/Liyixin95/polars/internal/batch"
	"github.com/Liyixin95/polars/internal/driver"
	"github.com/Liyixin95/polars/internal/reader"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

var version = "dev"

type AgentConfig struct {
	DatabaseDSN string
	Driver      string
	ReactorURL  string
	AgentKey    string
}

type JobCommand struct {
	ID        string `json:"id"`
	Query     string `json:"query"`
	BatchSize int    `json:"batch_size"`
}

func main() {
	// Custom Usage/Help Message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Frame Agent %s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  frame-agent [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (Required):\n")
		fmt.Fprintf(os.Stderr, "  AGENT_KEY     Your unique agent key (sk_live_...)\n")
		fmt.Fprintf(os.Stderr, "  REACTOR_URL   WebSocket URL (e.g., wss://reactor.example.com)\n")
		fmt.Fprintf(os.Stderr, "  DATABASE_DSN  Database connection string (user:pass@tcp(host:3306)/db)\n")
		fmt.Fprintf(os.Stderr, "\nOptional:\n")
		fmt.Fprintf(os.Stderr, "  DB_DRIVER     mysql (default), postgres or sqlite\n")
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  export AGENT_KEY=\"sk_live_123\"\n")
		fmt.Fprintf(os.Stderr, "  export REACTOR_URL=\"wss://reactor.example.com\"\n")
		fmt.Fprintf(os.Stderr, "  export DATABASE_DSN=\"user:pass@tcp(localhost:3306)/db\"\n")
		fmt.Fprintf(os.Stderr, "  frame-agent\n")
	}

	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Frame Agent %s\n", version)
		os.Exit(0)
	}

	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
	gob.Register([]byte{})
	gob.Register(time.Time{})

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config := AgentConfig{
		DatabaseDSN: os.Getenv("DATABASE_DSN"),
		Driver:      os.Getenv("DB_DRIVER"),
		ReactorURL:  os.Getenv("REACTOR_URL"), // e.g., "ws://localhost:8080"
		AgentKey:    os.Getenv("AGENT_KEY"),
	}

	if config.DatabaseDSN == "" || config.ReactorURL == "" {
		slog.Error("Missing configuration (DATABASE_DSN, REACTOR_URL)")
		os.Exit(1)
	}

	slog.Info("Starting Frame Agent", "reactor", config.ReactorURL)

	engine := localEngine(config)
	if err := engine.Ping(context.Background()); err != nil {
		slog.Error("Failed to connect to Local DB", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	slog.Info("Connected to Local DB", "driver", engine.Name())

	// Connect to Control Plane
	controlURL := config.ReactorURL + "/agent/control"
	headers := make(map[string][]string)
	headers["X-Agent-Key"] = []string{config.AgentKey}

	conn, _, err := websocket.DefaultDialer.Dial(controlURL, headers)
	if err != nil {
		slog.Error("Failed to connect to Reactor Control Plane", "error", err)
		os.Exit(1) // In prod, rely on restart policy or retry loop
	}
	defer conn.Close()
	slog.Info("Connected to Reactor Control Plane")

	// Main Loop
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				slog.Error("Read error", "error", err)
				return // Reconnect logic would go here
			}

			var job JobCommand
			if err := json.Unmarshal(message, &job); err != nil {
				slog.Error("Invalid command", "error", err)
				continue
			}

			slog.Info("Received Job", "id", job.ID, "query", job.Query, "batch_size", job.BatchSize)
			go executeJob(engine, config.ReactorURL, config.AgentKey, job)
		}
	}()

	<-interrupt
	slog.Info("Agent shutting down...")
}

func localEngine(config AgentConfig) *driver.SQLEngine {
	switch config.Driver {
	case "postgres":
		return driver.NewPostgresEngine(config.DatabaseDSN)
	case "sqlite":
		return driver.NewSQLiteEngine(config.DatabaseDSN)
	default:
		return driver.NewMySQLEngine(config.DatabaseDSN)
	}
}

// executeJob runs the query batch by batch and streams each batch to the
// reactor's data plane as soon as it is read.
func executeJob(engine *driver.SQLEngine, reactorURL, agentKey string, job JobCommand) {
	slog.Info("Executing Job", "id", job.ID)

	ctx := context.Background()

	// 1. Start the batched read
	frames, err := reader.ReadBatches(ctx, job.Query, engine, reader.Options{
		BatchSize: job.BatchSize,
	})
	if err != nil {
		slog.Error("Query execution failed", "id", job.ID, "error", err)
		return
	}
	defer frames.Close(ctx)

	// 2. Connect to Data Stream
	dataURL := reactorURL + "/agent/data?job_id=" + job.ID
	headers := make(map[string][]string)
	headers["X-Agent-Key"] = []string{agentKey}

	conn, _, err := websocket.DefaultDialer.Dial(dataURL, headers)
	if err != nil {
		slog.Error("Failed to connect to Data Stream", "id", job.ID, "error", err)
		return
	}
	defer conn.Close()

	// 3. Stream Data (Gob encoded)
	wsWriter := &WSWriter{Conn: conn}
	enc := gob.NewEncoder(wsWriter)

	sentColumns := false
	rowCount := 0
	batchCount := 0
	for {
		f, err := frames.Next(ctx)
		if errors.Is(err, batch.Done) {
			break
		}
		if err != nil {
			slog.Error("Batch read failed", "id", job.ID, "error", err)
			return
		}

		if !sentColumns {
			if err := enc.Encode(f.Columns); err != nil {
				slog.Error("Failed to encode columns", "id", job.ID, "error", err)
				return
			}
			sentColumns = true
		}

		if err := enc.Encode(f.Rows); err != nil {
			slog.Error("Encode failed", "id", job.ID, "error", err)
			return
		}
		batchCount++
		rowCount += f.Height()
	}

	slog.Info("Job Completed", "id", job.ID, "rows", rowCount, "batches", batchCount)
}

type WSWriter struct {
	Conn *websocket.Conn
}

func (w *WSWriter) Write(p []byte) (n int, err error) {
	err = w.Conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}
