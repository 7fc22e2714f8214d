package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	dsn := "root:root@tcp(localhost:3306)/my_app?parseTime=true"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	// Wait for DB to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Info("Waiting for database...", "attempt", i+1)
		time.Sleep(1 * time.Second)
	}

	slog.Info("Connected to MySQL. Creating tables...")

	// 1. Fixture table used by sandbox reads and the test suite
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS test_data (
			id BIGINT PRIMARY KEY,
			name VARCHAR(64),
			value DOUBLE
		)
	`)
	if err != nil {
		panic(err)
	}

	var fixtureCount int
	db.QueryRow("SELECT COUNT(*) FROM test_data").Scan(&fixtureCount)
	if fixtureCount == 0 {
		_, err = db.Exec(
			"INSERT INTO test_data (id, name, value) VALUES (?, ?, ?), (?, ?, ?)",
			1, "misc", 100.0,
			2, "other", -99.5,
		)
		if err != nil {
			panic(err)
		}
		slog.Info("Seeded fixture rows", "table", "test_data", "rows", 2)
	} else {
		slog.Info("Fixture table already seeded", "count", fixtureCount)
	}

	// 2. Bulk table for exercising batched reads
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS measurements (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			sensor VARCHAR(32),
			reading DOUBLE,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_sensor (sensor)
		)
	`)
	if err != nil {
		panic(err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM measurements").Scan(&count)
	if count < 100000 {
		slog.Info("Seeding 100,000 measurements...")
		start := time.Now()
		batchSize := 1000
		total := 100000

		for i := 0; i < total; i += batchSize {
			vals := []interface{}{}
			stmt := "INSERT INTO measurements (sensor, reading, recorded_at) VALUES "
			placeholders := []string{}

			for j := 0; j < batchSize; j++ {
				idx := i + j + 1
				placeholders = append(placeholders, "(?, ?, ?)")
				vals = append(vals,
					fmt.Sprintf("sensor-%d", idx%50),
					float64(idx)*0.1,
					time.Now(),
				)
			}

			stmt += strings.Join(placeholders, ",")
			_, err := db.Exec(stmt, vals...)
			if err != nil {
				panic(err)
			}

			if (i+batchSize)%10000 == 0 {
				fmt.Printf("\rSeeding Measurements: %d/%d", i+batchSize, total)
			}
		}
		fmt.Println()
		slog.Info("Measurement seeding complete", "duration", time.Since(start))
	} else {
		slog.Info("Measurements already seeded", "count", count)
	}

	slog.Info("Database schema and data prep complete.")
}
