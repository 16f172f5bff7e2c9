// Command roster_import loads the enrollment roster from a CSV export
// into the roster_students table. The server reads the roster once at
// startup, so imports are expected to run before a deploy or restart.
//
// CSV columns: external_id,full_name,group_code (header row required).
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MAZGOURA/attestation-api/pkg/config"
	"github.com/MAZGOURA/attestation-api/pkg/database"
)

func main() {
	var (
		path     string
		truncate bool
		timeout  time.Duration
	)
	flag.StringVar(&path, "file", "roster.csv", "Path to the roster CSV export")
	flag.BoolVar(&truncate, "truncate", false, "Delete existing roster rows before importing")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall import timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	count, err := importRoster(ctx, db, path, truncate)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}
	fmt.Printf("imported %d roster entries\n", count)
}

func importRoster(ctx context.Context, db *sqlx.DB, path string, truncate bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 3 {
		return 0, fmt.Errorf("expected columns external_id,full_name,group_code, got %v", header)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	if truncate {
		if _, err := tx.ExecContext(ctx, "DELETE FROM roster_students"); err != nil {
			return 0, fmt.Errorf("truncate roster: %w", err)
		}
	}

	const insert = `
		INSERT INTO roster_students (external_id, full_name, group_code)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO UPDATE
		SET full_name = EXCLUDED.full_name, group_code = EXCLUDED.group_code`

	count := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		externalID := strings.TrimSpace(record[0])
		fullName := strings.TrimSpace(record[1])
		groupCode := strings.TrimSpace(record[2])
		if externalID == "" || fullName == "" || groupCode == "" {
			return 0, fmt.Errorf("line %d: external_id, full_name and group_code are all required", line)
		}
		if _, err := tx.ExecContext(ctx, insert, externalID, fullName, groupCode); err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
