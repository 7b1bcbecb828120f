package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
	SSLMode   string
	Table     string
	Parameter string
	Start     string
	End       string
	Output    string
	Query     string
}

func main() {
	var cfg Config

	// Parse command line flags
	flag.StringVar(&cfg.Host, "host", "localhost", "Database host")
	flag.IntVar(&cfg.Port, "port", 5432, "Database port")
	flag.StringVar(&cfg.Database, "database", "waterquality", "Database name")
	flag.StringVar(&cfg.User, "user", "postgres", "Database user")
	flag.StringVar(&cfg.Password, "password", "", "Database password")
	flag.StringVar(&cfg.SSLMode, "sslmode", "disable", "SSL mode (disable, require, etc)")
	flag.StringVar(&cfg.Table, "table", "samples", "Sample table name")
	flag.StringVar(&cfg.Parameter, "parameter", "", "Only export this parameter (e.g. chloride)")
	flag.StringVar(&cfg.Start, "start", "", "Only export samples on or after this date (YYYY-MM-DD)")
	flag.StringVar(&cfg.End, "end", "", "Only export samples before this date (YYYY-MM-DD)")
	flag.StringVar(&cfg.Output, "output", "samples.csv", "Output CSV file")
	flag.StringVar(&cfg.Query, "query", "", "Optional extra WHERE clause (e.g., \"station_id LIKE 'TC-%'\")")
	flag.Parse()

	// Build connection string
	connStr := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Printf("Connected to database %s@%s:%d", cfg.Database, cfg.Host, cfg.Port)

	// Build query
	where, args := buildFilter(cfg)
	query := fmt.Sprintf("SELECT station_id, sampled_at, parameter, concentration, unit FROM %s%s ORDER BY station_id, sampled_at", cfg.Table, where)
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", cfg.Table, where)

	// Get total count for progress tracking
	var totalCount int64
	if err := pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		log.Fatalf("Failed to get record count: %v", err)
	}
	log.Printf("Found %d samples to export", totalCount)

	if err := exportToCSV(ctx, pool, query, args, cfg.Output, totalCount); err != nil {
		log.Fatalf("CSV export failed: %v", err)
	}

	log.Printf("Export completed successfully")
}

// buildFilter assembles the WHERE clause for the configured filters,
// numbering the placeholders as it goes.
func buildFilter(cfg Config) (string, []any) {
	var conds []string
	var args []any

	if cfg.Parameter != "" {
		args = append(args, cfg.Parameter)
		conds = append(conds, fmt.Sprintf("parameter = $%d", len(args)))
	}
	if cfg.Start != "" {
		args = append(args, cfg.Start)
		conds = append(conds, fmt.Sprintf("sampled_at >= $%d", len(args)))
	}
	if cfg.End != "" {
		args = append(args, cfg.End)
		conds = append(conds, fmt.Sprintf("sampled_at < $%d", len(args)))
	}
	if cfg.Query != "" {
		conds = append(conds, "("+cfg.Query+")")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func exportToCSV(ctx context.Context, pool *pgxpool.Pool, query string, args []any, filename string, totalCount int64) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Execute query
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	header := []string{"station_id", "sampled_at", "parameter", "concentration", "unit"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	count := int64(0)
	lastProgress := -1
	for rows.Next() {
		var (
			stationID, parameter string
			sampledAt            time.Time
			concentration        float64
			unit                 *string
		)
		if err := rows.Scan(&stationID, &sampledAt, &parameter, &concentration, &unit); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		record := []string{
			stationID,
			sampledAt.Format("2006-01-02 15:04:05"),
			parameter,
			strconv.FormatFloat(concentration, 'g', -1, 64),
			"",
		}
		if unit != nil {
			record[4] = *unit
		}

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}

		count++
		// Show progress at each percentage point
		if totalCount > 0 {
			progress := int(count * 100 / totalCount)
			if progress != lastProgress {
				log.Printf("Progress: %d%% (%d/%d samples)", progress, count, totalCount)
				lastProgress = progress
			}
		} else if count%10000 == 0 {
			log.Printf("Processed %d samples...", count)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	log.Printf("Exported %d samples to %s", count, filename)
	return nil
}
