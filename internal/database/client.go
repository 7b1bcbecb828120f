package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/watershedtools/mdc/internal/log"
	"github.com/watershedtools/mdc/internal/trend"
	"go.uber.org/zap"
)

// Client holds the connection to a water-quality sample database
type Client struct {
	dsn    string
	DB     *gorm.DB // Exported so it can be accessed from other packages
	logger *zap.SugaredLogger
}

// NewClient creates a new database client
func NewClient(dsn string, logger *zap.SugaredLogger) *Client {
	return &Client{
		dsn:    dsn,
		logger: logger,
	}
}

// Connect connects to the sample database
func (c *Client) Connect() error {
	var err error

	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,       // Disable color
		},
	)

	config := &gorm.Config{
		Logger: dbLogger,
	}

	log.Info("connecting to sample database...")
	c.DB, err = gorm.Open(postgres.Open(c.dsn), config)
	if err != nil {
		log.Warn("warning: unable to create a sample database connection:", err)
		return err
	}
	log.Info("sample database connection successful")

	return nil
}

// Close closes the underlying connection pool
func (c *Client) Close() error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FetchSamples retrieves all samples for one parameter, ordered by
// station and sample time. Zero start or end times leave that side of
// the window unbounded.
func (c *Client) FetchSamples(ctx context.Context, parameter string, start, end time.Time) ([]trend.Observation, error) {
	var rows []SampleRow

	query := c.DB.WithContext(ctx).Where("parameter = ?", parameter)
	if !start.IsZero() {
		query = query.Where("sampled_at >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("sampled_at < ?", end)
	}

	if err := query.Order("station_id, sampled_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error querying database for samples: %+v", err)
	}

	observations := make([]trend.Observation, 0, len(rows))
	for _, row := range rows {
		observations = append(observations, row.Observation())
	}

	return observations, nil
}

// ListParameters returns the distinct parameter names present in the
// sample table, for operator discovery.
func (c *Client) ListParameters(ctx context.Context) ([]string, error) {
	var parameters []string

	if err := c.DB.WithContext(ctx).Model(&SampleRow{}).Distinct("parameter").Order("parameter").Pluck("parameter", &parameters).Error; err != nil {
		return nil, fmt.Errorf("error querying database for parameters: %+v", err)
	}

	return parameters, nil
}
