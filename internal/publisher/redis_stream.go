// Package publisher announces finished loads on Redis streams.
package publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/footballdb/internal/loader"
)

const (
	DefaultLoadStream  = "etl.loads.football"
	DefaultTableStream = "etl.tables.football"

	// approximate cap on stream length
	defaultMaxLen = 1000
)

// RedisStreamPublisher publishes load events to Redis streams
type RedisStreamPublisher struct {
	client      *redis.Client
	loadStream  string
	tableStream string
}

// NewRedisStreamPublisher creates a publisher on an existing client. Empty
// stream names fall back to the defaults.
func NewRedisStreamPublisher(client *redis.Client, loadStream, tableStream string) *RedisStreamPublisher {
	if loadStream == "" {
		loadStream = DefaultLoadStream
	}
	if tableStream == "" {
		tableStream = DefaultTableStream
	}
	return &RedisStreamPublisher{
		client:      client,
		loadStream:  loadStream,
		tableStream: tableStream,
	}
}

// PublishLoadReport appends the JSON report of a finished run.
func (p *RedisStreamPublisher) PublishLoadReport(ctx context.Context, report *loader.Report) error {
	values, err := reportEntry(report)
	if err != nil {
		return err
	}
	return p.add(ctx, p.loadStream, values)
}

// PublishTable appends one loaded table.
func (p *RedisStreamPublisher) PublishTable(ctx context.Context, result loader.TableResult) error {
	values, err := tableEntry(result)
	if err != nil {
		return err
	}
	return p.add(ctx, p.tableStream, values)
}

func (p *RedisStreamPublisher) add(ctx context.Context, stream string, values map[string]interface{}) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: values,
	}).Err()
}

func reportEntry(report *loader.Report) (map[string]interface{}, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"data":       string(data),
		"tables":     len(report.Tables),
		"failures":   len(report.Failures),
		"total_rows": report.TotalRows,
		"timestamp":  time.Now().Unix(),
	}, nil
}

func tableEntry(result loader.TableResult) (map[string]interface{}, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"table":     result.Table,
		"data":      string(data),
		"timestamp": time.Now().Unix(),
	}, nil
}

// Reporter forwards loader events to the streams. Publish errors are logged
// and never fail a run.
type Reporter struct {
	loader.NopReporter

	publisher *RedisStreamPublisher
	logger    *log.Logger
	timeout   time.Duration
}

// NewReporter wraps a publisher as a loader.Reporter.
func NewReporter(p *RedisStreamPublisher, logger *log.Logger) *Reporter {
	if logger == nil {
		logger = log.New(log.Writer(), "[publisher] ", log.LstdFlags)
	}
	return &Reporter{
		publisher: p,
		logger:    logger,
		timeout:   5 * time.Second,
	}
}

func (r *Reporter) OnFileLoaded(result loader.TableResult) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.publisher.PublishTable(ctx, result); err != nil {
		r.logger.Printf("⚠️  Failed to publish table %s: %v", result.Table, err)
	}
}

func (r *Reporter) OnRunComplete(report *loader.Report) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.publisher.PublishLoadReport(ctx, report); err != nil {
		r.logger.Printf("⚠️  Failed to publish load report: %v", err)
	}
}
