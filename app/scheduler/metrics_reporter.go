// Package scheduler
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/printshop-os/pricing-engine/app/dto"
)

// MetricsReporter periodically logs an engine metrics snapshot so operators
// can follow calculation volume, cache hit rates, and latency without
// scraping the Prometheus endpoint
type MetricsReporter struct {
	source   MetricsSource
	logger   *log.Logger
	interval time.Duration

	logFile *os.File
}

// MetricsSource is a minimal interface extracted from PricingFlow for reporting
// This keeps the reporter independent and easy to test
type MetricsSource interface {
	GetMetrics(ctx context.Context) (*dto.GetMetricsResponse, error)
}

func NewMetricsReporter(source MetricsSource, logger *log.Logger, interval time.Duration) *MetricsReporter {
	if interval <= 0 {
		interval = time.Minute
	}

	r := &MetricsReporter{
		source:   source,
		interval: interval,
	}

	// Initialize reporter-specific logger (to stdout and persistent file)
	if err := r.initReporterLogger(); err != nil {
		// reporting still works without the file sink
		r.logger = log.Default()
		r.logger.Printf("metrics reporter: failed to initialize file logger: %v", err)
	}
	if logger != nil {
		r.logger = logger
	}

	return r
}

// initReporterLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (r *MetricsReporter) initReporterLogger() error {
	// data/ next to the binary, or the /data volume in containers
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	var logPath string
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath = filepath.Join(dir, "metrics.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		r.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		// UTC microsecond timestamps, matching the access log resolution
		r.logger = log.New(mw, "metrics ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create metrics log file in any candidate directory")
}

// Start launches the reporting loop in a background goroutine and returns a stop function
func (r *MetricsReporter) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.reportOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.reportOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		if r.logFile != nil {
			r.logFile.Close()
		}
	}
}

func (r *MetricsReporter) reportOnce(ctx context.Context) {
	resp, err := r.source.GetMetrics(ctx)
	if err != nil {
		r.logger.Printf("metrics reporter: snapshot failed: %v", err)
		return
	}

	payload, err := json.Marshal(resp.Metrics)
	if err != nil {
		r.logger.Printf("metrics reporter: marshal snapshot failed: %v", err)
		return
	}

	r.logger.Printf("metrics reporter: %s", payload)
}
