package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/logbeacon/internal/pkg/config"
	"github.com/V4T54L/logbeacon/internal/pkg/logger"
	"github.com/V4T54L/logbeacon/pkg/telemetry"
)

func main() {
	targetURL := flag.String("url", "", "Collector URL (empty starts a local sink)")
	concurrency := flag.Int("c", 10, "Number of concurrent producers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 1000, "Entries per second limit")
	batchSize := flag.Int("batch", config.DefaultBatchSize, "Batch size")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate")
	logLevel := flag.String("log-level", "warn", "Pipeline log level")
	flag.Parse()

	var received atomic.Int64
	if *targetURL == "" {
		url, stop, err := startSink(&received)
		if err != nil {
			log.Fatalf("Failed to start local sink: %v", err)
		}
		defer stop()
		*targetURL = url
	}

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Batch: %d", *concurrency, *duration, *rps, *batchSize)

	cfg := telemetry.DefaultConfig(*targetURL, "loadgen")
	cfg.BatchSize = *batchSize
	cfg.SampleRate = config.RateOf(*sampleRate)
	cfg.MaxBreadcrumbs = config.LimitOf(5)

	client, err := telemetry.New(context.Background(), cfg, telemetry.WithLogger(logger.New(*logLevel)))
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	var wg sync.WaitGroup
	var queuedCount, droppedCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for seq := 0; ; seq++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				if client.Submit(ctx, syntheticEntry(workerID, seq)) {
					queuedCount.Add(1)
				} else {
					droppedCount.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := client.Shutdown(shutdownCtx); err != nil {
		log.Printf("Pipeline shutdown incomplete: %v", err)
	}
	stored, _ := client.FailedCount(shutdownCtx)

	total := queuedCount.Load() + droppedCount.Load()
	log.Println("Load test finished.")
	log.Printf("Total Entries: %d", total)
	log.Printf("Queued: %d", queuedCount.Load())
	log.Printf("Dropped (sampling/hook): %d", droppedCount.Load())
	if received.Load() > 0 {
		log.Printf("Received by sink: %d", received.Load())
	}
	log.Printf("Left in failed store: %d", stored)
	log.Printf("Actual RPS: %.2f", float64(total)/elapsed.Seconds())
}

// syntheticEntry cycles through the entry kinds a real producer emits.
func syntheticEntry(workerID, seq int) telemetry.LogEntry {
	switch seq % 4 {
	case 0:
		return telemetry.LogEntry{
			Type:     telemetry.KindError,
			Level:    telemetry.LevelError,
			Category: "manual",
			Data:     telemetry.ErrorData{Message: fmt.Sprintf("load test error from worker %d", workerID)},
		}
	case 1:
		return telemetry.LogEntry{
			Type:     telemetry.KindPerformance,
			Level:    telemetry.LevelInfo,
			Category: "web_vitals",
			Data:     telemetry.PerformanceMetric{Name: "LCP", Value: float64(1200 + seq%800), Unit: "ms"},
		}
	case 2:
		return telemetry.LogEntry{
			Type:     telemetry.KindBehavior,
			Level:    telemetry.LevelInfo,
			Category: "click",
			Data:     map[string]any{"subType": "click", "target": fmt.Sprintf("button#buy-%d", seq%10)},
		}
	default:
		return telemetry.LogEntry{
			Type:     telemetry.KindCustom,
			Level:    telemetry.LevelInfo,
			Category: "loadgen",
			Data:     map[string]any{"worker": workerID, "seq": seq},
		}
	}
}

// startSink serves a collector on a loopback port that accepts every batch
// and counts its entries.
func startSink(received *atomic.Int64) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		var batch []json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		received.Add(int64(len(batch)))
		w.WriteHeader(http.StatusAccepted)
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go server.Serve(ln)

	return "http://" + ln.Addr().String() + "/logs", func() { server.Close() }, nil
}
