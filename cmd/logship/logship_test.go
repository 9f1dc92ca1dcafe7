package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/logbeacon/internal/adapter/repository/file"
	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/domain/mocks"
	"github.com/V4T54L/logbeacon/internal/usecase"
	"github.com/V4T54L/logbeacon/pkg/telemetry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadEntries(t *testing.T) {
	ctx := context.Background()
	sender := &mocks.MockSender{Called: make(chan struct{}, 4)}

	cfg := telemetry.DefaultConfig("https://collector.example/logs", "cli-test")
	cfg.BatchSize = 2
	client, err := telemetry.New(ctx, cfg,
		telemetry.WithLogger(discardLogger()),
		telemetry.WithSender(sender),
		telemetry.WithBeacon(nil),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Shutdown(ctx)

	input := strings.Join([]string{
		`{"type":"custom","level":"info","data":{"n":1}}`,
		``,
		`{not json`,
		`{"type":"error","level":"error","data":{"message":"boom"}}`,
	}, "\n")

	if err := readEntries(ctx, strings.NewReader(input), client, discardLogger()); err != nil {
		t.Fatalf("readEntries: %v", err)
	}

	select {
	case <-sender.Called:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the two valid entries to fill a batch")
	}
	var batch []map[string]any
	if err := json.Unmarshal(sender.Payload(0), &batch); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(batch))
	}
	if batch[0]["appId"] != "cli-test" || batch[0]["sessionId"] == "" {
		t.Errorf("entry was not stamped: %v", batch[0])
	}
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	store, err := file.NewStore(dir, discardLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	failed := usecase.NewFailedLogStore(store, nil, discardLogger())
	entries := []domain.LogEntry{{EventID: "a"}, {EventID: "b"}, {EventID: "c"}}
	if err := failed.Persist(context.Background(), entries); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect", "--store", "file", "--store-dir", dir, "--log-level", "error", "-f", "json"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	var report struct {
		Backend string `json:"backend"`
		Key     string `json:"key"`
		Entries int    `json:"entries"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if report.Backend != "file" || report.Key != usecase.FailedLogsKey || report.Entries != 3 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestReplayCommand_RejectsMemoryStore(t *testing.T) {
	rootCmd.SetArgs([]string{"replay", "--report-url", "https://collector.example/logs", "--app-id", "cli-test", "--store", "memory"})
	defer rootCmd.SetArgs(nil)
	rootCmd.SetErr(io.Discard)

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected replay to refuse the memory store")
	}
}
