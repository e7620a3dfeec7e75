package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/postbook/internal/metrics"
	"github.com/hitoshi/postbook/internal/model"
	"github.com/hitoshi/postbook/internal/repository/memory"
)

// mockDeleter はExpiredSessionDeleterのモック。
type mockDeleter struct {
	calls   atomic.Int32
	deleted int64
	err     error
}

func (m *mockDeleter) DeleteExpired(_ context.Context) (int64, error) {
	m.calls.Add(1)
	return m.deleted, m.err
}

// recordingCollector は削除件数だけを記録するMetricsCollector。
type recordingCollector struct {
	metrics.Nop
	cleaned atomic.Int64
}

func (c *recordingCollector) RecordSessionsCleaned(n int64) { c.cleaned.Add(n) }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func findLogEntry(t *testing.T, buf *bytes.Buffer, key string) map[string]any {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if _, ok := entry[key]; ok {
			return entry
		}
	}
	return nil
}

func TestRun_RecordsAndLogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{deleted: 42}
	mc := &recordingCollector{}
	job := NewSessionCleanupJob(deleter, mc, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := mc.cleaned.Load(); got != 42 {
		t.Errorf("RecordSessionsCleaned total = %d, want 42", got)
	}
	entry := findLogEntry(t, &buf, "deleted_count")
	if entry == nil {
		t.Fatalf("deleted_count not logged: %s", buf.String())
	}
	if entry["deleted_count"] != float64(42) {
		t.Errorf("deleted_count = %v, want 42", entry["deleted_count"])
	}
}

func TestRun_ReturnsRepositoryError(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{err: errors.New("connection refused")}
	mc := &recordingCollector{}
	job := NewSessionCleanupJob(deleter, mc, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should return an error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error should wrap the cause: %v", err)
	}
	if mc.cleaned.Load() != 0 {
		t.Error("failed run must not record metrics")
	}
	if entry := findLogEntry(t, &buf, "error"); entry == nil || entry["level"] != "ERROR" {
		t.Errorf("expected an ERROR log entry, got: %s", buf.String())
	}
}

func TestRun_NilDependenciesUseDefaults(t *testing.T) {
	job := NewSessionCleanupJob(&mockDeleter{}, nil, nil)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRun_DeletesOnlyExpiredSessions(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	sessions := store.Sessions()
	ctx := context.Background()
	for _, s := range []*model.Session{
		{ID: "expired", UserID: 1, ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour)},
		{ID: "active", UserID: 1, ExpiresAt: now.Add(time.Hour), CreatedAt: now},
	} {
		if err := sessions.Create(ctx, s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	var buf bytes.Buffer
	mc := &recordingCollector{}
	job := NewSessionCleanupJob(sessions, mc, newTestLogger(&buf))

	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if mc.cleaned.Load() != 1 {
		t.Errorf("cleaned = %d, want 1", mc.cleaned.Load())
	}

	if s, _ := sessions.FindByID(ctx, "active"); s == nil {
		t.Error("active session should remain")
	}

	// 2回目は削除対象がない
	if err := job.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if mc.cleaned.Load() != 1 {
		t.Errorf("cleaned after second run = %d, want 1", mc.cleaned.Load())
	}
}

func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{}
	job := NewSessionCleanupJob(deleter, nil, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for deleter.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 2", deleter.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
