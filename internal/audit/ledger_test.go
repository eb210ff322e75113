package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/dengonban/internal/model"
	"github.com/hitoshi/dengonban/internal/repository"
)

// mockAuditLogRepo はAuditLogRepositoryのモック実装。
type mockAuditLogRepo struct {
	insertFn     func(ctx context.Context, entry *model.AuditEntry) error
	listRecentFn func(ctx context.Context, limit int) ([]model.AuditEntryWithActor, error)
	lastInserted *model.AuditEntry
	lastLimit    int
}

func (m *mockAuditLogRepo) Insert(ctx context.Context, entry *model.AuditEntry) error {
	m.lastInserted = entry
	if m.insertFn != nil {
		return m.insertFn(ctx, entry)
	}
	return nil
}

func (m *mockAuditLogRepo) ListRecent(ctx context.Context, limit int) ([]model.AuditEntryWithActor, error) {
	m.lastLimit = limit
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

// mockWriteRecorder はWriteRecorderのモック実装。
type mockWriteRecorder struct {
	writes   []string
	failures int
}

func (m *mockWriteRecorder) RecordAuditWrite(action string) { m.writes = append(m.writes, action) }
func (m *mockWriteRecorder) RecordAuditWriteFailure()       { m.failures++ }

var (
	_ repository.AuditLogRepository = (*mockAuditLogRepo)(nil)
	_ WriteRecorder                 = (*mockWriteRecorder)(nil)
)

func TestLedger_Record_Success(t *testing.T) {
	repo := &mockAuditLogRepo{}
	recorder := &mockWriteRecorder{}
	ledger := NewLedger(repo, recorder, 100)

	userID := "user-1"
	err := ledger.Record(context.Background(), &userID, model.AuditActionLogin, "User logged in", "192.0.2.1")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entry := repo.lastInserted
	if entry == nil {
		t.Fatal("expected entry to be inserted")
	}
	if entry.UserID == nil || *entry.UserID != "user-1" {
		t.Errorf("userID = %v, want user-1", entry.UserID)
	}
	if entry.Action != model.AuditActionLogin {
		t.Errorf("action = %q, want LOGIN", entry.Action)
	}
	if entry.Detail != "User logged in" {
		t.Errorf("detail = %q", entry.Detail)
	}
	if entry.IPAddress != "192.0.2.1" {
		t.Errorf("ipAddress = %q", entry.IPAddress)
	}

	if len(recorder.writes) != 1 || recorder.writes[0] != "LOGIN" {
		t.Errorf("recorded writes = %v, want [LOGIN]", recorder.writes)
	}
	if recorder.failures != 0 {
		t.Errorf("failures = %d, want 0", recorder.failures)
	}
}

func TestLedger_Record_SystemLevelEntry(t *testing.T) {
	repo := &mockAuditLogRepo{}
	ledger := NewLedger(repo, nil, 100)

	err := ledger.Record(context.Background(), nil, model.AuditActionLogout, "Session expired", "")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if repo.lastInserted.UserID != nil {
		t.Errorf("system-level entry should have nil userID, got %v", repo.lastInserted.UserID)
	}
}

func TestLedger_Record_InsertFailure(t *testing.T) {
	repo := &mockAuditLogRepo{
		insertFn: func(ctx context.Context, entry *model.AuditEntry) error {
			return errors.New("db down")
		},
	}
	recorder := &mockWriteRecorder{}
	ledger := NewLedger(repo, recorder, 100)

	userID := "user-1"
	err := ledger.Record(context.Background(), &userID, model.AuditActionMessageCreate, "detail", "192.0.2.1")
	if !model.IsErrorCode(err, model.ErrCodePersistence) {
		t.Errorf("expected PERSISTENCE_ERROR, got %v", err)
	}

	if recorder.failures != 1 {
		t.Errorf("failures = %d, want 1", recorder.failures)
	}
	if len(recorder.writes) != 0 {
		t.Errorf("no successful write expected, got %v", recorder.writes)
	}
}

func TestLedger_Recent_ClampsLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"zero limit", 0, 100},
		{"negative limit", -5, 100},
		{"over max", 1000, 100},
		{"within max", 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAuditLogRepo{}
			ledger := NewLedger(repo, nil, 100)

			if _, err := ledger.Recent(context.Background(), tt.limit); err != nil {
				t.Fatalf("Recent() error = %v", err)
			}
			if repo.lastLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", repo.lastLimit, tt.wantLimit)
			}
		})
	}
}

func TestLedger_Recent_SystemActorFallback(t *testing.T) {
	userID := "user-1"
	repo := &mockAuditLogRepo{
		listRecentFn: func(ctx context.Context, limit int) ([]model.AuditEntryWithActor, error) {
			return []model.AuditEntryWithActor{
				{
					AuditEntry: model.AuditEntry{ID: 2, UserID: &userID, Action: model.AuditActionLogin},
					ActorName:  "Alice",
					ActorEmail: "alice@example.com",
				},
				{
					AuditEntry: model.AuditEntry{ID: 1, Action: model.AuditActionLogout},
				},
			}, nil
		},
	}
	ledger := NewLedger(repo, nil, 100)

	entries, err := ledger.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	if entries[0].ActorName != "Alice" {
		t.Errorf("entries[0].ActorName = %q, want Alice", entries[0].ActorName)
	}
	if entries[1].ActorName != "System" {
		t.Errorf("entries[1].ActorName = %q, want System", entries[1].ActorName)
	}
}

func TestLedger_Recent_RepoError(t *testing.T) {
	repo := &mockAuditLogRepo{
		listRecentFn: func(ctx context.Context, limit int) ([]model.AuditEntryWithActor, error) {
			return nil, errors.New("db down")
		},
	}
	ledger := NewLedger(repo, nil, 100)

	_, err := ledger.Recent(context.Background(), 10)
	if !model.IsErrorCode(err, model.ErrCodePersistence) {
		t.Errorf("expected PERSISTENCE_ERROR, got %v", err)
	}
}
