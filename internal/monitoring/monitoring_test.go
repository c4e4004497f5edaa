package monitoring

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/bakerysensors/hub/internal/database"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/bakerysensors/hub/internal/repository/sqlstore"
)

var errorIDPattern = regexp.MustCompile(`^ERR-[0-9A-F]{8}$`)

func TestNewErrorID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewErrorID()
		if !errorIDPattern.MatchString(id) {
			t.Fatalf("malformed error id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate error id %q", id)
		}
		seen[id] = true
	}
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	svc := NewService(sqlstore.NewErrorLogRepository(database.NewTestDB(t)))

	first := svc.Record(ctx, errors.NewConnectionError("timeout", nil), "polling samples")
	second := svc.Record(ctx, fmt.Errorf("disk full"), "purging old readings")

	records, err := svc.RecentErrors(ctx, 10)
	if err != nil {
		t.Fatalf("RecentErrors: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	byID := map[string]string{}
	for _, r := range records {
		byID[r.ErrorID] = r.Level
	}
	if byID[first] != LevelWarning {
		t.Errorf("connection error should be a warning, got %q", byID[first])
	}
	if byID[second] != LevelError {
		t.Errorf("plain error should be an error, got %q", byID[second])
	}
}

func TestRecordWithoutStore(t *testing.T) {
	var svc *Service
	if id := svc.Record(context.Background(), fmt.Errorf("boom"), "test"); !errorIDPattern.MatchString(id) {
		t.Errorf("expected an error id, got %q", id)
	}
	records, err := NewService(nil).RecentErrors(context.Background(), 5)
	if err != nil || len(records) != 0 {
		t.Errorf("expected no records, got %d (%v)", len(records), err)
	}
}
