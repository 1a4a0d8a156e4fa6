package jsonl_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randomtoy/oraculum/internal/adapters/readinglog/jsonl"
	"github.com/randomtoy/oraculum/internal/domain"
	"github.com/randomtoy/oraculum/internal/ports"
)

func TestLog_AppendOneRecordPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive", "readings.jsonl")

	log, err := jsonl.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer log.Close()

	for _, id := range []string{"s1", "s2"} {
		rec := ports.ReadingRecord{
			SessionID:  id,
			UserID:     "u1",
			Tariff:     "basic",
			SpreadType: domain.SpreadThreeCards,
			Outcome:    domain.SessionOutcome{Completed: true, Balance: 2},
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		}
		if err := log.Append(context.Background(), rec); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec ports.ReadingRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		ids = append(ids, rec.SessionID)
	}
	if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
		t.Errorf("unexpected records: %v", ids)
	}
}
