//go:build integration

package detect

import (
	"context"
	"testing"
	"time"

	"github.com/shieldsenior/shieldsenior/internal/testutil"
)

func TestPostgresStoreRecordAndList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	for i, score := range []int{20, 50, 90} {
		rec := &AnalysisRecord{
			ID:          "ana_pg_" + string(rune('a'+i)),
			Source:      SourceKeywordFallback,
			RiskScore:   score,
			ThreatLevel: LevelForScore(score),
			ScamType:    "Digital Arrest / Cyber Fraud",
			Triggers:    []string{"Urgency Pressure"},
			Reason:      "test",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	records, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Newest first.
	if records[0].RiskScore != 90 || records[1].RiskScore != 50 {
		t.Errorf("order = %d, %d, want 90, 50", records[0].RiskScore, records[1].RiskScore)
	}
	if len(records[0].Triggers) != 1 {
		t.Errorf("triggers = %v", records[0].Triggers)
	}
}
