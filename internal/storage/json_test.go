package storage

import (
	"errors"
	"testing"
	"time"

	"flank/internal/config"
	"flank/internal/domain"
)

func TestJSONStorage_SaveLoad(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	st := NewJSONStorage(cfg)

	report := domain.RunReport{
		RunID:    "run-1",
		Total:    2,
		Passed:   1,
		Flaky:    1,
		Duration: 90 * time.Second,
		Complete: true,
		Shards: []domain.ShardOutcome{{
			Index:  0,
			JobIDs: []string{"job-1", "job-2"},
			State:  domain.ShardPassed,
			Cases: []domain.CaseResult{
				{ID: "A/one", Status: domain.CasePassed, Attempts: 1},
				{ID: "A/two", Status: domain.CaseFlaky, Attempts: 2},
			},
		}},
	}

	if err := st.Save(report); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := st.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.RunID != "run-1" || loaded.Duration != 90*time.Second || !loaded.Complete {
		t.Errorf("Load() metadata = %+v", loaded)
	}
	if got := loaded.PassPercentage(); got != "2 / 2 (100.00%)" {
		t.Errorf("PassPercentage() = %q", got)
	}
	if len(loaded.Shards) != 1 || len(loaded.Shards[0].Cases) != 2 {
		t.Fatalf("Load() shards = %+v", loaded.Shards)
	}
	if loaded.Shards[0].Cases[1].Status != domain.CaseFlaky {
		t.Errorf("case status = %s, want flaky", loaded.Shards[0].Cases[1].Status)
	}
}

func TestJSONStorage_LoadMissing(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()

	_, err := NewJSONStorage(cfg).Load()
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("Load() error = %v, want ErrNoResults", err)
	}
}
