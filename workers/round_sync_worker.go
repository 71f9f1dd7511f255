// workers/round_sync_worker.go
package workers

import (
	"context"
	"fmt"
	"log"

	"numerai-reports/apiclient"
	"numerai-reports/models"
	"numerai-reports/services"
)

// SyncStore is the persistence the round sync writes to.
type SyncStore interface {
	services.RecordStore
	StoredRounds(ctx context.Context) (map[int]bool, error)
	UpsertTournaments(ctx context.Context, tourns []apiclient.Tournament) error
	StartSyncRun(ctx context.Context) (*models.SyncRun, error)
	FinishSyncRun(ctx context.Context, run *models.SyncRun, syncErr error) error
}

// RoundSyncWorker copies newly resolved rounds from the API into the record
// stores so reports over recent windows never wait on the API.
type RoundSyncWorker struct {
	window   *services.Window
	store    SyncStore
	lookback int
}

func NewRoundSyncWorker(window *services.Window, store SyncStore, lookback int) *RoundSyncWorker {
	if lookback <= 0 {
		lookback = 5
	}
	return &RoundSyncWorker{window: window, store: store, lookback: lookback}
}

// SyncOnce stores every resolved round among the latest lookback resolved
// rounds that is not stored yet, and records the run.
func (w *RoundSyncWorker) SyncOnce(ctx context.Context) (err error) {
	run, err := w.store.StartSyncRun(ctx)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	defer func() {
		if ferr := w.store.FinishSyncRun(ctx, run, err); ferr != nil {
			log.Printf("[SYNC] ⚠️ Failed to finish sync run %s: %v", run.ID, ferr)
		}
	}()

	log.Printf("[SYNC] 📡 Sync run %s started", run.ID)
	w.window.Refresh()

	tourns, err := w.window.Tournaments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tournaments: %w", err)
	}
	if err := w.store.UpsertTournaments(ctx, tourns); err != nil {
		return fmt.Errorf("failed to store tournaments: %w", err)
	}

	rounds, err := w.window.Rounds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rounds: %w", err)
	}
	var resolved []int
	for _, r := range rounds {
		if r.Resolved {
			resolved = append(resolved, r.Round)
		}
	}
	if len(resolved) == 0 {
		log.Println("[SYNC] ℹ️ No resolved rounds yet")
		return nil
	}
	if len(resolved) > w.lookback {
		resolved = resolved[len(resolved)-w.lookback:]
	}
	run.LatestRound = resolved[len(resolved)-1]

	stored, err := w.store.StoredRounds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored rounds: %w", err)
	}

	for _, r := range resolved {
		if stored[r] {
			continue
		}
		entries, err := w.window.Get(ctx, r)
		if err != nil {
			return fmt.Errorf("failed to load round %d: %w", r, err)
		}
		// A round already memoized skipped the write-through.
		if _, ok, err := w.store.LoadRound(ctx, r); err != nil || !ok {
			if err := w.store.SaveRound(ctx, r, entries); err != nil {
				return fmt.Errorf("failed to store round %d: %w", r, err)
			}
		}
		run.RoundsStored++
		log.Printf("[SYNC] ✅ Stored round %d (%d records)", r, len(entries))
	}

	log.Printf("[SYNC] ✅ Sync run %s done: %d new rounds, latest resolved %d", run.ID, run.RoundsStored, run.LatestRound)
	return nil
}
