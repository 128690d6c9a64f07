package mint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ipfsnut/everd/internal/storage"
)

// JobStore abstracts the job queue and evermark record operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetEvermark(tokenID int64) (storage.Evermark, error)
	SetMintResult(tokenID int64, mintTx string) error
}

// Minter submits an evermark for on-chain minting and returns the
// transaction hash.
type Minter interface {
	Mint(ctx context.Context, e storage.Evermark) (string, error)
}

// Worker processes mint_evermark jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	minter Minter
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, minter Minter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		minter: minter,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("mint worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single mint_evermark job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{"mint_evermark"})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("mint job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type mintPayload struct {
	TokenID int64 `json:"token_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload mintPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	e, err := w.store.GetEvermark(payload.TokenID)
	if err != nil {
		return fmt.Errorf("loading evermark %d: %w", payload.TokenID, err)
	}

	// Minting needs metadata on IPFS first. Records whose upload failed
	// stay unminted; retrying would just fail against the relay.
	if e.IPFSHash == "" {
		return fmt.Errorf("evermark %d has no ipfs hash", e.TokenID)
	}
	if e.MintTx != "" {
		w.logger.Info("evermark already minted", "token_id", e.TokenID, "tx", e.MintTx)
		return nil
	}

	tx, err := w.minter.Mint(ctx, e)
	if err != nil {
		return fmt.Errorf("minting evermark %d: %w", e.TokenID, err)
	}

	if err := w.store.SetMintResult(e.TokenID, tx); err != nil {
		return fmt.Errorf("recording mint tx: %w", err)
	}

	w.logger.Info("evermark minted", "token_id", e.TokenID, "tx", tx)
	return nil
}
