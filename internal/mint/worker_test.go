package mint

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ipfsnut/everd/internal/storage"
)

type fakeJobStore struct {
	jobs      []*storage.Job
	evermarks map[int64]storage.Evermark

	completed []string
	failed    map[string]string
	mintTxs   map[int64]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		evermarks: make(map[int64]storage.Evermark),
		failed:    make(map[string]string),
		mintTxs:   make(map[int64]string),
	}
}

func (f *fakeJobStore) ClaimNextJob(types []string) (*storage.Job, error) {
	if len(f.jobs) == 0 {
		return nil, nil
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeJobStore) CompleteJob(id string) error {
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeJobStore) FailJob(id string, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

func (f *fakeJobStore) GetEvermark(tokenID int64) (storage.Evermark, error) {
	e, ok := f.evermarks[tokenID]
	if !ok {
		return storage.Evermark{}, storage.ErrNotFound
	}
	return e, nil
}

func (f *fakeJobStore) SetMintResult(tokenID int64, mintTx string) error {
	e := f.evermarks[tokenID]
	e.MintTx = mintTx
	f.evermarks[tokenID] = e
	f.mintTxs[tokenID] = mintTx
	return nil
}

type fakeMinter struct {
	tx     string
	err    error
	minted []int64
}

func (f *fakeMinter) Mint(ctx context.Context, e storage.Evermark) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.minted = append(f.minted, e.TokenID)
	return f.tx, nil
}

func mintJob(id string, tokenID int64) *storage.Job {
	return &storage.Job{
		ID:          id,
		Type:        "mint_evermark",
		PayloadJSON: fmt.Sprintf(`{"token_id":%d}`, tokenID),
	}
}

func TestRunOnce_MintsAndCompletes(t *testing.T) {
	store := newFakeJobStore()
	store.evermarks[1] = storage.Evermark{TokenID: 1, IPFSHash: "QmMeta"}
	store.jobs = append(store.jobs, mintJob("job-1", 1))
	minter := &fakeMinter{tx: "0xminted"}

	w := NewWorker(store, minter, 0)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("RunOnce should report a processed job")
	}
	if store.mintTxs[1] != "0xminted" {
		t.Errorf("mint tx = %q", store.mintTxs[1])
	}
	if len(store.completed) != 1 || store.completed[0] != "job-1" {
		t.Errorf("completed = %v", store.completed)
	}
	if len(store.failed) != 0 {
		t.Errorf("failed = %v", store.failed)
	}
}

func TestRunOnce_NoJobs(t *testing.T) {
	w := NewWorker(newFakeJobStore(), &fakeMinter{}, 0)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("empty queue should report no work")
	}
}

func TestRunOnce_MissingIPFSHashFailsJob(t *testing.T) {
	store := newFakeJobStore()
	store.evermarks[2] = storage.Evermark{TokenID: 2, ProcessingStatus: storage.StatusIPFSFailed}
	store.jobs = append(store.jobs, mintJob("job-2", 2))
	minter := &fakeMinter{tx: "0xnever"}

	w := NewWorker(store, minter, 0)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("the claimed job still counts as processed")
	}
	if len(minter.minted) != 0 {
		t.Error("nothing should be minted without an ipfs hash")
	}
	if _, ok := store.failed["job-2"]; !ok {
		t.Error("job should be marked failed")
	}
}

func TestRunOnce_AlreadyMintedCompletesWithoutMinting(t *testing.T) {
	store := newFakeJobStore()
	store.evermarks[3] = storage.Evermark{TokenID: 3, IPFSHash: "QmMeta", MintTx: "0xdone"}
	store.jobs = append(store.jobs, mintJob("job-3", 3))
	minter := &fakeMinter{tx: "0xagain"}

	w := NewWorker(store, minter, 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(minter.minted) != 0 {
		t.Error("an already-minted evermark must not be minted twice")
	}
	if len(store.completed) != 1 {
		t.Errorf("completed = %v", store.completed)
	}
}

func TestRunOnce_MintErrorFailsJob(t *testing.T) {
	store := newFakeJobStore()
	store.evermarks[4] = storage.Evermark{TokenID: 4, IPFSHash: "QmMeta"}
	store.jobs = append(store.jobs, mintJob("job-4", 4))

	w := NewWorker(store, &fakeMinter{err: errors.New("relay down")}, 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if msg := store.failed["job-4"]; msg == "" {
		t.Fatal("job should carry the failure reason")
	}
	if len(store.completed) != 0 {
		t.Errorf("completed = %v", store.completed)
	}
}

func TestRunOnce_BadPayloadFailsJob(t *testing.T) {
	store := newFakeJobStore()
	store.jobs = append(store.jobs, &storage.Job{ID: "job-5", Type: "mint_evermark", PayloadJSON: "{broken"})

	w := NewWorker(store, &fakeMinter{}, 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if _, ok := store.failed["job-5"]; !ok {
		t.Error("unparseable payload should fail the job")
	}
}

func TestRunOnce_MissingEvermarkFailsJob(t *testing.T) {
	store := newFakeJobStore()
	store.jobs = append(store.jobs, mintJob("job-6", 999))

	w := NewWorker(store, &fakeMinter{}, 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if _, ok := store.failed["job-6"]; !ok {
		t.Error("a vanished record should fail the job")
	}
}
