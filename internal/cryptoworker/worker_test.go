package cryptoworker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/askesis/askesis/internal/model"
)

func TestRunTaskEncryptDecryptRoundTrip(t *testing.T) {
	w := New(nil)
	key, err := DeriveKey("a test sync key")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cipherAny, err := w.RunTask(ctx, TaskEncrypt, EncryptPayload{Key: key, Plaintext: []byte("hello askesis")})
	if err != nil {
		t.Fatalf("encrypt task: %v", err)
	}
	ciphertext := cipherAny.([]byte)

	plainAny, err := w.RunTask(ctx, TaskDecrypt, DecryptPayload{Key: key, Ciphertext: ciphertext})
	if err != nil {
		t.Fatalf("decrypt task: %v", err)
	}
	if string(plainAny.([]byte)) != "hello askesis" {
		t.Errorf("round trip mismatch: got %q", plainAny.([]byte))
	}
}

func TestRunTaskDecryptFailureWrapsErrCryptoFailed(t *testing.T) {
	w := New(nil)
	key, err := DeriveKey("key a")
	if err != nil {
		t.Fatal(err)
	}
	wrongKey, err := DeriveKey("key b")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	cipherAny, err := w.RunTask(ctx, TaskEncrypt, EncryptPayload{Key: key, Plaintext: []byte("secret")})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	_, err = w.RunTask(ctx, TaskDecrypt, DecryptPayload{Key: wrongKey, Ciphertext: cipherAny.([]byte)})
	if err == nil {
		t.Fatal("expected decrypt with wrong key to fail")
	}
	if !errors.Is(err, ErrCryptoFailed) {
		t.Errorf("expected errors.Is(err, ErrCryptoFailed), got %v", err)
	}
}

func TestRunTaskUnknownTypeDoesNotWrapErrCryptoFailed(t *testing.T) {
	w := New(nil)
	_, err := w.RunTask(context.Background(), "not-a-real-task", nil)
	if err == nil {
		t.Fatal("expected error for unknown task type")
	}
	if errors.Is(err, ErrCryptoFailed) {
		t.Error("non-crypto task failures should not claim ErrCryptoFailed identity")
	}
}

func TestRunTaskRespectsContextCancellation(t *testing.T) {
	w := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The job channel may still accept the submission even though ctx is
	// already cancelled, so either the cancellation or the task's own
	// validation error can win the race; either way RunTask must not hang
	// or report success.
	_, err := w.RunTask(ctx, TaskBuildAIPrompt, BuildAIPromptPayload{})
	if err == nil {
		t.Fatal("expected an error from a cancelled context or an invalid payload")
	}
}

func TestPruneHabitRemovesOnlyTargetHabit(t *testing.T) {
	w := New(nil)
	additions := map[string]YearArchive{
		"2025": {
			"2025-01-01": {
				"h1": &model.HabitDayData{},
				"h2": &model.HabitDayData{},
			},
		},
	}
	archived, err := w.RunTask(context.Background(), TaskArchive, ArchivePayload{Additions: additions})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	blobs := archived.(map[string][]byte)

	pruned, err := w.RunTask(context.Background(), TaskPruneHabit, PruneHabitPayload{HabitID: "h1", Archives: blobs})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	prunedBlobs := pruned.(map[string][]byte)
	if prunedBlobs["2025"] == nil {
		t.Fatal("year archive should still have content after pruning only one habit")
	}
}

func TestPruneHabitEmptiesArchiveWhenLastHabitRemoved(t *testing.T) {
	w := New(nil)
	additions := map[string]YearArchive{
		"2025": {
			"2025-01-01": {"h1": &model.HabitDayData{}},
		},
	}
	archived, err := w.RunTask(context.Background(), TaskArchive, ArchivePayload{Additions: additions})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	blobs := archived.(map[string][]byte)

	pruned, err := w.RunTask(context.Background(), TaskPruneHabit, PruneHabitPayload{HabitID: "h1", Archives: blobs})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	prunedBlobs := pruned.(map[string][]byte)
	if len(prunedBlobs["2025"]) != 0 {
		t.Error("expected an empty blob once the only habit in the year is pruned")
	}
}
