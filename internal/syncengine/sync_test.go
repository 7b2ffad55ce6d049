package syncengine

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/cryptoworker"
	"github.com/askesis/askesis/internal/model"
	"github.com/askesis/askesis/internal/persistence"
)

// fakeShardServer is a minimal in-memory stand-in for the sync server:
// PUT/GET individual shards by key and list every stored key, the three
// endpoints Client actually calls.
type fakeShardServer struct {
	mu       sync.Mutex
	shards   map[string][]byte
	putCount int
}

func newFakeShardServer() (*httptest.Server, *fakeShardServer) {
	s := &fakeShardServer{shards: map[string][]byte{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/shards", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		keys := make([]string, 0, len(s.shards))
		for k := range s.shards {
			keys = append(keys, k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"shards":[` + joinQuoted(keys) + `]}`))
	})
	mux.HandleFunc("/shards/", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/shards/"):]
		s.mu.Lock()
		defer s.mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			s.shards[key] = body
			s.putCount++
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			v, ok := s.shards[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(v)
		}
	})
	return httptest.NewServer(mux), s
}

func (s *fakeShardServer) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCount
}

func joinQuoted(keys []string) string {
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += `"` + k + `"`
	}
	return out
}

func TestSyncOnceFirstPushThenPullByAnotherDeviceConverges(t *testing.T) {
	srv, _ := newFakeShardServer()
	defer srv.Close()

	worker := cryptoworker.New(nil)
	deviceA, err := NewClient(t.Context(), srv.URL, "shared-key", nil, worker, nil)
	if err != nil {
		t.Fatalf("NewClient A: %v", err)
	}
	deviceB, err := NewClient(t.Context(), srv.URL, "shared-key", nil, worker, nil)
	if err != nil {
		t.Fatalf("NewClient B: %v", err)
	}

	local := model.NewAppState()
	local.Language = "en"
	local.LastModified = 1
	local.MonthlyLogs.SetStatus("h1", "2025-01-02", bitlog.Morning, bitlog.StatusDone)

	if _, err := deviceA.SyncOnce(t.Context(), local); err != nil {
		t.Fatalf("device A first sync: %v", err)
	}

	remoteOnB := model.NewAppState()
	remoteOnB.LastModified = 0

	merged, err := deviceB.SyncOnce(t.Context(), remoteOnB)
	if err != nil {
		t.Fatalf("device B sync: %v", err)
	}
	if merged.Language != "en" {
		t.Errorf("device B should pick up device A's pushed language, got %q", merged.Language)
	}
	status, err := merged.MonthlyLogs.GetStatus("h1", "2025-01-02", bitlog.Morning)
	if err != nil {
		t.Fatal(err)
	}
	if status != bitlog.StatusDone {
		t.Errorf("device B should pick up device A's pushed BitLog entry, got %s", status)
	}
}

func TestPullWithNoCoreShardReturnsErrNoRemoteState(t *testing.T) {
	srv, _ := newFakeShardServer()
	defer srv.Close()

	client, err := NewClient(t.Context(), srv.URL, "fresh-key", nil, cryptoworker.New(nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Pull(t.Context()); err == nil {
		t.Fatal("expected ErrNoRemoteState for a key nothing has been pushed to")
	}
}

func TestPushOnlyUploadsShardsWhoseHashChanged(t *testing.T) {
	srv, fake := newFakeShardServer()
	defer srv.Close()

	client, err := NewClient(t.Context(), srv.URL, "a-key", nil, cryptoworker.New(nil), nil)
	if err != nil {
		t.Fatal(err)
	}

	state := model.NewAppState()
	state.Language = "en"
	if err := client.Push(t.Context(), state); err != nil {
		t.Fatalf("first push: %v", err)
	}
	afterFirst := fake.PutCount()
	if afterFirst == 0 {
		t.Fatal("expected at least one shard uploaded on the first push")
	}

	if err := client.Push(t.Context(), state); err != nil {
		t.Fatalf("second identical push: %v", err)
	}
	if got := fake.PutCount(); got != afterFirst {
		t.Errorf("pushing unchanged state re-uploaded shards: put count went from %d to %d", afterFirst, got)
	}

	state.Language = "de"
	state.LastModified++
	if err := client.Push(t.Context(), state); err != nil {
		t.Fatalf("third push after a real change: %v", err)
	}
	if got := fake.PutCount(); got <= afterFirst {
		t.Errorf("expected a changed core shard to trigger a new upload, put count stayed at %d", got)
	}
}

func TestWatermarksPersistAcrossClientRestarts(t *testing.T) {
	srv, fake := newFakeShardServer()
	defer srv.Close()

	store, err := persistence.OpenKVStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenKVStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	state := model.NewAppState()
	state.Language = "en"

	client, err := NewClient(t.Context(), srv.URL, "a-key", store, cryptoworker.New(nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Push(t.Context(), state); err != nil {
		t.Fatalf("first push: %v", err)
	}
	afterFirst := fake.PutCount()

	// A brand-new Client backed by the same store should pick up the
	// persisted watermarks and skip re-uploading the unchanged shard,
	// even though its in-memory wm starts out empty.
	restarted, err := NewClient(t.Context(), srv.URL, "a-key", store, cryptoworker.New(nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := restarted.Push(t.Context(), state); err != nil {
		t.Fatalf("push after restart: %v", err)
	}
	if got := fake.PutCount(); got != afterFirst {
		t.Errorf("a restarted client should not re-upload an unchanged shard it never hashed itself: put count went from %d to %d", afterFirst, got)
	}
}
