package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/models"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewBlobStore(NewMemory())

	if _, ok, err := s.Load(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	c := models.NewCycle("c1", 1, "topic", time.Now())
	c.Append(models.AgentThought{ID: "t1", AgentRole: "observer"})
	c.Append(models.UserComment{ID: "u1", Content: "hi"})
	in := State{
		CycleHistory:      []*models.Cycle{c},
		APIKey:            "sk-1",
		AutoAdvance:       true,
		InterAgentDelayMs: 2500,
		Agents:            agents.Defaults(),
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if out.APIKey != "sk-1" || !out.AutoAdvance || out.InterAgentDelayMs != 2500 {
		t.Fatalf("settings not restored: %+v", out)
	}
	if len(out.CycleHistory) != 1 || len(out.CycleHistory[0].Thoughts) != 2 {
		t.Fatalf("history not restored: %+v", out.CycleHistory)
	}
	if _, isComment := out.CycleHistory[0].Thoughts[1].(models.UserComment); !isComment {
		t.Fatalf("comment variant lost")
	}
	if len(out.Agents) != len(agents.Defaults()) {
		t.Fatalf("agents not restored")
	}
	if out.SavedAt.IsZero() {
		t.Fatalf("SavedAt not set")
	}
}

func TestLoadRecoversCredentialFromSecondaryKey(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	_ = mem.Put(ctx, DataKey, []byte(`{"auto_advance":true}`))
	_ = mem.Put(ctx, APIKeyKey, []byte(`"sk-recovered"`))

	st, ok, err := NewBlobStore(mem).Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if st.APIKey != "sk-recovered" {
		t.Fatalf("expected recovered key, got %q", st.APIKey)
	}

	// only the credential survived
	mem2 := NewMemory()
	_ = mem2.Put(ctx, APIKeyKey, []byte("sk-raw"))
	st, ok, err = NewBlobStore(mem2).Load(ctx)
	if err != nil || !ok || st.APIKey != "sk-raw" {
		t.Fatalf("raw credential: ok=%v err=%v key=%q", ok, err, st.APIKey)
	}
}

func TestLoadCorruptBlob(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	_ = mem.Put(ctx, DataKey, []byte(`{not json`))
	if _, _, err := NewBlobStore(mem).Load(ctx); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if _, err := f.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.Put(ctx, DataKey, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := f.Put(ctx, DataKey, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := f.Get(ctx, DataKey)
	if err != nil || string(got) != `{"a":2}` {
		t.Fatalf("Get: %q %v", got, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
