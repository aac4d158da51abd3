package savegame

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "saves.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := time.Unix(1700000000, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestStoreSlots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	e, _ := newCast()
	run(e, script[:2])
	firstID, err := s.SaveEngine(ctx, 1, "corridor", e)
	if err != nil {
		t.Fatalf("SaveEngine: %v", err)
	}
	run(e, script[2:savePoint])
	secondID, err := s.SaveEngine(ctx, 1, "blocked", e)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveEngine(ctx, 2, "other", e); err != nil {
		t.Fatal(err)
	}

	_, info, err := s.Latest(ctx, 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if info.ID != secondID || info.Label != "blocked" || info.Chapter != 1 || info.Size != Size {
		t.Errorf("latest = %+v", info)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[2].ID != firstID {
		t.Fatalf("list = %+v", list)
	}

	if err := s.Delete(ctx, secondID); err != nil {
		t.Fatal(err)
	}
	_, info, err = s.Latest(ctx, 1)
	if err != nil || info.ID != firstID {
		t.Errorf("after delete latest = %+v, %v", info, err)
	}
	if err := s.Delete(ctx, secondID); !errors.Is(err, ErrSaveNotFound) {
		t.Errorf("second Delete error = %v", err)
	}
	if _, _, err := s.Latest(ctx, 7); !errors.Is(err, ErrSaveNotFound) {
		t.Errorf("empty slot error = %v", err)
	}
	if _, _, err := s.Get(ctx, firstID); err != nil {
		t.Errorf("Get: %v", err)
	}
}

func TestStoreLoadEngine(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	src, _ := newCast()
	run(src, script[:savePoint])
	if _, err := s.SaveEngine(ctx, 3, "mid-dialog", src); err != nil {
		t.Fatal(err)
	}

	dst, _ := newCast()
	info, err := s.LoadEngine(ctx, 3, dst)
	if err != nil {
		t.Fatalf("LoadEngine: %v", err)
	}
	if info.Label != "mid-dialog" {
		t.Errorf("label = %q", info.Label)
	}
	if dst.State() != src.State() || dst.Queue().Len() != src.Queue().Len() {
		t.Error("loaded engine differs from saved one")
	}
}

func TestStoreRejectsInvalidPayload(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Put(context.Background(), 1, "junk", []byte("not a save")); !errors.Is(err, ErrCorruptData) {
		t.Errorf("Put error = %v", err)
	}
}
