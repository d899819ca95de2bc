package save

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"lifesim/internal/config"
)

func TestDecodeRejectsBadShapes(t *testing.T) {
	tests := map[string]string{
		"bad json":        `{"gen":`,
		"not an object":   `[1,2]`,
		"null":            `null`,
		"missing gen":     `{"titles":[],"highestStatFromLastLife":null}`,
		"missing titles":  `{"gen":2,"highestStatFromLastLife":null}`,
		"missing highest": `{"gen":2,"titles":[]}`,
		"zero gen":        `{"gen":0,"titles":[],"highestStatFromLastLife":null}`,
		"fractional gen":  `{"gen":1.5,"titles":[],"highestStatFromLastLife":null}`,
		"string gen":      `{"gen":"3","titles":[],"highestStatFromLastLife":null}`,
		"null titles":     `{"gen":3,"titles":null,"highestStatFromLastLife":null}`,
		"numeric titles":  `{"gen":3,"titles":[1],"highestStatFromLastLife":null}`,
		"numeric highest": `{"gen":3,"titles":[],"highestStatFromLastLife":7}`,
		"duplicate title": `{"gen":3,"titles":["Squire","Squire"],"highestStatFromLastLife":null}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(raw)); err == nil {
				t.Fatalf("Decode(%s) accepted", raw)
			}
		})
	}
}

func TestDecodeKeepsFields(t *testing.T) {
	d, err := Decode([]byte(`{"gen":4,"titles":["Squire","Hermit"],"highestStatFromLastLife":"luck"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Gen != 4 || !reflect.DeepEqual(d.Titles, []string{"Squire", "Hermit"}) {
		t.Fatalf("data = %+v", d)
	}
	if d.HighestStatFromLastLife == nil || *d.HighestStatFromLastLife != "luck" {
		t.Fatalf("highest = %v", d.HighestStatFromLastLife)
	}
}

func TestLoadResetsCorruptSave(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Put(ctx, DefaultKey, []byte(`{"gen":"lots"}`)); err != nil {
		t.Fatal(err)
	}
	d, err := Load(ctx, s, DefaultKey)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if !reflect.DeepEqual(d, Default()) {
		t.Fatalf("data = %+v, want default", d)
	}
	if _, err := s.Get(ctx, DefaultKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt entry not deleted: %v", err)
	}

	d, err = Load(ctx, s, DefaultKey)
	if err != nil || d.Gen != 1 || len(d.Titles) != 0 || d.HighestStatFromLastLife != nil {
		t.Fatalf("missing save = %+v, %v", d, err)
	}
}

func TestArchiveRecordsLives(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, err := OpenArchive(ctx, s, "", nil)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	for _, title := range []string{"Squire", "Squire", "Hermit"} {
		if err := a.RecordLife(title, config.StatInsight); err != nil {
			t.Fatalf("RecordLife: %v", err)
		}
	}
	d, err := Load(ctx, s, DefaultKey)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Gen != 4 || !reflect.DeepEqual(d.Titles, []string{"Squire", "Hermit"}) {
		t.Fatalf("persisted = %+v", d)
	}
	if *d.HighestStatFromLastLife != config.StatInsight {
		t.Fatalf("highest = %q", *d.HighestStatFromLastLife)
	}

	snap := a.Data()
	snap.Titles[0] = "changed"
	if a.Data().Titles[0] != "Squire" {
		t.Fatal("Data leaks the archive's slice")
	}

	if err := a.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if a.Data().Gen != 1 {
		t.Fatalf("gen after reset = %d", a.Data().Gen)
	}
}

func TestUnlockRateAndGallery(t *testing.T) {
	titles := []config.TitleDef{{Name: "Squire"}, {Name: "Hermit"}, {Name: "Dragon", Hidden: true}}
	d := Data{Gen: 3, Titles: []string{"Squire"}}
	if got := UnlockRate(d, titles); got != 33 {
		t.Fatalf("UnlockRate = %d, want 33", got)
	}
	if got := UnlockRate(d, nil); got != 0 {
		t.Fatalf("UnlockRate with no catalog = %d", got)
	}
	g := Gallery(d, titles)
	if len(g) != 2 || !g[0].Unlocked || g[1].Unlocked {
		t.Fatalf("gallery = %+v", g)
	}
	d.Titles = append(d.Titles, "Dragon")
	if g := Gallery(d, titles); len(g) != 3 || !g[2].Unlocked {
		t.Fatalf("unlocked hidden title missing: %+v", g)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "save.sqlite")
	store, err := OpenFromSettings(ctx, config.Settings{DBDialect: "sqlite", SQLitePath: path})
	if err != nil {
		t.Fatalf("OpenFromSettings: %v", err)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		store.Close()
		t.Fatalf("Get missing: %v", err)
	}
	luck := config.StatLuck
	want := Data{Gen: 7, Titles: []string{"Hermit"}, HighestStatFromLastLife: &luck}
	if err := Save(ctx, store, DefaultKey, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want.Gen = 8
	if err := Save(ctx, store, DefaultKey, want); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// reopening must not reapply migrations
	store, err = Open(ctx, DialectSQLite, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	got, err := Load(ctx, store, DefaultKey)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if err := store.Delete(ctx, DefaultKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, DefaultKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
}

func TestOpenFromSettingsErrors(t *testing.T) {
	ctx := context.Background()
	_, err := OpenFromSettings(ctx, config.Settings{DBDialect: "postgres"})
	if err == nil || !strings.Contains(err.Error(), "requires DB_POSTGRES_DSN or DATABASE_URL") {
		t.Fatalf("expected postgres DSN error, got %v", err)
	}
	_, err = OpenFromSettings(ctx, config.Settings{DBDialect: "bogus"})
	if err == nil || !strings.Contains(err.Error(), "unsupported DB_DIALECT") {
		t.Fatalf("expected unsupported dialect error, got %v", err)
	}
}
