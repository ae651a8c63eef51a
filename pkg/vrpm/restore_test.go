package vrpm_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

func newRestoreConfig(t *testing.T) vrpm.Config {
	t.Helper()
	return vrpm.Config{
		ProfileDir:       filepath.Join(t.TempDir(), "profile"),
		RAMDir:           t.TempDir(),
		BackupDir:        filepath.Join(t.TempDir(), "backups"),
		BackupPrefix:     "vivaldi-profile",
		CompressionLevel: 9,
	}
}

// makeBackup resets the RAM mirror to exactly files and archives it at
// the given timestamp.
func makeBackup(t *testing.T, cfg vrpm.Config, stamp time.Time, files map[string][]byte) string {
	t.Helper()
	entries, err := os.ReadDir(cfg.RAMDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(cfg.RAMDir, entry.Name())); err != nil {
			t.Fatalf("Failed to reset RAM dir: %v", err)
		}
	}
	for name, content := range files {
		writeFile(t, filepath.Join(cfg.RAMDir, name), content)
	}

	archiver := vrpm.NewBackupArchiver(cfg)
	archiver.Probe = mountedProbe(true)
	archiver.Clock = func() time.Time { return stamp }
	archiver.Logger = quietLogger()

	path, err := archiver.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("Create backup failed: %v", err)
	}
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	return path
}

func newRestorer(cfg vrpm.Config) *vrpm.RestoreEngine {
	engine := vrpm.NewRestoreEngine(cfg)
	engine.Probe = mountedProbe(true)
	engine.Logger = quietLogger()
	return engine
}

func TestListBackups(t *testing.T) {
	t.Run("missing directory is an empty listing", func(t *testing.T) {
		records, err := newRestorer(newRestoreConfig(t)).List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("Expected no records, got %d", len(records))
		}
	})

	t.Run("orders newest first", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
		makeBackup(t, cfg, base, map[string][]byte{"a.txt": []byte("old")})
		makeBackup(t, cfg, base.Add(time.Hour), map[string][]byte{"a.txt": []byte("mid")})
		makeBackup(t, cfg, base.Add(2*time.Hour), map[string][]byte{"a.txt": []byte("new")})

		records, err := newRestorer(cfg).List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("Expected 3 records, got %d", len(records))
		}
		for i := 1; i < len(records); i++ {
			if !records[i-1].ModTime.After(records[i].ModTime) {
				t.Errorf("Expected strictly descending mtimes, got %v then %v",
					records[i-1].ModTime, records[i].ModTime)
			}
		}
		if records[0].Name != "vivaldi-profile-2024-05-01_12-00-00.zip" {
			t.Errorf("Expected newest first, got %s", records[0].Name)
		}
	})

	t.Run("ignores foreign files", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		stamp := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
		makeBackup(t, cfg, stamp, map[string][]byte{"a.txt": []byte("data")})
		writeFile(t, filepath.Join(cfg.BackupDir, "README.txt"), []byte("notes"))
		writeFile(t, filepath.Join(cfg.BackupDir, "other-prefix-2024-05-01_10-00-00.zip"), []byte("zip"))
		if err := os.MkdirAll(filepath.Join(cfg.BackupDir, "vivaldi-profile-dir.zip"), 0o755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}

		records, err := newRestorer(cfg).List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != 1 {
			t.Errorf("Expected 1 record, got %d", len(records))
		}
	})
}

func TestRestoreLatest(t *testing.T) {
	ctx := context.Background()

	t.Run("overlays the newest archive onto the mirror", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		stamp := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
		makeBackup(t, cfg, stamp, map[string][]byte{
			"a.txt":   []byte("backup a"),
			"b/c.txt": []byte("backup c"),
		})

		// Mutate the live mirror after the backup.
		writeFile(t, filepath.Join(cfg.RAMDir, "a.txt"), []byte("drifted"))
		if err := os.RemoveAll(filepath.Join(cfg.RAMDir, "b")); err != nil {
			t.Fatalf("RemoveAll failed: %v", err)
		}
		writeFile(t, filepath.Join(cfg.RAMDir, "extraneous.txt"), []byte("keep me"))

		rec, err := newRestorer(cfg).Latest(ctx, nil)
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if rec.Name == "" {
			t.Error("Expected the restored record to be returned")
		}

		if got := readFile(t, filepath.Join(cfg.RAMDir, "a.txt")); got != "backup a" {
			t.Errorf("Expected a.txt restored, got %q", got)
		}
		if got := readFile(t, filepath.Join(cfg.RAMDir, "b", "c.txt")); got != "backup c" {
			t.Errorf("Expected b/c.txt restored, got %q", got)
		}
		// Overlay semantics: restore never deletes unrelated files.
		if got := readFile(t, filepath.Join(cfg.RAMDir, "extraneous.txt")); got != "keep me" {
			t.Errorf("Expected extraneous file to survive, got %q", got)
		}
	})

	t.Run("picks the newest of several archives", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
		makeBackup(t, cfg, base, map[string][]byte{"a.txt": []byte("old")})
		makeBackup(t, cfg, base.Add(time.Hour), map[string][]byte{"a.txt": []byte("new")})

		if _, err := newRestorer(cfg).Latest(ctx, nil); err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if got := readFile(t, filepath.Join(cfg.RAMDir, "a.txt")); got != "new" {
			t.Errorf("Expected newest backup content, got %q", got)
		}
	})

	t.Run("restores file modification times", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		stamp := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
		fileStamp := time.Date(2024, 4, 20, 8, 0, 0, 0, time.Local)

		writeFile(t, filepath.Join(cfg.RAMDir, "a.txt"), []byte("data"))
		if err := os.Chtimes(filepath.Join(cfg.RAMDir, "a.txt"), fileStamp, fileStamp); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}

		archiver := vrpm.NewBackupArchiver(cfg)
		archiver.Probe = mountedProbe(true)
		archiver.Clock = func() time.Time { return stamp }
		archiver.Logger = quietLogger()
		if _, err := archiver.Create(ctx, nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		writeFile(t, filepath.Join(cfg.RAMDir, "a.txt"), []byte("data"))
		if _, err := newRestorer(cfg).Latest(ctx, nil); err != nil {
			t.Fatalf("Latest failed: %v", err)
		}

		info, err := os.Stat(filepath.Join(cfg.RAMDir, "a.txt"))
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.ModTime().Unix() != fileStamp.Unix() {
			t.Errorf("Expected mtime %v, got %v", fileStamp, info.ModTime())
		}
	})

	t.Run("requires the RAM profile to be active", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		makeBackup(t, cfg, time.Now(), map[string][]byte{"a.txt": []byte("data")})
		engine := newRestorer(cfg)
		engine.Probe = mountedProbe(false)

		_, err := engine.Latest(ctx, nil)
		if !errors.Is(err, vrpm.ErrRAMNotActive) {
			t.Errorf("Expected ErrRAMNotActive, got %v", err)
		}
	})

	t.Run("fails without backups", func(t *testing.T) {
		_, err := newRestorer(newRestoreConfig(t)).Latest(ctx, nil)
		if !errors.Is(err, vrpm.ErrNoBackupsFound) {
			t.Errorf("Expected ErrNoBackupsFound, got %v", err)
		}
	})
}

func TestRestoreSelected(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

	threeBackups := func(t *testing.T) vrpm.Config {
		t.Helper()
		cfg := newRestoreConfig(t)
		makeBackup(t, cfg, base, map[string][]byte{"a.txt": []byte("old")})
		makeBackup(t, cfg, base.Add(time.Hour), map[string][]byte{"a.txt": []byte("mid")})
		makeBackup(t, cfg, base.Add(2*time.Hour), map[string][]byte{"a.txt": []byte("new")})
		return cfg
	}

	pick := func(index int) vrpm.Selector {
		return func([]vrpm.BackupRecord) (int, bool, error) { return index, false, nil }
	}

	t.Run("a middle index restores that archive", func(t *testing.T) {
		cfg := threeBackups(t)
		rec, cancelled, err := newRestorer(cfg).Selected(ctx, pick(2), nil)
		if err != nil {
			t.Fatalf("Selected failed: %v", err)
		}
		if cancelled {
			t.Error("Expected selection to proceed")
		}
		if rec.Name != "vivaldi-profile-2024-05-01_11-00-00.zip" {
			t.Errorf("Expected the middle archive, got %s", rec.Name)
		}
		if got := readFile(t, filepath.Join(cfg.RAMDir, "a.txt")); got != "mid" {
			t.Errorf("Expected mid content, got %q", got)
		}
	})

	t.Run("the last index is selectable", func(t *testing.T) {
		cfg := threeBackups(t)
		_, _, err := newRestorer(cfg).Selected(ctx, pick(3), nil)
		if err != nil {
			t.Fatalf("Selected failed: %v", err)
		}
		if got := readFile(t, filepath.Join(cfg.RAMDir, "a.txt")); got != "old" {
			t.Errorf("Expected oldest content, got %q", got)
		}
	})

	t.Run("out-of-range indexes are rejected", func(t *testing.T) {
		cfg := threeBackups(t)
		for _, index := range []int{0, -1, 4} {
			_, _, err := newRestorer(cfg).Selected(ctx, pick(index), nil)
			if !errors.Is(err, vrpm.ErrInvalidSelection) {
				t.Errorf("Index %d: expected ErrInvalidSelection, got %v", index, err)
			}
		}
	})

	t.Run("cancel is a successful non-restore", func(t *testing.T) {
		cfg := threeBackups(t)
		before := readFile(t, filepath.Join(cfg.RAMDir, "a.txt"))

		cancelSel := func([]vrpm.BackupRecord) (int, bool, error) { return 0, true, nil }
		_, cancelled, err := newRestorer(cfg).Selected(ctx, cancelSel, nil)
		if err != nil {
			t.Fatalf("Expected cancel to be benign, got %v", err)
		}
		if !cancelled {
			t.Error("Expected cancelled result")
		}
		if got := readFile(t, filepath.Join(cfg.RAMDir, "a.txt")); got != before {
			t.Error("Expected no restore after cancel")
		}
	})

	t.Run("selector sees the newest-first listing", func(t *testing.T) {
		cfg := threeBackups(t)
		var seen []string
		sel := func(records []vrpm.BackupRecord) (int, bool, error) {
			for _, rec := range records {
				seen = append(seen, rec.Name)
			}
			return 1, false, nil
		}
		if _, _, err := newRestorer(cfg).Selected(ctx, sel, nil); err != nil {
			t.Fatalf("Selected failed: %v", err)
		}
		if len(seen) != 3 || seen[0] != "vivaldi-profile-2024-05-01_12-00-00.zip" {
			t.Errorf("Expected newest-first listing, got %v", seen)
		}
	})

	t.Run("selector errors propagate", func(t *testing.T) {
		cfg := threeBackups(t)
		boom := errors.New("terminal gone")
		sel := func([]vrpm.BackupRecord) (int, bool, error) { return 0, false, boom }
		_, _, err := newRestorer(cfg).Selected(ctx, sel, nil)
		if !errors.Is(err, boom) {
			t.Errorf("Expected selector error, got %v", err)
		}
	})
}

func TestCleanBackups(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

	t.Run("keeps only the newest archive", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		makeBackup(t, cfg, base, map[string][]byte{"a.txt": []byte("old")})
		makeBackup(t, cfg, base.Add(time.Hour), map[string][]byte{"a.txt": []byte("mid")})
		newest := makeBackup(t, cfg, base.Add(2*time.Hour), map[string][]byte{"a.txt": []byte("new")})

		removed, err := newRestorer(cfg).Clean()
		if err != nil {
			t.Fatalf("Clean failed: %v", err)
		}
		if len(removed) != 2 {
			t.Errorf("Expected 2 removed records, got %d", len(removed))
		}

		records, err := newRestorer(cfg).List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != 1 || records[0].Path != newest {
			t.Errorf("Expected only the newest archive to remain, got %v", records)
		}
	})

	t.Run("empty directory is a no-op", func(t *testing.T) {
		removed, err := newRestorer(newRestoreConfig(t)).Clean()
		if err != nil {
			t.Fatalf("Clean failed: %v", err)
		}
		if len(removed) != 0 {
			t.Errorf("Expected nothing removed, got %d", len(removed))
		}
	})

	t.Run("single archive is kept", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		makeBackup(t, cfg, base, map[string][]byte{"a.txt": []byte("only")})

		removed, err := newRestorer(cfg).Clean()
		if err != nil {
			t.Fatalf("Clean failed: %v", err)
		}
		if len(removed) != 0 {
			t.Errorf("Expected nothing removed, got %d", len(removed))
		}
	})
}

func TestPurgeBackups(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

	t.Run("removes every archive and the empty directory", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		makeBackup(t, cfg, base, map[string][]byte{"a.txt": []byte("one")})
		makeBackup(t, cfg, base.Add(time.Hour), map[string][]byte{"a.txt": []byte("two")})

		removed, err := newRestorer(cfg).Purge()
		if err != nil {
			t.Fatalf("Purge failed: %v", err)
		}
		if len(removed) != 2 {
			t.Errorf("Expected 2 removed records, got %d", len(removed))
		}
		if _, err := os.Stat(cfg.BackupDir); !errors.Is(err, os.ErrNotExist) {
			t.Error("Expected the backup directory to be removed")
		}
	})

	t.Run("keeps a directory that still holds foreign files", func(t *testing.T) {
		cfg := newRestoreConfig(t)
		makeBackup(t, cfg, base, map[string][]byte{"a.txt": []byte("one")})
		writeFile(t, filepath.Join(cfg.BackupDir, "README.txt"), []byte("notes"))

		if _, err := newRestorer(cfg).Purge(); err != nil {
			t.Fatalf("Purge failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(cfg.BackupDir, "README.txt")); err != nil {
			t.Errorf("Expected foreign file to survive: %v", err)
		}
	})
}
