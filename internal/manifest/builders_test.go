package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("0 0 0\n1 1 1\n2 2 2\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestBuildSimpleEntriesFolderCategories(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "chair", "a.ply"))
	touch(t, filepath.Join(base, "chair", "b.ply"))
	touch(t, filepath.Join(base, "table", "c.txt"))
	touch(t, filepath.Join(base, "table", "notes.md")) // unsupported, skipped

	entries, err := BuildSimpleEntries(base, BuildOptions{UseFolderCategory: true})
	if err != nil {
		t.Fatalf("BuildSimpleEntries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	byCat := map[string]int{}
	for _, entry := range entries {
		byCat[entry.Category]++
		if entry.Role != RoleObject {
			t.Errorf("role = %q, want object", entry.Role)
		}
		if entry.Split != SplitTrain {
			t.Errorf("split = %q, want train", entry.Split)
		}
	}
	if byCat["chair"] != 2 || byCat["table"] != 1 {
		t.Errorf("category counts = %v", byCat)
	}
}

func TestBuildSimpleEntriesFlatFolderUsesDefaultCategory(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "one.csv"))
	touch(t, filepath.Join(base, "two.csv"))

	entries, err := BuildSimpleEntries(base, BuildOptions{UseFolderCategory: true, DefaultCategory: "misc"})
	if err != nil {
		t.Fatalf("BuildSimpleEntries: %v", err)
	}
	for _, entry := range entries {
		if entry.Category != "misc" {
			t.Errorf("category = %q, want misc", entry.Category)
		}
	}
}

func TestBuildSimpleEntriesDuplicateStems(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "chair", "scan.ply"))
	touch(t, filepath.Join(base, "chair", "sub", "scan.ply"))

	entries, err := BuildSimpleEntries(base, BuildOptions{UseFolderCategory: true})
	if err != nil {
		t.Fatalf("BuildSimpleEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	ids := map[string]bool{}
	for _, entry := range entries {
		if ids[entry.ModelID] {
			t.Fatalf("duplicate model id %q", entry.ModelID)
		}
		ids[entry.ModelID] = true
	}
	if !ids["scan"] || !ids["scan_2"] {
		t.Errorf("model ids = %v, want scan and scan_2", ids)
	}
}

func TestBuildSimpleEntriesAllowedExtFilter(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "a.ply"))
	touch(t, filepath.Join(base, "b.csv"))

	entries, err := BuildSimpleEntries(base, BuildOptions{AllowedExt: []string{"ply"}})
	if err != nil {
		t.Fatalf("BuildSimpleEntries: %v", err)
	}
	if len(entries) != 1 || filepath.Ext(entries[0].Path) != ".ply" {
		t.Fatalf("entries = %+v, want only the .ply file", entries)
	}
}

func TestScanPairedTree(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "partial", "chair", "0001", "00.ply"))
	touch(t, filepath.Join(base, "partial", "chair", "0001", "01.ply"))
	touch(t, filepath.Join(base, "complete", "chair", "0001.ply"))

	entries, err := ScanPairedTree(base, nil)
	if err != nil {
		t.Fatalf("ScanPairedTree: %v", err)
	}
	var partials, completes int
	for _, entry := range entries {
		switch entry.Role {
		case RolePartial:
			partials++
			if entry.ViewID == "" {
				t.Errorf("partial entry missing view id: %+v", entry)
			}
		case RoleComplete:
			completes++
			if entry.ViewID != "" {
				t.Errorf("complete entry has view id: %+v", entry)
			}
		}
	}
	if partials != 2 || completes != 1 {
		t.Fatalf("partials=%d completes=%d, want 2 and 1", partials, completes)
	}
}

func TestScanFlatTreeFirstFilePerModel(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "chair", "m1", "points.ply"))
	touch(t, filepath.Join(base, "chair", "m1", "extra.ply"))
	touch(t, filepath.Join(base, "table", "m2", "points.csv"))

	entries, err := ScanFlatTree(base, map[string]string{"table": "04379243"})
	if err != nil {
		t.Fatalf("ScanFlatTree: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (one per model dir)", len(entries))
	}
	cats := map[string]bool{}
	for _, entry := range entries {
		cats[entry.Category] = true
	}
	if !cats["chair"] || !cats["04379243"] {
		t.Errorf("categories = %v, want chair and remapped 04379243", cats)
	}
}
