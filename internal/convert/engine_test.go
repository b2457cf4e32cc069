package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/pcdset/internal/kvstore"
	"github.com/banshee-data/pcdset/internal/manifest"
	"github.com/banshee-data/pcdset/internal/pointio"
)

// writeXYZ drops a small ascii cloud fixture with n distinct points.
func writeXYZ(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d.0 %d.0 %d.0\n", i, i*2, i*3)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func flatEntry(path, category, model string) *manifest.Entry {
	return &manifest.Entry{
		Path:     path,
		Role:     manifest.RoleObject,
		Category: category,
		ModelID:  model,
		Split:    manifest.SplitTrain,
	}
}

func TestConverterFlatRun(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dataset")

	entries := []*manifest.Entry{
		flatEntry(filepath.Join(src, "c1.xyz"), "chair", "c1"),
		flatEntry(filepath.Join(src, "c2.xyz"), "chair", "c2"),
		flatEntry(filepath.Join(src, "t1.xyz"), "table", "t1"),
	}
	for _, entry := range entries {
		writeXYZ(t, entry.Path, 10)
	}

	profile := &FlatProfile{PointsN: 4, Ext: "xyz", Basename: "points"}
	conv := &Converter{Profile: profile, Opts: Options{Workers: 2, Seed: 1}}
	result, err := conv.Run(entries, out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Converted != 3 || len(result.Failed) != 0 {
		t.Fatalf("converted=%d failed=%d, want 3/0", result.Converted, len(result.Failed))
	}
	if result.RunID == "" {
		t.Error("missing run ID")
	}

	for _, rel := range []string{
		"train/chair/c1/points_4.xyz",
		"train/chair/c2/points_4.xyz",
		"train/table/t1/points_4.xyz",
	} {
		cloud, err := pointio.Read(filepath.Join(out, rel))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if cloud.Len() != 4 {
			t.Errorf("%s has %d points, want 4", rel, cloud.Len())
		}
	}

	data, err := os.ReadFile(filepath.Join(out, "splits", "train.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "chair/c1\nchair/c2\ntable/t1\n"
	if string(data) != want {
		t.Errorf("train.txt = %q, want %q", data, want)
	}
}

func TestConverterFailureIsolation(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dataset")

	var entries []*manifest.Entry
	for i := 0; i < 5; i++ {
		entry := flatEntry(filepath.Join(src, fmt.Sprintf("m%d.xyz", i)), "cat", fmt.Sprintf("m%d", i))
		entries = append(entries, entry)
		if i != 2 {
			writeXYZ(t, entry.Path, 8)
		}
	}

	profile := &FlatProfile{PointsN: 4, Ext: "xyz", Basename: "points"}
	conv := &Converter{Profile: profile, Opts: Options{Workers: 3, Seed: 1}}
	result, err := conv.Run(entries, out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Converted != 4 {
		t.Errorf("converted = %d, want 4", result.Converted)
	}
	if len(result.Failed) != 1 || result.Failed[0].ModelID != "m2" {
		t.Fatalf("failed = %+v, want just m2", result.Failed)
	}

	failed, err := manifest.LoadManifest(filepath.Join(out, FailedManifestName), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].ModelID != "m2" {
		t.Errorf("failure manifest = %+v, want just m2", failed)
	}
}

func TestConverterPacksStore(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dataset")

	entries := []*manifest.Entry{
		flatEntry(filepath.Join(src, "a.xyz"), "chair", "a"),
		flatEntry(filepath.Join(src, "b.xyz"), "table", "b"),
	}
	for _, entry := range entries {
		writeXYZ(t, entry.Path, 12)
	}

	profile := &FlatProfile{PointsN: 6, Ext: "xyz", Basename: "points"}
	conv := &Converter{Profile: profile, Opts: Options{Workers: 1, Seed: 1, ToKV: true, KVCapacityGB: 1}}
	result, err := conv.Run(entries, out)
	if err != nil {
		t.Fatal(err)
	}

	reader, err := kvstore.OpenRead(filepath.Join(out, KVStoreName))
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	for _, key := range []string{"object/chair/a", "object/table/b"} {
		cloud, err := reader.Get(key)
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		if cloud.Len() != 6 {
			t.Errorf("%s has %d points, want 6", key, cloud.Len())
		}
	}

	meta, err := reader.Meta()
	if err != nil {
		t.Fatal(err)
	}
	if meta["profile"] != "shapenet" {
		t.Errorf("meta profile = %v", meta["profile"])
	}
	if meta["run_id"] != result.RunID {
		t.Errorf("meta run_id = %v, want %s", meta["run_id"], result.RunID)
	}
}

func TestConverterPairedRun(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dataset")

	partial := &manifest.Entry{
		Path: filepath.Join(src, "view00.xyz"), Role: manifest.RolePartial,
		Category: "chair", ModelID: "0001", ViewID: "00", Split: manifest.SplitTrain,
	}
	complete := &manifest.Entry{
		Path: filepath.Join(src, "full.xyz"), Role: manifest.RoleComplete,
		Category: "chair", ModelID: "0001", Split: manifest.SplitTrain,
	}
	writeXYZ(t, partial.Path, 20)
	writeXYZ(t, complete.Path, 40)

	profile := &PairedProfile{PartialN: 8, CompleteN: 16, Ext: "xyz"}
	conv := &Converter{Profile: profile, Opts: Options{Workers: 2, Seed: 1}}
	result, err := conv.Run([]*manifest.Entry{partial, complete}, out)
	if err != nil {
		t.Fatal(err)
	}
	if result.Converted != 2 {
		t.Fatalf("converted = %d, want 2", result.Converted)
	}

	checks := []struct {
		rel  string
		want int
	}{
		{"train/partial/chair/0001/00.xyz", 8},
		{"train/complete/chair/0001.xyz", 16},
	}
	for _, check := range checks {
		cloud, err := pointio.Read(filepath.Join(out, check.rel))
		if err != nil {
			t.Fatalf("read %s: %v", check.rel, err)
		}
		if cloud.Len() != check.want {
			t.Errorf("%s has %d points, want %d", check.rel, cloud.Len(), check.want)
		}
	}
}

func TestConverterSaveMeta(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dataset")

	entry := flatEntry(filepath.Join(src, "m.xyz"), "lamp", "m")
	writeXYZ(t, entry.Path, 8)

	profile := &FlatProfile{PointsN: 4, Ext: "xyz", Basename: "points"}
	conv := &Converter{Profile: profile, Opts: Options{Workers: 1, Seed: 1, SaveMeta: true}}
	if _, err := conv.Run([]*manifest.Entry{entry}, out); err != nil {
		t.Fatal(err)
	}

	metaPath := filepath.Join(out, "train", "lamp", "m", "meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), entry.Path) {
		t.Errorf("meta %s does not record source path", metaPath)
	}
}

func TestConverterTaxonomyOut(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "dataset")
	taxPath := filepath.Join(out, "taxonomy.json")

	entries := []*manifest.Entry{
		flatEntry(filepath.Join(src, "a.xyz"), "chair", "a"),
		flatEntry(filepath.Join(src, "b.xyz"), "table", "b"),
	}
	for _, entry := range entries {
		writeXYZ(t, entry.Path, 8)
	}

	profile := &FlatProfile{PointsN: 4, Ext: "xyz", Basename: "points"}
	conv := &Converter{Profile: profile, Opts: Options{Workers: 1, Seed: 1, TaxonomyOut: taxPath}}
	if _, err := conv.Run(entries, out); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(taxPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, category := range []string{"chair", "table"} {
		if !strings.Contains(string(data), category) {
			t.Errorf("taxonomy missing %q", category)
		}
	}
}
