package convert

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/pcdset/internal/manifest"
)

func TestPairedProfilePaths(t *testing.T) {
	profile := NewPairedProfile()

	partial := &manifest.Entry{
		Role: manifest.RolePartial, Category: "chair", ModelID: "0001",
		ViewID: "00", Split: "train",
	}
	complete := &manifest.Entry{
		Role: manifest.RoleComplete, Category: "chair", ModelID: "0001", Split: "train",
	}

	wantPartial := filepath.Join("out", "train", "partial", "chair", "0001", "00.ply")
	if got := profile.OutputPath("out", partial); got != wantPartial {
		t.Errorf("partial path = %q, want %q", got, wantPartial)
	}
	wantComplete := filepath.Join("out", "train", "complete", "chair", "0001.ply")
	if got := profile.OutputPath("out", complete); got != wantComplete {
		t.Errorf("complete path = %q, want %q", got, wantComplete)
	}

	if got := profile.Key(partial); got != "partial/chair/0001/00" {
		t.Errorf("partial key = %q", got)
	}
	if got := profile.Key(complete); got != "complete/chair/0001/" {
		t.Errorf("complete key = %q", got)
	}
}

func TestPairedProfileKeySanitizesView(t *testing.T) {
	profile := NewPairedProfile()
	entry := &manifest.Entry{
		Role: manifest.RolePartial, Category: "dining chair", ModelID: "m 1",
		ViewID: "view 00", Split: "train",
	}

	// Key segments must sanitize the same way the output path does.
	if got := profile.Key(entry); got != "partial/dining_chair/m_1/view_00" {
		t.Errorf("key = %q", got)
	}
	want := filepath.Join("out", "train", "partial", "dining_chair", "m_1", "view_00.ply")
	if got := profile.OutputPath("out", entry); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestPairedProfileTargetCounts(t *testing.T) {
	profile := &PairedProfile{PartialN: 2048, CompleteN: 16384}
	if n := profile.TargetCount(manifest.RolePartial); n != 2048 {
		t.Errorf("partial target = %d", n)
	}
	if n := profile.TargetCount(manifest.RoleComplete); n != 16384 {
		t.Errorf("complete target = %d", n)
	}
}

func TestFlatProfilePaths(t *testing.T) {
	profile := &FlatProfile{PointsN: 4096, Ext: "xyz", Basename: "cloud"}
	entry := &manifest.Entry{
		Role: manifest.RoleObject, Category: "dining chair", ModelID: "m/1", Split: "val",
	}

	want := filepath.Join("out", "val", "dining_chair", "m_1", "cloud_4096.xyz")
	if got := profile.OutputPath("out", entry); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
	if got := profile.Key(entry); got != "object/dining_chair/m_1" {
		t.Errorf("key = %q", got)
	}
	if got := profile.MetaPath("out", entry); got != filepath.Join("out", "val", "dining_chair", "m_1", "meta.json") {
		t.Errorf("meta path = %q", got)
	}
}

func TestProfileDefaults(t *testing.T) {
	flat := NewFlatProfile()
	if flat.FileName() != "points_2048.ply" {
		t.Errorf("FileName = %q", flat.FileName())
	}
	paired := NewPairedProfile()
	if paired.PartialN != 2048 || paired.CompleteN != 16384 {
		t.Errorf("paired defaults = %d/%d", paired.PartialN, paired.CompleteN)
	}
}
