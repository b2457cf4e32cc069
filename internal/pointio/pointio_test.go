package pointio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/pcdset/internal/geom"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadXYZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.xyz")
	writeFile(t, path, "0 0 0\n1 2 3\n-1.5 0.5 2\n")

	cloud, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cloud.Len() != 3 {
		t.Fatalf("got %d points, want 3", cloud.Len())
	}
	if cloud.Points[1] != [3]float64{1, 2, 3} {
		t.Errorf("point 1 = %v", cloud.Points[1])
	}
}

func TestReadCSVWithHeaderAndAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.csv")
	writeFile(t, path, "x,y,z,intensity\n0,0,0,10\n1,1,1,20\n2,2,2,30\n")

	cloud, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cloud.Len() != 3 {
		t.Fatalf("got %d points, want 3", cloud.Len())
	}
	col, ok := cloud.Attrs["intensity"]
	if !ok {
		t.Fatalf("missing intensity attribute, attrs = %v", cloud.Attrs)
	}
	if col[2] != 30 {
		t.Errorf("intensity[2] = %v, want 30", col[2])
	}
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name, file, content string
	}{
		{"unsupported extension", "cloud.npz", "whatever"},
		{"too few points", "small.xyz", "0 0 0\n1 1 1\n"},
		{"too few columns", "narrow.xyz", "0 0\n1 1\n2 2\n"},
		{"non-finite", "nan.xyz", "0 0 0\n1 1 1\nNaN 2 2\n"},
		{"garbage", "bad.xyz", "0 0 0\nhello world again\n2 2 2\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.file)
			writeFile(t, path, tc.content)
			_, err := Read(path)
			var readErr *ReadError
			if !errors.As(err, &readErr) {
				t.Fatalf("err = %v, want *ReadError", err)
			}
			if readErr.Path != path {
				t.Errorf("error path = %q, want %q", readErr.Path, path)
			}
		})
	}
}

func TestPLYASCIIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.ply")
	cloud := geom.Cloud{
		Points: [][3]float64{{0, 0, 0}, {1, 2, 3}, {4, 5, 6}, {-1, -2, -3}},
		Attrs:  map[string][]float64{"intensity": {1, 2, 3, 4}},
	}
	if err := Write(path, cloud); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != cloud.Len() {
		t.Fatalf("got %d points, want %d", got.Len(), cloud.Len())
	}
	for i := range cloud.Points {
		for axis := 0; axis < 3; axis++ {
			if math.Abs(got.Points[i][axis]-cloud.Points[i][axis]) > 1e-5 {
				t.Errorf("point %d axis %d: %v != %v", i, axis, got.Points[i][axis], cloud.Points[i][axis])
			}
		}
	}
	if col := got.Attrs["intensity"]; len(col) != 4 || col[3] != 4 {
		t.Errorf("intensity attr = %v", col)
	}
}

func TestPLYRejectsMalformedHeader(t *testing.T) {
	dir := t.TempDir()
	cases := []struct{ name, content string }{
		{"no magic", "plz\nformat ascii 1.0\nend_header\n"},
		{"big endian", "ply\nformat binary_big_endian 1.0\nelement vertex 3\nproperty float x\nproperty float y\nproperty float z\nend_header\n"},
		{"missing z", "ply\nformat ascii 1.0\nelement vertex 3\nproperty float x\nproperty float y\nend_header\n0 0\n1 1\n2 2\n"},
		{"truncated", "ply\nformat ascii 1.0\nelement vertex 5\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 0\n1 1 1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.ply")
			writeFile(t, path, tc.content)
			if _, err := Read(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestReadPCDASCII(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.pcd")
	writeFile(t, path, `# .PCD v0.7 - Point Cloud Data file format
VERSION 0.7
FIELDS x y z intensity
SIZE 4 4 4 4
TYPE F F F F
COUNT 1 1 1 1
WIDTH 3
HEIGHT 1
VIEWPOINT 0 0 0 1 0 0 0
POINTS 3
DATA ascii
0 0 0 9
1 1 1 8
2 2 2 7
`)

	cloud, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cloud.Len() != 3 {
		t.Fatalf("got %d points, want 3", cloud.Len())
	}
	if col := cloud.Attrs["intensity"]; len(col) != 3 || col[0] != 9 {
		t.Errorf("intensity attr = %v", col)
	}
}

func TestReadPCDRejectsBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.pcd")
	writeFile(t, path, "VERSION 0.7\nFIELDS x y z\nPOINTS 3\nDATA binary\n")
	if _, err := Read(path); err == nil {
		t.Fatal("expected error for binary PCD")
	}
}

func TestWriteTextFormats(t *testing.T) {
	dir := t.TempDir()
	cloud := geom.Cloud{Points: [][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}}}

	for _, name := range []string{"out.xyz", "out.txt", "out.csv"} {
		path := filepath.Join(dir, "nested", name)
		if err := Write(path, cloud); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
		got, err := Read(path)
		if err != nil {
			t.Fatalf("Read %s: %v", name, err)
		}
		if got.Len() != 3 {
			t.Errorf("%s: got %d points, want 3", name, got.Len())
		}
	}
}

func TestWriteUnsupportedExtension(t *testing.T) {
	cloud := geom.Cloud{Points: [][3]float64{{0, 0, 0}}}
	err := Write(filepath.Join(t.TempDir(), "out.obj"), cloud)
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("err = %v, want *WriteError", err)
	}
}

func TestCountPoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.xyz")
	writeFile(t, path, "0 0 0\n1 1 1\n2 2 2\n3 3 3\n")
	n, err := CountPoints(path)
	if err != nil {
		t.Fatalf("CountPoints: %v", err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4", n)
	}
}
