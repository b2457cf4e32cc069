package manifest

import (
	"os"
	"path/filepath"
	"strings"
)

// WriteExamplePaired writes a small example manifest for the paired
// (PCN style) profile.
func WriteExamplePaired(path string) error {
	lines := []string{
		"path,role,category,model_id,view_id,split",
		"chair_0001.ply,partial,chair,0001,00,train",
		"chair_0001_complete.ply,complete,chair,0001,,train",
		"airplane_0001.ply,partial,airplane,0001,00,val",
	}
	return writeLines(path, lines)
}

// WriteExampleFlat writes a small example manifest for the flat
// (ShapeNet style) profile.
func WriteExampleFlat(path string) error {
	lines := []string{
		"# path,role,category,model_id,view_id,split",
		"# role is ignored; use 'object' or leave blank",
		"path,role,category,model_id,view_id,split",
		"chair_0001.txt,object,chair,0001,,train",
		"airplane_0002.csv,object,airplane,0002,,val",
		"car_0003.ply,object,car,0003,,test",
		"lamp_0004.xyz,object,lamp,0004,,train",
	}
	return writeLines(path, lines)
}

func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
