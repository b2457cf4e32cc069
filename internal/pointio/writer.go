package pointio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/pcdset/internal/geom"
)

// Write persists a cloud to path, creating parent directories. The
// format is selected by extension: .ply (ascii), .xyz/.txt (space
// separated) or .csv (comma separated). Attribute columns are written
// as extra columns in sorted name order.
func Write(path string, cloud geom.Cloud) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		return writePLY(path, cloud)
	case ".xyz", ".txt":
		return writeText(path, cloud, " ")
	case ".csv":
		return writeText(path, cloud, ",")
	}
	return &WriteError{Path: path, Err: fmt.Errorf("unsupported output file type %q", filepath.Ext(path))}
}

func writeText(path string, cloud geom.Cloud, sep string) error {
	fh, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer fh.Close()

	attrNames := make([]string, 0, len(cloud.Attrs))
	for name := range cloud.Attrs {
		attrNames = append(attrNames, name)
	}
	sort.Strings(attrNames)

	w := bufio.NewWriter(fh)
	for i, p := range cloud.Points {
		fmt.Fprintf(w, "%.6f%s%.6f%s%.6f", p[0], sep, p[1], sep, p[2])
		for _, name := range attrNames {
			col := cloud.Attrs[name]
			v := 0.0
			if i < len(col) {
				v = col[i]
			}
			fmt.Fprintf(w, "%s%.6f", sep, v)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
