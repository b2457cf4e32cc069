package pointio

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/pcdset/internal/geom"
)

// Read decodes a point cloud file into a Cloud. The format is selected
// by extension. Numeric columns beyond x/y/z become named attribute
// columns. Fails with *ReadError for unsupported extensions, malformed
// content, fewer than 3 points, or non-finite coordinates.
func Read(path string) (geom.Cloud, error) {
	var cloud geom.Cloud
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xyz", ".txt", ".csv":
		cloud, err = readText(path)
	case ".ply":
		cloud, err = readPLY(path)
	case ".pcd":
		cloud, err = readPCD(path)
	default:
		return geom.Cloud{}, readErr(path, "unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return geom.Cloud{}, err
	}
	if err := checkCloud(path, cloud); err != nil {
		return geom.Cloud{}, err
	}
	return cloud, nil
}

// CountPoints returns the number of points in a file without keeping
// the cloud in memory. Used by the structural validator.
func CountPoints(path string) (int, error) {
	cloud, err := Read(path)
	if err != nil {
		return 0, err
	}
	return cloud.Len(), nil
}

func checkCloud(path string, cloud geom.Cloud) error {
	if cloud.Len() < 3 {
		return readErr(path, "point cloud must contain at least 3 points, got %d", cloud.Len())
	}
	for _, p := range cloud.Points {
		for _, c := range p {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return readErr(path, "point cloud contains NaN or Inf")
			}
		}
	}
	return nil
}

// splitFields tokenizes a text row on commas, semicolons, tabs or
// spaces so .csv and .xyz/.txt share one parser.
func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == '\t' || r == ' '
	})
}

func readText(path string) (geom.Cloud, error) {
	fh, err := os.Open(path)
	if err != nil {
		return geom.Cloud{}, &ReadError{Path: path, Err: err}
	}
	defer fh.Close()

	cloud := geom.Cloud{}
	var attrNames []string
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		fields := splitFields(line)
		values := make([]float64, 0, len(fields))
		numeric := true
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				numeric = false
				break
			}
			values = append(values, v)
		}
		if !numeric {
			// A single leading non-numeric row is treated as a
			// column header; anything later is malformed.
			if cloud.Len() == 0 && attrNames == nil {
				if len(fields) > 3 {
					attrNames = append([]string(nil), fields[3:]...)
				}
				continue
			}
			return geom.Cloud{}, readErr(path, "non-numeric data on line %d", lineNo)
		}
		if len(values) < 3 {
			return geom.Cloud{}, readErr(path, "line %d has %d numeric columns, need at least 3", lineNo, len(values))
		}
		if cloud.Len() == 0 && len(values) > 3 && attrNames == nil {
			attrNames = defaultAttrNames(len(values) - 3)
		}
		cloud.Points = append(cloud.Points, [3]float64{values[0], values[1], values[2]})
		for i, name := range attrNames {
			col := 3 + i
			if cloud.Attrs == nil {
				cloud.Attrs = make(map[string][]float64)
			}
			v := 0.0
			if col < len(values) {
				v = values[col]
			}
			cloud.Attrs[name] = append(cloud.Attrs[name], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return geom.Cloud{}, &ReadError{Path: path, Err: err}
	}
	return cloud, nil
}

func defaultAttrNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("c%d", i+4)
	}
	return names
}
