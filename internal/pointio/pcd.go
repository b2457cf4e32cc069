package pointio

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/pcdset/internal/geom"
)

// readPCD decodes an ASCII PCD file. Binary PCD payloads are rejected;
// the curation sources this tool targets export ASCII.
func readPCD(path string) (geom.Cloud, error) {
	fh, err := os.Open(path)
	if err != nil {
		return geom.Cloud{}, &ReadError{Path: path, Err: err}
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var fields []string
	pointCount := -1
	dataSeen := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.Fields(line)
		switch strings.ToUpper(tokens[0]) {
		case "FIELDS":
			fields = tokens[1:]
		case "POINTS":
			if len(tokens) < 2 {
				return geom.Cloud{}, readErr(path, "malformed POINTS line")
			}
			n, err := strconv.Atoi(tokens[1])
			if err != nil || n < 0 {
				return geom.Cloud{}, readErr(path, "bad point count %q", tokens[1])
			}
			pointCount = n
		case "DATA":
			if len(tokens) < 2 || strings.ToLower(tokens[1]) != "ascii" {
				return geom.Cloud{}, readErr(path, "only ascii PCD data is supported")
			}
			dataSeen = true
		case "VERSION", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT":
			// Header bookkeeping we do not need.
		}
		if dataSeen {
			break
		}
	}
	if !dataSeen {
		return geom.Cloud{}, readErr(path, "missing DATA section")
	}
	if len(fields) < 3 {
		return geom.Cloud{}, readErr(path, "PCD header declares %d fields, need at least 3", len(fields))
	}

	idx := map[string]int{}
	for i, name := range fields {
		idx[strings.ToLower(name)] = i
	}
	for _, axis := range []string{"x", "y", "z"} {
		if _, ok := idx[axis]; !ok {
			return geom.Cloud{}, readErr(path, "PCD fields missing %s", axis)
		}
	}

	cloud := geom.Cloud{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) < len(fields) {
			return geom.Cloud{}, readErr(path, "point row has %d values, want %d", len(tokens), len(fields))
		}
		row := make([]float64, len(fields))
		for i := range fields {
			v, err := strconv.ParseFloat(tokens[i], 64)
			if err != nil {
				return geom.Cloud{}, readErr(path, "bad point value %q", tokens[i])
			}
			row[i] = v
		}
		cloud.Points = append(cloud.Points, [3]float64{row[idx["x"]], row[idx["y"]], row[idx["z"]]})
		for i, name := range fields {
			lower := strings.ToLower(name)
			if lower == "x" || lower == "y" || lower == "z" {
				continue
			}
			if cloud.Attrs == nil {
				cloud.Attrs = make(map[string][]float64)
			}
			cloud.Attrs[lower] = append(cloud.Attrs[lower], row[i])
		}
	}
	if err := scanner.Err(); err != nil {
		return geom.Cloud{}, &ReadError{Path: path, Err: err}
	}
	if pointCount >= 0 && cloud.Len() != pointCount {
		return geom.Cloud{}, readErr(path, "expected %d points, got %d", pointCount, cloud.Len())
	}
	return cloud, nil
}
