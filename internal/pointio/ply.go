package pointio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/pcdset/internal/geom"
)

const (
	plyFormatASCII    = "ascii"
	plyFormatBinaryLE = "binary_little_endian"
)

type plyProperty struct {
	name string
	typ  string
}

type plyHeader struct {
	format      string
	vertexCount int
	properties  []plyProperty
}

var plyTypeSizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

// parsePLYHeader consumes the header up to end_header. Only a leading
// vertex element is supported; list properties on vertices are not.
func parsePLYHeader(path string, reader *bufio.Reader) (plyHeader, error) {
	header := plyHeader{vertexCount: -1}

	magic, err := reader.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return header, readErr(path, "not a PLY file")
	}

	inVertex := false
	sawElement := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return header, readErr(path, "truncated PLY header")
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment", "obj_info":
		case "format":
			if len(fields) < 2 {
				return header, readErr(path, "malformed format line")
			}
			header.format = fields[1]
			if header.format != plyFormatASCII && header.format != plyFormatBinaryLE {
				return header, readErr(path, "unsupported PLY format %q", header.format)
			}
		case "element":
			if len(fields) < 3 {
				return header, readErr(path, "malformed element line")
			}
			if fields[1] == "vertex" {
				if sawElement {
					return header, readErr(path, "vertex element must come first")
				}
				count, err := strconv.Atoi(fields[2])
				if err != nil || count < 0 {
					return header, readErr(path, "bad vertex count %q", fields[2])
				}
				header.vertexCount = count
				inVertex = true
			} else {
				inVertex = false
			}
			sawElement = true
		case "property":
			if !inVertex {
				continue
			}
			if len(fields) >= 2 && fields[1] == "list" {
				return header, readErr(path, "list properties on vertices are not supported")
			}
			if len(fields) < 3 {
				return header, readErr(path, "malformed property line")
			}
			if _, ok := plyTypeSizes[fields[1]]; !ok {
				return header, readErr(path, "unsupported property type %q", fields[1])
			}
			header.properties = append(header.properties, plyProperty{name: fields[2], typ: fields[1]})
		case "end_header":
			if header.vertexCount < 0 {
				return header, readErr(path, "missing vertex element")
			}
			return header, nil
		}
	}
}

func readPLY(path string) (geom.Cloud, error) {
	fh, err := os.Open(path)
	if err != nil {
		return geom.Cloud{}, &ReadError{Path: path, Err: err}
	}
	defer fh.Close()

	reader := bufio.NewReader(fh)
	header, err := parsePLYHeader(path, reader)
	if err != nil {
		return geom.Cloud{}, err
	}

	idx := map[string]int{}
	for i, prop := range header.properties {
		idx[prop.name] = i
	}
	for _, axis := range []string{"x", "y", "z"} {
		if _, ok := idx[axis]; !ok {
			return geom.Cloud{}, readErr(path, "vertex element missing %s property", axis)
		}
	}

	rows := make([][]float64, 0, header.vertexCount)
	switch header.format {
	case plyFormatASCII:
		rows, err = readPLYRowsASCII(path, reader, header)
	case plyFormatBinaryLE:
		rows, err = readPLYRowsBinary(path, reader, header)
	}
	if err != nil {
		return geom.Cloud{}, err
	}

	cloud := geom.Cloud{Points: make([][3]float64, len(rows))}
	for i, row := range rows {
		cloud.Points[i] = [3]float64{row[idx["x"]], row[idx["y"]], row[idx["z"]]}
	}
	for _, prop := range header.properties {
		if prop.name == "x" || prop.name == "y" || prop.name == "z" {
			continue
		}
		if cloud.Attrs == nil {
			cloud.Attrs = make(map[string][]float64)
		}
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = row[idx[prop.name]]
		}
		cloud.Attrs[prop.name] = col
	}
	return cloud, nil
}

func readPLYRowsASCII(path string, reader *bufio.Reader, header plyHeader) ([][]float64, error) {
	rows := make([][]float64, 0, header.vertexCount)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() && len(rows) < header.vertexCount {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < len(header.properties) {
			return nil, readErr(path, "vertex row %d has %d values, want %d", len(rows), len(fields), len(header.properties))
		}
		row := make([]float64, len(header.properties))
		for i := range header.properties {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, readErr(path, "bad vertex value %q", fields[i])
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if len(rows) < header.vertexCount {
		return nil, readErr(path, "expected %d vertices, got %d", header.vertexCount, len(rows))
	}
	return rows, nil
}

func readPLYRowsBinary(path string, reader *bufio.Reader, header plyHeader) ([][]float64, error) {
	rowSize := 0
	for _, prop := range header.properties {
		rowSize += plyTypeSizes[prop.typ]
	}
	buf := make([]byte, rowSize)
	rows := make([][]float64, 0, header.vertexCount)
	for r := 0; r < header.vertexCount; r++ {
		if _, err := io.ReadFull(reader, buf); err != nil {
			return nil, readErr(path, "truncated vertex data at row %d", r)
		}
		row := make([]float64, len(header.properties))
		offset := 0
		for i, prop := range header.properties {
			row[i] = decodePLYValue(buf[offset:], prop.typ)
			offset += plyTypeSizes[prop.typ]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodePLYValue(buf []byte, typ string) float64 {
	switch typ {
	case "char", "int8":
		return float64(int8(buf[0]))
	case "uchar", "uint8":
		return float64(buf[0])
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(buf)))
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(buf))
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(buf)))
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(buf))
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case "double", "float64":
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return 0
}

// writePLY writes an ASCII PLY file with float vertex properties.
// Attribute columns are emitted as extra float properties in sorted
// name order so output is reproducible.
func writePLY(path string, cloud geom.Cloud) error {
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
	fmt.Fprintln(w, "ply")
	fmt.Fprintln(w, "format ascii 1.0")
	fmt.Fprintf(w, "element vertex %d\n", cloud.Len())
	fmt.Fprintln(w, "property float x")
	fmt.Fprintln(w, "property float y")
	fmt.Fprintln(w, "property float z")
	for _, name := range attrNames {
		fmt.Fprintf(w, "property float %s\n", name)
	}
	fmt.Fprintln(w, "end_header")

	for i, p := range cloud.Points {
		fmt.Fprintf(w, "%g %g %g", float32(p[0]), float32(p[1]), float32(p[2]))
		for _, name := range attrNames {
			col := cloud.Attrs[name]
			v := 0.0
			if i < len(col) {
				v = col[i]
			}
			fmt.Fprintf(w, " %g", float32(v))
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
