package kvstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/pcdset/internal/geom"
)

// Record layout (all little endian):
//
//	uint32 point count
//	count * 3 float32 coordinates
//	uint32 attribute count
//	per attribute: uint16 name length, name bytes, count float32 values
//
// Coordinates are stored as float32, matching the precision the file
// tree persists.

// EncodeCloud serializes a cloud into a compact binary record.
func EncodeCloud(cloud geom.Cloud) []byte {
	attrNames := make([]string, 0, len(cloud.Attrs))
	for name := range cloud.Attrs {
		attrNames = append(attrNames, name)
	}
	sort.Strings(attrNames)

	size := 4 + cloud.Len()*12 + 4
	for _, name := range attrNames {
		size += 2 + len(name) + cloud.Len()*4
	}
	buf := make([]byte, 0, size)

	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(cloud.Len()))
	buf = append(buf, scratch[:4]...)
	for _, p := range cloud.Points {
		for _, c := range p {
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(float32(c)))
			buf = append(buf, scratch[:4]...)
		}
	}
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(attrNames)))
	buf = append(buf, scratch[:4]...)
	for _, name := range attrNames {
		binary.LittleEndian.PutUint16(scratch[:2], uint16(len(name)))
		buf = append(buf, scratch[:2]...)
		buf = append(buf, name...)
		col := cloud.Attrs[name]
		for i := 0; i < cloud.Len(); i++ {
			v := 0.0
			if i < len(col) {
				v = col[i]
			}
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(float32(v)))
			buf = append(buf, scratch[:4]...)
		}
	}
	return buf
}

// DecodeCloud deserializes a record produced by EncodeCloud.
func DecodeCloud(data []byte) (geom.Cloud, error) {
	if len(data) < 4 {
		return geom.Cloud{}, fmt.Errorf("record too short: %d bytes", len(data))
	}
	offset := 0
	count := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if len(data) < offset+count*12+4 {
		return geom.Cloud{}, fmt.Errorf("record truncated: %d points declared, %d bytes", count, len(data))
	}

	cloud := geom.Cloud{Points: make([][3]float64, count)}
	for i := 0; i < count; i++ {
		for axis := 0; axis < 3; axis++ {
			bits := binary.LittleEndian.Uint32(data[offset:])
			cloud.Points[i][axis] = float64(math.Float32frombits(bits))
			offset += 4
		}
	}

	attrCount := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	for a := 0; a < attrCount; a++ {
		if len(data) < offset+2 {
			return geom.Cloud{}, fmt.Errorf("record truncated in attribute header")
		}
		nameLen := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
		if len(data) < offset+nameLen+count*4 {
			return geom.Cloud{}, fmt.Errorf("record truncated in attribute data")
		}
		name := string(data[offset : offset+nameLen])
		offset += nameLen
		col := make([]float64, count)
		for i := 0; i < count; i++ {
			col[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[offset:])))
			offset += 4
		}
		if cloud.Attrs == nil {
			cloud.Attrs = make(map[string][]float64)
		}
		cloud.Attrs[name] = col
	}
	return cloud, nil
}
