package brep

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// DecodeShapeData decodes shape data from the formats seen on the wire:
// - Raw shape JSON (starts with '{')
// - STL, binary or ASCII
// - Zlib-compressed shape JSON or STL (compact MQTT payloads)
func DecodeShapeData(data []byte) (*PolySolid, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	if data[0] == '{' {
		return ParseShapeJSON(data)
	}
	if looksLikeSTL(data) {
		return ParseSTL(data)
	}

	inflated, err := inflateZlib(data)
	if err != nil {
		return nil, fmt.Errorf("unknown format: not shape JSON, STL, or zlib-compressed")
	}
	if len(inflated) > 0 && inflated[0] == '{' {
		return ParseShapeJSON(inflated)
	}
	if looksLikeSTL(inflated) {
		return ParseSTL(inflated)
	}
	return nil, fmt.Errorf("zlib payload is neither shape JSON nor STL")
}

// DecodeShapeFile reads and decodes a shape file in any supported format
func DecodeShapeFile(path string) (*PolySolid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return DecodeShapeData(data)
}

// looksLikeSTL reports whether data appears to be STL, binary or ASCII.
func looksLikeSTL(data []byte) bool {
	if len(data) >= 84 {
		count := binary.LittleEndian.Uint32(data[80:84])
		if int64(len(data)) == 84+int64(count)*50 {
			return true
		}
	}
	head := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(head, []byte("solid")) && bytes.Contains(data, []byte("facet"))
}

// inflateZlib decompresses zlib-compressed data
func inflateZlib(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			// Data is already in hand at this point
			_ = closeErr
		}
	}()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decompressing zlib data: %w", err)
	}

	return decompressed, nil
}
