// Package pngmeta reads and edits PNG tEXt metadata at the chunk level.
// Only metadata chunks are touched; image data passes through untouched,
// so an edit never re-encodes pixels.
package pngmeta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

var signature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Chunk is a raw PNG chunk.
type Chunk struct {
	Type string
	Data []byte
}

// TextField is a keyword/value pair destined for a tEXt chunk.
type TextField struct {
	Key   string
	Value string
}

// ReadChunks parses all chunks from a PNG stream, up to and including
// IEND.
func ReadChunks(r io.Reader) ([]Chunk, error) {
	sig := make([]byte, 8)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, fmt.Errorf("failed to read PNG signature: %w", err)
	}
	if !bytes.Equal(sig, signature) {
		return nil, fmt.Errorf("not a valid PNG file")
	}

	var chunks []Chunk
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(header[:4])
		typ := string(header[4:8])

		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("failed to read %s chunk: %w", typ, err)
		}
		crc := make([]byte, 4)
		if _, err := io.ReadFull(r, crc); err != nil {
			return nil, fmt.Errorf("failed to read %s chunk CRC: %w", typ, err)
		}

		chunks = append(chunks, Chunk{Type: typ, Data: data})
		if typ == "IEND" {
			break
		}
	}
	return chunks, nil
}

// ReadFile parses all chunks from a PNG file.
func ReadFile(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return ReadChunks(f)
}

// TextValue returns the value of the tEXt chunk with the given keyword.
func TextValue(chunks []Chunk, key string) (string, bool) {
	for _, c := range chunks {
		if c.Type != "tEXt" {
			continue
		}
		k, v, ok := splitText(c.Data)
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

// HasText reports whether the PNG file carries a tEXt chunk with the
// given keyword.
func HasText(path, key string) (bool, error) {
	chunks, err := ReadFile(path)
	if err != nil {
		return false, err
	}
	_, ok := TextValue(chunks, key)
	return ok, nil
}

// SetText updates matching tEXt chunks in place and inserts chunks for
// keywords not yet present immediately before the first IDAT, which is
// where ancillary text chunks conventionally live.
func SetText(chunks []Chunk, fields []TextField) []Chunk {
	done := make(map[string]bool)
	updated := make([]Chunk, 0, len(chunks)+len(fields))

	for _, c := range chunks {
		if c.Type == "tEXt" {
			if k, _, ok := splitText(c.Data); ok {
				for _, f := range fields {
					if f.Key == k {
						c.Data = textData(f)
						done[k] = true
					}
				}
			}
		}
		updated = append(updated, c)
	}

	var add []Chunk
	for _, f := range fields {
		if !done[f.Key] {
			add = append(add, Chunk{Type: "tEXt", Data: textData(f)})
		}
	}
	if len(add) == 0 {
		return updated
	}

	final := make([]Chunk, 0, len(updated)+len(add))
	inserted := false
	for _, c := range updated {
		if !inserted && c.Type == "IDAT" {
			final = append(final, add...)
			inserted = true
		}
		final = append(final, c)
	}
	if !inserted {
		final = append(final, add...)
	}
	return final
}

// WriteFile serializes chunks back into a PNG file.
func WriteFile(path string, chunks []Chunk) error {
	var buf bytes.Buffer
	buf.Write(signature)
	for _, c := range chunks {
		writeChunk(&buf, c)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write PNG: %w", err)
	}
	return nil
}

func writeChunk(w *bytes.Buffer, c Chunk) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(c.Data)))
	w.Write(scratch[:])
	w.WriteString(c.Type)
	w.Write(c.Data)

	crc := crc32.NewIEEE()
	crc.Write([]byte(c.Type))
	crc.Write(c.Data)
	binary.BigEndian.PutUint32(scratch[:], crc.Sum32())
	w.Write(scratch[:])
}

// splitText splits tEXt chunk data into its keyword and value.
func splitText(data []byte) (key, value string, ok bool) {
	null := bytes.IndexByte(data, 0)
	if null <= 0 {
		return "", "", false
	}
	key = string(data[:null])
	if null+1 < len(data) {
		value = string(data[null+1:])
	}
	return key, value, true
}

func textData(f TextField) []byte {
	return append([]byte(f.Key+"\x00"), []byte(f.Value)...)
}
