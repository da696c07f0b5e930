// Package jpegmeta rewrites the EXIF APP1 segment of a JPEG container
// without touching the entropy-coded image data. Settable fields are
// the common ASCII tags; existing ASCII metadata is carried over when
// the segment is rebuilt, and a block holding anything richer (rated
// tags, GPS data, a thumbnail) is refused rather than silently
// truncated.
package jpegmeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ErrWouldDropTags means the existing EXIF block carries tags this
// package cannot rebuild (non-ASCII types, GPS, thumbnail); rewriting
// the segment would lose them. Callers decide whether a lossy path is
// acceptable.
var ErrWouldDropTags = errors.New("existing EXIF holds tags a rewrite would drop")

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
	// markerScan is a pseudo-marker for the raw entropy-coded data
	// that follows SOS.
	markerScan = 0x00

	tagExifIFDPointer = 0x8769
)

var exifHeader = []byte("Exif\x00\x00")

// Tags writable through SetFields, split by the IFD they belong to.
var ifd0Tags = map[string]uint16{
	"ImageDescription": 0x010E,
	"Make":             0x010F,
	"Model":            0x0110,
	"Software":         0x0131,
	"DateTime":         0x0132,
	"Artist":           0x013B,
	"Copyright":        0x8298,
}

var exifIFDTags = map[string]uint16{
	"DateTimeOriginal":  0x9003,
	"DateTimeDigitized": 0x9004,
}

type segment struct {
	marker byte
	data   []byte
}

// SetFields returns a copy of the JPEG with the given ASCII EXIF fields
// set. The container is rewritten segment by segment; pixel data is
// copied verbatim. Existing ASCII fields survive the rebuild; when the
// existing block holds tags the rebuild cannot carry, SetFields returns
// ErrWouldDropTags instead of writing truncated metadata.
func SetFields(data []byte, fields map[string]string) ([]byte, error) {
	segments, err := parseSegments(data)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string)
	existingIdx := -1
	for i, seg := range segments {
		if seg.marker == markerAPP1 && bytes.HasPrefix(seg.data, exifHeader) {
			existingIdx = i
			if !collectASCIIFields(seg.data[len(exifHeader):], merged) {
				return nil, ErrWouldDropTags
			}
			break
		}
	}
	for k, v := range fields {
		if _, ok := ifd0Tags[k]; !ok {
			if _, ok := exifIFDTags[k]; !ok {
				return nil, fmt.Errorf("unsupported EXIF field: %s", k)
			}
		}
		merged[k] = v
	}

	app1, err := buildExifSegment(merged)
	if err != nil {
		return nil, err
	}

	if existingIdx >= 0 {
		segments[existingIdx].data = app1
	} else {
		segments = insertAPP1(segments, app1)
	}
	return writeSegments(segments), nil
}

// SetDateTimeOriginal sets the DateTimeOriginal field, the canonical
// "date taken" consumed by photo-management ingestion.
func SetDateTimeOriginal(data []byte, value string) ([]byte, error) {
	return SetFields(data, map[string]string{"DateTimeOriginal": value})
}

// SetFieldsFile applies SetFields to a file, rewriting it in place.
func SetFieldsFile(path string, fields map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	out, err := SetFields(data, fields)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func parseSegments(data []byte) ([]segment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, fmt.Errorf("not a JPEG file")
	}
	segs := []segment{{marker: markerSOI}}

	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			// Entropy-coded scan data runs to the end of file
			// (trailing EOI included); keep it opaque.
			segs = append(segs, segment{marker: markerScan, data: data[i:]})
			break
		}
		i++
		if i >= len(data) {
			break
		}
		marker := data[i]
		i++

		if marker == markerSOI || marker == markerEOI {
			segs = append(segs, segment{marker: marker})
			if marker == markerEOI {
				break
			}
			continue
		}

		if i+2 > len(data) {
			return nil, fmt.Errorf("truncated JPEG segment header")
		}
		segLen := int(binary.BigEndian.Uint16(data[i:i+2])) - 2
		i += 2
		if segLen < 0 || i+segLen > len(data) {
			return nil, fmt.Errorf("truncated JPEG segment (marker 0x%02X)", marker)
		}
		segs = append(segs, segment{marker: marker, data: append([]byte{}, data[i:i+segLen]...)})
		i += segLen
	}
	return segs, nil
}

func writeSegments(segs []segment) []byte {
	var buf bytes.Buffer
	for _, seg := range segs {
		switch seg.marker {
		case markerSOI, markerEOI:
			buf.Write([]byte{0xFF, seg.marker})
		case markerScan:
			buf.Write(seg.data)
		default:
			buf.WriteByte(0xFF)
			buf.WriteByte(seg.marker)
			length := uint16(len(seg.data) + 2)
			buf.WriteByte(byte(length >> 8))
			buf.WriteByte(byte(length))
			buf.Write(seg.data)
		}
	}
	return buf.Bytes()
}

// insertAPP1 places the new APP1 after SOI and any leading APP0 (JFIF)
// segment.
func insertAPP1(segs []segment, app1Data []byte) []segment {
	pos := 1
	for pos < len(segs) && segs[pos].marker == markerAPP0 {
		pos++
	}
	out := make([]segment, 0, len(segs)+1)
	out = append(out, segs[:pos]...)
	out = append(out, segment{marker: markerAPP1, data: app1Data})
	out = append(out, segs[pos:]...)
	return out
}

// collectASCIIFields decodes an existing TIFF block and copies the
// ASCII tags this package knows how to rebuild. It reports false when
// the block also holds tags a rebuild would lose.
func collectASCIIFields(tiffData []byte, into map[string]string) bool {
	x, err := exif.Decode(bytes.NewReader(tiffData))
	if err != nil {
		// Corrupted EXIF is treated as absent.
		return true
	}
	w := &asciiWalker{fields: into}
	x.Walk(w)
	if _, err := x.JpegThumbnail(); err == nil {
		w.dropped = true
	}
	return !w.dropped
}

type asciiWalker struct {
	fields  map[string]string
	dropped bool
}

func (w *asciiWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	key := string(name)
	known := false
	if _, ok := ifd0Tags[key]; ok {
		known = true
	} else if _, ok := exifIFDTags[key]; ok {
		known = true
	}
	if !known || tag.Type != tiff.DTAscii {
		w.dropped = true
		return nil
	}
	if val, err := tag.StringVal(); err == nil {
		if _, exists := w.fields[key]; !exists {
			w.fields[key] = val
		}
	}
	return nil
}

type ifdEntry struct {
	tag   uint16
	value string
}

// buildExifSegment serializes the fields into an APP1 payload: EXIF
// header, little-endian TIFF header, IFD0 with an Exif sub-IFD pointer,
// and the sub-IFD holding the capture-time tags.
func buildExifSegment(fields map[string]string) ([]byte, error) {
	var ifd0, exifIFD []ifdEntry
	for k, v := range fields {
		if id, ok := ifd0Tags[k]; ok {
			ifd0 = append(ifd0, ifdEntry{tag: id, value: v})
		} else if id, ok := exifIFDTags[k]; ok {
			exifIFD = append(exifIFD, ifdEntry{tag: id, value: v})
		}
	}
	if len(ifd0) == 0 && len(exifIFD) == 0 {
		return nil, fmt.Errorf("no EXIF fields to write")
	}
	// Entries in an IFD must be sorted by tag number.
	sort.Slice(ifd0, func(i, j int) bool { return ifd0[i].tag < ifd0[j].tag })
	sort.Slice(exifIFD, func(i, j int) bool { return exifIFD[i].tag < exifIFD[j].tag })

	ifd0Count := len(ifd0)
	if len(exifIFD) > 0 {
		ifd0Count++ // the sub-IFD pointer entry
	}

	const ifd0Start = 8
	ifd0Size := 2 + ifd0Count*12 + 4
	ifd0ValuesStart := ifd0Start + ifd0Size
	ifd0ValuesLen := valuesLen(ifd0)
	exifIFDStart := ifd0ValuesStart + ifd0ValuesLen
	exifIFDSize := 0
	if len(exifIFD) > 0 {
		exifIFDSize = 2 + len(exifIFD)*12 + 4
	}
	exifValuesStart := exifIFDStart + exifIFDSize

	var tiffBuf bytes.Buffer
	tiffBuf.WriteString("II")
	le16(&tiffBuf, 0x2A)
	le32(&tiffBuf, ifd0Start)

	// The extra closure stands for exactly one pointer entry in the
	// count; pass nil when there is no sub-IFD to point at.
	var subIFDPointer func(*bytes.Buffer)
	if len(exifIFD) > 0 {
		subIFDPointer = func(buf *bytes.Buffer) {
			le16(buf, tagExifIFDPointer)
			le16(buf, 4) // LONG
			le32(buf, 1)
			le32(buf, uint32(exifIFDStart))
		}
	}
	writeIFD(&tiffBuf, ifd0, ifd0ValuesStart, subIFDPointer)
	if len(exifIFD) > 0 {
		writeIFD(&tiffBuf, exifIFD, exifValuesStart, nil)
	}

	var buf bytes.Buffer
	buf.Write(exifHeader)
	buf.Write(tiffBuf.Bytes())
	return buf.Bytes(), nil
}

// writeIFD emits the entry table, an optional extra entry appended by
// the callback, the zero next-IFD offset, and the out-of-line value
// area starting at valuesStart.
func writeIFD(buf *bytes.Buffer, entries []ifdEntry, valuesStart int, extra func(*bytes.Buffer)) {
	count := len(entries)
	if extra != nil {
		count++
	}
	le16(buf, uint16(count))

	var values bytes.Buffer
	for _, e := range entries {
		val := e.value + "\x00"
		le16(buf, e.tag)
		le16(buf, 2) // ASCII
		le32(buf, uint32(len(val)))
		if len(val) <= 4 {
			var inline [4]byte
			copy(inline[:], val)
			buf.Write(inline[:])
		} else {
			le32(buf, uint32(valuesStart+values.Len()))
			values.WriteString(val)
		}
	}
	if extra != nil {
		extra(buf)
	}
	le32(buf, 0)
	buf.Write(values.Bytes())
}

func valuesLen(entries []ifdEntry) int {
	n := 0
	for _, e := range entries {
		if len(e.value)+1 > 4 {
			n += len(e.value) + 1
		}
	}
	return n
}

func le16(buf *bytes.Buffer, v uint16) {
	binary.Write(buf, binary.LittleEndian, v)
}

func le32[T int | uint32](buf *bytes.Buffer, v T) {
	binary.Write(buf, binary.LittleEndian, uint32(v))
}
