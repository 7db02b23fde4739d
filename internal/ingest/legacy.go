package ingest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/extrame/xls"
	"github.com/richardlehane/mscfb"
)

// compoundMagic opens every OLE2 compound file, which is how BIFF8 (.xls)
// workbooks are stored.
var compoundMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// BIFF8 record ids.
const (
	recBOF        = 0x0809
	recBoundSheet = 0x0085
	recFormula    = 0x0006
	recString     = 0x0207
	recNumber     = 0x0203
	recLabel      = 0x0204
	recBlank      = 0x0201

	maxRecordBody = 8224
	maxColumns    = 256
)

// Compound file layout used when repacking.
const (
	sectorSize    = 512
	idsPerSector  = sectorSize / 4
	streamCutoff  = 4096
	headerFATSlot = 109

	endOfChain = 0xFFFFFFFE
	freeSector = 0xFFFFFFFF
	fatSector  = 0xFFFFFFFD
	noStream   = 0xFFFFFFFF
)

// maxLegacyStream is the largest workbook stream that fits a compound file
// whose FAT is addressed from the header alone.
const maxLegacyStream = (headerFATSlot*(idsPerSector-1) - 1) * sectorSize

var le = binary.LittleEndian

// IsCompoundFile reports whether data starts with the OLE2 signature.
func IsCompoundFile(data []byte) bool {
	return bytes.HasPrefix(data, compoundMagic)
}

// ParseLegacyWorkbook reads the first worksheet of a BIFF8 workbook. The
// workbook stream is extracted with mscfb, formula cells are replaced by
// their cached results, and the result is repacked into a minimal compound
// file before the cell reader sees it.
func ParseLegacyWorkbook(data []byte) (*Table, error) {
	stream, err := workbookStream(data)
	if err != nil {
		return nil, err
	}
	container, err := repack(flattenFormulas(stream))
	if err != nil {
		return nil, err
	}
	name, rows, err := readFirstSheet(container)
	if err != nil {
		return nil, err
	}
	return tableFromRows(name, rows)
}

func workbookStream(data []byte) ([]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name == "Workbook" || entry.Name == "Book" {
			return io.ReadAll(entry)
		}
	}
	return nil, fmt.Errorf("compound file has no workbook stream")
}

// flattenFormulas rewrites FORMULA records as NUMBER or LABEL records holding
// the cached result, since the cell reader does not evaluate them. Sheet
// offsets in BOUNDSHEET records are moved to match.
func flattenFormulas(stream []byte) []byte {
	out := make([]byte, 0, len(stream))
	moved := make(map[uint32]uint32)
	var sheetRefs []int
	var pending []byte

	pos := 0
	for pos+4 <= len(stream) {
		id := le.Uint16(stream[pos:])
		end := pos + 4 + int(le.Uint16(stream[pos+2:]))
		if end > len(stream) {
			out = append(out, stream[pos:]...)
			break
		}
		body := stream[pos+4 : end]

		switch {
		case id == recBOF:
			moved[uint32(pos)] = uint32(len(out))
			out = appendRecord(out, id, body)
		case id == recBoundSheet && len(body) >= 4:
			sheetRefs = append(sheetRefs, len(out)+4)
			out = appendRecord(out, id, body)
		case id == recFormula && len(body) >= 20:
			cell, result := body[:6], body[6:14]
			switch {
			case result[6] != 0xFF || result[7] != 0xFF:
				out = appendRecord(out, recNumber, concat(cell, result))
			case result[0] == 0:
				// string result, carried by the next STRING record
				pending = cell
			default:
				out = appendRecord(out, recBlank, cell)
			}
		case id == recString && pending != nil:
			if len(body)+len(pending) <= maxRecordBody {
				out = appendRecord(out, recLabel, concat(pending, body))
			} else {
				out = appendRecord(out, recBlank, pending)
			}
			pending = nil
		default:
			out = appendRecord(out, id, body)
		}
		pos = end
	}

	for _, at := range sheetRefs {
		if n, ok := moved[le.Uint32(out[at:])]; ok {
			le.PutUint32(out[at:], n)
		}
	}
	return out
}

func appendRecord(out []byte, id uint16, body []byte) []byte {
	var head [4]byte
	le.PutUint16(head[:], id)
	le.PutUint16(head[2:], uint16(len(body)))
	out = append(out, head[:]...)
	return append(out, body...)
}

func concat(a, b []byte) []byte {
	return append(append(make([]byte, 0, len(a)+len(b)), a...), b...)
}

// repack stores stream as the single "Workbook" entry of a fresh compound
// file: header, FAT sectors, one directory sector, then the stream itself.
func repack(stream []byte) ([]byte, error) {
	if len(stream) > maxLegacyStream {
		return nil, fmt.Errorf("legacy workbook stream of %d bytes is too large, save it as .xlsx", len(stream))
	}
	size := len(stream)
	if size < streamCutoff {
		size = streamCutoff
	}
	dataSectors := (size + sectorSize - 1) / sectorSize
	fats := (dataSectors + 1 + idsPerSector - 2) / (idsPerSector - 1)
	dir := fats
	first := fats + 1
	last := first + dataSectors - 1

	buf := make([]byte, sectorSize*(1+last+1))
	offset := func(sector int) int { return sectorSize * (1 + sector) }

	copy(buf, compoundMagic)
	le.PutUint16(buf[24:], 0x3E)
	le.PutUint16(buf[26:], 3)
	le.PutUint16(buf[28:], 0xFFFE)
	le.PutUint16(buf[30:], 9)
	le.PutUint16(buf[32:], 6)
	le.PutUint32(buf[44:], uint32(fats))
	le.PutUint32(buf[48:], uint32(dir))
	le.PutUint32(buf[56:], streamCutoff)
	le.PutUint32(buf[60:], endOfChain)
	le.PutUint32(buf[68:], endOfChain)
	for i := 0; i < headerFATSlot; i++ {
		v := uint32(freeSector)
		if i < fats {
			v = uint32(i)
		}
		le.PutUint32(buf[76+4*i:], v)
	}

	for i := 0; i < fats*idsPerSector; i++ {
		v := uint32(freeSector)
		switch {
		case i < fats:
			v = fatSector
		case i == dir || i == last:
			v = endOfChain
		case i >= first && i < last:
			v = uint32(i + 1)
		}
		le.PutUint32(buf[offset(0)+4*i:], v)
	}

	putDirEntry(buf[offset(dir):], "Root Entry", 5, 1, endOfChain, 0)
	putDirEntry(buf[offset(dir)+128:], "Workbook", 2, noStream, uint32(first), uint32(size))
	copy(buf[offset(first):], stream)
	return buf, nil
}

func putDirEntry(b []byte, name string, kind byte, child, start, size uint32) {
	units := utf16.Encode([]rune(name))
	for i, u := range units {
		le.PutUint16(b[2*i:], u)
	}
	le.PutUint16(b[64:], uint16(2*(len(units)+1)))
	b[66] = kind
	b[67] = 1
	le.PutUint32(b[68:], noStream)
	le.PutUint32(b[72:], noStream)
	le.PutUint32(b[76:], child)
	le.PutUint32(b[116:], start)
	le.PutUint32(b[120:], size)
}

// readFirstSheet returns the name and cell text of the first worksheet. The
// reader panics on malformed records, so those become errors here.
func readFirstSheet(container []byte) (name string, rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed legacy workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(container), "utf-8")
	if err != nil {
		return "", nil, err
	}
	if wb == nil || wb.NumSheets() == 0 {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		rows = append(rows, sheetRow(sheet, i))
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return sheet.Name, rows, nil
}

// sheetRow returns the cells of row i up to the last non-empty one. Rows the
// sheet never stored come back nil.
func sheetRow(sheet *xls.WorkSheet, i int) (cells []string) {
	defer func() {
		if recover() != nil {
			cells = nil
		}
	}()
	row := sheet.Row(i)
	cells = make([]string, maxColumns)
	width := 0
	for j := range cells {
		cells[j] = row.Col(j)
		if cells[j] != "" {
			width = j + 1
		}
	}
	return cells[:width]
}
