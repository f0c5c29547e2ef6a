/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: unpack.go
Description: Input unpacking for the Akaylee ArchRec engine. Corpus entries and
query files are sometimes wrapped in a transport encoding rather than raw bytes:
xz, gzip, Intel HEX, or C-Kermit HEX. Unpack peels those layers so the
statistical engine always sees the raw byte stream.
*/

package corpus

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

var (
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a}
	gzipMagic = []byte{0x1f, 0x8b}
	chexMark  = []byte{0x0a, 0x5a, 0x30, 0x31, 0x0a} // \nZ01\n
)

// maxHexGap bounds the zero-fill between Intel HEX records. Files with a
// larger hole are almost certainly sparse memory images where filling would
// swamp the statistics.
const maxHexGap = 0x1000000

// Unpack decodes transport encodings wrapping raw binary data. It applies,
// in order: xz, gzip, Intel HEX, C-Kermit HEX. Data that matches none of
// the magics is returned unchanged. Decode failures of the xz or gzip layer
// are errors; the caller decides whether to skip the entry. Text that looks
// like Intel HEX or C-Kermit HEX but does not decode is kept as it is.
func Unpack(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, xzMagic) {
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("xz decompress: %w", err)
		}
	}
	if bytes.HasPrefix(data, gzipMagic) {
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
	}
	if len(data) > 0 && data[0] == ':' {
		if decoded := unpackIntelHex(data); decoded != nil {
			data = decoded
		}
	}
	if bytes.Contains(data, chexMark) {
		if decoded := unpackKermitHex(data); decoded != nil {
			data = decoded
		}
	}
	return data, nil
}

type hexRecord struct {
	address int
	content []byte
}

// unpackIntelHex decodes an Intel HEX image into its raw bytes. Returns nil
// when the data is not a well-formed HEX file, in which case the caller
// keeps the original bytes.
func unpackIntelHex(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	var records []hexRecord
	base := 0
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if len(line) == 0 {
			continue
		}
		if len(line) < 11 || line[0] != ':' || !isHex(line[1:]) {
			return nil
		}
		count := hexByte(line[1:3])
		address := hexByte(line[3:5])<<8 | hexByte(line[5:7])
		kind := hexByte(line[7:9])
		content := line[9 : len(line)-2]
		if len(content) != 2*count {
			return nil
		}
		sum := 0
		for i := 0; i < count+5; i++ {
			sum += hexByte(line[2*i+1 : 2*i+3])
		}
		if sum%256 != 0 {
			return nil
		}
		switch kind {
		case 2: // Extended Segment Address
			base = 16 * hexInt(content)
			continue
		case 4: // Extended Linear Address
			base = 65536 * hexInt(content)
			continue
		case 0:
		default:
			continue
		}
		raw := make([]byte, count)
		for i := 0; i < count; i++ {
			raw[i] = byte(hexByte(content[2*i : 2*i+2]))
		}
		records = append(records, hexRecord{address: base + address, content: raw})
	}
	if len(records) == 0 {
		return nil
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].address < records[j].address })
	var res []byte
	largeGap := false
	for _, rec := range records {
		switch {
		case len(res) < rec.address:
			gap := rec.address - len(res)
			if gap > maxHexGap {
				if !largeGap {
					logrus.Warn("Intel HEX image has a large hole, contents not zero-filled")
				}
				largeGap = true
			} else {
				res = append(res, make([]byte, gap)...)
			}
		case len(res) > rec.address:
			logrus.Warn("Intel HEX image has overlapping records")
		}
		res = append(res, rec.content...)
	}
	return res
}

// unpackKermitHex decodes a C-Kermit HEX transfer. The decoding is lossy at
// the framing level but byte-accurate, which is all the statistics need.
// Returns nil when the data is not C-Kermit HEX.
func unpackKermitHex(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	var res []byte
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == 'Z' && isHex(line[1:]) {
			continue
		}
		if !isHex(line) || len(line)%2 != 0 {
			return nil
		}
		for i := 0; i < len(line); i += 2 {
			res = append(res, byte(hexByte(line[i:i+2])))
		}
	}
	if len(res) == 0 {
		return nil
	}
	return res
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func hexByte(s string) int {
	v := 0
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= int(c - '0')
		case c >= 'a' && c <= 'f':
			v |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= int(c-'A') + 10
		}
	}
	return v
}

func hexInt(s string) int {
	return hexByte(s)
}
