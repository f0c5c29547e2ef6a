/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: unpack_test.go
Description: Tests for input unpacking. Covers gzip round-trips, Intel HEX
decoding with extended addresses and checksum rejection, C-Kermit HEX decoding,
and passthrough of plain binary data.
*/

package corpus

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ihexLine(address int, kind int, content []byte) string {
	sum := len(content) + (address >> 8) + (address & 0xff) + kind
	var hexed strings.Builder
	for _, b := range content {
		sum += int(b)
		fmt.Fprintf(&hexed, "%02X", b)
	}
	checksum := (256 - sum%256) % 256
	return fmt.Sprintf(":%02X%04X%02X%s%02X", len(content), address, kind, hexed.String(), checksum)
}

// TestUnpackPassthrough tests that plain binary data is returned unchanged
func TestUnpackPassthrough(t *testing.T) {
	data := []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01}
	out, err := Unpack(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

// TestUnpackGzip tests transparent gzip decompression
func TestUnpackGzip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 64)
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := Unpack(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

// TestUnpackIntelHex tests Intel HEX decoding with a gap and an EOF record
func TestUnpackIntelHex(t *testing.T) {
	lines := []string{
		ihexLine(0x0000, 0, []byte{0x01, 0x02, 0x03, 0x04}),
		ihexLine(0x0008, 0, []byte{0xAA, 0xBB}),
		ihexLine(0x0000, 1, nil), // EOF record, ignored
	}
	out, err := Unpack([]byte(strings.Join(lines, "\r\n")))
	require.NoError(t, err)

	// The 4-byte gap between records is zero-filled
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x00, 0x00, 0x00, 0x00, 0xAA, 0xBB}, out)
}

// TestUnpackIntelHexExtendedAddress tests type-4 extended linear addressing
func TestUnpackIntelHexExtendedAddress(t *testing.T) {
	lines := []string{
		ihexLine(0x0000, 0, []byte{0x11}),
		ihexLine(0x0000, 4, []byte{0x00, 0x01}), // base = 0x10000... too big a gap? no: 64KiB
		ihexLine(0x0000, 0, []byte{0x22}),
	}
	out, err := Unpack([]byte(strings.Join(lines, "\n")))
	require.NoError(t, err)

	require.Len(t, out, 0x10001)
	assert.Equal(t, byte(0x11), out[0])
	assert.Equal(t, byte(0x22), out[0x10000])
}

// TestUnpackIntelHexBadChecksum tests that corrupt HEX keeps the raw bytes
func TestUnpackIntelHexBadChecksum(t *testing.T) {
	line := ihexLine(0x0000, 0, []byte{0x01, 0x02})
	corrupt := []byte(line[:len(line)-2] + "FF")

	out, err := Unpack(corrupt)
	require.NoError(t, err)
	assert.Equal(t, corrupt, out)
}

// TestUnpackKermitHex tests C-Kermit HEX decoding
func TestUnpackKermitHex(t *testing.T) {
	data := []byte("\nZ01\ndeadbeef\ncafe\nZFF\n")
	out, err := Unpack(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef, 0xca, 0xfe}, out)
}

// TestUnpackEmpty tests that empty input stays empty
func TestUnpackEmpty(t *testing.T) {
	out, err := Unpack(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
