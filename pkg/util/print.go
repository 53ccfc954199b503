package util

import (
	"fmt"
	"io"
	"strings"
)

func ToPrintableString(b []byte) string {
	sz := len(b)
	if sz == 0 {
		return ""
	}
	buf := make([]byte, sz)
	for i := 0; i < sz; i++ {
		if b[i] < 32 || b[i] > 126 {
			buf[i] = '.'
		} else {
			buf[i] = b[i]
		}
	}
	return string(buf)
}

// HexDump writes data 16 bytes per row: offset, hex bytes and printable text.
func HexDump(w io.Writer, data []byte) {
	for start := 0; start < len(data); start += 16 {
		end := start + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(w, "%08X  ", start)
		for j := start; j < start+16; j++ {
			if j < end {
				fmt.Fprintf(w, "%02X ", data[j])
			} else {
				fmt.Fprint(w, "   ")
			}
		}
		fmt.Fprintf(w, " %s\n", ToPrintableString(data[start:end]))
	}
}

func HexDumpString(data []byte) string {
	var sb strings.Builder
	HexDump(&sb, data)
	return sb.String()
}
