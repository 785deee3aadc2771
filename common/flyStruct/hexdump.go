package flyStruct

import (
	"fmt"
	"strings"
)

const dumpHeader = "  Offset  00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F\n"

// HexDump formats b as 16 byte rows under an offset header.
func HexDump(b []byte) string {
	var s strings.Builder
	s.WriteString(dumpHeader)

	for i := 0; i < len(b); i += 16 {
		fmt.Fprintf(&s, "%08x  ", i)
		for j := 0; j < 16; j++ {
			if i+j < len(b) {
				fmt.Fprintf(&s, "%02X ", b[i+j])
			} else {
				s.WriteString("   ")
			}
		}
		s.WriteByte('\n')
	}

	return s.String()
}
