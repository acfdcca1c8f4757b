package rediscall

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxBytes is how many bytes of binary argument are printed.
	MaxBytes = 16
	// MaxRunes is how many runes of string argument are printed.
	MaxRunes = 64
)

// FormatArgs renders arguments for logs. Binary payloads are printed as hex
// and truncated to MaxBytes, strings are truncated to MaxRunes.
func FormatArgs(args ...interface{}) string {
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(formatArg(arg))
	}
	return b.String()
}

func formatArg(arg interface{}) string {
	switch v := arg.(type) {
	case nil:
		return "nil"
	case []byte:
		if len(v) > MaxBytes {
			return "0x" + hex.EncodeToString(v[:MaxBytes]) + "...(" + strconv.Itoa(len(v)) + " bytes)"
		}
		return "0x" + hex.EncodeToString(v)
	case string:
		head, tail := truncate(v)
		return strconv.Quote(head) + tail
	case fmt.Stringer:
		head, tail := truncate(v.String())
		return head + tail
	default:
		return fmt.Sprint(v)
	}
}

// truncate cuts s to MaxRunes runes. tail describes what were cut.
func truncate(s string) (head, tail string) {
	n := 0
	for i := range s {
		if n == MaxRunes {
			return s[:i], "...(" + strconv.Itoa(len(s)) + " bytes)"
		}
		n++
	}
	return s, ""
}
