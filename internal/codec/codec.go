package codec

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"bitchat/internal/domain"
)

// separator sits between the display name and the message text.
const separator = ": "

// Encode renders the payload for one outbound message. Invalid UTF-8 in the
// inputs is replaced with U+FFFD so the bytes on the wire always decode.
func Encode(displayName, text string) []byte {
	return []byte(strings.ToValidUTF8(displayName+separator+text, "�"))
}

// Decode validates an inbound payload and returns it as a display string.
// The sender prefix is part of the string; callers show it untouched.
func Decode(payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", fmt.Errorf("%w: invalid UTF-8 at byte %d", domain.ErrDecode, firstInvalid(payload))
	}
	return string(payload), nil
}

// firstInvalid returns the offset of the first byte that does not begin a
// valid UTF-8 sequence.
func firstInvalid(p []byte) int {
	for i := 0; i < len(p); {
		r, size := utf8.DecodeRune(p[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(p)
}
