package codec_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"bitchat/internal/codec"
	"bitchat/internal/domain"
)

func TestEncode_PrefixesDisplayName(t *testing.T) {
	payload := codec.Encode("alice", "hello there")
	require.Equal(t, []byte("alice: hello there"), payload)
}

func TestEncode_ReplacesInvalidUTF8(t *testing.T) {
	payload := codec.Encode("bob", "bad \xff byte")

	require.True(t, utf8.Valid(payload))

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, "bob: bad � byte", decoded)
}

func TestDecode_KeepsPayloadWhole(t *testing.T) {
	// Colons inside the text are not separators. The decoded string is
	// displayed as-is, sender prefix included.
	raw := codec.Encode("carol", "meet at 12:30: dock B")

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "carol: meet at 12:30: dock B", decoded)
	require.Equal(t, 3, strings.Count(decoded, ":"))
}

func TestDecode_EmptyPayload_OK(t *testing.T) {
	decoded, err := codec.Decode(nil)
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestDecode_InvalidUTF8_Fails(t *testing.T) {
	_, err := codec.Decode([]byte{0x64, 0x61, 0xfe, 0x64})
	require.ErrorIs(t, err, domain.ErrDecode)
	require.Contains(t, err.Error(), "byte 2")
}

func TestDecode_TruncatedRune_Fails(t *testing.T) {
	whole := []byte("héllo")
	_, err := codec.Decode(whole[:2])
	require.ErrorIs(t, err, domain.ErrDecode)
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte("alice: hi"))
	f.Add([]byte(""))
	f.Add([]byte("no separator"))
	f.Add([]byte{0xff, 0xfe, 0xfd})
	f.Add([]byte("dave: \xf0\x9f\x9a\x80"))

	f.Fuzz(func(t *testing.T, payload []byte) {
		decoded, err := codec.Decode(payload)
		if err != nil {
			if !utf8.Valid(payload) {
				return
			}
			t.Fatalf("rejected valid UTF-8 %q: %v", payload, err)
		}
		if !utf8.ValidString(decoded) {
			t.Fatalf("accepted invalid UTF-8 %q", payload)
		}
		if decoded != string(payload) {
			t.Fatalf("decode altered payload: %q -> %q", payload, decoded)
		}
	})
}
