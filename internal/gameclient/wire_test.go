// ABOUTME: Tests for the Java wire helpers and chat component flattening.
// ABOUTME: Focuses on varint bounds and the text shapes real servers send in kicks.

package gameclient

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, 127, 128, 300, 25565, 1<<21 - 1, -1} {
		var buf bytes.Buffer
		writeVarInt(&buf, v)
		got, err := readVarInt(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestReadVarIntTooLong(t *testing.T) {
	r := bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80})
	_, err := readVarInt(r)
	assert.Error(t, err)
}

func TestReadStringBounds(t *testing.T) {
	var buf bytes.Buffer
	writeVarInt(&buf, maxStringLen+1)
	_, err := readString(bytes.NewReader(buf.Bytes()))
	assert.Error(t, err)
}

func TestDecodeTextComponent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", "Server closed", "Server closed"},
		{"quoted json string", `"You are banned"`, "You are banned"},
		{"text object", `{"text":"Kicked by admin"}`, "Kicked by admin"},
		{"extras", `{"text":"You are ","extra":[{"text":"banned"},{"text":"!"}]}`, "You are banned!"},
		{"translate fallback", `{"translate":"multiplayer.disconnect.server_full"}`, "multiplayer.disconnect.server_full"},
		{"array form", `[{"text":"Server "},{"text":"restarting"}]`, "Server restarting"},
		{"malformed json", `{"text":`, `{"text":`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeTextComponent(tt.raw))
		})
	}
}

func TestOfflineUUID(t *testing.T) {
	id := offlineUUID("steve")
	require.Len(t, id, 16)
	assert.EqualValues(t, 0x30, id[6]&0xf0, "version nibble must be 3")
	assert.EqualValues(t, 0x80, id[8]&0xc0, "variant bits must be RFC 4122")

	// deterministic per username
	assert.Equal(t, id, offlineUUID("steve"))
	assert.NotEqual(t, id, offlineUUID("alex"))
}
