package landpb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestLandMessagePreservesUnknownFields(t *testing.T) {
	// A save with an id, friend data and two fields this server does not model
	var raw []byte
	raw = appendString(raw, 1, "mayhem-1")
	raw = appendMessage(raw, 2, (&FriendData{DataVersion: 72, Level: 12, Name: "Springfield"}).Marshal())
	raw = appendMessage(raw, 9, []byte{0x08, 0x01})
	raw = protowire.AppendTag(raw, 15, protowire.Fixed32Type)
	raw = protowire.AppendFixed32(raw, 0xdeadbeef)

	msg, err := UnmarshalLand(raw)
	require.NoError(t, err)
	assert.Equal(t, "mayhem-1", msg.ID)
	require.NotNil(t, msg.FriendData)
	assert.Equal(t, int32(12), msg.FriendData.Level)
	assert.Equal(t, "Springfield", msg.FriendData.Name)

	assert.True(t, bytes.Equal(raw, msg.Marshal()), "re-encoding must reproduce the original bytes")
}

func TestLandMessageIDRewriteKeepsRemainder(t *testing.T) {
	var raw []byte
	raw = appendString(raw, 1, "old")
	raw = appendMessage(raw, 30, []byte("opaque"))

	msg, err := UnmarshalLand(raw)
	require.NoError(t, err)
	msg.ID = "new"

	again, err := UnmarshalLand(msg.Marshal())
	require.NoError(t, err)
	assert.Equal(t, "new", again.ID)
	assert.Nil(t, again.FriendData)
	assert.Equal(t, msg.unknown, again.unknown)
}

func TestUnmarshalLandRejectsGarbage(t *testing.T) {
	_, err := UnmarshalLand(bytes.Repeat([]byte{0xff}, 12))
	assert.Error(t, err)

	// Field number zero is never valid
	_, err = UnmarshalLand([]byte{0x00, 0x01})
	assert.Error(t, err)

	// Truncated length-delimited field
	_, err = UnmarshalLand([]byte{0x0a, 0x05, 'a'})
	assert.Error(t, err)
}

func TestUnmarshalLandRejectsInvalidUTF8ID(t *testing.T) {
	raw := protowire.AppendTag(nil, 1, protowire.BytesType)
	raw = protowire.AppendBytes(raw, []byte{0xc3, 0x28})

	_, err := UnmarshalLand(raw)
	assert.ErrorIs(t, err, errUTF8)
}

func TestBlankFriendDataDefaults(t *testing.T) {
	fd := NewFriendData()
	decoded := &FriendData{}
	require.NoError(t, decoded.Unmarshal(fd.Marshal()))

	assert.Equal(t, int32(DefaultDataVersion), decoded.DataVersion)
	assert.Equal(t, int32(0), decoded.Level)
	assert.Empty(t, decoded.Name)
	assert.False(t, decoded.HasLemonTree)
}

func TestIsEmpty(t *testing.T) {
	msg, err := UnmarshalLand(nil)
	require.NoError(t, err)
	assert.True(t, msg.IsEmpty())

	msg.ID = "x"
	assert.False(t, msg.IsEmpty())
}
