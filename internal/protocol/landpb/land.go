package landpb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Default friend data values written into a freshly created town
const (
	DefaultDataVersion = 72
)

// FriendData is the summary other players see in their friend list
type FriendData struct {
	DataVersion        int32
	HasLemonTree       bool
	Language           int32
	Level              int32
	Name               string
	Rating             int32
	BoardwalkTileCount int32

	unknown []byte
}

// LandMessage is a player's town save. Only the id and the friend summary
// are modelled; every other field is carried through untouched.
type LandMessage struct {
	ID         string
	FriendData *FriendData

	unknown []byte
}

// NewFriendData returns the friend summary of a blank town
func NewFriendData() *FriendData {
	return &FriendData{DataVersion: DefaultDataVersion}
}

// Marshal encodes the friend data
func (f *FriendData) Marshal() []byte {
	var b []byte
	b = appendInt(b, 1, int64(f.DataVersion))
	b = appendBool(b, 2, f.HasLemonTree)
	b = appendInt(b, 3, int64(f.Language))
	b = appendInt(b, 4, int64(f.Level))
	b = appendString(b, 5, f.Name)
	b = appendInt(b, 6, int64(f.Rating))
	b = appendInt(b, 7, int64(f.BoardwalkTileCount))
	return append(b, f.unknown...)
}

// Unmarshal decodes b into f, replacing its contents
func (f *FriendData) Unmarshal(b []byte) error {
	*f = FriendData{}
	return forEachField(b, func(num protowire.Number, typ protowire.Type, val, raw []byte) error {
		var err error
		switch num {
		case 1:
			f.DataVersion, err = readInt32(typ, val)
		case 2:
			var v uint64
			v, err = readVarint(typ, val)
			f.HasLemonTree = protowire.DecodeBool(v)
		case 3:
			f.Language, err = readInt32(typ, val)
		case 4:
			f.Level, err = readInt32(typ, val)
		case 5:
			f.Name, err = readString(typ, val)
		case 6:
			f.Rating, err = readInt32(typ, val)
		case 7:
			f.BoardwalkTileCount, err = readInt32(typ, val)
		default:
			f.unknown = append(f.unknown, raw...)
		}
		return err
	})
}

// Marshal encodes the town
func (m *LandMessage) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ID)
	if m.FriendData != nil {
		b = appendMessage(b, 2, m.FriendData.Marshal())
	}
	return append(b, m.unknown...)
}

// Unmarshal decodes b into m, replacing its contents
func (m *LandMessage) Unmarshal(b []byte) error {
	*m = LandMessage{}
	return forEachField(b, func(num protowire.Number, typ protowire.Type, val, raw []byte) error {
		switch num {
		case 1:
			id, err := readString(typ, val)
			if err != nil {
				return err
			}
			m.ID = id
		case 2:
			sub, err := readBytes(typ, val)
			if err != nil {
				return err
			}
			fd := &FriendData{}
			if err := fd.Unmarshal(sub); err != nil {
				return err
			}
			m.FriendData = fd
		default:
			m.unknown = append(m.unknown, raw...)
		}
		return nil
	})
}

// IsEmpty reports whether nothing at all was decoded
func (m *LandMessage) IsEmpty() bool {
	return m.ID == "" && m.FriendData == nil && len(m.unknown) == 0
}

// UnmarshalLand decodes a town save
func UnmarshalLand(b []byte) (*LandMessage, error) {
	m := &LandMessage{}
	if err := m.Unmarshal(b); err != nil {
		return nil, err
	}
	return m, nil
}
