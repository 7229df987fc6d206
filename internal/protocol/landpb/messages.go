package landpb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Delete token result codes
const (
	ResultSuccess = "1"
	ResultFailure = "0"
)

// CurrencyDelta is one signed change to a player's donut balance
type CurrencyDelta struct {
	ID     string
	Reason string
	Amount int64
}

// ExtraLandMessage carries a batch of currency deltas
type ExtraLandMessage struct {
	CurrencyDeltas []CurrencyDelta
}

// ExtraLandResponse acknowledges each processed delta by id, in input order
type ExtraLandResponse struct {
	ProcessedIDs []string
}

// DeleteTokenRequest asks the server to revoke a token
type DeleteTokenRequest struct {
	Token string
}

// DeleteTokenResponse carries ResultSuccess or ResultFailure
type DeleteTokenResponse struct {
	Result string
}

// WholeLandTokenResponse is returned when a player has no town yet
type WholeLandTokenResponse struct {
	Token    string
	Conflict string
}

func (d *CurrencyDelta) marshal() []byte {
	var b []byte
	b = appendString(b, 1, d.ID)
	if d.Reason != "" {
		b = appendString(b, 2, d.Reason)
	}
	return appendInt(b, 3, d.Amount)
}

func (d *CurrencyDelta) unmarshal(b []byte) error {
	return forEachField(b, func(num protowire.Number, typ protowire.Type, val, _ []byte) error {
		var err error
		switch num {
		case 1:
			d.ID, err = readString(typ, val)
		case 2:
			d.Reason, err = readString(typ, val)
		case 3:
			var v uint64
			v, err = readVarint(typ, val)
			d.Amount = int64(v)
		}
		return err
	})
}

// Marshal encodes the batch
func (m *ExtraLandMessage) Marshal() []byte {
	var b []byte
	for i := range m.CurrencyDeltas {
		b = appendMessage(b, 1, m.CurrencyDeltas[i].marshal())
	}
	return b
}

// Unmarshal decodes b into m
func (m *ExtraLandMessage) Unmarshal(b []byte) error {
	*m = ExtraLandMessage{}
	return forEachField(b, func(num protowire.Number, typ protowire.Type, val, _ []byte) error {
		if num != 1 {
			return nil
		}
		sub, err := readBytes(typ, val)
		if err != nil {
			return err
		}
		var d CurrencyDelta
		if err := d.unmarshal(sub); err != nil {
			return err
		}
		m.CurrencyDeltas = append(m.CurrencyDeltas, d)
		return nil
	})
}

// Marshal encodes the acknowledgements
func (m *ExtraLandResponse) Marshal() []byte {
	var b []byte
	for _, id := range m.ProcessedIDs {
		b = appendMessage(b, 1, appendString(nil, 1, id))
	}
	return b
}

// Unmarshal decodes b into m
func (m *ExtraLandResponse) Unmarshal(b []byte) error {
	*m = ExtraLandResponse{}
	return forEachField(b, func(num protowire.Number, typ protowire.Type, val, _ []byte) error {
		if num != 1 {
			return nil
		}
		sub, err := readBytes(typ, val)
		if err != nil {
			return err
		}
		var id string
		err = forEachField(sub, func(n protowire.Number, t protowire.Type, v, _ []byte) error {
			if n != 1 {
				return nil
			}
			var err error
			id, err = readString(t, v)
			return err
		})
		if err != nil {
			return err
		}
		m.ProcessedIDs = append(m.ProcessedIDs, id)
		return nil
	})
}

// Marshal encodes the request
func (m *DeleteTokenRequest) Marshal() []byte {
	return appendString(nil, 1, m.Token)
}

// Unmarshal decodes b into m
func (m *DeleteTokenRequest) Unmarshal(b []byte) error {
	*m = DeleteTokenRequest{}
	return forEachField(b, func(num protowire.Number, typ protowire.Type, val, _ []byte) error {
		if num != 1 {
			return nil
		}
		var err error
		m.Token, err = readString(typ, val)
		return err
	})
}

// Marshal encodes the response
func (m *DeleteTokenResponse) Marshal() []byte {
	return appendString(nil, 1, m.Result)
}

// Unmarshal decodes b into m
func (m *DeleteTokenResponse) Unmarshal(b []byte) error {
	*m = DeleteTokenResponse{}
	return forEachField(b, func(num protowire.Number, typ protowire.Type, val, _ []byte) error {
		if num != 1 {
			return nil
		}
		var err error
		m.Result, err = readString(typ, val)
		return err
	})
}

// Marshal encodes the response
func (m *WholeLandTokenResponse) Marshal() []byte {
	b := appendString(nil, 1, m.Token)
	return appendString(b, 2, m.Conflict)
}

// Unmarshal decodes b into m
func (m *WholeLandTokenResponse) Unmarshal(b []byte) error {
	*m = WholeLandTokenResponse{}
	return forEachField(b, func(num protowire.Number, typ protowire.Type, val, _ []byte) error {
		var err error
		switch num {
		case 1:
			m.Token, err = readString(typ, val)
		case 2:
			m.Conflict, err = readString(typ, val)
		}
		return err
	})
}
