package wsbridge

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

const (
	frameVersion    byte = 1
	frameHeaderSize int  = 7
)

type frame struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// encodeFrame: version(1) | originLen(2) | dataLen(4) | origin | data.
func encodeFrame(origin string, data []byte) ([]byte, error) {
	if len(origin) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: origin too long", ErrInvalidFrame)
	}

	if uint64(len(data)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: data too long", ErrInvalidFrame)
	}

	buf := make([]byte, frameHeaderSize+len(origin)+len(data))
	buf[0] = frameVersion
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(origin)))
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(data)))

	offset := frameHeaderSize
	copy(buf[offset:], origin)
	offset += len(origin)
	copy(buf[offset:], data)

	return buf, nil
}

func decodeFrame(data []byte) (*frame, error) {
	if len(data) == 0 {
		return nil, ErrInvalidFrame
	}

	// Текстовые клиенты могут слать кадр в JSON.
	if data[0] == '{' {
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}

		return &f, nil
	}

	if len(data) < frameHeaderSize || data[0] != frameVersion {
		return nil, ErrInvalidFrame
	}

	originLen := int(binary.BigEndian.Uint16(data[1:3]))
	dataLen := int(binary.BigEndian.Uint32(data[3:7]))

	if frameHeaderSize+originLen+dataLen != len(data) {
		return nil, ErrInvalidFrame
	}

	offset := frameHeaderSize
	origin := string(data[offset : offset+originLen])
	offset += originLen

	return &frame{
		Origin: origin,
		Data:   json.RawMessage(data[offset : offset+dataLen]),
	}, nil
}
