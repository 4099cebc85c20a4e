package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
)

const (
	markFormatVersionCurrent = 1

	maxIdentityLength = 1024
)

// EncodeMark serializes m as
// version(1) | channel(1) | identity length(2, BE) | identity | verified-at unix nanos(8, BE).
func EncodeMark(m goVerify.VerifiedMark) ([]byte, error) {
	if m.Identity == "" {
		return nil, errors.New("identity is empty")
	}
	if len(m.Identity) > maxIdentityLength {
		return nil, errors.New("identity too long")
	}

	var buf bytes.Buffer
	buf.Grow(12 + len(m.Identity))

	buf.WriteByte(markFormatVersionCurrent)
	buf.WriteByte(byte(m.Channel))

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(m.Identity))); err != nil {
		return nil, err
	}
	buf.WriteString(m.Identity)

	if err := binary.Write(&buf, binary.BigEndian, m.VerifiedAt.UnixNano()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecodeMark parses a blob written by EncodeMark.
func DecodeMark(data []byte) (goVerify.VerifiedMark, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return goVerify.VerifiedMark{}, err
	}
	if version != markFormatVersionCurrent {
		return goVerify.VerifiedMark{}, fmt.Errorf("unsupported mark schema version %d", version)
	}

	channel, err := reader.ReadByte()
	if err != nil {
		return goVerify.VerifiedMark{}, err
	}

	var idLen uint16
	if err := binary.Read(reader, binary.BigEndian, &idLen); err != nil {
		return goVerify.VerifiedMark{}, err
	}
	if idLen == 0 || int(idLen) > maxIdentityLength {
		return goVerify.VerifiedMark{}, errors.New("invalid identity length")
	}
	identity := make([]byte, idLen)
	if _, err := io.ReadFull(reader, identity); err != nil {
		return goVerify.VerifiedMark{}, err
	}

	var nanos int64
	if err := binary.Read(reader, binary.BigEndian, &nanos); err != nil {
		return goVerify.VerifiedMark{}, err
	}
	if reader.Len() != 0 {
		return goVerify.VerifiedMark{}, errors.New("trailing bytes in mark")
	}

	return goVerify.VerifiedMark{
		Identity:   string(identity),
		Channel:    goVerify.Channel(channel),
		VerifiedAt: time.Unix(0, nanos).UTC(),
	}, nil
}
