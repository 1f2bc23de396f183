package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

// CurrentSchemaVersion is the wire version written by [Encode]. Decoders accept
// older versions and the store migrates legacy records forward on read.
const CurrentSchemaVersion = sessionFormatVersionCurrent

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.SubjectID) > 255 {
		return nil, errors.New("subjectID too long")
	}
	buf.WriteByte(byte(len(s.SubjectID)))
	buf.WriteString(s.SubjectID)

	if len(s.NetworkAddress) > 255 {
		return nil, errors.New("networkAddress too long")
	}
	buf.WriteByte(byte(len(s.NetworkAddress)))
	buf.WriteString(s.NetworkAddress)

	if len(s.ClientContext) > 255 {
		return nil, errors.New("clientContext too long")
	}
	buf.WriteByte(byte(len(s.ClientContext)))
	buf.WriteString(s.ClientContext)

	if s.Active {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, s.MinRefreshVersion); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent &&
		version != sessionFormatVersionV1 {
		return nil, errors.New("unsupported session schema version")
	}

	s := &Session{SchemaVersion: version}

	subjLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	subjectID := make([]byte, subjLen)
	if _, err := io.ReadFull(reader, subjectID); err != nil {
		return nil, err
	}
	s.SubjectID = string(subjectID)

	netLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	networkAddress := make([]byte, netLen)
	if _, err := io.ReadFull(reader, networkAddress); err != nil {
		return nil, err
	}
	s.NetworkAddress = string(networkAddress)

	ctxLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	clientContext := make([]byte, ctxLen)
	if _, err := io.ReadFull(reader, clientContext); err != nil {
		return nil, err
	}
	s.ClientContext = string(clientContext)

	active, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.Active = active == 1

	if version == sessionFormatVersionCurrent {
		if err := binary.Read(reader, binary.BigEndian, &s.MinRefreshVersion); err != nil {
			return nil, err
		}
	} else {
		// v1 predates refresh family tracking; accept every family version.
		s.MinRefreshVersion = 1
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}
