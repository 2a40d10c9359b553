package compactwire

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// DecodeFrame validates frame and returns its payload, decompressed when
// FlagZstd is set. An uncompressed payload aliases frame.
func DecodeFrame(frame []byte) ([]byte, byte, error) {
	if len(frame) < MinFrameSize {
		if len(frame) >= 2 && (frame[0] != Magic0 || frame[1] != Magic1) {
			return nil, 0, ErrNotFrame
		}
		return nil, 0, ErrShortFrame
	}
	rdr := bytes.NewReader(frame)
	t, err := readPreamble(rdr)
	if err != nil {
		return nil, 0, err
	}
	if t != TypeData {
		return nil, 0, ErrNotFrame
	}

	var length uint32
	if err := binary.Read(rdr, binary.LittleEndian, &length); err != nil {
		return nil, 0, err
	}
	if int64(length) != int64(len(frame)) {
		return nil, 0, ErrLengthMismatch
	}
	flags, _ := rdr.ReadByte()

	end := len(frame) - trailerSize
	want := binary.LittleEndian.Uint32(frame[end:])
	if crc32.ChecksumIEEE(frame[3:end]) != want {
		return nil, 0, ErrChecksum
	}
	if flags&^knownFlags != 0 {
		return nil, flags, ErrUnknownFlags
	}

	body := frame[headerSize:end]
	if flags&FlagZstd == 0 {
		return body, flags, nil
	}
	_, dec, err := codecs()
	if err != nil {
		return nil, flags, err
	}
	payload, err := dec.DecodeAll(body, nil)
	if err != nil {
		return nil, flags, err
	}
	return payload, flags, nil
}
