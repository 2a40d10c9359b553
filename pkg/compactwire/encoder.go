package compactwire

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zOnce sync.Once
	zEnc  *zstd.Encoder
	zDec  *zstd.Decoder
	zErr  error
)

// codecs are shared; EncodeAll and DecodeAll are safe for concurrent use.
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zOnce.Do(func() {
		zEnc, zErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if zErr != nil {
			return
		}
		zDec, zErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedSize))
	})
	return zEnc, zDec, zErr
}

// EncodeFrame wraps payload in a data frame. With FlagZstd set the body is
// the zstd compression of payload.
func EncodeFrame(payload []byte, flags byte) ([]byte, error) {
	if flags&^knownFlags != 0 {
		return nil, ErrUnknownFlags
	}
	body := payload
	if flags&FlagZstd != 0 {
		enc, _, err := codecs()
		if err != nil {
			return nil, err
		}
		body = enc.EncodeAll(payload, nil)
	}
	if uint64(len(body))+MinFrameSize > math.MaxUint32 {
		return nil, ErrFrameTooLarge
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(body)+MinFrameSize))
	writePreamble(buf, TypeData)
	// length placeholder, filled in below
	_ = binary.Write(buf, binary.LittleEndian, uint32(0))
	buf.WriteByte(flags)
	buf.Write(body)

	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[3:], uint32(len(out)+trailerSize))
	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(out[3:])), nil
}
