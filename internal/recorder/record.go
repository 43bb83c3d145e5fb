// Package recorder journals cleaned books to append-only segment files so
// a session can be replayed offline at original or accelerated pace.
package recorder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// RecordKind discriminates journal payloads.
type RecordKind uint16

const (
	// RecordBook carries one encoded canonical book.
	RecordBook RecordKind = 1
)

const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 32
	recordChecksumSize        = 4
)

var (
	recordMagic = [4]byte{'M', 'D', 'J', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic            = errors.New("journal invalid magic")
	ErrUnsupportedRecordVer    = errors.New("journal unsupported record version")
	ErrInvalidRecordHeaderSize = errors.New("journal invalid header size")
)

// RecordHeader describes one journal record.
type RecordHeader struct {
	Kind   RecordKind
	Seq    uint64
	TsNano int64
}

func encodeHeader(dst []byte, header RecordHeader, payloadLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint16(dst[8:10], uint16(header.Kind))
	binary.LittleEndian.PutUint16(dst[10:12], 0)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(payloadLen))
	binary.LittleEndian.PutUint64(dst[16:24], header.Seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(header.TsNano))
}

func checksum(header []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}

func decodeRecordHeader(src []byte) (RecordHeader, uint32, error) {
	if len(src) < recordHeaderSize {
		return RecordHeader{}, 0, ErrInvalidRecordHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return RecordHeader{}, 0, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return RecordHeader{}, 0, ErrUnsupportedRecordVer
	}
	if headerSize := binary.LittleEndian.Uint16(src[6:8]); headerSize != recordHeaderSize {
		return RecordHeader{}, 0, ErrInvalidRecordHeaderSize
	}
	payloadLen := binary.LittleEndian.Uint32(src[12:16])
	h := RecordHeader{
		Kind:   RecordKind(binary.LittleEndian.Uint16(src[8:10])),
		Seq:    binary.LittleEndian.Uint64(src[16:24]),
		TsNano: int64(binary.LittleEndian.Uint64(src[24:32])),
	}
	return h, payloadLen, nil
}
