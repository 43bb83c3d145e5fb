package cache

import (
	"encoding/binary"

	"main/internal/model"
	"main/pkg/exception"
)

// Binary book layout, little endian:
//
//	[0]     version (uint8)
//	[1]     exchange length (uint8)
//	[2]     base length (uint8)
//	[3]     quote length (uint8)
//	[4:12]  ts nanos (int64)
//	[12:20] sequence (uint64)
//	[20:24] checksum (uint32)
//	[24:26] bid count (uint16)
//	[26:28] ask count (uint16)
//	strings, then bid levels, then ask levels as (int64, int64) pairs.
const (
	bookCodecVersion = 1
	bookHeaderSize   = 28
	levelSize        = 16
)

// EncodeBook serializes a cleaned book, appending to buf.
func EncodeBook(buf []byte, b *model.OrderBook) ([]byte, error) {
	if b == nil {
		return buf, exception.ErrNilInstance
	}
	if len(b.Exchange) > 255 || len(b.Symbol.Base) > 255 || len(b.Symbol.Quote) > 255 {
		return buf, exception.ErrArgumentUnsupported
	}
	if len(b.Bids) > int(^uint16(0)) || len(b.Asks) > int(^uint16(0)) {
		return buf, exception.ErrDepthExceeded
	}

	var header [bookHeaderSize]byte
	header[0] = bookCodecVersion
	header[1] = byte(len(b.Exchange))
	header[2] = byte(len(b.Symbol.Base))
	header[3] = byte(len(b.Symbol.Quote))
	binary.LittleEndian.PutUint64(header[4:12], uint64(b.TsNano))
	binary.LittleEndian.PutUint64(header[12:20], b.Seq)
	binary.LittleEndian.PutUint32(header[20:24], b.Checksum)
	binary.LittleEndian.PutUint16(header[24:26], uint16(len(b.Bids)))
	binary.LittleEndian.PutUint16(header[26:28], uint16(len(b.Asks)))

	buf = append(buf, header[:]...)
	buf = append(buf, b.Exchange...)
	buf = append(buf, b.Symbol.Base...)
	buf = append(buf, b.Symbol.Quote...)
	buf = appendLevels(buf, b.Bids)
	buf = appendLevels(buf, b.Asks)
	return buf, nil
}

func appendLevels(buf []byte, levels []model.PriceLevel) []byte {
	var tmp [levelSize]byte
	for i := range levels {
		binary.LittleEndian.PutUint64(tmp[0:8], uint64(levels[i].Price))
		binary.LittleEndian.PutUint64(tmp[8:16], uint64(levels[i].Quantity))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

// DecodeBook deserializes into dst, reusing its side capacity.
func DecodeBook(data []byte, dst *model.OrderBook) error {
	if dst == nil {
		return exception.ErrNilInstance
	}
	if len(data) < bookHeaderSize {
		return exception.ErrCacheCorrupted
	}
	if data[0] != bookCodecVersion {
		return exception.ErrCacheCorrupted
	}
	exLen := int(data[1])
	baseLen := int(data[2])
	quoteLen := int(data[3])
	bidCount := int(binary.LittleEndian.Uint16(data[24:26]))
	askCount := int(binary.LittleEndian.Uint16(data[26:28]))

	need := bookHeaderSize + exLen + baseLen + quoteLen + (bidCount+askCount)*levelSize
	if len(data) != need {
		return exception.ErrCacheCorrupted
	}

	off := bookHeaderSize
	dst.Exchange = string(data[off : off+exLen])
	off += exLen
	base := string(data[off : off+baseLen])
	off += baseLen
	quote := string(data[off : off+quoteLen])
	off += quoteLen
	dst.Symbol = model.Symbol{Base: base, Quote: quote}
	dst.TsNano = int64(binary.LittleEndian.Uint64(data[4:12]))
	dst.Seq = binary.LittleEndian.Uint64(data[12:20])
	dst.Checksum = binary.LittleEndian.Uint32(data[20:24])

	dst.Bids, off = decodeLevels(data, off, bidCount, dst.Bids[:0])
	dst.Asks, _ = decodeLevels(data, off, askCount, dst.Asks[:0])
	return nil
}

func decodeLevels(data []byte, off, count int, dst []model.PriceLevel) ([]model.PriceLevel, int) {
	for i := 0; i < count; i++ {
		dst = append(dst, model.PriceLevel{
			Price:    model.Price(binary.LittleEndian.Uint64(data[off : off+8])),
			Quantity: model.Quantity(binary.LittleEndian.Uint64(data[off+8 : off+16])),
		})
		off += levelSize
	}
	return dst, off
}
