package codestream

import (
	"errors"
	"fmt"
)

// IFetcher supplies byte ranges from a JPEG 2000 codestream on demand, so a
// TLM-indexed tile-part can be pulled out of a large file or remote object
// without reading the whole codestream into memory first.
type IFetcher interface {
	// FetchRange returns exactly length bytes starting at byte offset off.
	FetchRange(off int64, length int) ([]byte, error)
}

// BytesFetcher adapts an already in-memory codestream to IFetcher, for
// callers that have the bytes resident but still want to exercise the
// random-access path (e.g. tests, or a cache warmed from a prior full read).
type BytesFetcher struct {
	Data []byte
}

func (f *BytesFetcher) FetchRange(off int64, length int) ([]byte, error) {
	if off < 0 || length < 0 || off+int64(length) > int64(len(f.Data)) {
		return nil, fmt.Errorf("codestream: fetch range [%d,%d) out of bounds (len=%d)", off, off+int64(length), len(f.Data))
	}
	return f.Data[off : off+int64(length)], nil
}

// ErrCorruptTLM is returned when a TLM entry's declared tile-part length
// disagrees with the Psot length recorded in that tile-part's own SOT
// marker, once the tile-part is actually fetched and inspected.
var ErrCorruptTLM = errors.New("codestream: corrupt_tlm")

// TileByteRange is the absolute byte range of one tile-part within the
// codestream, derived from a TLM marker segment.
type TileByteRange struct {
	Tile   int
	Part   int // TLM entry ordinal within this tile (0 for single-tile-part streams)
	Offset int64
	Length int64
}

// TileByteRanges computes the byte range of every tile-part listed across
// one or more TLM segments, assuming tile-parts are laid out in the
// codestream in the same order the TLM entries are listed (the common case
// when PLM/PPM reordering isn't in play). mainHeaderEnd is Codestream's
// MainHeaderEnd, i.e. the byte offset of the first SOT.
func TileByteRanges(tlm []TLMSegment, mainHeaderEnd int64) []TileByteRange {
	var ranges []TileByteRange
	offset := mainHeaderEnd
	partOrdinal := make(map[int]int)
	for _, seg := range tlm {
		for _, e := range seg.Entries {
			tile := int(e.Tile)
			rng := TileByteRange{
				Tile:   tile,
				Part:   partOrdinal[tile],
				Offset: offset,
				Length: int64(e.Length),
			}
			partOrdinal[tile]++
			ranges = append(ranges, rng)
			offset += int64(e.Length)
		}
	}
	return ranges
}

// FetchTilePart fetches one tile-part's raw bytes (SOT marker segment
// through its SOD-delimited data) via fetcher and validates that the
// tile-part's own SOT.Psot agrees with the TLM-declared length. A mismatch
// returns ErrCorruptTLM wrapping the tile index, alongside whatever bytes
// were actually fetched, so a caller auditing a suspect TLM table can still
// inspect the tile-part.
func FetchTilePart(fetcher IFetcher, rng TileByteRange) ([]byte, error) {
	data, err := fetcher.FetchRange(rng.Offset, int(rng.Length))
	if err != nil {
		return nil, fmt.Errorf("codestream: fetching tile %d part %d: %w", rng.Tile, rng.Part, err)
	}

	p := NewParser(data)
	marker, err := p.readMarker()
	if err != nil || marker != MarkerSOT {
		return data, fmt.Errorf("%w: tile %d part %d does not start with SOT", ErrCorruptTLM, rng.Tile, rng.Part)
	}
	sot, err := p.parseSOT()
	if err != nil {
		return data, fmt.Errorf("%w: tile %d part %d: %v", ErrCorruptTLM, rng.Tile, rng.Part, err)
	}
	if sot.Psot != 0 && int64(sot.Psot) != rng.Length {
		return data, fmt.Errorf("%w: tile %d part %d: TLM declared %d bytes, SOT.Psot reports %d",
			ErrCorruptTLM, rng.Tile, rng.Part, rng.Length, sot.Psot)
	}
	return data, nil
}
