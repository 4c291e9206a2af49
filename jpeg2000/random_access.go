package jpeg2000

import (
	"fmt"

	"github.com/jp2lab/j2kcodec/jpeg2000/codestream"
	"github.com/jp2lab/j2kcodec/jpeg2000/t2"
)

// RandomAccessDecoder decodes individual tiles of a JPEG 2000 codestream
// out of order, using a TLM marker to locate each tile-part's byte range
// and an codestream.IFetcher to pull only those bytes instead of requiring
// the whole codestream resident up front. This is the driver half of TLM
// random access; jpeg2000/codestream.FetchTilePart/TileByteRanges is the
// codestream-parsing half.
type RandomAccessDecoder struct {
	cs        *codestream.Codestream
	fetcher   codestream.IFetcher
	ranges    map[int][]codestream.TileByteRange // tile index -> tile-parts, in part order
	assembler *TileAssembler
	roiInfo   *t2.ROIInfo
}

// OpenRandomAccess parses mainHeader -- the codestream bytes from SOC
// through (at least) the first two bytes of the first SOT marker -- to
// recover SIZ/COD/QCD/TLM, then indexes every tile-part's byte range from
// the TLM table. It returns an error if the codestream carries no TLM
// marker, since without one there is no way to locate a tile-part without
// scanning the whole stream sequentially.
func OpenRandomAccess(mainHeader []byte, fetcher codestream.IFetcher) (*RandomAccessDecoder, error) {
	cs, err := codestream.ParseMainHeaderOnly(mainHeader)
	if err != nil {
		return nil, fmt.Errorf("random access: parsing main header: %w", err)
	}
	if cs.SIZ == nil || cs.COD == nil || cs.QCD == nil {
		return nil, fmt.Errorf("random access: main header missing SIZ/COD/QCD")
	}
	if len(cs.TLM) == 0 {
		return nil, fmt.Errorf("random access: codestream has no TLM marker")
	}

	ranges := make(map[int][]codestream.TileByteRange)
	for _, rng := range codestream.TileByteRanges(cs.TLM, cs.MainHeaderEnd) {
		ranges[rng.Tile] = append(ranges[rng.Tile], rng)
	}

	return &RandomAccessDecoder{
		cs:        cs,
		fetcher:   fetcher,
		ranges:    ranges,
		assembler: NewTileAssembler(cs.SIZ),
	}, nil
}

// DecodeTile fetches, validates, and decodes exactly one tile's data,
// identified by tileIdx, without touching any other tile-part's bytes.
func (r *RandomAccessDecoder) DecodeTile(tileIdx int) ([][]int32, error) {
	parts, ok := r.ranges[tileIdx]
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("random access: tile %d not present in TLM table", tileIdx)
	}

	var tile *codestream.Tile
	for _, rng := range parts {
		raw, err := codestream.FetchTilePart(r.fetcher, rng)
		if err != nil {
			return nil, err
		}
		part, err := codestream.ParseTilePart(raw)
		if err != nil {
			return nil, fmt.Errorf("random access: parsing tile %d part %d: %w", tileIdx, rng.Part, err)
		}
		if tile == nil {
			tile = part
		} else {
			tile.Data = append(tile.Data, part.Data...)
		}
	}

	isHTJ2K := (r.cs.COD.Scod & 0x40) != 0
	tileDecoder := t2.NewTileDecoder(tile, r.cs.SIZ, r.cs.COD, r.cs.QCD, r.roiInfo, isHTJ2K, nil)
	tileData, err := tileDecoder.Decode()
	if err != nil {
		return nil, fmt.Errorf("random access: decoding tile %d: %w", tileIdx, err)
	}

	if err := r.assembler.AssembleTile(tileIdx, tileData); err != nil {
		return nil, fmt.Errorf("random access: assembling tile %d: %w", tileIdx, err)
	}
	return tileData, nil
}

// DecodeOrder fetches and decodes tiles in exactly the order given,
// returning the assembled image data accumulated so far plus, if any tile
// in the order is corrupt, an error wrapping codestream.ErrCorruptTLM.
// Tiles decoded before the corrupt one remain in the returned image data --
// the caller can inspect partial results rather than losing the whole
// decode to one bad TLM entry.
func (r *RandomAccessDecoder) DecodeOrder(order []int) ([][]int32, error) {
	for _, tileIdx := range order {
		if _, err := r.DecodeTile(tileIdx); err != nil {
			return r.assembler.GetImageData(), err
		}
	}
	return r.assembler.GetImageData(), nil
}

// ImageData returns the image data assembled by DecodeTile/DecodeOrder so
// far; tiles not yet decoded are left at their zero value.
func (r *RandomAccessDecoder) ImageData() [][]int32 {
	return r.assembler.GetImageData()
}
