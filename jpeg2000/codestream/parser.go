package codestream

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
)

// Parser parses JPEG 2000 codestreams
type Parser struct {
	data   []byte
	offset int
	logger *slog.Logger
}

// NewParser creates a new codestream parser
func NewParser(data []byte) *Parser {
	return &Parser{
		data:   data,
		offset: 0,
		logger: slog.Default(),
	}
}

// SetLogger overrides the parser's diagnostic sink. A nil logger restores
// slog.Default().
func (p *Parser) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	p.logger = logger
}

// Parse parses the entire codestream
func (p *Parser) Parse() (*Codestream, error) {
	cs := &Codestream{
		Data: p.data,
	}

	// Read SOC marker
	marker, err := p.readMarker()
	if err != nil {
		return nil, fmt.Errorf("failed to read SOC: %w", err)
	}
	if marker != MarkerSOC {
		return nil, fmt.Errorf("expected SOC marker (0x%04X), got 0x%04X", MarkerSOC, marker)
	}

	// Parse main header
	if err := p.parseMainHeader(cs); err != nil {
		return nil, fmt.Errorf("failed to parse main header: %w", err)
	}
	cs.MainHeaderEnd = int64(p.offset)

	// Parse tiles
	sawEOC := false
	for {
		marker, err := p.peekMarker()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if marker == MarkerEOC {
			sawEOC = true
			// End of codestream
			_, _ = p.readMarker() // consume EOC
			break
		}

		if marker == MarkerSOT {
			tile, err := p.parseTile(cs)
			if err != nil {
				return nil, fmt.Errorf("failed to parse tile: %w", err)
			}
			// A later tile-part of an already-seen tile is appended to that tile.
			var prev *Tile
			for _, t := range cs.Tiles {
				if t.Index == tile.Index {
					prev = t
					break
				}
			}
			if prev == nil {
				cs.Tiles = append(cs.Tiles, tile)
			} else {
				merged := make([]byte, 0, len(prev.Data)+len(tile.Data))
				prev.Data = append(append(merged, prev.Data...), tile.Data...)
			}
		} else {
			return nil, fmt.Errorf("unexpected marker in tile sequence: 0x%04X (%s)", marker, MarkerName(marker))
		}
	}

	if !sawEOC {
		p.logger.Warn("codestream ended without EOC marker", "tiles", len(cs.Tiles))
	}

	return cs, nil
}

// ParseMainHeaderOnly parses the SOC marker and main header segments (SIZ,
// COD, QCD, TLM, …) and stops at the first SOT, without attempting to read
// any tile-part. Used by TLM-driven random access, where the caller hasn't
// fetched tile data yet and only wants SIZ/COD/QCD/TLM plus
// Codestream.MainHeaderEnd to compute tile-part byte ranges.
func ParseMainHeaderOnly(data []byte) (*Codestream, error) {
	p := NewParser(data)
	cs := &Codestream{Data: data}

	marker, err := p.readMarker()
	if err != nil {
		return nil, fmt.Errorf("failed to read SOC: %w", err)
	}
	if marker != MarkerSOC {
		return nil, fmt.Errorf("expected SOC marker (0x%04X), got 0x%04X", MarkerSOC, marker)
	}

	if err := p.parseMainHeader(cs); err != nil {
		return nil, fmt.Errorf("failed to parse main header: %w", err)
	}
	cs.MainHeaderEnd = int64(p.offset)
	return cs, nil
}

// ParseTilePart parses a single self-contained tile-part -- the bytes from
// its SOT marker through its SOD-delimited data, as fetched via IFetcher and
// a TileByteRange -- into a Tile. Used by TLM-driven random access.
func ParseTilePart(data []byte) (*Tile, error) {
	p := NewParser(data)
	return p.parseTile(nil)
}

// parseMainHeader parses the main header segments
func (p *Parser) parseMainHeader(cs *Codestream) error {
	for {
		marker, err := p.peekMarker()
		if err != nil {
			return err
		}

		// Main header ends when we hit SOT or EOC
		if marker == MarkerSOT || marker == MarkerEOC {
			break
		}

		// Read the marker
		marker, err = p.readMarker()
		if err != nil {
			return err
		}

		// Parse segment based on marker type
		switch marker {
		case MarkerSIZ:
			siz, err := p.parseSIZ()
			if err != nil {
				return fmt.Errorf("failed to parse SIZ: %w", err)
			}
			cs.SIZ = siz

		case MarkerCOD:
			cod, err := p.parseCOD()
			if err != nil {
				return fmt.Errorf("failed to parse COD: %w", err)
			}
			cs.COD = cod

		case MarkerQCD:
			qcd, err := p.parseQCD()
			if err != nil {
				return fmt.Errorf("failed to parse QCD: %w", err)
			}
			cs.QCD = qcd

		case MarkerCOC:
			coc, err := p.parseCOC()
			if err != nil {
				return fmt.Errorf("failed to parse COC: %w", err)
			}
			if cs.COC == nil {
				cs.COC = make(map[uint16]*COCSegment)
			}
			cs.COC[coc.Component] = coc

		case MarkerQCC:
			qcc, err := p.parseQCC()
			if err != nil {
				return fmt.Errorf("failed to parse QCC: %w", err)
			}
			if cs.QCC == nil {
				cs.QCC = make(map[uint16]*QCCSegment)
			}
			cs.QCC[qcc.Component] = qcc

		case MarkerPOC:
			poc, err := p.parsePOC()
			if err != nil {
				return fmt.Errorf("failed to parse POC: %w", err)
			}
			cs.POC = append(cs.POC, *poc)

		case MarkerTLM:
			tlm, err := p.parseTLM()
			if err != nil {
				return fmt.Errorf("failed to parse TLM: %w", err)
			}
			cs.TLM = append(cs.TLM, *tlm)

		case MarkerCBD:
			cbd, err := p.parseCBD()
			if err != nil {
				return fmt.Errorf("failed to parse CBD: %w", err)
			}
			cs.CBD = cbd

		case MarkerPLM:
			plm, err := p.parsePLM()
			if err != nil {
				return fmt.Errorf("failed to parse PLM: %w", err)
			}
			cs.PLM = append(cs.PLM, *plm)

		case MarkerPPM:
			ppm, err := p.parsePPM()
			if err != nil {
				return fmt.Errorf("failed to parse PPM: %w", err)
			}
			cs.PPM = append(cs.PPM, *ppm)

		case MarkerCRG:
			crg, err := p.parseCRG()
			if err != nil {
				return fmt.Errorf("failed to parse CRG: %w", err)
			}
			cs.CRG = crg

		case MarkerRGN:
			rgn, err := p.parseRGN()
			if err != nil {
				return fmt.Errorf("failed to parse RGN: %w", err)
			}
			cs.RGN = append(cs.RGN, *rgn)

		case MarkerCOM:
			com, err := p.parseCOM()
			if err != nil {
				return fmt.Errorf("failed to parse COM: %w", err)
			}
			cs.COM = append(cs.COM, *com)

		case MarkerMCT:
			seg, err := p.parseMCT()
			if err != nil {
				return fmt.Errorf("failed to parse MCT: %w", err)
			}
			cs.MCT = append(cs.MCT, *seg)

		case MarkerMCC:
			seg, err := p.parseMCC()
			if err != nil {
				return fmt.Errorf("failed to parse MCC: %w", err)
			}
			cs.MCC = append(cs.MCC, *seg)

		case MarkerMCO:
			seg, err := p.parseMCO()
			if err != nil {
				return fmt.Errorf("failed to parse MCO: %w", err)
			}
			cs.MCO = append(cs.MCO, *seg)

		default:
			// Skip unknown segments
			if err := p.skipSegment(); err != nil {
				return fmt.Errorf("failed to skip segment 0x%04X: %w", marker, err)
			}
		}
	}

	// Verify required segments
	if cs.SIZ == nil {
		return fmt.Errorf("missing required SIZ segment")
	}
	if cs.COD == nil {
		return fmt.Errorf("missing required COD segment")
	}
	if cs.QCD == nil {
		return fmt.Errorf("missing required QCD segment")
	}

	return nil
}

// parseTile parses a single tile
func (p *Parser) parseTile(cs *Codestream) (*Tile, error) {
	tileStart := p.offset
	// Read SOT
	marker, err := p.readMarker()
	if err != nil {
		return nil, err
	}
	if marker != MarkerSOT {
		return nil, fmt.Errorf("expected SOT, got 0x%04X", marker)
	}

	sot, err := p.parseSOT()
	if err != nil {
		return nil, err
	}

	tile := &Tile{
		Index: int(sot.Isot),
		SOT:   sot,
	}

	// Parse tile-part header
	for {
		marker, err := p.peekMarker()
		if err != nil {
			return nil, err
		}

		if marker == MarkerSOD {
			// Start of data - tile header complete
			_, _ = p.readMarker() // consume SOD
			break
		}

		marker, err = p.readMarker()
		if err != nil {
			return nil, err
		}

		switch marker {
		case MarkerCOD:
			cod, err := p.parseCOD()
			if err != nil {
				return nil, err
			}
			tile.COD = cod

		case MarkerQCD:
			qcd, err := p.parseQCD()
			if err != nil {
				return nil, err
			}
			tile.QCD = qcd

		case MarkerCOC:
			coc, err := p.parseCOC()
			if err != nil {
				return nil, err
			}
			if tile.COC == nil {
				tile.COC = make(map[uint16]*COCSegment)
			}
			tile.COC[coc.Component] = coc

		case MarkerQCC:
			qcc, err := p.parseQCC()
			if err != nil {
				return nil, err
			}
			if tile.QCC == nil {
				tile.QCC = make(map[uint16]*QCCSegment)
			}
			tile.QCC[qcc.Component] = qcc

		case MarkerPOC:
			poc, err := p.parsePOC()
			if err != nil {
				return nil, err
			}
			tile.POC = append(tile.POC, *poc)

		case MarkerRGN:
			// Parse tile-part RGN (tile-specific ROI)
			rgn, err := p.parseRGN()
			if err != nil {
				return nil, err
			}
			tile.RGN = append(tile.RGN, rgn)

		case MarkerMCT:
			seg, err := p.parseMCT()
			if err != nil {
				return nil, err
			}
			if cs != nil {
				cs.MCT = append(cs.MCT, *seg)
			}

		case MarkerMCC:
			seg, err := p.parseMCC()
			if err != nil {
				return nil, err
			}
			if cs != nil {
				cs.MCC = append(cs.MCC, *seg)
			}

		case MarkerMCO:
			seg, err := p.parseMCO()
			if err != nil {
				return nil, err
			}
			if cs != nil {
				cs.MCO = append(cs.MCO, *seg)
			}

		default:
			// Skip unknown tile-part header segments
			if err := p.skipSegment(); err != nil {
				return nil, err
			}
		}
	}

	// Read tile data using Psot length when available.
	tile.Data = p.readTileDataWithLength(tileStart, sot.Psot)

	return tile, nil
}

// parseRGN parses the RGN marker segment (ROI)
// Baseline assumption: Csiz <= 256, so Crgn fits in 1 byte.
func (p *Parser) parseRGN() (*RGNSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	if length < 5 {
		return nil, fmt.Errorf("invalid RGN length: %d", length)
	}

	crgn, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	srgn, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	sprgn, err := p.readUint8()
	if err != nil {
		return nil, err
	}

	// Skip remaining bytes if any
	remain := int(length) - 5
	if remain > 0 {
		if _, err := p.read(make([]byte, remain)); err != nil {
			return nil, err
		}
	}

	return &RGNSegment{
		Crgn:  uint16(crgn),
		Srgn:  srgn,
		SPrgn: sprgn,
	}, nil
}

// parseSIZ parses the SIZ marker segment
func (p *Parser) parseSIZ() (*SIZSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	siz := &SIZSegment{}

	if siz.Rsiz, err = p.readUint16(); err != nil {
		return nil, err
	}
	if siz.Xsiz, err = p.readUint32(); err != nil {
		return nil, err
	}
	if siz.Ysiz, err = p.readUint32(); err != nil {
		return nil, err
	}
	if siz.XOsiz, err = p.readUint32(); err != nil {
		return nil, err
	}
	if siz.YOsiz, err = p.readUint32(); err != nil {
		return nil, err
	}
	if siz.XTsiz, err = p.readUint32(); err != nil {
		return nil, err
	}
	if siz.YTsiz, err = p.readUint32(); err != nil {
		return nil, err
	}
	if siz.XTOsiz, err = p.readUint32(); err != nil {
		return nil, err
	}
	if siz.YTOsiz, err = p.readUint32(); err != nil {
		return nil, err
	}
	if siz.Csiz, err = p.readUint16(); err != nil {
		return nil, err
	}

	// Read component sizing information
	siz.Components = make([]ComponentSize, siz.Csiz)
	for i := range siz.Components {
		if siz.Components[i].Ssiz, err = p.readUint8(); err != nil {
			return nil, err
		}
		if siz.Components[i].XRsiz, err = p.readUint8(); err != nil {
			return nil, err
		}
		if siz.Components[i].YRsiz, err = p.readUint8(); err != nil {
			return nil, err
		}
	}

	// Verify length
	expectedLength := 38 + 3*int(siz.Csiz)
	if int(length) != expectedLength {
		return nil, fmt.Errorf("SIZ segment length mismatch: expected %d, got %d", expectedLength, length)
	}

	return siz, nil
}

// parseCOD parses the COD marker segment
func (p *Parser) parseCOD() (*CODSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	cod := &CODSegment{}

	if cod.Scod, err = p.readUint8(); err != nil {
		return nil, err
	}
	if cod.ProgressionOrder, err = p.readUint8(); err != nil {
		return nil, err
	}
	if cod.NumberOfLayers, err = p.readUint16(); err != nil {
		return nil, err
	}
	if cod.MultipleComponentTransform, err = p.readUint8(); err != nil {
		return nil, err
	}
	if cod.NumberOfDecompositionLevels, err = p.readUint8(); err != nil {
		return nil, err
	}
	if cod.CodeBlockWidth, err = p.readUint8(); err != nil {
		return nil, err
	}
	if cod.CodeBlockHeight, err = p.readUint8(); err != nil {
		return nil, err
	}
	if cod.CodeBlockStyle, err = p.readUint8(); err != nil {
		return nil, err
	}
	if cod.Transformation, err = p.readUint8(); err != nil {
		return nil, err
	}

	// Read precinct sizes if Scod bit 0 is set
	if (cod.Scod & 0x01) != 0 {
		numLevels := int(cod.NumberOfDecompositionLevels) + 1
		cod.PrecinctSizes = make([]PrecinctSize, numLevels)
		for i := 0; i < numLevels; i++ {
			ppxppy, err := p.readUint8()
			if err != nil {
				return nil, err
			}
			cod.PrecinctSizes[i].PPx = ppxppy & 0x0F
			cod.PrecinctSizes[i].PPy = ppxppy >> 4
		}
	}

	_ = length // length validation skipped for now

	return cod, nil
}

// parseQCD parses the QCD marker segment
func (p *Parser) parseQCD() (*QCDSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	qcd := &QCDSegment{}

	if qcd.Sqcd, err = p.readUint8(); err != nil {
		return nil, err
	}

	// Read quantization step size values
	dataLength := int(length) - 3 // length includes itself (2) and Sqcd (1)
	qcd.SPqcd = make([]byte, dataLength)
	if _, err := p.read(qcd.SPqcd); err != nil {
		return nil, err
	}

	return qcd, nil
}

// parseCOM parses the COM marker segment
func (p *Parser) parseCOM() (*COMSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	com := &COMSegment{}

	if com.Rcom, err = p.readUint16(); err != nil {
		return nil, err
	}

	dataLength := int(length) - 4 // length includes itself (2) and Rcom (2)
	com.Data = make([]byte, dataLength)
	if _, err := p.read(com.Data); err != nil {
		return nil, err
	}

	return com, nil
}

// parseCOC parses the COC marker segment (per-component coding style
// override). Baseline assumption: Csiz <= 256, so Ccoc fits in 1 byte --
// same simplification parseRGN makes for Crgn.
func (p *Parser) parseCOC() (*COCSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	ccoc, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	coc := &COCSegment{Component: uint16(ccoc)}

	if coc.Scoc, err = p.readUint8(); err != nil {
		return nil, err
	}
	if coc.NumberOfDecompositionLevels, err = p.readUint8(); err != nil {
		return nil, err
	}
	if coc.CodeBlockWidth, err = p.readUint8(); err != nil {
		return nil, err
	}
	if coc.CodeBlockHeight, err = p.readUint8(); err != nil {
		return nil, err
	}
	if coc.CodeBlockStyle, err = p.readUint8(); err != nil {
		return nil, err
	}
	if coc.Transformation, err = p.readUint8(); err != nil {
		return nil, err
	}

	if (coc.Scoc & 0x01) != 0 {
		numLevels := int(coc.NumberOfDecompositionLevels) + 1
		coc.PrecinctSizes = make([]PrecinctSize, numLevels)
		for i := 0; i < numLevels; i++ {
			ppxppy, err := p.readUint8()
			if err != nil {
				return nil, err
			}
			coc.PrecinctSizes[i].PPx = ppxppy & 0x0F
			coc.PrecinctSizes[i].PPy = ppxppy >> 4
		}
	}

	_ = length
	return coc, nil
}

// parseQCC parses the QCC marker segment (per-component quantization
// override). Same Csiz<=256 assumption as parseCOC.
func (p *Parser) parseQCC() (*QCCSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	cqcc, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	qcc := &QCCSegment{Component: uint16(cqcc)}

	if qcc.Sqcc, err = p.readUint8(); err != nil {
		return nil, err
	}

	dataLength := int(length) - 4 // length + Cqcc(1) + Sqcc(1)
	qcc.SPqcc = make([]byte, dataLength)
	if _, err := p.read(qcc.SPqcc); err != nil {
		return nil, err
	}

	return qcc, nil
}

// parsePOC parses the POC marker segment (progression order change).
// Same Csiz<=256 assumption: component fields are 1 byte.
func (p *Parser) parsePOC() (*POCSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	const entrySize = 7 // RSpoc(1) CSpoc(1) LYEpoc(2) REpoc(1) CEpoc(1) Ppoc(1)
	numEntries := (int(length) - 2) / entrySize
	poc := &POCSegment{Entries: make([]POCEntry, numEntries)}

	for i := range poc.Entries {
		e := &poc.Entries[i]
		if e.RSpoc, err = p.readUint8(); err != nil {
			return nil, err
		}
		cspoc, err := p.readUint8()
		if err != nil {
			return nil, err
		}
		e.CSpoc = uint16(cspoc)
		if e.LYEpoc, err = p.readUint16(); err != nil {
			return nil, err
		}
		if e.REpoc, err = p.readUint8(); err != nil {
			return nil, err
		}
		cepoc, err := p.readUint8()
		if err != nil {
			return nil, err
		}
		e.CEpoc = uint16(cepoc)
		if e.Ppoc, err = p.readUint8(); err != nil {
			return nil, err
		}
	}

	return poc, nil
}

// parseTLM parses the TLM marker segment (tile-part lengths, main header
// only). ST and SP size fields select the width of Ttlm/Ptlm; ST=0 means a
// single tile-part per tile and no Ttlm field is present, in which case
// entries are reported in stream order with Tile left at its zero value.
func (p *Parser) parseTLM() (*TLMSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	tlm := &TLMSegment{}
	if tlm.Ztlm, err = p.readUint8(); err != nil {
		return nil, err
	}
	stlm, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	st := int((stlm >> 4) & 0x3) // size of Ttlm field: 0, 1, or 2 bytes
	sp := int((stlm >> 6) & 0x1) // size of Ptlm field: 0 => 2 bytes, 1 => 4 bytes
	ptlmSize := 2
	if sp == 1 {
		ptlmSize = 4
	}

	remaining := int(length) - 4 // length(2) + Ztlm(1) + Stlm(1)
	entrySize := st + ptlmSize
	if entrySize <= 0 {
		return tlm, nil
	}
	numEntries := remaining / entrySize
	tlm.Entries = make([]TLMEntry, numEntries)
	for i := range tlm.Entries {
		switch st {
		case 1:
			v, err := p.readUint8()
			if err != nil {
				return nil, err
			}
			tlm.Entries[i].Tile = uint16(v)
		case 2:
			v, err := p.readUint16()
			if err != nil {
				return nil, err
			}
			tlm.Entries[i].Tile = v
		}
		if ptlmSize == 2 {
			v, err := p.readUint16()
			if err != nil {
				return nil, err
			}
			tlm.Entries[i].Length = uint32(v)
		} else {
			v, err := p.readUint32()
			if err != nil {
				return nil, err
			}
			tlm.Entries[i].Length = v
		}
	}

	return tlm, nil
}

// parseCBD parses the CBD marker segment (Part 2 component bit depth).
func (p *Parser) parseCBD() (*CBDSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	ncbd, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	numComponents := int(ncbd & 0x7FFF)
	cbd := &CBDSegment{Components: make([]CBDComponent, numComponents)}
	for i := range cbd.Components {
		v, err := p.readUint8()
		if err != nil {
			return nil, err
		}
		cbd.Components[i].Signed = (v & 0x80) != 0
		cbd.Components[i].BitDepth = int(v&0x7F) + 1
	}

	_ = length
	return cbd, nil
}

// parsePLM parses the PLM marker segment, storing its payload unparsed.
func (p *Parser) parsePLM() (*PLMSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	zplm, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	data := make([]byte, int(length)-3)
	if _, err := p.read(data); err != nil {
		return nil, err
	}
	return &PLMSegment{Zplm: zplm, Data: data}, nil
}

// parsePPM parses the PPM marker segment, storing its payload unparsed.
func (p *Parser) parsePPM() (*PPMSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	zppm, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	data := make([]byte, int(length)-3)
	if _, err := p.read(data); err != nil {
		return nil, err
	}
	return &PPMSegment{Zppm: zppm, Data: data}, nil
}

// parseCRG parses the CRG marker segment, storing its payload unparsed.
func (p *Parser) parseCRG() (*CRGSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	data := make([]byte, int(length)-2)
	if _, err := p.read(data); err != nil {
		return nil, err
	}
	return &CRGSegment{Data: data}, nil
}

func (p *Parser) parseMCT() (*MCTSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	payloadLen := int(length) - 2
	if payloadLen < 6 {
		return nil, fmt.Errorf("invalid MCT length")
	}
	zmct, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	if zmct != 0 {
		return nil, fmt.Errorf("unsupported Zmct=%d", zmct)
	}
	imct, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	ymct, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	if ymct != 0 {
		return nil, fmt.Errorf("unsupported Ymct=%d", ymct)
	}
	idx := uint8(imct & 0xFF)
	at := uint8((imct >> 8) & 0x3)
	et := uint8((imct >> 10) & 0x3)
	dataLen := payloadLen - 6
	buf := make([]byte, dataLen)
	if _, err := p.read(buf); err != nil {
		return nil, err
	}
	return &MCTSegment{Index: idx, ElementType: MCTElementType(et), ArrayType: MCTArrayType(at), Data: buf}, nil
}

func (p *Parser) parseMCC() (*MCCSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	payloadLen := int(length) - 2
	if payloadLen < 7 {
		return nil, fmt.Errorf("invalid MCC length")
	}
	zmcc, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	if zmcc != 0 {
		return nil, fmt.Errorf("unsupported Zmcc=%d", zmcc)
	}
	idx, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	ymcc, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	if ymcc != 0 {
		return nil, fmt.Errorf("unsupported Ymcc=%d", ymcc)
	}
	qmcc, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	if qmcc == 0 {
		return nil, fmt.Errorf("invalid MCC collections")
	}

	collectionType, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	nmcci, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	compBytes := 1
	if (nmcci & 0x8000) != 0 {
		compBytes = 2
	}
	numComps := nmcci & 0x7FFF
	comps := make([]uint16, numComps)
	for i := 0; i < int(numComps); i++ {
		var v uint16
		if compBytes == 1 {
			b, err := p.readUint8()
			if err != nil {
				return nil, err
			}
			v = uint16(b)
		} else {
			v, err = p.readUint16()
			if err != nil {
				return nil, err
			}
		}
		comps[i] = v
	}

	mmcci, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	outCompBytes := 1
	if (mmcci & 0x8000) != 0 {
		outCompBytes = 2
	}
	outCompsCount := mmcci & 0x7FFF
	outComps := make([]uint16, outCompsCount)
	for i := 0; i < int(outCompsCount); i++ {
		var v uint16
		if outCompBytes == 1 {
			b, err := p.readUint8()
			if err != nil {
				return nil, err
			}
			v = uint16(b)
		} else {
			v, err = p.readUint16()
			if err != nil {
				return nil, err
			}
		}
		outComps[i] = v
	}

	b0, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	b1, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	b2, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	tmcc := (uint32(b0) << 16) | (uint32(b1) << 8) | uint32(b2)
	reversible := ((tmcc >> 16) & 0x1) != 0
	decoIdx := uint8(tmcc & 0xFF)
	offIdx := uint8((tmcc >> 8) & 0xFF)

	consumed := 2 + 1 + 2 + 2 + 1 + 2 + (compBytes * int(numComps)) + 2 + (outCompBytes * int(outCompsCount)) + 3
	remain := payloadLen - consumed
	if remain > 0 {
		buf := make([]byte, remain)
		if _, err := p.read(buf); err != nil {
			return nil, err
		}
	}

	return &MCCSegment{
		Index:              idx,
		CollectionType:     collectionType,
		NumComponents:      numComps,
		ComponentIDs:       comps,
		OutputComponentIDs: outComps,
		DecorrelateIndex:   decoIdx,
		OffsetIndex:        offIdx,
		Reversible:         reversible,
	}, nil
}

func (p *Parser) parseMCO() (*MCOSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	payloadLen := int(length) - 2
	if payloadLen < 1 {
		return nil, fmt.Errorf("invalid MCO length")
	}
	numStages, err := p.readUint8()
	if err != nil {
		return nil, err
	}
	stageCount := int(numStages)
	stages := make([]uint8, 0, stageCount)
	for i := 0; i < stageCount; i++ {
		v, err := p.readUint8()
		if err != nil {
			return nil, err
		}
		stages = append(stages, v)
	}
	remain := payloadLen - (1 + stageCount)
	if remain > 0 {
		buf := make([]byte, remain)
		if _, err := p.read(buf); err != nil {
			return nil, err
		}
	}
	return &MCOSegment{NumStages: numStages, StageIndices: stages}, nil
}

// parseSOT parses the SOT marker segment
func (p *Parser) parseSOT() (*SOTSegment, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}

	if length != 10 {
		return nil, fmt.Errorf("invalid SOT segment length: %d", length)
	}

	sot := &SOTSegment{}

	if sot.Isot, err = p.readUint16(); err != nil {
		return nil, err
	}
	if sot.Psot, err = p.readUint32(); err != nil {
		return nil, err
	}
	if sot.TPsot, err = p.readUint8(); err != nil {
		return nil, err
	}
	if sot.TNsot, err = p.readUint8(); err != nil {
		return nil, err
	}

	return sot, nil
}

// Helper methods for reading data

func (p *Parser) readMarker() (uint16, error) {
	return p.readUint16()
}

func (p *Parser) peekMarker() (uint16, error) {
	if p.offset+2 > len(p.data) {
		return 0, io.EOF
	}
	marker := binary.BigEndian.Uint16(p.data[p.offset : p.offset+2])
	return marker, nil
}

func (p *Parser) readUint8() (uint8, error) {
	if p.offset+1 > len(p.data) {
		return 0, io.EOF
	}
	val := p.data[p.offset]
	p.offset++
	return val, nil
}

func (p *Parser) readUint16() (uint16, error) {
	if p.offset+2 > len(p.data) {
		return 0, io.EOF
	}
	val := binary.BigEndian.Uint16(p.data[p.offset : p.offset+2])
	p.offset += 2
	return val, nil
}

func (p *Parser) readUint32() (uint32, error) {
	if p.offset+4 > len(p.data) {
		return 0, io.EOF
	}
	val := binary.BigEndian.Uint32(p.data[p.offset : p.offset+4])
	p.offset += 4
	return val, nil
}

func (p *Parser) read(buf []byte) (int, error) {
	if p.offset+len(buf) > len(p.data) {
		return 0, io.EOF
	}
	n := copy(buf, p.data[p.offset:p.offset+len(buf)])
	p.offset += n
	return n, nil
}

func (p *Parser) skipSegment() error {
	length, err := p.readUint16()
	if err != nil {
		return err
	}
	// length includes the 2 bytes for length itself
	skip := int(length) - 2
	if p.offset+skip > len(p.data) {
		return io.EOF
	}
	p.offset += skip
	return nil
}

func (p *Parser) readTileData() []byte {
	start := p.offset

	// Read until we hit a marker (0xFF followed by non-0xFF)
	for p.offset < len(p.data) {
		if p.data[p.offset] == 0xFF && p.offset+1 < len(p.data) {
			next := p.data[p.offset+1]
			// Check if this is a valid marker (not 0xFF00)
			if next != 0x00 && next >= 0x4F {
				// This is a marker, stop here
				break
			}
		}
		p.offset++
	}

	return p.data[start:p.offset]
}

func (p *Parser) readTileDataWithLength(tileStart int, psot uint32) []byte {
	if psot == 0 {
		return p.readTileData()
	}
	remaining := int(psot) - (p.offset - tileStart)
	if remaining <= 0 {
		return []byte{}
	}
	if p.offset+remaining > len(p.data) {
		remaining = len(p.data) - p.offset
	}
	start := p.offset
	p.offset += remaining
	return p.data[start:p.offset]
}
