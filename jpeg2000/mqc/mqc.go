// Package mqc implements the MQ arithmetic coder used by T1 bit-plane
// coding, per ISO/IEC 15444-1 Annex C. The coder is table-driven and
// multiplication-free: every decode step is a handful of shifts, adds, and
// a lookup into the 47-state probability table below.
package mqc

// MQDecoder decodes a bit stream produced by the MQ arithmetic encoder.
// A single decoder instance fans its Decode calls out across a shared
// context array, one state byte per context, so callers decode an entire
// code-block's worth of passes through one coder with many contexts rather
// than one coder per context.
type MQDecoder struct {
	data    []byte // input plus a 0xFF 0xFF sentinel, see withSentinel
	bp      int    // position of the last byte consumed from data
	dataLen int     // length of the caller-supplied data, sentinel excluded

	a   uint32 // current probability interval
	c   uint32 // code register
	ct  int    // number of valid bits remaining before the next bytein
	eos int    // count of bytein calls that hit the end-of-stream marker

	contexts []uint8 // per-context state: bits 0-6 state index, bit 7 MPS
}

// withSentinel appends the two 0xFF bytes C.3.4 relies on to guarantee
// bytein always has a byte to read, even past the end of real data.
func withSentinel(data []byte) []byte {
	padded := make([]byte, len(data)+2)
	copy(padded, data)
	padded[len(data)] = 0xFF
	padded[len(data)+1] = 0xFF
	return padded
}

// NewMQDecoder builds a decoder over data with numContexts contexts, all
// starting in state 0, and runs the INITDEC procedure (C.3.5).
func NewMQDecoder(data []byte, numContexts int) *MQDecoder {
	d := &MQDecoder{
		data:     withSentinel(data),
		dataLen:  len(data),
		contexts: make([]uint8, numContexts),
	}
	d.init()
	return d
}

// NewRawDecoder builds a decoder for the RAW (bypass) coding mode, which
// reads raw bits through RawDecode instead of the arithmetic Decode path
// and so never touches the context table.
func NewRawDecoder(data []byte) *MQDecoder {
	return &MQDecoder{data: withSentinel(data), dataLen: len(data)}
}

// SetData rebinds the decoder to a new byte range and reruns INITDEC while
// leaving the context array untouched. Lossy TERMALL code-blocks use this
// to carry learned context statistics from one independently-terminated
// pass into the next without losing probability state.
func (mqc *MQDecoder) SetData(data []byte) {
	mqc.data = withSentinel(data)
	mqc.bp = 0
	mqc.dataLen = len(data)
	mqc.eos = 0
	mqc.a, mqc.c, mqc.ct = 0x8000, 0, 0
	mqc.init()
}

// NewMQDecoderWithContexts is SetData's constructor-time counterpart: a
// fresh decoder over data, seeded with a copy of prevContexts rather than
// all-zero state.
func NewMQDecoderWithContexts(data []byte, prevContexts []uint8) *MQDecoder {
	d := &MQDecoder{
		data:     withSentinel(data),
		dataLen:  len(data),
		contexts: make([]uint8, len(prevContexts)),
	}
	copy(d.contexts, prevContexts)
	d.init()
	return d
}

// GetContexts snapshots the current context states, used to hand learned
// probabilities across a TERMALL pass boundary via NewMQDecoderWithContexts.
func (mqc *MQDecoder) GetContexts() []uint8 {
	out := make([]uint8, len(mqc.contexts))
	copy(out, mqc.contexts)
	return out
}

// init runs INITDEC (ISO/IEC 15444-1 C.3.5): prime C from the first data
// byte (or 0xFF if there is none), pull in the next byte, and shift the
// register into its steady-state alignment.
func (mqc *MQDecoder) init() {
	if mqc.dataLen == 0 {
		mqc.c = 0xFF << 16
	} else {
		mqc.c = uint32(mqc.data[0]) << 16
	}
	mqc.bytein()
	mqc.c <<= 7
	mqc.ct -= 7
	mqc.a = 0x8000
}

// RawInit rebinds a RAW-mode decoder to a new byte range, clearing all
// register state (RAW decode never runs INITDEC).
func (mqc *MQDecoder) RawInit(data []byte) {
	mqc.data = withSentinel(data)
	mqc.bp = 0
	mqc.dataLen = len(data)
	mqc.eos = 0
	mqc.a, mqc.c, mqc.ct = 0, 0, 0
}

// Decode returns the next decoded bit for contextID, updating that
// context's probability state (C.3.2). Called once per coded symbol, so
// this is the coder's hot path: table lookups only, no branches on the
// probability value itself.
func (mqc *MQDecoder) Decode(contextID int) int {
	cx := &mqc.contexts[contextID]
	state := int(*cx & 0x7F)
	mps := int(*cx >> 7)
	qe := qeTable[state]

	mqc.a -= qe

	var bit int
	if (mqc.c >> 16) < qe {
		bit, *cx = mqc.lpsExchange(state, mps, qe)
		mqc.renormd()
		return bit
	}

	mqc.c -= qe << 16
	if (mqc.a & 0x8000) != 0 {
		return mps
	}
	bit, *cx = mqc.mpsExchange(state, mps, qe)
	mqc.renormd()
	return bit
}

// lpsExchange runs the C.3.2 decision when the coded value fell in the LPS
// sub-interval, which may still resolve to the MPS symbol if the interval
// conditional flips (the "exchange" in MPS/LPS exchange).
func (mqc *MQDecoder) lpsExchange(state, mps int, qe uint32) (bit int, next uint8) {
	if mqc.a < qe {
		mqc.a = qe
		return mps, nmpsTable[state] | (uint8(mps) << 7)
	}
	mqc.a = qe
	newMPS := mps
	if switchTable[state] == 1 {
		newMPS = 1 - mps
	}
	return 1 - mps, nlpsTable[state] | (uint8(newMPS) << 7)
}

// mpsExchange runs the C.3.2 decision when the coded value fell in the MPS
// sub-interval but the interval still needs renormalizing.
func (mqc *MQDecoder) mpsExchange(state, mps int, qe uint32) (bit int, next uint8) {
	if mqc.a < qe {
		newMPS := mps
		if switchTable[state] == 1 {
			newMPS = 1 - mps
		}
		return 1 - mps, nlpsTable[state] | (uint8(newMPS) << 7)
	}
	return mps, nmpsTable[state] | (uint8(mps) << 7)
}

// renormd doubles the probability interval until it's back above 0x8000,
// pulling in fresh bytes via bytein as the bit counter runs out (C.3.3).
func (mqc *MQDecoder) renormd() {
	for mqc.a < 0x8000 {
		if mqc.ct == 0 {
			mqc.bytein()
		}
		mqc.a <<= 1
		mqc.c <<= 1
		mqc.ct--
	}
}

// bytein pulls the next input byte into c, handling the 0xFF stuffing rule
// that keeps a coded 0xFF byte from ever being followed by a real marker
// byte in the bit stream (C.3.4, "BYTEIN").
//
// bp here tracks the last byte already consumed, so data[bp+1] is always
// the next candidate byte; the sentinel appended in withSentinel
// guarantees that index stays in range even once the real data is
// exhausted.
func (mqc *MQDecoder) bytein() {
	next := mqc.data[mqc.bp+1]
	switch {
	case mqc.data[mqc.bp] != 0xFF:
		mqc.bp++
		mqc.c += uint32(next) << 8
		mqc.ct = 8
	case next > 0x8F:
		mqc.c += 0xFF00
		mqc.ct = 8
		mqc.eos++
	default:
		mqc.bp++
		mqc.c += uint32(next) << 9
		mqc.ct = 7
	}
}

// RawDecode pulls a single raw (uncoded) bit, applying the same 0xFF
// stuffing rule as bytein since RAW segments still share the bit stream's
// marker-escaping convention.
func (mqc *MQDecoder) RawDecode() int {
	if mqc.ct == 0 {
		if mqc.c == 0xFF {
			next := mqc.data[mqc.bp]
			if next > 0x8F {
				mqc.c, mqc.ct = 0xFF, 8
			} else {
				mqc.c, mqc.ct = uint32(next), 7
				mqc.bp++
			}
		} else {
			mqc.c = uint32(mqc.data[mqc.bp])
			mqc.bp++
			mqc.ct = 8
		}
	}
	mqc.ct--
	return int((mqc.c >> uint(mqc.ct)) & 0x01)
}

// ResetContext resets a single context to state 0.
func (mqc *MQDecoder) ResetContext(contextID int) {
	mqc.contexts[contextID] = 0
}

// ResetContexts resets every context to state 0.
func (mqc *MQDecoder) ResetContexts() {
	for i := range mqc.contexts {
		mqc.contexts[i] = 0
	}
}

// ReinitAfterTermination clears the register state after a terminated
// pass without touching bp, so the next pass picks up reading wherever
// the stream left off (used by TERMALL code-blocks, where every pass is
// independently terminated).
func (mqc *MQDecoder) ReinitAfterTermination() {
	mqc.a, mqc.c, mqc.ct = 0x8000, 0, 0
}

// GetContextState returns contextID's raw state byte.
func (mqc *MQDecoder) GetContextState(contextID int) uint8 {
	return mqc.contexts[contextID]
}

// SetContextState overwrites contextID's raw state byte.
func (mqc *MQDecoder) SetContextState(contextID int, state uint8) {
	mqc.contexts[contextID] = state
}

// MQ-coder probability estimation tables, ISO/IEC 15444-1 Table C.2.

var qeTable = [47]uint32{
	0x5601, 0x3401, 0x1801, 0x0AC1, 0x0521, 0x0221, 0x5601, 0x5401,
	0x4801, 0x3801, 0x3001, 0x2401, 0x1C01, 0x1601, 0x5601, 0x5401,
	0x5101, 0x4801, 0x3801, 0x3401, 0x3001, 0x2801, 0x2401, 0x2201,
	0x1C01, 0x1801, 0x1601, 0x1401, 0x1201, 0x1101, 0x0AC1, 0x09C1,
	0x08A1, 0x0521, 0x0441, 0x02A1, 0x0221, 0x0141, 0x0111, 0x0085,
	0x0049, 0x0025, 0x0015, 0x0009, 0x0005, 0x0001, 0x5601,
}

var nmpsTable = [47]uint8{
	1, 2, 3, 4, 5, 38, 7, 8,
	9, 10, 11, 12, 13, 29, 15, 16,
	17, 18, 19, 20, 21, 22, 23, 24,
	25, 26, 27, 28, 29, 30, 31, 32,
	33, 34, 35, 36, 37, 38, 39, 40,
	41, 42, 43, 44, 45, 45, 46,
}

var nlpsTable = [47]uint8{
	1, 6, 9, 12, 29, 33, 6, 14,
	14, 14, 17, 18, 20, 21, 14, 14,
	15, 16, 17, 18, 19, 19, 20, 21,
	22, 23, 24, 25, 26, 27, 28, 29,
	30, 31, 32, 33, 34, 35, 36, 37,
	38, 39, 40, 41, 42, 43, 46,
}

var switchTable = [47]uint8{
	1, 0, 0, 0, 0, 0, 1, 0,
	0, 0, 0, 0, 0, 0, 1, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0,
}

// GetQeTable returns the Qe probability-estimation table, exposed for
// cross-checking against other implementations in tests.
func GetQeTable() [47]uint32 { return qeTable }

// GetNmpsTable returns the NMPS state-transition table.
func GetNmpsTable() [47]uint8 { return nmpsTable }

// GetNlpsTable returns the NLPS state-transition table.
func GetNlpsTable() [47]uint8 { return nlpsTable }

// GetSwitchTable returns the MPS/LPS switch-indicator table.
func GetSwitchTable() [47]uint8 { return switchTable }
