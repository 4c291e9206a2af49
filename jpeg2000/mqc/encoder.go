package mqc

// MQEncoder is the MQ arithmetic encoder counterpart to MQDecoder
// (ISO/IEC 15444-1 Annex C). It writes into an internally managed byte
// buffer that grows on demand, since a code-block's coded length isn't
// known until encoding finishes.
type MQEncoder struct {
	buffer []byte // index 0 is a dummy byte; real output starts at start
	start  int
	bp     int

	a  uint32 // probability interval
	c  uint32 // code register
	ct int    // bit counter

	contexts []uint8
}

const bypassCtInit = 0xDEADBEEF

// NewMQEncoder builds an encoder with numContexts contexts, all in state 0.
func NewMQEncoder(numContexts int) *MQEncoder {
	return &MQEncoder{
		buffer:   make([]byte, 1, 1024),
		start:    1,
		a:        0x8000,
		ct:       12,
		contexts: make([]uint8, numContexts),
	}
}

// Encode codes bit against contextID, updating that context's probability
// state (C.3.2's ENCODE procedure).
func (mqe *MQEncoder) Encode(bit int, contextID int) {
	cx := &mqe.contexts[contextID]
	state := int(*cx & 0x7F)
	mps := int(*cx >> 7)
	qe := qeTable[state]

	if bit == mps {
		mqe.encodeMPS(cx, state, mps, qe)
		return
	}
	mqe.encodeLPS(cx, state, mps, qe)
}

func (mqe *MQEncoder) encodeMPS(cx *uint8, state, mps int, qe uint32) {
	mqe.a -= qe
	if (mqe.a & 0x8000) == 0 {
		if mqe.a < qe {
			mqe.a = qe
		} else {
			mqe.c += qe
		}
		*cx = nmpsTable[state] | (uint8(mps) << 7)
		mqe.renorme()
	} else {
		mqe.c += qe
	}
}

func (mqe *MQEncoder) encodeLPS(cx *uint8, state, mps int, qe uint32) {
	mqe.a -= qe
	if mqe.a < qe {
		mqe.c += qe
	} else {
		mqe.a = qe
	}
	newMPS := mps
	if switchTable[state] == 1 {
		newMPS = 1 - mps
	}
	*cx = nlpsTable[state] | (uint8(newMPS) << 7)
	mqe.renorme()
}

// renorme doubles the probability interval until it's back above 0x8000,
// flushing a byte via byteout whenever the bit counter empties.
func (mqe *MQEncoder) renorme() {
	for mqe.a < 0x8000 {
		mqe.a <<= 1
		mqe.c <<= 1
		mqe.ct--
		if mqe.ct == 0 {
			mqe.byteout()
		}
	}
}

// byteout implements C.3.4's BYTEOUT procedure: the same 0xFF stuffing
// rule as the decoder's bytein, mirrored for output instead of input.
func (mqe *MQEncoder) byteout() {
	if mqe.bp >= len(mqe.buffer) {
		mqe.ensureIndex(mqe.bp)
	}

	if mqe.buffer[mqe.bp] == 0xFF {
		mqe.emit(20, 0xFFFFF, 7)
		return
	}
	if (mqe.c & 0x8000000) == 0 {
		mqe.emit(19, 0x7FFFF, 8)
		return
	}

	mqe.buffer[mqe.bp]++
	if mqe.buffer[mqe.bp] == 0xFF {
		mqe.c &= 0x7FFFFFF
		mqe.emit(20, 0xFFFFF, 7)
		return
	}
	mqe.emit(19, 0x7FFFF, 8)
}

// emit advances bp, writes the byte c>>shift, masks c down to mask, and
// sets the bit counter to ct -- the shared tail of every byteout branch.
func (mqe *MQEncoder) emit(shift uint, mask uint32, ct int) {
	mqe.bp++
	mqe.ensureIndex(mqe.bp)
	mqe.buffer[mqe.bp] = byte(mqe.c >> shift)
	mqe.c &= mask
	mqe.ct = ct
}

// flushBits runs C.3.5's FLUSH (setbits + two byteout calls), shared by
// Flush and FlushToOutput which differ only in whether the caller wants
// the resulting buffer sliced off immediately.
func (mqe *MQEncoder) flushBits() {
	tempC := mqe.c + mqe.a
	mqe.c |= 0xFFFF
	if mqe.c >= tempC {
		mqe.c -= 0x8000
	}
	mqe.c <<= uint(mqe.ct)
	mqe.byteout()
	mqe.c <<= uint(mqe.ct)
	mqe.byteout()
	if mqe.buffer[mqe.bp] != 0xFF {
		mqe.bp++
	}
}

// Flush finalizes encoding and returns the coded bytes.
func (mqe *MQEncoder) Flush() []byte {
	mqe.flushBits()
	return mqe.GetBuffer()
}

// GetBuffer returns the bytes written so far, for layered encoding where
// a pass's coded length is read before the code-block is fully flushed.
func (mqe *MQEncoder) GetBuffer() []byte {
	if mqe.bp < mqe.start {
		return []byte{}
	}
	return mqe.buffer[mqe.start:mqe.bp]
}

// NumBytes returns the byte count written so far, for rate-distortion
// bookkeeping across multi-layer encoding.
func (mqe *MQEncoder) NumBytes() int {
	if mqe.bp < mqe.start {
		return 0
	}
	return mqe.bp - mqe.start
}

// FlushToOutput runs FLUSH without slicing the result off, for pass
// termination mid-stream in multi-layer encoding.
func (mqe *MQEncoder) FlushToOutput() {
	mqe.flushBits()
}

// ErtermEnc performs a predictable-termination (PTERM) flush.
func (mqe *MQEncoder) ErtermEnc() {
	k := 11 - mqe.ct + 1
	for k > 0 {
		mqe.c <<= uint(mqe.ct)
		mqe.ct = 0
		mqe.byteout()
		k -= mqe.ct
	}
	if mqe.buffer[mqe.bp] != 0xFF {
		mqe.byteout()
	}
}

// BypassInitEnc starts RAW (bypass) encoding.
func (mqe *MQEncoder) BypassInitEnc() {
	mqe.c = 0
	mqe.ct = bypassCtInit
}

// BypassEncode writes a single raw (uncoded) bit.
func (mqe *MQEncoder) BypassEncode(bit int) {
	if mqe.ct == bypassCtInit {
		mqe.ct = 8
	}
	mqe.ct--
	mqe.c += uint32(bit) << uint(mqe.ct)
	if mqe.ct == 0 {
		if mqe.bp >= len(mqe.buffer) {
			mqe.ensureIndex(mqe.bp)
		}
		mqe.buffer[mqe.bp] = byte(mqe.c)
		mqe.ct = 8
		if mqe.buffer[mqe.bp] == 0xFF {
			mqe.ct = 7
		}
		mqe.bp++
		mqe.c = 0
	}
}

// BypassExtraBytes reports how many extra bytes a non-terminating RAW
// pass needs reserved for its eventual flush.
func (mqe *MQEncoder) BypassExtraBytes(erterm bool) int {
	if mqe.ct < 7 {
		return 1
	}
	if mqe.ct == 7 && (erterm || (mqe.bp > 0 && mqe.buffer[mqe.bp-1] != 0xFF)) {
		return 1
	}
	return 0
}

// BypassFlushEnc flushes RAW (bypass) encoding, with erterm selecting
// between the plain and ERTERM-compatible tail.
func (mqe *MQEncoder) BypassFlushEnc(erterm bool) {
	switch {
	case mqe.ct < 7 || (mqe.ct == 7 && (erterm || (mqe.bp > 0 && mqe.buffer[mqe.bp-1] != 0xFF))):
		bitValue := 0
		for mqe.ct > 0 {
			mqe.ct--
			mqe.c += uint32(bitValue) << uint(mqe.ct)
			bitValue = 1 - bitValue
		}
		if mqe.bp >= len(mqe.buffer) {
			mqe.ensureIndex(mqe.bp)
		}
		mqe.buffer[mqe.bp] = byte(mqe.c)
		mqe.bp++
	case mqe.ct == 7 && mqe.bp > 0 && mqe.buffer[mqe.bp-1] == 0xFF:
		if !erterm {
			mqe.bp--
		}
	case mqe.ct == 8 && !erterm && mqe.bp > 1 && mqe.buffer[mqe.bp-1] == 0x7F && mqe.buffer[mqe.bp-2] == 0xFF:
		mqe.bp -= 2
	}
}

// Reset clears the encoder back to its post-construction state, keeping
// the context array allocated but not resetting its contents.
func (mqe *MQEncoder) Reset() {
	mqe.buffer = make([]byte, 1, 1024)
	mqe.start = 1
	mqe.bp = 0
	mqe.a = 0x8000
	mqe.c = 0
	mqe.ct = 12
}

// SegmarkEnc emits the four-bit SEGSYM marker.
func (mqe *MQEncoder) SegmarkEnc() {
	for i := 1; i < 5; i++ {
		mqe.Encode(i%2, 18)
	}
}

// ResetContext resets a single context to state 0.
func (mqe *MQEncoder) ResetContext(contextID int) {
	mqe.contexts[contextID] = 0
}

// ResetContexts resets every context to state 0.
func (mqe *MQEncoder) ResetContexts() {
	for i := range mqe.contexts {
		mqe.contexts[i] = 0
	}
}

// GetContextState returns contextID's raw state byte.
func (mqe *MQEncoder) GetContextState(contextID int) uint8 {
	return mqe.contexts[contextID]
}

// SetContextState overwrites contextID's raw state byte.
func (mqe *MQEncoder) SetContextState(contextID int, state uint8) {
	mqe.contexts[contextID] = state
}

// RestartInitEnc reinitializes register state after a terminated pass.
func (mqe *MQEncoder) RestartInitEnc() {
	mqe.a = 0x8000
	mqe.c = 0
	mqe.ct = 12
	if mqe.bp > mqe.start-1 {
		mqe.bp--
	}
	if mqe.bp >= 0 && mqe.bp < len(mqe.buffer) && mqe.buffer[mqe.bp] == 0xFF {
		mqe.ct = 13
	}
}

func (mqe *MQEncoder) ensureIndex(idx int) {
	if idx < len(mqe.buffer) {
		return
	}
	needed := idx + 1
	if needed <= cap(mqe.buffer) {
		mqe.buffer = mqe.buffer[:needed]
		return
	}
	newCap := cap(mqe.buffer) * 2
	if newCap < needed {
		newCap = needed
	}
	newBuf := make([]byte, needed, newCap)
	copy(newBuf, mqe.buffer)
	mqe.buffer = newBuf
}
