package mqc

// RedZoneBytes is the number of trailing bytes of a coding pass segment
// within which a Checkpoint is eligible to be taken. Modeled on Grok's
// mqcoder_backup: once the decoder is this close to the end of a segment,
// its register state is cheap to snapshot and replaying from the snapshot
// avoids re-running the whole pass when a later layer extends the segment.
// Reference: mqc_backup.h/mqc_backup.cpp (mqcoder_backup).
const RedZoneBytes = 6

// Checkpoint captures the MQ decoder's register state so decoding can
// resume later from exactly this point, without replaying earlier bits.
// It mirrors the cacheable fields of mqcoder_base (c, a, ct, bp) plus a
// copy of the context array, which callers combine with their own
// (pass, layer) bookkeeping and sample-plane snapshot.
type Checkpoint struct {
	bp       int
	dataLen  int
	a        uint32
	c        uint32
	ct       int
	eos      int
	contexts []uint8
}

// InRedZone reports whether the decoder's current byte position is within
// RedZoneBytes of the end of its data (sentinel bytes excluded).
func (mqc *MQDecoder) InRedZone() bool {
	return mqc.dataLen-mqc.bp <= RedZoneBytes
}

// Backup snapshots the decoder's register and context state.
func (mqc *MQDecoder) Backup() Checkpoint {
	ctxs := make([]uint8, len(mqc.contexts))
	copy(ctxs, mqc.contexts)
	return Checkpoint{
		bp:       mqc.bp,
		dataLen:  mqc.dataLen,
		a:        mqc.a,
		c:        mqc.c,
		ct:       mqc.ct,
		eos:      mqc.eos,
		contexts: ctxs,
	}
}

// Restore resets the decoder to a previously captured Checkpoint. The
// caller must supply the same underlying data the checkpoint was taken
// against (or a prefix-extended superset sharing the same bytes up to
// dataLen); Restore does not itself re-slice mqc.data.
func (mqc *MQDecoder) Restore(chk Checkpoint) {
	mqc.bp = chk.bp
	mqc.dataLen = chk.dataLen
	mqc.a = chk.a
	mqc.c = chk.c
	mqc.ct = chk.ct
	mqc.eos = chk.eos
	if cap(mqc.contexts) >= len(chk.contexts) {
		mqc.contexts = mqc.contexts[:len(chk.contexts)]
	} else {
		mqc.contexts = make([]uint8, len(chk.contexts))
	}
	copy(mqc.contexts, chk.contexts)
}

// RebindData swaps in a new (typically longer) data buffer while keeping
// register and context state intact, appending the usual 0xFF 0xFF
// sentinel. Used when a later quality layer extends a code-block segment
// that was previously checkpointed near its tail.
func (mqc *MQDecoder) RebindData(data []byte) {
	mqc.data = withSentinel(data)
	mqc.dataLen = len(data)
}
