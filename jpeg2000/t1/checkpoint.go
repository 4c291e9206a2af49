package t1

import "github.com/jp2lab/j2kcodec/jpeg2000/mqc"

// PassCheckpoint snapshots a code-block's full decode state -- MQ register
// state plus the flag and sample planes -- at a single (layer, pass)
// boundary. It lets a later layer that extends this code-block's segment
// resume decoding from the checkpoint instead of re-running every earlier
// pass from byte zero.
//
// Grounded on Grok's mqcoder_backup, which stores the same combination of
// cacheable MQ registers (via mqcoder_base) and the BlockCoder's flag/sample
// buffers (flagsBackup_, uncompressedBufBackup_) alongside loop position
// (passno_, layer_).
type PassCheckpoint struct {
	Layer int
	Pass  int

	mq    mqc.Checkpoint
	data  []int32
	flags []uint32

	bitplane int
	passType int
}

// Checkpoint returns a snapshot of the decoder's state, suitable for later
// resumption via ResumeFrom. Callers typically call this only when the MQ
// decoder reports InRedZone() for the active pass, matching the original's
// policy of checkpointing close to a segment's tail rather than on every
// pass.
func (t1 *Decoder) Checkpoint(layer, pass int) PassCheckpoint {
	return t1.checkpointAt(pass, 0)
}

// checkpointAt is Checkpoint plus the next pass type to resume at, which
// DecodeIncremental needs but external layer-oriented callers don't.
func (t1 *Decoder) checkpointAt(pass, nextPassType int) PassCheckpoint {
	data := make([]int32, len(t1.data))
	copy(data, t1.data)
	flags := make([]uint32, len(t1.flags))
	copy(flags, t1.flags)
	return PassCheckpoint{
		Pass:     pass,
		mq:       t1.mqc.Backup(),
		data:     data,
		flags:    flags,
		bitplane: t1.bitplane,
		passType: nextPassType,
	}
}

// ResumeFrom restores decoder state from a checkpoint and rebinds the MQ
// decoder to extended segment data (the same bytes the checkpoint was taken
// against, plus any bytes appended by a later layer). Decoding can then
// continue from chk.Pass+1 without replaying passes 0..chk.Pass.
func (t1 *Decoder) ResumeFrom(chk PassCheckpoint, extendedData []byte) {
	copy(t1.data, chk.data)
	copy(t1.flags, chk.flags)
	t1.bitplane = chk.bitplane

	if t1.mqc == nil {
		t1.mqc = mqc.NewMQDecoder(extendedData, NUMCONTEXTS)
	}
	t1.mqc.RebindData(extendedData)
	t1.mqc.Restore(chk.mq)
}

// InRedZone reports whether the decoder's active MQ pass is within the
// checkpoint-eligible trailing window of its segment data.
func (t1 *Decoder) InRedZone() bool {
	return t1.mqc != nil && t1.mqc.InRedZone()
}
