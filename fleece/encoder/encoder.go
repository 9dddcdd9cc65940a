package encoder

import (
	"encoding/binary"
	"math"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
	"github.com/d122y/fleecekit/internal/format"
	"github.com/d122y/fleecekit/internal/writer"
)

const (
	// maxReachBytes is the farthest a single pointer cell can reach.
	maxReachBytes = format.MaxPointerWords * format.CellAlign

	// reachMargin is slack subtracted from maxReachBytes wherever a
	// reference's final slot position is still an estimate.
	reachMargin = 4096

	// relayThreshold is how far the write frontier may drift from a live
	// target's latest reference before a relay pointer cell is planted.
	relayThreshold = maxReachBytes - 8192
)

// ref tracks one out-of-line cell that a future slot will point at.
// lastRef is the most recent cell in the buffer that leads to the target
// (the target itself, a relay, or an already-emitted slot); chains of
// pointers are legal and strictly backwards.
type ref struct {
	target  int // virtual offset of the cell
	lastRef int // virtual offset of the nearest cell leading to it
	pinned  int // open-container slots still waiting to reference it
	leaf    bool
	live    bool // registered with the relay FIFO
}

// liveRef is one relay-FIFO entry; at snapshots lastRef at enqueue time
// so the queue stays ordered even when a slot or dedup hit refreshes the
// ref out of turn.
type liveRef struct {
	r  *ref
	at int
}

// slot is one pending child of an open container: a complete 2-byte
// inline cell, or a reference to an out-of-line cell.
type slot struct {
	inline [2]byte
	ref    *ref // nil when inline

	// Key ordering metadata, set on dict key slots only.
	keyIsInt bool
	keyInt   int64
	keyStr   string
}

// container is one open array or dict on the encoder's stack.
type container struct {
	kind     format.Kind
	items    []slot
	wantKey  bool // dicts: next write must be WriteKey
	isDict   bool
	topLevel bool
}

// Encoder builds one Fleece document. Errors are sticky: after the first
// failure every write is a no-op and ExtractOutput reports the latched
// error. Not safe for concurrent use.
type Encoder struct {
	opts Options
	out  *writer.Writer
	sk   *sharedkeys.SharedKeys

	stack []container

	// interned maps kind-prefixed content to the *ref of its cell.
	interned map[string]*ref

	// live is the relay FIFO: refs whose slots are still pending, kept
	// reachable from the frontier by planting relay cells.
	live []liveRef

	// base is the delta base: output pointers may reach into it, and all
	// virtual offsets are biased by its length.
	base []byte

	err error
}

// New returns an encoder with the given options.
func New(opts Options) *Encoder {
	e := &Encoder{
		opts: opts,
		out:  writer.NewWriter(opts.ReserveSize),
	}
	e.reset()
	return e
}

// NewDefault returns an encoder with DefaultOptions.
func NewDefault() *Encoder {
	return New(DefaultOptions())
}

func (e *Encoder) reset() {
	e.stack = e.stack[:0]
	e.stack = append(e.stack, container{topLevel: true})
	e.interned = make(map[string]*ref)
	e.live = e.live[:0]
	e.err = nil
}

// Reset clears the encoder for reuse, keeping its allocations. The delta
// base, if any, is retained; shared keys stay attached.
func (e *Encoder) Reset() {
	e.out.Reset()
	e.reset()
}

// SetSharedKeys attaches a shared-keys table consulted by WriteKey.
func (e *Encoder) SetSharedKeys(sk *sharedkeys.SharedKeys) {
	e.sk = sk
}

// SharedKeys returns the attached table, or nil.
func (e *Encoder) SharedKeys() *sharedkeys.SharedKeys { return e.sk }

// Error returns the latched error, or nil.
func (e *Encoder) Error() error { return e.err }

// fail latches the first error.
func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// pos is the current virtual write position: delta bases logically
// precede the output, so all offsets are biased by the base length.
func (e *Encoder) pos() int {
	return len(e.base) + e.out.Len()
}

func (e *Encoder) top() *container {
	return &e.stack[len(e.stack)-1]
}

// addSlot appends a pending child to the open container, enforcing the
// write grammar.
func (e *Encoder) addSlot(s slot) {
	t := e.top()
	if t.topLevel && len(t.items) > 0 {
		e.fail(fleece.NewError(fleece.EncodeError, "more than one top-level value"))
		return
	}
	t.items = append(t.items, s)
	if s.ref != nil {
		s.ref.pinned++
	}
}

// writeInline queues a complete 2-byte cell as a slot.
func (e *Encoder) writeInline(b0, b1 byte) {
	if e.err != nil {
		return
	}
	if !e.checkValueAllowed() {
		return
	}
	e.addSlot(slot{inline: [2]byte{b0, b1}})
}

// checkValueAllowed enforces that a dict gets a key before each value.
func (e *Encoder) checkValueAllowed() bool {
	t := e.top()
	if t.isDict && t.wantKey {
		e.fail(fleece.NewError(fleece.EncodeError, "dict value written without a key"))
		return false
	}
	if t.isDict {
		t.wantKey = true
	}
	return true
}

// writeCell appends an out-of-line cell and returns its ref. The write
// frontier is always 2-byte aligned because every cell is padded.
func (e *Encoder) writeCell(cell []byte) *ref {
	start := e.pos()
	e.out.Write(cell)
	if format.Padding(len(cell)) != 0 {
		e.out.WriteByte(0)
	}
	r := &ref{target: start, lastRef: start}
	e.maintainRelays()
	return r
}

// maintainRelays keeps every live target's latest reference within
// pointer range of the frontier by planting 2-byte relay cells. Relays
// are ordinary pointer cells; readers dereference through them.
func (e *Encoder) maintainRelays() {
	for len(e.live) > 0 {
		head := e.live[0]
		if head.r.pinned == 0 {
			head.r.live = false
			e.live = e.live[1:]
			continue
		}
		if head.r.lastRef != head.at {
			// Refreshed out of turn by a slot or dedup hit; re-queue with
			// the newer position.
			e.live = append(e.live[1:], liveRef{head.r, head.r.lastRef})
			continue
		}
		if e.pos()-head.at <= relayThreshold {
			break
		}
		relayAt := e.pos()
		e.out.WriteUint16BE(format.PointerCell(relayAt + format.SlotSize - head.at))
		head.r.lastRef = relayAt
		e.live = append(e.live[1:], liveRef{head.r, relayAt})
	}
}

// trackLive registers a ref with the relay FIFO.
func (e *Encoder) trackLive(r *ref) {
	if r.live {
		return
	}
	r.live = true
	e.live = append(e.live, liveRef{r, r.lastRef})
}

// WriteNull writes a JSON null.
func (e *Encoder) WriteNull() {
	e.writeInline(byte(format.KindSpecial)<<4|format.SpecialNull, 0)
}

// WriteUndefined writes the undefined special value.
func (e *Encoder) WriteUndefined() {
	e.writeInline(byte(format.KindSpecial)<<4|format.SpecialUndefined, 0)
}

// WriteBool writes true or false.
func (e *Encoder) WriteBool(b bool) {
	nib := byte(format.SpecialFalse)
	if b {
		nib = format.SpecialTrue
	}
	e.writeInline(byte(format.KindSpecial)<<4|nib, 0)
}

// WriteInt writes a signed integer in its minimal width.
func (e *Encoder) WriteInt(i int64) {
	if e.err != nil {
		return
	}
	if i >= format.ShortIntMin && i <= format.ShortIntMax {
		e.writeInline(byte(format.KindShortInt)<<4|byte(i)&0x0F, 0)
		return
	}
	if i >= math.MinInt8 && i <= math.MaxInt8 {
		e.writeInline(byte(format.KindInt)<<4|format.IntSignedBit, byte(i))
		return
	}
	if !e.checkValueAllowed() {
		return
	}
	cell := appendIntCell(nil, uint64(i), true, signedIntWidth(i))
	e.addRefSlot(e.writeCell(cell), true)
}

// WriteUInt writes an unsigned integer in its minimal width.
func (e *Encoder) WriteUInt(u uint64) {
	if e.err != nil {
		return
	}
	if u <= format.ShortIntMax {
		e.writeInline(byte(format.KindShortInt)<<4|byte(u), 0)
		return
	}
	if u <= math.MaxUint8 {
		e.writeInline(byte(format.KindInt)<<4, byte(u))
		return
	}
	if !e.checkValueAllowed() {
		return
	}
	cell := appendIntCell(nil, u, false, unsignedIntWidth(u))
	e.addRefSlot(e.writeCell(cell), true)
}

// WriteFloat writes a 32-bit float.
func (e *Encoder) WriteFloat(f float32) {
	if e.err != nil || !e.checkValueAllowed() {
		return
	}
	var cell [6]byte
	cell[0] = byte(format.KindFloat)<<4 | format.FloatNibble32
	binary.BigEndian.PutUint32(cell[2:], math.Float32bits(f))
	e.addRefSlot(e.writeCell(cell[:]), true)
}

// WriteDouble writes a 64-bit float, narrowing losslessly to 32 bits
// when the value survives the round trip. NaN stays 64-bit so its bit
// pattern is preserved.
func (e *Encoder) WriteDouble(d float64) {
	if float64(float32(d)) == d {
		e.WriteFloat(float32(d))
		return
	}
	if e.err != nil || !e.checkValueAllowed() {
		return
	}
	var cell [10]byte
	cell[0] = byte(format.KindFloat)<<4 | format.FloatNibble64
	binary.BigEndian.PutUint64(cell[2:], math.Float64bits(d))
	e.addRefSlot(e.writeCell(cell[:]), true)
}

// WriteString writes a UTF-8 string, interning it when UniqueStrings is
// set.
func (e *Encoder) WriteString(s string) {
	e.writeStringish(format.KindString, s)
}

// WriteData writes a binary blob. Blobs intern separately from strings;
// identical bytes of different kinds never alias.
func (e *Encoder) WriteData(b []byte) {
	e.writeStringish(format.KindBlob, string(b))
}

func (e *Encoder) writeStringish(kind format.Kind, s string) {
	if e.err != nil {
		return
	}
	switch len(s) {
	case 0:
		e.writeInline(byte(kind)<<4, 0)
		return
	case 1:
		e.writeInline(byte(kind)<<4|1, s[0])
		return
	}
	if !e.checkValueAllowed() {
		return
	}
	e.addRefSlot(e.internedCell(kind, s), true)
}

// internedCell returns the ref for a string/blob cell, writing it only on
// the first occurrence (when interning is enabled). A cached cell that
// has drifted beyond pointer reach of the frontier is re-emitted fresh;
// the intern table then tracks the newest copy.
func (e *Encoder) internedCell(kind format.Kind, s string) *ref {
	var key string
	if e.opts.UniqueStrings {
		key = string([]byte{byte(kind)}) + s
		if r, ok := e.interned[key]; ok {
			if e.pos()-r.lastRef <= maxReachBytes-reachMargin {
				return r
			}
		}
	}
	r := e.writeCell(appendStringishCell(nil, kind, s))
	r.leaf = true
	if e.opts.UniqueStrings {
		e.interned[key] = r
	}
	return r
}

// addRefSlot queues a slot pointing at r. track registers it with the
// relay FIFO so the target stays reachable however large the enclosing
// container grows.
func (e *Encoder) addRefSlot(r *ref, track bool) {
	if e.err != nil {
		return
	}
	e.addSlot(slot{ref: r})
	if track {
		e.trackLive(r)
	}
}

// appendIntCell appends a KindInt cell: tag then n big-endian bytes.
func appendIntCell(dst []byte, u uint64, signed bool, n int) []byte {
	tag := byte(format.KindInt)<<4 | byte(n-1)
	if signed {
		tag |= format.IntSignedBit
	}
	dst = append(dst, tag)
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(u>>(8*i)))
	}
	return dst
}

// signedIntWidth returns the minimal byte width representing i in two's
// complement.
func signedIntWidth(i int64) int {
	for n := 1; n < 8; n++ {
		shift := uint(64 - 8*n)
		if int64(uint64(i)<<shift)>>shift == i {
			return n
		}
	}
	return 8
}

// unsignedIntWidth returns the minimal byte width representing u.
func unsignedIntWidth(u uint64) int {
	n := 1
	for u > 0xFF {
		u >>= 8
		n++
	}
	return n
}

// appendStringishCell appends a string or blob cell: tag with inline
// length nibble, or the varint-length escape.
func appendStringishCell(dst []byte, kind format.Kind, s string) []byte {
	if len(s) < format.VarLengthNibble {
		dst = append(dst, byte(kind)<<4|byte(len(s)))
	} else {
		dst = append(dst, byte(kind)<<4|format.VarLengthNibble)
		dst = binary.AppendUvarint(dst, uint64(len(s)))
	}
	return append(dst, s...)
}
