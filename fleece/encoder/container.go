package encoder

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/internal/format"
)

// BeginArray opens an array; reserve hints the expected element count.
func (e *Encoder) BeginArray(reserve int) {
	e.beginContainer(format.KindArray, reserve)
}

// EndArray closes the innermost open array.
func (e *Encoder) EndArray() {
	e.endContainer(format.KindArray)
}

// BeginDict opens a dict; reserve hints the expected entry count.
func (e *Encoder) BeginDict(reserve int) {
	e.beginContainer(format.KindDict, reserve)
}

// EndDict closes the innermost open dict.
func (e *Encoder) EndDict() {
	e.endContainer(format.KindDict)
}

func (e *Encoder) beginContainer(kind format.Kind, reserve int) {
	if e.err != nil {
		return
	}
	if !e.checkValueAllowed() {
		return
	}
	// The container becomes its parent's child only at end; the parent's
	// wantKey was already advanced by checkValueAllowed.
	c := container{kind: kind, isDict: kind == format.KindDict}
	c.wantKey = c.isDict
	if reserve > 0 {
		n := reserve
		if c.isDict {
			n *= 2
		}
		c.items = make([]slot, 0, n)
	}
	e.stack = append(e.stack, c)
}

// WriteKey writes a dictionary key. With a shared-keys table attached,
// eligible keys are admitted to the table and written as integer codes;
// everything else is written as a string.
func (e *Encoder) WriteKey(key string) {
	if e.err != nil {
		return
	}
	t := e.top()
	if !t.isDict {
		e.fail(fleece.NewError(fleece.EncodeError, "key written outside a dict"))
		return
	}
	if !t.wantKey {
		e.fail(fleece.NewError(fleece.EncodeError, "two keys in a row"))
		return
	}
	if e.sk != nil {
		if code, ok := e.sk.Encode(key); ok {
			e.appendIntKeySlot(int64(code))
			t.wantKey = false
			return
		}
	}
	e.appendStringKeySlot(key)
	t.wantKey = false
}

// appendIntKeySlot queues an integer key cell with its sort metadata.
func (e *Encoder) appendIntKeySlot(code int64) {
	t := e.top()
	var s slot
	s.keyIsInt = true
	s.keyInt = code
	switch {
	case code <= format.ShortIntMax:
		s.inline = [2]byte{byte(format.KindShortInt)<<4 | byte(code)&0x0F, 0}
	case code <= 0xFF:
		s.inline = [2]byte{byte(format.KindInt) << 4, byte(code)}
	default:
		r := e.writeCell(appendIntCell(nil, uint64(code), false, unsignedIntWidth(uint64(code))))
		r.leaf = true
		s.ref = r
		e.trackLive(r)
	}
	t.items = append(t.items, s)
	if s.ref != nil {
		s.ref.pinned++
	}
}

// appendStringKeySlot queues a string key cell with its sort metadata.
func (e *Encoder) appendStringKeySlot(key string) {
	t := e.top()
	var s slot
	s.keyStr = key
	switch len(key) {
	case 0:
		s.inline = [2]byte{byte(format.KindString) << 4, 0}
	case 1:
		s.inline = [2]byte{byte(format.KindString)<<4 | 1, key[0]}
	default:
		r := e.internedCell(format.KindString, key)
		s.ref = r
		e.trackLive(r)
	}
	t.items = append(t.items, s)
	if s.ref != nil {
		s.ref.pinned++
	}
}

// endContainer pops the innermost container and emits its cell: fix-up
// spills, header, then the slot region. Emission upholds the loop
// invariant that every slot is either an inline 2-byte cell or a
// backpointer whose chain reaches its target.
func (e *Encoder) endContainer(kind format.Kind) {
	if e.err != nil {
		return
	}
	if len(e.stack) <= 1 {
		e.fail(fleece.NewError(fleece.EncodeError, "container end without begin"))
		return
	}
	t := e.top()
	if t.kind != kind {
		e.fail(fleece.NewError(fleece.EncodeError, "mismatched container end"))
		return
	}
	if t.isDict && !t.wantKey {
		e.fail(fleece.NewError(fleece.EncodeError, "dict key written without a value"))
		return
	}
	c := *t
	e.stack = e.stack[:len(e.stack)-1]

	if c.isDict && e.opts.SortKeys {
		sortDictItems(c.items)
	}

	count := len(c.items)
	if c.isDict {
		count /= 2
	}
	hdr := headerBytes(count)
	slotBytes := len(c.items) * format.SlotSize

	// Keep other live targets' chains fresh before a long slot region
	// separates them from the frontier.
	e.refreshLiveRefs(hdr + slotBytes)

	// Fix-up pass: spill trampolines (or re-emit leaf cells) until every
	// reference fits the pointer range from its eventual slot position.
	e.fixupSpills(c.items, hdr)
	if e.err != nil {
		return
	}

	// Header.
	headerPos := e.pos()
	e.emitHeader(kind, count)

	// Slot region.
	for i := range c.items {
		it := &c.items[i]
		slotPos := e.pos()
		if it.ref == nil {
			e.out.Write(it.inline[:])
			continue
		}
		dist := slotPos + format.SlotSize - it.ref.lastRef
		if dist > maxReachBytes {
			e.fail(fleece.Errorf(fleece.InternalError,
				"slot at %d cannot reach cell at %d", slotPos, it.ref.target))
			return
		}
		e.out.WriteUint16BE(format.PointerCell(dist))
		it.ref.lastRef = slotPos
		it.ref.pinned--
	}

	// The finished container becomes a pending child of its parent.
	r := &ref{target: headerPos, lastRef: headerPos}
	e.addSlot(slot{ref: r})
	e.trackLive(r)
	e.maintainRelays()
}

// headerBytes returns the emitted header size for a container count.
func headerBytes(count int) int {
	if count <= format.MaxNarrowCount {
		return format.HeaderSize
	}
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(count))
	return format.Even(format.HeaderSize + n)
}

func (e *Encoder) emitHeader(kind format.Kind, count int) {
	if count <= format.MaxNarrowCount {
		e.out.WriteUint16BE(format.ContainerHeader(kind, count))
		return
	}
	e.out.WriteUint16BE(format.ContainerHeader(kind, format.WideCountSentinel))
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(count))
	e.out.Write(tmp[:n])
	e.out.WritePadding(format.Padding(n))
}

// refreshLiveRefs plants relay cells for live targets whose chains would
// drift out of range once extra bytes of slots are appended.
func (e *Encoder) refreshLiveRefs(extra int) {
	for _, lr := range e.live {
		r := lr.r
		if r.pinned == 0 {
			continue
		}
		if e.pos()+extra-r.lastRef > relayThreshold && e.pos()-r.lastRef <= maxReachBytes {
			relayAt := e.pos()
			e.out.WriteUint16BE(format.PointerCell(relayAt + format.SlotSize - r.lastRef))
			r.lastRef = relayAt
		}
	}
}

// fixupSpills iterates until every out-of-line reference in items fits
// the pointer range from its simulated slot position, spilling trampoline
// cells (or re-emitting leaf cells) ahead of the header. Chains through
// earlier slots of the same container count as reachability.
func (e *Encoder) fixupSpills(items []slot, hdr int) {
	limit := maxReachBytes - reachMargin
	for {
		fixed := false
		base := e.pos()
		simLast := make(map[*ref]int)
		for i := range items {
			r := items[i].ref
			if r == nil {
				continue
			}
			slotPos := base + hdr + i*format.SlotSize
			best := r.lastRef
			if prev, ok := simLast[r]; ok && prev > best {
				best = prev
			}
			if slotPos+format.SlotSize-best <= limit {
				simLast[r] = slotPos
				continue
			}
			e.emitSpill(r)
			if e.err != nil {
				return
			}
			fixed = true
			break
		}
		if !fixed {
			return
		}
	}
}

// emitSpill makes r reachable from the frontier again: leaf cells are
// re-emitted verbatim (they are self-contained), containers get a
// trampoline pointer to the nearest cell already leading to them.
func (e *Encoder) emitSpill(r *ref) {
	if r.leaf {
		cell, ok := e.cellBytes(r.target)
		if ok {
			fresh := e.pos()
			e.out.Write(cell)
			e.out.WritePadding(format.Padding(len(cell)))
			r.target = fresh
			r.lastRef = fresh
			e.maintainRelays()
			return
		}
		// Fall through to a trampoline when the bytes are not recoverable.
	}
	if e.pos()+format.SlotSize-r.lastRef > maxReachBytes {
		e.fail(fleece.Errorf(fleece.InternalError,
			"cell at %d drifted beyond pointer range", r.target))
		return
	}
	relayAt := e.pos()
	e.out.WriteUint16BE(format.PointerCell(relayAt + format.SlotSize - r.lastRef))
	r.lastRef = relayAt
	e.maintainRelays()
}

// cellBytes recovers the in-place bytes of a previously written cell from
// its virtual offset, looking in the delta base or the output buffer.
func (e *Encoder) cellBytes(virtual int) ([]byte, bool) {
	if virtual < len(e.base) {
		return fleece.RawCell(e.base, virtual)
	}
	return fleece.RawCell(e.out.Bytes(), virtual-len(e.base))
}

// sortDictItems orders key/value slot pairs by key: integer shared keys
// numerically first, then string keys lexicographically.
func sortDictItems(items []slot) {
	n := len(items) / 2
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		ka, kb := items[perm[a]*2], items[perm[b]*2]
		if ka.keyIsInt != kb.keyIsInt {
			return ka.keyIsInt
		}
		if ka.keyIsInt {
			return ka.keyInt < kb.keyInt
		}
		return strings.Compare(ka.keyStr, kb.keyStr) < 0
	})
	sorted := make([]slot, 0, len(items))
	for _, p := range perm {
		sorted = append(sorted, items[p*2], items[p*2+1])
	}
	copy(items, sorted)
}

// ExtractOutput finalizes the document and transfers the buffer to the
// caller: a 2-byte inline root is written as the trailing slot; any other
// root gets a 2-byte pointer cell locating it appended. The encoder is left reset and
// reusable. The latched error, if any, is returned after resources are
// released.
func (e *Encoder) ExtractOutput() ([]byte, error) {
	if e.err == nil {
		if len(e.stack) != 1 {
			e.fail(fleece.NewError(fleece.EncodeError, "unclosed container"))
		} else if len(e.top().items) == 0 {
			e.fail(fleece.NewError(fleece.EncodeError, "no value written"))
		}
	}
	if e.err != nil {
		err := e.err
		e.out.Reset()
		e.reset()
		return nil, err
	}

	it := e.top().items[0]
	if it.ref == nil {
		e.out.Write(it.inline[:])
	} else {
		r := it.ref
		if e.pos()+format.SlotSize-r.lastRef > maxReachBytes {
			if r.leaf {
				e.emitSpill(r)
			}
		}
		dist := e.pos() + format.SlotSize - r.lastRef
		if dist > maxReachBytes {
			err := fleece.Errorf(fleece.InternalError,
				"root cell at %d beyond pointer range", r.target)
			e.out.Reset()
			e.reset()
			return nil, err
		}
		e.out.WriteUint16BE(format.PointerCell(dist))
	}

	out := e.out.ExtractOutput()
	e.reset()
	return out, nil
}
