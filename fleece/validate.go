package fleece

import (
	"github.com/d122y/fleecekit/internal/format"
)

// FromData wraps an untrusted buffer, validating the whole reachable
// structure first: the trailing root slot, every pointer target (strictly
// backwards, in bounds, 2-byte aligned), every cell header, every
// container's slot extent, and the nesting depth. On success the returned
// view and everything reachable from it can be read without further
// bounds failures.
func FromData(data []byte) (Value, error) {
	if len(data) < format.MinDocSize {
		return Value{}, Errorf(InvalidData, "buffer too small (%d bytes)", len(data))
	}
	if len(data)%format.CellAlign != 0 {
		return Value{}, WrapError(InvalidData, "buffer", format.ErrOddLength)
	}
	vd := &validator{data: data, visited: newVisitedSet(len(data))}
	root, err := vd.validateSlot(len(data)-format.SlotSize, 0)
	if err != nil {
		return Value{}, err
	}
	return root, nil
}

// validator carries the state of one untrusted validation pass. The
// visited set makes each cell validate once even when shared by many
// pointers, so adversarial sharing cannot blow the pass up.
type validator struct {
	data    []byte
	visited *visitedSet
}

// validateSlot checks the 2-byte slot at slotOff, following a pointer
// chain if present, and validates the cell it lands on.
func (vd *validator) validateSlot(slotOff, depth int) (Value, error) {
	off := slotOff
	for format.IsPointer(vd.data[off]) {
		target := format.PointerTarget(vd.data, off)
		if target < 0 || target >= off {
			return Value{}, Errorf(InvalidData, "pointer at %d targets %d: %v",
				off, target, format.ErrBadPointer)
		}
		if target%format.CellAlign != 0 {
			return Value{}, Errorf(InvalidData, "pointer target %d misaligned", target)
		}
		off = target
	}
	if err := vd.validateCell(off, depth); err != nil {
		return Value{}, err
	}
	return Value{buf: vd.data, off: off}, nil
}

// validateCell checks the cell at off. Inline slots inside containers
// reach here too; containers recurse.
func (vd *validator) validateCell(off, depth int) error {
	if vd.visited.isSet(off) {
		return nil
	}
	vd.visited.set(off)

	b := vd.data
	tag := b[off]
	kind := format.TagKind(tag)
	switch kind {
	case format.KindShortInt:
		return nil
	case format.KindSpecial:
		if format.TagNibble(tag) > format.SpecialUndefined {
			return Errorf(UnknownValue, "special tag 0x%02X at %d", tag, off)
		}
		return nil
	case format.KindFloat:
		if format.TagNibble(tag) > format.FloatNibble64 {
			return Errorf(UnknownValue, "float tag 0x%02X at %d", tag, off)
		}
	case format.KindInt, format.KindString, format.KindBlob:
		// Extent check below suffices.
	case format.KindArray, format.KindDict:
		return vd.validateContainer(off, depth)
	default:
		return Errorf(UnknownValue, "tag 0x%02X at %d: %v", tag, off, format.ErrReservedTag)
	}

	ext, ok := Value{buf: b, off: off}.cellExtent()
	if !ok || off+ext > len(b) {
		return Errorf(InvalidData, "cell at %d truncated: %v", off, format.ErrTruncated)
	}
	return nil
}

func (vd *validator) validateContainer(off, depth int) error {
	if depth >= format.MaxDepth {
		return WrapError(InvalidData, "container nesting", format.ErrDepth)
	}
	b := vd.data
	count, first, ok := format.ContainerCount(b, off)
	if !ok {
		return Errorf(InvalidData, "container header at %d: %v", off, format.ErrTruncated)
	}
	slots := int(count)
	if format.TagKind(b[off]) == format.KindDict {
		slots *= 2
	}
	if first+slots*format.SlotSize > len(b) {
		return Errorf(InvalidData, "container at %d overruns buffer", off)
	}
	for i := 0; i < slots; i++ {
		slotOff := first + i*format.SlotSize
		if format.IsPointer(b[slotOff]) {
			if _, err := vd.validateSlot(slotOff, depth+1); err != nil {
				return err
			}
			continue
		}
		// Inline slot: the cell must be entirely contained in its 2 bytes.
		inline := Value{buf: b, off: slotOff}
		ext, extOK := inline.cellExtent()
		if !extOK || ext > format.SlotSize {
			return Errorf(InvalidData, "inline slot at %d spans %d bytes", slotOff, ext)
		}
		if err := vd.validateCell(slotOff, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// visitedSet is a bit per possible cell offset (one per 2 bytes).
type visitedSet struct {
	bits []uint64
}

func newVisitedSet(bufLen int) *visitedSet {
	numBits := bufLen/format.CellAlign + 1
	return &visitedSet{bits: make([]uint64, (numBits+63)/64)}
}

func (s *visitedSet) set(off int) {
	idx := off / format.CellAlign
	s.bits[idx/64] |= 1 << (idx % 64)
}

func (s *visitedSet) isSet(off int) bool {
	idx := off / format.CellAlign
	return s.bits[idx/64]&(1<<(idx%64)) != 0
}
