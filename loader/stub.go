package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
)

// StubEntrySize is the stride of the classic 6 byte jump-table record.
const StubEntrySize = 6

// StubJmp is the indirect-jmp opcode pair opening every record.
var StubJmp = [2]byte{0xff, 0x25}

// StubEntry is one dynamic-linker jump-table record: an indirect jmp
// through a pointer slot that sits Off bytes past the record's end.
type StubEntry struct {
	Jmp [2]byte
	Off uint32
}

// SlotAddr is the address of the pointer slot the record jumps through,
// given the record's own address.
func (s *StubEntry) SlotAddr(addr uint64) uint64 {
	return addr + StubEntrySize + uint64(s.Off)
}

// DecodeStub reads one jump-table record from buf. ok is false when the
// bytes are too short or do not open with the indirect-jmp opcodes; stub
// sections pad between records, so that is not an error.
func DecodeStub(buf []byte) (StubEntry, bool) {
	var ent StubEntry
	if len(buf) < StubEntrySize {
		return ent, false
	}
	r := bytes.NewReader(buf[:StubEntrySize])
	if err := struc.UnpackWithOrder(r, &ent, binary.LittleEndian); err != nil {
		return ent, false
	}
	if ent.Jmp != StubJmp {
		return ent, false
	}
	return ent, true
}
