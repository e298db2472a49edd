package machogen

import "encoding/binary"

// Demo builds a small runtime-shaped image: a target function, a caller
// with a direct call to it, a one-record stub table, and a pointer slot
// holding the target's unslid address. Useful on its own for inspection
// tools and as a hookable fixture once mapped and bound.
func Demo() ([]byte, error) {
	text := make([]byte, 0x40)
	for i := range text {
		text[i] = 0x90
	}
	text[0] = 0xc3 // demo_target: ret
	// demo_caller at 0x1010: call demo_target
	text[0x10] = 0xe8
	callRel := int32(-0x15)
	binary.LittleEndian.PutUint32(text[0x11:], uint32(callRel))
	text[0x15] = 0xc3

	// one stub record; its slot lives at 0x2000
	stubs := make([]byte, 6)
	stubs[0], stubs[1] = 0xff, 0x25
	binary.LittleEndian.PutUint32(stubs[2:], uint32(0x2000-(0x1040+6)))

	slot := make([]byte, 8)
	binary.LittleEndian.PutUint64(slot, 0x1000)

	return NewImage().
		Section("__TEXT", "__text", 0x1000, text).
		Section("__TEXT", "__stubs", 0x1040, stubs).
		Section("__DATA", "__la_symbol_ptr", 0x2000, slot).
		Symbol("demo_target", 0x1000).
		Symbol("demo_caller", 0x1010).
		Undef("malloc").
		Build()
}
