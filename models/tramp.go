package models

// Trampoline is the destination handed over by a trampoline generator: the
// live address of the redirect code. What the code does is opaque here.
type Trampoline struct {
	Addr uint64
}

// Patcher rewrites one candidate call site for an architecture. code is a
// live view running from the candidate to the end of its section and addr
// is the runtime address of code[0]. PatchCall returns true only after
// rewriting a call to target so it reaches tramp instead.
type Patcher interface {
	PatchCall(code []byte, addr, target, tramp uint64) bool
	// Nop is the single-byte filler for fresh trampoline pages.
	Nop() byte
}
