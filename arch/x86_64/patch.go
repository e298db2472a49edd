// Package x86_64 rewrites rel32 near calls, the only direct call form the
// platform toolchain emits inside __text.
package x86_64

import (
	"encoding/binary"

	"golang.org/x/arch/x86/x86asm"

	"github.com/machhook/machhook/models"
)

const (
	opCall  = 0xe8
	callLen = 5
	nop     = 0x90
)

var Patcher models.Patcher = patcher{}

type patcher struct{}

func (patcher) Nop() byte { return nop }

// PatchCall treats code[0] as a candidate instruction at runtime address
// addr. When it decodes as a near call whose destination is target, the
// rel32 operand is rewritten in place so the call lands on tramp. False
// means the site was left untouched: not a call, aimed elsewhere, or
// tramp out of rel32 reach.
func (patcher) PatchCall(code []byte, addr, target, tramp uint64) bool {
	if len(code) < callLen || code[0] != opCall {
		return false
	}
	inst, err := x86asm.Decode(code[:callLen], 64)
	if err != nil || inst.Op != x86asm.CALL || inst.Len != callLen {
		return false
	}
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return false
	}
	next := addr + callLen
	if next+uint64(int64(rel)) != target {
		return false
	}
	delta := int64(tramp) - int64(next)
	if delta != int64(int32(delta)) {
		return false
	}
	binary.LittleEndian.PutUint32(code[1:callLen], uint32(int32(delta)))
	return true
}
