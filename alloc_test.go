//go:build darwin || linux

package machhook

import (
	"os"
	"testing"

	"github.com/pkg/errors"
)

func TestAllocExecPage(t *testing.T) {
	pagesize := os.Getpagesize()
	page, err := AllocExecPage(pagesize, 0x90)
	if err != nil {
		t.Fatal("failed to map an executable page:", err)
	}
	defer FreePage(page)
	if len(page) != pagesize {
		t.Fatalf("page is %d bytes", len(page))
	}
	for i, b := range page {
		if b != 0x90 {
			t.Fatalf("byte %d is 0x%x, not nop filled", i, b)
		}
	}
	page[0] = 0xc3
	if page[0] != 0xc3 {
		t.Fatal("page is not writable")
	}
}

func TestAllocExhausted(t *testing.T) {
	pagesize := os.Getpagesize()
	// a probe ceiling below the first candidate leaves nothing to try
	_, err := allocPage(pagesize, uint64(2*pagesize), 0x90)
	if !errors.Is(err, ErrNoExecPage) {
		t.Fatalf("exhausted allocator returned %v", err)
	}
}
