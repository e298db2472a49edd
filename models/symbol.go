package models

import "fmt"

// Symbol is a resolved symbol at its live address. Size 0 means the table
// had no following entry to measure against.
type Symbol struct {
	Name string
	Addr uint64
	Size uint64
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s@0x%x+0x%x", s.Name, s.Addr, s.Size)
}
