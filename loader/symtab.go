package loader

import (
	"github.com/pkg/errors"

	"github.com/machhook/machhook/models"
)

// Symtab extracts the symbol table from an image's on-disk bytes. All
// nsyms records are kept, undefined and external entries included, and the
// string table is copied whole so the result outlives file. The table
// comes back sorted by address.
func (m MachO) Symtab(file []byte) (*models.SymTab, error) {
	fi, err := ParseFile(file)
	if err != nil {
		return nil, err
	}
	sc := fi.Symtab
	if sc == nil {
		return nil, errors.New("unable to find LC_SYMTAB")
	}
	if err := bounds(file, uint64(sc.Stroff), uint64(sc.Strsize)); err != nil {
		return nil, errors.WithMessage(err, "string table")
	}
	if err := bounds(file, uint64(sc.Symoff), uint64(sc.Nsyms)*nlistSize); err != nil {
		return nil, errors.WithMessage(err, "symbol records")
	}
	strtab := make([]byte, sc.Strsize)
	copy(strtab, file[sc.Stroff:uint64(sc.Stroff)+uint64(sc.Strsize)])
	entries := make([]models.SymTabEntry, sc.Nsyms)
	for i := range entries {
		var n Nlist64
		if err := unpackAt(file, uint64(sc.Symoff)+uint64(i)*nlistSize, &n); err != nil {
			return nil, err
		}
		entries[i] = models.SymTabEntry{
			NameOff: n.Strx,
			Type:    n.Type,
			Sect:    n.Sect,
			Desc:    n.Desc,
			Addr:    n.Value,
		}
	}
	return models.NewSymTab(entries, strtab), nil
}
