//go:build !darwin || !cgo

package machhook

import (
	"github.com/pkg/errors"

	"github.com/machhook/machhook/models"
)

// DyldTask needs the platform's dynamic loader; everywhere else it only
// reports that it has none.
type DyldTask struct{}

func errNoDyld() error {
	return errors.New("the live task needs darwin and cgo")
}

func (DyldTask) Images() ([]models.Image, error) {
	return nil, errNoDyld()
}

func (DyldTask) ResolveAddr(addr uint64) (models.AddrInfo, bool) {
	return models.AddrInfo{}, false
}

func (DyldTask) LookupSymbol(name string) (uint64, bool) {
	return 0, false
}

func (DyldTask) ReadFile(path string) ([]byte, error) {
	return nil, errNoDyld()
}

func (DyldTask) Mem() models.Memory {
	return HostMem{}
}

func (DyldTask) Self() uint64 {
	return 0
}
