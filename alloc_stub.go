//go:build !darwin && !linux

package machhook

import "github.com/pkg/errors"

func AllocExecPage(pagesize int, nop byte) ([]byte, error) {
	return nil, errors.WithMessage(ErrNoExecPage, "executable pages need darwin or linux")
}

func (p *Process) AllocPage() ([]byte, error) {
	return AllocExecPage(p.cfg.PageSize, p.patcher.Nop())
}

func FreePage(page []byte) error {
	return errors.New("executable pages need darwin or linux")
}
