package machhook

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/machhook/machhook/models"
)

// InstallHook rewrites every reachable call site of the named symbol so it
// calls tramp.Addr instead. Both direct calls in text sections and
// dynamic-linker stub slots are candidates; the image this package is
// loaded from is skipped, and images whose headers fail to parse are
// logged and skipped rather than aborting the walk. ErrNoPatchSites comes
// back when the walk finishes without a single rewrite.
func (p *Process) InstallHook(name string, tramp *models.Trampoline) error {
	p.assertBooted()
	if tramp == nil || tramp.Addr == 0 {
		return errors.New("no trampoline address")
	}
	target, ok := p.FindSymbol(name)
	if !ok {
		return errors.WithMessagef(ErrNoPatchSites, "no symbol %s in %s", name, p.runtime)
	}
	imgs, err := p.task.Images()
	if err != nil {
		return errors.Wrap(err, "image list unavailable")
	}
	self := p.task.Self()
	patched := 0
	for _, img := range imgs {
		if self != 0 && img.Base == self {
			continue
		}
		n, err := p.patchImage(img, target.Addr, tramp.Addr)
		if err != nil {
			log.Debugf("skipping %s: %v", img.Path, err)
			continue
		}
		patched += n
	}
	if patched == 0 {
		return errors.WithMessagef(ErrNoPatchSites, "%s", name)
	}
	log.Debugf("%s: rewrote %d call sites", name, patched)
	return nil
}

func (p *Process) patchImage(img models.Image, target, tramp uint64) (int, error) {
	obj, err := p.format.Image(p.task.Mem(), img.Base)
	if err != nil {
		return 0, err
	}
	patched := 0
	for _, seg := range obj.Segments() {
		for _, sect := range obj.Sections(seg) {
			n, err := p.patchSection(img, sect, target, tramp)
			if err != nil {
				log.Debugf("%s %s.%s: %v", img.Path, sect.Segment, sect.Name, err)
				continue
			}
			patched += n
		}
	}
	return patched, nil
}
