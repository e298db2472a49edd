package arch

import (
	"github.com/pkg/errors"

	"github.com/machhook/machhook/arch/x86_64"
	"github.com/machhook/machhook/models"
)

var archMap = map[string]models.Patcher{
	"x86_64": x86_64.Patcher,
}

// GetPatcher returns the call-site patcher registered under name.
func GetPatcher(name string) (models.Patcher, error) {
	if p, ok := archMap[name]; ok {
		return p, nil
	}
	return nil, errors.Errorf("Arch '%s' not found.", name)
}
