package runtime

import (
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/mvmhost/mvmhost/types"
)

// validate performs the static checks on an image that wazero's own
// validation does not cover. Numbered exports are checked when called.
func validate(compiled wazero.CompiledModule) error {
	if def, ok := compiled.ExportedFunctions()[GCExportName]; ok {
		if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 0 {
			return fmt.Errorf("export %s has signature %v -> %v: %w", GCExportName, def.ParamTypes(), def.ResultTypes(), types.ErrInvalidBytecode)
		}
	}
	return nil
}
