// control/defaults.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DumpDefaults writes the default configuration as YAML, suitable as a
// starting configuration file.
func DumpDefaults(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(DefaultConfig()); err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	return enc.Close()
}
