package encoder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSysfsRoot is where the kernel exposes exported GPIO lines.
const DefaultSysfsRoot = "/sys/class/gpio"

// SysfsPins reads GPIO levels through the sysfs interface.
// Lines must already be exported and configured as inputs.
type SysfsPins struct {
	Root string
}

// Get returns true when the line reads high.
func (p SysfsPins) Get(pin int) (bool, error) {
	root := p.Root
	if root == "" {
		root = DefaultSysfsRoot
	}
	data, err := os.ReadFile(filepath.Join(root, fmt.Sprintf("gpio%d", pin), "value"))
	if err != nil {
		return false, fmt.Errorf("reading gpio%d: %w", pin, err)
	}
	return len(bytes.TrimSpace(data)) > 0 && bytes.TrimSpace(data)[0] == '1', nil
}
