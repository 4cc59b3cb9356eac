//go:build !unix

package doctor

import (
	"fmt"
	"os"
)

func writable(dir string) error {
	f, err := os.CreateTemp(dir, ".muon-doctor-*")
	if err != nil {
		return fmt.Errorf("create probe file: %w", err)
	}

	name := f.Name()
	_ = f.Close()

	return os.Remove(name)
}
