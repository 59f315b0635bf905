package imdformat

import (
	"os"

	"github.com/sergev/imdisk/internal/diskimage"
)

func openFile(path string) (*os.File, error) {
	return os.Open(path)
}

// WriteFile creates (or truncates) path and writes a complete IMD
// container for disk.
func WriteFile(path string, disk *diskimage.Disk) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Encode(f, disk)
}

// Exists reports whether path refers to an existing file, the check the
// acquisition CLI uses to decide between "resume" and "fresh" runs.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
