package export

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/akeil/notemd"
)

// Writer is the filesystem sink for planned file writes.
//
// Each write either fully succeeds or fails with the target path in the
// error: content goes to a temporary file in the target directory first
// and is renamed into place. Pre-existing directories are reused.
type Writer struct {
	root string
}

// NewWriter creates a writer that places files below the given root.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Write emits one planned file.
func (w *Writer) Write(fw FileWrite) error {
	target := filepath.Join(w.root, filepath.FromSlash(fw.Path))

	err := os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		return notemd.Wrap(err, "cannot create directory for %q", fw.Path)
	}

	tmp := target + ".tmp-" + uuid.New().String()[:8]
	err = os.WriteFile(tmp, fw.Data, 0644)
	if err != nil {
		return notemd.Wrap(err, "cannot write %q", fw.Path)
	}

	err = os.Rename(tmp, target)
	if err != nil {
		os.Remove(tmp)
		return notemd.Wrap(err, "cannot write %q", fw.Path)
	}

	return nil
}
