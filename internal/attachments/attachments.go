// Package attachments stores challenge files in a local directory.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidPath = errors.New("invalid attachment path")

type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating attachments dir: %w", err)
	}
	return &Dir{root: abs}, nil
}

// resolve maps a slash-separated relative path inside the root.
func (d *Dir) resolve(rel string) (string, error) {
	if rel == "" || strings.Contains(rel, "\\") || path.IsAbs(rel) {
		return "", ErrInvalidPath
	}
	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// Open returns the file at rel. The caller closes it.
func (d *Dir) Open(rel string) (*os.File, error) {
	full, err := d.resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, ErrInvalidPath
	}
	return f, nil
}

// Save writes r to rel, replacing any existing file.
func (d *Dir) Save(rel string, r io.Reader) error {
	full, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}

// ObjectName builds the stored path for an uploaded file: <challengeID>/<base name>.
func ObjectName(challengeID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = "file"
	}
	return challengeID + "/" + base
}
