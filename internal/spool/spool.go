// Package spool stores uploaded spreadsheets on disk between upload and
// batch processing. Files are named <batch-id>.<kind><ext> so a batch can
// be reprocessed from its original bytes at any time.
package spool

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Spreadsheet kinds, named after the uploads they hold.
const (
	KindPayments = "pagamentos"
	KindAccounts = "contas"
)

// Dir is a spool directory.
type Dir struct {
	root string
}

// New opens the spool directory, creating it when needed.
func New(root string) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("spool dir is required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the spool directory path.
func (d *Dir) Root() string {
	if d == nil {
		return ""
	}
	return d.root
}

// FileName returns the spool file name for one batch spreadsheet.
func FileName(batchID, kind, ext string) string {
	return batchID + "." + kind + ext
}

// Save writes one spreadsheet into the spool, replacing any previous file
// of the same batch and kind. The extension must include its dot and is
// kept so the format can be inferred again on read.
func (d *Dir) Save(batchID, kind, ext string, r io.Reader) (string, error) {
	if d == nil {
		return "", fmt.Errorf("spool is not configured")
	}
	if err := validateComponents(batchID, kind); err != nil {
		return "", err
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !validExt(ext) {
		return "", fmt.Errorf("spool extension %q is invalid", ext)
	}

	tmp, err := os.CreateTemp(d.root, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create spool temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write spool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close spool file: %w", err)
	}

	// A reprocessed upload may change format, so stale siblings with a
	// different extension have to go before the rename.
	if err := d.removeMatching(batchID + "." + kind + ".*"); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	path := filepath.Join(d.root, FileName(batchID, kind, ext))
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("store spool file: %w", err)
	}
	return path, nil
}

// Find returns the path of one batch spreadsheet. A missing file reports
// fs.ErrNotExist; the accounts spreadsheet is optional for a batch.
func (d *Dir) Find(batchID, kind string) (string, error) {
	if d == nil {
		return "", fmt.Errorf("spool is not configured")
	}
	if err := validateComponents(batchID, kind); err != nil {
		return "", err
	}

	matches, err := filepath.Glob(filepath.Join(d.root, batchID+"."+kind+".*"))
	if err != nil {
		return "", fmt.Errorf("scan spool dir: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("spool file %s.%s: %w", batchID, kind, fs.ErrNotExist)
	}
	return matches[0], nil
}

// Open opens one batch spreadsheet for reading.
func (d *Dir) Open(batchID, kind string) (*os.File, error) {
	path, err := d.Find(batchID, kind)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spool file: %w", err)
	}
	return file, nil
}

// Remove deletes every spool file of one batch. Removing a batch with no
// spool files is not an error.
func (d *Dir) Remove(batchID string) error {
	if d == nil {
		return fmt.Errorf("spool is not configured")
	}
	if err := validateComponents(batchID, KindPayments); err != nil {
		return err
	}
	return d.removeMatching(batchID + ".*")
}

func (d *Dir) removeMatching(pattern string) error {
	matches, err := filepath.Glob(filepath.Join(d.root, pattern))
	if err != nil {
		return fmt.Errorf("scan spool dir: %w", err)
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove spool file: %w", err)
		}
	}
	return nil
}

func validateComponents(batchID, kind string) error {
	if !validComponent(batchID) {
		return fmt.Errorf("batch id %q is invalid", batchID)
	}
	if kind != KindPayments && kind != KindAccounts {
		return fmt.Errorf("spool kind %q is invalid", kind)
	}
	return nil
}

// validComponent keeps spool names flat: ids hold only the characters the
// id generator emits, so no separator or glob byte ever reaches the path.
func validComponent(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func validExt(ext string) bool {
	if len(ext) < 2 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
