// Package filestore manages the stored bytes behind personal-file records:
// a permanent area keyed by record id and a per-upload staging (draft) area
// that is discarded after every import batch.
package filestore

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// DraftFile is one uploaded file waiting in a staging area.
type DraftFile struct {
	Filename string
	Size     int64
}

// FileStore stores file bytes under a root directory. Permanent files live
// at <root>/<area>/<itemID>/<filename>; drafts at <root>/draft/<draftID>/.
type FileStore struct {
	fs   afero.Fs
	root string
}

// NewOsFileStore returns a FileStore backed by the OS filesystem.
func NewOsFileStore(root string) (*FileStore, error) {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create file store root: %w", err)
	}
	return &FileStore{fs: fs, root: root}, nil
}

// NewMemFileStore returns a memory-backed FileStore for tests.
func NewMemFileStore() *FileStore {
	return &FileStore{fs: afero.NewMemMapFs(), root: "files"}
}

func (f *FileStore) itemDir(area string, itemID int64) string {
	return filepath.Join(f.root, area, strconv.FormatInt(itemID, 10))
}

// Save writes a file into the permanent area under the given item key,
// replacing any previous content with the same name.
func (f *FileStore) Save(area string, itemID int64, filename string, r io.Reader) error {
	dir := f.itemDir(area, itemID)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create item dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := afero.WriteReader(f.fs, path, r); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Open returns the stored bytes for an item's file.
func (f *FileStore) Open(area string, itemID int64, filename string) (io.ReadCloser, error) {
	return f.fs.Open(filepath.Join(f.itemDir(area, itemID), filepath.Base(filename)))
}

// Exists reports whether any bytes are stored under the item key.
func (f *FileStore) Exists(area string, itemID int64) (bool, error) {
	return afero.DirExists(f.fs, f.itemDir(area, itemID))
}

// Delete removes every stored file under the item key. Deleting an absent
// item is not an error.
func (f *FileStore) Delete(area string, itemID int64) error {
	return f.fs.RemoveAll(f.itemDir(area, itemID))
}

func (f *FileStore) draftDir(draftID string) string {
	return filepath.Join(f.root, "draft", draftID)
}

// NewDraft allocates a fresh staging area and returns its identifier.
func (f *FileStore) NewDraft() string {
	return uuid.NewString()
}

// SaveDraft writes an uploaded file into a staging area.
func (f *FileStore) SaveDraft(draftID, filename string, r io.Reader) error {
	dir := f.draftDir(draftID)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create draft dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := afero.WriteReader(f.fs, path, r); err != nil {
		return fmt.Errorf("write draft %s: %w", path, err)
	}
	return nil
}

// ListDraft returns the files in a staging area ordered by name. An absent
// area lists as empty.
func (f *FileStore) ListDraft(draftID string) ([]DraftFile, error) {
	dir := f.draftDir(draftID)
	exists, err := afero.DirExists(f.fs, dir)
	if err != nil || !exists {
		return nil, err
	}
	infos, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read draft dir: %w", err)
	}
	var files []DraftFile
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		files = append(files, DraftFile{Filename: info.Name(), Size: info.Size()})
	}
	return files, nil
}

// OpenDraft returns the bytes of one staged file.
func (f *FileStore) OpenDraft(draftID, filename string) (io.ReadCloser, error) {
	return f.fs.Open(filepath.Join(f.draftDir(draftID), filepath.Base(filename)))
}

// ClearDraft discards a staging area and everything in it.
func (f *FileStore) ClearDraft(draftID string) error {
	return f.fs.RemoveAll(f.draftDir(draftID))
}
