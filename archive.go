package mdx

import (
	"archive/zip"
	"io"
	"os"
	"sync"
)

// zipEntryInfo records where one stored (uncompressed) zip entry's
// bytes begin and how long they are, letting ArchiveDirectory serve
// random-access reads without re-walking the central directory.
// Grounded on original_source's storage::zip_directory::ZipEntryInfo.
type zipEntryInfo struct {
	offset uint64
	size   uint64
}

// ArchiveDirectory is a read-only, random-access view over the STORED
// (uncompressed) entries of a zip archive, used to serve a full-text
// search sidecar's files directly out of the archive without
// extracting them to disk first. Grounded on original_source's
// storage::zip_directory::ZipDirectory; generalized from the original's
// tantivy::Directory trait implementation to a small self-contained Go
// type, since this module doesn't carry a full-text search engine
// dependency (see SPEC_FULL.md's Non-goals).
type ArchiveDirectory struct {
	zipPath string

	mu      sync.Mutex
	loaded  bool
	entries map[string]zipEntryInfo
}

// OpenArchiveDirectory returns a directory over zipPath; the central
// directory isn't scanned until the first read. Grounded on
// ZipDirectory::open.
func OpenArchiveDirectory(zipPath string) *ArchiveDirectory {
	return &ArchiveDirectory{zipPath: zipPath}
}

// ensureLoaded scans the zip's central directory once and caches a
// name -> (offset, size) map, keeping only entries stored without
// compression (Deflate/etc entries aren't directly addressable by byte
// range and are invisible to this directory). Grounded on
// ZipDirectory::ensure_cache_loaded.
func (d *ArchiveDirectory) ensureLoaded() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}

	r, err := zip.OpenReader(d.zipPath)
	if err != nil {
		return newIoErr(err)
	}
	defer r.Close()

	entries := make(map[string]zipEntryInfo)
	for _, f := range r.File {
		if f.FileInfo().IsDir() || f.Method != zip.Store {
			continue
		}
		offset, err := f.DataOffset()
		if err != nil {
			continue
		}
		entries[f.Name] = zipEntryInfo{offset: uint64(offset), size: f.UncompressedSize64}
	}
	d.entries = entries
	d.loaded = true
	return nil
}

// Exists reports whether name names a stored entry in the archive.
// Grounded on ZipDirectory::has_entry.
func (d *ArchiveDirectory) Exists(name string) (bool, error) {
	if err := d.ensureLoaded(); err != nil {
		return false, err
	}
	_, ok := d.entries[name]
	return ok, nil
}

// ReadBytes returns the [start, start+length) byte range of name's
// content. Grounded on ZipFileHandle::read_bytes.
func (d *ArchiveDirectory) ReadBytes(name string, start, length uint64) ([]byte, error) {
	if err := d.ensureLoaded(); err != nil {
		return nil, err
	}
	info, ok := d.entries[name]
	if !ok {
		return nil, newInvalidParameter("entry not found in archive: %s", name)
	}
	if start+length > info.size {
		return nil, newInvalidParameter("range exceeds entry size: %s", name)
	}

	f, err := os.Open(d.zipPath)
	if err != nil {
		return nil, newIoErr(err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(info.offset+start), io.SeekStart); err != nil {
		return nil, newIoErr(err)
	}
	buf, err := readExact(f, int(length))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// AtomicRead returns the whole content of name.
func (d *ArchiveDirectory) AtomicRead(name string) ([]byte, error) {
	if err := d.ensureLoaded(); err != nil {
		return nil, err
	}
	info, ok := d.entries[name]
	if !ok {
		return nil, newInvalidParameter("entry not found in archive: %s", name)
	}
	return d.ReadBytes(name, 0, info.size)
}

// Delete and Write are unsupported: ArchiveDirectory is
// read-only. Grounded on ZipDirectory's Directory::delete/open_write
// returning an Unsupported io error, and its acquire_lock returning a
// dummy no-op lock since nothing ever writes through this directory.
func (d *ArchiveDirectory) Delete(name string) error {
	return newInvalidParameter("archive directory is read-only: %s", name)
}

func (d *ArchiveDirectory) Write(name string, data []byte) error {
	return newInvalidParameter("archive directory is read-only: %s", name)
}

// AcquireLock always succeeds with a no-op release, mirroring the
// original's dummy DirectoryLock for a directory with no writers to
// exclude.
func (d *ArchiveDirectory) AcquireLock() (release func(), err error) {
	return func() {}, nil
}
