package mdx

import (
	"os"
	"path/filepath"
	"strings"
)

// BuildRecord describes one entry queued for packing: its lookup key plus
// enough bookkeeping for a DataLoader to later locate its content. The
// content-unit build phase fills in ContentOffsetInSource once the
// entry's position in the logical content stream is known. Grounded on
// original_source's builder::data_loader::ZdbRecord.
type BuildRecord struct {
	Key                   string
	ContentOffsetInSource uint64
	Position              uint64
	// Content carries either the literal text of the entry (for
	// in-memory sources) or a loader-specific reference such as a file
	// path (for DirectoryLoader); DataLoader implementations agree with
	// whoever populates BuildRecord on which it is.
	Content    string
	ContentLen uint64
	LineNo     uint64
}

// maxKeywordLength bounds a single key's length, per
// data_loader::ZDB_MAX_KEYWORD_LENGTH.
const maxKeywordLength = 255

// maxEntryLength bounds a single record's content length (64MiB), per
// data_loader::MAX_ENTRY_LEN.
const maxEntryLength = 64 * 1024 * 1024

// DataLoader supplies the raw content bytes for a BuildRecord during
// the builder's content-unit phase. Grounded on
// original_source's builder::data_loader::DataLoader.
type DataLoader interface {
	LoadData(entry *BuildRecord) ([]byte, error)
}

// InMemoryLoader is a DataLoader backed by a pre-populated map from key
// to content bytes; used when the caller already holds every record's
// content in memory (e.g. programmatic construction, tests).
type InMemoryLoader struct {
	data map[string][]byte
}

// NewInMemoryLoader wraps data; data is not copied.
func NewInMemoryLoader(data map[string][]byte) *InMemoryLoader {
	return &InMemoryLoader{data: data}
}

func (l *InMemoryLoader) LoadData(entry *BuildRecord) ([]byte, error) {
	content, ok := l.data[entry.Key]
	if !ok {
		return nil, newInvalidParameter("no content registered for key: %s", entry.Key)
	}
	return content, nil
}

// DirectoryLoader is a DataLoader that reads each entry's content from
// a file under sourceDir, keyed by the entry's BuildRecord.Content
// (an absolute file path recorded at scan time). Grounded on
// original_source's builder::data_dir_loader::DataDirLoader.
type DirectoryLoader struct {
	sourceDir string
}

func (l *DirectoryLoader) LoadData(entry *BuildRecord) ([]byte, error) {
	data, err := os.ReadFile(entry.Content)
	if err != nil {
		return nil, newIoErr(err)
	}
	return data, nil
}

// windowsPathToUnixPath normalizes path separators to forward slashes,
// mirroring io_utils::windows_path_to_unix_path so MDD resource keys are
// stable across the platform the dictionary is built on.
func windowsPathToUnixPath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// NewDirectoryLoader recursively scans sourceDir and returns a
// DirectoryLoader plus one BuildRecord per file found, keyed by its
// forward-slash path relative to sourceDir with a leading slash (the
// MDD resource-key convention). Grounded on
// DataDirLoader::new.
func NewDirectoryLoader(sourceDir string) (*DirectoryLoader, []*BuildRecord, error) {
	baseDir, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, nil, newIoErr(err)
	}

	var records []*BuildRecord
	var position uint64
	err = filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(baseDir, path)
		if err != nil {
			return newInvalidDataFormat("failed to create relative path: %s", path)
		}
		key := "/" + windowsPathToUnixPath(relPath)
		records = append(records, &BuildRecord{
			Key:        key,
			Position:   position,
			Content:    path,
			ContentLen: uint64(info.Size()),
		})
		position++
		return nil
	})
	if err != nil {
		return nil, nil, newIoErr(err)
	}

	return &DirectoryLoader{sourceDir: baseDir}, records, nil
}
