/*

Package mdx implements the core of a dictionary storage engine: a
compact, read-optimized on-disk container for large keyed collections —
typically electronic dictionaries mapping headwords to HTML entries, or
arbitrary file paths to binary blobs.

The package reads three on-disk format generations (V1, V2, V3)
interchangeably and writes V3. It covers:

  - The unit/block codec: framing, compression negotiation, selective
    encryption of leading bytes, checksums.
  - The key index and content index: two-level sorted indexes that
    support locale-aware lookup, prefix and partial match, and
    near-neighbor iteration over large entry counts with tight memory.
  - The builder pipeline: streaming assembly of units with correct
    back-patched headers and deterministic block packing.
  - The reader cache and lookup: bounded block cache, "@@@LINK="
    resolution with cycle detection.

Not covered by this package (external collaborators):

  - Full-text search integration (treated as an opaque archive
    packer/reader boundary; see ArchiveDirectory for the random-access layer
    such a search index would sit on top of).
  - HTML link rewriting and style decompaction (DecompactStyle is
    provided as a pure text transform but is never invoked implicitly).
  - Resource MDD sidecar orchestration and CLI/config surfaces.
  - Source-format importers beyond the DataLoader interface consumed
    by Builder.

File layout (V3), bytes in order:

	u32 BE  XML header length (includes trailing null)
	        XML bytes; one null byte; u32 LE Adler-32 of (xml+null)
	Content unit:             info section, N storage blocks, DataInfo
	ContentBlockIndex unit:   info section, 1 storage block, DataInfo
	Key unit:                info section, M storage blocks, DataInfo
	KeyBlockIndex unit:       info section, 1 storage block, DataInfo

V1/V2 order differs: header, then KeyBlockIndex -> Key -> ContentBlockIndex
-> Content, each prefixed by a fixed idx_para struct instead of an
info/DataInfo pair. See storage_block.go and unit.go for exact framing.

Link records: content beginning with ASCII "@@@LINK=" (or its UTF-16LE
byte sequence) redirects a lookup to another key; see Reader.GetData.

*/
package mdx
