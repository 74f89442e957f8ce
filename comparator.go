package mdx

// comparator abstracts the ordering function used by every key search:
// (lhs key, lhs sort key, probe key, probe sort key, prefix flag, meta)
// -> {-1,0,1}. V3 calls the locale collator directly on UTF-8 strings;
// legacy generations compare precomputed sort keys byte-wise. Grounded
// on original_source's crate::utils::{locale_compare, sort_key_compare,
// key_compare, KeyComparable} as used throughout key_block.rs and
// key_block_index.rs.

// keyComparable is implemented by KeyIndex and KeyBlockIndexEntry: both
// carry enough state (key + sort key) to compare themselves against a
// probe.
type keyComparable interface {
	compareWith(other string, otherSortKey []byte, prefixMatch bool, meta *MetaUnit) (int, error)
}

// keyCompare implements spec.md §4.4's comparator contract directly
// between two (key, sortKey) pairs, used by KeyBlockIndexEntry's
// compareWith (which must compare both its first_key and last_key
// against the probe).
func keyCompare(lhsKey string, lhsSortKey []byte, rhsKey string, rhsSortKey []byte, prefixMatch bool, meta *MetaUnit) (int, error) {
	if meta.isV3() {
		return localeCompareStrings(meta.Collator, lhsKey, rhsKey, prefixMatch), nil
	}
	return sortKeyCompare(lhsSortKey, rhsSortKey, prefixMatch), nil
}

// randomAccessable is implemented by KeyBlock (over its KeyIndex array)
// and by the key-block-index directory (over its entries), letting
// binarySearchFirst operate generically over both levels of the
// two-level index.
type randomAccessable interface {
	length() int
	itemCompare(i int, probe string, probeSortKey []byte, prefixMatch bool, meta *MetaUnit) (int, error)
}

// binarySearchFirst finds the leftmost index whose item compares Equal
// to the probe under the comparator, continuing to search left after
// each Equal hit (so ties resolve to the first match), per spec.md
// §4.4's "Leftmost-equal is achieved by continuing the search leftward
// after each equal hit rather than terminating." Returns the leftmost
// equal index, or -1 with a nil error if no equal item exists
// (including when the probe falls outside the collection's range); a
// non-nil error is returned only when a comparison fails.
//
// When partialMatch is set and a full-probe search turns up nothing,
// the probe's last rune is dropped and the sort key re-synthesized via
// getSortKey, retrying until a match is found or the probe runs out of
// characters. Grounded on utils::utils::binary_search_first's outer
// "while result.is_none() && !search_key.is_empty()" retry loop.
func binarySearchFirst(coll randomAccessable, probe string, probeSortKey []byte, meta *MetaUnit, prefixMatch, partialMatch bool) (int, error) {
	n := coll.length()
	if n == 0 {
		return -1, nil
	}

	searchKey := probe
	searchSortKey := probeSortKey
	for searchKey != "" {
		lo, hi := 0, n-1
		foundAt := -1
		for lo <= hi {
			mid := lo + (hi-lo)/2
			cmp, err := coll.itemCompare(mid, searchKey, searchSortKey, prefixMatch, meta)
			if err != nil {
				return -1, err
			}
			switch {
			case cmp == 0:
				foundAt = mid
				hi = mid - 1 // keep searching left for an earlier equal match
			case cmp < 0:
				lo = mid + 1
			default:
				hi = mid - 1
			}
		}
		if foundAt >= 0 {
			return foundAt, nil
		}
		if !partialMatch {
			return -1, nil
		}

		runes := []rune(searchKey)
		searchKey = string(runes[:len(runes)-1])
		var err error
		searchSortKey, err = getSortKey([]byte(searchKey), meta)
		if err != nil {
			return -1, err
		}
	}
	return -1, nil
}
