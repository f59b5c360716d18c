package fat32

import (
	"encoding/binary"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Directory entries are 32 bytes wide; the layout below is the canonical
// one from original_source/src/file_system.rs's DirOffsets, not the
// earlier disk.rs draft that put Attr at offset 13 (see SPEC_FULL.md §6 /
// DESIGN.md for why that draft was rejected).
const (
	direntSize                   = 32
	direntAttrOffset             = 11
	direntFirstClusterHighOffset = 20
	direntFirstClusterLowOffset  = 26
	direntFileSizeOffset         = 28

	attrVolumeLabel = 0x08
	attrDirectory   = 0x10
	attrLongName    = 0x0F
)

// lfnFragment holds one decoded 13-UTF-16-unit span of a long file name,
// tagged with its sequence number (the low 5 bits of the LFN ordinal
// byte) so fragments collected out of on-disk order can be sorted before
// concatenation.
type lfnFragment struct {
	seq   uint8
	units []uint16
}

// ListDirectory decodes the 32-byte directory entries in a single
// directory cluster, reassembling any preceding Long File Name entries
// onto the short-name entry they describe. It deliberately reads only
// the one cluster it is given rather than following cluster's FAT chain:
// original_source/src/file_system.rs's list_directory_entries has the
// same limitation (a single fs.read_cluster(cluster_id) call), and
// spec.md §4.6 describes directory listing the same way.
func ListDirectory(v *Volume, cluster uint32) ([]FileInfo, error) {
	data, err := v.ReadCluster(cluster)
	if err != nil {
		return nil, err
	}

	var results []FileInfo
	var fragments []lfnFragment
	var expectedChecksum *uint8

	for off := 0; off+direntSize <= len(data); off += direntSize {
		entry := data[off : off+direntSize]
		marker := entry[0]

		if marker == 0x00 {
			break
		}
		if marker == 0xE5 {
			fragments = nil
			expectedChecksum = nil
			continue
		}

		if entry[direntAttrOffset] == attrLongName {
			fragments, expectedChecksum = processLFNEntry(entry, fragments, expectedChecksum)
			continue
		}

		info, ok := processDataEntry(entry, fragments, expectedChecksum)
		fragments = nil
		expectedChecksum = nil
		if ok {
			results = append(results, info)
		}
	}
	return results, nil
}

// processLFNEntry folds one LFN directory entry into the in-progress
// fragment set. Ported from original_source/src/file_system.rs's
// process_lfn_entry.
func processLFNEntry(entry []byte, fragments []lfnFragment, expectedChecksum *uint8) ([]lfnFragment, *uint8) {
	ord := entry[0]
	seq := ord & 0x1F
	isLast := ord&0x40 != 0
	checksum := entry[13]

	if isLast {
		fragments = nil
		c := checksum
		expectedChecksum = &c
	}

	var units []uint16
	units = append(units, decodeUTF16LEBytes(entry[1:11])...)
	units = append(units, decodeUTF16LEBytes(entry[14:26])...)
	units = append(units, decodeUTF16LEBytes(entry[28:32])...)

	for i := range fragments {
		if fragments[i].seq == seq {
			fragments[i].units = units
			return fragments, expectedChecksum
		}
	}
	return append(fragments, lfnFragment{seq: seq, units: units}), expectedChecksum
}

// processDataEntry turns a short-name (8.3) directory entry into a
// FileInfo, preferring the reassembled long name when the accumulated
// fragments' checksum matches this entry's 8.3 name. Ported from
// original_source/src/file_system.rs's process_data_entry.
func processDataEntry(entry []byte, fragments []lfnFragment, expectedChecksum *uint8) (FileInfo, bool) {
	attr := entry[direntAttrOffset]
	if attr&attrVolumeLabel != 0 {
		return FileInfo{}, false
	}

	var shortName [11]byte
	copy(shortName[:], entry[0:11])

	highCluster := uint32(binary.LittleEndian.Uint16(entry[direntFirstClusterHighOffset : direntFirstClusterHighOffset+2]))
	lowCluster := uint32(binary.LittleEndian.Uint16(entry[direntFirstClusterLowOffset : direntFirstClusterLowOffset+2]))
	size := binary.LittleEndian.Uint32(entry[direntFileSizeOffset : direntFileSizeOffset+4])

	name := shortNameToString(shortName)
	if len(fragments) > 0 && expectedChecksum != nil && lfnChecksum(shortName) == *expectedChecksum {
		if assembled, ok := assembleLFN(fragments); ok {
			name = assembled
		}
	}

	return FileInfo{
		Name:         name,
		IsDirectory:  attr&attrDirectory != 0,
		Size:         size,
		StartCluster: (highCluster << 16) | lowCluster,
	}, true
}

// assembleLFN sorts fragments by sequence number, concatenates their
// UTF-16 units (stopping at the first 0x0000 terminator and skipping
// 0xFFFF padding), and decodes the result. It returns ok=false if the
// units do not form valid UTF-16, mirroring Rust's fallible
// String::from_utf16 — Go's unicode/utf16.Decode never errors, instead
// substituting utf8.RuneError for an unpaired surrogate, so that
// substitution is treated as a decode failure here.
func assembleLFN(fragments []lfnFragment) (string, bool) {
	if len(fragments) == 0 {
		return "", false
	}
	sorted := make([]lfnFragment, len(fragments))
	copy(sorted, fragments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].seq < sorted[j].seq })

	var units []uint16
outer:
	for _, f := range sorted {
		for _, u := range f.units {
			switch u {
			case 0x0000:
				break outer
			case 0xFFFF:
				continue
			default:
				units = append(units, u)
			}
		}
	}

	runes := utf16.Decode(units)
	for _, r := range runes {
		if r == utf8.RuneError {
			return "", false
		}
	}
	return string(runes), true
}

// lfnChecksum is the standard FAT long-name checksum, computed over the
// 11-byte short name: sum = ((sum>>1)|(sum<<7)) + byte, wrapping on
// uint8 overflow (Go's default arithmetic behavior, same as Rust's
// wrapping_add).
func lfnChecksum(name [11]byte) uint8 {
	var sum uint8
	for _, b := range name {
		sum = (sum>>1 | (sum&1)<<7) + b
	}
	return sum
}

// shortNameToString renders an 11-byte 8.3 name as "STEM.EXT", trimming
// trailing space padding and omitting the dot when there is no
// extension. Ported from original_source/src/file_system.rs's
// short_name_to_string.
func shortNameToString(name [11]byte) string {
	stem := strings.TrimRight(string(name[0:8]), " ")
	ext := strings.TrimRight(string(name[8:11]), " ")
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

func decodeUTF16LEBytes(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return out
}
