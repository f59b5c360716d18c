// Package fat32 implements read-only access to a FAT32 volume backed by
// an internal/diskimage.Image: boot-sector parsing, FAT chain
// traversal, directory enumeration with Long File Name reassembly, and
// path resolution. Ported from original_source/src/file_system.rs's
// Fat32FileSystem (spec.md §4.5–§4.7).
package fat32

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/iansmith/fat32kit/internal/diskimage"
)

// Boot sector field offsets, per the BIOS Parameter Block layout that
// original_source/src/file_system.rs's BootOffsets enumerates.
const (
	bootOffsetBytesPerSector      = 11
	bootOffsetSectorsPerCluster   = 13
	bootOffsetReservedSectorCount = 14
	bootOffsetNumFATs             = 16
	bootOffsetSectorsPerFAT32     = 36
	bootOffsetRootCluster         = 44
	bootSectorReadSize            = 48

	fatEntryMask  = 0x0FFFFFFF
	endOfChainMin = 0x0FFFFFF8

	// rootSentinelCluster is used when a caller asks for the "current"
	// cluster but has not entered any directory yet; cluster 0 is
	// reserved in FAT32 and never a valid directory cluster, so it
	// safely doubles as "use Volume.RootCluster" (see ParsePath).
	rootSentinelCluster = 0
)

// Volume is an open, read-only FAT32 volume.
type Volume struct {
	disk *diskimage.Image

	BytesPerSector    uint16
	SectorsPerCluster uint32
	FATSector         uint32
	DataSector        uint32
	RootCluster       uint32
}

// NewVolume parses disk's boot sector and returns a ready Volume.
func NewVolume(disk *diskimage.Image) (*Volume, error) {
	boot, err := disk.Slice(0, bootSectorReadSize)
	if err != nil {
		return nil, errors.Wrap(err, "fat32: reading boot sector")
	}

	bytesPerSector := binary.LittleEndian.Uint16(boot[bootOffsetBytesPerSector : bootOffsetBytesPerSector+2])
	sectorsPerCluster := uint32(boot[bootOffsetSectorsPerCluster])
	reservedSectorCount := uint32(binary.LittleEndian.Uint16(boot[bootOffsetReservedSectorCount : bootOffsetReservedSectorCount+2]))
	numFATs := uint32(boot[bootOffsetNumFATs])
	sectorsPerFAT32 := binary.LittleEndian.Uint32(boot[bootOffsetSectorsPerFAT32 : bootOffsetSectorsPerFAT32+4])
	rootCluster := binary.LittleEndian.Uint32(boot[bootOffsetRootCluster : bootOffsetRootCluster+4])

	if bytesPerSector == 0 || bytesPerSector&(bytesPerSector-1) != 0 {
		return nil, errors.Wrapf(ErrMalformedBootSector, "bytes_per_sector=%d is not a power of two", bytesPerSector)
	}
	if sectorsPerCluster == 0 {
		return nil, errors.Wrap(ErrMalformedBootSector, "sectors_per_cluster=0")
	}
	if rootCluster < 2 {
		return nil, errors.Wrapf(ErrMalformedBootSector, "root_cluster=%d is reserved", rootCluster)
	}

	return &Volume{
		disk:              disk,
		BytesPerSector:    bytesPerSector,
		SectorsPerCluster: sectorsPerCluster,
		FATSector:         reservedSectorCount,
		DataSector:        reservedSectorCount + numFATs*sectorsPerFAT32,
		RootCluster:       rootCluster,
	}, nil
}

// ReadSector returns the raw bytes of the sector at the given LBA.
func (v *Volume) ReadSector(sector uint32) ([]byte, error) {
	offset := int(sector) * int(v.BytesPerSector)
	data, err := v.disk.Slice(offset, int(v.BytesPerSector))
	if err != nil {
		return nil, errors.Wrapf(err, "fat32: reading sector %d", sector)
	}
	return data, nil
}

// ReadCluster returns the raw bytes of the data cluster numbered
// cluster (clusters are numbered from 2; 0 and 1 are reserved).
func (v *Volume) ReadCluster(cluster uint32) ([]byte, error) {
	if cluster < 2 {
		return nil, errors.Errorf("fat32: cluster %d is reserved", cluster)
	}

	first := v.DataSector + (cluster-2)*v.SectorsPerCluster
	buf := make([]byte, 0, int(v.SectorsPerCluster)*int(v.BytesPerSector))
	for i := uint32(0); i < v.SectorsPerCluster; i++ {
		sector, err := v.ReadSector(first + i)
		if err != nil {
			return nil, err
		}
		buf = append(buf, sector...)
	}
	return buf, nil
}

// ReadFATEntry returns the 28-bit FAT entry for cluster: either the
// next cluster in its chain, or a value >= endOfChainMin marking the
// end of the chain.
func (v *Volume) ReadFATEntry(cluster uint32) (uint32, error) {
	byteOffset := cluster * 4
	sector := v.FATSector + byteOffset/uint32(v.BytesPerSector)
	within := byteOffset % uint32(v.BytesPerSector)

	data, err := v.ReadSector(sector)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data[within:within+4]) & fatEntryMask, nil
}

func isEndOfChain(entry uint32) bool {
	return entry >= endOfChainMin
}

// ReadFile resolves path (relative to currentCluster, or the root if
// currentCluster is 0) and returns its contents decoded as UTF-8. It
// fails with ErrEntryNotFound, ErrNotAFile, or ErrInvalidEncoding as
// appropriate.
func (v *Volume) ReadFile(path string, currentCluster uint32) (string, error) {
	info, err := v.ParsePath(path, currentCluster)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", errors.Wrapf(ErrEntryNotFound, "path=%q", path)
	}
	content, err := v.ReadFileInfo(*info)
	if err != nil {
		return "", errors.Wrapf(err, "path=%q", path)
	}
	return content, nil
}

// ReadFileInfo reads the full contents of a file already resolved as a
// FileInfo (e.g. from ListDirectory), without re-walking a path. Callers
// that already hold a FileInfo — internal/fatfuse's ReadFile handler,
// in particular — use this directly instead of paying for ParsePath
// again.
func (v *Volume) ReadFileInfo(info FileInfo) (string, error) {
	if info.IsDirectory {
		return "", ErrNotAFile
	}

	var data []byte
	cluster := info.StartCluster
	for cluster != 0 {
		chunk, err := v.ReadCluster(cluster)
		if err != nil {
			return "", err
		}
		data = append(data, chunk...)

		next, err := v.ReadFATEntry(cluster)
		if err != nil {
			return "", err
		}
		if isEndOfChain(next) {
			break
		}
		cluster = next
	}

	if uint32(len(data)) > info.Size {
		data = data[:info.Size]
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return string(data), nil
}

// ParsePath resolves a '/'-separated path against currentCluster (or
// the volume root when currentCluster is 0, or when path is absolute).
// It returns (nil, nil) — not an error — when the path does not
// resolve, matching original_source/src/file_system.rs's parse_path
// returning Option<FileInfo>; callers that need an error (ReadFile)
// wrap that case in ErrEntryNotFound themselves. A path with no segments
// (empty, or all slashes) also resolves to (nil, nil): parse_path has no
// zero-segment branch and falls through to its trailing None, so this
// does not special-case the root the way callers might expect — the
// current-directory shortcut for "" lives in internal/shell.Entries
// instead, one layer up.
func (v *Volume) ParsePath(path string, currentCluster uint32) (*FileInfo, error) {
	cluster := currentCluster
	if cluster == rootSentinelCluster || strings.HasPrefix(path, "/") {
		cluster = v.RootCluster
	}

	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}

	for i, part := range parts {
		last := i == len(parts)-1

		if part == ".." {
			parent, err := v.findParentCluster(cluster)
			if err != nil {
				return nil, err
			}
			if parent == nil {
				return nil, nil
			}
			cluster = *parent
			if last {
				return &FileInfo{Name: "..", IsDirectory: true, StartCluster: cluster}, nil
			}
			continue
		}
		if part == "." {
			if last {
				return &FileInfo{Name: ".", IsDirectory: true, StartCluster: cluster}, nil
			}
			continue
		}

		entries, err := ListDirectory(v, cluster)
		if err != nil {
			return nil, err
		}

		var found *FileInfo
		for idx := range entries {
			if entries[idx].Name == part {
				found = &entries[idx]
				break
			}
		}
		if found == nil {
			return nil, nil
		}
		if last {
			return found, nil
		}
		if !found.IsDirectory {
			return nil, errors.Wrapf(ErrNotADirectory, "path=%q segment=%q", path, part)
		}
		cluster = found.StartCluster
	}

	// Unreachable: the loop above always returns on its last iteration.
	return nil, nil
}

// findParentCluster looks up the cluster that current's ".." entry
// points to. The volume root is its own parent, so for the root it
// returns the root cluster; it returns nil if current has no ".." entry.
// Grounded on original_source/src/file_system.rs's find_parent_cluster.
func (v *Volume) findParentCluster(current uint32) (*uint32, error) {
	if current == v.RootCluster {
		root := v.RootCluster
		return &root, nil
	}

	entries, err := ListDirectory(v, current)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == ".." {
			parent := e.StartCluster
			if parent == 0 {
				parent = v.RootCluster
			}
			return &parent, nil
		}
	}
	return nil, nil
}
