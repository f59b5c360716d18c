// Package fat32test builds an in-memory FAT32 image for use by tests in
// other packages (internal/shell, internal/fatfuse),
// playing the same role operator-framework-operator-registry's
// sqlitefakes sibling package plays for pkg/sqlite: test-only support
// code kept out of the production package but still built with plain
// `go build`, not gated behind _test.go.
//
// It reproduces the same directory shape internal/fat32's own
// fixture_test.go builds for its white-box tests, duplicated rather
// than shared because that file reaches into fat32's unexported
// byte-layout constants and this package only has fat32's public API
// available.
package fat32test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/iansmith/fat32kit/internal/diskimage"
	"github.com/iansmith/fat32kit/internal/fat32"
)

const (
	bytesPerSector      = 512
	sectorsPerCluster   = 1
	reservedSectorCount = 1
	numFATs             = 1
	sectorsPerFAT32     = 1
	dataSector          = reservedSectorCount + numFATs*sectorsPerFAT32

	clusterRoot        = 2
	clusterTestTxt     = 3
	clusterTestDir     = 4
	clusterTestDirFile = 5

	direntSize                   = 32
	direntAttrOffset             = 11
	direntFirstClusterHighOffset = 20
	direntFirstClusterLowOffset  = 26
	direntFileSizeOffset         = 28
	attrDirectory                = 0x10
	attrArchive                  = 0x20
	attrLongName                 = 0x0F

	bootOffsetBytesPerSector      = 11
	bootOffsetSectorsPerCluster   = 13
	bootOffsetReservedSectorCount = 14
	bootOffsetNumFATs             = 16
	bootOffsetSectorsPerFAT32     = 36
	bootOffsetRootCluster         = 44
)

// TestTxtContent and TestDirFileContent are the exact fixture contents,
// matching original_source/tests/fat32_operations.rs's expectations
// (spec.md §8 scenario 4).
const (
	TestTxtContent     = "hello from the root\n"
	TestDirFileContent = "test d'écriture dans un fichier d'un dossier\n"
)

type builder struct {
	sectors map[uint32][]byte
}

func newBuilder() *builder {
	return &builder{sectors: make(map[uint32][]byte)}
}

func (b *builder) setSector(n uint32, data []byte) {
	buf := make([]byte, bytesPerSector)
	copy(buf, data)
	b.sectors[n] = buf
}

func (b *builder) bytes() []byte {
	var maxSector uint32
	for n := range b.sectors {
		if n > maxSector {
			maxSector = n
		}
	}
	out := make([]byte, 0, int(maxSector+1)*bytesPerSector)
	for n := uint32(0); n <= maxSector; n++ {
		s, ok := b.sectors[n]
		if !ok {
			s = make([]byte, bytesPerSector)
		}
		out = append(out, s...)
	}
	return out
}

func clusterToSector(c uint32) uint32 {
	return dataSector + (c-2)*sectorsPerCluster
}

func bootSector() []byte {
	b := make([]byte, bytesPerSector)
	binary.LittleEndian.PutUint16(b[bootOffsetBytesPerSector:], bytesPerSector)
	b[bootOffsetSectorsPerCluster] = sectorsPerCluster
	binary.LittleEndian.PutUint16(b[bootOffsetReservedSectorCount:], reservedSectorCount)
	b[bootOffsetNumFATs] = numFATs
	binary.LittleEndian.PutUint32(b[bootOffsetSectorsPerFAT32:], sectorsPerFAT32)
	binary.LittleEndian.PutUint32(b[bootOffsetRootCluster:], clusterRoot)
	return b
}

func fatSector() []byte {
	b := make([]byte, bytesPerSector)
	set := func(cluster, value uint32) {
		binary.LittleEndian.PutUint32(b[cluster*4:cluster*4+4], value)
	}
	set(0, 0x0FFFFFF8)
	set(1, 0x0FFFFFFF)
	set(clusterRoot, 0x0FFFFFFF)
	set(clusterTestTxt, 0x0FFFFFFF)
	set(clusterTestDir, 0x0FFFFFFF)
	set(clusterTestDirFile, 0x0FFFFFFF)
	return b
}

func shortNameBytes(stem, ext string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[0:8], stem)
	copy(out[8:11], ext)
	return out
}

func sfnEntry(stem, ext string, attr byte, cluster, size uint32) []byte {
	e := make([]byte, direntSize)
	name := shortNameBytes(stem, ext)
	copy(e[0:11], name[:])
	e[direntAttrOffset] = attr
	binary.LittleEndian.PutUint16(e[direntFirstClusterHighOffset:direntFirstClusterHighOffset+2], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(e[direntFirstClusterLowOffset:direntFirstClusterLowOffset+2], uint16(cluster))
	binary.LittleEndian.PutUint32(e[direntFileSizeOffset:direntFileSizeOffset+4], size)
	return e
}

func putUTF16LE(dst []byte, units []uint16) {
	for i, u := range units {
		binary.LittleEndian.PutUint16(dst[i*2:i*2+2], u)
	}
}

// lfnChecksum is the standard FAT long-name checksum; duplicated from
// internal/fat32/directory.go because that symbol is unexported.
func lfnChecksum(name [11]byte) uint8 {
	var sum uint8
	for _, b := range name {
		sum = (sum>>1 | (sum&1)<<7) + b
	}
	return sum
}

func lfnEntries(longName string, shortName [11]byte) [][]byte {
	units := utf16.Encode([]rune(longName))
	checksum := lfnChecksum(shortName)

	const perEntry = 13
	var chunks [][]uint16
	for i := 0; i < len(units); i += perEntry {
		end := i + perEntry
		if end > len(units) {
			end = len(units)
		}
		chunks = append(chunks, append([]uint16{}, units[i:end]...))
	}

	last := chunks[len(chunks)-1]
	if len(last) < perEntry {
		padded := make([]uint16, perEntry)
		copy(padded, last)
		padded[len(last)] = 0x0000
		for i := len(last) + 1; i < perEntry; i++ {
			padded[i] = 0xFFFF
		}
		chunks[len(chunks)-1] = padded
	}

	entries := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		e := make([]byte, direntSize)
		seq := uint8(i + 1)
		ord := seq
		if i == len(chunks)-1 {
			ord |= 0x40
		}
		e[0] = ord
		putUTF16LE(e[1:11], chunk[0:5])
		e[direntAttrOffset] = attrLongName
		e[13] = checksum
		putUTF16LE(e[14:26], chunk[5:11])
		putUTF16LE(e[28:32], chunk[11:13])
		entries[i] = e
	}

	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

func padToCluster(b []byte) []byte {
	out := make([]byte, bytesPerSector*sectorsPerCluster)
	copy(out, b)
	return out
}

func rootDir() []byte {
	var buf bytes.Buffer
	buf.Write(sfnEntry(".", "", attrDirectory, clusterRoot, 0))
	buf.Write(sfnEntry("..", "", attrDirectory, 0, 0))
	buf.Write(sfnEntry("test", "txt", attrArchive, clusterTestTxt, uint32(len(TestTxtContent))))
	buf.Write(sfnEntry("test_dir", "", attrDirectory, clusterTestDir, 0))
	return padToCluster(buf.Bytes())
}

func testDirDir() []byte {
	var buf bytes.Buffer
	buf.Write(sfnEntry(".", "", attrDirectory, clusterTestDir, 0))
	buf.Write(sfnEntry("..", "", attrDirectory, clusterRoot, 0))

	shortName := shortNameBytes("TESTDI~1", "")
	for _, e := range lfnEntries("test_dir_file", shortName) {
		buf.Write(e)
	}
	buf.Write(sfnEntry("TESTDI~1", "", attrArchive, clusterTestDirFile, uint32(len(TestDirFileContent))))
	return padToCluster(buf.Bytes())
}

// BuildFixtureVolume returns an open Volume over the synthetic image
// described by TestTxtContent/TestDirFileContent.
func BuildFixtureVolume(t testing.TB) *fat32.Volume {
	t.Helper()

	b := newBuilder()
	b.setSector(0, bootSector())
	b.setSector(reservedSectorCount, fatSector())
	b.setSector(clusterToSector(clusterRoot), rootDir())
	b.setSector(clusterToSector(clusterTestTxt), []byte(TestTxtContent))
	b.setSector(clusterToSector(clusterTestDir), testDirDir())
	b.setSector(clusterToSector(clusterTestDirFile), []byte(TestDirFileContent))

	v, err := fat32.NewVolume(diskimage.New(b.bytes()))
	if err != nil {
		t.Fatalf("fat32test: NewVolume: %v", err)
	}
	return v
}
