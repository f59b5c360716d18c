package fat32

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/iansmith/fat32kit/internal/diskimage"
)

// The binary test.img fixture referenced by original_source/tests was
// filtered out of the retrieval pack (see original_source/_INDEX.md), so
// these helpers build an equivalent synthetic image byte-for-byte,
// reproducing the same shape: a root directory holding test.txt and
// test_dir, and test_dir holding test_dir_file with the exact content
// from original_source/tests/fat32_operations.rs.
const (
	fixtureBytesPerSector      = 512
	fixtureSectorsPerCluster   = 1
	fixtureReservedSectorCount = 1
	fixtureNumFATs             = 1
	fixtureSectorsPerFAT32     = 1
	fixtureDataSector          = fixtureReservedSectorCount + fixtureNumFATs*fixtureSectorsPerFAT32

	clusterRoot        = 2
	clusterTestTxt     = 3
	clusterTestDir     = 4
	clusterTestDirFile = 5
)

const (
	testTxtContent     = "hello from the root\n"
	testDirFileContent = "test d'écriture dans un fichier d'un dossier\n"
)

type fixture struct {
	sectors map[uint32][]byte
}

func newFixture() *fixture {
	return &fixture{sectors: make(map[uint32][]byte)}
}

func (f *fixture) setSector(n uint32, data []byte) {
	buf := make([]byte, fixtureBytesPerSector)
	copy(buf, data)
	f.sectors[n] = buf
}

func (f *fixture) bytes() []byte {
	var maxSector uint32
	for n := range f.sectors {
		if n > maxSector {
			maxSector = n
		}
	}
	out := make([]byte, 0, int(maxSector+1)*fixtureBytesPerSector)
	for n := uint32(0); n <= maxSector; n++ {
		s, ok := f.sectors[n]
		if !ok {
			s = make([]byte, fixtureBytesPerSector)
		}
		out = append(out, s...)
	}
	return out
}

func clusterToSector(c uint32) uint32 {
	return fixtureDataSector + (c-2)*fixtureSectorsPerCluster
}

func buildFixtureBootSector() []byte {
	b := make([]byte, fixtureBytesPerSector)
	binary.LittleEndian.PutUint16(b[bootOffsetBytesPerSector:], fixtureBytesPerSector)
	b[bootOffsetSectorsPerCluster] = fixtureSectorsPerCluster
	binary.LittleEndian.PutUint16(b[bootOffsetReservedSectorCount:], fixtureReservedSectorCount)
	b[bootOffsetNumFATs] = fixtureNumFATs
	binary.LittleEndian.PutUint32(b[bootOffsetSectorsPerFAT32:], fixtureSectorsPerFAT32)
	binary.LittleEndian.PutUint32(b[bootOffsetRootCluster:], clusterRoot)
	return b
}

func buildFixtureFAT() []byte {
	b := make([]byte, fixtureBytesPerSector)
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

// lfnEntries builds the LFN entries preceding an SFN entry, in on-disk
// order (highest sequence number first, as FAT32 requires), encoding
// longName and tagged with shortName's checksum so the real lfnChecksum
// reassembly path in directory.go can reassociate them.
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
	out := make([]byte, fixtureBytesPerSector*fixtureSectorsPerCluster)
	copy(out, b)
	return out
}

func buildFixtureRootDir() []byte {
	var buf bytes.Buffer
	buf.Write(sfnEntry(".", "", attrDirectory, clusterRoot, 0))
	buf.Write(sfnEntry("..", "", attrDirectory, 0, 0))
	buf.Write(sfnEntry("test", "txt", 0x20, clusterTestTxt, uint32(len(testTxtContent))))
	buf.Write(sfnEntry("test_dir", "", attrDirectory, clusterTestDir, 0))
	return padToCluster(buf.Bytes())
}

func buildFixtureTestDirDir() []byte {
	var buf bytes.Buffer
	buf.Write(sfnEntry(".", "", attrDirectory, clusterTestDir, 0))
	buf.Write(sfnEntry("..", "", attrDirectory, clusterRoot, 0))

	shortName := shortNameBytes("TESTDI~1", "")
	for _, e := range lfnEntries("test_dir_file", shortName) {
		buf.Write(e)
	}
	buf.Write(sfnEntry("TESTDI~1", "", 0x20, clusterTestDirFile, uint32(len(testDirFileContent))))
	return padToCluster(buf.Bytes())
}

func buildFixtureVolume(t *testing.T) *Volume {
	t.Helper()

	f := newFixture()
	f.setSector(0, buildFixtureBootSector())
	f.setSector(fixtureReservedSectorCount, buildFixtureFAT())
	f.setSector(clusterToSector(clusterRoot), buildFixtureRootDir())
	f.setSector(clusterToSector(clusterTestTxt), []byte(testTxtContent))
	f.setSector(clusterToSector(clusterTestDir), buildFixtureTestDirDir())
	f.setSector(clusterToSector(clusterTestDirFile), []byte(testDirFileContent))

	v, err := NewVolume(diskimage.New(f.bytes()))
	if err != nil {
		t.Fatalf("NewVolume: %v", err)
	}
	return v
}
