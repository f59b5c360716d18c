package fat32

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iansmith/fat32kit/internal/diskimage"
)

func TestNewVolumeParsesBootSector(t *testing.T) {
	v := buildFixtureVolume(t)
	assert.Equal(t, uint16(fixtureBytesPerSector), v.BytesPerSector)
	assert.Equal(t, uint32(fixtureSectorsPerCluster), v.SectorsPerCluster)
	assert.Equal(t, uint32(clusterRoot), v.RootCluster)
	assert.Equal(t, uint32(fixtureDataSector), v.DataSector)
}

func TestNewVolumeRejectsBadBytesPerSector(t *testing.T) {
	boot := buildFixtureBootSector()
	boot[bootOffsetBytesPerSector] = 0x03 // 515, not a power of two
	boot[bootOffsetBytesPerSector+1] = 0x02

	f := newFixture()
	f.setSector(0, boot)

	_, err := NewVolume(diskimage.New(f.bytes()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedBootSector)
}

func TestNewVolumeRejectsReservedRootCluster(t *testing.T) {
	boot := buildFixtureBootSector()
	boot[bootOffsetRootCluster] = 0
	boot[bootOffsetRootCluster+1] = 0
	boot[bootOffsetRootCluster+2] = 0
	boot[bootOffsetRootCluster+3] = 0

	f := newFixture()
	f.setSector(0, boot)

	_, err := NewVolume(diskimage.New(f.bytes()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedBootSector)
}

func TestReadFATEntryMasksReservedBits(t *testing.T) {
	// Set the top four (reserved) bits of the root cluster's FAT entry.
	fat := buildFixtureFAT()
	binary.LittleEndian.PutUint32(fat[clusterRoot*4:clusterRoot*4+4], 0xFFFFFFFF)

	f := newFixture()
	f.setSector(0, buildFixtureBootSector())
	f.setSector(fixtureReservedSectorCount, fat)
	v, err := NewVolume(diskimage.New(f.bytes()))
	require.NoError(t, err)

	entry, err := v.ReadFATEntry(clusterRoot)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0FFFFFFF), entry)
	assert.True(t, isEndOfChain(entry))
}

func TestReadClusterReturnsClusterBytes(t *testing.T) {
	v := buildFixtureVolume(t)
	data, err := v.ReadCluster(clusterTestTxt)
	require.NoError(t, err)
	assert.Equal(t, testTxtContent, string(data[:len(testTxtContent)]))
}

func TestReadFileRootFile(t *testing.T) {
	v := buildFixtureVolume(t)
	content, err := v.ReadFile("/test.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, testTxtContent, content)
}

func TestReadFileNestedInSubdirectory(t *testing.T) {
	v := buildFixtureVolume(t)
	content, err := v.ReadFile("/test_dir/test_dir_file", 0)
	require.NoError(t, err)
	assert.Equal(t, testDirFileContent, content)
}

func TestReadFileRelativeToCurrentCluster(t *testing.T) {
	v := buildFixtureVolume(t)
	content, err := v.ReadFile("test_dir_file", clusterTestDir)
	require.NoError(t, err)
	assert.Equal(t, testDirFileContent, content)
}

func TestReadFileMissingPathIsEntryNotFound(t *testing.T) {
	v := buildFixtureVolume(t)
	_, err := v.ReadFile("/nope.txt", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestReadFileOnADirectoryIsNotAFile(t *testing.T) {
	v := buildFixtureVolume(t)
	_, err := v.ReadFile("/test_dir", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAFile)
}

func TestParsePathThroughNonDirectorySegmentFails(t *testing.T) {
	v := buildFixtureVolume(t)
	_, err := v.ParsePath("/test.txt/anything", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotADirectory)
}

func TestParsePathDotDotReturnsToParent(t *testing.T) {
	v := buildFixtureVolume(t)
	info, err := v.ParsePath("..", clusterTestDir)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, uint32(clusterRoot), info.StartCluster)
}

func TestParsePathDotDotAtRootStaysAtRoot(t *testing.T) {
	v := buildFixtureVolume(t)
	info, err := v.ParsePath("..", 0)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, v.RootCluster, info.StartCluster)
}

func TestParsePathMissingEntryReturnsNilWithoutError(t *testing.T) {
	v := buildFixtureVolume(t)
	info, err := v.ParsePath("/missing", 0)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestReadSectorOutOfBoundsWrapsDiskimageError(t *testing.T) {
	v := buildFixtureVolume(t)
	_, err := v.ReadSector(1_000_000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diskimage.ErrOutOfBounds))
}
