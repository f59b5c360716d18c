package fat32

// FileInfo describes one resolved directory entry: its display name (long
// name if present and checksum-valid, 8.3 short name otherwise), whether
// it is a directory, its size in bytes, and the first cluster of its data
// chain. Grounded on original_source/src/file_system.rs's FileInfo.
type FileInfo struct {
	Name         string
	IsDirectory  bool
	Size         uint32
	StartCluster uint32
}
