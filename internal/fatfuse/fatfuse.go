// Package fatfuse exposes a fat32.Volume as a read-only, mountable
// directory tree via github.com/jacobsa/fuse. Grounded on
// distr1-distri/internal/fuse/fuse.go, which wraps the same
// jacobsa/fuse + fuseops + fuseutil trio around a read-only package
// store; this is a supplemented feature (spec.md's Non-goals exclude
// write operations and format variants, not alternate read-side
// frontends — original_source has no FUSE analogue at all).
package fatfuse

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iansmith/fat32kit/internal/fat32"
)

// dirEntryKey identifies a directory entry by the inode it was found
// under and its name, so repeated lookups of the same entry return the
// same inode number for the lifetime of the mount.
type dirEntryKey struct {
	parent fuseops.InodeID
	name   string
}

type node struct {
	info    fat32.FileInfo
	cluster uint32 // valid when info.IsDirectory

	contentOnce sync.Once
	content     string
	contentErr  error
}

// FS implements fuseutil.FileSystem over a fat32.Volume. It embeds
// NotImplementedFileSystem so unimplemented operations (everything
// write-related) fail with ENOSYS automatically, the same pattern
// distri's fuseFS uses.
type FS struct {
	fuseutil.NotImplementedFileSystem

	volume *fat32.Volume
	log    *logrus.Entry

	mu     sync.Mutex
	nodes  map[fuseops.InodeID]*node
	byKey  map[dirEntryKey]fuseops.InodeID
	nextID fuseops.InodeID
}

// New returns an FS rooted at volume's root directory.
func New(volume *fat32.Volume, log *logrus.Logger) *FS {
	if log == nil {
		log = logrus.StandardLogger()
	}
	fs := &FS{
		volume: volume,
		log:    log.WithField("component", "fatfuse"),
		nodes:  make(map[fuseops.InodeID]*node),
		byKey:  make(map[dirEntryKey]fuseops.InodeID),
		nextID: fuseops.RootInodeID + 1,
	}
	fs.nodes[fuseops.RootInodeID] = &node{
		info:    fat32.FileInfo{Name: "/", IsDirectory: true, StartCluster: volume.RootCluster},
		cluster: volume.RootCluster,
	}
	return fs
}

// Mount mounts volume read-only at mountpoint, mirroring
// distri/internal/fuse.go's fuse.Mount call: no write support is
// advertised and Open{Dir,File} are skipped at the kernel level for
// performance, since this file system never needs per-handle state.
func Mount(ctx context.Context, volume *fat32.Volume, mountpoint string, log *logrus.Logger) (*fuse.MountedFileSystem, error) {
	fs := New(volume, log)
	server := fuseutil.NewFileSystemServer(fs)

	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName:                 "fat32kit",
		ReadOnly:               true,
		EnableNoOpenSupport:    true,
		EnableNoOpendirSupport: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fatfuse: mounting at %q", mountpoint)
	}
	return mfs, nil
}

// internLocked assigns (or returns the existing) inode for a directory
// entry found under parent. Callers must hold fs.mu.
func (fs *FS) internLocked(parent fuseops.InodeID, info fat32.FileInfo) fuseops.InodeID {
	k := dirEntryKey{parent: parent, name: info.Name}
	if id, ok := fs.byKey[k]; ok {
		return id
	}
	id := fs.nextID
	fs.nextID++
	fs.nodes[id] = &node{info: info, cluster: info.StartCluster}
	fs.byKey[k] = id
	return id
}

func attributesFor(info fat32.FileInfo) fuseops.InodeAttributes {
	mode := os.FileMode(0o444)
	if info.IsDirectory {
		mode = os.ModeDir | 0o555
	}
	now := time.Now()
	return fuseops.InodeAttributes{
		Size:  uint64(info.Size),
		Nlink: 1,
		Mode:  mode,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

func (fs *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	blockSize := uint32(fs.volume.BytesPerSector) * fs.volume.SectorsPerCluster
	op.BlockSize = blockSize
	op.IoSize = blockSize
	return nil
}

func (fs *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, ok := fs.nodes[op.Parent]
	if !ok || !parent.info.IsDirectory {
		return fuse.ENOENT
	}

	entries, err := fat32.ListDirectory(fs.volume, parent.cluster)
	if err != nil {
		fs.log.WithError(err).WithField("cluster", parent.cluster).Warn("ListDirectory failed")
		return fuse.EIO
	}

	for _, e := range entries {
		if e.Name != op.Name {
			continue
		}
		id := fs.internLocked(op.Parent, e)
		op.Entry.Child = id
		op.Entry.Attributes = attributesFor(e)
		return nil
	}
	return fuse.ENOENT
}

func (fs *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.nodes[op.Inode]
	if !ok {
		return fuse.ENOENT
	}
	op.Attributes = attributesFor(n.info)
	return nil
}

func (fs *FS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	// EnableNoOpendirSupport means the kernel never sends this; kept to
	// document intent, matching distri's fuseFS.OpenDir.
	return fuse.ENOSYS
}

func (fs *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	n, ok := fs.nodes[op.Inode]
	if !ok || !n.info.IsDirectory {
		fs.mu.Unlock()
		return fuse.EIO
	}

	entries, err := fat32.ListDirectory(fs.volume, n.cluster)
	if err != nil {
		fs.mu.Unlock()
		fs.log.WithError(err).WithField("cluster", n.cluster).Warn("ListDirectory failed")
		return fuse.EIO
	}

	dirents := make([]fuseutil.Dirent, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		id := fs.internLocked(op.Inode, e)
		direntType := fuseutil.DT_File
		if e.IsDirectory {
			direntType = fuseutil.DT_Directory
		}
		dirents = append(dirents, fuseutil.Dirent{
			Offset: fuseops.DirOffset(len(dirents) + 1),
			Inode:  id,
			Name:   e.Name,
			Type:   direntType,
		})
	}
	fs.mu.Unlock()

	if op.Offset > fuseops.DirOffset(len(dirents)) {
		return fuse.EIO
	}
	for _, d := range dirents[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], d)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *FS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	// EnableNoOpenSupport means the kernel never sends this either.
	return fuse.ENOSYS
}

func (fs *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	n, ok := fs.nodes[op.Inode]
	fs.mu.Unlock()
	if !ok || n.info.IsDirectory {
		return fuse.EIO
	}

	n.contentOnce.Do(func() {
		n.content, n.contentErr = fs.volume.ReadFileInfo(n.info)
	})
	if n.contentErr != nil {
		fs.log.WithError(n.contentErr).WithField("name", n.info.Name).Warn("ReadFile failed")
		return fuse.EIO
	}

	if op.Offset >= int64(len(n.content)) {
		op.BytesRead = 0
		return nil
	}
	op.BytesRead = copy(op.Dst, n.content[op.Offset:])
	return nil
}
