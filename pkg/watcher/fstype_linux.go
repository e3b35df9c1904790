//go:build linux

package watcher

import "golang.org/x/sys/unix"

// Superblock magic numbers from statfs(2).
const (
	nfsMagic  = 0x6969
	smbMagic  = 0x517B
	smb2Magic = 0xFE534D42
	cifsMagic = 0xFF534D42
	fuseMagic = 0x65735546
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	switch uint32(st.Type) {
	case nfsMagic:
		return FSTypeNFS
	case smbMagic, smb2Magic, cifsMagic:
		return FSTypeSMB
	case fuseMagic:
		// sshfs is the common case but indistinguishable here
		return FSTypeFUSE
	}
	return FSTypeLocal
}
