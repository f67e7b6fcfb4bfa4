package watcher

// Flag bits of a native notification mask. The native source may coalesce
// several flags for the same item and path into one notification, but never
// across different items or different paths.
const (
	ItemCreated uint64 = 1 << iota
	ItemRemoved
	ItemModified
	ItemRenamed
	ItemInodeMetaMod
	ItemXattrMod
	ItemChangeOwner
	ItemIsDir
	RootChanged
)

// Notification is one entry of a native event batch.
type Notification struct {
	Path  string
	Inode uint64
	Mask  uint64
	ID    uint64
}

func (n Notification) Has(flag uint64) bool {
	return n.Mask&flag == flag
}

// isMetaMod reports whether the notification indicates a metadata change.
func (n Notification) isMetaMod() bool {
	return n.Has(ItemInodeMetaMod) || n.Has(ItemXattrMod) || n.Has(ItemChangeOwner)
}
