package watcher

const (
	KindCreate = "CREATE"
	KindDelete = "DELETE"
	KindChange = "CHANGE"
	KindMove   = "MOVE"
)

// Event is a normalized filesystem event delivered to consumers.
type Event struct {
	Kind     string
	Path     string
	DestPath string // set for KindMove only
	IsDir    bool
}
