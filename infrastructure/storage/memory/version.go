package memory

// versionCheck is the outcome of comparing an incoming entity revision with
// the stored one.
type versionCheck int

const (
	versionOK versionCheck = iota
	versionConflict
	versionMissing
)

// checkVersion applies the optimistic concurrency rules shared by every
// repository: Version 0 inserts a new entity, a matching Version updates it.
func checkVersion(exists bool, stored, incoming int64) versionCheck {
	switch {
	case incoming == 0 && exists:
		return versionConflict
	case incoming == 0:
		return versionOK
	case !exists:
		return versionMissing
	case stored != incoming:
		return versionConflict
	default:
		return versionOK
	}
}
