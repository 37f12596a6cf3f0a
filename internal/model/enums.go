package model

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// ArtifactKind names one of the two artifact namespaces. The value doubles as
// the directory name under STORAGE_ROOT.
type ArtifactKind string

const (
	ArtifactOriginal  ArtifactKind = "originals"
	ArtifactProcessed ArtifactKind = "processed"
)

func (k ArtifactKind) Valid() bool {
	return k == ArtifactOriginal || k == ArtifactProcessed
}
