package domain

// ActorType identifies who performed an operation.
type ActorType string

// Actor types.
const (
	ActorAdmin    ActorType = "ADMIN"
	ActorDirector ActorType = "DIRECTOR"
	ActorParent   ActorType = "PARENT"
	ActorSystem   ActorType = "SYSTEM"
)

// Actor is the authenticated session passed explicitly into operations.
// SchoolID is set for directors and parents.
type Actor struct {
	ID       string    `json:"id"`
	Type     ActorType `json:"type"`
	SchoolID string    `json:"schoolId,omitempty"`
}

// SystemActor is used for provider callbacks and other unauthenticated paths.
var SystemActor = Actor{ID: "system", Type: ActorSystem}

// CanAccessSchool reports whether the actor may read data of schoolID.
func (a Actor) CanAccessSchool(schoolID string) bool {
	switch a.Type {
	case ActorAdmin, ActorSystem:
		return true
	case ActorDirector, ActorParent:
		return a.SchoolID != "" && a.SchoolID == schoolID
	}
	return false
}
