package core

// Actor roles
const (
	RoleAdmin   = "admin"
	RoleLearner = "learner"
)

// Actor is the verified identity performing an operation, as supplied by the
// upstream auth layer. Workflow calls take it explicitly; nothing in the
// domain derives it from ambient state.
type Actor struct {
	ID   string
	Name string
	Role string
}

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsLearner() bool { return a.Role == RoleLearner }
