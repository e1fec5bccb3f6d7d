// Package nav decides which top-level views a session may reach. The check
// is advisory, a UX convenience only: the backend enforces authorization
// independently on every call.
package nav

import (
	"github.com/victornm/elearn/internal/domain"
)

type Route string

const (
	RouteLogin          Route = "login"
	RouteStudentHome    Route = "student"
	RouteInstructorHome Route = "instructor"
)

// CanAccess reports whether the session may reach a view gated on the
// given role. An empty required role admits any authenticated session.
func CanAccess(ss *domain.Session, required domain.Role) bool {
	if ss == nil {
		return false
	}
	if required == "" {
		return true
	}

	return ss.Role == required
}

// Home is the landing view for a role.
func Home(role domain.Role) Route {
	if role == domain.RoleInstructor {
		return RouteInstructorHome
	}

	return RouteStudentHome
}

// Resolve routes a navigation attempt: unauthenticated sessions go to
// login, authenticated sessions with the wrong role go to their own home
// view, never to an error page.
func Resolve(ss *domain.Session, required domain.Role, target Route) Route {
	if ss == nil {
		return RouteLogin
	}
	if !CanAccess(ss, required) {
		return Home(ss.Role)
	}

	return target
}
