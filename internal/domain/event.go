package domain

const (
	EventNameSessionExpired    = "session.expired"
	EventNameEnrollmentChanged = "enrollment.changed"
)

// EventSessionExpired is published when the backend rejects the bearer
// token (401). Every workflow treats it the same way: the session is gone.
type EventSessionExpired struct {
	Path string
}

func (EventSessionExpired) Name() string { return EventNameSessionExpired }

type EventEnrollmentChanged struct {
	CourseID string
	Enrolled bool
}

func (EventEnrollmentChanged) Name() string { return EventNameEnrollmentChanged }
