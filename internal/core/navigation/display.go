package navigation

import "github.com/samirrijal/fieldnav/internal/core/domain"

// MarkerRole is how a customer marker is drawn.
type MarkerRole string

const (
	RoleCustomer MarkerRole = "customer" // loaded, not on the route
	RoleStart    MarkerRole = "start"
	RoleWaypoint MarkerRole = "waypoint"
	RoleEnd      MarkerRole = "end"
)

// Marker is a labelled customer pin.
type Marker struct {
	CustomerID int64           `json:"customer_id"`
	Label      string          `json:"label"`
	Role       MarkerRole      `json:"role"`
	Point      domain.GeoPoint `json:"point"`
}

// NoticeKind classifies a non-fatal, user-visible session message.
type NoticeKind string

const (
	NoticeRoutingUnavailable     NoticeKind = "routing_unavailable"
	NoticeGeolocationUnavailable NoticeKind = "geolocation_unavailable"
	NoticePositionUnavailable    NoticeKind = "position_unavailable"
	NoticeRecordsUnavailable     NoticeKind = "records_unavailable"
)

// Notice is a non-blocking message for the user.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Display renders session state. Calls are made outside the session lock and
// may come from the tracking goroutines. Implementations must not call back
// into the Session.
type Display interface {
	ShowMarkers(markers []Marker)
	ShowDevice(pos domain.Position)
	// ShowRoute draws path; nil clears the route line.
	ShowRoute(path *domain.Path)
	ShowView(view View)
	Notify(n Notice)
}

// NopDisplay discards everything.
type NopDisplay struct{}

func (NopDisplay) ShowMarkers([]Marker)       {}
func (NopDisplay) ShowDevice(domain.Position) {}
func (NopDisplay) ShowRoute(*domain.Path)     {}
func (NopDisplay) ShowView(View)              {}
func (NopDisplay) Notify(Notice)              {}
