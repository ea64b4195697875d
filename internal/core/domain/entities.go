package domain

import (
	"strings"
	"time"
)

// Customer is a geo-located field customer held by the registry.
type Customer struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name" validate:"required,max=200"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Contact   string  `json:"contact,omitempty" validate:"max=200"`
}

// Point returns the customer's coordinate.
func (c Customer) Point() GeoPoint {
	return GeoPoint{Lat: c.Latitude, Lon: c.Longitude}
}

// CustomerFields is a client payload for creating or patching a customer.
// A nil field is absent: required on create, left unchanged on update.
type CustomerFields struct {
	Name      *string  `json:"name,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Contact   *string  `json:"contact,omitempty"`
}

// NewCustomer builds an unsaved customer (ID 0) from a create payload.
func NewCustomer(f CustomerFields) (Customer, error) {
	var missing []string
	if f.Name == nil {
		missing = append(missing, "name is required")
	}
	if f.Latitude == nil {
		missing = append(missing, "latitude is required")
	}
	if f.Longitude == nil {
		missing = append(missing, "longitude is required")
	}
	if len(missing) > 0 {
		return Customer{}, &ValidationError{Problems: missing}
	}

	c := Customer{}.Apply(f)
	if err := ValidateCustomer(c); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// Apply merges the present fields over c. The ID is never touched.
func (c Customer) Apply(f CustomerFields) Customer {
	if f.Name != nil {
		c.Name = strings.TrimSpace(*f.Name)
	}
	if f.Latitude != nil {
		c.Latitude = *f.Latitude
	}
	if f.Longitude != nil {
		c.Longitude = *f.Longitude
	}
	if f.Contact != nil {
		c.Contact = strings.TrimSpace(*f.Contact)
	}
	return c
}

// CustomerEventType names a committed registry mutation.
type CustomerEventType string

const (
	CustomerCreated CustomerEventType = "created"
	CustomerUpdated CustomerEventType = "updated"
	CustomerDeleted CustomerEventType = "deleted"
)

// CustomerEvent is published after a registry mutation has been persisted.
type CustomerEvent struct {
	Type     CustomerEventType `json:"type"`
	Customer Customer          `json:"customer"`
	At       time.Time         `json:"at"`
}

// Position is a device location report from a field agent.
type Position struct {
	AgentID   string    `json:"agent_id" validate:"required,max=64"`
	Latitude  float64   `json:"latitude" validate:"latitude"`
	Longitude float64   `json:"longitude" validate:"longitude"`
	Accuracy  float64   `json:"accuracy" validate:"gte=0"` // metres
	Timestamp time.Time `json:"timestamp"`
}

// Point returns the reported coordinate.
func (p Position) Point() GeoPoint {
	return GeoPoint{Lat: p.Latitude, Lon: p.Longitude}
}

// Path is a computed route through an ordered list of coordinates.
type Path struct {
	Geometry        []GeoPoint  `json:"geometry"`
	Steps           []RouteStep `json:"steps,omitempty"`
	DistanceMeters  float64     `json:"distance_meters"`
	DurationSeconds float64     `json:"duration_seconds"`
}

// RouteStep is one turn-by-turn instruction of a Path.
type RouteStep struct {
	Instruction     string   `json:"instruction"`
	Road            string   `json:"road,omitempty"`
	DistanceMeters  float64  `json:"distance_meters"`
	DurationSeconds float64  `json:"duration_seconds"`
	Location        GeoPoint `json:"location"`
}
