package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/navigation"
)

// customerPayload is the body of POST and PUT /api/customers. Unknown
// fields are ignored.
type customerPayload struct {
	ID *int64 `json:"id"`
	domain.CustomerFields
}

type customerResponse struct {
	Message  string          `json:"message"`
	Customer domain.Customer `json:"customer"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// ListCustomersHandler returns every customer as a JSON array.
func ListCustomersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customers, err := deps.Customers.List(c.UserContext())
		if err != nil {
			return writeDomainError(c, err)
		}
		if customers == nil {
			customers = []domain.Customer{}
		}
		return c.JSON(customers)
	}
}

// GetCustomerHandler returns a single customer by id.
func GetCustomerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return errBadRequest(c, "customer id must be a positive integer")
		}
		customer, err := deps.Customers.Get(c.UserContext(), int64(id))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(customer)
	}
}

// CreateCustomerHandler adds a customer; the registry assigns the id.
func CreateCustomerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p customerPayload
		if err := c.BodyParser(&p); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if p.ID != nil {
			return errBadRequest(c, "id is assigned by the server; use PUT to update")
		}

		customer, err := deps.Customers.Create(c.UserContext(), p.CustomerFields)
		if err != nil {
			return writeDomainError(c, err)
		}
		c.Location("/api/customers/" + formatID(customer.ID))
		return c.Status(fiber.StatusCreated).JSON(customerResponse{
			Message:  "Customer added successfully",
			Customer: customer,
		})
	}
}

// UpdateCustomerHandler replaces the given fields of an existing customer.
func UpdateCustomerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p customerPayload
		if err := c.BodyParser(&p); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if p.ID == nil {
			return errBadRequest(c, "id is required")
		}

		customer, err := deps.Customers.Update(c.UserContext(), *p.ID, p.CustomerFields)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(customerResponse{
			Message:  "Customer updated successfully",
			Customer: customer,
		})
	}
}

// DeleteCustomerHandler removes a customer. Deleting an unknown id succeeds.
func DeleteCustomerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p struct {
			ID *int64 `json:"id"`
		}
		if err := c.BodyParser(&p); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if p.ID == nil {
			return errBadRequest(c, "id is required")
		}

		if _, err := deps.Customers.Delete(c.UserContext(), *p.ID); err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(messageResponse{Message: "Customer deleted successfully"})
	}
}

// ReportPositionHandler accepts a device position and relays it to
// navigation clients.
func ReportPositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var pos domain.Position
		if err := c.BodyParser(&pos); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		accepted, err := deps.Positions.Report(c.UserContext(), pos)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(accepted)
	}
}

// MapSettings describes the operational map region for clients.
type MapSettings struct {
	Bounds       domain.Bounds   `json:"bounds"`
	MinZoom      int             `json:"min_zoom"`
	MaxZoom      int             `json:"max_zoom"`
	TrackingZoom int             `json:"tracking_zoom"`
	InitialView  navigation.View `json:"initial_view"`
	TileURL      string          `json:"tile_url"`
	Attribution  string          `json:"attribution"`
}

// MapHandler returns the map region and the fit-to-screen view for the
// caller's screen (?width=&height=, defaulting to the configured size).
func MapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m := deps.Map
		width := c.QueryInt("width", m.ScreenWidth)
		height := c.QueryInt("height", m.ScreenHeight)
		if width <= 0 || width > 10000 || height <= 0 || height > 10000 {
			return errBadRequest(c, "width and height must be between 1 and 10000 pixels")
		}

		vp, err := navigation.NewViewport(navigation.ViewportConfig{
			Bounds:  m.Bounds,
			MinZoom: m.MinZoom,
			MaxZoom: m.MaxZoom,
			Width:   width,
			Height:  height,
		})
		if err != nil {
			return errInternal(c, err.Error())
		}

		return c.JSON(MapSettings{
			Bounds:       m.Bounds,
			MinZoom:      m.MinZoom,
			MaxZoom:      m.MaxZoom,
			TrackingZoom: m.TrackingZoom,
			InitialView:  vp.View(),
			TileURL:      m.TileURL,
			Attribution:  m.TileAttribute,
		})
	}
}
