package registry

import "github.com/samirrijal/fieldnav/internal/core/domain"

// DemoCustomers returns the sample customers around Colombo used to seed an
// empty registry.
func DemoCustomers() []domain.CustomerFields {
	return []domain.CustomerFields{
		demo("Customer A", 6.9271, 79.8612),
		demo("Customer B", 6.9147, 79.9733),
		demo("Customer C", 6.8650, 79.8991),
	}
}

func demo(name string, lat, lon float64) domain.CustomerFields {
	return domain.CustomerFields{Name: &name, Latitude: &lat, Longitude: &lon}
}
