package domain_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/samirrijal/fieldnav/internal/core/domain"
)

func strPtr(s string) *string     { return &s }
func fltPtr(f float64) *float64 { return &f }

func TestNewCustomer_Valid(t *testing.T) {
	c, err := domain.NewCustomer(domain.CustomerFields{
		Name:      strPtr("  Customer A "),
		Latitude:  fltPtr(6.9271),
		Longitude: fltPtr(79.8612),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != 0 {
		t.Errorf("expected unsaved id 0, got %d", c.ID)
	}
	if c.Name != "Customer A" {
		t.Errorf("expected trimmed name, got %q", c.Name)
	}
}

func TestNewCustomer_MissingFields(t *testing.T) {
	_, err := domain.NewCustomer(domain.CustomerFields{Name: strPtr("A")})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Problems) != 2 {
		t.Errorf("expected 2 problems, got %v", verr.Problems)
	}
}

func TestNewCustomer_ZeroCoordinatesAreValid(t *testing.T) {
	_, err := domain.NewCustomer(domain.CustomerFields{
		Name:      strPtr("Null Island"),
		Latitude:  fltPtr(0),
		Longitude: fltPtr(0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewCustomer_OutOfRange(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		field    string
	}{
		{"lat too high", 90.5, 0, "latitude"},
		{"lat too low", -91, 0, "latitude"},
		{"lon too high", 0, 180.01, "longitude"},
		{"lon too low", 0, -200, "longitude"},
		{"lat NaN", math.NaN(), 0, "latitude"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.NewCustomer(domain.CustomerFields{
				Name:      strPtr("A"),
				Latitude:  fltPtr(tc.lat),
				Longitude: fltPtr(tc.lon),
			})
			if !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("expected message to mention %s, got %q", tc.field, err.Error())
			}
		})
	}
}

func TestNewCustomer_BlankName(t *testing.T) {
	_, err := domain.NewCustomer(domain.CustomerFields{
		Name:      strPtr("   "),
		Latitude:  fltPtr(1),
		Longitude: fltPtr(1),
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCustomer_ApplyKeepsAbsentFields(t *testing.T) {
	c := domain.Customer{ID: 7, Name: "Old", Latitude: 1, Longitude: 2, Contact: "x"}
	got := c.Apply(domain.CustomerFields{Name: strPtr("X")})
	want := domain.Customer{ID: 7, Name: "X", Latitude: 1, Longitude: 2, Contact: "x"}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestValidatePosition(t *testing.T) {
	ok := domain.Position{AgentID: "agent-1", Latitude: 6.9, Longitude: 79.8, Accuracy: 12}
	if err := domain.ValidatePosition(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := domain.Position{Latitude: 6.9, Longitude: 79.8, Accuracy: -1}
	if err := domain.ValidatePosition(bad); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStorageError_Unwrap(t *testing.T) {
	base := errors.New("disk full")
	err := error(&domain.StorageError{Op: "save", Err: base})
	if !errors.Is(err, base) {
		t.Error("expected StorageError to unwrap to its cause")
	}
	if !domain.IsStorage(err) {
		t.Error("expected IsStorage to match")
	}
}
