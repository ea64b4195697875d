package config_test

import (
	"strings"
	"testing"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("fieldnav-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != config.DriverFile {
		t.Errorf("expected file driver, got %q", cfg.Store.Driver)
	}
	colombo := domain.GeoPoint{Lat: 6.9271, Lon: 79.8612}
	if !cfg.Map.Bounds.Contains(colombo) {
		t.Errorf("default bounds %+v must contain Colombo", cfg.Map.Bounds)
	}
	if cfg.Map.MaxZoom != 19 || cfg.Map.TrackingZoom != 15 {
		t.Errorf("unexpected zoom defaults %+v", cfg.Map)
	}
	if !cfg.Map.Bounds.Contains(cfg.Map.Bounds.Center()) {
		t.Error("bounds must contain their center")
	}
	if cfg.Telemetry.ServiceName != "fieldnav-test" {
		t.Errorf("expected service name default, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FIELDNAV_STORE_DRIVER", "sqlite")
	t.Setenv("FIELDNAV_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("FIELDNAV_SERVER_PORT", "9090")

	cfg, err := config.Load("fieldnav-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != config.DriverSQLite || cfg.SQLite.Path != "/tmp/x.db" {
		t.Errorf("env override not applied: %+v %+v", cfg.Store, cfg.SQLite)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("FIELDNAV_STORE_DRIVER", "mongo")
	_, err := config.Load("fieldnav-test")
	if err == nil || !strings.Contains(err.Error(), "store.driver") {
		t.Fatalf("expected store.driver error, got %v", err)
	}
}

func TestValidate_AggregatesProblems(t *testing.T) {
	cfg, err := config.Load("fieldnav-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Server.Port = 0
	cfg.Store.Driver = config.DriverS3
	cfg.S3.Bucket = ""
	cfg.Map.TrackingZoom = 30

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "s3.bucket", "map.tracking_zoom"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
