package main

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/navigation"
)

// termDisplay renders session output as plain text lines. Session callbacks
// arrive from tracking goroutines, so writes are serialized.
type termDisplay struct {
	mu    sync.Mutex
	w     io.Writer
	steps bool // print turn-by-turn instructions under each route
}

var _ navigation.Display = (*termDisplay)(nil)

func newTermDisplay(w io.Writer, steps bool) *termDisplay {
	return &termDisplay{w: w, steps: steps}
}

func (d *termDisplay) printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, format, args...)
}

func (d *termDisplay) ShowMarkers(markers []navigation.Marker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "markers: %d\n", len(markers))
	for _, m := range markers {
		fmt.Fprintf(d.w, "  %-8s #%d %s (%s)\n", "["+string(m.Role)+"]", m.CustomerID, m.Label, m.Point)
	}
}

func (d *termDisplay) ShowDevice(pos domain.Position) {
	if pos.Accuracy > 0 {
		d.printf("device %s at %s (±%.0f m)\n", pos.AgentID, pos.Point(), pos.Accuracy)
		return
	}
	d.printf("device %s at %s\n", pos.AgentID, pos.Point())
}

func (d *termDisplay) ShowRoute(path *domain.Path) {
	d.mu.Lock()
	defer d.mu.Unlock()
	writeRoute(d.w, path, d.steps)
}

func (d *termDisplay) ShowView(view navigation.View) {
	d.printf("view %s zoom %d\n", view.Center, view.Zoom)
}

func (d *termDisplay) Notify(n navigation.Notice) {
	d.printf("! %s: %s\n", n.Kind, n.Message)
}

func writeRoute(w io.Writer, path *domain.Path, steps bool) {
	if path == nil {
		fmt.Fprintln(w, "route cleared")
		return
	}
	fmt.Fprintf(w, "route %s, %s, %d points\n",
		formatDistance(path.DistanceMeters), formatDuration(path.DurationSeconds), len(path.Geometry))
	if !steps {
		return
	}
	for i, s := range path.Steps {
		fmt.Fprintf(w, "  %2d. %s (%s)\n", i+1, s.Instruction, formatDistance(s.DistanceMeters))
	}
}

func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

func formatDuration(seconds float64) string {
	if seconds < 60 {
		return "<1 min"
	}
	minutes := int(math.Round(seconds / 60))
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d h %02d min", minutes/60, minutes%60)
}
