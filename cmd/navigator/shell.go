package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/navigation"
)

const shellHelp = `commands:
  route <ids>     set the waypoints and start tracking
  r, recenter     center the map on the device
  +, -            zoom in or out
  zoom <n>        set the zoom level
  pan <dx> <dy>   move the map by screen pixels
  follow on|off   recenter on every position update
  stop            stop tracking
  reload          fetch the customers again
  customers       list the loaded customers
  status          show the session state
  q, quit         exit
`

// shell drives a tracking session from line commands.
type shell struct {
	sess *navigation.Session
	d    *termDisplay
	opts navigation.TrackOptions
}

func newShell(sess *navigation.Session, d *termDisplay, opts navigation.TrackOptions) *shell {
	return &shell{sess: sess, d: d, opts: opts}
}

// run executes commands from in until quit or ctx is done. End of input
// keeps the session tracking until ctx is done.
func (sh *shell) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			quit, err := sh.exec(ctx, line)
			if err != nil {
				sh.d.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// exec runs one command line. quit reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	args := fields[1:]

	switch fields[0] {
	case "q", "quit", "exit":
		return true, nil

	case "help", "?":
		sh.d.printf("%s", shellHelp)

	case "route":
		if len(args) == 0 {
			return false, errors.New("usage: route <ids>")
		}
		waypoints, err := sh.sess.SetRoute(strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		sh.d.mu.Lock()
		writeWaypoints(sh.d.w, waypoints)
		sh.d.mu.Unlock()
		if sh.sess.State() != navigation.StateTracking {
			return false, sh.sess.StartTracking(ctx, sh.opts)
		}

	case "r", "recenter":
		// A missing position is already reported as a notice.
		if _, err := sh.sess.Recenter(); err != nil && !errors.Is(err, domain.ErrPositionUnavailable) {
			return false, err
		}

	case "+":
		sh.sess.Zoom(sh.sess.Viewport().Zoom + 1)

	case "-":
		sh.sess.Zoom(sh.sess.Viewport().Zoom - 1)

	case "zoom":
		if len(args) != 1 {
			return false, errors.New("usage: zoom <n>")
		}
		z, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("zoom %q: not a number", args[0])
		}
		sh.sess.Zoom(z)

	case "pan":
		if len(args) != 2 {
			return false, errors.New("usage: pan <dx> <dy>")
		}
		dx, errX := strconv.ParseFloat(args[0], 64)
		dy, errY := strconv.ParseFloat(args[1], 64)
		if errX != nil || errY != nil {
			return false, errors.New("pan offsets must be numbers")
		}
		sh.sess.Pan(dx, dy)

	case "follow":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return false, errors.New("usage: follow on|off")
		}
		sh.opts.Follow = args[0] == "on"
		if sh.sess.State() == navigation.StateTracking {
			return false, sh.sess.StartTracking(ctx, sh.opts)
		}

	case "stop":
		sh.sess.StopTracking()

	case "reload":
		return false, sh.sess.Load(ctx)

	case "customers", "ls":
		sh.d.mu.Lock()
		err := writeCustomers(sh.d.w, sh.sess.Records())
		sh.d.mu.Unlock()
		return false, err

	case "status":
		sh.status()

	default:
		return false, fmt.Errorf("unknown command %q, type help", fields[0])
	}
	return false, nil
}

func (sh *shell) status() {
	view := sh.sess.Viewport()
	sh.d.printf("state %s, %d customers, %d waypoints\n",
		sh.sess.State(), len(sh.sess.Records()), len(sh.sess.Waypoints()))
	if pos, ok := sh.sess.Position(); ok {
		sh.d.printf("device %s at %s\n", pos.AgentID, pos.Point())
	} else {
		sh.d.printf("device position unknown\n")
	}
	if path := sh.sess.Route(); path != nil {
		sh.d.printf("route %s, %s\n", formatDistance(path.DistanceMeters), formatDuration(path.DurationSeconds))
	} else {
		sh.d.printf("no route\n")
	}
	sh.d.printf("view %s zoom %d\n", view.Center, view.Zoom)
}
