package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	natsadapter "github.com/samirrijal/fieldnav/internal/adapters/nats"
	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/navigation"
	"github.com/samirrijal/fieldnav/internal/core/ports"
)

func newCustomersCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "List the customers in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			customers, err := a.directory.ListCustomers(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(customers)
			}
			return writeCustomers(cmd.OutOrStdout(), customers)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON array")
	return cmd
}

func newRouteCmd(flags *globalFlags) *cobra.Command {
	var (
		from  string
		steps bool
	)
	cmd := &cobra.Command{
		Use:   "route <ids>",
		Short: "Resolve customer ids into a route and compute it once",
		Long: "Resolve customer ids into a route and compute it once.\n\n" +
			"Ids may be separated by commas or spaces; unknown ids and repeats are skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var origin *domain.GeoPoint
			if from != "" {
				p, err := parseLatLon(from)
				if err != nil {
					return err
				}
				origin = &p
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			sess, err := a.newSession(navigation.NopDisplay{}, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			if err := sess.Load(ctx); err != nil {
				return err
			}
			waypoints, err := sess.SetRoute(strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			writeWaypoints(out, waypoints)

			points := make([]domain.GeoPoint, len(waypoints))
			for i, c := range waypoints {
				points[i] = c.Point()
			}
			path, err := a.router.ComputeRoute(ctx, origin, points)
			if err != nil {
				return err
			}
			writeRoute(out, path, steps)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start position as lat,lon")
	cmd.Flags().BoolVar(&steps, "steps", true, "print turn-by-turn instructions")
	return cmd
}

func newTrackCmd(flags *globalFlags) *cobra.Command {
	var (
		from      string
		follow    bool
		routeMode bool
		steps     bool
	)
	cmd := &cobra.Command{
		Use:   "track [ids]",
		Short: "Follow the device along a route until interrupted",
		Long: "Follow the device along a route until interrupted.\n\n" +
			"Positions come from the agent's NATS subject, or from --from when given.\n" +
			"Type help at the prompt for the interactive commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			var positions ports.PositionSource
			switch {
			case from != "":
				p, err := parseLatLon(from)
				if err != nil {
					return err
				}
				positions = fixedPosition(a.cfg.Navigator.AgentID, p)
			case a.cfg.NATS.Enabled:
				conn, err := natsadapter.RawConn(a.cfg.NATS.URL)
				if err != nil {
					a.logger.Warn("position relay unavailable", "error", err)
					break
				}
				defer conn.Close()
				positions = natsadapter.NewPositionSource(conn, a.cfg.Navigator.AgentID, a.logger)
			}

			display := newTermDisplay(cmd.OutOrStdout(), steps)
			sess, err := a.newSession(display, positions)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			if err := sess.Load(ctx); err != nil {
				return err
			}

			sh := newShell(sess, display, navigation.TrackOptions{RouteMode: routeMode, Follow: follow})
			if len(args) > 0 {
				if _, err := sh.exec(ctx, "route "+strings.Join(args, " ")); err != nil {
					return err
				}
			}
			return sh.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "fixed device position as lat,lon instead of the NATS feed")
	cmd.Flags().BoolVar(&follow, "follow", true, "recenter the map on every position update")
	cmd.Flags().BoolVar(&routeMode, "route-mode", true, "recompute the route on every position update")
	cmd.Flags().BoolVar(&steps, "steps", false, "print turn-by-turn instructions with each route")
	return cmd
}

func writeCustomers(w io.Writer, customers []domain.Customer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLATITUDE\tLONGITUDE\tCONTACT")
	for _, c := range customers {
		fmt.Fprintf(tw, "%d\t%s\t%.6f\t%.6f\t%s\n", c.ID, c.Name, c.Latitude, c.Longitude, c.Contact)
	}
	return tw.Flush()
}

func writeWaypoints(w io.Writer, waypoints []domain.Customer) {
	fmt.Fprintf(w, "waypoints: %d\n", len(waypoints))
	for i, c := range waypoints {
		fmt.Fprintf(w, "  %2d. #%d %s (%s)\n", i+1, c.ID, c.Name, c.Point())
	}
}
