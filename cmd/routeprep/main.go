// routeprep consolidates orders that share a street segment and side before
// a VRP solve, and expands the solved result back to individual orders.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"order-consolidation/internal/config"
	"order-consolidation/internal/platform/metrics"
	"order-consolidation/internal/platform/obs"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
)

const usage = `usage:
  routeprep consolidate <orders-in> <network> <orders-out> <dependency-file-out>
  routeprep expand <dependency-file-in> <solved-stops-in> <routes-in> <depots-in> <network> <output-dir> [orders-in]

consolidate: <orders-in> is a JSON file or a database DSN; <network> is a
GeoJSON street file or "postgis:<dsn>".
expand: <network> selects the route solver (local, ors, nextmv); orders are
read from <dependency-file-in>.stops.json unless [orders-in] is given.
`

var errUsage = errors.New("usage")

func main() {
	log.SetOutput(os.Stdout)
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("error: %v", err)
		return 1
	}
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	ctx = obs.WithRunID(ctx, runID)

	var ok bool
	switch args[0] {
	case "consolidate":
		ok, err = runConsolidate(ctx, cfg, args[1:])
	case "expand":
		ok, err = runExpand(ctx, cfg, runID, args[1:])
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	if mErr := metrics.WriteTextfile(cfg.MetricsTextfile); mErr != nil {
		log.Printf("warning: %v", mErr)
	}

	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		return 2
	case err != nil:
		log.Printf("error: %v", err)
		return 1
	case !ok:
		return 1
	}
	return 0
}
