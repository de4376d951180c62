// Package main is a command-line front end to the census client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ukcensusapi"
	"ukcensusapi/config"
)

const usage = `usage: ukcensus <command> [flags] [args]

commands:
  meta TABLE                      print the metadata of TABLE as JSON
  data -table T -id ID k=v...     download a query and print the cached path
  lad NAME...                     print local authority district codes
  geocodes -type N AREA...        print the compacted codes of type N within AREAs
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	api, err := ukcensusapi.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := api.Close(); err != nil {
			slog.Warn("failed to close metadata store", "error", err)
		}
	}()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "meta":
		return runMeta(ctx, api, rest, out)
	case "data":
		return runData(ctx, api, rest, out)
	case "lad":
		fmt.Fprintln(out, strings.Join(api.GetLADCodes(rest...), ","))
		return nil
	case "geocodes":
		return runGeoCodes(ctx, api, rest, out)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runMeta(ctx context.Context, api *ukcensusapi.Nomisweb, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("meta takes exactly one table name")
	}
	rec, err := api.LoadMetadata(ctx, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func runData(ctx context.Context, api *ukcensusapi.Nomisweb, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("data", flag.ContinueOnError)
	tableName := fs.String("table", "", "table name, e.g. KS401EW")
	tableID := fs.String("id", "", "internal table id, e.g. NM_618_1 (looked up when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tableName == "" {
		return errors.New("-table is required")
	}

	params, err := parseParams(fs.Args())
	if err != nil {
		return err
	}

	if *tableID == "" {
		rec, err := api.LoadMetadata(ctx, *tableName)
		if err != nil {
			return err
		}
		*tableID = rec.TableID
	}

	path, err := api.GetDataPath(ctx, *tableName, *tableID, params)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, path)
	return nil
}

func runGeoCodes(ctx context.Context, api *ukcensusapi.Nomisweb, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("geocodes", flag.ContinueOnError)
	areaType := fs.Int("type", ukcensusapi.MSOA, "area type (464 LAD, 297 MSOA, 298 LSOA, 299 OA)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintln(out, api.GetGeoCodes(ctx, fs.Args(), *areaType))
	return nil
}

// parseParams turns key=value arguments into query parameters.
func parseParams(args []string) (ukcensusapi.Params, error) {
	params := ukcensusapi.Params{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", arg)
		}
		params.Set(k, v)
	}
	return params, nil
}
