// Command scan is a one-shot scanner run: connect to the gateway, subscribe
// a single scanner, wait for the snapshot and its market data, and print the
// ranked rows. With -list it prints the scanner catalog instead.
//
//	scan gain
//	scan -min-price 2 -max-price 15 TOP_PERC_GAIN
//	scan -list
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"momentumwatch/internal/gateway"
	"momentumwatch/internal/model"
	"momentumwatch/internal/scanner"
	"momentumwatch/internal/version"
)

func main() {
	host := flag.String("host", "127.0.0.1", "gateway host")
	port := flag.Int("port", 0, "gateway port (0 tries paper then live)")
	clientID := flag.Int("client-id", 1, "gateway client id")
	rows := flag.Int("rows", 20, "number of result rows")
	minPrice := flag.Float64("min-price", 0, "price floor filter (0 = none)")
	maxPrice := flag.Float64("max-price", 0, "price ceiling filter (0 = none)")
	wait := flag.Duration("wait", 15*time.Second, "how long to collect market data")
	list := flag.Bool("list", false, "print the scanner catalog and exit")
	verbose := flag.Bool("v", false, "debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("scan", version.String())
		return
	}
	if !*list && flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: scan [flags] <scanner code or alias>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gwCfg := gateway.Config{Host: *host, ClientID: *clientID}
	if *port > 0 {
		gwCfg.Ports = []int{*port}
	}
	conn := gateway.New(gwCfg, logger)
	if err := conn.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "connect gateway:", err)
		os.Exit(1)
	}
	defer conn.Close()

	engine := scanner.NewEngine(scanner.Config{FallbackClientID: *clientID}, conn, logger)
	if err := engine.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "start engine:", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		engine.Stop(stopCtx)
	}()

	if *list {
		if err := printCatalog(ctx, engine); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	params := scanner.SubscriptionParams{NumberOfRows: *rows}
	if *minPrice > 0 {
		params.MinPrice = minPrice
	}
	if *maxPrice > 0 {
		params.MaxPrice = maxPrice
	}

	code := flag.Arg(0)
	reqID, err := engine.Subscribe(code, params)
	if err != nil {
		fmt.Fprintln(os.Stderr, "subscribe:", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "scanning %s for %s...\n", model.ResolveScanner(code), *wait)
	select {
	case <-time.After(*wait):
	case <-ctx.Done():
	}

	printRows(engine.Rows(reqID))
}

// printCatalog waits for the scanner parameter document and prints the scan
// codes grouped by category.
func printCatalog(ctx context.Context, engine *scanner.Engine) error {
	deadline := time.After(30 * time.Second)
	for engine.Schema() == nil {
		select {
		case <-deadline:
			return fmt.Errorf("scanner catalog not received within 30s")
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	schema := engine.Schema()
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, cat := range schema.Categories() {
		fmt.Fprintf(w, "%s / %s\n", cat.Instrument, cat.Name)
		for _, st := range cat.Scans {
			fmt.Fprintf(w, "  %s\t%s\n", st.Code, st.DisplayName)
		}
	}
	return w.Flush()
}

func printRows(rows []model.ScanRow) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "RANK\tSYMBOL\tPRICE\tCHG%\tVOL\tRVOL\tFLOAT\t")
	for _, row := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			row.Rank,
			row.Symbol,
			fmtPrice(row.LastPrice),
			fmtPct(row.ChangePct),
			fmtCount(row.Volume),
			fmtRatio(row.RVol),
			fmtShares(row.FloatShares),
		)
	}
	w.Flush()
}

func fmtPrice(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *f)
}

func fmtPct(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *f)
}

func fmtRatio(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fx", *f)
}

func fmtCount(n *int64) string {
	if n == nil {
		return "-"
	}
	return compact(float64(*n))
}

func fmtShares(f *float64) string {
	if f == nil {
		return "-"
	}
	return compact(*f)
}

// compact renders large counts as 1.2K / 3.4M / 5.6B.
func compact(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
