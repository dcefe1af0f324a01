// Command history prints recorded sightings from the watcher database.
//
//	history            # today's sightings
//	history -recent 20 # last 20 sightings regardless of day
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"momentumwatch/internal/config"
	"momentumwatch/internal/history"
	"momentumwatch/internal/model"
	"momentumwatch/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/watcher.yaml", "path to config file")
	recent := flag.Int("recent", 0, "show the N most recent sightings instead of today's")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("history", version.String())
		return
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := history.Connect(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	store := history.NewStore(pool, nil)
	defer store.Close()

	var sightings []model.Sighting
	if *recent > 0 {
		sightings, err = store.Recent(ctx, *recent)
	} else {
		sightings, err = store.Today(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query sightings:", err)
		os.Exit(1)
	}

	if len(sightings) == 0 {
		fmt.Println("no sightings")
		return
	}
	printSightings(sightings)
}

func printSightings(sightings []model.Sighting) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tHITS\tSCANNERS\tLAST\tCHG%\tRVOL\tCATALYST\tLAST SEEN")
	for _, s := range sightings {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Symbol,
			s.HitCount,
			s.Scanners,
			fmtFloat(s.LastPrice, "%.2f"),
			fmtFloat(s.ChangePct, "%+.1f"),
			fmtFloat(s.RVol, "%.1fx"),
			fmtStr(s.Catalyst),
			s.LastSeen.Local().Format("15:04:05"),
		)
	}
	w.Flush()
}

func fmtFloat(f *float64, format string) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf(format, *f)
}

func fmtStr(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
