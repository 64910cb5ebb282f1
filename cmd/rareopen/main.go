package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"rareopen/internal/config"
	"rareopen/internal/dataset"
	appLog "rareopen/internal/log"
	"rareopen/internal/match"
	"rareopen/internal/model"
	"rareopen/internal/rank"
	"rareopen/internal/slots"
	"rareopen/internal/web"
)

type flagConfig struct {
	configPath string
	dataDir    string
	listen     string
	once       bool
	explain    bool
	now        string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dataDir != "" {
		conf.DataDir = flags.dataDir
	}

	loc := conf.Location()
	clock := time.Now
	if flags.now != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04", flags.now, loc)
		if err != nil {
			appLog.Error("invalid -now value; expected \"YYYY-MM-DD HH:MM\"", err, "now", flags.now)
			os.Exit(2)
		}
		clock = func() time.Time { return t }
	}

	appLog.Info("rareopen starting",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"data_dir", conf.DataDir,
		"refresh", conf.RefreshCron,
		"tasting_feeds", len(conf.TastingFeeds),
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	ranker := conf.Ranker()
	fetcher := slots.NewFetcher(filepath.Join(conf.DataDir, ".cache", "ics"), nil)

	if flags.once {
		snap, err := loadSnapshot(ctx, conf, ranker.Matcher.Normalizer, fetcher, clock())
		if err != nil {
			appLog.Error("failed to load data", err, "data_dir", conf.DataDir)
			os.Exit(1)
		}
		var explain explainFunc
		if flags.explain {
			explain = newExplainer(ranker, snap)
		}
		printOpenings(os.Stdout, ranker.Rank(snap.Input(conf.Preferences), clock(), nil), loc, explain)
		return
	}

	srv := newServer(conf, ranker, fetcher, clock)
	if err := srv.Reload(ctx); err != nil {
		appLog.Error("failed to load data", err, "data_dir", conf.DataDir)
		os.Exit(1)
	}

	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		if err := srv.Reload(ctx); err != nil {
			appLog.Error("scheduled reload failed; keeping previous data", err)
			return
		}
		appLog.Info("scheduled reload completed")
	}); err != nil {
		appLog.Error("invalid refresh schedule; periodic reload disabled", err, "refresh", conf.RefreshCron)
	}
	sched.Start()
	defer sched.Stop()

	if err := web.StartServer(ctx, srv, conf.Listen); err != nil {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}
	appLog.Info("rareopen exiting")
}

// newServer wires the API so both ranking and feed expansion use clock.
func newServer(conf *config.Config, ranker *rank.Ranker, fetcher *slots.Fetcher, clock func() time.Time) *web.Server {
	loader := func(ctx context.Context) (*dataset.Snapshot, error) {
		return loadSnapshot(ctx, conf, ranker.Matcher.Normalizer, fetcher, clock())
	}
	return web.NewServer(conf, ranker, loader, clock)
}

// loadSnapshot reads the data directory and adds busy slots from the
// configured tasting feeds around ref.
func loadSnapshot(ctx context.Context, conf *config.Config, norm *match.Normalizer, fetcher *slots.Fetcher, ref time.Time) (*dataset.Snapshot, error) {
	snap, err := dataset.Load(conf.DataDir, conf.Location(), norm)
	if err != nil {
		return nil, err
	}
	if len(conf.TastingFeeds) == 0 {
		return snap, nil
	}

	sources := make([]slots.Source, 0, len(conf.TastingFeeds))
	for _, f := range conf.TastingFeeds {
		sources = append(sources, slots.Source{ID: f.ID, URL: f.URL})
	}
	w := slots.Window{
		Start: ref.AddDate(0, 0, -1),
		End:   ref.AddDate(0, 0, conf.SlotHorizonDays),
	}
	return snap.WithSlots(fetcher.Collect(ctx, sources, w)), nil
}

// explainFunc reports how a schedule name was matched to the price list.
type explainFunc func(name string) (match.PriceMatch, bool)

func newExplainer(ranker *rank.Ranker, snap *dataset.Snapshot) explainFunc {
	houses := match.NewHouseIndex(snap.Houses)
	return func(name string) (match.PriceMatch, bool) {
		return ranker.Matcher.Match(name, snap.Catalog, houses)
	}
}

func printOpenings(w io.Writer, openings []model.ScoredOpening, loc *time.Location, explain explainFunc) {
	if len(openings) == 0 {
		fmt.Fprintln(w, "No upcoming opening matches your preferences.")
		return
	}
	for _, o := range openings {
		price := "N/A"
		if o.GlassPrice != nil {
			price = fmt.Sprintf("%.2f€", *o.GlassPrice)
		}
		fmt.Fprintf(w, "Time: %s\n", o.At.In(loc).Format("2006-01-02 15:04 (Monday)"))
		fmt.Fprintf(w, "Name: %s\n", o.Name)
		fmt.Fprintf(w, "Stand: %s\n", o.Stand)
		fmt.Fprintf(w, "Glass Price: %s\n", price)
		fmt.Fprintf(w, "Preference Score: %d\n", o.PreferenceScore)
		if explain != nil {
			pm, ok := explain(o.Name)
			printMatch(w, pm, ok)
		}
		fmt.Fprintln(w, "---")
	}
}

func printMatch(w io.Writer, pm match.PriceMatch, ok bool) {
	switch {
	case ok:
		fmt.Fprintf(w, "Price Match: house=%s key=%q score=%d exact=%t\n", pm.House, pm.Key, pm.Score, pm.Exact)
	case pm.House == "":
		fmt.Fprintln(w, "Price Match: none (no known house prefix)")
	default:
		fmt.Fprintf(w, "Price Match: none (house=%s best=%q score=%d)\n", pm.House, pm.Key, pm.Score)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./rareopen.yaml", "Path to config file")
	flag.StringVar(&cfg.dataDir, "data", "", "Data directory (overrides config if set)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print the next openings and exit")
	flag.BoolVar(&cfg.explain, "explain", false, "With -once, also print how each name matched the price list")
	flag.StringVar(&cfg.now, "now", "", "Pretend the current time is \"YYYY-MM-DD HH:MM\" (also the API default)")

	flag.Parse()

	return cfg
}
