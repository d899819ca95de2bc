package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"lifesim/internal/config"
	"lifesim/internal/save"
	"lifesim/internal/sim"
	"lifesim/internal/util"
)

func main() {
	var cfgDir, out, gender, savePath, level string
	var seed int64
	var n, maxTicks, workers int
	var saveLog, validate bool
	flag.StringVar(&cfgDir, "config", "assets", "config dir")
	flag.StringVar(&out, "out", "out.json", "output file (single) or summary file (batch)")
	flag.StringVar(&gender, "gender", "", "male or female; random when empty")
	flag.StringVar(&savePath, "save", "", "sqlite file to record lives into; none when empty")
	flag.StringVar(&level, "level", "warn", "log level")
	flag.Int64Var(&seed, "seed", 12345, "seed")
	flag.IntVar(&n, "n", 1, "number of lives")
	flag.IntVar(&maxTicks, "max-ticks", sim.DefaultMaxTicks, "years before a life is settled")
	flag.IntVar(&workers, "workers", 8, "batch workers")
	flag.BoolVar(&saveLog, "log", true, "save full event log when n==1")
	flag.BoolVar(&validate, "validate", true, "check the catalog before running")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "simsvc"})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}

	cat, err := config.LoadAll(cfgDir)
	if err != nil {
		logger.Fatal("load catalog", "dir", cfgDir, "err", err)
	}
	if validate {
		if err := config.Validate(cat); err != nil {
			logger.Fatal("invalid catalog", "err", err)
		}
	}

	var archive *save.Archive
	if savePath != "" {
		ctx := context.Background()
		if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
			logger.Fatal("create save directory", "err", err)
		}
		store, err := save.Open(ctx, save.DialectSQLite, savePath)
		if err != nil {
			logger.Fatal("open save", "err", err)
		}
		defer store.Close()
		if archive, err = save.OpenArchive(ctx, store, save.DefaultKey, logger); err != nil {
			logger.Fatal("load save", "err", err)
		}
	}
	ledger := func() sim.Ledger {
		if archive == nil {
			return nil
		}
		return archive
	}

	if n <= 1 {
		opts := sim.Options{Rng: util.New(seed), Gender: gender, Logger: logger, Ledger: ledger()}
		if logger.GetLevel() <= log.DebugLevel {
			opts.Sink = sim.LogSink{Logger: logger}
		}
		res, err := sim.RunLife(cat, opts, maxTicks)
		if err != nil {
			logger.Fatal("run life", "err", err)
		}
		if !saveLog {
			res.Events = nil
		}
		if err := os.WriteFile(out, sim.MarshalPretty(res), 0644); err != nil {
			logger.Fatal("write result", "err", err)
		}
		fmt.Printf("Single life finished. Age=%d, Realm=%s, Title=%s -> %s\n",
			res.Epitaph.Age, res.Epitaph.Realm, res.Epitaph.Title.Name, out)
		return
	}

	type stat struct {
		Lives   int
		SumAge  float64
		MaxAge  int
		ByRealm map[string]int
		ByTitle map[string]int
		ByStat  map[string]int
		Failed  int
	}
	var st = stat{
		ByRealm: map[string]int{},
		ByTitle: map[string]int{},
		ByStat:  map[string]int{},
	}
	var mu sync.Mutex
	wg := sync.WaitGroup{}
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int, n)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				res, err := sim.RunLife(cat, sim.Options{
					Rng:    util.New(seed + int64(workerID)*7919 + int64(i)),
					Gender: gender,
					Ledger: ledger(),
				}, maxTicks)

				mu.Lock()
				if err != nil {
					st.Failed++
					mu.Unlock()
					logger.Warn("life failed", "job", i, "err", err)
					continue
				}
				st.Lives++
				st.SumAge += float64(res.Epitaph.Age)
				if res.Epitaph.Age > st.MaxAge {
					st.MaxAge = res.Epitaph.Age
				}
				st.ByRealm[res.Epitaph.Realm]++
				st.ByTitle[res.Epitaph.Title.Name]++
				st.ByStat[res.Epitaph.HighestStat]++
				mu.Unlock()
			}
		}(w)
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	share := func(m map[string]int) map[string]any {
		out := map[string]any{}
		for k, v := range m {
			ratio := 0.0
			if st.Lives > 0 {
				ratio = float64(v) / float64(st.Lives)
			}
			out[k] = map[string]any{"count": v, "ratio": ratio}
		}
		return out
	}
	realmOrder := make([]string, 0, len(st.ByRealm))
	for _, r := range cat.Realms {
		if st.ByRealm[r] > 0 {
			realmOrder = append(realmOrder, r)
		}
	}
	titles := make([]string, 0, len(st.ByTitle))
	for t := range st.ByTitle {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	avgAge := 0.0
	if st.Lives > 0 {
		avgAge = st.SumAge / float64(st.Lives)
	}
	summary := map[string]any{
		"runs":         n,
		"lives":        st.Lives,
		"failed":       st.Failed,
		"avg_age":      avgAge,
		"max_age":      st.MaxAge,
		"by_realm":     share(st.ByRealm),
		"realm_order":  realmOrder,
		"by_title":     share(st.ByTitle),
		"titles_seen":  titles,
		"by_top_stat":  share(st.ByStat),
		"title_unlock": unlockRate(archive, cat),
	}
	if err := os.WriteFile(out, sim.MarshalPretty(summary), 0644); err != nil {
		logger.Fatal("write summary", "err", err)
	}
	fmt.Printf("Batch %d done -> %s\n", n, filepath.Base(out))
}

func unlockRate(a *save.Archive, cat *config.Catalog) any {
	if a == nil {
		return nil
	}
	d := a.Data()
	return map[string]any{"gen": d.Gen, "percent": save.UnlockRate(d, cat.Titles)}
}
