// Command civkernel runs the line-oriented simulation shell: one command
// per line on stdin, setting up logging and a seeded kernel the same way
// an always-on autonomous loop would, but driven by commands instead.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/civkernel/internal/checkpoint"
	"github.com/talgya/civkernel/internal/cluster"
	"github.com/talgya/civkernel/internal/econgraph"
	"github.com/talgya/civkernel/internal/kernel"
	"github.com/talgya/civkernel/internal/snapshotstore"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := kernel.DefaultConfig()
	k, err := kernel.New(cfg)
	if err != nil {
		slog.Error("failed to initialize kernel", "error", err)
		os.Exit(1)
	}
	slog.Info("civkernel shell ready", "run_id", k.RunID, "population", cfg.Population, "regions", cfg.Regions)

	sh := &shell{k: k, out: os.Stdout}
	if err := sh.run(os.Stdin); err != nil {
		slog.Error("shell exited with error", "error", err)
		os.Exit(1)
	}
}

type shell struct {
	k     *kernel.Kernel
	out   *os.File
	store *snapshotstore.Store
}

func (s *shell) run(in *os.File) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		verb := fields[0]
		args := fields[1:]

		if verb == "quit" {
			if s.store != nil {
				s.store.Close()
			}
			return nil
		}
		if err := s.dispatch(verb, args); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (s *shell) dispatch(verb string, args []string) error {
	switch verb {
	case "step":
		return s.cmdStep(args)
	case "run":
		return s.cmdRun(args)
	case "metrics":
		return s.cmdMetrics()
	case "state":
		return s.cmdState(args)
	case "reset":
		return s.cmdReset(args)
	case "cluster":
		return s.cmdCluster(args)
	case "economy":
		return s.cmdEconomy()
	case "checkpoint":
		return s.cmdCheckpoint(args)
	case "history":
		return s.cmdHistory(args)
	default:
		fmt.Fprintf(s.out, "unknown command %q (try: step, run, metrics, state, reset, cluster, economy, checkpoint, history, quit)\n", verb)
		return nil
	}
}

func (s *shell) cmdStep(args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("step: bad tick count %q", args[0])
		}
		n = v
	}
	if err := s.k.StepN(n); err != nil {
		return err
	}
	return s.k.WriteStateJSON(s.out, false)
}

func (s *shell) cmdRun(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("run: usage: run T L")
	}
	t, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("run: bad tick count %q", args[0])
	}
	l, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("run: bad log interval %q", args[1])
	}
	if s.store == nil {
		return kernel.RunCSV(s.k, s.out, t, l)
	}
	return s.runCSVWithHistory(t, l)
}

// runCSVWithHistory mirrors kernel.RunCSV's CSV-row cadence but additionally
// persists every logged row into the open snapshot-history database, so
// `history open` followed by `run` gives a queryable record alongside the
// CSV stream spec.md §6 requires.
func (s *shell) runCSVWithHistory(totalTicks, logEvery int) error {
	if logEvery <= 0 {
		logEvery = 1
	}
	fmt.Fprintln(s.out, "generation,polarization_mean,polarization_std,avg_openness,avg_conformity,welfare,inequality,hardship,trade_volume,population")
	for i := 1; i <= totalTicks; i++ {
		if err := s.k.StepN(1); err != nil {
			return err
		}
		if i%logEvery != 0 {
			continue
		}
		m := s.k.Metrics()
		fmt.Fprintf(s.out, "%d,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,%.4f,%d\n",
			m.Generation, m.PolarizationMean, m.PolarizationStd, m.AvgOpenness,
			m.AvgConformity, m.Welfare, m.Inequality, m.Hardship, m.TradeVolume, m.Population)
		if err := s.store.Record(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *shell) cmdMetrics() error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(s.k.Metrics())
}

func (s *shell) cmdState(args []string) error {
	traits := len(args) > 0 && args[0] == "traits"
	return s.k.WriteStateJSON(s.out, traits)
}

func (s *shell) cmdReset(args []string) error {
	if len(args) == 0 {
		// Bare `reset` rebuilds with the current population, regions, degree and rewire probability.
		cfg := s.k.Cfg
		args = []string{strconv.Itoa(cfg.Population), strconv.Itoa(cfg.Regions),
			strconv.Itoa(cfg.AvgConnections), strconv.FormatFloat(cfg.RewireProb, 'g', -1, 64)}
	}
	if len(args) < 4 {
		return fmt.Errorf("reset: usage: reset [N R k p]")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("reset: bad population %q", args[0])
	}
	r, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("reset: bad region count %q", args[1])
	}
	avgConn, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("reset: bad graph degree %q", args[2])
	}
	rewire, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("reset: bad rewire probability %q", args[3])
	}
	if err := s.k.Reset(n, r, avgConn, rewire); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "reset: population=%d regions=%d avgConnections=%d rewireProb=%.4f\n", n, r, avgConn, rewire)
	return nil
}

func (s *shell) cmdCluster(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("cluster: usage: cluster kmeans K | cluster dbscan eps minPts")
	}
	switch args[0] {
	case "kmeans":
		if len(args) < 2 {
			return fmt.Errorf("cluster kmeans: usage: cluster kmeans K")
		}
		k, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("cluster kmeans: bad K %q", args[1])
		}
		rng := rand.New(rand.NewSource(s.k.Cfg.Seed))
		s.k.Cluster = cluster.New(k, s.k.Cluster.Alpha, s.k.Cluster.ReassignInterval, s.k.Table, rng)
		s.k.Cluster.Reassign(s.k.Table)
		report := s.k.Cluster.Report(s.k.Table)
		return json.NewEncoder(s.out).Encode(report)
	case "dbscan":
		if len(args) < 3 {
			return fmt.Errorf("cluster dbscan: usage: cluster dbscan eps minPts")
		}
		eps, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("cluster dbscan: bad eps %q", args[1])
		}
		minPts, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("cluster dbscan: bad minPts %q", args[2])
		}
		tbl := s.k.Table
		points := make([][4]float64, tbl.Len())
		alive := make([]bool, tbl.Len())
		for row := 0; row < tbl.Len(); row++ {
			points[row] = [4]float64{tbl.B0[row], tbl.B1[row], tbl.B2[row], tbl.B3[row]}
			alive[row] = tbl.Alive[row]
		}
		result := cluster.DBSCAN(points, alive, eps, minPts)
		return json.NewEncoder(s.out).Encode(result)
	default:
		return fmt.Errorf("cluster: unknown sub-command %q", args[0])
	}
}

// cmdHistory manages the optional sqlite-backed metrics-history store:
// `history open <path>` attaches it so subsequent `run` commands also
// persist rows, `history query` dumps the recorded rows as JSON, and
// `history close` detaches it.
func (s *shell) cmdHistory(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("history: usage: history open <path> | history query | history close")
	}
	switch args[0] {
	case "open":
		if len(args) < 2 {
			return fmt.Errorf("history open: usage: history open <path>")
		}
		if s.store != nil {
			s.store.Close()
		}
		store, err := snapshotstore.Open(args[1])
		if err != nil {
			return err
		}
		s.store = store
		fmt.Fprintf(s.out, "history: opened %s\n", args[1])
		return nil
	case "query":
		if s.store == nil {
			return fmt.Errorf("history query: no history store open (run 'history open <path>' first)")
		}
		rows, err := s.store.History()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "close":
		if s.store == nil {
			return nil
		}
		err := s.store.Close()
		s.store = nil
		return err
	default:
		return fmt.Errorf("history: unknown sub-command %q", args[0])
	}
}

func (s *shell) cmdEconomy() error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(s.k.EconomyReport())
}

func (s *shell) cmdCheckpoint(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("checkpoint: usage: checkpoint save|load <path>")
	}
	path := args[1]
	switch args[0] {
	case "save":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := checkpoint.Save(f, s.k.Tick, s.k.Cfg.Seed, s.k.Table, s.k.Regions); err != nil {
			return err
		}
		if info, err := f.Stat(); err == nil {
			slog.Info("checkpoint saved", "path", path, "size", humanize.Bytes(uint64(info.Size())))
		}
		return nil
	case "load":
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		loaded, err := checkpoint.Load(f)
		if err != nil {
			return err
		}
		s.k.Tick = loaded.Header.Generation
		s.k.Table = loaded.Table
		s.k.Regions = loaded.Regions
		s.k.Trade = econgraph.Build(loaded.Regions)
		fmt.Fprintf(s.out, "checkpoint loaded: generation=%d agents=%d regions=%d\n",
			loaded.Header.Generation, loaded.Header.NumAgents, loaded.Header.NumRegions)
		return nil
	default:
		return fmt.Errorf("checkpoint: unknown sub-command %q", args[0])
	}
}
