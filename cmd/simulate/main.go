package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/casperlundberg/openraas-sim/internal/runner"
	"github.com/casperlundberg/openraas-sim/internal/telemetry"
	"github.com/casperlundberg/openraas-sim/pkg/scheduler"
	"github.com/casperlundberg/openraas-sim/pkg/simenv"
)

func main() {
	var (
		configPath = flag.String("config", "configs/simulation_config.json", "Path to simulation config")
		dbPath     = flag.String("db", "analytics.db", "Path to SQLite database file")
		policyName = flag.String("policy", "greedy", "Scheduler policy: greedy or qlearning")
		name       = flag.String("name", "openraas-sim run", "Run name, used as the episode id prefix")
	)
	flag.Parse()

	log.Printf("Starting openraas-sim with telemetry database")

	cfg := simenv.DefaultConfig()
	if data, err := os.ReadFile(*configPath); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Failed to parse config at %s: %v", *configPath, err)
		}
	} else {
		log.Printf("No config found at %s, using defaults", *configPath)
	}

	dbDir := filepath.Dir(*dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	log.Printf("Connecting to telemetry database at %s", *dbPath)
	db, err := telemetry.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry database: %v", err)
	}
	defer db.Close()
	store := telemetry.NewStore(db)

	newPolicy, err := policyFactory(*policyName, cfg.Seed)
	if err != nil {
		log.Fatalf("Unknown policy %q: %v", *policyName, err)
	}

	log.Printf("Running %d episode(s) of %d slots each, cloud_model=%d, policy=%s",
		cfg.NumEpTrain, cfg.MaxEpLength, cfg.CloudModel, *policyName)

	start := time.Now()
	results, err := runner.RunSweep(*name, cfg, newPolicy)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	log.Printf("Sweep completed in %v", time.Since(start))

	for _, r := range results {
		if err := store.SaveEpisode(&r.Episode); err != nil {
			log.Fatalf("Failed to save episode %s: %v", r.Episode.ID, err)
		}
		if len(r.Slots) > 0 {
			if err := store.BatchSaveSlotSnapshots(r.Slots); err != nil {
				log.Fatalf("Failed to save slot snapshots for %s: %v", r.Episode.ID, err)
			}
		}
		log.Printf("episode %s: drop_rate=%.4f server_cpu_rate=%.4f worker_cpu_rate=%.4f",
			r.Episode.ID, r.Episode.DropRate, r.Episode.ServerCPURate, r.Episode.WorkerCPURate)
	}

	log.Printf("Results stored in database. Start the analytics server to view them: ./analytics-server -db %s", *dbPath)
}

func policyFactory(name string, seed int64) (runner.PolicyFactory, error) {
	switch name {
	case "greedy":
		return func() scheduler.Policy { return scheduler.NewGreedy() }, nil
	case "qlearning":
		return func() scheduler.Policy {
			return scheduler.NewQLearning(0.1, 0.9, 0.1, 10, rand.New(rand.NewSource(seed)))
		}, nil
	default:
		return nil, errUnknownPolicy(name)
	}
}

type errUnknownPolicy string

func (e errUnknownPolicy) Error() string { return "unknown policy: " + string(e) }
