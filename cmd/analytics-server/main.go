package main

import (
	"flag"
	"log"

	"github.com/casperlundberg/openraas-sim/internal/telemetry"
)

func main() {
	var (
		dbPath = flag.String("db", "analytics.db", "Path to SQLite database file")
		port   = flag.String("port", "8081", "Port to listen on")
	)
	flag.Parse()

	log.Printf("Opening telemetry database at %s", *dbPath)
	db, err := telemetry.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open telemetry database: %v", err)
	}
	defer db.Close()

	store := telemetry.NewStore(db)
	server := telemetry.NewServer(store, *port)

	log.Printf("Analytics server listening on :%s", *port)
	if err := server.Start(); err != nil {
		log.Fatalf("Analytics server exited: %v", err)
	}
}
