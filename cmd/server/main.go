/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the CRM notification engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize the record store (SQLite or in-memory)
  3. Create the session registry
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port              HTTP server port (default: 8080)
  -db                SQLite database path (default: crm.db)
                     Use "memory" for the in-process store, ":memory:" for
                     an in-memory SQLite database
  -state-dir         Per-owner local state directory (default: ./state)
                     Empty keeps acknowledgements and preferences in memory
  -refresh-interval  Timed notification refresh (default: 1h, 0 disables)
  -live              Refresh on store change events (default: true)
  -origins           Comma-separated CORS origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop every session's refresh trigger
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/crm.db"

  # Demo without any files
  ./server -db=memory -state-dir=""

  # Refresh every 5 minutes, no live updates
  ./server -refresh-interval=5m -live=false

SEE ALSO:
  - api/server.go: Router configuration
  - notify/session.go: Per-owner notification state
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warp/crm-engine/api"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/crm/store"
	"github.com/warp/crm-engine/notify"
	"github.com/warp/crm-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "crm.db", `SQLite database path, or "memory" for the in-process store`)
	stateDir := flag.String("state-dir", "./state", "Per-owner local state directory (empty: in memory)")
	interval := flag.Duration("refresh-interval", notify.DefaultRefreshInterval, "Timed notification refresh (0 disables)")
	live := flag.Bool("live", true, "Refresh notifications on store change events")
	origins := flag.String("origins", strings.Join(api.DefaultOrigins, ","), "Comma-separated CORS origins")
	flag.Parse()

	// Initialize store
	var records crm.Store
	closeStore := func() error { return nil }
	if *dbPath == "memory" {
		records = store.NewMemory()
		log.Printf("Using in-process memory store")
	} else {
		db, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		records = db
		closeStore = db.Close
	}

	sessions := notify.NewSessions(notify.SessionConfig{
		Store:           records,
		StateDir:        *stateDir,
		RefreshInterval: *interval,
		Live:            *live,
		Timed:           *interval > 0,
	})

	handler := api.NewHandler(records, sessions)
	router := api.NewRouter(handler, splitOrigins(*origins))

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("🔔 Notifications refresh every %v (live: %t)", *interval, *live)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	sessions.CloseAll()
	if err := closeStore(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}

	log.Println("Server stopped")
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
