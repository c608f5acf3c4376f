package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"

	"bisca-server/internal/bisca"
	"bisca-server/internal/database"
)

type Server struct {
	port int
	cfg  Config
	db   database.Service

	connections *ConnectionManager
	sessions    *SessionRegistry
	directory   *GameDirectory
	broadcaster Broadcaster
	scheduler   Scheduler
	turnTimers  *TurnScheduler
	bots        *BotScheduler
	recovery    *RecoveryLayer
	snapshots   *PGSnapshotStore
	results     *ResultsStore
	ledger      Ledger
	limiter     *RateLimiter
}

func NewServer() (*Server, *http.Server) {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbService, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := runMigrations(dbService.DB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	scheduler := NewClockScheduler()
	connections := NewConnectionManager()
	directory := NewGameDirectory()
	broadcaster := NewBroadcaster(connections, directory.MemberIDs)
	snapshots := NewPGSnapshotStore(dbService.DB())

	app := &Server{
		port:        cfg.Port,
		cfg:         cfg,
		db:          dbService,
		connections: connections,
		sessions:    NewSessionRegistry(scheduler, cfg.ReconnectGrace),
		directory:   directory,
		broadcaster: broadcaster,
		scheduler:   scheduler,
		turnTimers:  NewTurnScheduler(scheduler, broadcaster, cfg.TurnTimeout, cfg.TurnTick),
		bots:        NewBotScheduler(scheduler, broadcaster, cfg.BotMaxAttempts, cfg.BotBackoffBase),
		recovery:    NewRecoveryLayer(snapshots, cfg.SnapshotFreshness, cfg.SnapshotTTL),
		snapshots:   snapshots,
		results:     NewResultsStore(dbService.DB()),
		ledger:      NewSQLLedger(dbService.DB()),
		limiter:     NewRateLimiter(cfg.RateLimitPerSecond, time.Second),
	}

	app.directory.OnRemove(app.handleMatchRemoved)
	app.sessions.OnExpire(app.handleSessionExpiry)
	app.turnTimers.OnTimeout(app.handleTurnTimeout)
	app.bots.OnAttempt(app.handleBotAttempt)
	app.bots.OnExhausted(app.handleBotExhausted)

	app.restoreMatches(snapshots)

	go app.maintenanceTask()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.port),
		Handler:      app.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return app, server
}

// Shutdown persists every live match and releases the database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.persistRooms(ctx)
	return s.db.Close()
}

// runMigrations applies database migrations using goose.
func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "db/migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	log.Println("Database migrations applied successfully")
	return nil
}

// handleMatchRemoved disarms everything pointed at a match that no longer
// exists.
func (s *Server) handleMatchRemoved(matchID string) {
	s.turnTimers.Cancel(matchID)
	s.bots.Cancel(matchID)
	s.recovery.Drop(matchID)
}

// handleSessionExpiry is the abandonment policy: a player who stays gone
// past the grace window loses the match; the opponent takes it.
func (s *Server) handleSessionExpiry(participantID, matchID string) {
	if matchID == "" {
		return
	}
	room, err := s.directory.Get(matchID)
	if err != nil {
		return
	}

	room.Mu.Lock()
	seat, seated := room.Match.SeatOf(participantID)
	var winner bisca.Seat
	abandoned := false
	if seated && room.Match.State != bisca.StateInit && !room.Match.Finished {
		if w, aerr := room.Match.Abandon(seat); aerr == nil {
			winner = w
			abandoned = true
		}
	}
	room.Mu.Unlock()

	_, empty, _ := s.directory.Leave(matchID, participantID)

	if abandoned {
		log.Printf("Match %s abandoned by %s", matchID, participantID)
		s.finishMatch(room, winner, "abandonment")
		return
	}
	if empty {
		s.directory.RemoveGame(matchID)
	}
}

// handleTurnTimeout auto-plays the lowest card of the seat that ran out
// of time; the match continues rather than forfeiting.
func (s *Server) handleTurnTimeout(matchID string, seat bisca.Seat) {
	room, err := s.directory.Get(matchID)
	if err != nil {
		return
	}
	log.Printf("Turn timeout for seat %s in match %s", seat, matchID)
	if err := s.applyPlay(room, seat, "", true); err != nil {
		log.Printf("Timeout auto-play rejected for match %s: %v", matchID, err)
	}
}

// handleBotAttempt plays one bot move. A nil return with no move is fine:
// the turn may have advanced before the attempt ran.
func (s *Server) handleBotAttempt(matchID string) error {
	room, err := s.directory.Get(matchID)
	if err != nil {
		return nil
	}

	room.Mu.Lock()
	m := room.Match
	if m.State != bisca.StateInProgress {
		room.Mu.Unlock()
		return nil
	}
	botSeat, ok := m.BotSeat()
	if !ok || m.Turn != botSeat {
		room.Mu.Unlock()
		return nil
	}
	card, err := bisca.ChooseCard(m, botSeat, room.Brain)
	room.Mu.Unlock()

	if err != nil {
		return err
	}
	return s.applyPlay(room, botSeat, card.Face(), false)
}

// handleBotExhausted forces the lowest card after the bot gave up, so a
// broken heuristic never stalls the match.
func (s *Server) handleBotExhausted(matchID string) {
	room, err := s.directory.Get(matchID)
	if err != nil {
		return
	}
	room.Mu.Lock()
	botSeat, ok := room.Match.BotSeat()
	room.Mu.Unlock()
	if !ok {
		return
	}
	if err := s.applyPlay(room, botSeat, "", true); err != nil {
		log.Printf("Bot fallback play rejected for match %s: %v", matchID, err)
	}
}

// restoreMatches rebuilds rooms from the durable snapshots a previous
// process left behind. Restored rooms stay dormant until a player
// authenticates back in.
func (s *Server) restoreMatches(store SnapshotStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ids, err := store.ListActive(ctx)
	if err != nil {
		log.Printf("Snapshot listing failed at startup: %v", err)
		return
	}

	restored := 0
	for _, id := range ids {
		snap, err := store.Get(ctx, id)
		if err != nil {
			log.Printf("Snapshot load failed for match %s: %v", id, err)
			continue
		}
		m, err := bisca.MatchFromSnapshot(snap)
		if err != nil {
			log.Printf("Snapshot rebuild failed for match %s: %v", id, err)
			continue
		}
		if m.Finished {
			continue
		}
		if _, err := s.directory.AdoptGame(m, RoomOptions{}); err != nil {
			log.Printf("Could not adopt restored match %s: %v", id, err)
			continue
		}
		restored++
	}
	if restored > 0 {
		log.Printf("Restored %d matches from durable snapshots", restored)
	}
}

// maintenanceTask runs the periodic housekeeping: snapshot eviction and
// heartbeats, rate limiter cleanup, and dead snapshot rows.
func (s *Server) maintenanceTask() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if evicted := s.recovery.Evict(); evicted > 0 {
			log.Printf("Evicted %d stale snapshots", evicted)
		}
		s.limiter.Cleanup()

		var active []string
		for _, room := range s.directory.Rooms() {
			active = append(active, room.Match.ID)
		}
		s.recovery.Heartbeat(active)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if deleted, err := s.snapshots.CleanupExpired(ctx); err != nil {
			log.Printf("Snapshot cleanup failed: %v", err)
		} else if deleted > 0 {
			log.Printf("Deleted %d expired snapshot rows", deleted)
		}
		cancel()
	}
}

// persistRooms writes a final snapshot of every live match so a restarted
// process can resume them. Runs during graceful shutdown.
func (s *Server) persistRooms(ctx context.Context) {
	saved := 0
	for _, room := range s.directory.Rooms() {
		room.Mu.Lock()
		snap := room.Match.Snapshot()
		room.Mu.Unlock()

		if err := s.snapshots.Put(ctx, snap.MatchID, snap, s.cfg.SnapshotTTL); err != nil {
			log.Printf("Shutdown snapshot failed for match %s: %v", snap.MatchID, err)
			continue
		}
		saved++
	}
	log.Printf("Shutdown: persisted %d match snapshots", saved)
}
