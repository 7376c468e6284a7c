// Package http exposes the standings query operations, the rescore/rebuild
// triggers, and a websocket feed of rebuild notices.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"betpool-service/internal/app"
	"betpool-service/internal/domain"
)

type Server struct {
	log       *zap.Logger
	scoring   *app.ScoringService
	tally     *app.TallyService
	standings *app.StandingsService
	feed      *Feed
	upgrader  websocket.Upgrader
}

func NewServer(log *zap.Logger, scoring *app.ScoringService, tally *app.TallyService, standings *app.StandingsService, feed *Feed) *Server {
	return &Server{
		log:       log,
		scoring:   scoring,
		tally:     tally,
		standings: standings,
		feed:      feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/standings", s.listStandings)              // GET
	mux.HandleFunc("/standings/progression", s.progression)    // GET
	mux.HandleFunc("/standings/trend", s.trend)                // GET
	mux.HandleFunc("/bets/", s.betAction)                      // POST /bets/{id}/rescore|rebuild
	mux.HandleFunc("/ws", s.serveWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

// scopeFromQuery reads the (season, league, dataset) triple every standings
// query is scoped by.
func scopeFromQuery(r *http.Request) (app.Scope, error) {
	season, err := strconv.ParseInt(r.URL.Query().Get("season"), 10, 64)
	if err != nil {
		return app.Scope{}, errors.New("season required")
	}
	league, err := strconv.ParseInt(r.URL.Query().Get("league"), 10, 64)
	if err != nil {
		return app.Scope{}, errors.New("league required")
	}
	return app.Scope{
		SeasonID: season,
		LeagueID: league,
		Dataset:  domain.ParseDataset(r.URL.Query().Get("dataset")),
	}, nil
}

func enrichFromQuery(r *http.Request) app.EnrichKeys {
	var keys app.EnrichKeys
	for _, k := range strings.Split(r.URL.Query().Get("enrich"), ",") {
		switch strings.TrimSpace(k) {
		case "season":
			keys.Season = true
		case "league":
			keys.League = true
		case "user":
			keys.User = true
		}
	}
	return keys
}

type standingView struct {
	SeasonID int64                `json:"seasonId"`
	LeagueID int64                `json:"leagueId"`
	UserID   int64                `json:"userId"`
	BetID    int64                `json:"betId"`
	Points   float64              `json:"points"`
	Score    float64              `json:"score"`
	Sequence int64                `json:"sequence"`
	Seed     int                  `json:"seed"`
	Dataset  string               `json:"dataset"`
	Inserted time.Time            `json:"insertedAt"`
	Changed  bool                 `json:"changed"`
	PrevSeed *int                 `json:"prevSeed"`
	Movement *int                 `json:"movement"`
	Season   *domain.LookupRecord `json:"season,omitempty"`
	League   *domain.LookupRecord `json:"league,omitempty"`
	User     *domain.LookupRecord `json:"user,omitempty"`
}

func toViews(rows []domain.RankedStanding) []standingView {
	views := make([]standingView, 0, len(rows))
	for _, row := range rows {
		views = append(views, standingView{
			SeasonID: row.SeasonID,
			LeagueID: row.LeagueID,
			UserID:   row.UserID,
			BetID:    row.BetID,
			Points:   row.Points,
			Score:    row.Score,
			Sequence: row.Sequence,
			Seed:     row.Seed,
			Dataset:  string(row.Dataset),
			Inserted: row.InsertedAt,
			Changed:  row.Changed,
			PrevSeed: row.PrevSeed,
			Movement: row.Movement,
			Season:   row.Season,
			League:   row.League,
			User:     row.User,
		})
	}
	return views
}

func (s *Server) listStandings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	scope, err := scopeFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var sequence int64
	if raw := r.URL.Query().Get("sequence"); raw != "" {
		sequence, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid sequence", http.StatusBadRequest)
			return
		}
	}

	rows, err := s.standings.List(r.Context(), scope, sequence, enrichFromQuery(r))
	if errors.Is(err, domain.ErrSequenceNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("list standings", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, toViews(rows))
}

func (s *Server) progression(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	scope, err := scopeFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
	if err != nil {
		http.Error(w, "user required", http.StatusBadRequest)
		return
	}

	rows, err := s.standings.UserProgression(r.Context(), scope, userID, enrichFromQuery(r))
	if err != nil {
		s.log.Error("user progression", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, toViews(rows))
}

func (s *Server) trend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	scope, err := scopeFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	trend, err := s.standings.LeagueTrend(r.Context(), scope)
	if err != nil {
		s.log.Error("league trend", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, trend)
}

// betAction routes POST /bets/{id}/rescore and POST /bets/{id}/rebuild.
func (s *Server) betAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/bets/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		http.Error(w, "betId and action required", http.StatusBadRequest)
		return
	}
	betID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid betId", http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "rescore":
		if err := s.scoring.MarkCorrectAndScore(r.Context(), betID); err != nil {
			s.log.Error("rescore", zap.Int64("bet_id", betID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"betId": betID, "status": "scored"})
	case "rebuild":
		sequence, count, err := s.rebuild(r.Context(), betID)
		if err != nil {
			s.log.Error("rebuild", zap.Int64("bet_id", betID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, RebuildNotice{BetID: betID, Sequence: sequence, Count: count})
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

func (s *Server) rebuild(ctx context.Context, betID int64) (int64, int, error) {
	sequence, count, err := s.tally.Rebuild(ctx, betID, time.Time{})
	if err != nil {
		return 0, 0, err
	}
	if count > 0 && s.feed != nil {
		s.feed.Publish(RebuildNotice{BetID: betID, Sequence: sequence, Count: count})
	}
	return sequence, count, nil
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// serveWS streams rebuild notices to the client until it disconnects.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	notices, cancel := s.feed.Subscribe()
	defer cancel()

	// Drain client frames so close/ping handling keeps working.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case notice, ok := <-notices:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[RebuildNotice]{Type: "rebuilt", Payload: notice}); err != nil {
				s.log.Debug("ws write error", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
