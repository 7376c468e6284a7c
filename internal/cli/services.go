package cli

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"betpool-service/internal/app"
	"betpool-service/internal/config"
	"betpool-service/internal/domain"
	"betpool-service/internal/infra/memory"
	infrapg "betpool-service/internal/infra/postgres"
	infraredis "betpool-service/internal/infra/redis"
)

// services bundles the wired engines plus the repositories the replay
// harness needs direct access to.
type services struct {
	scoring   *app.ScoringService
	tally     *app.TallyService
	standings *app.StandingsService
	questions app.QuestionRepository
	answers   app.AnswerRepository
	close     func()
}

// buildServices wires the engines against Postgres when configured, and
// against a seeded in-memory store otherwise (demo and local development).
// The lookup goes through Redis when available, with an in-process TTL cache
// as fallback.
func buildServices(ctx context.Context, cfg config.Config, log *zap.Logger) (*services, error) {
	locks := app.NewBetLocker()
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		bets      app.BetRepository
		questions app.QuestionRepository
		answers   app.AnswerRepository
		tallySrc  app.TallySource
		standings app.StandingRepository
		reader    app.StandingsReader
		lookup    app.Lookup
	)

	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		closers = append(closers, func() { _ = db.Close() })

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, pool.Close)

		repo := infrapg.NewRepository(db)
		bets, questions, answers = repo, repo, repo
		standings, reader = repo, repo
		tallySrc = infrapg.NewTallySource(pool)
		lookup = infrapg.NewLookup(db)
	} else {
		log.Warn("postgres not configured, using seeded in-memory store")
		store := memory.NewStore()
		seedDemo(store)
		bets, questions, answers = store, store, store
		standings, reader = store, store
		tallySrc = store
		lookup = memory.NewStaticLookup(demoLookups())
	}

	lookupTTL := config.TTLDuration(cfg.Lookup.TTL, 60*time.Second)
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		lookup = infraredis.NewLookupCache(client, lookup, lookupTTL)
	} else {
		lookup = memory.NewCachedLookup(lookup, lookupTTL)
	}

	return &services{
		scoring:   app.NewScoringService(questions, answers, locks, log),
		tally:     app.NewTallyService(bets, tallySrc, standings, locks, log),
		standings: app.NewStandingsService(reader, lookup, log),
		questions: questions,
		answers:   answers,
		close:     closeAll,
	}, nil
}

// seedDemo loads one small bet so the service answers queries without a
// database: a plain question, a two-sub bundle, and a margin question.
func seedDemo(store *memory.Store) {
	store.AddBet(domain.Bet{ID: 1, SeasonID: 1, LeagueID: 1, Dataset: domain.DatasetReal})

	store.AddQuestion(domain.Question{ID: 10, BetID: 1, GroupCode: "g10", Points: 10, Lineup: 1, Type: domain.ResultList, Average: 1}, true)
	store.AddQuestion(domain.Question{ID: 20, BetID: 1, GroupCode: "g20", Points: 20, Lineup: 2, Type: domain.ResultFootball, Average: 1}, true)
	store.AddQuestion(domain.Question{ID: 21, BetID: 1, GroupCode: "g20", Points: 0, Lineup: 3, Type: domain.ResultList}, false)
	store.AddQuestion(domain.Question{ID: 30, BetID: 1, GroupCode: "g30", Points: 5, Lineup: 4, Type: domain.ResultDecimal, Margin: 1, Step: 0.5, Average: 1}, true)

	store.AddSolution(domain.Solution{QuestionID: 10, ListItemID: 101})
	store.AddSolution(domain.Solution{QuestionID: 20, Label: "2-1"})
	store.AddSolution(domain.Solution{QuestionID: 21, ListItemID: 201})
	store.AddSolution(domain.Solution{QuestionID: 30, Label: "3.5"})

	store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 10, ListItemID: 101, Posted: true})
	store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 10, ListItemID: 102, Posted: true})
	store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 20, Label: "2-1", Posted: true})
	store.AddAnswer(domain.Answer{UserID: 1, QuestionID: 21, ListItemID: 201, Posted: true})
	store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 30, Label: "3,5", Posted: true, Points: 5})
	store.AddAnswer(domain.Answer{UserID: 2, QuestionID: 30, Label: "4.0", Generated: true, Points: 2.5})
}

func demoLookups() map[domain.LookupKind]map[int64]domain.LookupRecord {
	return map[domain.LookupKind]map[int64]domain.LookupRecord{
		domain.LookupSeason: {1: {ID: 1, Name: "Season 2026"}},
		domain.LookupLeague: {1: {ID: 1, Name: "Demo League"}},
		domain.LookupUser: {
			1: {ID: 1, Name: "Alice"},
			2: {ID: 2, Name: "Bob"},
		},
	}
}
