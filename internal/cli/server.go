package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"langcenter-quiz-service/internal/app"
	"langcenter-quiz-service/internal/config"
	"langcenter-quiz-service/internal/domain"
	"langcenter-quiz-service/internal/infra/memory"
	pginfra "langcenter-quiz-service/internal/infra/postgres"
	redisinfra "langcenter-quiz-service/internal/infra/redis"
	"langcenter-quiz-service/internal/store"
	transport "langcenter-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the placement and live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)

	gateway, loader, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	var quizzes app.QuizCatalog
	var questions app.QuestionSource
	var quizCache app.QuizCacheInvalidator
	if redisClient != nil {
		cache := redisinfra.NewContentCache(redisClient, loader, contentTTL)
		quizzes, questions, quizCache = cache, cache, cache
	} else {
		cache := memory.NewContentCache(loader, contentTTL)
		quizzes, questions, quizCache = cache, cache, cache
	}

	var plays app.PlayRegistry
	if redisClient != nil {
		plays = redisinfra.NewPlayRegistry(redisClient, redisTTL)
	} else {
		plays = memory.NewPlayRegistry()
	}

	playCfg := app.DefaultPlayConfig()
	playCfg.TickInterval = config.TTLDuration(cfg.Play.Tick, playCfg.TickInterval)
	playCfg.RevealDelay = config.TTLDuration(cfg.Play.Reveal, playCfg.RevealDelay)

	placement := app.NewPlacementService(gateway, questions)
	oral := app.NewOralService(gateway)
	leaderboard := app.NewLeaderboardService(gateway)
	leaderboard.AttachQuizCache(quizCache)
	live := app.NewLiveQuizService(plays, quizzes, leaderboard, playCfg)

	apiHandler := transport.NewAPIHandler(placement, oral, leaderboard)
	wsHandler := transport.NewWSHandler(live, leaderboard)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting langcenter service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStores builds the gateway and content loader for the configured
// backend. The returned close func releases the Postgres pool and bun DB;
// the in-memory fallback has nothing to release.
func openStores(ctx context.Context, cfg config.Config) (store.Gateway, memory.ContentLoader, func(), error) {
	if cfg.Postgres.URL == "" {
		memGateway := memory.NewGateway()
		seedMemory(ctx, memGateway)
		return memGateway, sampleContent(), func() {}, nil
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := openBunDB(cfg.Postgres.URL)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	closeFn := func() {
		_ = db.Close()
		pool.Close()
	}
	return pginfra.NewGateway(db), pginfra.NewContentLoader(pool), closeFn, nil
}

// seedMemory loads the demo quiz records into the in-memory gateway so
// activation and leaderboards work without Postgres.
func seedMemory(ctx context.Context, gateway *memory.Gateway) {
	for _, quiz := range sampleContent().Quizzes {
		if err := gateway.Create(ctx, store.EntityQuizzes, quiz); err != nil {
			log.Printf("seed quiz %s: %v", quiz.ID, err)
		}
	}
	for _, slot := range sampleSlots() {
		if err := gateway.Create(ctx, store.EntityOralSlots, slot); err != nil {
			log.Printf("seed slot %s: %v", slot.ID, err)
		}
	}
}

// sampleContent provides a minimal demo data set; Postgres-backed deployments
// load real content instead.
func sampleContent() *memory.StaticContentLoader {
	return &memory.StaticContentLoader{
		Quizzes: map[string]domain.KahootQuiz{
			"quiz-1": {
				ID:       "quiz-1",
				Title:    "English trivia night",
				IsActive: true,
				Questions: []domain.KahootQuestion{
					{
						ID:               "q1",
						Question:         "Which word is a synonym of 'rapid'?",
						Options:          []string{"slow", "quick", "late", "quiet"},
						CorrectIndex:     1,
						TimeLimitSeconds: 15,
					},
					{
						ID:               "q2",
						Question:         "Choose the correct form: 'She ___ to school every day.'",
						Options:          []string{"go", "going", "goes", "gone"},
						CorrectIndex:     2,
						TimeLimitSeconds: 20,
					},
				},
			},
		},
		Questions: []domain.PlacementQuestion{
			{ID: "p1", Text: "I ___ from France.", Options: []string{"is", "am", "are"}, CorrectIndex: 1, Weight: 1, IsActive: true},
			{ID: "p2", Text: "He ___ got a car.", Options: []string{"has", "have", "is"}, CorrectIndex: 0, Weight: 1, IsActive: true},
			{ID: "p3", Text: "If I ___ rich, I would travel.", Options: []string{"am", "was", "were"}, CorrectIndex: 2, Weight: 2, IsActive: true},
		},
	}
}

func sampleSlots() []domain.OralTestSlot {
	today := time.Now()
	return []domain.OralTestSlot{
		{ID: "slot-1", Date: today.AddDate(0, 0, 1).Format("2006-01-02"), Time: "10:00"},
		{ID: "slot-2", Date: today.AddDate(0, 0, 1).Format("2006-01-02"), Time: "11:00"},
		{ID: "slot-3", Date: today.AddDate(0, 0, 2).Format("2006-01-02"), Time: "10:00"},
	}
}
