package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"langcenter-quiz-service/internal/config"
)

// NewSeedCmd inserts the demo content set into Postgres: placement questions,
// oral test slots and one active quiz. Idempotent via upserts.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo placement questions, oral slots and a live quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	db, err := openBunDB(cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	content := sampleContent()
	for _, q := range content.Questions {
		if err := upsert(ctx, db, "placement_questions", q.ID, q); err != nil {
			return err
		}
	}
	for _, quiz := range content.Quizzes {
		if err := upsert(ctx, db, "kahoot_quizzes", quiz.ID, quiz); err != nil {
			return err
		}
	}
	for _, slot := range sampleSlots() {
		if err := upsert(ctx, db, "oral_test_slots", slot.ID, slot); err != nil {
			return err
		}
	}

	log.Printf("demo content seeded")
	return nil
}

func upsert(ctx context.Context, db *bun.DB, table, id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, table),
		id, string(data))
	return err
}
