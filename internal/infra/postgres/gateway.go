package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"langcenter-quiz-service/internal/domain"
	"langcenter-quiz-service/internal/store"
)

// Gateway implements store.Gateway on Postgres. Every entity maps to a table
// of (id TEXT PRIMARY KEY, data JSONB); filters and patches address JSONB
// fields, so record shapes stay a pure application concern.
type Gateway struct {
	db *bun.DB
}

func NewGateway(db *bun.DB) *Gateway {
	return &Gateway{db: db}
}

var tables = map[store.Entity]string{
	store.EntitySubmissions:  "placement_submissions",
	store.EntityOralSlots:    "oral_test_slots",
	store.EntityQuizzes:      "kahoot_quizzes",
	store.EntityParticipants: "kahoot_participants",
}

func tableFor(entity store.Entity) (string, error) {
	table, ok := tables[entity]
	if !ok {
		return "", fmt.Errorf("unknown entity %q", entity)
	}
	return table, nil
}

func (g *Gateway) Create(ctx context.Context, entity store.Entity, record any) error {
	table, err := tableFor(entity)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("create %s: record has no id", entity)
	}

	_, err = g.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?::jsonb)`, table),
		doc.ID, string(raw))
	return classify(err)
}

func (g *Gateway) GetByID(ctx context.Context, entity store.Entity, id string, dst any) error {
	table, err := tableFor(entity)
	if err != nil {
		return err
	}
	var raw []byte
	err = g.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, table), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("get %s/%s: %w", entity, id, domain.ErrNotFound)
	}
	if err != nil {
		return classify(err)
	}
	return json.Unmarshal(raw, dst)
}

func (g *Gateway) Query(ctx context.Context, entity store.Entity, q store.Query, dst any) error {
	table, err := tableFor(entity)
	if err != nil {
		return err
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, `SELECT data FROM %s`, table)

	if len(q.Filters) > 0 {
		sb.WriteString(" WHERE ")
		for i, f := range q.Filters {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			expr, arg, err := filterExpr(f)
			if err != nil {
				return err
			}
			sb.WriteString(expr)
			args = append(args, arg)
		}
	}

	// created_at preserves insertion order so stable ranking ties behave the
	// same as the in-memory gateway.
	if q.OrderBy != "" {
		direction := "ASC"
		if q.Desc {
			direction = "DESC"
		}
		fmt.Fprintf(&sb, ` ORDER BY data->>'%s' %s, created_at ASC`, safeField(q.OrderBy), direction)
	} else {
		sb.WriteString(" ORDER BY created_at ASC")
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := g.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return classify(err)
		}
		docs = append(docs, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return classify(err)
	}

	combined, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return json.Unmarshal(combined, dst)
}

func (g *Gateway) Update(ctx context.Context, entity store.Entity, id string, patch map[string]any) error {
	table, err := tableFor(entity)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	res, err := g.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET data = data || ?::jsonb WHERE id = ?`, table),
		string(raw), id)
	if err != nil {
		return classify(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("update %s/%s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, entity store.Entity, id string) error {
	table, err := tableFor(entity)
	if err != nil {
		return err
	}
	res, err := g.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return classify(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("delete %s/%s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

// BookSlot implements store.SlotBooker. The conditional UPDATE is the
// optimistic-concurrency check: zero affected rows means someone else booked
// the slot first, and the transaction rolls everything back.
func (g *Gateway) BookSlot(ctx context.Context, slotID, submissionID, date, timeOfDay string) error {
	err := g.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE oral_test_slots
			 SET data = data || jsonb_build_object('isBooked', true, 'bookedBy', ?::text)
			 WHERE id = ? AND NOT (data->>'isBooked')::boolean`,
			submissionID, slotID)
		if err != nil {
			return classify(err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return domain.ErrSlotAlreadyBooked
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE placement_submissions
			 SET data = data || jsonb_build_object('oralStatus', 'booked', 'oralDate', ?::text, 'oralTime', ?::text)
			 WHERE id = ?`,
			date, timeOfDay, submissionID)
		if err != nil {
			return classify(err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("book slot: submission %s: %w", submissionID, domain.ErrNotFound)
		}
		return nil
	})
	return err
}

// ActivateQuiz implements store.QuizActivator: one statement flips the target
// row to active and every other row to inactive, so readers never see two
// active quizzes.
func (g *Gateway) ActivateQuiz(ctx context.Context, quizID string) error {
	res, err := g.db.ExecContext(ctx,
		`UPDATE kahoot_quizzes SET data = jsonb_set(data, '{isActive}', to_jsonb(id = ?::text))`,
		quizID)
	if err != nil {
		return classify(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("activate quiz %s: %w", quizID, domain.ErrNotFound)
	}
	return nil
}

// filterExpr renders one filter against a JSONB field. Booleans and numbers
// are cast so comparisons are typed, not lexical.
func filterExpr(f store.Filter) (string, any, error) {
	field := safeField(f.Field)
	var op string
	switch f.Op {
	case store.OpEq:
		op = "="
	case store.OpGte:
		op = ">="
	case store.OpLte:
		op = "<="
	default:
		return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
	}

	switch f.Value.(type) {
	case bool:
		return fmt.Sprintf(`(data->>'%s')::boolean %s ?`, field, op), f.Value, nil
	case int, int64, float64:
		return fmt.Sprintf(`(data->>'%s')::numeric %s ?`, field, op), f.Value, nil
	default:
		return fmt.Sprintf(`data->>'%s' %s ?`, field, op), f.Value, nil
	}
}

// safeField keeps JSONB path fragments to identifier characters; fields come
// from code, never user input, so this is a tripwire rather than an escape.
func safeField(field string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return -1
	}, field)
}

// classify maps driver failures onto the retryability taxonomy: permission
// SQLSTATEs are terminal, everything else is assumed retry-safe.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		code := pgErr.Field('C')
		if code == "42501" || strings.HasPrefix(code, "28") {
			return fmt.Errorf("%v: %w", err, domain.ErrPermission)
		}
	}
	return fmt.Errorf("%v: %w", err, domain.ErrTransient)
}
