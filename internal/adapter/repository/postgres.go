package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eslsoft/studydeck/internal/entity"
	"github.com/eslsoft/studydeck/internal/repository"
)

const flashcardColumns = `id, subject, question, answer, difficulty, tags, document_id,
	created_at, last_reviewed, next_review, correct_count, incorrect_count,
	easiness_factor, interval_days, repetition_number`

// nextDueOrder ranks due cards: never-reviewed first, then the earliest
// schedule, then harder and less-mastered cards.
const nextDueOrder = `
	CASE WHEN next_review IS NULL THEN 0 ELSE 1 END,
	next_review ASC,
	(1.0 / (correct_count + 1)) * difficulty DESC`

type postgresFlashcardRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFlashcardRepository constructs a pgx-backed repository.
func NewPostgresFlashcardRepository(pool *pgxpool.Pool) repository.FlashcardRepository {
	return &postgresFlashcardRepository{pool: pool}
}

func (r *postgresFlashcardRepository) Create(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO flashcards
			(id, subject, question, answer, difficulty, tags, document_id,
			 created_at, last_reviewed, next_review, correct_count, incorrect_count,
			 easiness_factor, interval_days, repetition_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+flashcardColumns,
		card.ID, card.Subject, card.Question, card.Answer, card.Difficulty,
		joinTags(card.Tags), nullString(card.DocumentID),
		card.CreatedAt, card.LastReviewedAt, card.NextReviewAt,
		card.CorrectCount, card.IncorrectCount,
		card.EasinessFactor, card.IntervalDays, card.RepetitionNumber,
	)
	created, err := scanFlashcard(row)
	if err != nil {
		return nil, translatePgError("create flashcard", err)
	}
	return created, nil
}

func (r *postgresFlashcardRepository) GetByID(ctx context.Context, id string) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards WHERE id = $1`, id)
	card, err := scanFlashcard(row)
	if err != nil {
		return nil, translatePgError("get flashcard", err)
	}
	return card, nil
}

func (r *postgresFlashcardRepository) List(ctx context.Context, query *repository.ListFlashcardQuery) ([]entity.Flashcard, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	where := "WHERE 1=1"
	args := []any{}
	if query.Subject != "" {
		args = append(args, query.Subject)
		where += fmt.Sprintf(" AND subject = $%d", len(args))
	}
	if query.Tag != "" {
		// Substring match against the comma-joined tag list, as stored.
		args = append(args, "%"+query.Tag+"%")
		where += fmt.Sprintf(" AND tags LIKE $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM flashcards `+where, args...).Scan(&total); err != nil {
		return nil, 0, translatePgError("count flashcards", err)
	}

	page := query.Page.Bound()
	args = append(args, page.Limit, page.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM flashcards %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		flashcardColumns, where, orderClause(query.Order), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, translatePgError("list flashcards", err)
	}
	defer rows.Close()

	cards := make([]entity.Flashcard, 0, page.Limit)
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			return nil, 0, translatePgError("scan flashcard", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translatePgError("list flashcards", err)
	}
	return cards, total, nil
}

func (r *postgresFlashcardRepository) NextDue(ctx context.Context, subject string, now time.Time) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sql := `SELECT ` + flashcardColumns + `
		FROM flashcards
		WHERE (next_review IS NULL OR next_review <= $1)`
	args := []any{now}
	if subject != "" {
		sql += ` AND subject = $2`
		args = append(args, subject)
	}
	sql += ` ORDER BY ` + nextDueOrder + ` LIMIT 1`

	card, err := scanFlashcard(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translatePgError("next due flashcard", err)
	}
	return card, nil
}

func (r *postgresFlashcardRepository) Update(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE flashcards
		SET subject = $2, question = $3, answer = $4, difficulty = $5, tags = $6
		WHERE id = $1
		RETURNING `+flashcardColumns,
		card.ID, card.Subject, card.Question, card.Answer, card.Difficulty, joinTags(card.Tags),
	)
	updated, err := scanFlashcard(row)
	if err != nil {
		return nil, translatePgError("update flashcard", err)
	}
	return updated, nil
}

func (r *postgresFlashcardRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM flashcards WHERE id = $1`, id)
	if err != nil {
		return translatePgError("delete flashcard", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrFlashcardNotFound
	}
	return nil
}

func (r *postgresFlashcardRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM flashcards WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, translatePgError("delete flashcards by document", err)
	}
	return tag.RowsAffected(), nil
}

func (r *postgresFlashcardRepository) DeleteAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM flashcards`)
	if err != nil {
		return 0, translatePgError("delete all flashcards", err)
	}
	return tag.RowsAffected(), nil
}

func (r *postgresFlashcardRepository) Review(ctx context.Context, id string, fn repository.ReviewFunc) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, translatePgError("begin review", err)
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent reviews of the same card.
	row := tx.QueryRow(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards WHERE id = $1 FOR UPDATE`, id)
	card, err := scanFlashcard(row)
	if err != nil {
		return nil, translatePgError("lock flashcard", err)
	}

	record, err := fn(card)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: review produced no history record", entity.ErrStorage)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE flashcards
		SET last_reviewed = $2, next_review = $3,
			correct_count = $4, incorrect_count = $5,
			easiness_factor = $6, interval_days = $7, repetition_number = $8,
			difficulty = $9
		WHERE id = $1`,
		card.ID, card.LastReviewedAt, card.NextReviewAt,
		card.CorrectCount, card.IncorrectCount,
		card.EasinessFactor, card.IntervalDays, card.RepetitionNumber,
		card.Difficulty,
	); err != nil {
		return nil, translatePgError("update reviewed flashcard", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO review_history (id, flashcard_id, reviewed_at, correct, time_spent_seconds)
		VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.FlashcardID, record.ReviewedAt, record.Correct, record.TimeSpentSeconds,
	); err != nil {
		return nil, translatePgError("insert review record", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePgError("commit review", err)
	}
	return card, nil
}

func (r *postgresFlashcardRepository) Stats(ctx context.Context, now time.Time) (*repository.StatsAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := &repository.StatsAggregate{}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE next_review <= $1),
			COALESCE(SUM(correct_count), 0),
			COALESCE(SUM(incorrect_count), 0)
		FROM flashcards`, now,
	).Scan(&agg.TotalFlashcards, &agg.DueNow, &agg.TotalCorrect, &agg.TotalIncorrect)
	if err != nil {
		return nil, translatePgError("flashcard stats", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT DATE(reviewed_at))
		FROM review_history
		WHERE reviewed_at >= $1`, now.AddDate(0, 0, -30),
	).Scan(&agg.ActiveDays)
	if err != nil {
		return nil, translatePgError("review activity stats", err)
	}
	return agg, nil
}

func scanFlashcard(row pgx.Row) (*entity.Flashcard, error) {
	var (
		card       entity.Flashcard
		tags       string
		documentID *string
	)
	err := row.Scan(
		&card.ID, &card.Subject, &card.Question, &card.Answer, &card.Difficulty,
		&tags, &documentID,
		&card.CreatedAt, &card.LastReviewedAt, &card.NextReviewAt,
		&card.CorrectCount, &card.IncorrectCount,
		&card.EasinessFactor, &card.IntervalDays, &card.RepetitionNumber,
	)
	if err != nil {
		return nil, err
	}
	card.Tags = splitTags(tags)
	if documentID != nil {
		card.DocumentID = *documentID
	}
	return &card, nil
}

// orderClause whitelists sort keys; anything unknown falls back to
// newest-created-first.
func orderClause(order repository.Order) string {
	key, desc := "created_at", true
	switch order.Key {
	case repository.OrderByCreatedAt, repository.OrderByNextReview:
		key, desc = order.Key, order.Desc
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return key + " " + dir + ", id ASC"
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func translatePgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.ErrFlashcardNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s: %s", entity.ErrStorage, op, pgErr.Message)
	}
	return fmt.Errorf("%w: %s: %v", entity.ErrStorage, op, err)
}
