package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eslsoft/studydeck/internal/entity"
	"github.com/eslsoft/studydeck/internal/repository"
)

// timeLayout is a fixed-width RFC3339 form in UTC. Fixed width keeps
// lexicographic comparison of stored timestamps equivalent to time order,
// which the due-card and stats queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type sqliteFlashcardRepository struct {
	db *sql.DB
}

// NewSQLiteFlashcardRepository constructs a database/sql-backed repository
// for sqlite. The same schema as postgres is used, with timestamps stored
// as fixed-width UTC text.
func NewSQLiteFlashcardRepository(db *sql.DB) repository.FlashcardRepository {
	return &sqliteFlashcardRepository{db: db}
}

func (r *sqliteFlashcardRepository) Create(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO flashcards
			(id, subject, question, answer, difficulty, tags, document_id,
			 created_at, last_reviewed, next_review, correct_count, incorrect_count,
			 easiness_factor, interval_days, repetition_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.Subject, card.Question, card.Answer, card.Difficulty,
		joinTags(card.Tags), nullString(card.DocumentID),
		encodeTime(card.CreatedAt), encodeTimePtr(card.LastReviewedAt), encodeTimePtr(card.NextReviewAt),
		card.CorrectCount, card.IncorrectCount,
		card.EasinessFactor, card.IntervalDays, card.RepetitionNumber,
	)
	if err != nil {
		return nil, translateSQLiteError("create flashcard", err)
	}
	return r.GetByID(ctx, card.ID)
}

func (r *sqliteFlashcardRepository) GetByID(ctx context.Context, id string) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards WHERE id = ?`, id)
	card, err := scanSQLiteFlashcard(row)
	if err != nil {
		return nil, translateSQLiteError("get flashcard", err)
	}
	return card, nil
}

func (r *sqliteFlashcardRepository) List(ctx context.Context, query *repository.ListFlashcardQuery) ([]entity.Flashcard, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	where := "WHERE 1=1"
	args := []any{}
	if query.Subject != "" {
		where += " AND subject = ?"
		args = append(args, query.Subject)
	}
	if query.Tag != "" {
		where += " AND tags LIKE ?"
		args = append(args, "%"+query.Tag+"%")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flashcards `+where, args...).Scan(&total); err != nil {
		return nil, 0, translateSQLiteError("count flashcards", err)
	}

	page := query.Page.Bound()
	sqlText := fmt.Sprintf(`SELECT %s FROM flashcards %s ORDER BY %s LIMIT ? OFFSET ?`,
		flashcardColumns, where, orderClause(query.Order))
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, 0, translateSQLiteError("list flashcards", err)
	}
	defer rows.Close()

	cards := make([]entity.Flashcard, 0, page.Limit)
	for rows.Next() {
		card, err := scanSQLiteFlashcard(rows)
		if err != nil {
			return nil, 0, translateSQLiteError("scan flashcard", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateSQLiteError("list flashcards", err)
	}
	return cards, total, nil
}

func (r *sqliteFlashcardRepository) NextDue(ctx context.Context, subject string, now time.Time) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sqlText := `SELECT ` + flashcardColumns + `
		FROM flashcards
		WHERE (next_review IS NULL OR next_review <= ?)`
	args := []any{encodeTime(now)}
	if subject != "" {
		sqlText += ` AND subject = ?`
		args = append(args, subject)
	}
	sqlText += ` ORDER BY ` + nextDueOrder + ` LIMIT 1`

	card, err := scanSQLiteFlashcard(r.db.QueryRowContext(ctx, sqlText, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translateSQLiteError("next due flashcard", err)
	}
	return card, nil
}

func (r *sqliteFlashcardRepository) Update(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE flashcards
		SET subject = ?, question = ?, answer = ?, difficulty = ?, tags = ?
		WHERE id = ?`,
		card.Subject, card.Question, card.Answer, card.Difficulty, joinTags(card.Tags), card.ID,
	)
	if err != nil {
		return nil, translateSQLiteError("update flashcard", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, entity.ErrFlashcardNotFound
	}
	return r.GetByID(ctx, card.ID)
}

func (r *sqliteFlashcardRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM flashcards WHERE id = ?`, id)
	if err != nil {
		return translateSQLiteError("delete flashcard", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrFlashcardNotFound
	}
	return nil
}

func (r *sqliteFlashcardRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM flashcards WHERE document_id = ?`, documentID)
	if err != nil {
		return 0, translateSQLiteError("delete flashcards by document", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *sqliteFlashcardRepository) DeleteAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM flashcards`)
	if err != nil {
		return 0, translateSQLiteError("delete all flashcards", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *sqliteFlashcardRepository) Review(ctx context.Context, id string, fn repository.ReviewFunc) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// sqlite serializes writers; the transaction still scopes the
	// card update and history insert to one atomic unit.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, translateSQLiteError("begin review", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards WHERE id = ?`, id)
	card, err := scanSQLiteFlashcard(row)
	if err != nil {
		return nil, translateSQLiteError("load flashcard", err)
	}

	record, err := fn(card)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: review produced no history record", entity.ErrStorage)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE flashcards
		SET last_reviewed = ?, next_review = ?,
			correct_count = ?, incorrect_count = ?,
			easiness_factor = ?, interval_days = ?, repetition_number = ?,
			difficulty = ?
		WHERE id = ?`,
		encodeTimePtr(card.LastReviewedAt), encodeTimePtr(card.NextReviewAt),
		card.CorrectCount, card.IncorrectCount,
		card.EasinessFactor, card.IntervalDays, card.RepetitionNumber,
		card.Difficulty, card.ID,
	); err != nil {
		return nil, translateSQLiteError("update reviewed flashcard", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO review_history (id, flashcard_id, reviewed_at, correct, time_spent_seconds)
		VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.FlashcardID, encodeTime(record.ReviewedAt), record.Correct, record.TimeSpentSeconds,
	); err != nil {
		return nil, translateSQLiteError("insert review record", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, translateSQLiteError("commit review", err)
	}
	return card, nil
}

func (r *sqliteFlashcardRepository) Stats(ctx context.Context, now time.Time) (*repository.StatsAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := &repository.StatsAggregate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN next_review <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(correct_count), 0),
			COALESCE(SUM(incorrect_count), 0)
		FROM flashcards`, encodeTime(now),
	).Scan(&agg.TotalFlashcards, &agg.DueNow, &agg.TotalCorrect, &agg.TotalIncorrect)
	if err != nil {
		return nil, translateSQLiteError("flashcard stats", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT DATE(reviewed_at))
		FROM review_history
		WHERE reviewed_at >= ?`, encodeTime(now.AddDate(0, 0, -30)),
	).Scan(&agg.ActiveDays)
	if err != nil {
		return nil, translateSQLiteError("review activity stats", err)
	}
	return agg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteFlashcard(row rowScanner) (*entity.Flashcard, error) {
	var (
		card         entity.Flashcard
		tags         string
		documentID   sql.NullString
		createdAt    string
		lastReviewed sql.NullString
		nextReview   sql.NullString
	)
	err := row.Scan(
		&card.ID, &card.Subject, &card.Question, &card.Answer, &card.Difficulty,
		&tags, &documentID,
		&createdAt, &lastReviewed, &nextReview,
		&card.CorrectCount, &card.IncorrectCount,
		&card.EasinessFactor, &card.IntervalDays, &card.RepetitionNumber,
	)
	if err != nil {
		return nil, err
	}

	card.Tags = splitTags(tags)
	card.DocumentID = documentID.String

	if card.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if card.LastReviewedAt, err = decodeTimePtr(lastReviewed); err != nil {
		return nil, err
	}
	if card.NextReviewAt, err = decodeTimePtr(nextReview); err != nil {
		return nil, err
	}
	return &card, nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := encodeTime(*t)
	return &s
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp %q: %w", s, err)
	}
	return t, nil
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func translateSQLiteError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrFlashcardNotFound
	}
	return fmt.Errorf("%w: %s: %v", entity.ErrStorage, op, err)
}
