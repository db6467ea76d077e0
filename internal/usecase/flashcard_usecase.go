package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eslsoft/studydeck/internal/entity"
	"github.com/eslsoft/studydeck/internal/repository"
	"github.com/eslsoft/studydeck/internal/srs"
)

// FlashcardPatch carries the updatable fields of a card. Nil pointers leave
// the stored value untouched; a nil Tags slice means "do not change tags"
// while an empty non-nil slice clears them.
type FlashcardPatch struct {
	Question   *string
	Answer     *string
	Difficulty *int32
	Tags       []string
}

// GeneratedCard is one candidate card produced from a source document.
type GeneratedCard struct {
	Question   string
	Answer     string
	Difficulty int32
	Tags       []string
}

// GenerateResult reports the outcome of a bulk generation. Cards are inserted
// independently; a failed candidate is recorded here and does not roll back
// the ones already created.
type GenerateResult struct {
	Created []entity.Flashcard
	Errors  []error
}

// FlashcardUsecase defines business logic for flashcards.
type FlashcardUsecase interface {
	Create(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error)
	Get(ctx context.Context, id string) (*entity.Flashcard, error)
	List(ctx context.Context, query *repository.ListFlashcardQuery) ([]entity.Flashcard, int64, error)

	// NextDue returns the most urgent due card, or nil when nothing is due.
	NextDue(ctx context.Context, subject string) (*entity.Flashcard, error)

	// RecordAnswer applies one answer to the card: counters, difficulty and
	// the scheduling state move together with the appended history record.
	RecordAnswer(ctx context.Context, id string, correct bool, timeSpentSeconds *int32) (*entity.Flashcard, error)

	Update(ctx context.Context, id string, patch *FlashcardPatch) (*entity.Flashcard, error)
	Delete(ctx context.Context, id string) error

	// Generate inserts a batch of document-derived cards under one subject.
	Generate(ctx context.Context, documentID, subject string, cards []GeneratedCard) (*GenerateResult, error)

	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type flashcardUsecase struct {
	repo      repository.FlashcardRepository
	algorithm srs.Algorithm
	clock     func() time.Time
}

// NewFlashcardUsecase builds the usecase around the given store and
// scheduling algorithm.
func NewFlashcardUsecase(repo repository.FlashcardRepository, algorithm srs.Algorithm) FlashcardUsecase {
	return &flashcardUsecase{repo: repo, algorithm: algorithm, clock: time.Now}
}

func (u *flashcardUsecase) Create(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error) {
	if card == nil {
		return nil, entity.ErrInvalidFlashcardText
	}
	card.ID = uuid.NewString()
	card.Normalize(u.clock().UTC())
	if err := card.Validate(); err != nil {
		return nil, err
	}
	return u.repo.Create(ctx, card)
}

func (u *flashcardUsecase) Get(ctx context.Context, id string) (*entity.Flashcard, error) {
	if strings.TrimSpace(id) == "" {
		return nil, entity.ErrInvalidFlashcardID
	}
	return u.repo.GetByID(ctx, id)
}

func (u *flashcardUsecase) List(ctx context.Context, query *repository.ListFlashcardQuery) ([]entity.Flashcard, int64, error) {
	if query == nil {
		query = &repository.ListFlashcardQuery{}
	}
	return u.repo.List(ctx, query)
}

func (u *flashcardUsecase) NextDue(ctx context.Context, subject string) (*entity.Flashcard, error) {
	return u.repo.NextDue(ctx, strings.TrimSpace(subject), u.clock().UTC())
}

func (u *flashcardUsecase) RecordAnswer(ctx context.Context, id string, correct bool, timeSpentSeconds *int32) (*entity.Flashcard, error) {
	if strings.TrimSpace(id) == "" {
		return nil, entity.ErrInvalidFlashcardID
	}
	now := u.clock().UTC()
	return u.repo.Review(ctx, id, func(card *entity.Flashcard) (*entity.ReviewRecord, error) {
		next := u.algorithm.ComputeNext(srs.State{
			EasinessFactor:   card.EasinessFactor,
			IntervalDays:     card.IntervalDays,
			RepetitionNumber: card.RepetitionNumber,
		}, correct)

		card.EasinessFactor = next.EasinessFactor
		card.IntervalDays = next.IntervalDays
		card.RepetitionNumber = next.RepetitionNumber

		if correct {
			card.CorrectCount++
			if card.Difficulty > entity.MinDifficulty {
				card.Difficulty--
			}
		} else {
			card.IncorrectCount++
			if card.Difficulty < entity.MaxDifficulty {
				card.Difficulty++
			}
		}

		reviewed := now
		// AddDate rather than a duration product: a long interval times
		// 24h does not fit in time.Duration.
		due := now.AddDate(0, 0, int(next.IntervalDays))
		card.LastReviewedAt = &reviewed
		card.NextReviewAt = &due

		return &entity.ReviewRecord{
			ID:               uuid.NewString(),
			FlashcardID:      card.ID,
			ReviewedAt:       now,
			Correct:          correct,
			TimeSpentSeconds: timeSpentSeconds,
		}, nil
	})
}

func (u *flashcardUsecase) Update(ctx context.Context, id string, patch *FlashcardPatch) (*entity.Flashcard, error) {
	if strings.TrimSpace(id) == "" {
		return nil, entity.ErrInvalidFlashcardID
	}
	card, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch != nil {
		if patch.Question != nil {
			card.Question = *patch.Question
		}
		if patch.Answer != nil {
			card.Answer = *patch.Answer
		}
		if patch.Difficulty != nil {
			card.Difficulty = *patch.Difficulty
		}
		if patch.Tags != nil {
			card.Tags = patch.Tags
		}
	}
	card.Normalize(u.clock().UTC())
	if err := card.Validate(); err != nil {
		return nil, err
	}
	return u.repo.Update(ctx, card)
}

func (u *flashcardUsecase) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return entity.ErrInvalidFlashcardID
	}
	return u.repo.Delete(ctx, id)
}

func (u *flashcardUsecase) Generate(ctx context.Context, documentID, subject string, cards []GeneratedCard) (*GenerateResult, error) {
	subject = strings.TrimSpace(subject)
	result := &GenerateResult{}
	for _, gen := range cards {
		card := &entity.Flashcard{
			ID:         uuid.NewString(),
			Subject:    subject,
			Question:   gen.Question,
			Answer:     gen.Answer,
			Difficulty: gen.Difficulty,
			Tags:       gen.Tags,
			DocumentID: documentID,
		}
		card.Normalize(u.clock().UTC())
		if err := card.Validate(); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		created, err := u.repo.Create(ctx, card)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Created = append(result.Created, *created)
	}
	return result, nil
}

func (u *flashcardUsecase) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, entity.ErrInvalidFlashcardID
	}
	return u.repo.DeleteByDocument(ctx, documentID)
}

func (u *flashcardUsecase) DeleteAll(ctx context.Context) (int64, error) {
	return u.repo.DeleteAll(ctx)
}
