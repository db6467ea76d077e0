package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eslsoft/studydeck/internal/entity"
	"github.com/eslsoft/studydeck/internal/repository"
	"github.com/eslsoft/studydeck/internal/srs"
)

type fakeFlashcardRepo struct {
	mu      sync.RWMutex
	items   map[string]*entity.Flashcard
	history []entity.ReviewRecord
}

func newFakeFlashcardRepo() *fakeFlashcardRepo {
	return &fakeFlashcardRepo{items: make(map[string]*entity.Flashcard)}
}

func cloneFlashcard(card *entity.Flashcard) *entity.Flashcard {
	copy := *card
	copy.Tags = append([]string(nil), card.Tags...)
	if card.LastReviewedAt != nil {
		t := *card.LastReviewedAt
		copy.LastReviewedAt = &t
	}
	if card.NextReviewAt != nil {
		t := *card.NextReviewAt
		copy.NextReviewAt = &t
	}
	return &copy
}

func (r *fakeFlashcardRepo) Create(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := cloneFlashcard(card)
	r.items[copy.ID] = copy
	return cloneFlashcard(copy), nil
}

func (r *fakeFlashcardRepo) GetByID(ctx context.Context, id string) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, entity.ErrFlashcardNotFound
	}
	return cloneFlashcard(item), nil
}

func (r *fakeFlashcardRepo) List(ctx context.Context, query *repository.ListFlashcardQuery) ([]entity.Flashcard, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var filtered []*entity.Flashcard
	for _, item := range r.items {
		if query.Subject != "" && item.Subject != query.Subject {
			continue
		}
		if query.Tag != "" && !strings.Contains(strings.Join(item.Tags, ","), query.Tag) {
			continue
		}
		filtered = append(filtered, item)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	total := int64(len(filtered))
	page := query.Bound()
	if int(page.Offset) >= len(filtered) {
		return nil, total, nil
	}
	filtered = filtered[page.Offset:]
	if int(page.Limit) < len(filtered) {
		filtered = filtered[:page.Limit]
	}
	out := make([]entity.Flashcard, 0, len(filtered))
	for _, item := range filtered {
		out = append(out, *cloneFlashcard(item))
	}
	return out, total, nil
}

func (r *fakeFlashcardRepo) NextDue(ctx context.Context, subject string, now time.Time) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var due []*entity.Flashcard
	for _, item := range r.items {
		if subject != "" && item.Subject != subject {
			continue
		}
		if item.NextReviewAt != nil && item.NextReviewAt.After(now) {
			continue
		}
		due = append(due, item)
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if (a.NextReviewAt == nil) != (b.NextReviewAt == nil) {
			return a.NextReviewAt == nil
		}
		if a.NextReviewAt != nil && !a.NextReviewAt.Equal(*b.NextReviewAt) {
			return a.NextReviewAt.Before(*b.NextReviewAt)
		}
		pa := 1.0 / float64(a.CorrectCount+1) * float64(a.Difficulty)
		pb := 1.0 / float64(b.CorrectCount+1) * float64(b.Difficulty)
		return pa > pb
	})
	return cloneFlashcard(due[0]), nil
}

func (r *fakeFlashcardRepo) Update(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[card.ID]; !ok {
		return nil, entity.ErrFlashcardNotFound
	}
	copy := cloneFlashcard(card)
	r.items[copy.ID] = copy
	return cloneFlashcard(copy), nil
}

func (r *fakeFlashcardRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return entity.ErrFlashcardNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeFlashcardRepo) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, item := range r.items {
		if item.DocumentID == documentID {
			delete(r.items, id)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeFlashcardRepo) DeleteAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := int64(len(r.items))
	r.items = make(map[string]*entity.Flashcard)
	r.history = nil
	return removed, nil
}

func (r *fakeFlashcardRepo) Review(ctx context.Context, id string, fn repository.ReviewFunc) (*entity.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, entity.ErrFlashcardNotFound
	}
	copy := cloneFlashcard(item)
	record, err := fn(copy)
	if err != nil {
		return nil, err
	}
	r.items[id] = copy
	if record != nil {
		r.history = append(r.history, *record)
	}
	return cloneFlashcard(copy), nil
}

func (r *fakeFlashcardRepo) Stats(ctx context.Context, now time.Time) (*repository.StatsAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	agg := &repository.StatsAggregate{TotalFlashcards: int64(len(r.items))}
	for _, item := range r.items {
		agg.TotalCorrect += item.CorrectCount
		agg.TotalIncorrect += item.IncorrectCount
		if item.NextReviewAt == nil || !item.NextReviewAt.After(now) {
			agg.DueNow++
		}
	}
	days := make(map[string]struct{})
	cutoff := now.AddDate(0, 0, -30)
	for _, rec := range r.history {
		if rec.ReviewedAt.Before(cutoff) {
			continue
		}
		days[rec.ReviewedAt.UTC().Format("2006-01-02")] = struct{}{}
	}
	agg.ActiveDays = int64(len(days))
	return agg, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestFlashcardUsecase(repo *fakeFlashcardRepo, algorithm srs.Algorithm) *flashcardUsecase {
	if algorithm == nil {
		algorithm = srs.SM2{}
	}
	u := NewFlashcardUsecase(repo, algorithm).(*flashcardUsecase)
	u.clock = fixedClock(testNow)
	return u
}

func TestCreateAssignsDefaults(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	created, err := u.Create(context.Background(), &entity.Flashcard{
		Subject:  "biology",
		Question: "What is a mitochondrion?",
		Answer:   "The powerhouse of the cell",
		Tags:     []string{" cells ", "cells", "organelles"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.Difficulty != entity.MinDifficulty {
		t.Fatalf("difficulty = %d, want %d", created.Difficulty, entity.MinDifficulty)
	}
	if created.EasinessFactor != entity.DefaultEasinessFactor {
		t.Fatalf("easiness = %v, want %v", created.EasinessFactor, entity.DefaultEasinessFactor)
	}
	if len(created.Tags) != 2 {
		t.Fatalf("tags = %v, want deduplicated pair", created.Tags)
	}
	if created.NextReviewAt == nil || !created.NextReviewAt.Equal(testNow) {
		t.Fatalf("next review = %v, want immediately due at %v", created.NextReviewAt, testNow)
	}
}

func TestCreateRejectsInvalidContent(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	cases := []struct {
		name string
		card *entity.Flashcard
		want error
	}{
		{"blank question", &entity.Flashcard{Subject: "math", Question: "  ", Answer: "4"}, entity.ErrInvalidFlashcardText},
		{"blank subject", &entity.Flashcard{Subject: "", Question: "2+2?", Answer: "4"}, entity.ErrInvalidFlashcardText},
		{"difficulty too high", &entity.Flashcard{Subject: "math", Question: "2+2?", Answer: "4", Difficulty: 6}, entity.ErrInvalidDifficulty},
		{"tag with comma", &entity.Flashcard{Subject: "math", Question: "2+2?", Answer: "4", Tags: []string{"a,b"}}, entity.ErrInvalidTag},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := u.Create(context.Background(), tc.card); err != tc.want {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRecordAnswerCorrect(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	created, err := u.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "2+2?", Answer: "4", Difficulty: 3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	card, err := u.RecordAnswer(context.Background(), created.ID, true, nil)
	if err != nil {
		t.Fatalf("record answer: %v", err)
	}
	if card.CorrectCount != 1 || card.IncorrectCount != 0 {
		t.Fatalf("counts = %d/%d, want 1/0", card.CorrectCount, card.IncorrectCount)
	}
	if card.Difficulty != 2 {
		t.Fatalf("difficulty = %d, want 2", card.Difficulty)
	}
	if card.RepetitionNumber != 1 || card.IntervalDays != 1 {
		t.Fatalf("state = rep %d interval %d, want rep 1 interval 1", card.RepetitionNumber, card.IntervalDays)
	}
	wantDue := testNow.Add(24 * time.Hour)
	if card.NextReviewAt == nil || !card.NextReviewAt.Equal(wantDue) {
		t.Fatalf("next review = %v, want %v", card.NextReviewAt, wantDue)
	}
	if card.LastReviewedAt == nil || !card.LastReviewedAt.Equal(testNow) {
		t.Fatalf("last reviewed = %v, want %v", card.LastReviewedAt, testNow)
	}
	if len(repo.history) != 1 || !repo.history[0].Correct {
		t.Fatalf("history = %+v, want one correct record", repo.history)
	}
}

func TestRecordAnswerIncorrectResetsProgress(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	created, err := u.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "7*8?", Answer: "56", Difficulty: 3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := u.RecordAnswer(context.Background(), created.ID, true, nil); err != nil {
			t.Fatalf("correct answer %d: %v", i, err)
		}
	}
	card, err := u.RecordAnswer(context.Background(), created.ID, false, nil)
	if err != nil {
		t.Fatalf("incorrect answer: %v", err)
	}
	if card.RepetitionNumber != 0 {
		t.Fatalf("repetition = %d, want 0 after lapse", card.RepetitionNumber)
	}
	if card.IntervalDays != 1 {
		t.Fatalf("interval = %d, want 1 after lapse", card.IntervalDays)
	}
	wantDue := testNow.Add(24 * time.Hour)
	if card.NextReviewAt == nil || !card.NextReviewAt.Equal(wantDue) {
		t.Fatalf("next review = %v, want %v", card.NextReviewAt, wantDue)
	}
	if card.CorrectCount != 3 || card.IncorrectCount != 1 {
		t.Fatalf("counts = %d/%d, want 3/1", card.CorrectCount, card.IncorrectCount)
	}
}

func TestRecordAnswerDifficultyClamps(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	easy, _ := u.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "1+1?", Answer: "2", Difficulty: entity.MinDifficulty,
	})
	hard, _ := u.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "integrate x^2", Answer: "x^3/3", Difficulty: entity.MaxDifficulty,
	})

	card, err := u.RecordAnswer(context.Background(), easy.ID, true, nil)
	if err != nil {
		t.Fatalf("record answer: %v", err)
	}
	if card.Difficulty != entity.MinDifficulty {
		t.Fatalf("difficulty = %d, want clamp at %d", card.Difficulty, entity.MinDifficulty)
	}

	card, err = u.RecordAnswer(context.Background(), hard.ID, false, nil)
	if err != nil {
		t.Fatalf("record answer: %v", err)
	}
	if card.Difficulty != entity.MaxDifficulty {
		t.Fatalf("difficulty = %d, want clamp at %d", card.Difficulty, entity.MaxDifficulty)
	}
}

func TestRecordAnswerUnknownCard(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	if _, err := u.RecordAnswer(context.Background(), "missing", true, nil); err != entity.ErrFlashcardNotFound {
		t.Fatalf("err = %v, want %v", err, entity.ErrFlashcardNotFound)
	}
	if _, err := u.RecordAnswer(context.Background(), "  ", true, nil); err != entity.ErrInvalidFlashcardID {
		t.Fatalf("err = %v, want %v", err, entity.ErrInvalidFlashcardID)
	}
}

func TestRecordAnswerLongStreakStaysScheduledAhead(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	created, err := u.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "d/dx sin x?", Answer: "cos x",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var card *entity.Flashcard
	for i := 0; i < 40; i++ {
		card, err = u.RecordAnswer(context.Background(), created.ID, true, nil)
		if err != nil {
			t.Fatalf("answer %d: %v", i+1, err)
		}
		if card.LastReviewedAt == nil || card.NextReviewAt == nil {
			t.Fatalf("answer %d: missing review timestamps", i+1)
		}
		if card.NextReviewAt.Before(*card.LastReviewedAt) {
			t.Fatalf("answer %d: next review %v before last reviewed %v (interval %d)",
				i+1, card.NextReviewAt, card.LastReviewedAt, card.IntervalDays)
		}
	}
	if card.IntervalDays != srs.MaxIntervalDays {
		t.Fatalf("interval = %d, want cap %d", card.IntervalDays, srs.MaxIntervalDays)
	}
	wantDue := testNow.AddDate(0, 0, int(card.IntervalDays))
	if !card.NextReviewAt.Equal(wantDue) {
		t.Fatalf("next review = %v, want %v", card.NextReviewAt, wantDue)
	}
}

func TestNextDuePrefersNeverReviewed(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	reviewed, _ := u.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "2+2?", Answer: "4",
	})
	if _, err := u.RecordAnswer(context.Background(), reviewed.ID, false, nil); err != nil {
		t.Fatalf("record answer: %v", err)
	}
	// Move the reviewed card back into the due window.
	u.clock = fixedClock(testNow.Add(48 * time.Hour))

	fresh, _ := u.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "3+3?", Answer: "6",
	})
	repo.mu.Lock()
	repo.items[fresh.ID].NextReviewAt = nil
	repo.mu.Unlock()

	card, err := u.NextDue(context.Background(), "math")
	if err != nil {
		t.Fatalf("next due: %v", err)
	}
	if card == nil || card.ID != fresh.ID {
		t.Fatalf("got %+v, want never-reviewed card %s first", card, fresh.ID)
	}
}

func TestNextDueBreaksTiesByPriority(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	due := testNow.Add(-time.Hour)
	easy := &entity.Flashcard{ID: "easy", Subject: "math", Question: "q1", Answer: "a1",
		Difficulty: 2, CorrectCount: 9, NextReviewAt: &due, CreatedAt: testNow}
	hard := &entity.Flashcard{ID: "hard", Subject: "math", Question: "q2", Answer: "a2",
		Difficulty: 5, CorrectCount: 0, NextReviewAt: &due, CreatedAt: testNow}
	for _, card := range []*entity.Flashcard{easy, hard} {
		if _, err := repo.Create(context.Background(), card); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	card, err := u.NextDue(context.Background(), "")
	if err != nil {
		t.Fatalf("next due: %v", err)
	}
	if card == nil || card.ID != "hard" {
		t.Fatalf("got %+v, want the harder less-practiced card", card)
	}
}

func TestNextDueEmpty(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	card, err := u.NextDue(context.Background(), "history")
	if err != nil {
		t.Fatalf("next due: %v", err)
	}
	if card != nil {
		t.Fatalf("got %+v, want nil when nothing is due", card)
	}
}

func TestUpdateAppliesPatch(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	created, _ := u.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "2+2?", Answer: "5", Difficulty: 3, Tags: []string{"arith"},
	})

	answer := "4"
	difficulty := int32(2)
	card, err := u.Update(context.Background(), created.ID, &FlashcardPatch{
		Answer:     &answer,
		Difficulty: &difficulty,
		Tags:       []string{},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if card.Answer != "4" || card.Difficulty != 2 {
		t.Fatalf("card = %+v, want patched answer and difficulty", card)
	}
	if len(card.Tags) != 0 {
		t.Fatalf("tags = %v, want cleared", card.Tags)
	}
	if card.Question != "2+2?" {
		t.Fatalf("question = %q, want untouched", card.Question)
	}
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	created, _ := u.Create(context.Background(), &entity.Flashcard{
		Subject: "math", Question: "2+2?", Answer: "4",
	})

	difficulty := int32(9)
	if _, err := u.Update(context.Background(), created.ID, &FlashcardPatch{Difficulty: &difficulty}); err != entity.ErrInvalidDifficulty {
		t.Fatalf("err = %v, want %v", err, entity.ErrInvalidDifficulty)
	}
	if _, err := u.Update(context.Background(), "missing", nil); err != entity.ErrFlashcardNotFound {
		t.Fatalf("err = %v, want %v", err, entity.ErrFlashcardNotFound)
	}
}

func TestGenerateSkipsInvalidCandidates(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	result, err := u.Generate(context.Background(), "doc-1", "history", []GeneratedCard{
		{Question: "When did WW2 end?", Answer: "1945"},
		{Question: "", Answer: "no question"},
		{Question: "Who wrote the Iliad?", Answer: "Homer", Tags: []string{"epics"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Created) != 2 {
		t.Fatalf("created = %d, want 2", len(result.Created))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", result.Errors)
	}
	for _, card := range result.Created {
		if card.DocumentID != "doc-1" || card.Subject != "history" {
			t.Fatalf("card = %+v, want document and subject stamped", card)
		}
	}
}

func TestDeleteByDocument(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	if _, err := u.Generate(context.Background(), "doc-1", "history", []GeneratedCard{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := u.Create(context.Background(), &entity.Flashcard{
		Subject: "history", Question: "manual", Answer: "card",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	removed, err := u.DeleteByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("delete by document: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, total, _ := u.List(context.Background(), nil); total != 1 {
		t.Fatalf("remaining = %d, want 1", total)
	}
}

func TestDeleteAll(t *testing.T) {
	repo := newFakeFlashcardRepo()
	u := newTestFlashcardUsecase(repo, nil)

	for i := 0; i < 3; i++ {
		if _, err := u.Create(context.Background(), &entity.Flashcard{
			Subject: "math", Question: "q", Answer: "a",
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	removed, err := u.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
}
