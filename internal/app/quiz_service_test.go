package app_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"flag-quiz-service/internal/app"
	"flag-quiz-service/internal/domain"
	"flag-quiz-service/internal/infra/memory"
	"github.com/stretchr/testify/require"
)

func TestCountryRoundHasSingleCorrectSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4)
	session := h.open()

	require.NoError(t, session.StartCountryRound(ctx))

	round, ok := session.Round()
	require.True(t, ok)
	require.Equal(t, domain.RoundCountry, round.Kind)
	require.Len(t, round.Codes, 4)
	require.GreaterOrEqual(t, round.Correct, 0)
	require.Less(t, round.Correct, 4)
	requireDistinct(t, round.Codes)

	// The question flag is retagged before the round start returns.
	require.Equal(t, round.CorrectCode(), h.questionFlag.last().Code)
	for i, view := range h.countryAnswers {
		text, visible := view.snapshot()
		require.Equal(t, sampleCatalog()[round.Codes[i]], text)
		require.True(t, visible)
	}
	require.Equal(t, domain.PageGuessCountry, h.pages.last())

	require.Eventually(t, func() bool {
		return h.questionFlag.last().Src == flagSrc(round.CorrectCode())
	}, time.Second, 5*time.Millisecond)
}

func TestFlagRoundBindsEveryAnswer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4)
	session := h.open()

	require.NoError(t, session.StartFlagRound(ctx))

	round, ok := session.Round()
	require.True(t, ok)
	require.Equal(t, domain.RoundFlag, round.Kind)
	name, _ := h.questionCountry.snapshot()
	require.Equal(t, sampleCatalog()[round.CorrectCode()], name)
	require.Equal(t, domain.PageGuessFlag, h.pages.last())

	for i, code := range round.Codes {
		_, visible := h.flagSlots[i].snapshot()
		require.True(t, visible)
		require.Equal(t, code, h.flagImages[i].last().Code)
	}
	require.Eventually(t, func() bool {
		for i, code := range round.Codes {
			if h.flagImages[i].last().Src != flagSrc(code) {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestWrongAnswerHidesOnlyThatSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4)
	session := h.open()
	require.NoError(t, session.StartCountryRound(ctx))
	round, _ := session.Round()

	wrong := (round.Correct + 1) % len(round.Codes)
	correct, err := session.SelectAnswer(ctx, wrong)
	require.NoError(t, err)
	require.False(t, correct)

	for i, view := range h.countryAnswers {
		_, visible := view.snapshot()
		require.Equal(t, i != wrong, visible, "slot %d", i)
	}
	after, _ := session.Round()
	require.Equal(t, round.Codes, after.Codes, "wrong answers do not advance the round")

	_, err = session.SelectAnswer(ctx, wrong)
	require.ErrorIs(t, err, domain.ErrSlotEliminated)
	_, err = session.SelectAnswer(ctx, len(round.Codes))
	require.ErrorIs(t, err, domain.ErrInvalidSlot)
	_, err = session.SelectAnswer(ctx, -1)
	require.ErrorIs(t, err, domain.ErrInvalidSlot)
}

func TestCorrectAnswerStartsNextRoundOfSameKind(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4)
	session := h.open()
	require.NoError(t, session.StartFlagRound(ctx))
	first, _ := session.Round()

	// Eliminate one slot first; the next round must make it visible again.
	wrong := (first.Correct + 1) % len(first.Codes)
	_, err := session.SelectAnswer(ctx, wrong)
	require.NoError(t, err)

	correct, err := session.SelectAnswer(ctx, first.Correct)
	require.NoError(t, err)
	require.True(t, correct)

	next, ok := session.Round()
	require.True(t, ok)
	require.Equal(t, domain.RoundFlag, next.Kind)
	for _, code := range next.Codes {
		require.NotContains(t, first.Codes, code, "codes must not repeat in consecutive rounds")
	}
	for i := range h.flagSlots {
		_, visible := h.flagSlots[i].snapshot()
		require.True(t, visible)
	}
	require.Equal(t, 2, session.Status().Rounds)
}

func TestAnswerOutcomeReportedBeforeBoardChanges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4)
	outcomes := &outcomeView{answers: h.countryAnswers}
	h.board.Answers = outcomes
	session := h.open()
	require.NoError(t, session.StartCountryRound(ctx))
	first, _ := session.Round()

	var names []string
	for _, code := range first.Codes {
		names = append(names, sampleCatalog()[code])
	}

	wrong := (first.Correct + 1) % len(first.Codes)
	_, err := session.SelectAnswer(ctx, wrong)
	require.NoError(t, err)
	correct, err := session.SelectAnswer(ctx, first.Correct)
	require.NoError(t, err)
	require.True(t, correct)

	got := outcomes.all()
	require.Len(t, got, 2)
	require.Equal(t, wrong, got[0].slot)
	require.False(t, got[0].correct)
	require.True(t, got[0].visible[wrong], "wrong slot is hidden after its outcome is reported")

	require.Equal(t, first.Correct, got[1].slot)
	require.True(t, got[1].correct)
	require.Equal(t, names, got[1].texts, "next round is rendered after the outcome is reported")

	_, err = session.SelectAnswer(ctx, 99)
	require.ErrorIs(t, err, domain.ErrInvalidSlot)
	require.Len(t, outcomes.all(), 2, "rejected answers report no outcome")
}

func TestAnswerWithoutRound(t *testing.T) {
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4)
	session := h.open()

	_, err := session.SelectAnswer(context.Background(), 0)
	require.ErrorIs(t, err, domain.ErrNoActiveRound)
}

func TestRoundStartsWaitForReadiness(t *testing.T) {
	source := &catalogSource{raw: sampleCatalog(), release: make(chan struct{})}
	h := newHarness(t, source, 4)
	session := h.open()

	starts := []func(context.Context) error{
		session.StartCountryRound,
		session.StartFlagRound,
		session.StartCountryRound,
	}
	results := make(chan error, len(starts))
	for _, start := range starts {
		go func() { results <- start(context.Background()) }()
	}

	select {
	case err := <-results:
		t.Fatalf("round started before the catalog loaded: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	require.Equal(t, domain.ReadinessPending, session.Status().State)
	_, ok := session.Round()
	require.False(t, ok)

	close(source.release)
	for range starts {
		require.NoError(t, <-results)
	}
	require.Equal(t, 3, session.Status().Rounds)
	require.Equal(t, domain.ReadinessReady, (<-h.status.updates).state)
}

func TestRoundStartsFailIdentically(t *testing.T) {
	source := &catalogSource{err: errCatalogDown, release: make(chan struct{})}
	h := newHarness(t, source, 4)
	session := h.open()

	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { results <- session.StartCountryRound(context.Background()) }()
	}
	close(source.release)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, <-results, errCatalogDown)
	}
	require.ErrorIs(t, session.StartFlagRound(context.Background()), errCatalogDown)
	_, err := session.SelectAnswer(context.Background(), 0)
	require.ErrorIs(t, err, errCatalogDown)

	update := <-h.status.updates
	require.Equal(t, domain.ReadinessFailed, update.state)
	require.ErrorIs(t, update.err, errCatalogDown)

	status := session.Status()
	require.Equal(t, domain.ReadinessFailed, status.State)
	require.Contains(t, status.Error, "catalog down")
}

func TestMalformedCatalogFailsSession(t *testing.T) {
	h := newHarness(t, &catalogSource{raw: []any{"FR"}}, 4)
	session := h.open()

	require.ErrorIs(t, session.StartCountryRound(context.Background()), domain.ErrMalformedCatalog)
	require.ErrorIs(t, session.Ready(context.Background()), domain.ErrMalformedCatalog)
}

func TestTwoCountryCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := map[string]string{"FR": "France", "DE": "Germany"}

	// One slot: every round is both slots of the pool in turn.
	h := newHarness(t, memory.NewStaticCatalogSource(catalog), 1)
	session := h.open()
	require.NoError(t, session.StartCountryRound(ctx))
	round, ok := session.Round()
	require.True(t, ok)
	require.Equal(t, 0, round.Correct)
	require.Contains(t, catalog, round.CorrectCode())

	// Two slots: only one code is ever drawable, so no round forms.
	h = newHarness(t, memory.NewStaticCatalogSource(catalog), 2)
	session = h.open()
	require.NoError(t, session.StartCountryRound(ctx))
	_, ok = session.Round()
	require.False(t, ok)
	require.Zero(t, session.Status().Rounds)
}

func TestShortDrawKeepsPreviousRound(t *testing.T) {
	ctx := context.Background()
	// Three countries, two slots: the pool alternates between one and two drawable codes.
	h := newHarness(t, memory.NewStaticCatalogSource(map[string]string{
		"FR": "France", "DE": "Germany", "IT": "Italy",
	}), 2)
	session := h.open()

	require.NoError(t, session.StartCountryRound(ctx))
	_, ok := session.Round()
	require.False(t, ok)

	require.NoError(t, session.StartCountryRound(ctx))
	round, ok := session.Round()
	require.True(t, ok)

	correct, err := session.SelectAnswer(ctx, round.Correct)
	require.NoError(t, err)
	require.True(t, correct)

	kept, _ := session.Round()
	require.Equal(t, round.Codes, kept.Codes)
	require.Equal(t, 1, session.Status().Rounds)
}

func TestPrecacheWarmsEveryFlag(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4, app.WithPrecache(true))
	session := h.open()

	require.NoError(t, session.Ready(ctx))
	for code := range sampleCatalog() {
		require.Equal(t, 1, h.images.callsFor(code), code)
	}
	require.NoError(t, session.StartFlagRound(ctx))
	h.service.Close(session.ID())
	for code := range sampleCatalog() {
		require.Equal(t, 1, h.images.callsFor(code), "round for %s served from cache", code)
	}
}

func TestPrecacheFailuresDoNotFailReadiness(t *testing.T) {
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4, app.WithPrecache(true))
	h.images.fail("FR", 500)
	session := h.open()

	require.NoError(t, session.Ready(context.Background()))
	require.Equal(t, domain.ReadinessReady, session.Status().State)
}

func TestClosedSessionRejectsRounds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4)
	session := h.open()
	require.NoError(t, session.StartCountryRound(ctx))

	h.service.Close(session.ID())
	require.ErrorIs(t, session.StartCountryRound(ctx), domain.ErrSessionClosed)
	_, err := h.service.Get(session.ID())
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	// Closing twice is harmless.
	h.service.Close(session.ID())
}

func TestShowHome(t *testing.T) {
	h := newHarness(t, memory.NewStaticCatalogSource(sampleCatalog()), 4)
	session := h.open()
	session.ShowHome()
	require.Equal(t, domain.PageHome, h.pages.last())
}

type harness struct {
	t       *testing.T
	service *app.QuizService
	images  *imageSource

	questionFlag    *imageView
	countryAnswers  []*answerView
	questionCountry *answerView
	flagSlots       []*answerView
	flagImages      []*imageView
	pages           *pageView
	status          *statusView
	board           app.Board
}

func newHarness(t *testing.T, source app.CatalogSource, slots int, opts ...app.Option) *harness {
	t.Helper()
	h := &harness{
		t:               t,
		images:          newImageSource(),
		questionFlag:    &imageView{},
		questionCountry: &answerView{},
		pages:           &pageView{},
		status:          &statusView{updates: make(chan statusUpdate, 1)},
	}

	h.board = app.Board{
		QuestionFlags:     []app.ImageView{h.questionFlag},
		QuestionCountries: []app.TextView{h.questionCountry},
		Pages:             h.pages,
		Status:            h.status,
	}
	for i := 0; i < slots; i++ {
		answer := &answerView{}
		h.countryAnswers = append(h.countryAnswers, answer)
		h.board.CountryAnswers = append(h.board.CountryAnswers, answer)

		slot, img := &answerView{}, &imageView{}
		h.flagSlots = append(h.flagSlots, slot)
		h.flagImages = append(h.flagImages, img)
		h.board.FlagAnswers = append(h.board.FlagAnswers, app.FlagAnswer{Slot: slot, Images: []app.ImageView{img}})
	}

	var seed int64
	var mu sync.Mutex
	opts = append([]app.Option{app.WithRand(func() *rand.Rand {
		mu.Lock()
		defer mu.Unlock()
		seed++
		return rand.New(rand.NewSource(seed))
	})}, opts...)

	resolver := newResolver(h.images, memory.NewResponseCache())
	h.service = app.NewQuizService(memory.NewSessionStore(), app.NewCatalogLoader(source, nil), resolver, opts...)
	return h
}

func (h *harness) open() *app.Session {
	session := h.service.Open(context.Background(), h.board)
	h.t.Cleanup(func() { h.service.Close(session.ID()) })
	return session
}

func requireDistinct(t *testing.T, codes []string) {
	t.Helper()
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}
}

func sampleCatalog() map[string]string {
	return map[string]string{
		"FR": "France",
		"DE": "Germany",
		"IT": "Italy",
		"ES": "Spain",
		"PT": "Portugal",
		"NL": "Netherlands",
		"BE": "Belgium",
		"AT": "Austria",
	}
}
