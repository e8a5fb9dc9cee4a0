package app

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"flag-quiz-service/internal/domain"
	"flag-quiz-service/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionRepository abstracts where open quiz sessions are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizService opens and tracks quiz sessions. Collaborators are shared by every session.
type QuizService struct {
	sessions SessionRepository
	loader   *CatalogLoader
	resolver *ImageResolver
	precache bool
	newRand  func() *rand.Rand
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a QuizService.
type Option func(*QuizService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *QuizService) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *QuizService) { s.metrics = m }
}

// WithPrecache makes every session warm the whole flag cache before it becomes ready.
func WithPrecache(enabled bool) Option {
	return func(s *QuizService) { s.precache = enabled }
}

// WithRand replaces the time-seeded random sources, for deterministic tests.
func WithRand(newRand func() *rand.Rand) Option {
	return func(s *QuizService) { s.newRand = newRand }
}

func NewQuizService(store SessionRepository, loader *CatalogLoader, resolver *ImageResolver, opts ...Option) *QuizService {
	s := &QuizService{
		sessions: store,
		loader:   loader,
		resolver: resolver,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a session rendering into board and starts loading its catalog.
// The session lives until Close or until ctx is cancelled.
func (s *QuizService) Open(ctx context.Context, board Board) *Session {
	session := newSession(ctx, uuid.NewString(), s, board)
	s.sessions.Put(session)
	s.metrics.SessionOpened()
	s.logger.Debug("quiz session opened", zap.String("session_id", session.id))
	return session
}

// Get returns an open session.
func (s *QuizService) Get(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Close stops a session and forgets it.
func (s *QuizService) Close(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	s.sessions.Delete(sessionID)
	if session.close() {
		s.metrics.SessionClosed()
		s.logger.Debug("quiz session closed", zap.String("session_id", sessionID))
	}
}

type sessionToucher interface {
	Touch(ctx context.Context, sessionID string) error
}

// Touch refreshes the session's liveness marker when the store keeps one.
func (s *QuizService) Touch(ctx context.Context, sessionID string) {
	toucher, ok := s.sessions.(sessionToucher)
	if !ok {
		return
	}
	if err := toucher.Touch(ctx, sessionID); err != nil {
		s.logger.Debug("session touch failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Catalog loads the filtered catalog outside of any session.
func (s *QuizService) Catalog(ctx context.Context) (domain.Catalog, error) {
	return s.loader.Load(ctx)
}

// Session is one player's quiz: its own sampling pool, readiness gate and board.
type Session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	service   *QuizService
	board     Board
	gate      *ReadinessGate
	sampler   *Sampler
	generator *RoundGenerator
	bg        sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	catalog    domain.Catalog
	round      *domain.Round
	eliminated []bool
	rounds     int
}

func newSession(parent context.Context, id string, service *QuizService, board Board) *Session {
	ctx, cancel := context.WithCancel(parent)
	sampler := NewSampler(service.newRand())
	s := &Session{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		service:   service,
		board:     board,
		gate:      NewReadinessGate(),
		sampler:   sampler,
		generator: NewRoundGenerator(sampler, service.resolver, service.newRand(), board),
	}

	s.gate.Start(ctx, s.load)
	s.bg.Add(1)
	go s.reportReadiness()
	return s
}

func (s *Session) load(ctx context.Context) error {
	catalog, err := s.service.loader.Load(ctx)
	if err != nil {
		return err
	}
	codes := catalog.Codes()
	if err := s.sampler.Initialize(codes); err != nil {
		return err
	}

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	s.generator.SetCatalog(catalog)

	if s.service.precache {
		s.service.resolver.WarmAll(ctx, codes)
	}
	return nil
}

func (s *Session) reportReadiness() {
	defer s.bg.Done()
	select {
	case <-s.gate.Done():
	case <-s.ctx.Done():
		return
	}

	state, err := s.gate.State()
	if err != nil {
		s.service.logger.Warn("quiz session failed to load", zap.String("session_id", s.id), zap.Error(err))
	}
	if s.board.Status != nil {
		s.board.Status.ShowStatus(state, err)
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Ready blocks until the session has loaded, returning the load error if it failed.
func (s *Session) Ready(ctx context.Context) error {
	return s.gate.Wait(ctx)
}

// StartCountryRound waits for the session to load, then shows a new flag-to-country round.
func (s *Session) StartCountryRound(ctx context.Context) error {
	return s.start(ctx, domain.RoundCountry)
}

// StartFlagRound waits for the session to load, then shows a new country-to-flag round.
func (s *Session) StartFlagRound(ctx context.Context) error {
	return s.start(ctx, domain.RoundFlag)
}

// Start dispatches to StartCountryRound or StartFlagRound.
func (s *Session) Start(ctx context.Context, kind domain.RoundKind) error {
	switch kind {
	case domain.RoundCountry, domain.RoundFlag:
		return s.start(ctx, kind)
	}
	return domain.ErrUnknownMode
}

func (s *Session) start(ctx context.Context, kind domain.RoundKind) error {
	if err := s.gate.Wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}

	s.nextRoundLocked(kind)
	if s.board.Pages != nil {
		s.board.Pages.ShowPage(pageFor(kind))
	}
	return nil
}

// nextRoundLocked replaces the current round. When the pool cannot fill the board
// the previous round stays on screen.
func (s *Session) nextRoundLocked(kind domain.RoundKind) {
	var (
		round domain.Round
		err   error
	)
	switch kind {
	case domain.RoundCountry:
		round, err = s.generator.GenerateCountryRound(s.ctx, len(s.board.CountryAnswers))
	case domain.RoundFlag:
		round, err = s.generator.GenerateFlagRound(s.ctx, len(s.board.FlagAnswers))
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientPool) {
			s.service.logger.Debug("skipping round", zap.String("session_id", s.id), zap.String("kind", string(kind)))
		}
		return
	}

	s.round = &round
	s.eliminated = make([]bool, len(round.Codes))
	s.rounds++
	s.service.metrics.Round(string(kind))
}

// SelectAnswer reacts to a click on an answer slot. The correct slot starts the
// next round of the same kind; a wrong slot is hidden and the round stays live.
func (s *Session) SelectAnswer(ctx context.Context, slot int) (bool, error) {
	if err := s.gate.Wait(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, domain.ErrSessionClosed
	}
	if s.round == nil {
		return false, domain.ErrNoActiveRound
	}
	if slot < 0 || slot >= len(s.round.Codes) {
		return false, domain.ErrInvalidSlot
	}
	if s.eliminated[slot] {
		return false, domain.ErrSlotEliminated
	}

	correct := slot == s.round.Correct
	if s.board.Answers != nil {
		s.board.Answers.ShowAnswer(slot, correct)
	}
	if correct {
		s.nextRoundLocked(s.round.Kind)
		return true, nil
	}

	s.eliminated[slot] = true
	if view := s.slotView(s.round.Kind, slot); view != nil {
		view.SetVisible(false)
	}
	return false, nil
}

func (s *Session) slotView(kind domain.RoundKind, slot int) SlotView {
	switch kind {
	case domain.RoundCountry:
		if slot < len(s.board.CountryAnswers) {
			return s.board.CountryAnswers[slot]
		}
	case domain.RoundFlag:
		if slot < len(s.board.FlagAnswers) {
			return s.board.FlagAnswers[slot].Slot
		}
	}
	return nil
}

// ShowHome switches the client back to the home page.
func (s *Session) ShowHome() {
	if s.board.Pages != nil {
		s.board.Pages.ShowPage(domain.PageHome)
	}
}

// Round returns a copy of the current round, if any.
func (s *Session) Round() (domain.Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round == nil {
		return domain.Round{}, false
	}
	round := *s.round
	round.Codes = append([]string(nil), s.round.Codes...)
	return round, true
}

// Status returns a snapshot of the session.
func (s *Session) Status() domain.SessionStatus {
	state, err := s.gate.State()

	s.mu.Lock()
	defer s.mu.Unlock()
	status := domain.SessionStatus{
		ID:        s.id,
		State:     state,
		Rounds:    s.rounds,
		Countries: len(s.catalog),
	}
	if err != nil {
		status.Error = err.Error()
	}
	if s.round != nil {
		status.Kind = s.round.Kind
	}
	return status
}

// close cancels the session and waits for outstanding flag resolutions. It
// reports whether this call did the closing.
func (s *Session) close() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.generator.Wait()
	s.bg.Wait()
	return true
}

func pageFor(kind domain.RoundKind) domain.Page {
	if kind == domain.RoundFlag {
		return domain.PageGuessFlag
	}
	return domain.PageGuessCountry
}
