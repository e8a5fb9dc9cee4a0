package app

import (
	"context"
	"math/rand"
	"sync"

	"flag-quiz-service/internal/domain"
)

type flagBinder interface {
	Bind(ctx context.Context, target *FlagTarget, code string) <-chan bool
}

// RoundGenerator draws codes for a round and renders it onto a Board.
type RoundGenerator struct {
	sampler *Sampler
	binder  flagBinder
	rnd     *rand.Rand
	catalog domain.Catalog
	board   Board

	questionFlags []*FlagTarget
	answerFlags   [][]*FlagTarget

	inflight sync.WaitGroup
}

func NewRoundGenerator(sampler *Sampler, binder flagBinder, rnd *rand.Rand, board Board) *RoundGenerator {
	g := &RoundGenerator{
		sampler: sampler,
		binder:  binder,
		rnd:     rnd,
		board:   board,
	}
	for _, view := range board.QuestionFlags {
		g.questionFlags = append(g.questionFlags, NewFlagTarget(view))
	}
	for _, answer := range board.FlagAnswers {
		targets := make([]*FlagTarget, 0, len(answer.Images))
		for _, view := range answer.Images {
			targets = append(targets, NewFlagTarget(view))
		}
		g.answerFlags = append(g.answerFlags, targets)
	}
	return g
}

// SetCatalog provides the names used for rendering. It must happen before the
// first round.
func (g *RoundGenerator) SetCatalog(catalog domain.Catalog) {
	g.catalog = catalog
}

// GenerateCountryRound shows the correct country's flag and offers slotCount names.
func (g *RoundGenerator) GenerateCountryRound(ctx context.Context, slotCount int) (domain.Round, error) {
	round, err := g.draw(domain.RoundCountry, slotCount)
	if err != nil {
		return domain.Round{}, err
	}

	correct := round.CorrectCode()
	for _, target := range g.questionFlags {
		g.bind(ctx, target, correct)
	}
	for i, view := range g.board.CountryAnswers {
		if i >= len(round.Codes) {
			view.SetVisible(false)
			continue
		}
		view.ShowText(g.catalog[round.Codes[i]])
		view.SetVisible(true)
	}
	return round, nil
}

// GenerateFlagRound shows the correct country's name and offers slotCount flags.
func (g *RoundGenerator) GenerateFlagRound(ctx context.Context, slotCount int) (domain.Round, error) {
	round, err := g.draw(domain.RoundFlag, slotCount)
	if err != nil {
		return domain.Round{}, err
	}

	name := g.catalog[round.CorrectCode()]
	for _, view := range g.board.QuestionCountries {
		view.ShowText(name)
	}
	for i, answer := range g.board.FlagAnswers {
		if i >= len(round.Codes) {
			answer.Slot.SetVisible(false)
			continue
		}
		for _, target := range g.answerFlags[i] {
			g.bind(ctx, target, round.Codes[i])
		}
		answer.Slot.SetVisible(true)
	}
	return round, nil
}

func (g *RoundGenerator) draw(kind domain.RoundKind, slotCount int) (domain.Round, error) {
	if slotCount <= 0 {
		return domain.Round{}, domain.ErrInsufficientPool
	}
	codes := g.sampler.Draw(slotCount)
	if len(codes) < slotCount {
		return domain.Round{}, domain.ErrInsufficientPool
	}
	return domain.Round{
		Kind:    kind,
		Codes:   codes,
		Correct: g.rnd.Intn(len(codes)),
	}, nil
}

// bind retags target synchronously; only the resolution runs in the background.
func (g *RoundGenerator) bind(ctx context.Context, target *FlagTarget, code string) {
	done := g.binder.Bind(ctx, target, code)
	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		<-done
	}()
}

// Wait blocks until every flag resolution started by this generator has finished.
func (g *RoundGenerator) Wait() {
	g.inflight.Wait()
}
