package app

import (
	"sync"

	"flag-quiz-service/internal/domain"
)

// ImageView renders a flag image.
type ImageView interface {
	ShowImage(img domain.Image)
}

// TextView renders a country name.
type TextView interface {
	ShowText(text string)
}

// SlotView toggles whether an answer slot can still be picked.
type SlotView interface {
	SetVisible(visible bool)
}

// CountryAnswerView is an answer slot of a country round: a clickable name.
type CountryAnswerView interface {
	TextView
	SlotView
}

// FlagAnswer is an answer slot of a flag round; every image in it shows the slot's flag.
type FlagAnswer struct {
	Slot   SlotView
	Images []ImageView
}

// PageView switches the visible screen.
type PageView interface {
	ShowPage(page domain.Page)
}

// StatusView is told once when the session finishes loading.
type StatusView interface {
	ShowStatus(state domain.ReadinessState, err error)
}

// AnswerView is told the outcome of an answer before the slot is hidden or the
// next round is rendered.
type AnswerView interface {
	ShowAnswer(slot int, correct bool)
}

// Board is the set of presentation handles a session renders into. Pages,
// Status and Answers are optional.
type Board struct {
	QuestionFlags     []ImageView
	CountryAnswers    []CountryAnswerView
	QuestionCountries []TextView
	FlagAnswers       []FlagAnswer
	Pages             PageView
	Status            StatusView
	Answers           AnswerView
}

// FlagTarget wraps an ImageView with the code it is currently waiting for.
type FlagTarget struct {
	view ImageView

	mu      sync.Mutex
	pending string
}

func NewFlagTarget(view ImageView) *FlagTarget {
	return &FlagTarget{view: view}
}

// Pending returns the code the target is currently bound to.
func (t *FlagTarget) Pending() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// retag points the target at code and shows img in the same critical section.
func (t *FlagTarget) retag(code string, img domain.Image) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = code
	t.view.ShowImage(img)
}

// applyIfPending shows img only if the target is still bound to code.
func (t *FlagTarget) applyIfPending(code string, img domain.Image) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != code {
		return false
	}
	t.view.ShowImage(img)
	return true
}
