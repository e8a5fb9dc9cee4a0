package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"flag-quiz-service/internal/app"
	"flag-quiz-service/internal/domain"
)

const (
	placeholder = "data:image/gif;base64,placeholder"
	fallback    = "data:image/gif;base64,fallback"
	contentType = "image/svg+xml"
	namespace   = "flags-test"
)

// imageSource serves "<svg>CODE</svg>" for every code. Codes listed in status
// answer with that status; codes with a gate block until it is released.
type imageSource struct {
	mu     sync.Mutex
	calls  map[string]int
	status map[string]int
	gates  map[string]chan struct{}
}

func newImageSource() *imageSource {
	return &imageSource{
		calls:  make(map[string]int),
		status: make(map[string]int),
		gates:  make(map[string]chan struct{}),
	}
}

func (s *imageSource) FetchImage(ctx context.Context, code string) (domain.ImageResponse, error) {
	s.mu.Lock()
	s.calls[code]++
	gate := s.gates[code]
	status := s.status[code]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.ImageResponse{}, ctx.Err()
		}
	}
	if status != 0 {
		return domain.ImageResponse{Status: status}, nil
	}
	return domain.ImageResponse{Status: 200, Body: flagBytes(code)}, nil
}

func (s *imageSource) hold(code string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gates[code] = gate
	return gate
}

func (s *imageSource) fail(code string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[code] = status
}

func (s *imageSource) callsFor(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[code]
}

func flagBytes(code string) []byte {
	return []byte("<svg>" + code + "</svg>")
}

func flagSrc(code string) string {
	return domain.FlagImage{Code: code, ContentType: contentType, Data: flagBytes(code)}.DataURI()
}

// countingCache counts lookups so tests can tell when callers have missed the cache.
type countingCache struct {
	app.ResponseCache
	gets atomic.Int32
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets.Add(1)
	return c.ResponseCache.Get(ctx, key)
}

// catalogSource returns raw (or err) once release is closed; a nil release never blocks.
type catalogSource struct {
	raw     any
	err     error
	release chan struct{}
}

func (s *catalogSource) FetchCatalog(ctx context.Context) (any, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.raw, s.err
}

var errCatalogDown = errors.New("catalog down")

type imageView struct {
	mu     sync.Mutex
	images []domain.Image
}

func (v *imageView) ShowImage(img domain.Image) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.images = append(v.images, img)
}

func (v *imageView) last() domain.Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.images) == 0 {
		return domain.Image{}
	}
	return v.images[len(v.images)-1]
}

type answerView struct {
	mu      sync.Mutex
	text    string
	visible bool
}

func (v *answerView) ShowText(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.text = text
}

func (v *answerView) SetVisible(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = visible
}

func (v *answerView) snapshot() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.text, v.visible
}

type outcome struct {
	slot    int
	correct bool
	// texts and visible are the country answers as they stood when the outcome arrived.
	texts   []string
	visible []bool
}

// outcomeView records each answer outcome along with the board it was reported against.
type outcomeView struct {
	answers []*answerView

	mu       sync.Mutex
	outcomes []outcome
}

func (v *outcomeView) ShowAnswer(slot int, correct bool) {
	o := outcome{slot: slot, correct: correct}
	for _, answer := range v.answers {
		text, visible := answer.snapshot()
		o.texts = append(o.texts, text)
		o.visible = append(o.visible, visible)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.outcomes = append(v.outcomes, o)
}

func (v *outcomeView) all() []outcome {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]outcome(nil), v.outcomes...)
}

type pageView struct {
	mu    sync.Mutex
	pages []domain.Page
}

func (v *pageView) ShowPage(page domain.Page) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pages = append(v.pages, page)
}

func (v *pageView) last() domain.Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.pages) == 0 {
		return ""
	}
	return v.pages[len(v.pages)-1]
}

type statusUpdate struct {
	state domain.ReadinessState
	err   error
}

type statusView struct {
	updates chan statusUpdate
}

func (v *statusView) ShowStatus(state domain.ReadinessState, err error) {
	v.updates <- statusUpdate{state: state, err: err}
}
