package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"flag-quiz-service/internal/app"
	"flag-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxBoardSize = 16

type WSHandler struct {
	service  *app.QuizService
	logger   *zap.Logger
	slots    int
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *zap.Logger, defaultSlots int) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultSlots <= 0 {
		defaultSlots = 4
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		slots:   defaultSlots,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Mode string `json:"mode"`
}

type answerPayload struct {
	Slot *int `json:"slot"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload,omitempty"`
}

type sessionPayload struct {
	ID string `json:"id"`
	boardShape
}

type statusPayload struct {
	State domain.ReadinessState `json:"state"`
	Error string                `json:"error,omitempty"`
}

type pagePayload struct {
	Page domain.Page `json:"page"`
}

type imagePayload struct {
	Target string `json:"target"`
	Slot   int    `json:"slot"`
	Index  int    `json:"index"`
	Src    string `json:"src"`
	Alt    string `json:"alt"`
}

type textPayload struct {
	Target string `json:"target"`
	Slot   int    `json:"slot"`
	Text   string `json:"text"`
}

type visibilityPayload struct {
	Target  string `json:"target"`
	Slot    int    `json:"slot"`
	Visible bool   `json:"visible"`
}

type answerResult struct {
	Slot    int  `json:"slot"`
	Correct bool `json:"correct"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Board targets as seen by the client.
const (
	targetQuestionFlag    = "questionFlag"
	targetQuestionCountry = "questionCountry"
	targetCountryAnswer   = "countryAnswer"
	targetFlagAnswer      = "flagAnswer"
)

// boardShape is how many view handles the client rendered.
type boardShape struct {
	Slots             int `json:"slots"`
	FlagImages        int `json:"flagImages"`
	QuestionFlags     int `json:"questionFlags"`
	QuestionCountries int `json:"questionCountries"`
}

func (h *WSHandler) parseShape(r *http.Request) (boardShape, error) {
	shape := boardShape{Slots: h.slots, FlagImages: 1, QuestionFlags: 1, QuestionCountries: 1}
	q := r.URL.Query()
	for name, field := range map[string]*int{
		"slots":             &shape.Slots,
		"flagImages":        &shape.FlagImages,
		"questionFlags":     &shape.QuestionFlags,
		"questionCountries": &shape.QuestionCountries,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxBoardSize {
			return boardShape{}, fmt.Errorf("invalid %s %q", name, raw)
		}
		*field = n
	}
	if shape.Slots == 0 {
		return boardShape{}, errors.New("slots must be positive")
	}
	return shape, nil
}

// ServeWS upgrades HTTP requests to websockets and plays one quiz session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	shape, err := h.parseShape(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	out := newOutbox(conn, h.logger)
	go out.run()

	ctx := r.Context()
	session := h.service.Open(ctx, newBoard(out, shape))
	logger := h.logger.With(zap.String("session_id", session.ID()))
	logger.Info("ws session started", zap.Int("slots", shape.Slots))

	out.push("session", sessionPayload{ID: session.ID(), boardShape: shape})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("ws read error", zap.Error(err))
			}
			break
		}
		h.service.Touch(ctx, session.ID())

		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.pushError("invalid start payload")
				continue
			}
			kind, err := domain.ParseRoundKind(payload.Mode)
			if err != nil {
				out.pushError(err.Error())
				continue
			}
			if err := session.Start(ctx, kind); err != nil {
				out.pushError(err.Error())
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Slot == nil {
				out.pushError("invalid answer payload")
				continue
			}
			// The board reports answerResult itself, ahead of the hide or the next round.
			if _, err := session.SelectAnswer(ctx, *payload.Slot); err != nil {
				out.pushError(err.Error())
			}
		case "home":
			session.ShowHome()
		default:
			out.pushError("unsupported message type")
		}
	}

	// Close waits for in-flight flag resolutions, which may still push.
	h.service.Close(session.ID())
	out.stop()
	<-out.finished
	logger.Info("ws session ended")
}

// outbox serializes writes to the connection. push never blocks once the
// outbox is stopped, so late flag resolutions cannot hang a closing session.
type outbox struct {
	conn     *websocket.Conn
	logger   *zap.Logger
	send     chan outboundMessage[any]
	done     chan struct{}
	finished chan struct{}
	once     sync.Once
}

func newOutbox(conn *websocket.Conn, logger *zap.Logger) *outbox {
	return &outbox{
		conn:     conn,
		logger:   logger,
		send:     make(chan outboundMessage[any], 64),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (o *outbox) run() {
	defer close(o.finished)
	for {
		select {
		case msg := <-o.send:
			if err := o.conn.WriteJSON(msg); err != nil {
				o.logger.Debug("ws write error", zap.Error(err))
				o.stop()
				// Unblock the reader as well.
				_ = o.conn.Close()
				return
			}
		case <-o.done:
			return
		}
	}
}

func (o *outbox) push(typ string, payload any) {
	select {
	case o.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-o.done:
	}
}

func (o *outbox) pushError(message string) {
	o.push("error", errorPayload{Message: message})
}

func (o *outbox) stop() {
	o.once.Do(func() { close(o.done) })
}

func newBoard(out *outbox, shape boardShape) app.Board {
	board := app.Board{
		Pages:   pageView{out: out},
		Status:  statusView{out: out},
		Answers: answerView{out: out},
	}
	for i := 0; i < shape.QuestionFlags; i++ {
		board.QuestionFlags = append(board.QuestionFlags, imageView{out: out, target: targetQuestionFlag, index: i})
	}
	for i := 0; i < shape.QuestionCountries; i++ {
		board.QuestionCountries = append(board.QuestionCountries, textView{out: out, target: targetQuestionCountry, slot: i})
	}
	for slot := 0; slot < shape.Slots; slot++ {
		board.CountryAnswers = append(board.CountryAnswers, countryAnswerView{
			textView: textView{out: out, target: targetCountryAnswer, slot: slot},
			slotView: slotView{out: out, target: targetCountryAnswer, slot: slot},
		})

		answer := app.FlagAnswer{Slot: slotView{out: out, target: targetFlagAnswer, slot: slot}}
		for i := 0; i < shape.FlagImages; i++ {
			answer.Images = append(answer.Images, imageView{out: out, target: targetFlagAnswer, slot: slot, index: i})
		}
		board.FlagAnswers = append(board.FlagAnswers, answer)
	}
	return board
}

type imageView struct {
	out         *outbox
	target      string
	slot, index int
}

func (v imageView) ShowImage(img domain.Image) {
	v.out.push("image", imagePayload{Target: v.target, Slot: v.slot, Index: v.index, Src: img.Src, Alt: img.Alt})
}

type textView struct {
	out    *outbox
	target string
	slot   int
}

func (v textView) ShowText(text string) {
	v.out.push("text", textPayload{Target: v.target, Slot: v.slot, Text: text})
}

type slotView struct {
	out    *outbox
	target string
	slot   int
}

func (v slotView) SetVisible(visible bool) {
	v.out.push("visibility", visibilityPayload{Target: v.target, Slot: v.slot, Visible: visible})
}

type countryAnswerView struct {
	textView
	slotView
}

type pageView struct {
	out *outbox
}

func (v pageView) ShowPage(page domain.Page) {
	v.out.push("page", pagePayload{Page: page})
}

type statusView struct {
	out *outbox
}

func (v statusView) ShowStatus(state domain.ReadinessState, err error) {
	payload := statusPayload{State: state}
	if err != nil {
		payload.Error = err.Error()
	}
	v.out.push("status", payload)
}

type answerView struct {
	out *outbox
}

func (v answerView) ShowAnswer(slot int, correct bool) {
	v.out.push("answerResult", answerResult{Slot: slot, Correct: correct})
}
