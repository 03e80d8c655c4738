package predictions

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draftroom/events"
	"github.com/mcdev12/draftroom/go/internal/draftroom/transport"
)

// Side-channel message types.
const (
	TypePing               = "PING"
	TypePong               = "PONG"
	TypeSubmitPrediction   = "SUBMIT_PREDICTION"
	TypeGetPredictions     = "GET_PREDICTIONS"
	TypeNewPrediction      = "NEW_PREDICTION"
	TypeConsensusUpdate    = "CONSENSUS_UPDATE"
	TypePredictionResult   = "PREDICTION_RESULT"
	TypePredictions        = "PREDICTIONS"
	TypePredictionRejected = "PREDICTION_REJECTED"
)

var ErrMissingUserID = errors.New("userId is required")

type submitRequest struct {
	QuestionID string `json:"questionId"`
	Choice     string `json:"choice"`
}

type rejection struct {
	QuestionID string `json:"questionId,omitempty"`
	Reason     string `json:"reason"`
}

type predictionsReply struct {
	UserID      string       `json:"userId"`
	Predictions []Prediction `json:"predictions"`
}

type pong struct {
	Timestamp time.Time `json:"timestamp"`
}

// Handler routes side-channel traffic between connections, the registry and the book.
type Handler struct {
	registry *Registry
	book     *Book
	clock    clockwork.Clock
}

func NewHandler(registry *Registry, book *Book, clock clockwork.Clock) *Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Handler{registry: registry, book: book, clock: clock}
}

// Registry returns the connection registry.
func (h *Handler) Registry() *Registry { return h.registry }

// OnConnect registers conn for userID and sends the user's current predictions.
func (h *Handler) OnConnect(conn transport.Conn, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	h.registry.Register(userID, conn)
	h.registry.SendTo(userID, transport.MustEnvelope(TypePredictions, predictionsReply{
		UserID:      userID,
		Predictions: h.book.ForUser(userID),
	}))

	log.Info().Str("user_id", userID).Msg("prediction channel connected")
	return nil
}

// OnMessage handles one inbound frame. Malformed frames are logged and dropped.
func (h *Handler) OnMessage(userID string, raw []byte) {
	env, err := transport.DecodeEnvelope(raw)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("dropping malformed prediction message")
		return
	}

	switch env.Type {
	case TypePing:
		h.registry.Touch(userID)
		h.registry.SendTo(userID, transport.MustEnvelope(TypePong, pong{Timestamp: h.clock.Now()}))

	case TypeSubmitPrediction:
		var req submitRequest
		if err := env.DecodeData(&req); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("dropping malformed prediction")
			return
		}
		h.submit(userID, req)

	case TypeGetPredictions:
		h.registry.SendTo(userID, transport.MustEnvelope(TypePredictions, predictionsReply{
			UserID:      userID,
			Predictions: h.book.ForUser(userID),
		}))

	default:
		log.Debug().Str("user_id", userID).Str("message_type", env.Type).Msg("ignoring unknown prediction message")
	}
}

func (h *Handler) submit(userID string, req submitRequest) {
	p, c, err := h.book.Submit(req.QuestionID, userID, req.Choice, h.clock.Now())
	if err != nil {
		h.registry.SendTo(userID, transport.MustEnvelope(TypePredictionRejected, rejection{
			QuestionID: req.QuestionID,
			Reason:     err.Error(),
		}))
		return
	}

	h.registry.BroadcastToAll(transport.MustEnvelope(TypeNewPrediction, p))
	h.registry.BroadcastToAll(transport.MustEnvelope(TypeConsensusUpdate, c))

	log.Debug().
		Str("user_id", userID).
		Str("question_id", p.QuestionID).
		Int("total", c.Total).
		Msg("prediction submitted")
}

// OnClose drops the registration if conn is still the user's connection.
func (h *Handler) OnClose(userID string, conn transport.Conn) {
	if h.registry.Release(userID, conn) {
		log.Info().Str("user_id", userID).Msg("prediction channel disconnected")
	}
}

// HandleResult resolves a question and announces the outcome to every connected user.
func (h *Handler) HandleResult(res events.PredictionResult) {
	resolution, err := h.book.Resolve(res.QuestionID, res.Outcome, res.ResolvedAt)
	if err != nil {
		log.Warn().Err(err).Str("question_id", res.QuestionID).Msg("ignoring duplicate prediction result")
		return
	}
	n := h.registry.BroadcastToAll(transport.MustEnvelope(TypePredictionResult, resolution))

	log.Info().
		Str("question_id", res.QuestionID).
		Str("outcome", res.Outcome).
		Int("winners", len(resolution.Winners)).
		Int("notified", n).
		Msg("prediction result announced")
}
