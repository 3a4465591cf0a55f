package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizgame/services"
)

// EventHistory serves the recorded events of a session.
type EventHistory interface {
	History(ctx context.Context, sessionID uuid.UUID) ([]services.EventEnvelope, error)
}

type GameHandler struct {
	gameService *services.GameService
	stats       *services.StatisticsObserver
	history     EventHistory
	log         *zap.Logger
}

// NewGameHandler builds the game endpoints. history may be nil when events
// are not recorded.
func NewGameHandler(gameService *services.GameService, stats *services.StatisticsObserver, history EventHistory, log *zap.Logger) *GameHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &GameHandler{
		gameService: gameService,
		stats:       stats,
		history:     history,
		log:         log,
	}
}

func (h *GameHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if !bindRequest(c, &req) {
		return
	}

	session, err := h.gameService.CreateGameSession(c.Request.Context(), mustUUID(req.PackID))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *GameHandler) AddPlayer(c *gin.Context) {
	var req AddPlayerRequest
	if !bindRequest(c, &req) {
		return
	}

	player, err := h.gameService.AddPlayer(c.Request.Context(), mustUUID(req.GameSessionID), req.PlayerName)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, player)
}

func (h *GameHandler) StartGame(c *gin.Context) {
	var req StartGameRequest
	if !bindRequest(c, &req) {
		return
	}

	session, err := h.gameService.StartGame(c.Request.Context(), mustUUID(req.GameSessionID))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *GameHandler) GetCurrentQuestion(c *gin.Context) {
	sessionID, ok := queryUUID(c, "game_session_id")
	if !ok {
		return
	}

	question, err := h.gameService.GetCurrentQuestion(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, question.Public())
}

func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if !bindRequest(c, &req) {
		return
	}

	result, err := h.gameService.SubmitAnswer(c.Request.Context(), mustUUID(req.PlayerID), mustUUID(req.VariantID))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":        result.String(),
		"game_finished": result == services.ResultGameFinished,
	})
}

func (h *GameHandler) GetResults(c *gin.Context) {
	sessionID, ok := queryUUID(c, "game_session_id")
	if !ok {
		return
	}

	results, err := h.gameService.GetGameResults(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *GameHandler) GetPlayers(c *gin.Context) {
	sessionID, ok := queryUUID(c, "game_session_id")
	if !ok {
		return
	}

	players, err := h.gameService.GetPlayers(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, players)
}

func (h *GameHandler) GetPlayerAnswers(c *gin.Context) {
	playerID, ok := queryUUID(c, "player_id")
	if !ok {
		return
	}

	answers, err := h.gameService.GetPlayerAnswers(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, answers)
}

// GetStats returns process-wide counters, or one session's counters when
// game_session_id is given.
func (h *GameHandler) GetStats(c *gin.Context) {
	if c.Query("game_session_id") == "" {
		c.JSON(http.StatusOK, h.stats.Global())
		return
	}

	sessionID, ok := queryUUID(c, "game_session_id")
	if !ok {
		return
	}
	stats, found := h.stats.Session(sessionID)
	if !found {
		respondError(c, h.log, services.ErrStatisticsNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"statistics": stats,
		"accuracy":   stats.Accuracy(),
	})
}

func (h *GameHandler) GetEvents(c *gin.Context) {
	sessionID, ok := queryUUID(c, "game_session_id")
	if !ok {
		return
	}
	if h.history == nil {
		respondError(c, h.log, services.ErrEventsNotRecorded)
		return
	}

	events, err := h.history.History(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, events)
}
