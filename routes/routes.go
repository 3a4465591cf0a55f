package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizgame/handlers"
	"quizgame/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func SetupRoutes(
	router *gin.Engine,
	packHandler *handlers.PackHandler,
	gameHandler *handlers.GameHandler,
	hub *services.Hub,
	gameService *services.GameService,
	log *zap.Logger,
) {
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Content routes
	router.POST("/create-pack", packHandler.CreatePack)
	router.POST("/create-pack-from-yaml", packHandler.CreatePackFromYAML)
	router.GET("/get-all-packs", packHandler.GetAllPacks)
	router.GET("/get-pack-by-id", packHandler.GetPackByID)
	router.POST("/create-question", packHandler.CreateQuestion)
	router.GET("/get-question-by-id", packHandler.GetQuestionByID)
	router.GET("/get-questions-by-pack-id", packHandler.GetQuestionsByPackID)
	router.POST("/create-variant", packHandler.CreateVariant)
	router.GET("/get-variant-by-id", packHandler.GetVariantByID)
	router.GET("/get-variants-by-question-id", packHandler.GetVariantsByQuestionID)

	games := router.Group("/game")
	{
		games.POST("/create-session", gameHandler.CreateSession)
		games.POST("/add-player", gameHandler.AddPlayer)
		games.POST("/start", gameHandler.StartGame)
		games.GET("/current-question", gameHandler.GetCurrentQuestion)
		games.POST("/submit-answer", gameHandler.SubmitAnswer)
		games.GET("/results", gameHandler.GetResults)
		games.GET("/players", gameHandler.GetPlayers)
		games.GET("/player-answers", gameHandler.GetPlayerAnswers)
		games.GET("/stats", gameHandler.GetStats)
		games.GET("/events", gameHandler.GetEvents)
	}

	// WebSocket endpoint for real-time game events
	router.GET("/ws/:game_session_id", func(c *gin.Context) {
		sessionID, err := uuid.Parse(c.Param("game_session_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game_session_id"})
			return
		}

		playerID, err := validatePlayerAccess(c, gameService, sessionID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			log.Error("websocket access check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			log.Warn("websocket upgrade failed",
				zap.String("game_session_id", sessionID.String()),
				zap.Error(err),
			)
			return
		}

		hub.RegisterClient(conn, sessionID, playerID)
	})
}

// validatePlayerAccess checks that the session exists and, when a player_id
// is given, that the player belongs to it. Watchers get uuid.Nil.
func validatePlayerAccess(c *gin.Context, gameService *services.GameService, sessionID uuid.UUID) (uuid.UUID, error) {
	ctx := c.Request.Context()
	if _, err := gameService.GetGameSession(ctx, sessionID); err != nil {
		return uuid.Nil, err
	}

	raw := c.Query("player_id")
	if raw == "" {
		return uuid.Nil, nil
	}
	playerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, services.ErrPlayerNotFound
	}
	player, err := gameService.GetPlayer(ctx, playerID)
	if err != nil {
		return uuid.Nil, err
	}
	if player.GameSessionID != sessionID {
		return uuid.Nil, services.ErrPlayerNotFound
	}
	return playerID, nil
}
