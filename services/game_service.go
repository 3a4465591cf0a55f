package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizgame/models"
	"quizgame/storage"
)

// DefaultPointsPerCorrectAnswer is used when NewGameService gets no positive value.
const DefaultPointsPerCorrectAnswer = 10

// Store is the persistence the game engine needs. storage.GormStore
// implements it; conditional session transitions report
// storage.ErrStaleSession when the session moved on concurrently.
type Store interface {
	GetPackByID(ctx context.Context, id uuid.UUID) (*models.Pack, error)

	CreateGameSession(ctx context.Context, packID uuid.UUID) (*models.GameSession, error)
	GetGameSessionByID(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	StartGameSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	AdvanceToNextQuestion(ctx context.Context, id uuid.UUID, newIndex int) (*models.GameSession, error)
	EndGameSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error)

	AddPlayer(ctx context.Context, sessionID uuid.UUID, name string) (*models.Player, error)
	GetPlayerByID(ctx context.Context, id uuid.UUID) (*models.Player, error)
	GetPlayersByGameSessionID(ctx context.Context, sessionID uuid.UUID) ([]models.Player, error)
	UpdatePlayerScore(ctx context.Context, playerID uuid.UUID, delta int) (*models.Player, error)

	SubmitPlayerAnswer(ctx context.Context, playerID, questionID, variantID uuid.UUID, isCorrect bool) (*models.PlayerAnswer, error)
	GetPlayerAnswersByPlayerID(ctx context.Context, playerID uuid.UUID) ([]models.PlayerAnswer, error)
	GetAnswersCountForQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (int, error)

	CheckVariantCorrectnessByID(ctx context.Context, variantID uuid.UUID) (bool, error)
	GetQuestionsAndVariantsByPackID(ctx context.Context, packID uuid.UUID) ([]models.QuestionWithVariants, error)
}

var _ Store = (*storage.GormStore)(nil)

// GameResult is the outcome of SubmitAnswer. The zero value is ResultError.
type GameResult int

const (
	ResultError GameResult = iota
	ResultCorrect
	ResultIncorrect
	ResultGameFinished
)

func (r GameResult) String() string {
	switch r {
	case ResultCorrect:
		return "correct"
	case ResultIncorrect:
		return "incorrect"
	case ResultGameFinished:
		return "game_finished"
	default:
		return "error"
	}
}

// GameQuestion is the question a session currently shows, with its
// variants including correctness. Use Public before handing it to players.
type GameQuestion struct {
	Question models.Question
	Variants []models.Variant
	Index    int
	Total    int
}

type PublicVariant struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
	// Don't include IsCorrect during an active game
}

type PublicQuestion struct {
	ID             uuid.UUID       `json:"id"`
	Text           string          `json:"text"`
	ImageURL       string          `json:"image_url,omitempty"`
	QuestionIndex  int             `json:"question_index"`
	TotalQuestions int             `json:"total_questions"`
	Variants       []PublicVariant `json:"variants"`
}

func (q *GameQuestion) Public() PublicQuestion {
	variants := make([]PublicVariant, 0, len(q.Variants))
	for _, v := range q.Variants {
		variants = append(variants, PublicVariant{ID: v.ID, Text: v.Text})
	}
	return PublicQuestion{
		ID:             q.Question.ID,
		Text:           q.Question.Text,
		ImageURL:       q.Question.ImageURL,
		QuestionIndex:  q.Index,
		TotalQuestions: q.Total,
		Variants:       variants,
	}
}

// GameState is a snapshot of a session for reconnecting clients.
type GameState struct {
	Session         models.GameSession `json:"session"`
	Players         []models.Player    `json:"players"`
	CurrentQuestion *PublicQuestion    `json:"current_question,omitempty"`
	TotalQuestions  int                `json:"total_questions"`
}

// GameResults is a session with its players ranked by score.
type GameResults struct {
	Session     models.GameSession `json:"session"`
	Leaderboard []models.Player    `json:"leaderboard"`
}

// GameService owns the session state machine. Every mutating operation
// persists first and only then notifies observers; failed operations emit
// nothing.
type GameService struct {
	store    Store
	registry *ObserverRegistry
	points   int
	locks    *sessionLocks
	log      *zap.Logger
}

func NewGameService(store Store, registry *ObserverRegistry, pointsPerCorrectAnswer int, log *zap.Logger) *GameService {
	if log == nil {
		log = zap.NewNop()
	}
	if registry == nil {
		registry = NewObserverRegistry(log)
	}
	if pointsPerCorrectAnswer <= 0 {
		pointsPerCorrectAnswer = DefaultPointsPerCorrectAnswer
	}
	return &GameService{
		store:    store,
		registry: registry,
		points:   pointsPerCorrectAnswer,
		locks:    newSessionLocks(),
		log:      log,
	}
}

func (s *GameService) AddObserver(o Observer)    { s.registry.AddObserver(o) }
func (s *GameService) RemoveObserver(o Observer) { s.registry.RemoveObserver(o) }
func (s *GameService) ClearObservers()            { s.registry.ClearObservers() }
func (s *GameService) Observers() *ObserverRegistry {
	return s.registry
}

func (s *GameService) CreateGameSession(ctx context.Context, packID uuid.UUID) (*models.GameSession, error) {
	if _, err := s.store.GetPackByID(ctx, packID); err != nil {
		return nil, lookupErr(err, ErrPackNotFound, "get pack")
	}

	session, err := s.store.CreateGameSession(ctx, packID)
	if err != nil {
		return nil, fmt.Errorf("create game session: %w", err)
	}

	s.log.Info("game session created",
		zap.String("game_session_id", session.ID.String()),
		zap.String("pack_id", packID.String()),
	)
	s.registry.NotifyObservers(NewGameSessionCreatedEvent(session.ID, packID))
	return session, nil
}

func (s *GameService) GetGameSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	session, err := s.store.GetGameSessionByID(ctx, sessionID)
	if err != nil {
		return nil, lookupErr(err, ErrSessionNotFound, "get game session")
	}
	return session, nil
}

// AddPlayer joins a player to a session that has not started yet.
func (s *GameService) AddPlayer(ctx context.Context, sessionID uuid.UUID, name string) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErr(errors.New("player name is required"))
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.store.GetGameSessionByID(ctx, sessionID)
	if err != nil {
		return nil, lookupErr(err, ErrSessionNotFound, "get game session")
	}
	if session.State != models.SessionWaiting {
		return nil, ErrInvalidState
	}

	player, err := s.store.AddPlayer(ctx, sessionID, name)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrPlayerNameTaken
		}
		return nil, fmt.Errorf("add player: %w", err)
	}

	s.registry.NotifyObservers(NewPlayerAddedEvent(sessionID, *player))
	return player, nil
}

// StartGame moves a waiting session to active and presents the first question.
func (s *GameService) StartGame(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.store.GetGameSessionByID(ctx, sessionID)
	if err != nil {
		return nil, lookupErr(err, ErrSessionNotFound, "get game session")
	}
	if session.State != models.SessionWaiting {
		return nil, ErrInvalidState
	}

	questions, err := s.store.GetQuestionsAndVariantsByPackID(ctx, session.PackID)
	if err != nil {
		return nil, fmt.Errorf("get pack questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrPackHasNoQuestions
	}

	players, err := s.store.GetPlayersByGameSessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get players: %w", err)
	}
	if len(players) == 0 {
		return nil, ErrNoPlayers
	}

	started, err := s.store.StartGameSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrStaleSession) {
			return nil, ErrInvalidState
		}
		return nil, lookupErr(err, ErrSessionNotFound, "start game session")
	}

	s.log.Info("game started",
		zap.String("game_session_id", sessionID.String()),
		zap.Int("players", len(players)),
		zap.Int("questions", len(questions)),
	)
	s.registry.NotifyObservers(NewGameStartedEvent(sessionID, len(players), len(questions)))
	s.registry.NotifyObservers(NewQuestionPresentedEvent(sessionID, questions[0].Question, 0, len(questions)))
	return started, nil
}

// GetCurrentQuestion returns ErrNoCurrentQuestion once the session is
// finished or when its index is past the end of the pack.
func (s *GameService) GetCurrentQuestion(ctx context.Context, sessionID uuid.UUID) (*GameQuestion, error) {
	session, err := s.store.GetGameSessionByID(ctx, sessionID)
	if err != nil {
		return nil, lookupErr(err, ErrSessionNotFound, "get game session")
	}
	if session.State == models.SessionFinished {
		return nil, ErrNoCurrentQuestion
	}

	questions, err := s.store.GetQuestionsAndVariantsByPackID(ctx, session.PackID)
	if err != nil {
		return nil, fmt.Errorf("get pack questions: %w", err)
	}
	return currentQuestion(session, questions)
}

func currentQuestion(session *models.GameSession, questions []models.QuestionWithVariants) (*GameQuestion, error) {
	idx := session.CurrentQuestionIndex
	if idx < 0 || idx >= len(questions) {
		return nil, ErrNoCurrentQuestion
	}
	return &GameQuestion{
		Question: questions[idx].Question,
		Variants: questions[idx].Variants,
		Index:    idx,
		Total:    len(questions),
	}, nil
}

// SubmitAnswer records a player's answer to the current question, scores
// it, and advances or finishes the session once every player has answered.
func (s *GameService) SubmitAnswer(ctx context.Context, playerID, variantID uuid.UUID) (GameResult, error) {
	isCorrect, err := s.store.CheckVariantCorrectnessByID(ctx, variantID)
	if err != nil {
		return ResultError, lookupErr(err, ErrVariantNotFound, "check variant")
	}

	player, err := s.store.GetPlayerByID(ctx, playerID)
	if err != nil {
		return ResultError, lookupErr(err, ErrPlayerNotFound, "get player")
	}

	unlock := s.locks.lock(player.GameSessionID)
	defer unlock()

	session, err := s.store.GetGameSessionByID(ctx, player.GameSessionID)
	if err != nil {
		return ResultError, lookupErr(err, ErrSessionNotFound, "get game session")
	}
	if session.State != models.SessionActive {
		return ResultError, ErrInvalidState
	}

	questions, err := s.store.GetQuestionsAndVariantsByPackID(ctx, session.PackID)
	if err != nil {
		return ResultError, fmt.Errorf("get pack questions: %w", err)
	}
	current, err := currentQuestion(session, questions)
	if err != nil {
		return ResultError, err
	}
	if !containsVariant(current.Variants, variantID) {
		return ResultError, ErrVariantNotInQuestion
	}

	if _, err := s.store.SubmitPlayerAnswer(ctx, playerID, current.Question.ID, variantID, isCorrect); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// A retry after a failed settle closes the question that is still open.
			if _, err := s.settleQuestion(ctx, session.ID, questions, current); err != nil {
				s.logSettleFailure(session.ID, err)
			}
			return ResultError, ErrAnswerAlreadySubmitted
		}
		return ResultError, fmt.Errorf("submit answer: %w", err)
	}
	s.registry.NotifyObservers(NewAnswerSubmittedEvent(session.ID, playerID, current.Question.ID, variantID, isCorrect, player.Name))

	if isCorrect {
		updated, err := s.store.UpdatePlayerScore(ctx, playerID, s.points)
		if err != nil {
			// The answer is already recorded; the game goes on without the points.
			s.log.Warn("failed to update player score",
				zap.String("player_id", playerID.String()),
				zap.Error(err),
			)
		} else {
			s.registry.NotifyObservers(NewPlayerScoreUpdatedEvent(session.ID, playerID, player.Name, player.Score, updated.Score))
		}
	}

	outcome := ResultIncorrect
	if isCorrect {
		outcome = ResultCorrect
	}

	finished, err := s.settleQuestion(ctx, session.ID, questions, current)
	if err != nil {
		// The answer is recorded; a later submission settles the question.
		s.logSettleFailure(session.ID, err)
		return outcome, nil
	}
	if finished {
		return ResultGameFinished, nil
	}
	return outcome, nil
}

// settleQuestion closes the current question once every player has answered
// it, advancing the session or finishing it after the last question. It
// reports whether the game is over.
func (s *GameService) settleQuestion(ctx context.Context, sessionID uuid.UUID, questions []models.QuestionWithVariants, current *GameQuestion) (bool, error) {
	players, err := s.store.GetPlayersByGameSessionID(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("get players: %w", err)
	}
	answered, err := s.store.GetAnswersCountForQuestion(ctx, sessionID, current.Question.ID)
	if err != nil {
		return false, fmt.Errorf("count answers: %w", err)
	}
	if answered < len(players) {
		return false, nil
	}

	s.registry.NotifyObservers(NewAllPlayersAnsweredEvent(sessionID, current.Question.ID, current.Index, len(players), answered))

	if current.Index == len(questions)-1 {
		if _, err := s.store.EndGameSession(ctx, sessionID); err != nil {
			if errors.Is(err, storage.ErrStaleSession) {
				return true, nil
			}
			return false, fmt.Errorf("end game session: %w", err)
		}
		s.log.Info("game finished", zap.String("game_session_id", sessionID.String()))
		s.registry.NotifyObservers(NewGameFinishedEvent(sessionID, len(questions), len(players)))
		return true, nil
	}

	next := current.Index + 1
	if _, err := s.store.AdvanceToNextQuestion(ctx, sessionID, next); err != nil {
		if errors.Is(err, storage.ErrStaleSession) {
			return false, nil
		}
		return false, fmt.Errorf("advance question: %w", err)
	}
	s.registry.NotifyObservers(NewQuestionAdvancedEvent(sessionID, current.Index, next))
	s.registry.NotifyObservers(NewQuestionPresentedEvent(sessionID, questions[next].Question, next, len(questions)))
	return false, nil
}

func (s *GameService) logSettleFailure(sessionID uuid.UUID, err error) {
	s.log.Error("failed to settle question",
		zap.String("game_session_id", sessionID.String()),
		zap.Error(err),
	)
}

func containsVariant(variants []models.Variant, id uuid.UUID) bool {
	for _, v := range variants {
		if v.ID == id {
			return true
		}
	}
	return false
}

func (s *GameService) GetPlayer(ctx context.Context, playerID uuid.UUID) (*models.Player, error) {
	player, err := s.store.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, lookupErr(err, ErrPlayerNotFound, "get player")
	}
	return player, nil
}

// GetPlayers lists the session's players in join order.
func (s *GameService) GetPlayers(ctx context.Context, sessionID uuid.UUID) ([]models.Player, error) {
	if _, err := s.store.GetGameSessionByID(ctx, sessionID); err != nil {
		return nil, lookupErr(err, ErrSessionNotFound, "get game session")
	}
	players, err := s.store.GetPlayersByGameSessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get players: %w", err)
	}
	return players, nil
}

func (s *GameService) GetPlayerAnswers(ctx context.Context, playerID uuid.UUID) ([]models.PlayerAnswer, error) {
	if _, err := s.store.GetPlayerByID(ctx, playerID); err != nil {
		return nil, lookupErr(err, ErrPlayerNotFound, "get player")
	}
	answers, err := s.store.GetPlayerAnswersByPlayerID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("get player answers: %w", err)
	}
	return answers, nil
}

// GetGameResults ranks players by score, then by name.
func (s *GameService) GetGameResults(ctx context.Context, sessionID uuid.UUID) (*GameResults, error) {
	session, err := s.store.GetGameSessionByID(ctx, sessionID)
	if err != nil {
		return nil, lookupErr(err, ErrSessionNotFound, "get game session")
	}
	players, err := s.store.GetPlayersByGameSessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get players: %w", err)
	}

	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].Name < players[j].Name
	})
	if players == nil {
		players = []models.Player{}
	}
	return &GameResults{Session: *session, Leaderboard: players}, nil
}

// GetGameState snapshots a session for clients that (re)connect mid-game.
func (s *GameService) GetGameState(ctx context.Context, sessionID uuid.UUID) (*GameState, error) {
	session, err := s.store.GetGameSessionByID(ctx, sessionID)
	if err != nil {
		return nil, lookupErr(err, ErrSessionNotFound, "get game session")
	}
	players, err := s.store.GetPlayersByGameSessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get players: %w", err)
	}
	questions, err := s.store.GetQuestionsAndVariantsByPackID(ctx, session.PackID)
	if err != nil {
		return nil, fmt.Errorf("get pack questions: %w", err)
	}
	if players == nil {
		players = []models.Player{}
	}

	state := &GameState{Session: *session, Players: players, TotalQuestions: len(questions)}
	if session.State == models.SessionActive {
		if current, err := currentQuestion(session, questions); err == nil {
			public := current.Public()
			state.CurrentQuestion = &public
		}
	}
	return state, nil
}
