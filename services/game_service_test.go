package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"quizgame/models"
	"quizgame/storage"
	"quizgame/storage/storagetest"
)

type GameServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	store   *storage.GormStore
	rec     *recorder
	service *GameService
}

func TestGameServiceTestSuite(t *testing.T) {
	suite.Run(t, new(GameServiceTestSuite))
}

func (suite *GameServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = storagetest.Open(suite.T())
	suite.store = storage.NewGormStore(suite.db)
	suite.rec = &recorder{}
	suite.service = NewGameService(suite.store, nil, 10, zap.NewNop())
	suite.service.AddObserver(suite.rec)
}

// setup seeds a pack, creates a session and joins the named players. The
// recorder is reset afterwards.
func (suite *GameServiceTestSuite) setup(questions int, names ...string) (storagetest.Pack, *models.GameSession, []*models.Player) {
	t := suite.T()
	pack := storagetest.SeedPack(t, suite.db, questions, 3)

	session, err := suite.service.CreateGameSession(suite.ctx, pack.Pack.ID)
	require.NoError(t, err)

	var players []*models.Player
	for _, name := range names {
		p, err := suite.service.AddPlayer(suite.ctx, session.ID, name)
		require.NoError(t, err)
		players = append(players, p)
	}
	suite.rec.reset()
	return pack, session, players
}

func (suite *GameServiceTestSuite) start(sessionID uuid.UUID) {
	_, err := suite.service.StartGame(suite.ctx, sessionID)
	require.NoError(suite.T(), err)
	suite.rec.reset()
}

func (suite *GameServiceTestSuite) TestCreateGameSession() {
	t := suite.T()
	pack := storagetest.SeedPack(t, suite.db, 1, 2)

	session, err := suite.service.CreateGameSession(suite.ctx, pack.Pack.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionWaiting, session.State)
	assert.Equal(t, 0, session.CurrentQuestionIndex)

	events := suite.rec.all()
	require.Len(t, events, 1)
	created, ok := events[0].(GameSessionCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, session.ID, created.GameSessionID())
	assert.Equal(t, pack.Pack.ID, created.PackID)

	suite.rec.reset()
	_, err = suite.service.CreateGameSession(suite.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPackNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, suite.rec.all())
}

func (suite *GameServiceTestSuite) TestAddPlayer() {
	t := suite.T()
	_, session, _ := suite.setup(1)

	player, err := suite.service.AddPlayer(suite.ctx, session.ID, "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", player.Name)
	assert.Equal(t, 0, player.Score)
	assert.Equal(t, session.ID, player.GameSessionID)

	events := suite.rec.all()
	require.Len(t, events, 1)
	added := events[0].(PlayerAddedEvent)
	assert.Equal(t, player.ID, added.Player.ID)

	suite.rec.reset()

	_, err = suite.service.AddPlayer(suite.ctx, session.ID, "Alice")
	assert.ErrorIs(t, err, ErrPlayerNameTaken)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = suite.service.AddPlayer(suite.ctx, session.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = suite.service.AddPlayer(suite.ctx, uuid.New(), "Bob")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	suite.start(session.ID)
	_, err = suite.service.AddPlayer(suite.ctx, session.ID, "Late")
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.Empty(t, suite.rec.all())
}

func (suite *GameServiceTestSuite) TestStartGamePresentsFirstQuestion() {
	t := suite.T()
	pack, session, _ := suite.setup(3, "Alice", "Bob")

	started, err := suite.service.StartGame(suite.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, started.State)
	assert.Equal(t, 0, started.CurrentQuestionIndex)

	assert.Equal(t, []EventKind{KindGameStarted, KindQuestionPresented}, suite.rec.kinds())
	events := suite.rec.all()
	gs := events[0].(GameStartedEvent)
	assert.Equal(t, 2, gs.TotalPlayers)
	assert.Equal(t, 3, gs.TotalQuestions)
	qp := events[1].(QuestionPresentedEvent)
	assert.Equal(t, pack.Questions[0].Question.ID, qp.Question.ID)
	assert.Equal(t, 0, qp.QuestionIndex)
	assert.Equal(t, 3, qp.TotalQuestions)

	current, err := suite.service.GetCurrentQuestion(suite.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, pack.Questions[0].Question.ID, current.Question.ID)
	assert.Len(t, current.Variants, 3)

	suite.rec.reset()
	_, err = suite.service.StartGame(suite.ctx, session.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, suite.rec.all())
}

func (suite *GameServiceTestSuite) TestStartGamePreconditions() {
	t := suite.T()

	_, err := suite.service.StartGame(suite.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, noPlayers, _ := suite.setup(1)
	_, err = suite.service.StartGame(suite.ctx, noPlayers.ID)
	assert.ErrorIs(t, err, ErrNoPlayers)

	_, empty, _ := suite.setup(0, "Alice")
	_, err = suite.service.StartGame(suite.ctx, empty.ID)
	assert.ErrorIs(t, err, ErrPackHasNoQuestions)

	assert.Empty(t, suite.rec.all())

	session, err := suite.service.GetGameSession(suite.ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionWaiting, session.State)
}

func (suite *GameServiceTestSuite) TestTwoPlayersOneQuestion() {
	t := suite.T()
	pack, session, players := suite.setup(1, "Alice", "Bob")
	alice, bob := players[0], players[1]
	suite.start(session.ID)

	result, err := suite.service.SubmitAnswer(suite.ctx, alice.ID, pack.Correct(0).ID)
	require.NoError(t, err)
	assert.Equal(t, ResultCorrect, result)
	assert.Equal(t, []EventKind{KindAnswerSubmitted, KindPlayerScoreUpdated}, suite.rec.kinds())

	score := suite.rec.all()[1].(PlayerScoreUpdatedEvent)
	assert.Equal(t, 0, score.OldScore)
	assert.Equal(t, 10, score.NewScore)
	suite.rec.reset()

	result, err = suite.service.SubmitAnswer(suite.ctx, bob.ID, pack.Wrong(0).ID)
	require.NoError(t, err)
	assert.Equal(t, ResultGameFinished, result)
	assert.Equal(t, []EventKind{KindAnswerSubmitted, KindAllPlayersAnswered, KindGameFinished}, suite.rec.kinds())

	events := suite.rec.all()
	answered := events[0].(AnswerSubmittedEvent)
	assert.False(t, answered.IsCorrect)
	assert.Equal(t, "Bob", answered.PlayerName)
	all := events[1].(AllPlayersAnsweredEvent)
	assert.Equal(t, 2, all.TotalPlayers)
	assert.Equal(t, 2, all.AnswersCount)
	finished := events[2].(GameFinishedEvent)
	assert.Equal(t, 1, finished.TotalQuestions)
	assert.Equal(t, 2, finished.TotalPlayers)

	got, err := suite.service.GetGameSession(suite.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, got.State)
	assert.NotNil(t, got.FinishedAt)

	results, err := suite.service.GetGameResults(suite.ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, results.Leaderboard, 2)
	assert.Equal(t, "Alice", results.Leaderboard[0].Name)
	assert.Equal(t, 10, results.Leaderboard[0].Score)
	assert.Equal(t, 0, results.Leaderboard[1].Score)

	_, err = suite.service.GetCurrentQuestion(suite.ctx, session.ID)
	assert.ErrorIs(t, err, ErrNoCurrentQuestion)

	suite.rec.reset()
	_, err = suite.service.SubmitAnswer(suite.ctx, alice.ID, pack.Correct(0).ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, suite.rec.all())
}

func (suite *GameServiceTestSuite) TestAdvanceOnQuorum() {
	t := suite.T()
	pack, session, players := suite.setup(2, "Alice", "Bob")
	suite.start(session.ID)

	result, err := suite.service.SubmitAnswer(suite.ctx, players[0].ID, pack.Wrong(0).ID)
	require.NoError(t, err)
	assert.Equal(t, ResultIncorrect, result)
	assert.Equal(t, []EventKind{KindAnswerSubmitted}, suite.rec.kinds())

	// Still on the first question until everybody answered.
	current, err := suite.service.GetCurrentQuestion(suite.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.Index)
	suite.rec.reset()

	result, err = suite.service.SubmitAnswer(suite.ctx, players[1].ID, pack.Correct(0).ID)
	require.NoError(t, err)
	assert.Equal(t, ResultCorrect, result)
	assert.Equal(t, []EventKind{
		KindAnswerSubmitted,
		KindPlayerScoreUpdated,
		KindAllPlayersAnswered,
		KindQuestionAdvanced,
		KindQuestionPresented,
	}, suite.rec.kinds())

	events := suite.rec.all()
	advanced := events[3].(QuestionAdvancedEvent)
	assert.Equal(t, 0, advanced.PreviousIndex)
	assert.Equal(t, 1, advanced.NewIndex)
	presented := events[4].(QuestionPresentedEvent)
	assert.Equal(t, pack.Questions[1].Question.ID, presented.Question.ID)
	assert.Equal(t, 1, presented.QuestionIndex)

	current, err = suite.service.GetCurrentQuestion(suite.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Index)
	assert.Equal(t, 2, current.Total)

	// The previous question's variants are no longer accepted.
	suite.rec.reset()
	_, err = suite.service.SubmitAnswer(suite.ctx, players[0].ID, pack.Correct(0).ID)
	assert.ErrorIs(t, err, ErrVariantNotInQuestion)
	assert.Empty(t, suite.rec.all())
}

func (suite *GameServiceTestSuite) TestFullGameScoring() {
	t := suite.T()
	pack, session, players := suite.setup(3, "Alice", "Bob")
	suite.start(session.ID)

	var last GameResult
	for q := 0; q < 3; q++ {
		_, err := suite.service.SubmitAnswer(suite.ctx, players[0].ID, pack.Correct(q).ID)
		require.NoError(t, err)
		variant := pack.Wrong(q)
		if q == 1 {
			variant = pack.Correct(q)
		}
		last, err = suite.service.SubmitAnswer(suite.ctx, players[1].ID, variant.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, ResultGameFinished, last)
	assert.Equal(t, 3, suite.rec.count(KindAllPlayersAnswered))
	assert.Equal(t, 2, suite.rec.count(KindQuestionAdvanced))
	assert.Equal(t, 1, suite.rec.count(KindGameFinished))

	results, err := suite.service.GetGameResults(suite.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, results.Leaderboard[0].Score)
	assert.Equal(t, 10, results.Leaderboard[1].Score)

	answers, err := suite.service.GetPlayerAnswers(suite.ctx, players[1].ID)
	require.NoError(t, err)
	assert.Len(t, answers, 3)
}

func (suite *GameServiceTestSuite) TestSubmitAnswerErrorsEmitNothing() {
	t := suite.T()
	pack, session, players := suite.setup(2, "Alice", "Bob")
	other := storagetest.SeedPack(t, suite.db, 1, 2)

	// Session not started yet.
	result, err := suite.service.SubmitAnswer(suite.ctx, players[0].ID, pack.Correct(0).ID)
	assert.Equal(t, ResultError, result)
	assert.ErrorIs(t, err, ErrInvalidState)

	suite.start(session.ID)

	result, err = suite.service.SubmitAnswer(suite.ctx, uuid.New(), pack.Correct(0).ID)
	assert.Equal(t, ResultError, result)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	result, err = suite.service.SubmitAnswer(suite.ctx, players[0].ID, uuid.New())
	assert.Equal(t, ResultError, result)
	assert.ErrorIs(t, err, ErrVariantNotFound)

	result, err = suite.service.SubmitAnswer(suite.ctx, players[0].ID, other.Correct(0).ID)
	assert.Equal(t, ResultError, result)
	assert.ErrorIs(t, err, ErrVariantNotInQuestion)

	result, err = suite.service.SubmitAnswer(suite.ctx, players[0].ID, pack.Correct(1).ID)
	assert.Equal(t, ResultError, result)
	assert.ErrorIs(t, err, ErrVariantNotInQuestion)

	assert.Empty(t, suite.rec.all())
}

func (suite *GameServiceTestSuite) TestGetPlayers() {
	t := suite.T()
	_, session, _ := suite.setup(1, "Bob", "Alice")

	players, err := suite.service.GetPlayers(suite.ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "Bob", players[0].Name)
	assert.Equal(t, "Alice", players[1].Name)
	assert.Empty(t, suite.rec.all())

	_, err = suite.service.GetPlayers(suite.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func (suite *GameServiceTestSuite) TestDuplicateAnswerRejected() {
	t := suite.T()
	pack, session, players := suite.setup(1, "Alice", "Bob")
	suite.start(session.ID)

	_, err := suite.service.SubmitAnswer(suite.ctx, players[0].ID, pack.Correct(0).ID)
	require.NoError(t, err)
	suite.rec.reset()

	result, err := suite.service.SubmitAnswer(suite.ctx, players[0].ID, pack.Correct(0).ID)
	assert.Equal(t, ResultError, result)
	assert.ErrorIs(t, err, ErrAnswerAlreadySubmitted)
	assert.Empty(t, suite.rec.all())

	player, err := suite.store.GetPlayerByID(suite.ctx, players[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 10, player.Score)

	// The duplicate must not count towards the quorum.
	got, err := suite.service.GetGameSession(suite.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, got.State)
}

func (suite *GameServiceTestSuite) TestConcurrentAnswersFinishOnce() {
	t := suite.T()
	names := []string{"A", "B", "C", "D", "E", "F"}
	pack, session, players := suite.setup(1, names...)
	suite.start(session.ID)

	results := make([]GameResult, len(players))
	errs := make([]error, len(players))
	var wg sync.WaitGroup
	for i, p := range players {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = suite.service.SubmitAnswer(suite.ctx, id, pack.Correct(0).ID)
		}(i, p.ID)
	}
	wg.Wait()

	finished := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] == ResultGameFinished {
			finished++
		} else {
			assert.Equal(t, ResultCorrect, results[i])
		}
	}
	assert.Equal(t, 1, finished)
	assert.Equal(t, len(players), suite.rec.count(KindAnswerSubmitted))
	assert.Equal(t, len(players), suite.rec.count(KindPlayerScoreUpdated))
	assert.Equal(t, 1, suite.rec.count(KindAllPlayersAnswered))
	assert.Equal(t, 1, suite.rec.count(KindGameFinished))
	assert.Zero(t, suite.service.locks.size())
}

func (suite *GameServiceTestSuite) TestPanickingObserverDoesNotBreakGame() {
	t := suite.T()
	pack, session, players := suite.setup(1, "Alice")

	suite.service.ClearObservers()
	suite.service.AddObserver(NewFuncObserver(func(Event) { panic("boom") }))
	suite.service.AddObserver(suite.rec)

	suite.start(session.ID)
	result, err := suite.service.SubmitAnswer(suite.ctx, players[0].ID, pack.Correct(0).ID)
	require.NoError(t, err)
	assert.Equal(t, ResultGameFinished, result)
	assert.Equal(t, 1, suite.rec.count(KindGameFinished))
}

func (suite *GameServiceTestSuite) TestGetGameState() {
	t := suite.T()
	pack, session, _ := suite.setup(2, "Alice")

	state, err := suite.service.GetGameState(suite.ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, state.CurrentQuestion)
	assert.Len(t, state.Players, 1)
	assert.Equal(t, 2, state.TotalQuestions)

	suite.start(session.ID)
	state, err = suite.service.GetGameState(suite.ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentQuestion)
	assert.Equal(t, pack.Questions[0].Question.ID, state.CurrentQuestion.ID)
	assert.Len(t, state.CurrentQuestion.Variants, 3)

	_, err = suite.service.GetGameState(suite.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func (suite *GameServiceTestSuite) TestGetPlayerAnswersUnknownPlayer() {
	_, err := suite.service.GetPlayerAnswers(suite.ctx, uuid.New())
	assert.ErrorIs(suite.T(), err, ErrPlayerNotFound)
}

// flakyStore fails selected operations on top of a real store.
type flakyStore struct {
	Store
	scoreErr   error
	advanceErr error
	countErr   error
}

func (s *flakyStore) GetAnswersCountForQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.Store.GetAnswersCountForQuestion(ctx, sessionID, questionID)
}

func (s *flakyStore) UpdatePlayerScore(ctx context.Context, playerID uuid.UUID, delta int) (*models.Player, error) {
	if s.scoreErr != nil {
		return nil, s.scoreErr
	}
	return s.Store.UpdatePlayerScore(ctx, playerID, delta)
}

func (s *flakyStore) AdvanceToNextQuestion(ctx context.Context, id uuid.UUID, newIndex int) (*models.GameSession, error) {
	if s.advanceErr != nil {
		return nil, s.advanceErr
	}
	return s.Store.AdvanceToNextQuestion(ctx, id, newIndex)
}

func TestScoreFailureIsLoggedAndGameContinues(t *testing.T) {
	db := storagetest.Open(t)
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	store := &flakyStore{Store: storage.NewGormStore(db), scoreErr: errors.New("disk full")}
	rec := &recorder{}
	svc := NewGameService(store, nil, 10, zap.New(core))
	svc.AddObserver(rec)

	pack := storagetest.SeedPack(t, db, 1, 2)
	session, err := svc.CreateGameSession(ctx, pack.Pack.ID)
	require.NoError(t, err)
	player, err := svc.AddPlayer(ctx, session.ID, "Alice")
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, session.ID)
	require.NoError(t, err)
	rec.reset()

	result, err := svc.SubmitAnswer(ctx, player.ID, pack.Correct(0).ID)
	require.NoError(t, err)
	assert.Equal(t, ResultGameFinished, result)
	assert.Zero(t, rec.count(KindPlayerScoreUpdated))
	assert.Equal(t, 1, rec.count(KindAnswerSubmitted))
	assert.Equal(t, 1, logs.FilterMessage("failed to update player score").Len())
}

func TestStaleAdvanceReturnsOutcomeWithoutEvents(t *testing.T) {
	db := storagetest.Open(t)
	ctx := context.Background()
	store := &flakyStore{Store: storage.NewGormStore(db), advanceErr: storage.ErrStaleSession}
	rec := &recorder{}
	svc := NewGameService(store, nil, 0, nil)
	svc.AddObserver(rec)

	pack := storagetest.SeedPack(t, db, 2, 2)
	session, err := svc.CreateGameSession(ctx, pack.Pack.ID)
	require.NoError(t, err)
	player, err := svc.AddPlayer(ctx, session.ID, "Alice")
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, session.ID)
	require.NoError(t, err)
	rec.reset()

	result, err := svc.SubmitAnswer(ctx, player.ID, pack.Wrong(0).ID)
	require.NoError(t, err)
	assert.Equal(t, ResultIncorrect, result)
	assert.Equal(t, []EventKind{KindAnswerSubmitted, KindAllPlayersAnswered}, rec.kinds())
	assert.Equal(t, DefaultPointsPerCorrectAnswer, svc.points)
}

func TestQuorumFailureKeepsRecordedAnswer(t *testing.T) {
	db := storagetest.Open(t)
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	store := &flakyStore{Store: storage.NewGormStore(db), countErr: errors.New("connection reset")}
	rec := &recorder{}
	svc := NewGameService(store, nil, 10, zap.New(core))
	svc.AddObserver(rec)

	pack := storagetest.SeedPack(t, db, 2, 2)
	session, err := svc.CreateGameSession(ctx, pack.Pack.ID)
	require.NoError(t, err)
	player, err := svc.AddPlayer(ctx, session.ID, "Alice")
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, session.ID)
	require.NoError(t, err)
	rec.reset()

	result, err := svc.SubmitAnswer(ctx, player.ID, pack.Wrong(0).ID)
	require.NoError(t, err)
	assert.Equal(t, ResultIncorrect, result)
	assert.Equal(t, []EventKind{KindAnswerSubmitted}, rec.kinds())
	assert.Equal(t, 1, logs.FilterMessage("failed to settle question").Len())

	got, err := svc.GetGameSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentQuestionIndex)

	// Once the store recovers, the player's retry closes the open question.
	store.countErr = nil
	rec.reset()
	result, err = svc.SubmitAnswer(ctx, player.ID, pack.Wrong(0).ID)
	assert.ErrorIs(t, err, ErrAnswerAlreadySubmitted)
	assert.Equal(t, ResultError, result)
	assert.Equal(t, []EventKind{KindAllPlayersAnswered, KindQuestionAdvanced, KindQuestionPresented}, rec.kinds())

	got, err = svc.GetGameSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentQuestionIndex)
}

func TestGameResultString(t *testing.T) {
	assert.Equal(t, "correct", ResultCorrect.String())
	assert.Equal(t, "incorrect", ResultIncorrect.String())
	assert.Equal(t, "game_finished", ResultGameFinished.String())
	assert.Equal(t, "error", ResultError.String())
	assert.Equal(t, "error", GameResult(0).String())
}
