package services

import (
	"go.uber.org/zap"
)

var (
	_ Observer     = (*LoggingObserver)(nil)
	_ EventVisitor = (*LoggingObserver)(nil)
)

// LoggingObserver writes one structured log line per event.
type LoggingObserver struct {
	AllEvents
	log *zap.Logger
}

func NewLoggingObserver(log *zap.Logger) *LoggingObserver {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingObserver{log: log}
}

func (o *LoggingObserver) OnEvent(e Event) {
	e.Accept(o)
}

func (o *LoggingObserver) with(e Event) *zap.Logger {
	return o.log.With(
		zap.Stringer("event", e.Kind()),
		zap.String("game_session_id", e.GameSessionID().String()),
	)
}

func (o *LoggingObserver) VisitGameSessionCreated(e GameSessionCreatedEvent) {
	o.with(e).Info("game session created", zap.String("pack_id", e.PackID.String()))
}

func (o *LoggingObserver) VisitPlayerAdded(e PlayerAddedEvent) {
	o.with(e).Info("player added",
		zap.String("player_id", e.Player.ID.String()),
		zap.String("player_name", e.Player.Name),
	)
}

func (o *LoggingObserver) VisitGameStarted(e GameStartedEvent) {
	o.with(e).Info("game started",
		zap.Int("total_players", e.TotalPlayers),
		zap.Int("total_questions", e.TotalQuestions),
	)
}

func (o *LoggingObserver) VisitQuestionPresented(e QuestionPresentedEvent) {
	o.with(e).Info("question presented",
		zap.String("question_id", e.Question.ID.String()),
		zap.Int("question_index", e.QuestionIndex),
		zap.Int("total_questions", e.TotalQuestions),
	)
}

func (o *LoggingObserver) VisitAnswerSubmitted(e AnswerSubmittedEvent) {
	o.with(e).Info("answer submitted",
		zap.String("player_id", e.PlayerID.String()),
		zap.String("player_name", e.PlayerName),
		zap.String("question_id", e.QuestionID.String()),
		zap.Bool("is_correct", e.IsCorrect),
	)
}

func (o *LoggingObserver) VisitPlayerScoreUpdated(e PlayerScoreUpdatedEvent) {
	o.with(e).Info("score updated",
		zap.String("player_id", e.PlayerID.String()),
		zap.Int("old_score", e.OldScore),
		zap.Int("new_score", e.NewScore),
	)
}

func (o *LoggingObserver) VisitAllPlayersAnswered(e AllPlayersAnsweredEvent) {
	o.with(e).Info("all players answered",
		zap.Int("question_index", e.QuestionIndex),
		zap.Int("answers_count", e.AnswersCount),
		zap.Int("total_players", e.TotalPlayers),
	)
}

func (o *LoggingObserver) VisitQuestionAdvanced(e QuestionAdvancedEvent) {
	o.with(e).Info("question advanced",
		zap.Int("previous_index", e.PreviousIndex),
		zap.Int("new_index", e.NewIndex),
	)
}

func (o *LoggingObserver) VisitGameFinished(e GameFinishedEvent) {
	o.with(e).Info("game finished",
		zap.Int("total_questions", e.TotalQuestions),
		zap.Int("total_players", e.TotalPlayers),
	)
}
