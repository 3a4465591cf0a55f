package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStatistics aggregates the events of one game session.
type SessionStatistics struct {
	GameSessionID     uuid.UUID  `json:"game_session_id"`
	PackID            uuid.UUID  `json:"pack_id"`
	Players           int        `json:"players"`
	Questions         int        `json:"questions"`
	QuestionsAnswered int        `json:"questions_answered"`
	CorrectAnswers    int        `json:"correct_answers"`
	IncorrectAnswers  int        `json:"incorrect_answers"`
	PointsAwarded     int        `json:"points_awarded"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// Accuracy is the share of correct answers, 0 without answers.
func (s SessionStatistics) Accuracy() float64 {
	total := s.CorrectAnswers + s.IncorrectAnswers
	if total == 0 {
		return 0
	}
	return float64(s.CorrectAnswers) / float64(total)
}

type GlobalStatistics struct {
	GamesCreated   int `json:"games_created"`
	GamesStarted   int `json:"games_started"`
	GamesFinished  int `json:"games_finished"`
	PlayersAdded   int `json:"players_added"`
	AnswersTotal   int `json:"answers_total"`
	CorrectAnswers int `json:"correct_answers"`
}

var (
	_ Observer     = (*StatisticsObserver)(nil)
	_ EventVisitor = (*StatisticsObserver)(nil)
)

// StatisticsObserver keeps in-memory counters per session and for the whole
// process. Counters start at zero on every restart.
type StatisticsObserver struct {
	AllEvents

	mu       sync.RWMutex
	sessions map[uuid.UUID]*SessionStatistics
	global   GlobalStatistics
}

func NewStatisticsObserver() *StatisticsObserver {
	return &StatisticsObserver{sessions: make(map[uuid.UUID]*SessionStatistics)}
}

func (o *StatisticsObserver) OnEvent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e.Accept(o)
}

// Session returns a copy of the statistics for id.
func (o *StatisticsObserver) Session(id uuid.UUID) (SessionStatistics, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	stats, ok := o.sessions[id]
	if !ok {
		return SessionStatistics{}, false
	}
	return *stats, true
}

func (o *StatisticsObserver) Global() GlobalStatistics {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.global
}

// session must be called with o.mu held.
func (o *StatisticsObserver) session(id uuid.UUID) *SessionStatistics {
	stats, ok := o.sessions[id]
	if !ok {
		stats = &SessionStatistics{GameSessionID: id}
		o.sessions[id] = stats
	}
	return stats
}

func (o *StatisticsObserver) VisitGameSessionCreated(e GameSessionCreatedEvent) {
	stats := o.session(e.GameSessionID())
	stats.PackID = e.PackID
	at := e.OccurredAt()
	stats.CreatedAt = &at
	o.global.GamesCreated++
}

func (o *StatisticsObserver) VisitPlayerAdded(e PlayerAddedEvent) {
	o.session(e.GameSessionID()).Players++
	o.global.PlayersAdded++
}

func (o *StatisticsObserver) VisitGameStarted(e GameStartedEvent) {
	stats := o.session(e.GameSessionID())
	stats.Players = e.TotalPlayers
	stats.Questions = e.TotalQuestions
	at := e.OccurredAt()
	stats.StartedAt = &at
	o.global.GamesStarted++
}

func (o *StatisticsObserver) VisitQuestionPresented(QuestionPresentedEvent) {}

func (o *StatisticsObserver) VisitAnswerSubmitted(e AnswerSubmittedEvent) {
	stats := o.session(e.GameSessionID())
	if e.IsCorrect {
		stats.CorrectAnswers++
		o.global.CorrectAnswers++
	} else {
		stats.IncorrectAnswers++
	}
	o.global.AnswersTotal++
}

func (o *StatisticsObserver) VisitPlayerScoreUpdated(e PlayerScoreUpdatedEvent) {
	o.session(e.GameSessionID()).PointsAwarded += e.NewScore - e.OldScore
}

func (o *StatisticsObserver) VisitAllPlayersAnswered(e AllPlayersAnsweredEvent) {
	o.session(e.GameSessionID()).QuestionsAnswered++
}

func (o *StatisticsObserver) VisitQuestionAdvanced(QuestionAdvancedEvent) {}

func (o *StatisticsObserver) VisitGameFinished(e GameFinishedEvent) {
	stats := o.session(e.GameSessionID())
	at := e.OccurredAt()
	stats.FinishedAt = &at
	o.global.GamesFinished++
}
