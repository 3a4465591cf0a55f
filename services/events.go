package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quizgame/models"
)

type EventKind int

const (
	KindGameSessionCreated EventKind = iota + 1
	KindPlayerAdded
	KindGameStarted
	KindQuestionPresented
	KindAnswerSubmitted
	KindPlayerScoreUpdated
	KindAllPlayersAnswered
	KindQuestionAdvanced
	KindGameFinished
)

var eventKindNames = map[EventKind]string{
	KindGameSessionCreated: "game_session_created",
	KindPlayerAdded:        "player_added",
	KindGameStarted:        "game_started",
	KindQuestionPresented:  "question_presented",
	KindAnswerSubmitted:    "answer_submitted",
	KindPlayerScoreUpdated: "player_score_updated",
	KindAllPlayersAnswered: "all_players_answered",
	KindQuestionAdvanced:   "question_advanced",
	KindGameFinished:       "game_finished",
}

// EventKinds lists every kind in declaration order.
func EventKinds() []EventKind {
	return []EventKind{
		KindGameSessionCreated,
		KindPlayerAdded,
		KindGameStarted,
		KindQuestionPresented,
		KindAnswerSubmitted,
		KindPlayerScoreUpdated,
		KindAllPlayersAnswered,
		KindQuestionAdvanced,
		KindGameFinished,
	}
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event_kind(%d)", int(k))
}

func (k EventKind) MarshalText() ([]byte, error) {
	if _, ok := eventKindNames[k]; !ok {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(text []byte) error {
	for kind, name := range eventKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// Event is a fact about one game session. The set of implementations is
// closed; use Accept with an EventVisitor to handle every kind.
type Event interface {
	Kind() EventKind
	GameSessionID() uuid.UUID
	OccurredAt() time.Time
	Accept(v EventVisitor)

	event()
}

// EventVisitor has one method per event kind. Adding a kind adds a method
// here, so every visitor stops compiling until it handles the new kind.
type EventVisitor interface {
	VisitGameSessionCreated(e GameSessionCreatedEvent)
	VisitPlayerAdded(e PlayerAddedEvent)
	VisitGameStarted(e GameStartedEvent)
	VisitQuestionPresented(e QuestionPresentedEvent)
	VisitAnswerSubmitted(e AnswerSubmittedEvent)
	VisitPlayerScoreUpdated(e PlayerScoreUpdatedEvent)
	VisitAllPlayersAnswered(e AllPlayersAnsweredEvent)
	VisitQuestionAdvanced(e QuestionAdvancedEvent)
	VisitGameFinished(e GameFinishedEvent)
}

type eventBase struct {
	SessionID uuid.UUID `json:"-"`
	Timestamp time.Time `json:"-"`
}

func newEventBase(sessionID uuid.UUID) eventBase {
	return eventBase{SessionID: sessionID, Timestamp: time.Now().UTC()}
}

func (b eventBase) GameSessionID() uuid.UUID { return b.SessionID }
func (b eventBase) OccurredAt() time.Time    { return b.Timestamp }
func (eventBase) event()                     {}

type GameSessionCreatedEvent struct {
	eventBase
	PackID uuid.UUID `json:"pack_id"`
}

func NewGameSessionCreatedEvent(sessionID, packID uuid.UUID) GameSessionCreatedEvent {
	return GameSessionCreatedEvent{eventBase: newEventBase(sessionID), PackID: packID}
}

func (GameSessionCreatedEvent) Kind() EventKind         { return KindGameSessionCreated }
func (e GameSessionCreatedEvent) Accept(v EventVisitor) { v.VisitGameSessionCreated(e) }

type PlayerAddedEvent struct {
	eventBase
	Player models.Player `json:"player"`
}

func NewPlayerAddedEvent(sessionID uuid.UUID, player models.Player) PlayerAddedEvent {
	return PlayerAddedEvent{eventBase: newEventBase(sessionID), Player: player}
}

func (PlayerAddedEvent) Kind() EventKind         { return KindPlayerAdded }
func (e PlayerAddedEvent) Accept(v EventVisitor) { v.VisitPlayerAdded(e) }

type GameStartedEvent struct {
	eventBase
	TotalPlayers   int `json:"total_players"`
	TotalQuestions int `json:"total_questions"`
}

func NewGameStartedEvent(sessionID uuid.UUID, playerCount, questionCount int) GameStartedEvent {
	return GameStartedEvent{eventBase: newEventBase(sessionID), TotalPlayers: playerCount, TotalQuestions: questionCount}
}

func (GameStartedEvent) Kind() EventKind         { return KindGameStarted }
func (e GameStartedEvent) Accept(v EventVisitor) { v.VisitGameStarted(e) }

// QuestionPresentedEvent carries the question without its variants; clients
// fetch the public variants through the current question endpoint.
type QuestionPresentedEvent struct {
	eventBase
	Question       models.Question `json:"question"`
	QuestionIndex  int             `json:"question_index"`
	TotalQuestions int             `json:"total_questions"`
}

func NewQuestionPresentedEvent(sessionID uuid.UUID, question models.Question, index, total int) QuestionPresentedEvent {
	question.Variants = nil
	return QuestionPresentedEvent{
		eventBase:      newEventBase(sessionID),
		Question:       question,
		QuestionIndex:  index,
		TotalQuestions: total,
	}
}

func (QuestionPresentedEvent) Kind() EventKind         { return KindQuestionPresented }
func (e QuestionPresentedEvent) Accept(v EventVisitor) { v.VisitQuestionPresented(e) }

type AnswerSubmittedEvent struct {
	eventBase
	PlayerID   uuid.UUID `json:"player_id"`
	QuestionID uuid.UUID `json:"question_id"`
	VariantID  uuid.UUID `json:"variant_id"`
	IsCorrect  bool      `json:"is_correct"`
	PlayerName string    `json:"player_name"`
}

func NewAnswerSubmittedEvent(sessionID, playerID, questionID, variantID uuid.UUID, isCorrect bool, playerName string) AnswerSubmittedEvent {
	return AnswerSubmittedEvent{
		eventBase:  newEventBase(sessionID),
		PlayerID:   playerID,
		QuestionID: questionID,
		VariantID:  variantID,
		IsCorrect:  isCorrect,
		PlayerName: playerName,
	}
}

func (AnswerSubmittedEvent) Kind() EventKind         { return KindAnswerSubmitted }
func (e AnswerSubmittedEvent) Accept(v EventVisitor) { v.VisitAnswerSubmitted(e) }

type PlayerScoreUpdatedEvent struct {
	eventBase
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
	OldScore   int       `json:"old_score"`
	NewScore   int       `json:"new_score"`
}

func NewPlayerScoreUpdatedEvent(sessionID, playerID uuid.UUID, playerName string, oldScore, newScore int) PlayerScoreUpdatedEvent {
	return PlayerScoreUpdatedEvent{
		eventBase:  newEventBase(sessionID),
		PlayerID:   playerID,
		PlayerName: playerName,
		OldScore:   oldScore,
		NewScore:   newScore,
	}
}

func (PlayerScoreUpdatedEvent) Kind() EventKind         { return KindPlayerScoreUpdated }
func (e PlayerScoreUpdatedEvent) Accept(v EventVisitor) { v.VisitPlayerScoreUpdated(e) }

type AllPlayersAnsweredEvent struct {
	eventBase
	QuestionID    uuid.UUID `json:"question_id"`
	QuestionIndex int       `json:"question_index"`
	TotalPlayers  int       `json:"total_players"`
	AnswersCount  int       `json:"answers_count"`
}

func NewAllPlayersAnsweredEvent(sessionID, questionID uuid.UUID, index, totalPlayers, answersCount int) AllPlayersAnsweredEvent {
	return AllPlayersAnsweredEvent{
		eventBase:     newEventBase(sessionID),
		QuestionID:    questionID,
		QuestionIndex: index,
		TotalPlayers:  totalPlayers,
		AnswersCount:  answersCount,
	}
}

func (AllPlayersAnsweredEvent) Kind() EventKind         { return KindAllPlayersAnswered }
func (e AllPlayersAnsweredEvent) Accept(v EventVisitor) { v.VisitAllPlayersAnswered(e) }

type QuestionAdvancedEvent struct {
	eventBase
	PreviousIndex int `json:"previous_index"`
	NewIndex      int `json:"new_index"`
}

func NewQuestionAdvancedEvent(sessionID uuid.UUID, previousIndex, newIndex int) QuestionAdvancedEvent {
	return QuestionAdvancedEvent{eventBase: newEventBase(sessionID), PreviousIndex: previousIndex, NewIndex: newIndex}
}

func (QuestionAdvancedEvent) Kind() EventKind         { return KindQuestionAdvanced }
func (e QuestionAdvancedEvent) Accept(v EventVisitor) { v.VisitQuestionAdvanced(e) }

type GameFinishedEvent struct {
	eventBase
	TotalQuestions int `json:"total_questions"`
	TotalPlayers   int `json:"total_players"`
}

func NewGameFinishedEvent(sessionID uuid.UUID, totalQuestions, totalPlayers int) GameFinishedEvent {
	return GameFinishedEvent{eventBase: newEventBase(sessionID), TotalQuestions: totalQuestions, TotalPlayers: totalPlayers}
}

func (GameFinishedEvent) Kind() EventKind         { return KindGameFinished }
func (e GameFinishedEvent) Accept(v EventVisitor) { v.VisitGameFinished(e) }

// EventEnvelope is the wire form shared by the websocket hub and the redis
// publisher.
type EventEnvelope struct {
	Type          EventKind       `json:"type"`
	GameSessionID uuid.UUID       `json:"game_session_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEventEnvelope(e Event) (EventEnvelope, error) {
	return newEnvelope(e, e)
}

func newEnvelope(e Event, body interface{}) (EventEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal %s payload: %w", e.Kind(), err)
	}
	return EventEnvelope{
		Type:          e.Kind(),
		GameSessionID: e.GameSessionID(),
		Timestamp:     e.OccurredAt(),
		Payload:       payload,
	}, nil
}

func MarshalEvent(e Event) ([]byte, error) {
	envelope, err := NewEventEnvelope(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}
