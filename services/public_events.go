package services

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// answerSubmittedView is what clients see of an answer: who answered which
// question, never the chosen variant or whether it was right.
type answerSubmittedView struct {
	PlayerID   uuid.UUID `json:"player_id"`
	QuestionID uuid.UUID `json:"question_id"`
	PlayerName string    `json:"player_name"`
}

// MarshalPublicEvent is MarshalEvent for clients. AnswerSubmitted payloads
// lose the variant and its correctness; everything else is unchanged.
func MarshalPublicEvent(e Event) ([]byte, error) {
	var body interface{} = e
	if a, ok := e.(AnswerSubmittedEvent); ok {
		body = answerSubmittedView{PlayerID: a.PlayerID, QuestionID: a.QuestionID, PlayerName: a.PlayerName}
	}
	envelope, err := newEnvelope(e, body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// revealGate holds score updates back while their question is open. They are
// released, in order, right after the session's AllPlayersAnswered event.
type revealGate struct {
	mu   sync.Mutex
	held map[uuid.UUID][]Event
}

func newRevealGate() *revealGate {
	return &revealGate{held: make(map[uuid.UUID][]Event)}
}

// admit returns the events that may be published now, oldest first.
func (g *revealGate) admit(e Event) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := e.GameSessionID()
	switch e.(type) {
	case PlayerScoreUpdatedEvent:
		g.held[id] = append(g.held[id], e)
		return nil
	case AllPlayersAnsweredEvent:
		released := append([]Event{e}, g.held[id]...)
		delete(g.held, id)
		return released
	case GameFinishedEvent:
		delete(g.held, id)
	}
	return []Event{e}
}

func (g *revealGate) pending(sessionID uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held[sessionID])
}
