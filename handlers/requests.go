package handlers

import (
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	PackID string `json:"pack_id"`
}

func (req *CreateSessionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.PackID, validation.Required, is.UUID),
	)
}

type AddPlayerRequest struct {
	GameSessionID string `json:"game_session_id"`
	PlayerName    string `json:"player_name"`
}

func (req *AddPlayerRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.GameSessionID, validation.Required, is.UUID),
		validation.Field(&req.PlayerName, validation.Required, validation.Length(1, 64)),
	)
}

type StartGameRequest struct {
	GameSessionID string `json:"game_session_id"`
}

func (req *StartGameRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.GameSessionID, validation.Required, is.UUID),
	)
}

type SubmitAnswerRequest struct {
	PlayerID  string `json:"player_id"`
	VariantID string `json:"variant_id"`
}

func (req *SubmitAnswerRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.PlayerID, validation.Required, is.UUID),
		validation.Field(&req.VariantID, validation.Required, is.UUID),
	)
}

// bindRequest decodes and validates a JSON body, answering 400 on failure.
func bindRequest(c *gin.Context, req validation.Validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

// queryUUID reads a required UUID query parameter, answering 400 when it is
// missing or malformed.
func queryUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		badRequest(c, name+" is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// mustUUID parses an id that already passed is.UUID validation.
func mustUUID(raw string) uuid.UUID {
	return uuid.MustParse(raw)
}
