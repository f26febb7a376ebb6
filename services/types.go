package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/ledger"
	"github.com/flashbots/anonboard/protocol"
)

// ConfessionRequest posts a confession whose author tag was derived by the
// poster for SlotID.
type ConfessionRequest struct {
	Content   string           `json:"content"`
	PostedAt  uint64           `json:"posted_at"`
	SlotID    uint64           `json:"slot_id"`
	AuthorTag crypto.AuthorTag `json:"author_tag"`
}

// VoteRequest adds one vote to the current confession.
type VoteRequest struct {
	Direction protocol.Direction `json:"direction"`
}

// OperatorResponse identifies the key snapshots are signed with.
type OperatorResponse struct {
	PublicKey string `json:"public_key"`
}

// LedgerResponse lists the committed blocks.
type LedgerResponse struct {
	Blocks []*ledger.Block `json:"blocks"`
}

// VerifyResponse reports the result of replaying the ledger.
type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Blocks int    `json:"blocks"`
	Error  string `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   ErrorCode `json:"error"`
	Message string    `json:"message"`
}

// ErrorCode is a stable, machine readable error identifier.
type ErrorCode string

const (
	CodeAlreadyOccupied    ErrorCode = "already_occupied"
	CodeNoActiveConfession ErrorCode = "no_active_confession"
	CodeStaleSlot          ErrorCode = "stale_slot"
	CodeCounterOverflow    ErrorCode = "counter_overflow"
	CodeContentTooLong     ErrorCode = "content_too_long"
	CodeInvalidContent     ErrorCode = "invalid_content"
	CodeInvalidDirection   ErrorCode = "invalid_direction"
	CodeInvalidAuthorTag   ErrorCode = "invalid_author_tag"
	CodeUnknownIntention   ErrorCode = "unknown_intention"
	CodeBadRequest         ErrorCode = "bad_request"
	CodeInternal           ErrorCode = "internal"
)

type errorMapping struct {
	err    error
	code   ErrorCode
	status int
}

var errorMappings = []errorMapping{
	{board.ErrAlreadyOccupied, CodeAlreadyOccupied, http.StatusConflict},
	{board.ErrNoActiveConfession, CodeNoActiveConfession, http.StatusConflict},
	{board.ErrStaleSlot, CodeStaleSlot, http.StatusConflict},
	{board.ErrCounterOverflow, CodeCounterOverflow, http.StatusBadRequest},
	{board.ErrContentTooLong, CodeContentTooLong, http.StatusBadRequest},
	{board.ErrInvalidContent, CodeInvalidContent, http.StatusBadRequest},
	{protocol.ErrInvalidDirection, CodeInvalidDirection, http.StatusBadRequest},
	{crypto.ErrInvalidAuthorTag, CodeInvalidAuthorTag, http.StatusBadRequest},
	{protocol.ErrUnknownIntention, CodeUnknownIntention, http.StatusBadRequest},
}

// classify maps an error returned by a driver to its wire representation.
func classify(err error) (ErrorCode, int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code, m.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

// APIError is a failure reported by a remote board that does not correspond
// to a board error.
type APIError struct {
	Status  int
	Code    ErrorCode
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("board api %d %s: %s", e.Status, e.Code, e.Message)
}

// decodeError turns an error response back into the board error it stands
// for, so callers can keep using errors.Is across the wire.
func decodeError(status int, resp *ErrorResponse) error {
	for _, m := range errorMappings {
		if m.code == resp.Error {
			return m.err
		}
	}
	return &APIError{Status: status, Code: resp.Error, Message: resp.Message}
}
