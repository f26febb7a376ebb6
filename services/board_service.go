package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/feed"
	"github.com/flashbots/anonboard/ledger"
	"github.com/flashbots/anonboard/protocol"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Ledger is the committing side of the board as seen by the HTTP API.
type Ledger interface {
	board.Driver
	Blocks(ctx context.Context) ([]*ledger.Block, error)
	Verify(ctx context.Context) error
}

// BoardServiceConfig configures a BoardService.
type BoardServiceConfig struct {
	Ledger     Ledger
	Hub        *feed.Hub
	SigningKey crypto.PrivateKey
	Log        *slog.Logger

	// MaxBodyBytes bounds request bodies. Defaults to 64KiB.
	MaxBodyBytes int64
}

// BoardService exposes a board over HTTP. Every snapshot it returns is signed
// by the operator key.
type BoardService struct {
	ledger     Ledger
	hub        *feed.Hub
	signingKey crypto.PrivateKey
	publicKey  crypto.PublicKey
	log        *slog.Logger
	maxBody    int64

	upgrader websocket.Upgrader
}

// NewBoardService validates the config and derives the operator public key.
func NewBoardService(config *BoardServiceConfig) (*BoardService, error) {
	if config.Ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	if config.Hub == nil {
		return nil, errors.New("hub cannot be nil")
	}
	pubKey, err := config.SigningKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("operator key: %w", err)
	}

	log := config.Log
	if log == nil {
		log = slog.Default()
	}
	maxBody := config.MaxBodyBytes
	if maxBody == 0 {
		maxBody = 64 << 10
	}

	return &BoardService{
		ledger:     config.Ledger,
		hub:        config.Hub,
		signingKey: config.SigningKey,
		publicKey:  pubKey,
		log:        log,
		maxBody:    maxBody,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// origins are enforced by the CORS layer for browser clients
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// PublicKey returns the operator key snapshots are signed with.
func (s *BoardService) PublicKey() crypto.PublicKey {
	return s.publicKey
}

// RegisterRoutes registers the board API.
func (s *BoardService) RegisterRoutes(r chi.Router) {
	r.Get("/snapshot", s.handleSnapshot)
	r.Post("/confession", s.handleConfession)
	r.Post("/vote", s.handleVote)
	r.Get("/ledger", s.handleLedger)
	r.Get("/ledger/verify", s.handleVerify)
	r.Get("/operator", s.handleOperator)
}

// RegisterStreamRoutes registers the websocket snapshot stream.
func (s *BoardService) RegisterStreamRoutes(r chi.Router) {
	r.Get("/ws", s.handleStream)
}

func (s *BoardService) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSignedSnapshot(w, snap)
}

func (s *BoardService) handleConfession(w http.ResponseWriter, r *http.Request) {
	var req ConfessionRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, &ErrorResponse{Error: CodeBadRequest, Message: err.Error()})
		return
	}

	intention := protocol.NewPostIntention(req.Content, req.PostedAt, req.SlotID, req.AuthorTag)
	s.submit(w, r, intention)
}

func (s *BoardService) handleVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		code := CodeBadRequest
		if errors.Is(err, protocol.ErrInvalidDirection) {
			code = CodeInvalidDirection
		}
		writeJSON(w, http.StatusBadRequest, &ErrorResponse{Error: code, Message: err.Error()})
		return
	}

	s.submit(w, r, protocol.NewVoteIntention(req.Direction))
}

func (s *BoardService) submit(w http.ResponseWriter, r *http.Request, intention *protocol.Intention) {
	snap, err := s.ledger.Submit(r.Context(), intention)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSignedSnapshot(w, snap)
}

func (s *BoardService) handleLedger(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.ledger.Blocks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if blocks == nil {
		blocks = []*ledger.Block{}
	}
	writeJSON(w, http.StatusOK, &LedgerResponse{Blocks: blocks})
}

func (s *BoardService) handleVerify(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.ledger.Blocks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := &VerifyResponse{Valid: true, Blocks: len(blocks)}
	if err := s.ledger.Verify(r.Context()); err != nil {
		s.log.Error("Ledger verification failed", "err", err)
		resp.Valid = false
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *BoardService) handleOperator(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &OperatorResponse{PublicKey: s.publicKey.String()})
}

// handleStream sends the current snapshot, then every committed one, until
// the peer goes away.
func (s *BoardService) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// subscribe before the handshake completes so no commit is missed
	snapshots := s.hub.Subscribe(ctx)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// the reader only notices the peer closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			signed, err := protocol.NewSigned(s.signingKey, snap)
			if err != nil {
				s.log.Error("Could not sign snapshot", "err", err)
				return
			}
			b, err := protocol.SerializeMessage(signed)
			if err != nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

func (s *BoardService) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *BoardService) writeSignedSnapshot(w http.ResponseWriter, snap *board.Snapshot) {
	signed, err := protocol.NewSigned(s.signingKey, snap)
	if err != nil {
		s.writeError(w, fmt.Errorf("signing snapshot: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

func (s *BoardService) writeError(w http.ResponseWriter, err error) {
	code, status := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "err", err)
	}
	writeJSON(w, status, &ErrorResponse{Error: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
