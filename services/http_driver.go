package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/protocol"
	"github.com/gorilla/websocket"
)

// HTTPDriver submits intentions to a remote BoardService.
//
// Snapshots are accepted only with a valid signature of the operator key.
// When no key is configured the key served at /operator is pinned on first
// use.
type HTTPDriver struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	operator crypto.PublicKey
}

var _ board.Driver = (*HTTPDriver)(nil)

// NewHTTPDriver creates a driver for the board at baseURL. operator may be nil.
func NewHTTPDriver(baseURL string, operator crypto.PublicKey) (*HTTPDriver, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid board url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid board url scheme %q", u.Scheme)
	}

	return &HTTPDriver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		operator:   operator,
	}, nil
}

// Submit sends the intention and returns the committed snapshot. The board
// assigns its own intention id.
func (d *HTTPDriver) Submit(ctx context.Context, intention *protocol.Intention) (*board.Snapshot, error) {
	if err := intention.Validate(); err != nil {
		return nil, err
	}

	var (
		path string
		body any
	)
	switch intention.Kind {
	case protocol.PostIntentionKind:
		path = "/confession"
		body = &ConfessionRequest{
			Content:   intention.Post.Content,
			PostedAt:  intention.Post.PostedAt,
			SlotID:    intention.Post.SlotID,
			AuthorTag: intention.Post.AuthorTag,
		}
	case protocol.VoteIntentionKind:
		path = "/vote"
		body = &VoteRequest{Direction: intention.Vote.Direction}
	}

	var signed protocol.Signed[board.Snapshot]
	if err := d.do(ctx, http.MethodPost, path, body, &signed); err != nil {
		return nil, err
	}
	return d.verify(ctx, &signed)
}

// Snapshot fetches the latest committed snapshot.
func (d *HTTPDriver) Snapshot(ctx context.Context) (*board.Snapshot, error) {
	var signed protocol.Signed[board.Snapshot]
	if err := d.do(ctx, http.MethodGet, "/snapshot", nil, &signed); err != nil {
		return nil, err
	}
	return d.verify(ctx, &signed)
}

// Operator returns the operator key, fetching and pinning it if needed.
func (d *HTTPDriver) Operator(ctx context.Context) (crypto.PublicKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.operator != nil {
		return d.operator, nil
	}

	var resp OperatorResponse
	if err := d.do(ctx, http.MethodGet, "/operator", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching operator key: %w", err)
	}
	key, err := crypto.NewPublicKeyFromString(resp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("operator key: %w", err)
	}
	d.operator = key
	return key, nil
}

// Ledger fetches the committed blocks.
func (d *HTTPDriver) Ledger(ctx context.Context) (*LedgerResponse, error) {
	var resp LedgerResponse
	if err := d.do(ctx, http.MethodGet, "/ledger", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyLedger asks the board to replay its ledger.
func (d *HTTPDriver) VerifyLedger(ctx context.Context) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := d.do(ctx, http.MethodGet, "/ledger/verify", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Watch streams verified snapshots over the websocket endpoint, current
// snapshot first. The channel is closed when ctx is done or the stream ends.
func (d *HTTPDriver) Watch(ctx context.Context) (<-chan *board.Snapshot, error) {
	operator, err := d.Operator(ctx)
	if err != nil {
		return nil, err
	}

	wsURL := "ws" + strings.TrimPrefix(d.baseURL, "http") + "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", wsURL, err)
	}

	out := make(chan *board.Snapshot, 8)

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	go func() {
		defer close(out)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			signed, err := protocol.UnmarshalMessage[protocol.Signed[board.Snapshot]](msg)
			if err != nil {
				continue
			}
			snap, err := signed.RecoverFrom(operator)
			if err != nil {
				continue
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (d *HTTPDriver) verify(ctx context.Context, signed *protocol.Signed[board.Snapshot]) (*board.Snapshot, error) {
	operator, err := d.Operator(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := signed.RecoverFrom(operator)
	if err != nil {
		return nil, fmt.Errorf("snapshot signature: %w", err)
	}
	return snap, nil
}

func (d *HTTPDriver) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" {
			return &APIError{Status: resp.StatusCode, Code: CodeInternal, Message: string(respBody)}
		}
		return decodeError(resp.StatusCode, &errResp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// IsAPIError reports whether err came from a remote board rather than the
// transport.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
