package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/flashbots/anonboard/board"
	"github.com/flashbots/anonboard/crypto"
	"github.com/flashbots/anonboard/protocol"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the redis channel snapshots are published on.
const DefaultChannel = "anonboard:snapshots"

// RedisPublisher publishes operator-signed snapshots over redis pub/sub.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	signer  crypto.PrivateKey
}

// NewRedisPublisher creates a publisher. Every snapshot is signed with signer.
func NewRedisPublisher(opts *redis.Options, channel string, signer crypto.PrivateKey) (*RedisPublisher, error) {
	if len(signer) == 0 {
		return nil, errors.New("signing key cannot be empty")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		rdb:     redis.NewClient(opts),
		channel: channel,
		signer:  signer,
	}, nil
}

// Ping verifies redis connectivity.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Publish signs snap and publishes it as JSON.
func (p *RedisPublisher) Publish(ctx context.Context, snap *board.Snapshot) error {
	signed, err := protocol.NewSigned(p.signer, snap)
	if err != nil {
		return fmt.Errorf("signing snapshot: %w", err)
	}
	payload, err := protocol.SerializeMessage(signed)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.channel, err)
	}
	return nil
}

// Close closes the redis client.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// RedisSubscription delivers verified snapshots from a redis channel.
// Close must be called when done.
type RedisSubscription struct {
	events <-chan *board.Snapshot
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events is closed when the subscription ends.
func (s *RedisSubscription) Events() <-chan *board.Snapshot {
	return s.events
}

// Errors carries undecodable or badly signed messages. They are skipped,
// and dropped when nobody reads them.
func (s *RedisSubscription) Errors() <-chan error {
	return s.errors
}

// Close ends the subscription. It is safe to call more than once.
func (s *RedisSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeRedis subscribes to snapshots published by the operator whose key
// is operator. Messages signed by any other key are reported on Errors. A nil
// operator accepts any valid signature.
func SubscribeRedis(ctx context.Context, opts *redis.Options, channel string, operator crypto.PublicKey) (*RedisSubscription, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	rdb := redis.NewClient(opts)
	pubsub := rdb.Subscribe(ctx, channel)

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		rdb.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	eventsChan := make(chan *board.Snapshot, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer rdb.Close()
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				snap, err := decodeSignedSnapshot([]byte(msg.Payload), operator)
				if err != nil {
					// a reader that ignores Errors must not stall Events
					select {
					case errorsChan <- err:
					default:
					}
					continue
				}

				select {
				case eventsChan <- snap:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &RedisSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancel,
	}, nil
}

func decodeSignedSnapshot(data []byte, operator crypto.PublicKey) (*board.Snapshot, error) {
	signed, err := protocol.UnmarshalMessage[protocol.Signed[board.Snapshot]](data)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot event: %w", err)
	}
	var snap *board.Snapshot
	if operator == nil {
		snap, _, err = signed.Recover()
	} else {
		snap, err = signed.RecoverFrom(operator)
	}
	if err != nil {
		return nil, fmt.Errorf("verifying snapshot event: %w", err)
	}
	return snap, nil
}
