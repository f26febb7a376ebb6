// Package feed delivers committed board snapshots to watchers.
//
// Hub serves subscribers in the same process (websocket connections, the
// participant client). RedisPublisher and SubscribeRedis carry operator-signed
// snapshots between processes over redis pub/sub. Delivery is at most once and
// only the latest snapshot matters, so both sides drop rather than block.
package feed
