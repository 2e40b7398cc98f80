package banlist

import (
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v7"
)

const redisBanChannel = "spammer:banlist"

type redisBanEvent struct {
	Index int       `json:"index"`
	Until time.Time `json:"until"`
	Unban bool      `json:"unban"`
}

// RedisSync mirrors ban/unban transitions across a fleet of spammer
// processes sharing one proxy list, via a pub/sub channel, so they
// converge on the same view of proxy health faster than independent
// failure discovery would allow.
type RedisSync struct {
	client *redis.Client
	bl     *Banlist
	stop   chan struct{}
}

// NewRedisSync connects to addr and starts mirroring bl's ban state in
// both directions: local transitions are published, and events from
// other processes are applied to bl.
func NewRedisSync(addr string, bl *Banlist) (*RedisSync, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping().Err(); err != nil {
		return nil, err
	}
	rs := &RedisSync{client: client, bl: bl, stop: make(chan struct{})}
	bl.AddPersister(rs)
	go rs.subscribeLoop()
	return rs, nil
}

// OnBan implements banlist.Persister.
func (rs *RedisSync) OnBan(idx int, until time.Time) {
	rs.publish(redisBanEvent{Index: idx, Until: until})
}

// OnUnban implements banlist.Persister.
func (rs *RedisSync) OnUnban(idx int) {
	rs.publish(redisBanEvent{Index: idx, Unban: true})
}

func (rs *RedisSync) publish(ev redisBanEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	rs.client.Publish(redisBanChannel, b)
}

func (rs *RedisSync) subscribeLoop() {
	sub := rs.client.Subscribe(redisBanChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev redisBanEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if ev.Unban {
				rs.bl.ReportSuccess(ev.Index)
			} else {
				rs.bl.Restore(ev.Index, ev.Until, rs.bl.maxFailures)
			}
		case <-rs.stop:
			return
		}
	}
}

// Close stops the subscription loop and releases the redis client.
func (rs *RedisSync) Close() error {
	close(rs.stop)
	return rs.client.Close()
}
