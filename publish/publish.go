// Package publish records bring-up progress in a redis hash so other tools on the board can
// watch it.
package publish

import (
	"fmt"
	"github.com/garyburd/redigo/redis"
	"github.com/jpillora/backoff"
	"github.com/platinasystems/log"
	"time"
)

const DefaultHash = "msmctl"

// Publisher writes fields of one hash. A nil *Publisher publishes nothing.
type Publisher struct {
	conn redis.Conn
	hash string
}

func New(conn redis.Conn, hash string) *Publisher {
	return &Publisher{conn: conn, hash: hash}
}

// Swapped out by tests.
var (
	dial  = func(addr string) (redis.Conn, error) { return redis.Dial("tcp", addr) }
	sleep = time.Sleep
)

// Dial connects to the redis server at addr, trying up to tries times. redisd may still be
// coming up when we run during boot.
func Dial(addr, hash string, tries int) (*Publisher, error) {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: false,
	}
	var err error
	for i := 0; i < tries; i++ {
		var conn redis.Conn
		conn, err = dial(addr)
		if err == nil {
			return New(conn, hash), nil
		}
		if i < tries-1 {
			d := b.Duration()
			log.Printf("info", "publish: couldn't reach %s (%v), retrying in %v", addr, err, d)
			sleep(d)
		}
	}
	return nil, fmt.Errorf("couldn't connect to redis at %s: %v", addr, err)
}

func (p *Publisher) Hset(field string, v interface{}) error {
	if p == nil {
		return nil
	}
	if _, err := p.conn.Do("HSET", p.hash, field, v); err != nil {
		return fmt.Errorf("couldn't set %s %s: %v", p.hash, field, err)
	}
	return nil
}

// State publishes a controller's bring-up state.
func (p *Publisher) State(ctrl string, s fmt.Stringer) error {
	return p.Hset(ctrl+".state", s.String())
}

// Version publishes a controller's SDHCI host version.
func (p *Publisher) Version(ctrl string, v uint16) error {
	return p.Hset(ctrl+".version", fmt.Sprintf("%04x", v))
}

// Rate publishes the rate a peripheral clock was set to.
func (p *Publisher) Rate(periph fmt.Stringer, hz uint64) error {
	return p.Hset("gcc."+periph.String()+".rate", hz)
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.conn.Close()
}
