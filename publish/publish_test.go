package publish

import (
	"errors"
	"fmt"
	"github.com/garyburd/redigo/redis"
	"testing"
	"time"
)

type fakeConn struct {
	cmds   [][]interface{}
	err    error
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) Err() error { return c.err }

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.cmds = append(c.cmds, append([]interface{}{cmd}, args...))
	return int64(1), nil
}

func (c *fakeConn) Send(cmd string, args ...interface{}) error { return nil }
func (c *fakeConn) Flush() error                               { return nil }
func (c *fakeConn) Receive() (interface{}, error)              { return nil, nil }

type name string

func (n name) String() string { return string(n) }

func TestPublish(t *testing.T) {
	c := &fakeConn{}
	p := New(c, "msmctl")
	if err := p.State("sdhci@7824000", name("Ready")); err != nil {
		t.Fatalf("State: %v", err)
	}
	if err := p.Version("sdhci@7824000", 0x1002); err != nil {
		t.Fatalf("Version: %v", err)
	}
	if err := p.Rate(name("sdc1"), 200000000); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if err := p.Close(); err != nil || !c.closed {
		t.Errorf("Close got: %v, closed %v", err, c.closed)
	}

	want := []string{
		"[HSET msmctl sdhci@7824000.state Ready]",
		"[HSET msmctl sdhci@7824000.version 1002]",
		"[HSET msmctl gcc.sdc1.rate 200000000]",
	}
	if len(c.cmds) != len(want) {
		t.Fatalf("commands got: %v, want: %v", c.cmds, want)
	}
	for i := range want {
		if got := fmt.Sprint(c.cmds[i]); got != want[i] {
			t.Errorf("command %d got: %s, want: %s", i, got, want[i])
		}
	}
}

func TestPublishError(t *testing.T) {
	p := New(&fakeConn{err: errors.New("broken pipe")}, "msmctl")
	if err := p.State("sdhci", name("Fault")); err == nil {
		t.Errorf("State succeeded on a broken connection")
	}
}

func TestNilPublisher(t *testing.T) {
	var p *Publisher
	if err := p.State("sdhci", name("Ready")); err != nil {
		t.Errorf("State: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestDialRetries(t *testing.T) {
	defer func(d func(string) (redis.Conn, error), s func(time.Duration)) {
		dial, sleep = d, s
	}(dial, sleep)

	tests := []struct {
		failures int
		tries    int
		wantErr  bool
		want     []time.Duration
	}{
		{0, 3, false, nil},
		{2, 3, false, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}},
		{3, 3, true, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}},
		{10, 1, true, nil},
	}

	for _, test := range tests {
		var calls int
		var slept []time.Duration
		dial = func(addr string) (redis.Conn, error) {
			calls++
			if calls <= test.failures {
				return nil, errors.New("connection refused")
			}
			return &fakeConn{}, nil
		}
		sleep = func(d time.Duration) { slept = append(slept, d) }

		p, err := Dial("localhost:6379", DefaultHash, test.tries)
		if (err != nil) != test.wantErr {
			t.Errorf("failures %d tries %d: got: %v, wantErr: %v", test.failures, test.tries, err, test.wantErr)
		}
		if !test.wantErr && p == nil {
			t.Errorf("failures %d tries %d: no publisher", test.failures, test.tries)
		}
		if len(slept) != len(test.want) {
			t.Errorf("failures %d tries %d: sleeps got: %v, want: %v", test.failures, test.tries, slept, test.want)
			continue
		}
		for i := range test.want {
			if slept[i] != test.want[i] {
				t.Errorf("failures %d tries %d: sleep %d got: %v, want: %v", test.failures, test.tries, i, slept[i], test.want[i])
			}
		}
	}
}
