package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

const localSubscriberBuffer = 64

type localSub struct {
	pattern string
	ch      chan []byte
}

// LocalBus is an in-process domain.SignalBus for single-node deployments
// running without Redis. Slow subscribers lose messages rather than block
// publishers.
type LocalBus struct {
	mu      sync.Mutex
	subs    map[*localSub]struct{}
	trades  []domain.StreamedTrade
	seq     uint64
	maxLen  int
}

var _ domain.SignalBus = (*LocalBus)(nil)

// NewLocalBus creates a LocalBus whose trade stream keeps the last maxLen
// entries.
func NewLocalBus(maxLen int) *LocalBus {
	if maxLen <= 0 {
		maxLen = 10_000
	}
	return &LocalBus{
		subs:    make(map[*localSub]struct{}),
		maxLen:  maxLen,
	}
}

// Publish delivers payload to every subscriber whose pattern matches channel.
func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if !channelMatches(s.pattern, channel) {
			continue
		}
		select {
		case s.ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel fed until ctx is cancelled. A pattern ending in
// '*' matches every channel with that prefix.
func (b *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s := &localSub{pattern: channel, ch: make(chan []byte, localSubscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch, nil
}

// AppendTrade records ev, trimming the oldest entries past maxLen.
func (b *LocalBus) AppendTrade(_ context.Context, ev domain.TradeEvent) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	id := strconv.FormatUint(b.seq, 10) + "-0"
	b.trades = append(b.trades, domain.StreamedTrade{ID: id, Trade: ev})
	if len(b.trades) > b.maxLen {
		b.trades = b.trades[len(b.trades)-b.maxLen:]
	}
	return id, nil
}

// ReadTrades returns up to count trades after lastID.
func (b *LocalBus) ReadTrades(_ context.Context, lastID string, count int) ([]domain.StreamedTrade, error) {
	after, err := localSeq(lastID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamedTrade
	for _, st := range b.trades {
		if seq, _ := localSeq(st.ID); seq <= after {
			continue
		}
		out = append(out, st)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

func localSeq(id string) (uint64, error) {
	if id == "" || id == "0" {
		return 0, nil
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(id, "-0"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("local bus: bad stream id %q", id)
	}
	return n, nil
}

func channelMatches(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}
