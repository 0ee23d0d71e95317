package chatclient

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval matches the cadence the web client uses.
const DefaultPollInterval = 2 * time.Second

// PollerOptions configures a Poller. Callbacks run on the polling goroutine.
type PollerOptions struct {
	Interval time.Duration
	Limit    int
	OnUpdate func(changed []Message)
	OnTyping func(typing []Typist)
	OnUnread func(unread int64)
	OnError  func(err error)
}

// Poller keeps a Timeline in step with the server by repeatedly calling Sync.
type Poller struct {
	client   *Client
	chatID   string
	timeline *Timeline
	opts     PollerOptions

	mu      sync.Mutex
	cursor  Position
	hasMore bool

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewPoller(client *Client, chatID string, timeline *Timeline, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if timeline == nil {
		timeline = NewTimeline()
	}
	return &Poller{
		client:   client,
		chatID:   chatID,
		timeline: timeline,
		opts:     opts,
		done:     make(chan struct{}),
	}
}

func (p *Poller) Timeline() *Timeline { return p.timeline }

// Cursor is the position the next poll will send.
func (p *Poller) Cursor() Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Poll runs a single sync round. The cursor only advances on success, so a
// failed round is retried from the same point.
func (p *Poller) Poll(ctx context.Context) error {
	snap, err := p.client.Sync(ctx, p.chatID, p.Cursor(), p.opts.Limit)
	if err != nil {
		return err
	}

	var changed []Message
	for _, msg := range snap.Messages {
		if p.timeline.Merge(msg) > 0 {
			changed = append(changed, msg)
		}
	}

	p.mu.Lock()
	next := snap.Next()
	advanced := p.cursor.Before(next)
	if advanced {
		p.cursor = next
	}
	// Without progress another round would return the same page. The server
	// only stalls while a full page sits inside its lag window.
	p.hasMore = snap.HasMore && advanced
	p.mu.Unlock()

	if len(changed) > 0 && p.opts.OnUpdate != nil {
		p.opts.OnUpdate(changed)
	}
	if p.opts.OnTyping != nil {
		p.opts.OnTyping(snap.Typing)
	}
	if p.opts.OnUnread != nil {
		p.opts.OnUnread(snap.Unread)
	}
	return nil
}

// Start begins polling in the background. Later calls are no-ops.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		p.mu.Lock()
		p.cancel = cancel
		p.mu.Unlock()
		go p.run(runCtx)
	})
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	// A round that drained a full page goes again right away.
	for {
		err := p.Poll(ctx)
		if err != nil {
			if ctx.Err() == nil && p.opts.OnError != nil {
				p.opts.OnError(err)
			}
			return
		}
		if !p.lastHadMore() || ctx.Err() != nil {
			return
		}
	}
}

func (p *Poller) lastHadMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Stop halts polling and waits for the loop to exit. Safe to call more than
// once, and before Start.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		// Claims the start slot if nobody has, so a later Start is a no-op.
		p.startOnce.Do(func() { close(p.done) })

		p.mu.Lock()
		cancel := p.cancel
		p.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		<-p.done
	})
}
