package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// HandshakeToken is sent by the upstream scorer once all output has been
// consumed, closing the session.
const HandshakeToken = "over"

var (
	// ErrTimeout reports that no input token arrived within the read timeout.
	ErrTimeout = errors.New("channel: no input within the read timeout")
	// ErrProtocol reports a malformed flag, frame count or numeric token.
	ErrProtocol = errors.New("channel: protocol violation")
)

// Options configures a FrameChannel.
type Options struct {
	// NumClasses is the number of score columns per frame.
	NumClasses int
	// MaxChunkFrames bounds the frame count a single chunk may carry.
	MaxChunkFrames int
	// ReadTimeout bounds the wait for each input token.
	ReadTimeout time.Duration
}

// FrameChannel reads framed score chunks from a whitespace-delimited token
// stream. It owns the stream cursor for the whole session: a background
// scanner feeds tokens into a buffered channel, and each read waits on that
// channel against a timer. End of stream is indistinguishable from silence
// and eventually surfaces as ErrTimeout, matching the contract that a writer
// must terminate a session explicitly.
type FrameChannel struct {
	log    *slog.Logger
	opts   Options
	tokens chan string
	done   chan struct{}
	closed sync.Once
	// drained flips once the scanner channel closes so later reads block on
	// the timer alone instead of spinning on a closed channel.
	drained bool
}

// New starts the token scanner over r and returns the channel.
func New(r io.Reader, opts Options, logger *slog.Logger) *FrameChannel {
	if logger == nil {
		logger = slog.Default()
	}
	c := &FrameChannel{
		log:    logger.With("component", "channel"),
		opts:   opts,
		tokens: make(chan string, 256),
		done:   make(chan struct{}),
	}
	go c.scan(r)
	return c
}

// Close stops the background scanner even when unread input remains, so an
// abandoned session does not pin the goroutine and its buffers. Safe to call
// more than once.
func (c *FrameChannel) Close() error {
	c.closed.Do(func() { close(c.done) })
	return nil
}

func (c *FrameChannel) scan(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		select {
		case c.tokens <- sc.Text():
		case <-c.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		c.log.Debug("input stream closed with error", "error", err)
	}
	close(c.tokens)
}

// ReadChunk reads the next framed chunk. It fails with ErrTimeout when no
// token arrives in time and with ErrProtocol on a malformed chunk. This is
// the single blocking point of the pipeline.
func (c *FrameChannel) ReadChunk(ctx context.Context) (Chunk, error) {
	flag, err := c.intToken(ctx)
	if err != nil {
		return Chunk{}, err
	}

	switch Flag(flag) {
	case FlagTermination:
		return Chunk{Flag: FlagTermination}, nil
	case FlagActivity:
		frames, err := c.intToken(ctx)
		if err != nil {
			return Chunk{}, err
		}
		if frames <= 0 || frames > c.opts.MaxChunkFrames {
			return Chunk{}, fmt.Errorf("%w: activity frame count %d outside (0, %d]",
				ErrProtocol, frames, c.opts.MaxChunkFrames)
		}
		scores, err := c.readScores(ctx, frames)
		if err != nil {
			return Chunk{}, err
		}
		return Chunk{Flag: FlagActivity, FrameCount: frames, Scores: scores}, nil
	case FlagEndpointProbe:
		frames, err := c.intToken(ctx)
		if err != nil {
			return Chunk{}, err
		}
		if frames < 0 || frames > c.opts.MaxChunkFrames {
			return Chunk{}, fmt.Errorf("%w: endpoint probe frame count %d outside [0, %d]",
				ErrProtocol, frames, c.opts.MaxChunkFrames)
		}
		chunk := Chunk{Flag: FlagEndpointProbe, FrameCount: frames}
		if frames > 0 {
			chunk.Scores, err = c.readScores(ctx, frames)
			if err != nil {
				return Chunk{}, err
			}
		}
		return chunk, nil
	default:
		return Chunk{}, fmt.Errorf("%w: unknown chunk flag %d", ErrProtocol, flag)
	}
}

// AwaitHandshake consumes tokens until the end-of-session handshake token
// arrives, using the same timeout discipline as chunk reads. Tokens left over
// from the result stream are discarded.
func (c *FrameChannel) AwaitHandshake(ctx context.Context) error {
	for {
		tok, err := c.nextToken(ctx)
		if err != nil {
			return err
		}
		if tok == HandshakeToken {
			c.log.Debug("session handshake received")
			return nil
		}
		c.log.Debug("discarding token while awaiting handshake", "token", tok)
	}
}

func (c *FrameChannel) readScores(ctx context.Context, frames int) ([]float64, error) {
	scores := make([]float64, frames*c.opts.NumClasses)
	for i := range scores {
		tok, err := c.nextToken(ctx)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed score token %q", ErrProtocol, tok)
		}
		scores[i] = v
	}
	return scores, nil
}

func (c *FrameChannel) intToken(ctx context.Context) (int, error) {
	tok, err := c.nextToken(ctx)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed integer token %q", ErrProtocol, tok)
	}
	return v, nil
}

// nextToken waits for one token. The timeout budget is fresh per token and
// fires no earlier than configured.
func (c *FrameChannel) nextToken(ctx context.Context) (string, error) {
	tokens := c.tokens
	if c.drained {
		tokens = nil
	}
	timer := time.NewTimer(c.opts.ReadTimeout)
	defer timer.Stop()
	for {
		select {
		case tok, ok := <-tokens:
			if !ok {
				c.drained = true
				tokens = nil
				continue
			}
			return tok, nil
		case <-timer.C:
			return "", ErrTimeout
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
