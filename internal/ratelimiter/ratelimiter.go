package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrStopped = errors.New("rate limiter is stopped")

// Sender is the part of *tgbotapi.BotAPI the limiter drives.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type request struct {
	ctx      context.Context
	message  tgbotapi.Chattable
	response chan response
}

type response struct {
	message tgbotapi.Message
	err     error
}

// RateLimiter serializes outgoing messages and spaces them per chat so replies
// stay under Telegram's flood limits.
type RateLimiter struct {
	api      Sender
	rates    Rates
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
	log      *slog.Logger
}

func New(api Sender, rates Rates, log *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		api:      api,
		rates:    rates.withDefaults(),
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		done:     make(chan struct{}),
		log:      log,
	}

	go rl.processQueue()

	return rl
}

// Send queues message and waits until it is delivered, ctx ends or the limiter stops.
func (rl *RateLimiter) Send(ctx context.Context, message tgbotapi.Chattable) (tgbotapi.Message, error) {
	req := request{
		ctx:      ctx,
		message:  message,
		response: make(chan response, 1),
	}

	select {
	case <-rl.done:
		return tgbotapi.Message{}, ErrStopped
	default:
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	case <-rl.done:
		return tgbotapi.Message{}, ErrStopped
	}

	select {
	case resp := <-req.response:
		return resp.message, resp.err
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	case <-rl.done:
		return tgbotapi.Message{}, ErrStopped
	}
}

// Request bypasses the queue. Chat actions and callback answers are not rate limited.
func (rl *RateLimiter) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	resp, err := rl.api.Request(c)
	if err != nil {
		return nil, fmt.Errorf("request %T: %w", c, err)
	}

	return resp, nil
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
}

func (rl *RateLimiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.done:
			rl.drain()

			return
		}
	}
}

func (rl *RateLimiter) drain() {
	for {
		select {
		case req := <-rl.queue:
			req.response <- response{err: ErrStopped}
		default:
			return
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	if err := req.ctx.Err(); err != nil {
		req.response <- response{err: err}

		return
	}

	chatID := chatIDOf(req.message)

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[chatID]
	rl.mu.Unlock()

	if exists {
		if delay := delayFor(rl.rates.forChat(chatID), lastSent, time.Now()); delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"chattableType", fmt.Sprintf("%T", req.message),
				"queueLen", len(rl.queue))

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.ctx.Done():
				timer.Stop()
				req.response <- response{err: req.ctx.Err()}

				return
			case <-rl.done:
				timer.Stop()
				req.response <- response{err: ErrStopped}

				return
			}
		}
	}

	message, err := rl.api.Send(req.message)
	if err != nil {
		err = fmt.Errorf("send %T: %w", req.message, err)
	}

	rl.mu.Lock()
	rl.lastSent[chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- response{
		message: message,
		err:     err,
	}
}
