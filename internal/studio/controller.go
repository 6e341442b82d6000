// Package studio holds the generation controller: the form state, the
// single in-flight generation and the history shown next to it.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"imagestudio/internal/catalog"
	"imagestudio/internal/history"
	"imagestudio/internal/infra"
	"imagestudio/internal/providers/genai"
)

var (
	ErrUnknownStyle       = errors.New("studio: unknown style preset")
	ErrUnknownAspectRatio = errors.New("studio: unknown aspect ratio")
	ErrBlankPrompt        = errors.New("studio: prompt is blank")
	ErrInFlight           = errors.New("studio: generation already in flight")
)

// Generator produces one image for a composed prompt. *genai.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt, aspectRatio string) (*genai.Result, error)
}

// HistoryStore persists the bounded history log. *history.Store satisfies it.
type HistoryStore interface {
	Load(ctx context.Context) []history.Entry
	Append(ctx context.Context, entry history.Entry, current []history.Entry) ([]history.Entry, error)
}

type Option func(*Controller)

func WithLogger(logger *infra.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now for entry ids and download names.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller owns the state machine. All methods are safe for concurrent use;
// the generator is always called without holding the lock.
type Controller struct {
	client Generator
	store  HistoryStore
	logger *infra.Logger
	now    func() time.Time

	mu           sync.Mutex
	prompt       string
	style        string
	aspectRatio  string
	status       Status
	errMsg       string
	imageURL     string
	downloadName string
	history      []history.Entry

	subs    map[int]chan View
	nextSub int

	inflight sync.WaitGroup
}

type request struct {
	prompt      string
	style       string
	aspectRatio string
}

// New loads the persisted history and returns an Idle controller with the
// catalog defaults selected.
func New(ctx context.Context, client Generator, store HistoryStore, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, errors.New("studio: generator is required")
	}
	if store == nil {
		return nil, errors.New("studio: history store is required")
	}
	c := &Controller{
		client:      client,
		store:       store,
		logger:      infra.NopLogger(),
		now:         time.Now,
		style:       catalog.DefaultStyle().Value,
		aspectRatio: catalog.DefaultAspectRatio().Value,
		status:      StatusIdle,
		subs:        make(map[int]chan View),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.history = store.Load(ctx)
	c.logger.Debug().Int("entries", len(c.history)).Msg("studio: history loaded")
	return c, nil
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) SetPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = prompt
	c.publishLocked()
}

// SetStyle selects a style by its modifier text.
func (c *Controller) SetStyle(style string) error {
	if _, ok := catalog.StyleByValue(style); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.style = style
	c.publishLocked()
	return nil
}

func (c *Controller) SetAspectRatio(code string) error {
	if !catalog.IsAspectRatio(code) {
		return fmt.Errorf("%w: %q", ErrUnknownAspectRatio, code)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspectRatio = code
	c.publishLocked()
	return nil
}

// SetForm applies all three form fields at once. Nothing changes unless every
// value is valid.
func (c *Controller) SetForm(prompt, style, aspectRatio string) error {
	if _, ok := catalog.StyleByValue(style); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	if !catalog.IsAspectRatio(aspectRatio) {
		return fmt.Errorf("%w: %q", ErrUnknownAspectRatio, aspectRatio)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = prompt
	c.style = style
	c.aspectRatio = aspectRatio
	c.publishLocked()
	return nil
}

// Generate runs one generation to completion. It returns false without
// calling the generator when the prompt is blank or another generation is
// in flight.
func (c *Controller) Generate(ctx context.Context) bool {
	req, err := c.begin()
	if err != nil {
		return false
	}
	c.run(ctx, req)
	return true
}

// Start is Generate without the wait: the controller is Generating when it
// returns and the generator runs on its own goroutine under ctx, which must
// outlive the caller.
func (c *Controller) Start(ctx context.Context) bool {
	return c.TryStart(ctx) == nil
}

// TryStart is Start reporting why nothing was started: ErrBlankPrompt or
// ErrInFlight. Both are decided under the same lock that starts the run.
func (c *Controller) TryStart(ctx context.Context) error {
	req, err := c.begin()
	if err != nil {
		return err
	}
	go c.run(ctx, req)
	return nil
}

// Wait blocks until the in-flight generation, if any, has finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// SelectHistory shows a past entry and restores its form values. The
// lifecycle state of an in-flight generation is left alone, so its result
// replaces the selection when it lands.
func (c *Controller) SelectHistory(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := history.Find(c.history, id)
	if !ok {
		return false
	}
	c.prompt = entry.Prompt
	c.style = catalog.DefaultStyle().Value
	if _, known := catalog.StyleByValue(entry.Style); known {
		c.style = entry.Style
	}
	c.aspectRatio = catalog.DefaultAspectRatio().Value
	if catalog.IsAspectRatio(entry.AspectRatio) {
		c.aspectRatio = entry.AspectRatio
	}
	c.imageURL = entry.ImageURL
	c.errMsg = ""
	c.downloadName = downloadName(c.now())
	if c.status != StatusGenerating {
		c.status = StatusSucceeded
	}
	c.publishLocked()
	return true
}

// Subscribe returns a channel that receives the view after every change.
// Slow readers only ever see the latest view. cancel closes the channel.
func (c *Controller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Controller) begin() (request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.TrimSpace(c.prompt) == "" {
		return request{}, ErrBlankPrompt
	}
	if c.status == StatusGenerating {
		return request{}, ErrInFlight
	}
	c.status = StatusGenerating
	c.errMsg = ""
	c.imageURL = ""
	c.downloadName = ""
	c.inflight.Add(1)
	c.publishLocked()
	return request{prompt: c.prompt, style: c.style, aspectRatio: c.aspectRatio}, nil
}

func (c *Controller) run(ctx context.Context, req request) {
	defer c.inflight.Done()

	fullPrompt := catalog.ComposePrompt(req.prompt, req.style)
	c.logger.Info().
		Int("prompt_len", len(fullPrompt)).
		Str("aspect_ratio", req.aspectRatio).
		Msg("studio: generation started")

	res, err := c.client.Generate(ctx, fullPrompt, req.aspectRatio)
	if err == nil && (res == nil || len(res.ImageBytes) == 0) {
		err = &genai.Error{Kind: genai.ErrNoImageProduced}
	}
	if err != nil {
		c.fail(err)
		return
	}

	now := c.now()
	url := EncodeDataURL(res.MIMEType, res.ImageBytes)

	c.mu.Lock()
	current := c.history
	c.mu.Unlock()

	// Only one generation runs at a time, so nothing else appends meanwhile.
	entry := history.Entry{
		ID:          history.NewID(now, current),
		Prompt:      req.prompt,
		Style:       req.style,
		AspectRatio: req.aspectRatio,
		ImageURL:    url,
	}
	next, err := c.store.Append(ctx, entry, current)
	if err != nil {
		c.logger.Warn().Err(err).Msg("studio: history not persisted")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusSucceeded
	c.errMsg = ""
	c.imageURL = url
	c.downloadName = downloadName(now)
	c.history = next
	c.publishLocked()
	c.logger.Info().Str("id", entry.ID).Int("bytes", len(res.ImageBytes)).Msg("studio: generation succeeded")
}

func (c *Controller) fail(err error) {
	msg := genai.UserMessage(err)
	c.logger.Warn().Err(err).Msg("studio: generation failed")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusFailed
	c.errMsg = msg
	c.imageURL = ""
	c.downloadName = ""
	c.publishLocked()
}

func (c *Controller) snapshotLocked() View {
	return View{
		Prompt:       c.prompt,
		Style:        c.style,
		AspectRatio:  c.aspectRatio,
		Status:       c.status,
		Error:        c.errMsg,
		ImageURL:     c.imageURL,
		DownloadName: c.downloadName,
		History:      append([]history.Entry{}, c.history...),
		CanGenerate:  c.status != StatusGenerating && strings.TrimSpace(c.prompt) != "",
	}
}

// publishLocked fans the current view out to subscribers without blocking.
// It runs under c.mu so subscribers never observe views out of order.
func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	v := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func downloadName(now time.Time) string {
	return fmt.Sprintf("imagen-ai-%d.jpeg", now.UnixMilli())
}
