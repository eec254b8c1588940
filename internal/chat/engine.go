// Package chat orchestrates one conversational exchange with a companion.
//
// The Engine drives a request through admission, loading, composing,
// generating and persisting. Collaborators are injected as narrow
// interfaces so each phase can be exercised in isolation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/halcyon0/halcyon/internal/companion"
	"github.com/halcyon0/halcyon/internal/generate"
	"github.com/halcyon0/halcyon/internal/history"
	"github.com/halcyon0/halcyon/internal/knowledge"
	"github.com/halcyon0/halcyon/internal/similarity"
)

const (
	// defaultRecentTurns bounds the turn lookup in the loading phase.
	defaultRecentTurns = 10

	// defaultTimeout bounds the generation call.
	defaultTimeout = 30 * time.Second

	// seedDelimiter separates exchanges in a companion's seed text.
	seedDelimiter = "\n\n"
)

// CompanionSource loads personas and persists conversation turns.
type CompanionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*companion.Companion, error)
	RecentTurns(ctx context.Context, companionID uuid.UUID, userID string, limit int32) ([]companion.Turn, error)
	AddTurn(ctx context.Context, t *companion.Turn) error
}

// HistoryStore is the per-conversation memory stream.
type HistoryStore interface {
	ReadLatest(ctx context.Context, key history.Key) ([]string, error)
	Seed(ctx context.Context, seed, delimiter string, key history.Key) error
	Append(ctx context.Context, entry string, key history.Key) error
}

// Retriever searches a companion's archival document.
type Retriever interface {
	VectorSearch(ctx context.Context, query string, companionID uuid.UUID, documentID string) ([]knowledge.Result, error)
}

// Generator produces model text for an assembled prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string, p generate.Params) (string, error)
	ModelName() string
}

// Limiter admits or rejects a request for a rate key.
type Limiter interface {
	Allow(key string) bool
}

// Config contains all required parameters for the Engine.
type Config struct {
	Companions CompanionSource
	History    HistoryStore
	Retriever  Retriever
	Generator  Generator
	Limiter    Limiter
	Logger     *slog.Logger

	// Params are the sampling parameters for every generation call.
	Params generate.Params

	// RecentTurns bounds the turn lookup (zero uses the default).
	RecentTurns int32

	// Timeout bounds the generation call (zero uses the default).
	Timeout time.Duration

	// Background lifecycle for the fire-and-continue user-turn write.
	// BackgroundCtx outlives individual requests; WG tracks the write
	// goroutines and is waited on at shutdown.
	BackgroundCtx context.Context //nolint:containedctx // App lifecycle context, not a request context
	WG            *sync.WaitGroup
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Companions == nil {
		return errors.New("companion source is required")
	}
	if cfg.History == nil {
		return errors.New("history store is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Limiter == nil {
		return errors.New("limiter is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.WG == nil {
		return errors.New("wait group is required")
	}
	return nil
}

// Request is one user message addressed to a companion.
type Request struct {
	CompanionID uuid.UUID
	UserID      string
	UserName    string
	Prompt      string

	// RateKey scopes the admission check. Empty derives one from UserID.
	RateKey string
}

// Result is the outcome of one exchange.
type Result struct {
	// Text is the companion's reply, truncated to its first line.
	Text string

	// Repetitive holds the repetition signal per loaded recent turn, most
	// recent first. Computed for observability; generation is not altered.
	Repetitive []bool

	// Persisted reports whether the reply was written to history. Trivial
	// replies are returned but not stored.
	Persisted bool
}

// Engine runs conversational exchanges.
//
// Engine is stateless across requests; all configuration is captured
// immutably at construction time, so it is safe for concurrent use.
type Engine struct {
	companions CompanionSource
	history    HistoryStore
	retriever  Retriever
	generator  Generator
	limiter    Limiter
	logger     *slog.Logger

	params      generate.Params
	recentTurns int32
	timeout     time.Duration

	bgCtx context.Context //nolint:containedctx // App lifecycle context, not a request context
	wg    *sync.WaitGroup
}

// New creates an Engine with required configuration.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	recentTurns := cfg.RecentTurns
	if recentTurns <= 0 {
		recentTurns = defaultRecentTurns
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	bgCtx := cfg.BackgroundCtx
	if bgCtx == nil {
		bgCtx = context.Background()
	}

	return &Engine{
		companions:  cfg.Companions,
		history:     cfg.History,
		retriever:   cfg.Retriever,
		generator:   cfg.Generator,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
		params:      cfg.Params,
		recentTurns: recentTurns,
		timeout:     timeout,
		bgCtx:       bgCtx,
		wg:          cfg.WG,
	}, nil
}

// Respond runs one full exchange: admit the caller, load the companion,
// compose a prompt from conversation memory and archival context, generate
// the reply and persist the exchange.
//
// Sentinel errors classify admission and lookup failures; every other
// failure is internal. The fire-and-continue user-turn write is never
// observed by the returned error.
func (e *Engine) Respond(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" {
		return nil, ErrUnauthorized
	}
	rateKey := req.RateKey
	if rateKey == "" {
		rateKey = "chat:" + req.UserID
	}

	// Loading phase: admission and companion lookup run concurrently; the
	// request does not proceed until both have resolved.
	type loadResult struct {
		comp  *companion.Companion
		turns []companion.Turn
		err   error
	}

	admitCh := make(chan bool, 1)
	loadCh := make(chan loadResult, 1)

	// Goroutine exits after single channel send.
	// Buffered channel (cap 1) prevents blocking if caller returns early.
	go func() {
		admitCh <- e.limiter.Allow(rateKey)
	}()

	go func() {
		comp, err := e.companions.Get(ctx, req.CompanionID)
		if err != nil {
			loadCh <- loadResult{err: err}
			return
		}
		turns, err := e.companions.RecentTurns(ctx, req.CompanionID, req.UserID, e.recentTurns)
		loadCh <- loadResult{comp: comp, turns: turns, err: err}
	}()

	admitted := <-admitCh
	lr := <-loadCh
	if !admitted {
		return nil, ErrRateLimited
	}
	if lr.err != nil {
		if errors.Is(lr.err, companion.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading companion: %w", lr.err)
	}

	key := history.Key{
		CompanionID: req.CompanionID,
		UserID:      req.UserID,
		ModelName:   e.generator.ModelName(),
	}

	// Persist the user turn without waiting: the write overlaps the rest
	// of the request. Uses bgCtx so it outlives an early client disconnect;
	// tracked by wg for graceful shutdown. Failure is logged only.
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		t := &companion.Turn{
			CompanionID: req.CompanionID,
			UserID:      req.UserID,
			Role:        companion.RoleUser,
			Content:     req.Prompt,
		}
		if err := e.companions.AddTurn(e.bgCtx, t); err != nil {
			e.logger.Warn("persisting user turn", "companion_id", req.CompanionID, "error", err)
		}
	}()

	repetitive := make([]bool, len(lr.turns))
	for i, t := range lr.turns {
		repetitive[i] = similarity.IsRepetitive(req.Prompt, t.Content)
	}

	transcript, snippets, err := e.compose(ctx, lr.comp, key, req.Prompt)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(lr.comp, transcript, snippets, req.Prompt)

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.generator.Complete(genCtx, prompt, e.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	reply := firstLine(raw)

	result := &Result{Text: reply, Repetitive: repetitive}
	if utf8.RuneCountInString(reply) <= 1 {
		// Trivial replies are returned but leave no trace in memory.
		e.logger.Debug("skipping persistence of trivial reply", "key", key.String())
		return result, nil
	}

	if err := e.persist(ctx, req, key, reply); err != nil {
		return nil, err
	}
	result.Persisted = true

	return result, nil
}

// compose runs the history read and the archival search concurrently and
// joins before prompt assembly. An empty stream is seeded from the
// companion's configured opening exchange first.
func (e *Engine) compose(ctx context.Context, comp *companion.Companion, key history.Key, prompt string) (transcript []string, snippets []knowledge.Result, err error) {
	type historyResult struct {
		lines []string
		err   error
	}
	type searchResult struct {
		results []knowledge.Result
		err     error
	}

	historyCh := make(chan historyResult, 1)
	searchCh := make(chan searchResult, 1)

	go func() {
		lines, err := e.history.ReadLatest(ctx, key)
		historyCh <- historyResult{lines, err}
	}()

	go func() {
		results, err := e.retriever.VectorSearch(ctx, prompt, comp.ID, knowledge.DocumentID(comp.ID))
		searchCh <- searchResult{results, err}
	}()

	hr := <-historyCh
	sr := <-searchCh
	if hr.err != nil {
		return nil, nil, fmt.Errorf("reading conversation memory: %w", hr.err)
	}
	if sr.err != nil {
		e.logger.Debug("archival search failed", "error", sr.err) // non-fatal
	} else {
		snippets = sr.results
	}

	transcript = hr.lines
	if len(transcript) == 0 {
		if err := e.history.Seed(ctx, comp.Seed, seedDelimiter, key); err != nil {
			return nil, nil, fmt.Errorf("seeding conversation memory: %w", err)
		}
		transcript, err = e.history.ReadLatest(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("reading seeded memory: %w", err)
		}
	}

	return transcript, snippets, nil
}

// persist writes the completed exchange: the history entry and the
// system-role turn are independent writes issued concurrently. Either
// failing fails the request; the reply was generated but the exchange
// must not be half-remembered silently.
func (e *Engine) persist(ctx context.Context, req Request, key history.Key, reply string) error {
	historyErrCh := make(chan error, 1)
	turnErrCh := make(chan error, 1)

	go func() {
		entry := "User: " + req.Prompt + "\n" + reply
		historyErrCh <- e.history.Append(ctx, entry, key)
	}()

	go func() {
		t := &companion.Turn{
			CompanionID: req.CompanionID,
			UserID:      req.UserID,
			Role:        companion.RoleSystem,
			Content:     reply,
		}
		turnErrCh <- e.companions.AddTurn(ctx, t)
	}()

	historyErr := <-historyErrCh
	turnErr := <-turnErrCh
	if historyErr != nil {
		return fmt.Errorf("appending exchange to memory: %w", historyErr)
	}
	if turnErr != nil {
		return fmt.Errorf("persisting reply turn: %w", turnErr)
	}
	return nil
}
