// Package pipeline turns page tasks into stored records and frontier entries.
//
// Handlers are plugged into workers. Pages that cannot yield data are skipped
// and logged. Only failures of downstream collaborators are returned, and
// those are fatal to the calling worker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/socialgraph-parser/internal/clock/system"
	"github.com/JakeFAU/socialgraph-parser/internal/extract"
	"github.com/JakeFAU/socialgraph-parser/internal/hash/sha256"
	"github.com/JakeFAU/socialgraph-parser/internal/metrics"
	"github.com/JakeFAU/socialgraph-parser/internal/normalize"
	"github.com/JakeFAU/socialgraph-parser/internal/parser"
	"github.com/JakeFAU/socialgraph-parser/internal/worker"
)

const (
	// DefaultQuarantinePrefix is the object prefix for quarantined pages.
	DefaultQuarantinePrefix = "quarantine"
	// DefaultContentCacheSize bounds the recently emitted (token, hash) keys.
	DefaultContentCacheSize = 4096
)

// Deps bundles the collaborators shared by both handlers.
type Deps struct {
	Users    parser.UserSink
	Frontier parser.Frontier
	Dedup    parser.DedupFilter
	// Quarantine receives pages whose state fails to decode. Optional.
	Quarantine       parser.BlobStore
	QuarantinePrefix string
	// ContentCacheSize caps the in-process content dedup set. Older keys are
	// evicted; the user store's (url_token, content_hash) key still rejects
	// their re-insertion.
	ContentCacheSize int
	Hasher           parser.Hasher
	Clock            parser.Clock
	Logger           *zap.Logger
}

// Handlers holds the per-kind page handlers. One value should serve the
// process for its lifetime so that recent content dedup survives worker
// restarts.
type Handlers struct {
	users      parser.UserSink
	frontier   parser.Frontier
	dedup      parser.DedupFilter
	quarantine parser.BlobStore
	prefix     string
	hasher     parser.Hasher
	clock      parser.Clock
	logger     *zap.Logger

	emitted *lru.Cache[string, struct{}]
}

// New validates deps and fills defaults for the optional ones.
func New(deps Deps) (*Handlers, error) {
	if deps.Users == nil {
		return nil, fmt.Errorf("user sink is required")
	}
	if deps.Frontier == nil {
		return nil, fmt.Errorf("frontier is required")
	}
	if deps.Dedup == nil {
		return nil, fmt.Errorf("dedup filter is required")
	}
	h := &Handlers{
		users:      deps.Users,
		frontier:   deps.Frontier,
		dedup:      deps.Dedup,
		quarantine: deps.Quarantine,
		prefix:     strings.Trim(deps.QuarantinePrefix, "/"),
		hasher:     deps.Hasher,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	size := deps.ContentCacheSize
	if size <= 0 {
		size = DefaultContentCacheSize
	}
	emitted, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("content cache: %w", err)
	}
	h.emitted = emitted
	if h.prefix == "" {
		h.prefix = DefaultQuarantinePrefix
	}
	if h.hasher == nil {
		h.hasher = sha256.New()
	}
	if h.clock == nil {
		h.clock = system.New()
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h, nil
}

// For returns the handler bound to kind.
func (h *Handlers) For(kind parser.Kind) (worker.Handler[parser.PageTask], error) {
	switch kind {
	case parser.KindProfile:
		return h.Profile, nil
	case parser.KindFollow:
		return h.Follow, nil
	default:
		return nil, fmt.Errorf("unknown worker kind %q", kind)
	}
}

// Profile parses one profile page, stores the normalized record, marks the
// user as discovered, and schedules the user's follow list.
func (h *Handlers) Profile(ctx context.Context, task parser.PageTask) error {
	const kind = string(parser.KindProfile)
	logger := h.taskLogger(kind, task)

	state, ok, err := h.state(ctx, kind, task, logger)
	if err != nil || !ok {
		return err
	}
	token := *task.Token

	profile, err := extract.ExtractUserProfile(state, token)
	if err != nil {
		if errors.Is(err, extract.ErrNotFound) {
			logger.Info("user not found in page state", zap.Error(err))
			metrics.ObservePage(kind, metrics.OutcomeNotFound)
			return nil
		}
		return fmt.Errorf("extract profile %q: %w", token, err)
	}

	hash, err := h.hasher.Hash([]byte(*task.HTML))
	if err != nil {
		return fmt.Errorf("hash page: %w", err)
	}
	key := token + "\x00" + hash
	if h.wasEmitted(key) {
		logger.Debug("skipping already parsed page", zap.String("content_hash", hash))
		metrics.ObservePage(kind, metrics.OutcomeDuplicate)
		return nil
	}

	if err := h.markDiscovered(ctx, token); err != nil {
		return err
	}

	record := normalize.Normalize(profile)
	record.ContentHash = hash
	record.ParsedAt = h.clock.Now()
	if err := h.users.AddUserInfo(ctx, record); err != nil {
		return fmt.Errorf("store user %q: %w", token, err)
	}
	metrics.ObserveRecordStored()

	info := parser.TokenInfo{
		URLToken:       token,
		FollowingCount: profile.FollowingCount,
		FollowerCount:  profile.FollowerCount,
	}
	if err := h.frontier.EnqueueTokens(ctx, []parser.FrontierEntry{{Token: token, Info: &info}}); err != nil {
		return fmt.Errorf("enqueue user %q: %w", token, err)
	}
	h.remember(key)

	metrics.ObserveTokens(kind, 1)
	metrics.ObservePage(kind, metrics.OutcomeParsed)
	logger.Debug("parsed profile page")
	return nil
}

// Follow parses one follow-list page and forwards every listed user except
// the page's origin.
func (h *Handlers) Follow(ctx context.Context, task parser.PageTask) error {
	const kind = string(parser.KindFollow)
	logger := h.taskLogger(kind, task)

	state, ok, err := h.state(ctx, kind, task, logger)
	if err != nil || !ok {
		return err
	}
	origin := *task.Token

	tokens, err := extract.ExtractFollowTokens(state, origin)
	if err != nil {
		if errors.Is(err, extract.ErrNotFound) {
			logger.Info("follow list not found in page state", zap.Error(err))
			metrics.ObservePage(kind, metrics.OutcomeNotFound)
			return nil
		}
		return fmt.Errorf("extract follow tokens of %q: %w", origin, err)
	}

	if len(tokens) > 0 {
		entries := make([]parser.FrontierEntry, 0, len(tokens))
		for _, t := range tokens {
			entries = append(entries, parser.FrontierEntry{Token: t})
		}
		if err := h.frontier.EnqueueTokens(ctx, entries); err != nil {
			return fmt.Errorf("enqueue follow tokens of %q: %w", origin, err)
		}
	}

	metrics.ObserveTokens(kind, len(tokens))
	metrics.ObservePage(kind, metrics.OutcomeParsed)
	logger.Debug("parsed follow page", zap.Int("tokens", len(tokens)))
	return nil
}

// state decodes the page's embedded state. ok is false when the task must be
// skipped; err is only set for failures that should stop the worker.
func (h *Handlers) state(ctx context.Context, kind string, task parser.PageTask, logger *zap.Logger) (extract.State, bool, error) {
	if task.HTML == nil || task.Token == nil {
		logger.Debug("skipping task without page or token")
		metrics.ObservePage(kind, metrics.OutcomeIncomplete)
		return nil, false, nil
	}
	state, err := extract.ExtractEmbeddedState(*task.HTML)
	switch {
	case err == nil:
		return state, true, nil
	case errors.Is(err, extract.ErrNotFound):
		logger.Info("page has no embedded state", zap.Error(err))
		metrics.ObservePage(kind, metrics.OutcomeNotFound)
		return nil, false, nil
	case errors.Is(err, extract.ErrMalformedData):
		logger.Warn("page state is malformed", zap.Error(err))
		metrics.ObservePage(kind, metrics.OutcomeMalformed)
		h.quarantinePage(ctx, kind, task, logger)
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("extract state: %w", err)
	}
}

// quarantinePage keeps a copy of an undecodable page. Failures are logged only.
func (h *Handlers) quarantinePage(ctx context.Context, kind string, task parser.PageTask, logger *zap.Logger) {
	if h.quarantine == nil {
		return
	}
	name := task.ID
	if name == "" {
		digest, err := h.hasher.Hash([]byte(*task.HTML))
		if err != nil {
			logger.Warn("failed to name quarantined page", zap.Error(err))
			return
		}
		name = digest
	}
	objectPath := path.Join(h.prefix, kind, name+".html")
	uri, err := h.quarantine.PutObject(ctx, objectPath, "text/html; charset=utf-8", strings.NewReader(*task.HTML))
	if err != nil {
		logger.Warn("failed to quarantine page", zap.String("path", objectPath), zap.Error(err))
		return
	}
	logger.Info("quarantined malformed page", zap.String("uri", uri))
}

func (h *Handlers) markDiscovered(ctx context.Context, token string) error {
	seen, err := h.dedup.Seen(ctx, token)
	if err != nil {
		return fmt.Errorf("check dedup filter for %q: %w", token, err)
	}
	if seen {
		return nil
	}
	if err := h.dedup.Mark(ctx, token); err != nil {
		return fmt.Errorf("mark %q in dedup filter: %w", token, err)
	}
	return nil
}

func (h *Handlers) wasEmitted(key string) bool {
	return h.emitted.Contains(key)
}

func (h *Handlers) remember(key string) {
	h.emitted.Add(key, struct{}{})
}

func (h *Handlers) taskLogger(kind string, task parser.PageTask) *zap.Logger {
	fields := []zap.Field{zap.String("kind", kind), zap.String("task_id", task.ID)}
	if task.Token != nil {
		fields = append(fields, zap.String("token", *task.Token))
	}
	if task.ThreadName != "" {
		fields = append(fields, zap.String("thread", task.ThreadName))
	}
	return h.logger.With(fields...)
}
