// Package imageref turns asset paths into displayable image sources. A path
// becomes a durable cloud:// reference; with the signedUrl strategy the
// reference is exchanged for a time-limited download URL, cached until it
// expires.
package imageref

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Strategy selects the kind of source Resolve returns.
type Strategy string

const (
	StrategyReference Strategy = "reference"
	StrategySignedURL Strategy = "signedUrl"
)

const (
	// DefaultAssetPrefix is the directory holding game assets in the bucket.
	DefaultAssetPrefix = "StarRailRes"
	// DefaultMaxAge applies when the signer does not report a lifetime.
	DefaultMaxAge = 7200 * time.Second

	referenceScheme = "cloud://"
)

var (
	absolutePattern  = regexp.MustCompile(`(?i)^https?://`)
	referencePattern = regexp.MustCompile(`(?i)^cloud://`)
)

// Result is a resolved image source and the strategy that produced it.
type Result struct {
	Src  string
	Used Strategy
}

// Config names the asset bucket.
type Config struct {
	AssetBase   string
	AssetPrefix string
}

type cacheEntry struct {
	signedURL string
	expireAt  time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(resolver *Resolver) {
		if now != nil {
			resolver.now = now
		}
	}
}

// WithLogger sets the logger for signing failures.
func WithLogger(logger *zap.Logger) Option {
	return func(resolver *Resolver) {
		if logger != nil {
			resolver.logger = logger
		}
	}
}

// Resolver resolves image sources. It is safe for concurrent use.
type Resolver struct {
	assetBase   string
	assetPrefix string
	signer      Signer
	now         func() time.Time
	logger      *zap.Logger

	mu      sync.Mutex
	cache   map[string]cacheEntry
	signing singleflight.Group
}

// NewResolver constructs a resolver. A nil signer makes signedUrl resolve to
// the reference.
func NewResolver(cfg Config, signer Signer, options ...Option) *Resolver {
	prefix := strings.Trim(strings.TrimSpace(cfg.AssetPrefix), "/")
	if prefix == "" {
		prefix = DefaultAssetPrefix
	}
	resolver := &Resolver{
		assetBase:   strings.Trim(strings.TrimSpace(cfg.AssetBase), "/"),
		assetPrefix: prefix,
		signer:      signer,
		now:         time.Now,
		logger:      zap.NewNop(),
		cache:       map[string]cacheEntry{},
	}
	for _, option := range options {
		if option != nil {
			option(resolver)
		}
	}
	return resolver
}

// Reference returns the durable reference of raw, or "" when none can be built.
func (resolver *Resolver) Reference(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if absolutePattern.MatchString(raw) || referencePattern.MatchString(raw) {
		return raw
	}
	if resolver.assetBase == "" {
		return ""
	}
	return referenceScheme + resolver.assetBase + "/" + resolver.assetPrefix + "/" + strings.TrimLeft(raw, "/")
}

// Resolve returns the source for raw. It never fails: when signing is not
// possible the reference is returned with Used set to StrategyReference.
func (resolver *Resolver) Resolve(ctx context.Context, raw string, strategy Strategy) Result {
	if strategy != StrategySignedURL {
		strategy = StrategyReference
	}
	reference := resolver.Reference(raw)
	if reference == "" {
		return Result{Src: "", Used: strategy}
	}
	if strategy == StrategyReference {
		return Result{Src: reference, Used: StrategyReference}
	}
	signed := resolver.signedURL(ctx, reference)
	if signed == "" {
		return Result{Src: reference, Used: StrategyReference}
	}
	return Result{Src: signed, Used: StrategySignedURL}
}

func (resolver *Resolver) signedURL(ctx context.Context, reference string) string {
	if !referencePattern.MatchString(reference) {
		return reference
	}
	if cached, ok := resolver.cached(reference); ok {
		return cached
	}
	if resolver.signer == nil {
		return ""
	}
	value, _, _ := resolver.signing.Do(reference, func() (any, error) {
		if cached, ok := resolver.cached(reference); ok {
			return cached, nil
		}
		return resolver.sign(ctx, reference), nil
	})
	signed, _ := value.(string)
	return signed
}

func (resolver *Resolver) cached(reference string) (string, bool) {
	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	entry, ok := resolver.cache[reference]
	if !ok || !entry.expireAt.After(resolver.now()) {
		return "", false
	}
	return entry.signedURL, true
}

func (resolver *Resolver) sign(ctx context.Context, reference string) string {
	signed, err := resolver.signer.Sign(ctx, []string{reference})
	if err != nil {
		resolver.logger.Warn("image signing failed", zap.String("reference", reference), zap.Error(err))
		return ""
	}
	if len(signed) == 0 || signed[0].URL == "" {
		resolver.logger.Warn("image signing returned no url", zap.String("reference", reference))
		return ""
	}
	maxAge := signed[0].MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	resolver.mu.Lock()
	resolver.cache[reference] = cacheEntry{signedURL: signed[0].URL, expireAt: resolver.now().Add(maxAge)}
	resolver.mu.Unlock()
	return signed[0].URL
}
