// Package mockbackend is an in-memory SR-Quick backend for local development
// and tests. It speaks both response envelopes and identifies callers the way
// the container platform does.
package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/srquick/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/srquick/pkg/srquick"
	"github.com/MarkoPoloResearchLab/srquick/pkg/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

const (
	contextKeyOpenID = "openid"
	bearerPrefix     = "Bearer "
	shutdownTimeout  = 5 * time.Second

	codeInvalidToken  = "INVALID_TOKEN"
	codeRateLimited   = "RATE_LIMITED"
	codeInvalidUID    = "INVALID_UID"
	codeUIDNotFound   = "UID_NOT_FOUND"
	codeInvalidBody   = "INVALID_BODY"
	codeNotFound      = "NOT_FOUND"
	codeAlreadyExists = "ALREADY_EXISTS"

	messageMissingOpenID     = "缺少用户身份"
	messageInvalidToken      = "身份令牌无效"
	messageRateLimited       = "请求过于频繁，请稍后再试"
	messageInvalidUID        = "UID格式不正确"
	messageUIDNotFound       = "UID不存在"
	messageInvalidBody       = "请求参数错误"
	messageUserNotFound      = "用户不存在"
	messageCharacterNotFound = "角色不存在"
	messageAccountNotFound   = "游戏账号不存在"
	messageAccountExists     = "该游戏账号已绑定"
	messageInternal          = "服务器内部错误"
)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(logger *zap.Logger) Option {
	return func(backend *Backend) {
		if logger != nil {
			backend.logger = logger
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(backend *Backend) {
		if now != nil {
			backend.now = now
		}
	}
}

// WithRegistry sets the registry served on /metrics.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(backend *Backend) {
		if registry != nil {
			backend.registry = registry
		}
	}
}

// Backend serves the mock API.
type Backend struct {
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	registry *prometheus.Registry
	metrics  *serverMetrics
	limiter  *rateLimiter
	data     *state
	router   *gin.Engine

	outageMu sync.RWMutex
	outage   *outage
}

type outage struct {
	code    string
	message string
}

// New validates cfg and builds the router.
func New(cfg Config, options ...Option) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend := &Backend{
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
		registry: prometheus.NewRegistry(),
	}
	for _, option := range options {
		if option != nil {
			option(backend)
		}
	}
	metrics, err := newServerMetrics(backend.registry)
	if err != nil {
		return nil, fmt.Errorf("metrics init: %w", err)
	}
	backend.metrics = metrics
	backend.limiter = newRateLimiter(cfg.RatePerSecond, cfg.RateBurst)
	backend.data = newState(backend.now)
	backend.router = backend.setupRouter()
	return backend, nil
}

// Handler returns the HTTP handler.
func (backend *Backend) Handler() http.Handler {
	return backend.router
}

// SetOutage makes every /api/v1/player route answer with a server error
// envelope carrying code and message. An empty code clears it.
func (backend *Backend) SetOutage(code string, message string) {
	backend.outageMu.Lock()
	defer backend.outageMu.Unlock()
	if strings.TrimSpace(code) == "" {
		backend.outage = nil
		return
	}
	backend.outage = &outage{code: code, message: message}
}

func (backend *Backend) currentOutage() *outage {
	backend.outageMu.RLock()
	defer backend.outageMu.RUnlock()
	return backend.outage
}

// Run serves HTTP on cfg.ListenAddr and, when cfg.GatewayAddr is set, the
// container gateway over gRPC. It returns when ctx ends or a server fails.
func (backend *Backend) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    backend.cfg.ListenAddr,
		Handler: backend.router,
	}
	errCh := make(chan error, 2)
	go func() {
		backend.logger.Info("mock backend listening", zap.String("addr", backend.cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	var grpcServer *grpc.Server
	if backend.cfg.GatewayAddr != "" {
		listener, err := net.Listen("tcp", backend.cfg.GatewayAddr)
		if err != nil {
			_ = server.Close()
			return fmt.Errorf("listen gateway: %w", err)
		}
		grpcServer = grpc.NewServer()
		transport.RegisterGatewayServer(grpcServer, grpcserver.NewGatewayServer(
			backend.router,
			grpcserver.WithService(backend.cfg.CloudService),
			grpcserver.WithLogger(backend.logger),
		))
		go func() {
			backend.logger.Info("container gateway listening", zap.String("addr", backend.cfg.GatewayAddr))
			errCh <- grpcServer.Serve(listener)
		}()
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			backend.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
	}

	select {
	case <-ctx.Done():
		backend.logger.Info("shutdown requested")
		shutdown()
		return nil
	case err := <-errCh:
		shutdown()
		if errors.Is(err, http.ErrServerClosed) || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func (backend *Backend) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(backend.observe())
	router.Use(cors.New(cors.Config{
		AllowOrigins: backend.cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			transport.HeaderContentType, transport.HeaderAuthorization, transport.HeaderRequestID,
			transport.HeaderFrontendEnv, transport.HeaderFrontendMode, transport.HeaderFrontendAPIURL,
			transport.HeaderFrontendCloud, transport.HeaderService, transport.HeaderOpenID,
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(backend.registry, promhttp.HandlerOpts{})))
	router.GET("/health", backend.limit(taggedFail), backend.handleHealth)
	router.GET("/debug/ip", backend.limit(taggedFail), backend.handleDebugIP)

	v1 := router.Group("/api/v1")
	v1.Use(backend.identify(taggedFail), backend.limit(taggedFail))
	v1.GET("/user/type", backend.handleUserType)
	v1.POST("/user/bind", backend.handleBind)

	player := v1.Group("/player/:uid")
	player.Use(backend.checkOutage())
	player.GET("", backend.handleRefreshPlayer)
	player.GET("/summary", backend.handlePlayerSummary)
	player.GET("/characters/:characterId", backend.handleCharacterDetail)

	auth := router.Group("/api/auth")
	auth.Use(backend.identify(legacyFail), backend.limit(legacyFail))
	auth.GET("/login", backend.handleLogin)
	auth.GET("/profile", backend.handleProfile)
	auth.PUT("/profile", backend.handleUpdateProfile)
	auth.POST("/game-account", backend.handleAddGameAccount)
	auth.PUT("/game-account/:uid/primary", backend.handleSetPrimary)
	auth.GET("/settings", backend.handleSettings)
	auth.PUT("/settings", backend.handleUpdateSettings)

	user := router.Group("/api/user")
	user.Use(backend.identify(legacyFail), backend.limit(legacyFail))
	user.GET("/characters", backend.handleCharacters)
	user.POST("/sync", backend.handleSync)
	user.GET("/sync-logs", backend.handleSyncLogs)
	user.PUT("/characters/:uid/:characterId/favorite", backend.handleFavorite)
	user.DELETE("/characters/:uid/:characterId", backend.handleDeleteCharacter)
	user.GET("/stats", backend.handleStats)

	return router
}

// failResponder writes a client-error envelope in one of the two protocols.
type failResponder func(ctx *gin.Context, httpStatus int, message string, code string)

// identify resolves the caller from X-WX-OPENID or a dev bearer token.
func (backend *Backend) identify(respond failResponder) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		openID := strings.TrimSpace(ctx.GetHeader(transport.HeaderOpenID))
		if openID == "" {
			authorization := ctx.GetHeader(transport.HeaderAuthorization)
			if strings.HasPrefix(authorization, bearerPrefix) && backend.cfg.DevTokenSecret != "" {
				subject, err := transport.ParseDevToken(strings.TrimPrefix(authorization, bearerPrefix), backend.cfg.DevTokenSecret)
				if err != nil {
					backend.logger.Warn("dev token rejected", zap.Error(err))
					respond(ctx, http.StatusUnauthorized, messageInvalidToken, codeInvalidToken)
					ctx.Abort()
					return
				}
				openID = subject
			}
		}
		if openID == "" {
			respond(ctx, http.StatusUnauthorized, messageMissingOpenID, srquick.CodeMissingOpenID)
			ctx.Abort()
			return
		}
		ctx.Set(contextKeyOpenID, openID)
		ctx.Next()
	}
}

// limit applies the per-caller token bucket, keyed by openid or client IP.
func (backend *Backend) limit(respond failResponder) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := ctx.GetString(contextKeyOpenID)
		if key == "" {
			key = ctx.ClientIP()
		}
		if !backend.limiter.allow(key) {
			respond(ctx, http.StatusTooManyRequests, messageRateLimited, codeRateLimited)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (backend *Backend) checkOutage() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if current := backend.currentOutage(); current != nil {
			taggedError(ctx, http.StatusServiceUnavailable, current.message, current.code)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (backend *Backend) observe() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		backend.metrics.observe(route, ctx.Writer.Status(), time.Since(started))
	}
}

func openIDOf(ctx *gin.Context) string {
	return ctx.GetString(contextKeyOpenID)
}

type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newRateLimiter(requestsPerSecond int, burst int) *rateLimiter {
	return &rateLimiter{
		limiters: map[string]*rate.Limiter{},
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (limiter *rateLimiter) allow(key string) bool {
	limiter.mu.Lock()
	bucket, ok := limiter.limiters[key]
	if !ok {
		bucket = rate.NewLimiter(limiter.rate, limiter.burst)
		limiter.limiters[key] = bucket
	}
	limiter.mu.Unlock()
	return bucket.Allow()
}
