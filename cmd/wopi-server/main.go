package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakcrest/wopihost/internal/attrstore"
	"github.com/oakcrest/wopihost/internal/auth"
	"github.com/oakcrest/wopihost/internal/config"
	"github.com/oakcrest/wopihost/internal/handlers"
	"github.com/oakcrest/wopihost/internal/middleware"
	"github.com/oakcrest/wopihost/internal/platform"
	"github.com/oakcrest/wopihost/internal/storage"
	"github.com/oakcrest/wopihost/internal/tdf"
	"github.com/oakcrest/wopihost/internal/wopi"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Warn about insecure defaults.
	if cfg.AccessTokenSecret == "change-me-in-production" {
		if !cfg.OIDCEnabled {
			logger.Error("WOPI_ACCESS_TOKEN_SECRET is at its default value and the /token endpoint is exposed — tokens can be forged by anyone. Set a strong random secret.")
			os.Exit(1)
		}
		logger.Warn("WOPI_ACCESS_TOKEN_SECRET is at its default value — set a strong random secret before deploying to production")
	}
	if cfg.TDFInsecureSkipVerify {
		logger.Warn("TDF_INSECURE_SKIP_VERIFY is enabled — TLS certificate verification is disabled for the OpenTDF SDK connection")
	}
	if !cfg.ProofKeyEnforce {
		logger.Warn("PROOF_KEY_ENFORCE is disabled — X-WOPI-Proof signatures are not verified")
	}

	ctx := context.Background()

	var store storage.Adapter
	switch cfg.StorageBackend {
	case "s3":
		s3Cfg := storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		}
		if cfg.S3BearerAuthEnabled {
			s3Cfg.BearerAuth = &storage.BearerAuthConfig{
				TokenURL:     cfg.S3BearerTokenURL,
				ClientID:     cfg.S3BearerClientID,
				ClientSecret: cfg.S3BearerClientSecret,
				Logger:       logger,
			}
			logger.Info("S3 bearer auth enabled", "token_url", cfg.S3BearerTokenURL, "client_id", cfg.S3BearerClientID)
		}
		s3Store, err := storage.NewS3Adapter(ctx, s3Cfg)
		if err != nil {
			logger.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}

		// Client-side TDF decryption sits between the WOPI handlers and the
		// object store: s4proxy re-encrypts on write, and content that it
		// refuses to decrypt on read (because the caller lacks a
		// fulfillable obligation) falls through to this decryptor.
		if cfg.PlatformEndpoint != "" && len(cfg.TDFFulfillableObligationFQNs) > 0 {
			decryptor, err := tdf.NewDecryptor(tdf.Config{
				PlatformEndpoint:       cfg.PlatformEndpoint,
				ClientID:               cfg.S3BearerClientID,
				ClientSecret:           cfg.S3BearerClientSecret,
				FulfillableObligations: cfg.TDFFulfillableObligationFQNs,
				InsecureSkipVerify:     cfg.TDFInsecureSkipVerify,
				Logger:                 logger,
			})
			if err != nil {
				logger.Error("failed to create TDF decryptor", "error", err)
				os.Exit(1)
			}
			store = storage.NewDecryptingAdapter(s3Store, decryptor, s3Store, tdf.IsTDFContentType)
			logger.Info("TDF client-side decryption enabled",
				"platform", cfg.PlatformEndpoint,
				"fulfillable_obligations", cfg.TDFFulfillableObligationFQNs,
			)
		} else {
			store = s3Store
		}
	default:
		localStore, err := storage.NewLocalAdapter(cfg.StorageRoot)
		if err != nil {
			logger.Error("failed to create local storage", "error", err, "root", cfg.StorageRoot)
			os.Exit(1)
		}
		store = localStore
		logger.Info("local storage backend selected", "root", cfg.StorageRoot)
	}

	lockMgr := wopi.NewLockManager(cfg.LockExpiration)
	tokenValidator := auth.NewTokenValidator(cfg.AccessTokenSecret, 0)
	gate := auth.NewGate(tokenValidator, nil)
	attrStore := attrstore.New()
	users := wopi.NewUserInfoStore()
	revoked := wopi.NewRevokedLinkSet()
	encoder := wopi.NewEncoder(wopi.ServerInfo{
		Version:     cfg.ServerVersion,
		MachineName: machineName(cfg.MachineName),
	})

	var proofKey auth.ProofKeyValidator = auth.AllowAllValidator{}
	if cfg.ProofKeyEnforce {
		logger.Warn("PROOF_KEY_ENFORCE requested but no signing keys are configured — falling back to permissive validation")
	}

	var platformClient *platform.Client
	if cfg.PlatformEndpoint != "" && cfg.S3BearerAuthEnabled {
		platformClient = platform.NewClient(platform.ClientConfig{
			Endpoint:     cfg.PlatformEndpoint,
			TokenURL:     cfg.S3BearerTokenURL,
			ClientID:     cfg.S3BearerClientID,
			ClientSecret: cfg.S3BearerClientSecret,
		})
		logger.Info("platform client enabled", "endpoint", cfg.PlatformEndpoint)
	}

	// Create per-user token store when both OIDC and S3 bearer auth are
	// enabled. The OIDC middleware puts the stored token into the request
	// context under OIDCAccessTokenKey; nothing copies it to the storage
	// bearer transport, so S3 requests use the service-account token.
	var tokenStore *middleware.TokenStore
	if cfg.OIDCEnabled && cfg.S3BearerAuthEnabled {
		tokenStore = middleware.NewTokenStore(cfg.S3BearerTokenURL, cfg.OIDCClientID, cfg.OIDCClientSecret)
		logger.Info("per-user token flow enabled")
	}

	wopiSrcBase := cfg.WOPISrcBaseURL
	if wopiSrcBase == "" {
		wopiSrcBase = cfg.BaseURL
	}

	h := &handlers.Handler{
		Storage:              store,
		Locks:                lockMgr,
		Tokens:               tokenValidator,
		Encoder:              encoder,
		ProofKey:             proofKey,
		Users:                users,
		Revoked:              revoked,
		Attrs:                attrStore,
		Platform:             platformClient,
		Logger:               logger,
		BaseURL:              wopiSrcBase,
		WOPIClientURL:        cfg.WOPIClientURL,
		WOPIClientEditorPath: cfg.WOPIClientEditorPath,
	}

	mux := http.NewServeMux()

	// Optionally set up OIDC middleware.
	var oidcMw *middleware.OIDCMiddleware
	if cfg.OIDCEnabled {
		sessions, err := middleware.NewSessionManager(cfg.SessionSecret, 8*time.Hour, true)
		if err != nil {
			logger.Error("failed to create session manager", "error", err)
			os.Exit(1)
		}

		oidcMw, err = middleware.NewOIDCMiddleware(ctx, middleware.OIDCConfig{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		}, sessions, logger, tokenStore)
		if err != nil {
			logger.Error("failed to create OIDC middleware", "error", err)
			os.Exit(1)
		}

		mux.HandleFunc("GET /auth/callback", oidcMw.CallbackHandler)
		mux.HandleFunc("GET /auth/logout", oidcMw.LogoutHandler)

		logger.Info("OIDC authentication enabled", "issuer", cfg.OIDCIssuerURL, "client_id", cfg.OIDCClientID)
	}

	// Browser UI routes — protected by OIDC when enabled.
	if oidcMw != nil {
		mux.Handle("GET /{$}", oidcMw.Protect(http.HandlerFunc(h.ServeUI)))
		mux.Handle("GET /api/files", oidcMw.Protect(http.HandlerFunc(h.ListFiles)))
		mux.Handle("GET /api/files/browse", oidcMw.Protect(http.HandlerFunc(h.ListFilesInFolder)))
		mux.Handle("POST /api/files/upload", oidcMw.Protect(http.HandlerFunc(h.UploadFile)))
		mux.Handle("DELETE /api/files", oidcMw.Protect(http.HandlerFunc(h.DeleteFileAPI)))
		mux.Handle("GET /api/attributes", oidcMw.Protect(http.HandlerFunc(h.GetAttributes)))
		mux.Handle("GET /api/editor", oidcMw.Protect(http.HandlerFunc(h.GetEditorURL)))
		mux.Handle("GET /api/files/info", oidcMw.Protect(http.HandlerFunc(h.GetFileInfoAPI)))
		mux.Handle("GET /api/files/download", oidcMw.Protect(http.HandlerFunc(h.DownloadFile)))
	} else {
		mux.HandleFunc("GET /{$}", h.ServeUI)
		mux.HandleFunc("GET /api/files", h.ListFiles)
		mux.HandleFunc("GET /api/files/browse", h.ListFilesInFolder)
		mux.HandleFunc("POST /api/files/upload", h.UploadFile)
		mux.HandleFunc("DELETE /api/files", h.DeleteFileAPI)
		mux.HandleFunc("GET /api/attributes", h.GetAttributes)
		mux.HandleFunc("GET /api/editor", h.GetEditorURL)
		mux.HandleFunc("GET /api/files/info", h.GetFileInfoAPI)
		mux.HandleFunc("GET /api/files/download", h.DownloadFile)
	}

	// WOPI discovery endpoint — no auth required, used by integrators.
	mux.HandleFunc("GET /hosting/discovery", h.Discovery)

	// Health check — no auth required.
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Token generation endpoint — disabled when OIDC is enabled.
	// Rate-limited to 10 requests per minute per IP to prevent abuse.
	if !cfg.OIDCEnabled {
		tokenRL := middleware.NewRateLimiter(10, 1*time.Minute)
		tokenHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.URL.Query().Get("user_id")
			fileID := r.URL.Query().Get("file_id")
			if userID == "" || fileID == "" {
				http.Error(w, "user_id and file_id required", http.StatusBadRequest)
				return
			}
			token := tokenValidator.GenerateToken(userID, fileID, auth.PermissionWrite)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"access_token":"%s","access_token_ttl":%d}`, token, int(auth.DefaultTTL.Seconds()))
		})
		mux.Handle("POST /token", middleware.RateLimit(tokenRL)(tokenHandler))
	}

	// WOPI endpoints, guarded by the access gate and routed through the
	// single Dispatch entry point.
	authMiddleware := middleware.WOPIAuth(gate, encoder)
	logMiddleware := middleware.RequestLogger(logger)
	wopiChain := func(f http.HandlerFunc) http.Handler {
		return logMiddleware(authMiddleware(f))
	}

	mux.Handle("GET /wopi/files/{file_id}", wopiChain(h.Dispatch))
	mux.Handle("POST /wopi/files/{file_id}", wopiChain(h.Dispatch))
	mux.Handle("GET /wopi/files/{file_id}/contents", wopiChain(h.Dispatch))
	mux.Handle("POST /wopi/files/{file_id}/contents", wopiChain(h.Dispatch))
	mux.Handle("GET /wopi/files/{file_id}/ancestry", wopiChain(h.Dispatch))
	mux.Handle("GET /wopi/folders/{file_id}", wopiChain(h.Dispatch))
	mux.Handle("GET /wopi/folders/{file_id}/children", wopiChain(h.Dispatch))

	addr := fmt.Sprintf(":%d", cfg.Port)
	var httpHandler http.Handler = mux
	httpHandler = middleware.CSRFProtect(httpHandler)
	httpHandler = middleware.SecureHeaders(httpHandler)
	server := &http.Server{
		Addr:         addr,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting WOPI server", "addr", addr, "base_url", cfg.BaseURL, "wopi_client", cfg.WOPIClientURL, "oidc_enabled", cfg.OIDCEnabled)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func machineName(configured string) string {
	if configured != "" {
		return configured
	}
	name, err := os.Hostname()
	if err != nil {
		return "wopihost"
	}
	return name
}
