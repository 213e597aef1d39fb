package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/aldergrove/carecircle/internal/alert"
	"github.com/aldergrove/carecircle/internal/backup"
	"github.com/aldergrove/carecircle/internal/code"
	"github.com/aldergrove/carecircle/internal/email"
	"github.com/aldergrove/carecircle/internal/family"
	"github.com/aldergrove/carecircle/internal/handler"
	"github.com/aldergrove/carecircle/internal/middleware"
	"github.com/aldergrove/carecircle/internal/push"
	"github.com/aldergrove/carecircle/internal/store"
	ws "github.com/aldergrove/carecircle/internal/websocket"
)

// Config carries the secrets and toggles the server needs beyond the
// database handle.
type Config struct {
	DetectorToken string
	ServiceToken  string

	VAPIDPublicKey  string
	VAPIDPrivateKey string

	PostmarkToken string
	EmailFrom     string

	Backup backup.Config
}

// Server owns the HTTP routing and the long-lived components behind it.
type Server struct {
	chain  http.Handler
	logger *slog.Logger

	Sessions *store.SessionStore
	Limiter  *middleware.RateLimiter
	Hub      *ws.Hub
	Backups  *backup.Manager
}

// New wires stores, services, and handlers onto a ServeMux.
func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	seniors := store.NewSeniorStore(db)
	memberships := store.NewMembershipStore(db)
	codes := store.NewInviteCodeStore(db)
	alerts := store.NewAlertStore(db)
	pushSubs := store.NewPushStore(db)
	backups := store.NewBackupStore(db)

	hub := ws.NewHub(logger.With("component", "websocket"))

	var pushSvc *push.Service
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.EmailFrom)
	}
	mailer := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom)

	registry := family.NewRegistry(memberships)
	gen := code.NewGenerator(codes)
	familySvc := family.NewService(codes, registry, gen, logger.With("component", "family"))
	lifecycle := alert.NewManager(alerts, logger.With("component", "alerts"))
	notifier := alert.NewNotifier(memberships, pushSubs, pushSvc, logger.With("component", "notifier"))

	backupMgr := backup.NewManager(cfg.Backup, db, backups, func(st backup.Status) {
		hub.Broadcast(ws.NewMessage("backup", string(st.State), 0, nil))
	}, logger.With("component", "backup"))

	accountH := handler.NewAccountHandler(users, sessions, logger.With("component", "accounts"))
	seniorH := handler.NewSeniorHandler(seniors, memberships, registry, logger.With("component", "seniors"))
	codeH := handler.NewInviteCodeHandler(familySvc, codes, memberships, seniors, mailer, hub, logger.With("component", "codes"))
	memberH := handler.NewMembershipHandler(registry, memberships, hub, logger.With("component", "memberships"))
	alertH := handler.NewAlertHandler(alerts, seniors, memberships, lifecycle, notifier, hub, logger.With("component", "alerts"))
	pushH := handler.NewPushHandler(pushSubs, pushSvc, logger.With("component", "push"))
	backupH := handler.NewBackupHandler(backupMgr, backups, logger.With("component", "backup"))

	limiter := middleware.NewRateLimiter()
	requireAuth := middleware.RequireAuth(sessions)

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/push/vapid-key", pushH.VAPIDKey)

	// Identity-provider provisioning
	requireService := middleware.RequireServiceToken(cfg.ServiceToken)
	mux.Handle("POST /internal/users", requireService(http.HandlerFunc(accountH.ProvisionUser)))
	mux.Handle("POST /internal/sessions", requireService(http.HandlerFunc(accountH.ProvisionSession)))
	mux.Handle("GET /internal/backups", requireService(http.HandlerFunc(backupH.Status)))
	mux.Handle("POST /internal/backups/run", requireService(http.HandlerFunc(backupH.Run)))

	// Detection process
	requireDetector := middleware.RequireDetectorToken(cfg.DetectorToken)
	mux.Handle("POST /api/alerts", requireDetector(http.HandlerFunc(alertH.Ingest)))

	// Authenticated app routes
	authed := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }

	mux.Handle("GET /api/me", authed(accountH.Me))
	mux.Handle("POST /api/logout", authed(accountH.Logout))

	mux.Handle("GET /api/seniors", authed(seniorH.List))
	mux.Handle("POST /api/seniors", authed(seniorH.Create))
	mux.Handle("GET /api/seniors/{id}", authed(seniorH.Get))
	mux.Handle("PUT /api/seniors/{id}", authed(seniorH.Update))

	mux.Handle("GET /api/seniors/{id}/codes", authed(codeH.List))
	mux.Handle("POST /api/seniors/{id}/codes", authed(codeH.Generate))
	mux.Handle("DELETE /api/codes/{code}", authed(codeH.Revoke))

	// Redemption is rate-limited by client IP so short codes cannot be
	// guessed by brute force.
	redeemLimit := middleware.RateLimit(limiter, middleware.RealIP, 10, time.Minute)
	mux.Handle("POST /api/codes/redeem", requireAuth(redeemLimit(http.HandlerFunc(codeH.Redeem))))

	mux.Handle("GET /api/seniors/{id}/members", authed(memberH.List))
	mux.Handle("POST /api/seniors/{id}/members", authed(memberH.Create))
	mux.Handle("DELETE /api/members/{id}", authed(memberH.Remove))
	mux.Handle("PUT /api/members/{id}/access-level", authed(memberH.ChangeAccessLevel))
	mux.Handle("GET /api/members/{id}/access-history", authed(memberH.AccessHistory))
	mux.Handle("POST /api/members/{id}/transfer-primary", authed(memberH.TransferPrimary))
	mux.Handle("PUT /api/members/{id}/notifications", authed(memberH.UpdateNotifications))

	mux.Handle("GET /api/seniors/{id}/alerts", authed(alertH.List))
	mux.Handle("GET /api/alerts/{id}", authed(alertH.Get))
	mux.Handle("POST /api/alerts/{id}/acknowledge", authed(alertH.Acknowledge))
	mux.Handle("POST /api/alerts/{id}/start-progress", authed(alertH.StartProgress))
	mux.Handle("POST /api/alerts/{id}/resolve", authed(alertH.Resolve))
	mux.Handle("POST /api/alerts/{id}/false-positive", authed(alertH.MarkFalsePositive))

	mux.Handle("GET /api/push/subscriptions", authed(pushH.List))
	mux.Handle("POST /api/push/subscriptions", authed(pushH.Subscribe))
	mux.Handle("DELETE /api/push/subscriptions/{id}", authed(pushH.Unsubscribe))

	circleIDs := func(userID int64) ([]int64, error) {
		srs, err := seniors.ListForUser(userID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(srs))
		for _, sr := range srs {
			ids = append(ids, sr.ID)
		}
		return ids, nil
	}
	mux.Handle("GET /ws", requireAuth(ws.HandleWebSocket(hub, circleIDs, logger.With("component", "websocket"))))

	chain := middleware.RequestLogger(logger)(mux)

	return &Server{
		chain:    chain,
		logger:   logger,
		Sessions: sessions,
		Limiter:  limiter,
		Hub:      hub,
		Backups:  backupMgr,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.chain.ServeHTTP(w, r)
}
