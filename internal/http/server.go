package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
)

// Ledger is the part of the entity store the API serves.
type Ledger interface {
	ListJobs() []core.Job
	UpsertJob(ctx context.Context, job core.Job) (core.Job, error)
	DeleteJob(ctx context.Context, id string) error

	ListPayments() []core.Payment
	UpsertPayment(ctx context.Context, payment core.Payment) (core.Payment, error)
	DeletePayment(ctx context.Context, id string) error

	ListProducts() []core.Product
	UpsertProduct(ctx context.Context, product core.Product, oldName string) (core.Product, error)
	DeleteProduct(ctx context.Context, name string) error

	ListUsers() []core.User
	UpsertUser(ctx context.Context, user core.User) (core.User, error)
	DeleteUser(ctx context.Context, id string) error

	Settings() core.Settings
	UpdateSettings(ctx context.Context, settings core.Settings) error

	MonthlySummary(ctx context.Context, month core.Month) (core.MonthlySummary, error)
}

// Sessions is the login state the API authenticates against.
type Sessions interface {
	// Login returns the token minted for this login.
	Login(ctx context.Context, username, password string) (core.User, string, error)
	Logout(ctx context.Context)
	Authenticate(token string) (core.User, bool)
}

// Options tunes the server. Zero values select defaults.
type Options struct {
	RateLimitPerMinute int
	SecureCookies      bool
	Now                func() time.Time
}

type Server struct {
	http.Server
	ledger   Ledger
	sessions Sessions
	validate *requestValidator
	limiter  *ratelimit.Limiter
	logger   *log.Logger
	secure   bool
	now      func() time.Time
}

func NewServer(addr string, ledger Ledger, sessions Sessions, logger *log.Logger, opts Options) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16, // 64KB
		},
		ledger:   ledger,
		sessions: sessions,
		validate: newRequestValidator(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		logger:   logger.WithComponent(log.ComponentHTTP),
		secure:   opts.SecureCookies,
		now:      opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.requireSession(s.handleLogout))
	mux.HandleFunc("GET /api/me", s.requireSession(s.handleMe))

	mux.HandleFunc("GET /api/jobs", s.requireSession(s.handleListJobs))
	mux.HandleFunc("POST /api/jobs", s.requireSession(s.handleCreateJob))
	mux.HandleFunc("PUT /api/jobs/{id}", s.requireSession(s.handleUpdateJob))
	mux.HandleFunc("DELETE /api/jobs/{id}", s.requireSession(s.handleDeleteJob))

	mux.HandleFunc("GET /api/payments", s.requireSession(s.handleListPayments))
	mux.HandleFunc("POST /api/payments", s.requireSession(s.handleCreatePayment))
	mux.HandleFunc("PUT /api/payments/{id}", s.requireSession(s.handleUpdatePayment))
	mux.HandleFunc("DELETE /api/payments/{id}", s.requireSession(s.handleDeletePayment))

	mux.HandleFunc("GET /api/products", s.requireSession(s.handleListProducts))
	mux.HandleFunc("POST /api/products", s.requireSession(s.handleCreateProduct))
	mux.HandleFunc("PUT /api/products/{name}", s.requireSession(s.handleUpdateProduct))
	mux.HandleFunc("DELETE /api/products/{name}", s.requireSession(s.handleDeleteProduct))

	mux.HandleFunc("GET /api/users", s.requireAdmin(s.handleListUsers))
	mux.HandleFunc("POST /api/users", s.requireAdmin(s.handleCreateUser))
	mux.HandleFunc("DELETE /api/users/{id}", s.requireAdmin(s.handleDeleteUser))

	mux.HandleFunc("GET /api/settings", s.requireSession(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.requireAdmin(s.handleUpdateSettings))

	mux.HandleFunc("GET /api/summary", s.requireSession(s.handleSummary))

	var h http.Handler = mux
	h = s.limiter.Middleware(security.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.Middleware(s.logger, security.ClientIP)(h)
	s.Handler = h

	return s
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Stop()
	s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}
