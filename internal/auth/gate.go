package auth

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pullquest/console/internal/metrics"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/pkg/tokenstore"
)

// Decision is the gate's admission verdict. A denied decision always
// redirects to the unauthenticated entry point and carries no reason.
type Decision struct {
	Admitted bool
	Redirect string
	Role     models.Role
}

// Route binds a path prefix to the roles allowed to enter it.
type Route struct {
	Prefix string
	Roles  []models.Role
}

// DefaultRoutes mirrors the dashboard's protected areas.
var DefaultRoutes = []Route{
	{Prefix: "/contributor/", Roles: []models.Role{models.RoleContributor}},
	{Prefix: "/maintainer/", Roles: []models.Role{models.RoleMaintainer}},
	{Prefix: "/company/", Roles: []models.Role{models.RoleCompany}},
}

// Gate reads the bearer token from durable storage on every decision, so it
// works before the session store has hydrated.
type Gate struct {
	storage  tokenstore.Store
	decoder  *Decoder
	redirect string
	routes   []Route
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewGate creates a gate that redirects denied callers to redirect.
func NewGate(storage tokenstore.Store, decoder *Decoder, redirect string, m *metrics.Metrics, logger zerolog.Logger) *Gate {
	if redirect == "" {
		redirect = "/"
	}
	return &Gate{
		storage:  storage,
		decoder:  decoder,
		redirect: redirect,
		routes:   DefaultRoutes,
		metrics:  m,
		logger:   logger.With().Str("component", "gate").Logger(),
	}
}

// Admit decides whether the stored token's role is one of required.
func (g *Gate) Admit(ctx context.Context, required ...models.Role) Decision {
	if len(required) == 0 {
		return g.deny()
	}

	raw := tokenstore.Token(ctx, g.storage)
	if raw == "" {
		return g.deny()
	}

	switch res := g.decoder.Decode(raw).(type) {
	case Invalid:
		g.logger.Warn().Err(res.Err).Msg("token decoding failed")
		return g.deny()
	case Decoded:
		role := models.Role(res.Claims.Role)
		if role == "" || !models.NewRoleSet(required...).Has(role) {
			return g.deny()
		}
		g.metrics.RecordGateDecision("admitted")
		return Decision{Admitted: true, Role: role}
	default:
		return g.deny()
	}
}

// AdmitPath applies the route table. Paths outside every protected prefix
// are public.
func (g *Gate) AdmitPath(ctx context.Context, path string) Decision {
	var match *Route
	for i := range g.routes {
		r := &g.routes[i]
		if strings.HasPrefix(path, r.Prefix) && (match == nil || len(r.Prefix) > len(match.Prefix)) {
			match = r
		}
	}
	if match == nil {
		return Decision{Admitted: true}
	}
	return g.Admit(ctx, match.Roles...)
}

func (g *Gate) deny() Decision {
	g.metrics.RecordGateDecision("denied")
	return Decision{Redirect: g.redirect}
}
