package caseAuth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/caseAuth/jwt"
	"github.com/MrEthical07/caseAuth/password"
	"github.com/MrEthical07/caseAuth/permission"
	"github.com/MrEthical07/caseAuth/redirect"
	"github.com/MrEthical07/caseAuth/session"
	"github.com/MrEthical07/caseAuth/settings"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Each With method returns the builder for
// chaining; Build may be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	sessions  SessionStore
	directory DirectoryVerifier
	passwords PasswordVerifier
	users     UserStore
	cases     CaseStore

	permissions      []string
	groups           map[string][]string
	permissionEngine PermissionEngine

	settingsSource settings.Source
	auditSink      AuditSink
	external       *jwt.Verifier
	logger         *slog.Logger

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores sessions in Redis under Config.Session.RedisPrefix.
// Ignored when [Builder.WithSessionStore] is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

// WithDirectory sets the verifier used when Config.Directory.Enabled is true.
func (b *Builder) WithDirectory(d DirectoryVerifier) *Builder {
	b.directory = d
	return b
}

// WithPasswordVerifier overrides the default argon2id/bcrypt verifier.
func (b *Builder) WithPasswordVerifier(v PasswordVerifier) *Builder {
	b.passwords = v
	return b
}

func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithCaseStore(s CaseStore) *Builder {
	b.cases = s
	return b
}

// WithPermissions registers permission names in bit order.
func (b *Builder) WithPermissions(perms []string) *Builder {
	b.permissions = perms
	return b
}

// WithGroups maps group names to the permission names they grant. A user's
// effective set is the union over the user's groups.
func (b *Builder) WithGroups(groups map[string][]string) *Builder {
	b.groups = groups
	return b
}

// WithPermissionEngine replaces group-based permissions entirely.
func (b *Builder) WithPermissionEngine(pe PermissionEngine) *Builder {
	b.permissionEngine = pe
	return b
}

func (b *Builder) WithSettingsSource(src settings.Source) *Builder {
	b.settingsSource = src
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithExternalVerifier enables [Engine.AuthenticateExternal].
func (b *Builder) WithExternalVerifier(v *jwt.Verifier) *Builder {
	b.external = v
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and returns a ready engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.sessions == nil && b.redis == nil {
		return nil, errors.New("redis client or session store required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.cases == nil {
		return nil, errors.New("case store required")
	}
	if b.settingsSource == nil {
		return nil, errors.New("settings source required")
	}
	if cfg.Directory.Enabled && b.directory == nil {
		return nil, errors.New("Directory Enabled requires a directory verifier")
	}

	engine := &Engine{
		config:    cfg,
		directory: b.directory,
		passwords: b.passwords,
		users:     b.users,
		cases:     b.cases,
		sessions:  b.sessions,
		external:  b.external,
		redirects: redirect.Filter{IndexPath: cfg.Redirect.IndexPath},
		logger:    b.logger,
	}

	if engine.logger == nil {
		engine.logger = slog.Default()
	}
	if engine.passwords == nil {
		engine.passwords = password.Verifier{}
	}
	if engine.sessions == nil {
		engine.sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	}

	// -------- PERMISSIONS --------
	switch {
	case b.permissionEngine != nil:
		engine.permissions = b.permissionEngine
	case len(b.permissions) > 0:
		registry := permission.NewRegistry(cfg.Permission.RootPermission)
		for _, p := range b.permissions {
			if _, err := registry.Register(p); err != nil {
				return nil, err
			}
		}
		registry.Freeze()

		groups := permission.NewGroupEngine(registry)
		for name, perms := range b.groups {
			if err := groups.RegisterGroup(name, perms); err != nil {
				return nil, err
			}
		}
		groups.Freeze()

		engine.registry = registry
		engine.permissions = PermissionEngineFunc(func(ctx context.Context, user UserView) (permission.Set, error) {
			return groups.Effective(ctx, user.Groups)
		})
	default:
		return nil, errors.New("permissions must be provided")
	}

	// -------- SETTINGS --------
	provider, err := settings.NewProvider(b.settingsSource, cfg.Settings.CacheTTL)
	if err != nil {
		return nil, err
	}
	engine.settings = provider

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
