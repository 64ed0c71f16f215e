package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	"github.com/khanghh/krealm/internal/audit"
	"github.com/khanghh/krealm/internal/auth"
	"github.com/khanghh/krealm/internal/clients"
	"github.com/khanghh/krealm/internal/common"
	"github.com/khanghh/krealm/internal/config"
	"github.com/khanghh/krealm/internal/credentials"
	"github.com/khanghh/krealm/internal/grants"
	"github.com/khanghh/krealm/internal/handlers/api"
	"github.com/khanghh/krealm/internal/metrics"
	"github.com/khanghh/krealm/internal/middlewares"
	"github.com/khanghh/krealm/internal/policy"
	"github.com/khanghh/krealm/internal/realms"
	"github.com/khanghh/krealm/internal/roles"
	"github.com/khanghh/krealm/internal/sessions"
	"github.com/khanghh/krealm/internal/store"
	"github.com/khanghh/krealm/internal/tokens"
	"github.com/khanghh/krealm/internal/twofactor"
	"github.com/khanghh/krealm/internal/users"
	"github.com/khanghh/krealm/internal/webhooks"
	"github.com/khanghh/krealm/model"
	"github.com/khanghh/krealm/params"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

const maintenanceInterval = time.Hour

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "krealm - multi-realm identity and access management server"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func openDialector(driver, dsn string) gorm.Dialector {
	if driver == config.DriverSQLite {
		return sqlite.Open(dsn)
	}
	return mysql.Open(dsn)
}

func mustInitDatabase(dbConfig config.DatabaseConfig) *gorm.DB {
	db, err := gorm.Open(openDialector(dbConfig.Driver, dbConfig.Dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if len(dbConfig.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.Replicas))
		for _, dsn := range dbConfig.Replicas {
			replicas = append(replicas, openDialector(dbConfig.Driver, dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})
		if dbConfig.MaxIdleConns > 0 {
			resolver.SetMaxIdleConns(dbConfig.MaxIdleConns)
		}
		if dbConfig.MaxOpenConns > 0 {
			resolver.SetMaxOpenConns(dbConfig.MaxOpenConns)
		}
		if err := db.Use(resolver); err != nil {
			slog.Error("Failed to register read replicas", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(dbConfig.ConnMaxIdleTime) * time.Second)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
	}

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func rateLimitStorage(cfg config.RateLimitConfig, redisStorage *redis.Storage) fiber.Storage {
	if cfg.Storage == config.RateLimitStorageMemory {
		return memory.New()
	}
	return redisStorage
}

// runMaintenance drops expired refresh tokens and audit events past retention.
func runMaintenance(ctx context.Context, tokenService *tokens.TokenService, auditRepo audit.AuditEventRepository) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := tokenService.PurgeExpiredRefreshTokens(ctx); err != nil {
				slog.Error("Failed to purge refresh tokens", "error", err)
			} else if n > 0 {
				slog.Info("Purged expired refresh tokens", "count", n)
			}
			if n, err := auditRepo.DeleteBefore(ctx, time.Now().Add(-params.AuditEventRetention)); err != nil {
				slog.Error("Failed to purge audit events", "error", err)
			} else if n > 0 {
				slog.Info("Purged audit events", "count", n)
			}
		}
	}
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(config.Database)
	redisStorage := mustInitRedisStorage(config.Redis)
	defer redisStorage.Close()
	cacheStorage := store.NewRedisStorage(redisStorage.Conn())
	recorder := metrics.Init(config.Metrics.Enabled)

	// repositories
	var (
		realmRepo    = realms.NewRealmRepository(db)
		userRepo     = users.NewUserRepository(db)
		roleRepo     = roles.NewRoleRepository(db)
		clientRepo   = clients.NewClientRepository(db)
		redirectRepo = clients.NewRedirectURIRepository(db)
		credRepo     = credentials.NewCredentialRepository(db)
		webhookRepo  = webhooks.NewWebhookRepository(db)
		auditRepo    = audit.NewAuditEventRepository(db)
	)

	keyService, err := tokens.NewKeyService(tokens.NewKeyRepository(db), params.KeyCacheSize)
	if err != nil {
		return err
	}

	notifier := webhooks.NewNotifier(webhooks.NotifierOptions{
		Workers:        config.Webhooks.Workers,
		QueueSize:      config.Webhooks.QueueSize,
		RequestTimeout: config.Webhooks.RequestTimeout,
		MaxRetries:     config.Webhooks.MaxRetries,
		RateLimit:      config.Webhooks.RateLimit,
		RateBurst:      config.Webhooks.RateBurst,
	}, webhookRepo, recorder)
	notifier.Start(ctx.Context)
	defer notifier.Stop()

	// services
	var (
		hasher           = credentials.NewArgon2Hasher(credentials.DefaultArgon2Params, config.Auth.HashConcurrency)
		credentialSvc    = credentials.NewCredentialService(hasher, credRepo)
		enforcer         = policy.NewEnforcer(userRepo, realmRepo, clientRepo)
		sessionStore     = sessions.NewSessionStore(cacheStorage, config.Auth.AuthSessionTTL)
		twoFactorService = twofactor.NewTwoFactorService(config.Auth.TOTPIssuer, cacheStorage, credRepo, hasher)
		tokenService     = tokens.NewTokenService(tokens.Options{
			BaseURL:         config.BaseURL,
			AccessTokenTTL:  config.Auth.AccessTokenTTL,
			RefreshTokenTTL: config.Auth.RefreshTokenTTL,
		}, keyService, tokens.NewRefreshTokenRepository(db))
		grantEngine = grants.NewEngine(grants.Options{
			RotateRefreshTokens: config.Auth.RotateRefreshTokens,
		}, userRepo, sessionStore, credentialSvc, tokenService)
		realmService   = realms.NewRealmService(db, realmRepo, clientRepo, roleRepo, userRepo, keyService, credentialSvc, enforcer, notifier)
		clientService  = clients.NewClientService(db, realmRepo, clientRepo, redirectRepo, userRepo, enforcer, notifier)
		roleService    = roles.NewRoleService(realmRepo, clientRepo, roleRepo, enforcer, notifier)
		userService    = users.NewUserService(realmRepo, userRepo, roleRepo, credentialSvc, tokenService, enforcer, notifier)
		webhookService = webhooks.NewWebhookService(realmRepo, webhookRepo, enforcer, notifier)
	)
	authorizeService := auth.NewAuthorizeService(auth.Dependencies{
		Realms:       realmRepo,
		Clients:      clientRepo,
		RedirectURIs: redirectRepo,
		Users:        userRepo,
		Sessions:     sessionStore,
		Passwords:    credentialSvc,
		TwoFactor:    twoFactorService,
		Grants:       grantEngine,
		Tokens:       tokenService,
		Keys:         keyService,
		Audit:        audit.NewRecorder(auditRepo),
		Metrics:      recorder,
	})

	if _, err := realmService.Bootstrap(ctx.Context, realms.BootstrapConfig{
		AdminUsername: config.Admin.Username,
		AdminPassword: config.Admin.Password,
		AdminEmail:    config.Admin.Email,
	}); err != nil {
		slog.Error("Failed to bootstrap master realm", "error", err)
		return err
	}

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	router.Use(middlewares.HTTPMetrics(recorder))

	api.SetupRoutes(router, api.Handlers{
		Auth:     api.NewAuthHandler(authorizeService, strings.HasPrefix(config.BaseURL, "https://")),
		Account:  api.NewAccountHandler(authorizeService),
		Realms:   api.NewRealmHandler(realmService),
		Clients:  api.NewClientHandler(clientService, roleService),
		Roles:    api.NewRoleHandler(roleService),
		Users:    api.NewUserHandler(userService),
		Webhooks: api.NewWebhookHandler(webhookService),
	},
		middlewares.RequireIdentity(authorizeService),
		middlewares.TokenRateLimiter(rateLimitStorage(config.RateLimit, redisStorage), config.RateLimit.Max, config.RateLimit.Window),
	)

	backgroundCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	healthHandler := common.NewHealthCheckHandler(redisStorage.Conn(), db, config.Metrics.Enabled)
	go common.StartHealthCheckServer(backgroundCtx, done, config.HealthCheckAddr, healthHandler)
	go runMaintenance(backgroundCtx, tokenService, auditRepo)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
