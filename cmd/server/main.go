package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passwordless-auth/internal/audit"
	auditrepo "passwordless-auth/internal/audit/repository"
	"passwordless-auth/internal/config"
	"passwordless-auth/internal/db"
	"passwordless-auth/internal/ephemeral"
	healthhandler "passwordless-auth/internal/health/handler"
	"passwordless-auth/internal/mail"
	pwservice "passwordless-auth/internal/passwordless/service"
	"passwordless-auth/internal/ratelimit"
	rtrepo "passwordless-auth/internal/refreshtoken/repository"
	"passwordless-auth/internal/security"
	"passwordless-auth/internal/server"
	"passwordless-auth/internal/telemetry"
	telemetryotel "passwordless-auth/internal/telemetry/otel"
	"passwordless-auth/internal/telemetry/producer"
	tokenservice "passwordless-auth/internal/token/service"
	userrepo "passwordless-auth/internal/user/repository"
)

const serviceName = "passwordless-auth"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, serviceName, cfg.OTelInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	store, err := ephemeral.Connect(ctx, ephemeral.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer store.Close()

	tokens, err := newTokenProvider(cfg)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	emitters := telemetry.MultiEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kafka := producer.NewKafkaProducer(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic); kafka != nil {
		var p producer.Producer = kafka
		defer p.Close()
		emitters = append(emitters, p)
		log.Printf("audit: publishing to kafka topic %s", cfg.AuditKafkaTopic)
	}
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database), emitters)

	users := userrepo.NewPostgresRepository(database)
	refreshTokens := rtrepo.NewPostgresRepository(database)
	issuer := tokenservice.NewIssuer(
		refreshTokens,
		tokens,
		security.NewHasher(cfg.RefreshBcryptCost),
		[]byte(cfg.RefreshTokenSecret),
		cfg.RefreshTTL(),
	)
	rotation := tokenservice.NewRotationService(issuer, refreshTokens, users, auditLogger)

	mailer, err := mail.New(cfg)
	if err != nil {
		log.Fatalf("mail: %v", err)
	}
	passwordless := pwservice.NewService(
		users,
		store,
		issuer,
		mailer,
		mail.Templates{Product: cfg.MailFromName, FrontendURL: cfg.FrontendURL},
		ratelimit.New(store, "passwordless", cfg.PasswordlessRateLimit, cfg.RateWindow()),
		auditLogger,
		cfg.CredentialTTL(),
	)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s := server.NewServer(server.Deps{
		Passwordless: passwordless,
		Tokens:       rotation,
		Verifier:     issuer,
		HealthPingers: map[string]healthhandler.Pinger{
			"postgres": database,
			"redis":    healthhandler.PingFunc(store.Ping),
		},
	})

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	s.GracefulStop()
	// let in-flight audit emits and welcome mails finish before exporters close
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("gRPC server stopped")
}

// newTokenProvider prefers an asymmetric key pair and falls back to HS256.
func newTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey != "" {
		priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
		return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	}
	return security.NewHMACTokenProvider([]byte(cfg.JWTAccessSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
}
