package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setEnv clears the process environment and applies kv for the duration of the test.
func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	saved := os.Environ()
	os.Clearenv()
	t.Cleanup(func() {
		os.Clearenv()
		for _, e := range saved {
			if k, v, ok := strings.Cut(e, "="); ok {
				os.Setenv(k, v)
			}
		}
	})
	for k, v := range kv {
		os.Setenv(k, v)
	}
}

func minimalEnv() map[string]string {
	return map[string]string{
		"JWT_ACCESS_SECRET":    "access-secret",
		"REFRESH_TOKEN_SECRET": "refresh-secret",
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, minimalEnv())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.JWTIssuer != "creatik-hub-api" {
		t.Errorf("JWTIssuer = %q, want creatik-hub-api", cfg.JWTIssuer)
	}
	if cfg.JWTAudience != "creatik-hub-frontend" {
		t.Errorf("JWTAudience = %q, want creatik-hub-frontend", cfg.JWTAudience)
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 30*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 30d", cfg.RefreshTTL())
	}
	if cfg.CredentialTTL() != 5*time.Minute {
		t.Errorf("CredentialTTL = %v, want 5m", cfg.CredentialTTL())
	}
	if cfg.RateWindow() != 15*time.Minute {
		t.Errorf("RateWindow = %v, want 15m", cfg.RateWindow())
	}
	if cfg.BcryptCost != 12 || cfg.RefreshBcryptCost != 10 {
		t.Errorf("bcrypt costs = %d/%d, want 12/10", cfg.BcryptCost, cfg.RefreshBcryptCost)
	}
	if cfg.EmailProvider != EmailProviderMailDev {
		t.Errorf("EmailProvider = %q, want maildev", cfg.EmailProvider)
	}
	if cfg.PasswordlessRateLimit != 5 {
		t.Errorf("PasswordlessRateLimit = %d, want 5", cfg.PasswordlessRateLimit)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	env := minimalEnv()
	env["GRPC_ADDR"] = ":9090"
	env["JWT_ISSUER"] = "custom-issuer"
	env["REFRESH_TOKEN_EXPIRY_DAYS"] = "7"
	env["JWT_ACCESS_TTL"] = "5m"
	setEnv(t, env)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" || cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("overrides not applied: addr=%q issuer=%q", cfg.GRPCAddr, cfg.JWTIssuer)
	}
	if cfg.RefreshTTL() != 7*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 7d", cfg.RefreshTTL())
	}
	if cfg.AccessTTL() != 5*time.Minute {
		t.Errorf("AccessTTL = %v, want 5m", cfg.AccessTTL())
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	setEnv(t, map[string]string{"REFRESH_TOKEN_SECRET": "x"})
	if _, err := Load(); err == nil {
		t.Error("Load without a signing secret should fail")
	}
	setEnv(t, map[string]string{"JWT_ACCESS_SECRET": "x"})
	if _, err := Load(); err == nil {
		t.Error("Load without REFRESH_TOKEN_SECRET should fail")
	}
}

func TestLoad_KeyPairMustBeComplete(t *testing.T) {
	env := minimalEnv()
	env["JWT_PRIVATE_KEY"] = "/keys/private.pem"
	setEnv(t, env)
	if _, err := Load(); err == nil {
		t.Error("Load with only JWT_PRIVATE_KEY should fail")
	}
}

func TestLoad_ProductionSecretLength(t *testing.T) {
	env := minimalEnv()
	env["APP_ENV"] = "production"
	setEnv(t, env)
	if _, err := Load(); err == nil {
		t.Error("short REFRESH_TOKEN_SECRET in production should fail")
	}
}

func TestLoad_SendGridRequiresKey(t *testing.T) {
	env := minimalEnv()
	env["EMAIL_PROVIDER"] = "sendgrid"
	setEnv(t, env)
	if _, err := Load(); err == nil {
		t.Error("sendgrid without SENDGRID_API_KEY should fail")
	}
	env["SENDGRID_API_KEY"] = "SG.key"
	setEnv(t, env)
	if _, err := Load(); err != nil {
		t.Errorf("sendgrid with key: %v", err)
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	env := minimalEnv()
	env["BCRYPT_COST"] = "40"
	setEnv(t, env)
	if _, err := Load(); err == nil {
		t.Error("BCRYPT_COST=40 should fail")
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	c := &Config{JWTAccessTTL: "bogus", PasswordlessTTL: "-1m", TokenSweepInterval: ""}
	if c.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL fallback = %v", c.AccessTTL())
	}
	if c.CredentialTTL() != 5*time.Minute {
		t.Errorf("CredentialTTL fallback = %v", c.CredentialTTL())
	}
	if c.SweepInterval() != time.Hour {
		t.Errorf("SweepInterval fallback = %v", c.SweepInterval())
	}
}

func TestAuditKafkaBrokersList(t *testing.T) {
	c := &Config{AuditKafkaBrokers: " a:9092, ,b:9092 "}
	got := c.AuditKafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("AuditKafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.AuditKafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}
