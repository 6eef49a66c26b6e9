package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/edgareichner01-sys/bot-rdv/internal/config"
	"github.com/edgareichner01-sys/bot-rdv/internal/conversation"
	"github.com/edgareichner01-sys/bot-rdv/internal/session"
	"github.com/edgareichner01-sys/bot-rdv/internal/tenant"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
}

func TestBuildRedisClientVerifiesConnection(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	logger := logging.New("error")

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	if client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logger, true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	pool, err := BuildPostgresPool(context.Background(), "", logging.New("error"))
	if err != nil || pool != nil {
		t.Fatalf("expected nil pool and no error, got %v %v", pool, err)
	}
	if db := BuildSQLDB(nil); db != nil {
		t.Fatalf("expected nil sql db without pool")
	}
}

func TestBuildPostgresPoolRejectsBadURL(t *testing.T) {
	if _, err := BuildPostgresPool(context.Background(), "postgres://%zz", logging.New("error")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestBuildStoresFallBackToMemory(t *testing.T) {
	logger := logging.New("error")

	if _, ok := BuildTenantStore(nil, logger).(*tenant.StaticStore); !ok {
		t.Fatalf("expected static tenant store without redis")
	}
	if _, ok := BuildSessionStore(nil, &appconfig.Config{SessionTTL: time.Minute}, logger).(*session.MemoryStore); !ok {
		t.Fatalf("expected memory session store without redis")
	}
	if svc := BuildAppointmentService(nil, logger); svc == nil {
		t.Fatalf("expected in-memory appointment service")
	}
}

func TestBuildStoresUseRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logging.New("error")
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, false)
	defer client.Close()

	if _, ok := BuildTenantStore(client, logger).(*tenant.Store); !ok {
		t.Fatalf("expected redis tenant store")
	}
	if _, ok := BuildSessionStore(client, &appconfig.Config{}, logger).(*session.RedisStore); !ok {
		t.Fatalf("expected redis session store")
	}
}

func TestBuildLLMClient(t *testing.T) {
	logger := logging.New("error")

	if _, _, err := BuildLLMClient(context.Background(), nil, nil, logger); err == nil {
		t.Fatalf("expected error for nil config")
	}

	client, closeFn, err := BuildLLMClient(context.Background(), &appconfig.Config{}, nil, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client != nil {
		t.Fatalf("expected nil client when no provider is configured")
	}
	closeFn()

	// Bedrock needs an AWS config; without one the model id alone is ignored.
	client, _, err = BuildLLMClient(context.Background(), &appconfig.Config{BedrockModelID: "model"}, nil, logger)
	if err != nil || client != nil {
		t.Fatalf("expected nil client without aws config, got %T %v", client, err)
	}

	awsCfg := aws.Config{Region: "eu-west-3"}
	client, _, err = BuildLLMClient(context.Background(), &appconfig.Config{BedrockModelID: "model"}, &awsCfg, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := client.(*conversation.BedrockLLMClient); !ok {
		t.Fatalf("expected bedrock client, got %T", client)
	}
}

func TestBuildBookingNotifier(t *testing.T) {
	logger := logging.New("error")
	if n := BuildBookingNotifier(nil, nil, logger); n == nil {
		t.Fatalf("expected notifier for nil config")
	}
	awsCfg := aws.Config{Region: "eu-west-3"}
	cfg := &appconfig.Config{EmailProvider: "ses", SESFromEmail: "bot@example.com"}
	if n := BuildBookingNotifier(cfg, &awsCfg, logger); n == nil {
		t.Fatalf("expected notifier with ses config")
	}
}

func TestBuildCalendarDisabled(t *testing.T) {
	logger := logging.New("error")

	svc, handler := BuildCalendar(&appconfig.Config{}, nil, nil, logger)
	if svc != nil || handler != nil {
		t.Fatalf("expected calendar disabled without oauth client")
	}

	cfg := &appconfig.Config{GoogleClientID: "id", GoogleClientSecret: "secret", GoogleRedirectURL: "https://example.com/cb"}
	svc, handler = BuildCalendar(cfg, nil, nil, logger)
	if svc != nil || handler != nil {
		t.Fatalf("expected calendar disabled without postgres and redis")
	}
}

func TestBuildEngineAnswersWithMemoryParts(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{
		LLMTimeout:          time.Second,
		AvailabilityTimeout: time.Second,
		SlotProbeStep:       time.Hour,
		SlotProbeMax:        2,
	}

	if _, err := BuildEngine(cfg, EngineParts{}, logger); err == nil {
		t.Fatalf("expected error without appointment service")
	}

	engine, err := BuildEngine(cfg, EngineParts{
		Tenants:      BuildTenantStore(nil, logger),
		Sessions:     BuildSessionStore(nil, cfg, logger),
		Appointments: BuildAppointmentService(nil, logger),
	}, logger)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	reply, err := engine.HandleMessage(context.Background(), conversation.MessageRequest{
		TenantID: "garage_michel",
		UserID:   "visitor-1",
		Message:  "hello",
	})
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if reply.Text == "" {
		t.Fatalf("expected a reply")
	}
}
