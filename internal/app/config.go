package app

import (
	"strings"
	"time"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/env"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
)

type Config struct {
	Environment string
	Version     string

	// Batch pool. Keep PoolSize well under the state store's connection
	// budget; overlapping saga runs queue, they do not stack.
	PoolSize          int
	PerCreatorTimeout time.Duration

	// Saga knobs.
	StepTimeout  time.Duration
	AllowNextDay bool

	// Circuit breaker over the state store.
	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration
	BreakerProbeCount       int

	IdempotencyTTL time.Duration

	// "redis" or "memory".
	StateStore string

	RotationPatternsPath string
	AllowOrigins         []string
}

func LoadConfig(log *logger.Logger) Config {
	origins := strings.Split(env.Get("CORS_ALLOW_ORIGINS", "http://localhost:3000", log), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return Config{
		Environment:             env.Get("ENVIRONMENT", "development", log),
		Version:                 env.Get("SERVICE_VERSION", "dev", log),
		PoolSize:                env.GetInt("BATCH_POOL_SIZE", 4, log),
		PerCreatorTimeout:       env.GetDuration("PER_CREATOR_TIMEOUT", 120, log),
		StepTimeout:             env.GetDuration("SAGA_STEP_TIMEOUT", 10, log),
		AllowNextDay:            env.GetBool("FOLLOWUP_ALLOW_NEXT_DAY", false, log),
		BreakerFailureThreshold: env.GetInt("BREAKER_FAILURE_THRESHOLD", 5, log),
		BreakerRecoveryTimeout:  env.GetDuration("BREAKER_RECOVERY_TIMEOUT", 30, log),
		BreakerProbeCount:       env.GetInt("BREAKER_HALF_OPEN_PROBES", 2, log),
		IdempotencyTTL:          env.GetDuration("IDEMPOTENCY_TTL", 3600, log),
		StateStore:              env.Get("STATE_STORE", "memory", log),
		RotationPatternsPath:    env.Get("ROTATION_PATTERNS_PATH", "", log),
		AllowOrigins:            origins,
	}
}
