// Package config loads chronoshard's runtime configuration from
// environment variables. Every field has a sensible default, so
// LoadFromEnv() can be called with no environment variables set at all.
//
// Example:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all chronoshard configuration.
type Config struct {
	// Storage controls shard partitioning and persistence.
	Storage StorageConfig
	// Routing controls shard-actor mailbox behavior.
	Routing RoutingConfig
	// TaskRunner controls the vertex-centric parallel executor.
	TaskRunner TaskRunnerConfig
	// Pool controls allocation pooling in the storage hot path.
	Pool PoolConfig
}

// StorageConfig configures the sharded temporal store.
type StorageConfig struct {
	// ShardCount is the number of shard actors the graph is partitioned
	// across. Each VID is owned by hash(external_id) mod ShardCount.
	ShardCount int
	// DataDir is the directory the serve command loads binary graph files
	// from at startup and saves them back to on shutdown. Graph.SaveToFile,
	// OpenFromFile and SnapshotToBadger take explicit paths and do not
	// read it.
	DataDir string
	// Persistent selects the persistent-graph variant, which allows
	// delete_edge and interprets liveness via the most recent of
	// additions/deletions. False selects the default (append-only, no
	// deletions) variant.
	Persistent bool
}

// RoutingConfig configures the shard actor mailboxes (component C).
type RoutingConfig struct {
	// MailboxSize is the bounded channel capacity per shard actor.
	// Producers block when a mailbox is full.
	MailboxSize int
}

// TaskRunnerConfig configures the vertex-centric parallel executor
// (component F).
type TaskRunnerConfig struct {
	// Threads is the target worker-partition count. Zero means use
	// runtime.NumCPU().
	Threads int
	// Deadline bounds how long Run may take before returning
	// chronoerr.ErrDeadline. Zero means no deadline.
	Deadline time.Duration
}

// PoolConfig configures allocation pooling for per-shard hot paths.
type PoolConfig struct {
	Enabled bool
	MaxSize int
}

const (
	envShardCount   = "CHRONOSHARD_SHARD_COUNT"
	envDataDir      = "CHRONOSHARD_DATA_DIR"
	envPersistent   = "CHRONOSHARD_PERSISTENT"
	envMailboxSize  = "CHRONOSHARD_MAILBOX_SIZE"
	envTaskThreads  = "CHRONOSHARD_TASK_THREADS"
	envTaskDeadline = "CHRONOSHARD_TASK_DEADLINE"
	envPoolEnabled  = "CHRONOSHARD_POOL_ENABLED"
	envPoolMaxSize  = "CHRONOSHARD_POOL_MAX_SIZE"
)

// LoadFromEnv loads a Config from environment variables, applying
// defaults for anything unset.
func LoadFromEnv() Config {
	return Config{
		Storage: StorageConfig{
			ShardCount: getEnvInt(envShardCount, 16),
			DataDir:    getEnvStr(envDataDir, "./data"),
			Persistent: getEnvBool(envPersistent, false),
		},
		Routing: RoutingConfig{
			MailboxSize: getEnvInt(envMailboxSize, 32),
		},
		TaskRunner: TaskRunnerConfig{
			Threads:  getEnvInt(envTaskThreads, 0),
			Deadline: getEnvDuration(envTaskDeadline, 0),
		},
		Pool: PoolConfig{
			Enabled: getEnvBool(envPoolEnabled, true),
			MaxSize: getEnvInt(envPoolMaxSize, 1000),
		},
	}
}

// Validate checks the configuration for out-of-range values, returning a
// descriptive error for the first problem found.
func (c Config) Validate() error {
	if c.Storage.ShardCount <= 0 {
		return fmt.Errorf("config: shard count must be positive, got %d", c.Storage.ShardCount)
	}
	if c.Routing.MailboxSize <= 0 {
		return fmt.Errorf("config: mailbox size must be positive, got %d", c.Routing.MailboxSize)
	}
	if c.TaskRunner.Threads < 0 {
		return fmt.Errorf("config: task runner threads must be >= 0, got %d", c.TaskRunner.Threads)
	}
	if c.Pool.MaxSize < 0 {
		return fmt.Errorf("config: pool max size must be >= 0, got %d", c.Pool.MaxSize)
	}
	return nil
}

func getEnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
