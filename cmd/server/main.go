// Copyright 2025 RelayCore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command server runs the RelayCore multi-tenant API.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"relaycore/platform/credentials"
	"relaycore/platform/providers"
	"relaycore/platform/server"
	"relaycore/platform/store"
	"relaycore/platform/tenancy"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("[Server] Fatal: %v", err)
	}
}

func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) error{}

	// object store: MongoDB in production, in-memory for local development
	var partitions store.Partitions
	if cfg.MongoURI != "" {
		mongoParts, err := store.NewMongoPartitions(ctx, store.MongoPartitionsOptions{
			URI: cfg.MongoURI,
		})
		if err != nil {
			return err
		}
		defer func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dcancel()
			_ = mongoParts.Disconnect(dctx)
		}()
		partitions = mongoParts
		checks["mongodb"] = mongoParts.Ping
	} else {
		log.Printf("[Server] MONGO_URI not set, using in-memory object store")
		partitions = store.NewMemoryPartitions()
	}

	// tenancy directory: Postgres in production, in-memory otherwise
	var directory tenancy.Directory
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		directory = tenancy.NewPostgresDirectory(db)
		checks["postgres"] = db.PingContext
	} else {
		log.Printf("[Server] POSTGRES_URL not set, using in-memory directory")
		directory = tenancy.NewMemoryDirectory()
	}

	// credentials: AWS Secrets Manager when a region is configured,
	// environment variables otherwise
	var resolver credentials.Resolver
	if region := os.Getenv("AWS_REGION"); region != "" {
		aws, err := credentials.NewAWSResolver(ctx, credentials.AWSResolverOptions{Region: region})
		if err != nil {
			return err
		}
		resolver = aws
	} else {
		log.Printf("[Server] AWS_REGION not set, resolving credentials from environment")
		resolver = credentials.NewEnvResolver()
	}

	var limiter server.RateLimiter
	if cfg.RedisURL != "" {
		redisLimiter, err := server.NewRedisRateLimiter(cfg.RedisURL, cfg.RateLimitPerMinute)
		if err != nil {
			return err
		}
		limiter = redisLimiter
	}

	backend := providers.NewOpenAIBackend()
	backend.BaseURL = cfg.AIBaseURL
	if cfg.AIModel != "" {
		backend.Model = cfg.AIModel
	}

	srv := server.NewServer(server.Options{
		Config:      cfg,
		Partitions:  partitions,
		Directory:   directory,
		Credentials: resolver,
		Backend:     backend,
		Limiter:     limiter,
		Checks:      checks,
	})

	return srv.Run()
}
