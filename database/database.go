package database

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type DB struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
}

func Connect(ctx context.Context, postgresURL, redisAddr, redisPassword string) (*DB, error) {
	pool, err := pgxpool.New(ctx, postgresURL)
	if err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       0,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unavailable: %v (continuing with degraded functionality)", err)
		rdb = nil
	}

	return &DB{
		Postgres: pool,
		Redis:    rdb,
	}, nil
}

func (db *DB) Close() {
	if db.Postgres != nil {
		db.Postgres.Close()
	}
	if db.Redis != nil {
		db.Redis.Close()
	}
}
