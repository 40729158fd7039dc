package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/internal/config"
)

type Connection struct {
	*goredis.Client
}

func NewConnection(ctx context.Context, cfg config.Redis) (*Connection, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("erro ao conectar ao Redis: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"addr": cfg.Addr,
		"db":   cfg.DB,
	}).Info("Conexão com Redis estabelecida com sucesso")

	return &Connection{Client: client}, nil
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
