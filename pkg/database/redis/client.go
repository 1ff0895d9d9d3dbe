package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lk2023060901/xdooria-combat/pkg/config"
)

// Client Redis 客户端，单机与集群统一为 UniversalClient
type Client struct {
	cfg *Config
	rdb redis.UniversalClient
}

// NewClient 创建 Redis 客户端
func NewClient(cfg *Config) (*Client, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge redis config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: newCfg}
	if newCfg.IsCluster() {
		c.rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           newCfg.Cluster.Addrs,
			Password:        newCfg.Cluster.Password,
			MaxIdleConns:    newCfg.Pool.MaxIdleConns,
			MaxActiveConns:  newCfg.Pool.MaxOpenConns,
			ConnMaxIdleTime: newCfg.Pool.ConnMaxIdleTime,
			DialTimeout:     newCfg.Pool.DialTimeout,
			ReadTimeout:     newCfg.Pool.ReadTimeout,
			WriteTimeout:    newCfg.Pool.WriteTimeout,
		})
		return c, nil
	}

	c.rdb = redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", newCfg.Standalone.Host, newCfg.Standalone.Port),
		Password:        newCfg.Standalone.Password,
		DB:              newCfg.Standalone.DB,
		MaxIdleConns:    newCfg.Pool.MaxIdleConns,
		MaxActiveConns:  newCfg.Pool.MaxOpenConns,
		ConnMaxIdleTime: newCfg.Pool.ConnMaxIdleTime,
		DialTimeout:     newCfg.Pool.DialTimeout,
		ReadTimeout:     newCfg.Pool.ReadTimeout,
		WriteTimeout:    newCfg.Pool.WriteTimeout,
	})
	return c, nil
}

// Ping 检查连接
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get 读取字符串值，键不存在时返回 ok=false
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Del 删除键
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.rdb.Close()
}
