package bootstrap

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darrenapfel/theagnt-website-sub001/config"
)

func TestPostgresURLEscapesCredentials(t *testing.T) {
	raw := postgresURL(config.DBConfig{
		Host: "db.internal", Port: 6432, User: "theagnt", Password: "p@ss:w/rd", Name: "theagnt", SSLMode: "require",
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:6432", u.Host)
	assert.Equal(t, "/theagnt", u.Path)
	pw, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss:w/rd", pw)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestResolveRedisTarget(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		mode     redisMode
		addrs    []string
		db       int
		password string
		describe string
		wantErr  string
	}{
		{
			name:     "plain address",
			cfg:      config.RedisConfig{URI: " localhost:6379 ", Password: "secret", DB: 2},
			mode:     redisModeDirect,
			addrs:    []string{"localhost:6379"},
			db:       2,
			password: "secret",
			describe: "direct:localhost:6379",
		},
		{
			name:     "url overrides password and db",
			cfg:      config.RedisConfig{URI: "redis://:fromurl@cache:6380/4", Password: "ignored", DB: 1},
			mode:     redisModeDirect,
			addrs:    []string{"cache:6380"},
			db:       4,
			password: "fromurl",
			describe: "direct:cache:6380",
		},
		{
			name:    "direct without uri",
			cfg:     config.RedisConfig{},
			wantErr: "requires a URI",
		},
		{
			name:     "sentinel",
			cfg:      config.RedisConfig{UseSentinel: true, SentinelNodes: []string{"s1:26379", " ", "s2:26379"}, SentinelMasterName: "primary"},
			mode:     redisModeSentinel,
			addrs:    []string{"s1:26379", "s2:26379"},
			describe: "sentinel:primary",
		},
		{
			name:    "sentinel without nodes",
			cfg:     config.RedisConfig{UseSentinel: true},
			wantErr: "at least one sentinel node",
		},
		{
			name:     "cluster nodes",
			cfg:      config.RedisConfig{UseCluster: true, ClusterNodes: []string{"c1:7000", "c2:7000"}, DB: 3},
			mode:     redisModeCluster,
			addrs:    []string{"c1:7000", "c2:7000"},
			describe: "cluster:c1:7000,c2:7000",
		},
		{
			name:     "cluster seeded from uri",
			cfg:      config.RedisConfig{UseCluster: true, URI: "rediss://:pw@seed:7000/5"},
			mode:     redisModeCluster,
			addrs:    []string{"seed:7000"},
			password: "pw",
			describe: "cluster:seed:7000",
		},
		{
			name:    "cluster without addresses",
			cfg:     config.RedisConfig{UseCluster: true},
			wantErr: "at least one address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := resolveRedisTarget(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mode, target.Mode)
			assert.Equal(t, tt.addrs, target.Opts.Addrs)
			assert.Equal(t, tt.db, target.Opts.DB)
			assert.Equal(t, tt.password, target.Opts.Password)
			assert.Equal(t, tt.describe, target.describe())
		})
	}
}

func TestResolveRedisTargetTLSFromURL(t *testing.T) {
	target, err := resolveRedisTarget(config.RedisConfig{URI: "rediss://cache:6380"})
	require.NoError(t, err)
	assert.NotNil(t, target.Opts.TLSConfig)
}
