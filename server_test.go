package titan

import (
	"testing"
	"time"

	"github.com/distributedio/titanhfe/command"
	"github.com/distributedio/titanhfe/conf"
	titancontext "github.com/distributedio/titanhfe/context"
	"github.com/distributedio/titanhfe/db"
	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := conf.Default()
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Server.StatusAddr = "127.0.0.1:0"

	database := db.NewDB(0, &cfg.Hash, db.NopSink)
	exec := command.NewExecutor(database)
	servCtx := &titancontext.ServerContext{DB: database}
	srv := NewServer(&cfg.Server, exec, servCtx)

	go srv.ListenAndServe(cfg.Server.Listen)
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func dial(t *testing.T, srv *Server) redis.Conn {
	t.Helper()
	conn, err := redis.DialTimeout("tcp", srv.Addr().String(), time.Second, time.Second, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerHSetHGetOverRESP(t *testing.T) {
	srv := startTestServer(t)
	conn := dial(t, srv)

	n, err := redis.Int(conn.Do("HSET", "k", "f", "v"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	v, err := redis.String(conn.Do("HGET", "k", "f"))
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestServerHExpireOverRESP(t *testing.T) {
	srv := startTestServer(t)
	conn := dial(t, srv)

	_, err := conn.Do("HSET", "k", "f", "v")
	require.NoError(t, err)

	codes, err := redis.Ints(conn.Do("HEXPIRE", "k", "100", "FIELDS", "1", "f"))
	require.NoError(t, err)
	require.Equal(t, []int{1}, codes)

	ttls, err := redis.Ints(conn.Do("HTTL", "k", "FIELDS", "1", "f"))
	require.NoError(t, err)
	require.Len(t, ttls, 1)
	require.True(t, ttls[0] > 0 && ttls[0] <= 100)

	persistCodes, err := redis.Ints(conn.Do("HPERSIST", "k", "FIELDS", "1", "f"))
	require.NoError(t, err)
	require.Equal(t, []int{1}, persistCodes)
}

func TestServerHCopyOverRESP(t *testing.T) {
	srv := startTestServer(t)
	conn := dial(t, srv)

	_, err := conn.Do("HSET", "k", "f", "v")
	require.NoError(t, err)
	_, err = conn.Do("HEXPIRE", "k", "100", "FIELDS", "1", "f")
	require.NoError(t, err)

	ok, err := redis.Int(conn.Do("HCOPY", "k", "k2"))
	require.NoError(t, err)
	require.Equal(t, 1, ok)

	v, err := redis.String(conn.Do("HGET", "k2", "f"))
	require.NoError(t, err)
	require.Equal(t, "v", v)

	ttls, err := redis.Ints(conn.Do("HTTL", "k2", "FIELDS", "1", "f"))
	require.NoError(t, err)
	require.True(t, ttls[0] > 0 && ttls[0] <= 100, "duplicate must preserve the field's TTL")

	missing, err := redis.Int(conn.Do("HCOPY", "nosuchkey", "k3"))
	require.NoError(t, err)
	require.Equal(t, 0, missing)
}

func TestServerUnknownCommand(t *testing.T) {
	srv := startTestServer(t)
	conn := dial(t, srv)

	_, err := conn.Do("NOTACOMMAND")
	require.Error(t, err)
}
