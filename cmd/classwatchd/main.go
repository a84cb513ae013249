// Command classwatchd runs the classroom-monitoring backend: the REST API,
// the notification hub and the live screen relay, backed by Redis for agent
// data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/classwatch/classwatch/config"
	"github.com/classwatch/classwatch/httpapi"
	"github.com/classwatch/classwatch/hub"
	"github.com/classwatch/classwatch/relay"
	"github.com/classwatch/classwatch/store"
)

// serverIPInterval is how often this machine's LAN address is re-published
// to Redis so agents can discover the backend.
const serverIPInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(*configPath, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Info("config loaded", "port", cfg.Port, "redis", cfg.RedisAddr)

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	st, err := store.New(store.Config{Client: client, KeyPrefix: cfg.KeyPrefix})
	if err != nil {
		return err
	}
	defer st.Close()

	rl := relay.New(relay.WithLogger(log))
	hb := hub.New(hub.WithLogger(log))
	handler := httpapi.New(cfg, st, rl, hb, httpapi.WithLogger(log))

	// Reload the mutable policy (banned lists etc.) when the file changes.
	go func() {
		err := config.Watch(ctx, configPath, log, handler.SetConfig)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("config watcher stopped", "err", err)
		}
	}()

	go publishServerIP(ctx, st, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("classwatch backend listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// publishServerIP periodically stores this machine's LAN address in Redis.
func publishServerIP(ctx context.Context, st *store.Store, log *slog.Logger) {
	ticker := time.NewTicker(serverIPInterval)
	defer ticker.Stop()

	publish := func() {
		ip, err := localIP()
		if err != nil {
			log.Warn("could not determine local IP", "err", err)
			return
		}
		if err := st.SetServerIP(ctx, ip); err != nil {
			log.Warn("could not publish server IP", "err", err)
			return
		}
		log.Info("published server IP", "ip", ip)
	}

	publish()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publish()
		}
	}
}

// localIP returns the first non-loopback unicast IPv4 address on an up
// interface.
func localIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4.String(), nil
			}
		}
	}
	return "", errors.New("no non-loopback IPv4 interface found")
}
