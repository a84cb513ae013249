// Package store persists agent-reported data in Redis: the agent registry,
// heartbeats, violations, notifications, screenshots and app inventories.
// Everything is plain key-value glue — JSON blobs under a configurable key
// prefix, with TTLs doing the expiry work.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	screenshotTTL   = 2 * time.Minute
	appListTTL      = 2 * time.Minute
	serverIPTTL     = 6 * time.Minute
	notificationCap = 200
)

// Config contains configuration options for the Store.
type Config struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys, e.g. "classwatch".
	KeyPrefix string
}

// Store implements the Redis-backed agent data store.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New creates a Store. The client is required; the prefix defaults to
// "classwatch".
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "classwatch"
	}
	return &Store{client: cfg.Client, keyPrefix: prefix}, nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error { return s.client.Close() }

// --- Key helpers ---

func (s *Store) heartbeatKey(hostname string) string {
	return s.keyPrefix + ":heartbeat:" + hostname
}
func (s *Store) agentsKey() string { return s.keyPrefix + ":agents" }
func (s *Store) violationsKey(hostname string) string {
	return s.keyPrefix + ":violations:" + hostname
}
func (s *Store) violationCountKey(hostname string) string {
	return s.keyPrefix + ":violation_count:" + hostname
}
func (s *Store) screenshotKey(hostname string) string {
	return s.keyPrefix + ":screenshot:" + hostname
}
func (s *Store) notificationsKey(hostname string) string {
	return s.keyPrefix + ":notifications:" + hostname
}
func (s *Store) appsKey(hostname string) string { return s.keyPrefix + ":apps:" + hostname }
func (s *Store) serverIPKey() string            { return s.keyPrefix + ":server:ip" }

// --- Heartbeats ---

// SetHeartbeat stores hb with the given TTL. A student whose heartbeat has
// expired is considered offline.
func (s *Store) SetHeartbeat(ctx context.Context, hb *Heartbeat, ttl time.Duration) error {
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}
	return s.client.Set(ctx, s.heartbeatKey(hb.Hostname), data, ttl).Err()
}

// GetHeartbeat returns the last heartbeat for hostname, or nil when none is
// stored (or it has expired).
func (s *Store) GetHeartbeat(ctx context.Context, hostname string) (*Heartbeat, error) {
	val, err := s.client.Get(ctx, s.heartbeatKey(hostname)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get heartbeat %s: %w", hostname, err)
	}
	var hb Heartbeat
	if err := json.Unmarshal([]byte(val), &hb); err != nil {
		return nil, nil // treat corrupt entries as absent
	}
	return &hb, nil
}

// --- Agent registry ---

// RegisterAgent adds one agent to the registry set. Entries are stored as
// "hostname|ip|port" so re-registration with the same endpoint is a no-op.
func (s *Store) RegisterAgent(ctx context.Context, hostname, ip string, port uint16) error {
	member := fmt.Sprintf("%s|%s|%d", hostname, ip, port)
	return s.client.SAdd(ctx, s.agentsKey(), member).Err()
}

// Agents returns every registered agent. Malformed registry entries are
// skipped.
func (s *Store) Agents(ctx context.Context) ([]Agent, error) {
	members, err := s.client.SMembers(ctx, s.agentsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	agents := make([]Agent, 0, len(members))
	for _, m := range members {
		if a, ok := parseAgent(m); ok {
			agents = append(agents, a)
		}
	}
	return agents, nil
}

// FindAgent returns the registry entry for hostname, or false.
func (s *Store) FindAgent(ctx context.Context, hostname string) (Agent, bool, error) {
	agents, err := s.Agents(ctx)
	if err != nil {
		return Agent{}, false, err
	}
	for _, a := range agents {
		if a.Hostname == hostname {
			return a, true, nil
		}
	}
	return Agent{}, false, nil
}

func parseAgent(member string) (Agent, bool) {
	parts := strings.Split(member, "|")
	if len(parts) < 3 {
		return Agent{}, false
	}
	port, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return Agent{}, false
	}
	return Agent{Hostname: parts[0], IP: parts[1], Port: uint16(port)}, true
}

// --- Violations ---

// AddViolation prepends v to the per-student violation list and bumps the
// running count.
func (s *Store) AddViolation(ctx context.Context, v *Violation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	if err := s.client.LPush(ctx, s.violationsKey(v.Hostname), data).Err(); err != nil {
		return fmt.Errorf("push violation: %w", err)
	}
	if err := s.client.IncrBy(ctx, s.violationCountKey(v.Hostname), 1).Err(); err != nil {
		return fmt.Errorf("bump violation count: %w", err)
	}
	return nil
}

// Violations returns up to count most-recent violations for hostname.
func (s *Store) Violations(ctx context.Context, hostname string, count int64) ([]Violation, error) {
	items, err := s.client.LRange(ctx, s.violationsKey(hostname), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list violations %s: %w", hostname, err)
	}
	out := make([]Violation, 0, len(items))
	for _, item := range items {
		var v Violation
		if json.Unmarshal([]byte(item), &v) == nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// ViolationCount returns the lifetime violation count for hostname.
func (s *Store) ViolationCount(ctx context.Context, hostname string) (int64, error) {
	val, err := s.client.Get(ctx, s.violationCountKey(hostname)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("violation count %s: %w", hostname, err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// --- Screenshots ---

// SetScreenshot stores the latest still screenshot with a short TTL.
func (s *Store) SetScreenshot(ctx context.Context, ss *Screenshot) error {
	data, err := json.Marshal(ss)
	if err != nil {
		return fmt.Errorf("marshal screenshot: %w", err)
	}
	return s.client.Set(ctx, s.screenshotKey(ss.Hostname), data, screenshotTTL).Err()
}

// GetScreenshot returns the latest still screenshot, or nil.
func (s *Store) GetScreenshot(ctx context.Context, hostname string) (*Screenshot, error) {
	val, err := s.client.Get(ctx, s.screenshotKey(hostname)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get screenshot %s: %w", hostname, err)
	}
	var ss Screenshot
	if err := json.Unmarshal([]byte(val), &ss); err != nil {
		return nil, nil
	}
	return &ss, nil
}

// --- Notifications ---

// AddNotification prepends n to the per-student list, keeping the last 200.
func (s *Store) AddNotification(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	key := s.notificationsKey(n.Hostname)
	if err := s.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return s.client.LTrim(ctx, key, 0, notificationCap-1).Err()
}

// Notifications returns up to count most-recent notifications for hostname.
func (s *Store) Notifications(ctx context.Context, hostname string, count int64) ([]Notification, error) {
	items, err := s.client.LRange(ctx, s.notificationsKey(hostname), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list notifications %s: %w", hostname, err)
	}
	out := make([]Notification, 0, len(items))
	for _, item := range items {
		var n Notification
		if json.Unmarshal([]byte(item), &n) == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// --- App inventories ---

// SetApps stores the latest process/tab inventory with a short TTL.
func (s *Store) SetApps(ctx context.Context, apps *AppList) error {
	data, err := json.Marshal(apps)
	if err != nil {
		return fmt.Errorf("marshal app list: %w", err)
	}
	return s.client.Set(ctx, s.appsKey(apps.Hostname), data, appListTTL).Err()
}

// GetApps returns the latest inventory, or nil.
func (s *Store) GetApps(ctx context.Context, hostname string) (*AppList, error) {
	val, err := s.client.Get(ctx, s.appsKey(hostname)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get apps %s: %w", hostname, err)
	}
	var apps AppList
	if err := json.Unmarshal([]byte(val), &apps); err != nil {
		return nil, nil
	}
	return &apps, nil
}

// --- Server IP ---

// SetServerIP publishes this server's reachable IP so agents on the LAN can
// discover it. Refreshed periodically; expires on its own if we go away.
func (s *Store) SetServerIP(ctx context.Context, ip string) error {
	return s.client.Set(ctx, s.serverIPKey(), ip, serverIPTTL).Err()
}
