package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   3, // separate DB for these tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	s, err := New(Config{Client: client, KeyPrefix: "test:classwatch"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hb := &Heartbeat{
		Hostname:  "pc-1",
		IP:        "10.0.0.17",
		Port:      9100,
		OS:        "windows",
		Username:  "student17",
		CPUUsage:  42.5,
		RAMUsage:  61.2,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.SetHeartbeat(ctx, hb, 90*time.Second); err != nil {
		t.Fatalf("SetHeartbeat: %v", err)
	}

	got, err := s.GetHeartbeat(ctx, "pc-1")
	if err != nil {
		t.Fatalf("GetHeartbeat: %v", err)
	}
	if got == nil || got.Hostname != "pc-1" || got.CPUUsage != 42.5 {
		t.Fatalf("GetHeartbeat = %+v", got)
	}

	none, err := s.GetHeartbeat(ctx, "pc-unknown")
	if err != nil || none != nil {
		t.Fatalf("missing heartbeat: got %+v, %v", none, err)
	}
}

func TestAgentRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RegisterAgent(ctx, "pc-1", "10.0.0.17", 9100); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	// Same endpoint twice collapses into one set member.
	if err := s.RegisterAgent(ctx, "pc-1", "10.0.0.17", 9100); err != nil {
		t.Fatalf("RegisterAgent (repeat): %v", err)
	}
	if err := s.RegisterAgent(ctx, "pc-2", "10.0.0.18", 9100); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	agents, err := s.Agents(ctx)
	if err != nil {
		t.Fatalf("Agents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("Agents = %+v, want 2 entries", agents)
	}

	a, ok, err := s.FindAgent(ctx, "pc-2")
	if err != nil || !ok {
		t.Fatalf("FindAgent: %+v, %v, %v", a, ok, err)
	}
	if a.IP != "10.0.0.18" || a.Port != 9100 {
		t.Fatalf("FindAgent = %+v", a)
	}

	_, ok, err = s.FindAgent(ctx, "pc-missing")
	if err != nil || ok {
		t.Fatal("FindAgent should miss for unknown hostname")
	}
}

func TestViolations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, rule := range []string{"banned_site", "banned_app", "banned_site"} {
		v := &Violation{
			Hostname:  "pc-1",
			Rule:      rule,
			Detail:    "detail",
			Severity:  "high",
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := s.AddViolation(ctx, v); err != nil {
			t.Fatalf("AddViolation: %v", err)
		}
	}

	count, err := s.ViolationCount(ctx, "pc-1")
	if err != nil || count != 3 {
		t.Fatalf("ViolationCount = %d, %v; want 3", count, err)
	}

	recent, err := s.Violations(ctx, "pc-1", 2)
	if err != nil {
		t.Fatalf("Violations: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Violations returned %d items, want 2", len(recent))
	}
	// LPUSH order: newest first.
	if recent[0].Rule != "banned_site" || recent[1].Rule != "banned_app" {
		t.Fatalf("Violations order = %q, %q", recent[0].Rule, recent[1].Rule)
	}

	if n, _ := s.ViolationCount(ctx, "pc-clean"); n != 0 {
		t.Fatalf("clean host count = %d", n)
	}
}

func TestNotificationsTrimmed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < notificationCap+20; i++ {
		n := &Notification{Hostname: "pc-1", Title: "t", Message: "m", Level: "info"}
		if err := s.AddNotification(ctx, n); err != nil {
			t.Fatalf("AddNotification: %v", err)
		}
	}

	all, err := s.Notifications(ctx, "pc-1", notificationCap+100)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(all) != notificationCap {
		t.Fatalf("kept %d notifications, want %d", len(all), notificationCap)
	}
}

func TestScreenshotAndApps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ss := &Screenshot{Hostname: "pc-1", ImageURL: "data:image/jpeg;base64,abc"}
	if err := s.SetScreenshot(ctx, ss); err != nil {
		t.Fatalf("SetScreenshot: %v", err)
	}
	gotSS, err := s.GetScreenshot(ctx, "pc-1")
	if err != nil || gotSS == nil || gotSS.ImageURL != ss.ImageURL {
		t.Fatalf("GetScreenshot = %+v, %v", gotSS, err)
	}

	apps := &AppList{
		Hostname:     "pc-1",
		Applications: []Application{{Name: "chrome", PID: 1234, MemoryMB: 512}},
		BrowserTabs:  []BrowserTab{{Browser: "chrome", Title: "docs", URL: "https://example.com"}},
	}
	if err := s.SetApps(ctx, apps); err != nil {
		t.Fatalf("SetApps: %v", err)
	}
	gotApps, err := s.GetApps(ctx, "pc-1")
	if err != nil || gotApps == nil {
		t.Fatalf("GetApps: %+v, %v", gotApps, err)
	}
	if len(gotApps.Applications) != 1 || gotApps.Applications[0].Name != "chrome" {
		t.Fatalf("GetApps = %+v", gotApps)
	}
}
