package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/janisto/storytime-api/internal/app"
	"github.com/janisto/storytime-api/internal/config"
	"github.com/janisto/storytime-api/internal/domain"
	"github.com/janisto/storytime-api/internal/permission"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
	"github.com/janisto/storytime-api/internal/reminder"
	profilesvc "github.com/janisto/storytime-api/internal/service/profile"
)

const testUID = "user-1"

var testNow = time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(_ context.Context, userID string, req reminder.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, userID+"/"+req.Identifier)
	return nil
}

type fixture struct {
	profiles  *profilesvc.MockStore
	reminders *reminder.MockStore
	sender    *recordingSender
	open      opener
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		profiles:  profilesvc.NewMockStore(),
		reminders: reminder.NewMockStore(),
		sender:    &recordingSender{},
	}
	cfg := &config.Config{
		ReminderLead:     reminder.DefaultLead,
		ReminderBuffer:   reminder.DefaultBuffer,
		DispatchInterval: time.Minute,
	}
	f.open = func(context.Context) (*app.App, error) {
		return app.New(cfg, timeutil.FixedClock(testNow), f.profiles,
			permission.NewGate(permission.NewMockSource()), f.reminders, f.sender), nil
	}
	return f
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAutoUpdate(t *testing.T) {
	f := newFixture(t)
	dob := testNow.AddDate(0, -5, 0)
	f.profiles.Put(testUID, domain.Profile{
		Stage:       domain.StageNewborn,
		DateOfBirth: &dob,
		Interests:   []string{"Lullabies", "Gentle Rhymes", "Soft Colors"},
		LastUpdate:  testNow.AddDate(0, 0, -2),
	})

	out, err := execute(t, f.open, "auto-update", testUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got autoUpdateView
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("yaml unmarshal: %v\n%s", err, out)
	}
	want := autoUpdateView{
		UserID:      testUID,
		IsSuccess:   true,
		HasUpdates:  true,
		UpdateCount: 3,
		NewStage:    "infant",
		Stage:       "infant",
		Interests:   []string{"Peekaboo", "First Words", "Colors"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestAutoUpdateMissingProfileFails(t *testing.T) {
	f := newFixture(t)

	out, err := execute(t, f.open, "-o", "json", "auto-update", testUID)
	if err == nil {
		t.Fatal("expected error for missing profile")
	}

	var got autoUpdateView
	if jerr := json.Unmarshal([]byte(out[:strings.Index(out, "}")+1]), &got); jerr != nil {
		t.Fatalf("json unmarshal: %v\n%s", jerr, out)
	}
	if got.IsSuccess {
		t.Error("expected isSuccess false")
	}
}

func TestAutoUpdateCheck(t *testing.T) {
	f := newFixture(t)
	dob := testNow.AddDate(-2, 0, 0)
	f.profiles.Put(testUID, domain.Profile{
		Stage:       domain.StageToddler,
		DateOfBirth: &dob,
		Interests:   []string{"Animals", "Vehicles", "Music"},
		LastUpdate:  testNow.AddDate(0, 0, -3),
	})

	out, err := execute(t, f.open, "auto-update", "--check", testUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]any
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if got["needsAutoUpdate"] != false {
		t.Errorf("expected needsAutoUpdate false, got %v", got["needsAutoUpdate"])
	}
	if f.profiles.Saves() != 0 {
		t.Errorf("expected no saves, got %d", f.profiles.Saves())
	}
}

func TestRemindersStatusAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{reminder.StoryTimeIdentifier, reminder.DueDateIdentifier} {
		if err := f.reminders.Add(ctx, testUID, reminder.Request{Identifier: id, FireAt: testNow.Add(time.Hour)}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	out, err := execute(t, f.open, "reminders", "status", testUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got pendingView
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if len(got.Pending) != 2 {
		t.Fatalf("expected 2 pending, got %v", got.Pending)
	}

	out, err = execute(t, f.open, "reminders", "cancel", "--kind", "story-time", testUID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got = pendingView{}
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if diff := cmp.Diff([]string{reminder.DueDateIdentifier}, got.Pending); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}
}

func TestRemindersCancelRejectsUnknownKind(t *testing.T) {
	f := newFixture(t)

	if _, err := execute(t, f.open, "reminders", "cancel", "--kind", "weekly", testUID); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDispatchOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.reminders.Add(ctx, testUID, reminder.Request{
		Identifier: reminder.DueDateIdentifier,
		FireAt:     testNow.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := execute(t, f.open, "dispatch", "--once")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]int
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if got["delivered"] != 1 {
		t.Errorf("expected 1 delivered, got %d", got["delivered"])
	}
	if _, ok := f.reminders.Get(testUID, reminder.DueDateIdentifier); ok {
		t.Error("expected one-shot reminder removed after delivery")
	}
}

func TestUnsupportedOutput(t *testing.T) {
	f := newFixture(t)

	if _, err := execute(t, f.open, "-o", "xml", "reminders", "status", testUID); err == nil {
		t.Fatal("expected error for unsupported output")
	}
}

func TestOpenErrorPropagates(t *testing.T) {
	errOpen := errors.New("no credentials")
	open := func(context.Context) (*app.App, error) { return nil, errOpen }

	if _, err := execute(t, open, "reminders", "status", testUID); !errors.Is(err, errOpen) {
		t.Errorf("expected %v, got %v", errOpen, err)
	}
}
