package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/storytime-api/internal/domain"
	"github.com/janisto/storytime-api/internal/permission"
	"github.com/janisto/storytime-api/internal/platform/auth"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
	appmiddleware "github.com/janisto/storytime-api/internal/platform/middleware"
	"github.com/janisto/storytime-api/internal/platform/respond"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
	"github.com/janisto/storytime-api/internal/reminder"
	"github.com/janisto/storytime-api/internal/service/lifecycle"
	profilesvc "github.com/janisto/storytime-api/internal/service/profile"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const testUID = "test-user-123"

// failingStore fails every call with err.
type failingStore struct{ err error }

func (f failingStore) Create(context.Context, string, domain.Profile) (*domain.Profile, error) {
	return nil, f.err
}

func (f failingStore) Get(context.Context, string) (*domain.Profile, error) { return nil, f.err }

func (f failingStore) Update(context.Context, string, profilesvc.UpdateParams) (*domain.Profile, error) {
	return nil, f.err
}

func (f failingStore) Save(context.Context, string, domain.Profile) error { return f.err }

func (f failingStore) Delete(context.Context, string) error { return f.err }

type testEnv struct {
	router    chi.Router
	lc        *lifecycle.Service
	perms     *permission.MockSource
	reminders *reminder.MockStore
}

func newTestEnv(t *testing.T, store profilesvc.Store, verifier auth.Verifier) *testEnv {
	t.Helper()
	clock := timeutil.FixedClock(testNow)
	perms := permission.NewMockSource()
	reminders := reminder.NewMockStore()
	lc := lifecycle.NewService(store, permission.NewGate(perms), reminder.NewScheduler(reminders, clock), clock)

	router := chi.NewRouter()
	router.Use(
		appmiddleware.RequestID(),
		chimiddleware.RealIP,
		applog.RequestLogger(),
		respond.Recoverer(),
	)
	api := humachi.New(router, huma.DefaultConfig("ProfileTest", "test"))
	api.UseMiddleware(auth.NewAuthMiddleware(api, verifier))
	Register(api, store, lc, clock)
	return &testEnv{router: router, lc: lc, perms: perms, reminders: reminders}
}

func authed() auth.Verifier {
	return &auth.MockVerifier{User: auth.TestUser()}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer valid-token")
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func toddler() domain.Profile {
	dob := testNow.AddDate(-2, 0, 0)
	return domain.Profile{
		ChildName:   "Mia",
		Stage:       domain.StageToddler,
		DateOfBirth: &dob,
		Interests:   []string{"Animals", "Vehicles", "Music"},
		StoryTime:   domain.DefaultStoryTime,
		LastUpdate:  testNow.AddDate(0, 0, -1),
		CreatedAt:   testNow.AddDate(0, -1, 0),
	}
}

func decodeProfile(t *testing.T, resp *httptest.ResponseRecorder) Profile {
	t.Helper()
	var p Profile
	if err := json.Unmarshal(resp.Body.Bytes(), &p); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	return p
}

func TestCreateProfileDerivesStage(t *testing.T) {
	store := profilesvc.NewMockStore()
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodPost, "/profile",
		`{"childName":"Mia","dateOfBirth":"2025-01-10","timeZone":"Europe/Helsinki"}`)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if location := resp.Header().Get("Location"); location != "/v1/profile" {
		t.Errorf("expected Location /v1/profile, got %s", location)
	}

	p := decodeProfile(t, resp)
	if p.Stage != "infant" {
		t.Errorf("expected stage infant, got %s", p.Stage)
	}
	want := []string{"Peekaboo", "First Words", "Colors"}
	if strings.Join(p.Interests, ",") != strings.Join(want, ",") {
		t.Errorf("expected default interests %v, got %v", want, p.Interests)
	}
	if p.StoryTime.Hour != 19 || p.StoryTime.Minute != 30 {
		t.Errorf("expected default story time 19:30, got %02d:%02d", p.StoryTime.Hour, p.StoryTime.Minute)
	}
}

func TestCreateProfilePregnancySchedulesDueDate(t *testing.T) {
	store := profilesvc.NewMockStore()
	env := newTestEnv(t, store, authed())
	env.perms.Set(testUID, permission.StatusAuthorized)

	resp := env.do(http.MethodPost, "/profile", `{"dueDate":"2025-08-01"}`)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if p := decodeProfile(t, resp); p.Stage != "pregnancy" {
		t.Errorf("expected stage pregnancy, got %s", p.Stage)
	}
	if _, ok := env.reminders.Get(testUID, reminder.DueDateIdentifier); !ok {
		t.Error("expected due-date reminder scheduled")
	}
}

func TestCreateProfileValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no dates", `{"childName":"Mia"}`},
		{"both dates", `{"dateOfBirth":"2024-01-01","dueDate":"2025-08-01"}`},
		{"future birth", `{"dateOfBirth":"2026-01-01"}`},
		{"past due date", `{"dueDate":"2025-06-05"}`},
		{"unknown time zone", `{"dateOfBirth":"2024-01-01","timeZone":"Mars/Olympus"}`},
		{"interest outside stage", `{"dateOfBirth":"2024-01-01","interests":["Dinosaurs"]}`},
		{"story time out of range", `{"dateOfBirth":"2024-01-01","storyTime":{"hour":24,"minute":0}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, profilesvc.NewMockStore(), authed())
			resp := env.do(http.MethodPost, "/profile", tt.body)
			if resp.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", resp.Code, resp.Body.String())
			}
			var problem huma.ErrorModel
			if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
				t.Fatalf("json unmarshal: %v", err)
			}
			if problem.Status != http.StatusUnprocessableEntity {
				t.Errorf("expected status 422, got %d", problem.Status)
			}
		})
	}
}

func TestCreateProfileConflict(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodPost, "/profile", `{"dateOfBirth":"2024-01-01"}`)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateProfileUnauthorized(t *testing.T) {
	env := newTestEnv(t, profilesvc.NewMockStore(), &auth.MockVerifier{Error: auth.ErrInvalidToken})

	resp := env.do(http.MethodPost, "/profile", `{"dateOfBirth":"2024-01-01"}`)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if resp.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Errorf("expected WWW-Authenticate Bearer")
	}
}

func TestGetProfileSuccess(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodGet, "/profile", "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	p := decodeProfile(t, resp)
	if p.ID != testUID {
		t.Errorf("expected id %s, got %s", testUID, p.ID)
	}
	if p.ChildName != "Mia" {
		t.Errorf("expected name Mia, got %s", p.ChildName)
	}
	if p.DueDate != nil {
		t.Errorf("expected no due date, got %v", p.DueDate)
	}
}

func TestGetProfileCBOR(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	req.Header.Set("Accept", "application/cbor")
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/cbor" {
		t.Fatalf("expected application/cbor, got %q", ct)
	}
	var p struct {
		Stage     string   `cbor:"stage"`
		Interests []string `cbor:"interests"`
	}
	if err := cbor.Unmarshal(resp.Body.Bytes(), &p); err != nil {
		t.Fatalf("cbor unmarshal: %v", err)
	}
	if p.Stage != "toddler" {
		t.Errorf("expected stage toddler, got %s", p.Stage)
	}
	if len(p.Interests) != 3 {
		t.Errorf("expected 3 interests, got %v", p.Interests)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	env := newTestEnv(t, profilesvc.NewMockStore(), authed())

	resp := env.do(http.MethodGet, "/profile", "")

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestUpdateProfileSuccess(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodPatch, "/profile", `{"childName":"Leo","interests":["Nature","Animals"]}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	p := decodeProfile(t, resp)
	if p.ChildName != "Leo" {
		t.Errorf("expected name Leo, got %s", p.ChildName)
	}
	if strings.Join(p.Interests, ",") != "Nature,Animals" {
		t.Errorf("expected interests [Nature Animals], got %v", p.Interests)
	}
}

func TestUpdateProfileRejectsInterestOutsideStage(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodPatch, "/profile", `{"interests":["Animals","Peekaboo"]}`)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.Code, resp.Body.String())
	}
	var problem huma.ErrorModel
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if len(problem.Errors) != 1 || problem.Errors[0].Location != "body.interests[1]" {
		t.Errorf("expected one error at body.interests[1], got %+v", problem.Errors)
	}
}

func TestUpdateProfileRequiresField(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodPatch, "/profile", `{}`)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestUpdateProfileStoryTimeReschedulesReminder(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())
	env.perms.Set(testUID, permission.StatusAuthorized)
	_ = env.reminders.Add(context.Background(), testUID, reminder.Request{
		Identifier: reminder.StoryTimeIdentifier,
		Hour:       19,
		Minute:     30,
		Repeats:    true,
	})

	resp := env.do(http.MethodPatch, "/profile", `{"storyTime":{"hour":20,"minute":15}}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	req, ok := env.reminders.Get(testUID, reminder.StoryTimeIdentifier)
	if !ok {
		t.Fatal("expected story-time reminder to remain scheduled")
	}
	if req.Hour != 20 || req.Minute != 15 {
		t.Errorf("expected reminder moved to 20:15, got %02d:%02d", req.Hour, req.Minute)
	}
}

func TestUpdateProfileTimeZoneKeepsScheduledStoryTime(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())
	env.perms.Set(testUID, permission.StatusAuthorized)
	if !env.lc.ScheduleStoryTimeReminder(context.Background(), testUID, domain.TimeOfDay{Hour: 21}, "") {
		t.Fatal("expected story-time reminder scheduled")
	}

	resp := env.do(http.MethodPatch, "/profile", `{"timeZone":"Europe/Helsinki"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if p := decodeProfile(t, resp); p.StoryTime.Hour != 21 || p.StoryTime.Minute != 0 {
		t.Errorf("expected story time 21:00, got %02d:%02d", p.StoryTime.Hour, p.StoryTime.Minute)
	}
	req, ok := env.reminders.Get(testUID, reminder.StoryTimeIdentifier)
	if !ok {
		t.Fatal("expected story-time reminder to remain scheduled")
	}
	if req.Hour != 21 || req.Minute != 0 || req.TimeZone != "Europe/Helsinki" {
		t.Errorf("expected 21:00 Europe/Helsinki, got %02d:%02d %s", req.Hour, req.Minute, req.TimeZone)
	}
}

func TestUpdateProfileNotFound(t *testing.T) {
	env := newTestEnv(t, profilesvc.NewMockStore(), authed())

	resp := env.do(http.MethodPatch, "/profile", `{"childName":"Leo"}`)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestDeleteProfileCancelsReminders(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())
	ctx := context.Background()
	_ = env.reminders.Add(ctx, testUID, reminder.Request{Identifier: reminder.StoryTimeIdentifier})
	_ = env.reminders.Add(ctx, testUID, reminder.Request{Identifier: reminder.DueDateIdentifier})

	resp := env.do(http.MethodDelete, "/profile", "")

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	ids, _ := env.reminders.Pending(ctx, testUID)
	if len(ids) != 0 {
		t.Errorf("expected reminders cancelled, got %v", ids)
	}

	resp = env.do(http.MethodDelete, "/profile", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.Code)
	}
}

func TestGetAutoUpdateStatus(t *testing.T) {
	store := profilesvc.NewMockStore()
	p := toddler()
	p.LastUpdate = testNow.AddDate(0, 0, -45)
	store.Put(testUID, p)
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodGet, "/profile/auto-update", "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var status AutoUpdateStatus
	if err := json.Unmarshal(resp.Body.Bytes(), &status); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if !status.NeedsAutoUpdate {
		t.Error("expected stale profile to need an update")
	}
}

func TestPerformAutoUpdate(t *testing.T) {
	store := profilesvc.NewMockStore()
	dob := testNow.AddDate(0, -5, 0)
	store.Put(testUID, domain.Profile{
		Stage:       domain.StageNewborn,
		DateOfBirth: &dob,
		Interests:   []string{"Lullabies", "Animals"},
		LastUpdate:  testNow.AddDate(0, 0, -3),
	})
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodPost, "/profile/auto-update", "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var result AutoUpdateResult
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if !result.IsSuccess || !result.HasUpdates {
		t.Errorf("expected successful update, got %+v", result)
	}
	if result.NewStage != "infant" {
		t.Errorf("expected new stage infant, got %q", result.NewStage)
	}
	if result.Profile == nil || strings.Join(result.Profile.Interests, ",") != "Peekaboo,First Words,Colors" {
		t.Errorf("expected reconciled interests, got %+v", result.Profile)
	}
}

func TestPerformAutoUpdateNoChanges(t *testing.T) {
	store := profilesvc.NewMockStore()
	store.Put(testUID, toddler())
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodPost, "/profile/auto-update", "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var result AutoUpdateResult
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if !result.IsSuccess || result.HasUpdates || result.UpdateCount != 0 {
		t.Errorf("expected no-op result, got %+v", result)
	}
	if store.Saves() != 0 {
		t.Errorf("expected no saves, got %d", store.Saves())
	}
}

func TestPerformAutoUpdatePersistenceFailure(t *testing.T) {
	store := profilesvc.NewMockStore()
	p := toddler()
	p.LastUpdate = testNow.AddDate(0, 0, -45)
	store.Put(testUID, p)
	store.SaveErr = errors.New("firestore unavailable")
	env := newTestEnv(t, store, authed())

	resp := env.do(http.MethodPost, "/profile/auto-update", "")

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestProfileInternalServerErrors(t *testing.T) {
	env := newTestEnv(t, failingStore{err: errors.New("database unavailable")}, authed())

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/profile", `{"dateOfBirth":"2024-01-01"}`},
		{http.MethodGet, "/profile", ""},
		{http.MethodPatch, "/profile", `{"childName":"Leo"}`},
		{http.MethodDelete, "/profile", ""},
		{http.MethodGet, "/profile/auto-update", ""},
		{http.MethodPost, "/profile/auto-update", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := env.do(tt.method, tt.path, tt.body)
			if resp.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d: %s", resp.Code, resp.Body.String())
			}
			var problem huma.ErrorModel
			if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
				t.Fatalf("json unmarshal: %v", err)
			}
			if problem.Detail != "internal error" {
				t.Errorf("expected generic detail, got %q", problem.Detail)
			}
		})
	}
}
