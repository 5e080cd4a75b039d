package ginserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/guard"
	"rentdesk/internal/app/handlers"
	"rentdesk/internal/app/middleware"
	calendarsvc "rentdesk/internal/app/services/calendar"
	"rentdesk/internal/app/services/quoting"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/rates"
	"rentdesk/internal/domain/rules"
	"rentdesk/internal/domain/shared/daterange"
	memlocks "rentdesk/internal/infra/locks/memory"
	"rentdesk/internal/infra/obs"
	"rentdesk/internal/infra/storage/memory"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewFactory()
	clock := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	g := &guard.Guard{Locker: memlocks.NewLocker(), Factory: store, Timeout: time.Second, Now: clock}
	box := memory.NewOutbox()
	svc := &calendarsvc.Service{
		Factory: store,
		Guard:   g,
		Quotes:  &quoting.Service{Factory: store, Clock: clock},
		Outbox:  box,
		Clock:   clock,
	}
	buses := handlers.Build(handlers.Deps{
		Factory:     store,
		Calendar:    svc,
		Guard:       g,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Outbox:      box,
		Clock:       clock,
	})
	h := Handlers{
		Calendar: CalendarHandler{Commands: buses.Commands, Queries: buses.Queries},
		Rates:    RatesHandler{Commands: buses.Commands, Queries: buses.Queries},
	}
	router := NewRouter(Options{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, h)

	rec := do(t, router, http.MethodPut, "/api/v1/units/u-1", "admin", map[string]any{
		"name": "Loft", "capacity": 2, "base_nightly_cents": 10000, "currency": "USD",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed unit: %d %s", rec.Code, rec.Body.String())
	}
	return router
}

func do(t *testing.T, router http.Handler, method, path, actor string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(obs.HeaderActorID, actor)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

type bookingBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  struct {
		Amount int64 `json:"amount"`
	} `json:"total"`
}

func booking(checkIn, checkOut string) map[string]any {
	return map[string]any{
		"unit_id":  "u-1",
		"checkin":  checkIn,
		"checkout": checkOut,
		"adults":   2,
		"guest":    map[string]string{"name": "Ada"},
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)
	if rec := do(t, router, http.MethodGet, "/livez", "", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("livez = %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/readyz", "", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
}

func TestBookingLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/bookings", "staff-1", booking("2024-02-01", "2024-02-04"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[bookingBody](t, rec)
	if created.Status != "CONFIRMED" || created.Total.Amount != 30000 {
		t.Fatalf("unexpected booking %+v", created)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/bookings", "staff-2", booking("2024-02-03", "2024-02-05"), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlap: expected 409, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPut, "/api/v1/bookings/"+created.ID+"/dates", "staff-1",
		map[string]string{"checkin": "2024-02-02", "checkout": "2024-02-06"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule: %d %s", rec.Code, rec.Body.String())
	}
	if moved := decode[bookingBody](t, rec); moved.Total.Amount != 40000 {
		t.Fatalf("reschedule should requote, got %+v", moved)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/bookings/"+created.ID+"/cancel", "staff-1", nil, nil)
	if rec.Code != http.StatusOK || decode[bookingBody](t, rec).Status != "CANCELLED" {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/v1/bookings", "staff-2", booking("2024-02-03", "2024-02-05"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("dates should be free after cancel: %d %s", rec.Code, rec.Body.String())
	}
}

func TestConfirmPendingBooking(t *testing.T) {
	router := newTestRouter(t)
	body := booking("2024-04-01", "2024-04-03")
	body["pending"] = true

	rec := do(t, router, http.MethodPost, "/api/v1/bookings", "staff-1", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[bookingBody](t, rec)
	if created.Status != "PENDING" {
		t.Fatalf("expected PENDING, got %+v", created)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/bookings", "staff-2", booking("2024-04-02", "2024-04-04"), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("pending booking should hold its dates: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/v1/bookings/"+created.ID+"/confirm", "staff-1", nil, nil)
	if rec.Code != http.StatusOK || decode[bookingBody](t, rec).Status != "CONFIRMED" {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/v1/bookings/"+created.ID+"/confirm", "staff-1", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second confirm: expected 400, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateBookingHonoursIdempotencyKey(t *testing.T) {
	router := newTestRouter(t)
	headers := map[string]string{headerIdempotencyKey: "req-42"}

	first := do(t, router, http.MethodPost, "/api/v1/bookings", "staff-1", booking("2024-03-01", "2024-03-03"), headers)
	second := do(t, router, http.MethodPost, "/api/v1/bookings", "staff-1", booking("2024-03-01", "2024-03-03"), headers)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("codes %d %d: %s", first.Code, second.Code, second.Body.String())
	}
	if a, b := decode[bookingBody](t, first).ID, decode[bookingBody](t, second).ID; a != b {
		t.Fatalf("replay returned a different booking: %s vs %s", a, b)
	}
}

func TestRequestErrors(t *testing.T) {
	router := newTestRouter(t)
	cases := []struct {
		name   string
		method string
		path   string
		actor  string
		body   any
		want   int
	}{
		{"missing actor", http.MethodPost, "/api/v1/bookings", "", booking("2024-02-01", "2024-02-03"), http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/v1/bookings", "s", booking("2024-02-31", "2024-03-03"), http.StatusBadRequest},
		{"reversed range", http.MethodPost, "/api/v1/bookings", "s", booking("2024-02-05", "2024-02-03"), http.StatusBadRequest},
		{"no adults", http.MethodPost, "/api/v1/bookings", "s", map[string]any{"unit_id": "u-1", "checkin": "2024-02-01", "checkout": "2024-02-03"}, http.StatusBadRequest},
		{"unknown unit quote", http.MethodGet, "/api/v1/units/nope/quote?checkin=2024-02-01&checkout=2024-02-03", "", nil, http.StatusNotFound},
		{"quote without dates", http.MethodGet, "/api/v1/units/u-1/quote", "", nil, http.StatusBadRequest},
		{"unknown booking cancel", http.MethodPost, "/api/v1/bookings/missing/cancel", "s", nil, http.StatusNotFound},
		{"unknown block delete", http.MethodDelete, "/api/v1/blocks/missing", "s", nil, http.StatusNotFound},
		{"invalid rule", http.MethodPost, "/api/v1/rate-rules", "s", map[string]any{"name": "x", "type": "bogus"}, http.StatusBadRequest},
		{"bad unit", http.MethodPut, "/api/v1/units/u-2", "s", map[string]any{"name": "x", "capacity": 0, "currency": "USD"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, tc.method, tc.path, tc.actor, tc.body, nil)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestQuoteAndCalendar(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/units/u-1/quote?checkin=2024-02-01&checkout=2024-02-03", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote: %d %s", rec.Code, rec.Body.String())
	}
	quote := decode[struct {
		Nights     int   `json:"nights"`
		TotalCents int64 `json:"total_cents"`
	}](t, rec)
	if quote.Nights != 2 || quote.TotalCents != 20000 {
		t.Fatalf("unexpected quote %+v", quote)
	}

	do(t, router, http.MethodPost, "/api/v1/bookings", "staff", booking("2024-02-01", "2024-02-03"), nil)
	rec = do(t, router, http.MethodPost, "/api/v1/units/u-1/blocks", "staff",
		map[string]string{"start": "2024-02-05", "end": "2024-02-07", "reason": "repairs"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("block: %d %s", rec.Code, rec.Body.String())
	}
	blockID := decode[struct {
		ID string `json:"id"`
	}](t, rec).ID

	rec = do(t, router, http.MethodGet, "/api/v1/units/u-1/calendar?from=2024-02-01&to=2024-02-10", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar: %d %s", rec.Code, rec.Body.String())
	}
	cal := decode[struct {
		Entries []struct {
			Kind string `json:"kind"`
		} `json:"entries"`
	}](t, rec)
	if len(cal.Entries) != 2 || cal.Entries[0].Kind != "booking" || cal.Entries[1].Kind != "block" {
		t.Fatalf("unexpected calendar %s", rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/v1/bookings", "staff", booking("2024-02-06", "2024-02-08"), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("booking over a block: expected 409, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodDelete, "/api/v1/blocks/"+blockID, "staff", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete block: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodPost, "/api/v1/bookings", "staff", booking("2024-02-06", "2024-02-08"), nil); rec.Code != http.StatusCreated {
		t.Fatalf("booking after block removal: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRateAdministration(t *testing.T) {
	router := newTestRouter(t)

	band := map[string]any{"start_date": "2024-06-01", "end_date": "2024-07-01", "weekday_price_cents": 15000, "min_stay": 2}
	rec := do(t, router, http.MethodPost, "/api/v1/units/u-1/rate-bands", "admin", band, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("band: %d %s", rec.Code, rec.Body.String())
	}
	overlapping := map[string]any{"start_date": "2024-06-15", "end_date": "2024-07-15", "weekday_price_cents": 9000}
	if rec := do(t, router, http.MethodPost, "/api/v1/units/u-1/rate-bands", "admin", overlapping, nil); rec.Code != http.StatusConflict {
		t.Fatalf("overlapping band: expected 409, got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodGet, "/api/v1/units/u-1/rate-bands", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list bands: %d", rec.Code)
	}
	if items := decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, rec).Items; len(items) != 1 {
		t.Fatalf("expected 1 band, got %d", len(items))
	}

	rule := map[string]any{"name": "weekend uplift", "type": "weekday", "adjustment_percent": 20, "weekday": map[string]any{"days": []int{5, 6}}, "active": true}
	rec = do(t, router, http.MethodPost, "/api/v1/rate-rules", "admin", rule, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("rule: %d %s", rec.Code, rec.Body.String())
	}
	ruleID := decode[struct {
		ID string `json:"id"`
	}](t, rec).ID
	if rec := do(t, router, http.MethodGet, "/api/v1/rate-rules?active=true", "", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("list rules: %d", rec.Code)
	}
	if rec := do(t, router, http.MethodDelete, "/api/v1/rate-rules/"+ruleID, "admin", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete rule: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodDelete, "/api/v1/rate-rules/"+ruleID, "admin", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	r, _ := daterange.Parse("2024-01-01", "2024-01-02")
	cases := []struct {
		err  error
		want int
	}{
		{availability.NotFound("booking", "b"), http.StatusNotFound},
		{availability.Invalid("bad"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", middleware.ErrInvalidMessage), http.StatusBadRequest},
		{middleware.ErrActorRequired, http.StatusBadRequest},
		{&rules.ValidationError{Reason: "x"}, http.StatusBadRequest},
		{rates.ErrInvalidBand, http.StatusBadRequest},
		{&availability.ConflictError{UnitID: "u", Range: r, Kind: availability.KindBooking}, http.StatusConflict},
		{rates.ErrBandOverlap, http.StatusConflict},
		{fmt.Errorf("store: %w", uow.ErrConcurrentUpdate), http.StatusConflict},
		{fmt.Errorf("%w: unit u", guard.ErrLockTimeout), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
