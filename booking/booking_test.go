package booking

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagtee/go-client/api"
	"github.com/wagtee/go-client/chartcache"
	"github.com/wagtee/go-client/logger"
	"github.com/wagtee/go-client/tokens"
)

type call struct {
	method string
	uri    string
	auth   string
	body   string
}

// backend answers every request with the reply registered for its path, or 404.
type backend struct {
	mu      sync.Mutex
	calls   []call
	replies map[string]reply
}

type reply struct {
	status int
	body   any
	raw    []byte
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.calls = append(b.calls, call{method: r.Method, uri: r.URL.RequestURI(), auth: r.Header.Get("Authorization"), body: string(body)})
	rep, ok := b.replies[r.URL.Path]
	b.mu.Unlock()
	if !ok {
		rep = reply{status: http.StatusNotFound, body: map[string]any{"detail": "Not found."}}
	}
	if rep.raw != nil {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(rep.status)
		w.Write(rep.raw)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	json.NewEncoder(w).Encode(rep.body)
}

func (b *backend) on(path string, status int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies["/api"+path] = reply{status: status, body: body}
}

func (b *backend) all() []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]call(nil), b.calls...)
}

func (b *backend) last(t *testing.T) call {
	t.Helper()
	calls := b.all()
	require.NotEmpty(t, calls)
	return calls[len(calls)-1]
}

func newTestBooking(t *testing.T, opts ...Option) (*Client, *backend) {
	t.Helper()
	be := &backend{replies: map[string]reply{}}
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)
	noSleep := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	storage := tokens.NewMemory(tokens.Pair{Access: "access-1", Refresh: "refresh-1"})
	ac := api.New(srv.URL+"/api", storage, api.WithLogger(logger.NewTestLogger()), api.WithSleep(noSleep))
	return New(ac, opts...), be
}

func newTestCache(t *testing.T) *chartcache.Cache {
	t.Helper()
	c := chartcache.New(context.Background(), chartcache.WithCleanupInterval(time.Hour))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAuthPublicEndpointsSkipBearer(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/accounts/login/", http.StatusOK, map[string]any{
		"user":    map[string]any{"id": 7, "email": "a@b.c", "role": "business_owner"},
		"access":  "new-access",
		"refresh": "new-refresh",
	})
	ctx := context.Background()

	res := c.Auth.Login(ctx, LoginRequest{Email: "a@b.c", Password: "pw"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 7, res.Data.User.ID)
	assert.Equal(t, RoleBusinessOwner, res.Data.User.Role)
	assert.Equal(t, "new-access", res.Data.Access)

	got := be.last(t)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Empty(t, got.auth)
	assert.JSONEq(t, `{"email":"a@b.c","password":"pw"}`, got.body)

	// login does not persist tokens
	assert.Equal(t, "access-1", c.AccessToken(ctx))
}

func TestAuthPasswordResetConfirm(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/accounts/password-reset-confirm/", http.StatusOK, map[string]any{"message": "done"})

	res := c.Auth.ConfirmPasswordReset(context.Background(), "a@b.c", "tok", "pw1", "pw1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "done", res.Data.Message)
	assert.JSONEq(t, `{"email":"a@b.c","token":"tok","new_password":"pw1","confirm_password":"pw1"}`, be.last(t).body)
}

func TestAuthVerificationEndpoints(t *testing.T) {
	tests := []struct {
		name string
		path string
		call func(ctx context.Context, c *Client) api.Result[Message]
		body string
	}{
		{"send verification", "/accounts/send-email-verification/", func(ctx context.Context, c *Client) api.Result[Message] {
			return c.Auth.SendEmailVerification(ctx, "a@b.c")
		}, `{"email":"a@b.c"}`},
		{"verify email", "/accounts/verify-email/", func(ctx context.Context, c *Client) api.Result[Message] {
			return c.Auth.VerifyEmail(ctx, "a@b.c", "123456")
		}, `{"email":"a@b.c","verification_code":"123456"}`},
		{"request reset", "/accounts/password-reset/", func(ctx context.Context, c *Client) api.Result[Message] {
			return c.Auth.RequestPasswordReset(ctx, "a@b.c")
		}, `{"email":"a@b.c"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, be := newTestBooking(t)
			be.on(tt.path, http.StatusOK, map[string]any{"message": "sent"})

			res := tt.call(context.Background(), c)
			require.True(t, res.Success, res.Error)
			assert.Equal(t, "sent", res.Data.Message)
			got := be.last(t)
			assert.Equal(t, "/api"+tt.path, got.uri)
			assert.Empty(t, got.auth)
			assert.JSONEq(t, tt.body, got.body)
		})
	}
}

func TestAuthProfileAndLogoutSendBearer(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/accounts/profile/", http.StatusOK, map[string]any{"id": 1, "username": "owner"})
	be.on("/accounts/logout/", http.StatusOK, map[string]any{"message": "bye"})
	ctx := context.Background()

	require.True(t, c.Auth.Profile(ctx).Success)
	assert.Equal(t, "Bearer access-1", be.last(t).auth)

	require.True(t, c.Auth.Logout(ctx, "refresh-1").Success)
	got := be.last(t)
	assert.Equal(t, "Bearer access-1", got.auth)
	assert.JSONEq(t, `{"refresh":"refresh-1"}`, got.body)
}

func TestServicesEndpoints(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/base/services/", http.StatusOK, map[string]any{"count": 1, "results": []any{map[string]any{"id": 3, "name": "Cut", "price": 50, "duration": "PT30M"}}})
	be.on("/base/services/by-category/hair care/", http.StatusOK, []any{})
	be.on("/base/services/popular/", http.StatusOK, []any{map[string]any{"id": 3}})
	ctx := context.Background()

	page := c.Services.GetAll(ctx, map[string]any{"is_active": true})
	require.True(t, page.Success, page.Error)
	assert.Equal(t, "PT30M", page.Data.Results[0].Duration)
	assert.Equal(t, "/api/base/services/?is_active=true", be.last(t).uri)

	require.True(t, c.Services.ByCategory(ctx, "hair care").Success)
	assert.Equal(t, "/api/base/services/by-category/hair%20care/", be.last(t).uri)

	popular := c.Services.Popular(ctx, 5)
	require.True(t, popular.Success)
	assert.Len(t, popular.Data, 1)
	assert.Equal(t, "/api/base/services/popular/?limit=5", be.last(t).uri)

	c.Services.Popular(ctx, 0)
	assert.Equal(t, "/api/base/services/popular/", be.last(t).uri)
}

func TestBookingUpdateStatus(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/base/bookings/12/status/", http.StatusOK, map[string]any{"id": 12, "status": "cancelled"})
	ctx := context.Background()

	res := c.Bookings.UpdateStatus(ctx, 12, StatusCancelled, "customer asked")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, StatusCancelled, res.Data.Status)
	assert.True(t, res.Data.Status.Final())
	got := be.last(t)
	assert.Equal(t, http.MethodPatch, got.method)
	assert.JSONEq(t, `{"status":"cancelled","reason":"customer asked"}`, got.body)

	bad := c.Bookings.UpdateStatus(ctx, 12, BookingStatus("lost"), "")
	assert.False(t, bad.Success)
	assert.Equal(t, api.KindValidation, bad.Code)
	assert.ErrorIs(t, bad.Err(), api.ErrValidation)
	assert.Len(t, be.all(), 1)
}

func TestBookingCalendarEvents(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/base/bookings/calendar/", http.StatusOK, []any{map[string]any{"id": 1, "title": "Cut", "start": "2026-10-01T10:00:00"}})

	res := c.Bookings.CalendarEvents(context.Background(), "2026-10-01", "2026-10-31")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Cut", res.Data[0].Title)
	assert.Equal(t, "/api/base/bookings/calendar/?end_date=2026-10-31&start_date=2026-10-01", be.last(t).uri)
}

func TestBookingWritesInvalidateAnalytics(t *testing.T) {
	cache := newTestCache(t)
	c, be := newTestBooking(t, WithCache(cache))
	be.on("/base/bookings/", http.StatusCreated, map[string]any{"id": 1, "status": "pending"})
	ctx := context.Background()

	require.NoError(t, cache.SetAnalytics(chartcache.KindRevenue, "month", nil, map[string]any{"total": 10}))
	require.NoError(t, cache.SetChartConfig("line", nil, map[string]any{"color": "red"}))

	res := c.Bookings.Create(ctx, BookingInput{Service: 3, AppointmentDate: "2026-10-20", AppointmentTime: "10:00", Method: MethodWalkIn})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, cache.Len())
	_, ok := cache.GetChartConfig("line", nil)
	assert.True(t, ok)

	// failed writes leave the cache alone
	require.NoError(t, cache.SetAnalytics(chartcache.KindRevenue, "month", nil, map[string]any{"total": 10}))
	assert.False(t, c.Bookings.Delete(ctx, 99).Success)
	assert.Equal(t, 2, cache.Len())
}

func TestCustomerStats(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/base/customers/4/stats/", http.StatusOK, map[string]any{"total_bookings": 3, "total_spent": 150.5, "favorite_services": []any{}})

	res := c.Customers.Stats(context.Background(), 4)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 3, res.Data.TotalBookings)
	assert.Equal(t, 150.5, res.Data.TotalSpent)
}

func TestPublicFlow(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/base/public/business/2/service/5/slots/", http.StatusOK, []string{"09:00", "09:30"})
	be.on("/base/public/booking/", http.StatusCreated, map[string]any{"booking_id": "BK-1"})
	be.on("/base/public/booking/BK-1/", http.StatusOK, map[string]any{"id": 1, "booking_id": "BK-1", "status": "pending"})
	be.on("/base/public/booking/cancel/", http.StatusOK, map[string]any{"message": "cancelled"})
	ctx := context.Background()

	slots := c.Public.AvailableSlots(ctx, 2, 5, "2026-10-20")
	require.True(t, slots.Success, slots.Error)
	assert.Equal(t, []string{"09:00", "09:30"}, slots.Data)
	assert.Equal(t, "/api/base/public/business/2/service/5/slots/?date=2026-10-20", be.last(t).uri)

	ref := c.Public.CreateBooking(ctx, PublicBookingInput{Business: 2, Service: 5, CustomerName: "Sara", CustomerPhone: "+966500000000", AppointmentDate: "2026-10-20", AppointmentTime: "09:00"})
	require.True(t, ref.Success, ref.Error)
	assert.Equal(t, "BK-1", ref.Data.BookingID)

	got := c.Public.GetBooking(ctx, "BK-1", "+966500000000")
	require.True(t, got.Success, got.Error)
	assert.Equal(t, "/api/base/public/booking/BK-1/?phone=%2B966500000000", be.last(t).uri)

	cancel := c.Public.CancelBooking(ctx, "BK-1", "+966500000000", "")
	require.True(t, cancel.Success, cancel.Error)
	assert.JSONEq(t, `{"booking_id":"BK-1","phone":"+966500000000"}`, be.last(t).body)

	for _, call := range be.all() {
		assert.Empty(t, call.auth, call.uri)
	}
}

func TestPublicDirectory(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/base/public/businesses/", http.StatusOK, []map[string]any{{"id": 2, "name": "Salon"}})
	be.on("/base/public/business/2/services/", http.StatusOK, []map[string]any{{"id": 5, "name": "Haircut"}})
	ctx := context.Background()

	businesses := c.Public.Businesses(ctx, map[string]any{"city": "Riyadh", "search": ""})
	require.True(t, businesses.Success, businesses.Error)
	require.Len(t, businesses.Data, 1)
	assert.Equal(t, "Salon", businesses.Data[0].Name)
	assert.Equal(t, "/api/base/public/businesses/?city=Riyadh", be.last(t).uri)

	services := c.Public.BusinessServices(ctx, 2)
	require.True(t, services.Success, services.Error)
	require.Len(t, services.Data, 1)
	assert.Equal(t, "Haircut", services.Data[0].Name)

	for _, call := range be.all() {
		assert.Empty(t, call.auth, call.uri)
	}
}

func TestBusinessDashboard(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/base/dashboard/", http.StatusOK, map[string]any{"total_bookings": 12})

	res := c.Business.Dashboard(context.Background(), "week")
	require.True(t, res.Success, res.Error)
	assert.EqualValues(t, 12, res.Data["total_bookings"])
	assert.Equal(t, "/api/base/dashboard/?period=week", be.last(t).uri)
}

func TestAnalyticsServedFromCache(t *testing.T) {
	cache := newTestCache(t)
	c, be := newTestBooking(t, WithCache(cache))
	be.on("/base/analytics/", http.StatusOK, map[string]any{"revenue": map[string]any{"total": 100}})
	ctx := context.Background()

	first := c.Analytics.Analytics(ctx, "month", AnalyticsOptions{Charts: true})
	require.True(t, first.Success, first.Error)
	assert.Equal(t, "/api/base/analytics/?charts=true&heatmap=false&period=month&segments=false", be.last(t).uri)

	second := c.Analytics.Analytics(ctx, "month", AnalyticsOptions{Charts: true})
	require.True(t, second.Success)
	assert.Equal(t, first.Data, second.Data)
	assert.Len(t, be.all(), 1)

	c.Analytics.Analytics(ctx, "week", AnalyticsOptions{Charts: true})
	assert.Len(t, be.all(), 2)

	assert.Equal(t, 2, c.Analytics.Invalidate())
	c.Analytics.Analytics(ctx, "month", AnalyticsOptions{Charts: true})
	assert.Len(t, be.all(), 3)
}

func TestAnalyticsFailuresNotCached(t *testing.T) {
	cache := newTestCache(t)
	c, be := newTestBooking(t, WithCache(cache))
	be.on("/base/business-health/", http.StatusForbidden, map[string]any{"detail": "Upgrade required"})
	ctx := context.Background()

	res := c.Analytics.BusinessHealth(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, api.KindPermissionDenied, res.Code)
	assert.Equal(t, "Upgrade required", res.Error)
	assert.Equal(t, 0, cache.Len())

	c.Analytics.BusinessHealth(ctx)
	assert.Len(t, be.all(), 2)
}

func TestCustomerSegmentsCached(t *testing.T) {
	cache := newTestCache(t)
	c, be := newTestBooking(t, WithCache(cache))
	be.on("/base/customer-segments/", http.StatusOK, map[string]any{"vip": 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := c.Analytics.CustomerSegments(ctx)
		require.True(t, res.Success, res.Error)
		assert.EqualValues(t, 3, res.Data["vip"])
	}
	assert.Len(t, be.all(), 1)
	assert.True(t, cache.Has("analytics:segments"))
}

func TestRealtimeMetricsNotCached(t *testing.T) {
	cache := newTestCache(t)
	c, be := newTestBooking(t, WithCache(cache))
	be.on("/base/realtime-metrics/", http.StatusOK, map[string]any{"active": 2})
	ctx := context.Background()

	c.Analytics.RealtimeMetrics(ctx)
	c.Analytics.RealtimeMetrics(ctx)
	assert.Len(t, be.all(), 2)
	assert.Equal(t, 0, cache.Len())
}

func TestTypedAnalyticsFromCache(t *testing.T) {
	cache := newTestCache(t)
	c, be := newTestBooking(t, WithCache(cache))
	be.on("/base/activity-heatmap/", http.StatusOK, map[string]any{
		"year": 2026,
		"data": []any{map[string]any{"date": "2026-01-01", "bookings": 4, "revenue": 200, "intensity": 2}},
	})
	ctx := context.Background()

	first := c.Analytics.ActivityHeatmap(ctx, 2026)
	require.True(t, first.Success, first.Error)
	second := c.Analytics.ActivityHeatmap(ctx, 2026)
	require.True(t, second.Success)
	assert.Equal(t, 2026, second.Data.Year)
	assert.Equal(t, 4, second.Data.Data[0].Bookings)
	assert.Len(t, be.all(), 1)
	assert.Equal(t, 1, cache.InvalidatePeriod("year"))
}

func TestAnalyticsWithoutCache(t *testing.T) {
	c, be := newTestBooking(t)
	be.on("/base/service-performance/", http.StatusOK, map[string]any{"services": []any{}})
	ctx := context.Background()

	c.Analytics.ServicePerformance(ctx, "month")
	c.Analytics.ServicePerformance(ctx, "month")
	assert.Len(t, be.all(), 2)
	assert.Equal(t, 0, c.Analytics.PreWarm(ctx))
	assert.Equal(t, 0, c.Analytics.Invalidate())
}

func TestExportKeepsRawBytes(t *testing.T) {
	c, be := newTestBooking(t)
	be.mu.Lock()
	be.replies["/api/base/export-analytics/"] = reply{status: http.StatusOK, raw: []byte("date,revenue\n2026-10-01,100\n")}
	be.mu.Unlock()

	res := c.Analytics.Export(context.Background(), ExportCSV, "month", AnalyticsOptions{Charts: true})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "date,revenue\n2026-10-01,100\n", string(res.Data))
	assert.Equal(t, "/api/base/export-analytics/?charts=true&format=csv&period=month&raw_data=false", be.last(t).uri)
}

func TestPreWarmLoadsSections(t *testing.T) {
	cache := newTestCache(t)
	c, be := newTestBooking(t, WithCache(cache))
	be.on("/base/analytics/", http.StatusOK, map[string]any{
		"revenue":  map[string]any{"total": 100},
		"bookings": map[string]any{"total": 8},
	})

	// customers is missing from the report, so one of the five queries fails
	assert.Equal(t, 4, c.Analytics.PreWarm(context.Background()))
	data, ok := cache.GetAnalytics(chartcache.KindBookings, "week", nil)
	require.True(t, ok)
	assert.EqualValues(t, map[string]any{"total": float64(8)}, data)

	requests := len(be.all())
	section, err := c.Analytics.Section(context.Background(), chartcache.KindRevenue, "month")
	require.NoError(t, err)
	assert.EqualValues(t, map[string]any{"total": float64(100)}, section)
	assert.Len(t, be.all(), requests)
}

func TestSectionCachesOnMiss(t *testing.T) {
	cache := newTestCache(t)
	c, be := newTestBooking(t, WithCache(cache))
	be.on("/base/analytics/", http.StatusOK, map[string]any{"revenue": map[string]any{"total": 100}})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		section, err := c.Analytics.Section(ctx, chartcache.KindRevenue, "week")
		require.NoError(t, err)
		assert.EqualValues(t, map[string]any{"total": float64(100)}, section)
	}
	assert.Len(t, be.all(), 1)

	_, err := c.Analytics.Section(ctx, chartcache.KindCustomers, "week")
	assert.ErrorContains(t, err, "no customers section")
	assert.False(t, cache.Has(chartcache.AnalyticsKey(chartcache.KindCustomers, "week", nil)))
}

func TestTokenAccessors(t *testing.T) {
	c, _ := newTestBooking(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}).SignedString([]byte("k"))
	require.NoError(t, err)

	require.NoError(t, c.SetTokens(ctx, access, "refresh-2"))
	assert.Equal(t, access, c.AccessToken(ctx))
	assert.Equal(t, "refresh-2", c.RefreshToken(ctx))
	pair, err := c.API().Storage().Load(ctx)
	require.NoError(t, err)
	assert.True(t, exp.Equal(pair.ExpiresAt))

	require.NoError(t, c.ClearTokens(ctx))
	assert.Empty(t, c.AccessToken(ctx))
	assert.False(t, c.IsRefreshing())
	assert.False(t, c.ForceRefresh(ctx))
}
