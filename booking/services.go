package booking

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wagtee/go-client/api"
	"github.com/wagtee/go-client/chartcache"
	"github.com/wagtee/go-client/resource"
)

// ServiceService manages the business' service catalogue.
type ServiceService struct {
	*resource.Resource[Service, ServiceInput, ServicePatch]
}

func (s *ServiceService) ByCategory(ctx context.Context, category string) api.Result[[]Service] {
	return api.Get[[]Service](ctx, s.Client(), s.Path()+"/by-category/"+url.PathEscape(category)+"/")
}

// Popular returns the most booked services. limit <= 0 leaves the server default.
func (s *ServiceService) Popular(ctx context.Context, limit int) api.Result[[]Service] {
	q := api.NewQuery()
	if limit > 0 {
		q.Add("limit", limit)
	}
	return api.Get[[]Service](ctx, s.Client(), s.Path()+"/popular/"+q.Build())
}

// BookingService manages bookings. Successful writes drop cached analytics.
type BookingService struct {
	*resource.Resource[Booking, BookingInput, BookingPatch]
	cache *chartcache.Cache
}

func (s *BookingService) invalidate(ok bool) {
	if ok && s.cache != nil {
		s.cache.InvalidateAnalytics()
	}
}

func (s *BookingService) Create(ctx context.Context, in BookingInput) api.Result[Booking] {
	res := s.Resource.Create(ctx, in)
	s.invalidate(res.Success)
	return res
}

func (s *BookingService) Update(ctx context.Context, id int, patch BookingPatch) api.Result[Booking] {
	res := s.Resource.Update(ctx, id, patch)
	s.invalidate(res.Success)
	return res
}

func (s *BookingService) Delete(ctx context.Context, id int) api.Result[struct{}] {
	res := s.Resource.Delete(ctx, id)
	s.invalidate(res.Success)
	return res
}

func (s *BookingService) BulkDelete(ctx context.Context, ids []int) api.Result[resource.DeleteCount] {
	res := s.Resource.BulkDelete(ctx, ids)
	s.invalidate(res.Success)
	return res
}

// UpdateStatus moves a booking to status. reason is optional.
func (s *BookingService) UpdateStatus(ctx context.Context, id int, status BookingStatus, reason string) api.Result[Booking] {
	if !status.Valid() {
		return api.Result[Booking]{Code: api.KindValidation, Error: fmt.Sprintf("invalid booking status %q", status)}
	}
	body := map[string]string{"status": string(status)}
	if reason != "" {
		body["reason"] = reason
	}
	res := api.Patch[Booking](ctx, s.Client(), s.ItemPath(id, "status"), body)
	s.invalidate(res.Success)
	return res
}

// CalendarEvents lists bookings between start and end (YYYY-MM-DD) as calendar events.
func (s *BookingService) CalendarEvents(ctx context.Context, start, end string) api.Result[[]CalendarEvent] {
	q := api.NewQuery().Add("start_date", start).Add("end_date", end)
	return api.Get[[]CalendarEvent](ctx, s.Client(), s.Path()+"/calendar/"+q.Build())
}

type CustomerService struct {
	*resource.Resource[Customer, CustomerInput, CustomerPatch]
}

func (s *CustomerService) Stats(ctx context.Context, id int) api.Result[CustomerStats] {
	return api.Get[CustomerStats](ctx, s.Client(), s.ItemPath(id, "stats"))
}

// PublicService is the unauthenticated customer-facing booking flow.
type PublicService struct {
	client *api.Client
}

func publicGet[T any](ctx context.Context, c *api.Client, path string) api.Result[T] {
	return api.Call[T](ctx, c, api.Request{Method: http.MethodGet, Path: path, SkipAuth: true})
}

func (s *PublicService) Businesses(ctx context.Context, filters map[string]any) api.Result[[]BusinessSummary] {
	return publicGet[[]BusinessSummary](ctx, s.client, "/base/public/businesses/"+api.QueryFrom(filters))
}

func (s *PublicService) Services(ctx context.Context, filters map[string]any) api.Result[[]Service] {
	return publicGet[[]Service](ctx, s.client, "/base/public/services/"+api.QueryFrom(filters))
}

func (s *PublicService) BusinessServices(ctx context.Context, businessID int) api.Result[[]Service] {
	return publicGet[[]Service](ctx, s.client, fmt.Sprintf("/base/public/business/%d/services/", businessID))
}

// AvailableSlots returns the free "HH:MM" slots for a service on date (YYYY-MM-DD).
func (s *PublicService) AvailableSlots(ctx context.Context, businessID, serviceID int, date string) api.Result[[]string] {
	path := fmt.Sprintf("/base/public/business/%d/service/%d/slots/", businessID, serviceID)
	return publicGet[[]string](ctx, s.client, path+api.NewQuery().Add("date", date).Build())
}

func (s *PublicService) CreateBooking(ctx context.Context, in PublicBookingInput) api.Result[BookingReference] {
	return api.Call[BookingReference](ctx, s.client, api.Request{
		Method:   http.MethodPost,
		Path:     "/base/public/booking/",
		Body:     in,
		SkipAuth: true,
	})
}

// GetBooking looks up a booking by its public reference. phone must match the booking.
func (s *PublicService) GetBooking(ctx context.Context, bookingID, phone string) api.Result[Booking] {
	path := "/base/public/booking/" + url.PathEscape(bookingID) + "/" + api.NewQuery().Add("phone", phone).Build()
	return publicGet[Booking](ctx, s.client, path)
}

func (s *PublicService) CancelBooking(ctx context.Context, bookingID, phone, reason string) api.Result[Message] {
	body := map[string]string{"booking_id": bookingID, "phone": phone}
	if reason != "" {
		body["reason"] = reason
	}
	return api.Call[Message](ctx, s.client, api.Request{
		Method:   http.MethodPost,
		Path:     "/base/public/booking/cancel/",
		Body:     body,
		SkipAuth: true,
	})
}

type BusinessService struct {
	client *api.Client
}

func (s *BusinessService) Profile(ctx context.Context) api.Result[BusinessProfile] {
	return api.Get[BusinessProfile](ctx, s.client, "/accounts/business-profile/")
}

func (s *BusinessService) UpdateProfile(ctx context.Context, patch map[string]any) api.Result[BusinessProfile] {
	return api.Patch[BusinessProfile](ctx, s.client, "/accounts/business-profile/", patch)
}

// Dashboard returns the dashboard counters for period (today, week, month, year).
func (s *BusinessService) Dashboard(ctx context.Context, period string) api.Result[Analytics] {
	return api.Get[Analytics](ctx, s.client, "/base/dashboard/"+api.NewQuery().Add("period", period).Build())
}

func (s *BookingService) BulkUpdate(ctx context.Context, ids []int, patch BookingPatch) api.Result[resource.UpdateCount] {
	res := s.Resource.BulkUpdate(ctx, ids, patch)
	s.invalidate(res.Success)
	return res
}
