package booking

import (
	"encoding/json"
	"time"

	cstr "github.com/wagtee/go-client/string"
)

type UserRole string

const (
	RoleBusinessOwner UserRole = "business_owner"
	RoleAdmin         UserRole = "admin"
	RoleSuperAdmin    UserRole = "super_admin"
)

type SubscriptionTier string

const (
	TierBasic    SubscriptionTier = "basic"
	TierStandard SubscriptionTier = "standard"
	TierPremium  SubscriptionTier = "premium"
)

type SubscriptionLimits struct {
	MaxServices         int  `json:"max_services"`
	MaxBookingsPerMonth int  `json:"max_bookings_per_month"`
	MaxCustomers        int  `json:"max_customers"`
	CanUseAnalytics     bool `json:"can_use_analytics"`
}

type SubscriptionStatus struct {
	Tier      SubscriptionTier   `json:"tier"`
	IsActive  bool               `json:"is_active"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
	Features  map[string]bool    `json:"features,omitempty"`
	Limits    SubscriptionLimits `json:"limits"`
}

type User struct {
	ID           int                 `json:"id"`
	Username     string              `json:"username"`
	Email        string              `json:"email"`
	PhoneNumber  string              `json:"phone_number,omitempty"`
	Role         UserRole            `json:"role"`
	IsVerified   bool                `json:"is_verified"`
	IsActive     bool                `json:"is_active"`
	BusinessName string              `json:"business_name,omitempty"`
	CRNumber     string              `json:"cr_number,omitempty"`
	VATNumber    string              `json:"vat_number,omitempty"`
	City         string              `json:"city,omitempty"`
	District     string              `json:"district,omitempty"`
	Subscription *SubscriptionStatus `json:"subscription,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type LoginRequest struct {
	Email    string            `json:"email"`
	Password cstr.MaskedString `json:"password"`
}

type RegisterRequest struct {
	Username        string            `json:"username,omitempty"`
	Email           string            `json:"email"`
	Password        cstr.MaskedString `json:"password"`
	ConfirmPassword cstr.MaskedString `json:"password_confirm,omitempty"`
	PhoneNumber     string            `json:"phone_number,omitempty"`
	BusinessName    string            `json:"business_name,omitempty"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	User    User   `json:"user"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type Message struct {
	Message string `json:"message"`
}

type DayHours struct {
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	IsClosed  bool   `json:"is_closed"`
}

type BusinessProfile struct {
	ID            int                 `json:"id"`
	User          json.RawMessage     `json:"user,omitempty"`
	ServiceType   string              `json:"service_type"`
	Description   string              `json:"description,omitempty"`
	DescriptionAr string              `json:"description_ar,omitempty"`
	Address       string              `json:"address"`
	AddressAr     string              `json:"address_ar,omitempty"`
	Latitude      *float64            `json:"latitude,omitempty"`
	Longitude     *float64            `json:"longitude,omitempty"`
	WorkingHours  map[string]DayHours `json:"working_hours,omitempty"`
	Images        []string            `json:"images,omitempty"`
	Rating        float64             `json:"rating"`
	IsActive      bool                `json:"is_active"`
	QRCode        string              `json:"qr_code,omitempty"`
}

type Service struct {
	ID            int             `json:"id"`
	Business      json.RawMessage `json:"business,omitempty"`
	Name          string          `json:"name"`
	NameAr        string          `json:"name_ar,omitempty"`
	Description   string          `json:"description,omitempty"`
	DescriptionAr string          `json:"description_ar,omitempty"`
	Category      string          `json:"category,omitempty"`
	Price         float64         `json:"price"`
	// Duration is an ISO 8601 duration such as "PT45M".
	Duration  string    `json:"duration"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type ServiceInput struct {
	Name          string  `json:"name"`
	NameAr        string  `json:"name_ar,omitempty"`
	Description   string  `json:"description,omitempty"`
	DescriptionAr string  `json:"description_ar,omitempty"`
	Category      string  `json:"category,omitempty"`
	Price         float64 `json:"price"`
	Duration      string  `json:"duration"`
	IsActive      *bool   `json:"is_active,omitempty"`
}

// ServicePatch is a partial update; nil fields are left unchanged.
type ServicePatch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Duration    *string  `json:"duration,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

type CustomerSegment string

const (
	SegmentNew      CustomerSegment = "new"
	SegmentRegular  CustomerSegment = "regular"
	SegmentVIP      CustomerSegment = "vip"
	SegmentInactive CustomerSegment = "inactive"
)

type Customer struct {
	ID              int             `json:"id"`
	PhoneNumber     string          `json:"phone_number"`
	Name            string          `json:"name"`
	Email           *string         `json:"email,omitempty"`
	DateOfBirth     *string         `json:"date_of_birth,omitempty"`
	Gender          *string         `json:"gender,omitempty"`
	Address         *string         `json:"address,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	Segment         CustomerSegment `json:"customer_segment,omitempty"`
	TotalBookings   int             `json:"total_bookings,omitempty"`
	TotalSpent      float64         `json:"total_spent,omitempty"`
	LastBookingDate *string         `json:"last_booking_date,omitempty"`
	Status          string          `json:"status,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

type CustomerInput struct {
	PhoneNumber string  `json:"phone_number"`
	Name        string  `json:"name"`
	Email       *string `json:"email,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	Address     *string `json:"address,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

type CustomerPatch struct {
	PhoneNumber *string `json:"phone_number,omitempty"`
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

type CustomerStats struct {
	TotalBookings    int       `json:"total_bookings"`
	TotalSpent       float64   `json:"total_spent"`
	AverageRating    float64   `json:"average_rating"`
	LastBookingDate  *string   `json:"last_booking_date,omitempty"`
	FavoriteServices []Service `json:"favorite_services"`
}

type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusNoShow     BookingStatus = "no_show"
)

// Valid reports whether s is a status the backend accepts.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Final reports whether no further transition is expected.
func (s BookingStatus) Final() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type BookingMethod string

const (
	MethodOnline BookingMethod = "online"
	MethodWalkIn BookingMethod = "walk_in"
	MethodPhone  BookingMethod = "phone"
	MethodQRScan BookingMethod = "qr_scan"
)

type Booking struct {
	ID              int             `json:"id"`
	BookingID       string          `json:"booking_id,omitempty"`
	Business        json.RawMessage `json:"business,omitempty"`
	Service         json.RawMessage `json:"service,omitempty"`
	Customer        *Customer       `json:"customer,omitempty"`
	AppointmentDate string          `json:"appointment_date"`
	AppointmentTime string          `json:"appointment_time"`
	Status          BookingStatus   `json:"status"`
	Method          BookingMethod   `json:"booking_method"`
	TotalPrice      float64         `json:"total_price"`
	Notes           string          `json:"notes,omitempty"`
	ReminderSent    bool            `json:"reminder_sent,omitempty"`
	QRCode          string          `json:"qr_code,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type BookingInput struct {
	Service         int           `json:"service"`
	Customer        *int          `json:"customer,omitempty"`
	CustomerName    string        `json:"customer_name,omitempty"`
	CustomerPhone   string        `json:"customer_phone,omitempty"`
	AppointmentDate string        `json:"appointment_date"`
	AppointmentTime string        `json:"appointment_time"`
	Method          BookingMethod `json:"booking_method,omitempty"`
	Notes           string        `json:"notes,omitempty"`
}

type BookingPatch struct {
	AppointmentDate *string        `json:"appointment_date,omitempty"`
	AppointmentTime *string        `json:"appointment_time,omitempty"`
	Status          *BookingStatus `json:"status,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
}

type CalendarEvent struct {
	ID     int            `json:"id"`
	Title  string         `json:"title"`
	Start  string         `json:"start"`
	End    string         `json:"end,omitempty"`
	Status BookingStatus  `json:"status,omitempty"`
	Extra  map[string]any `json:"extendedProps,omitempty"`
}

// PublicBookingInput is what an anonymous customer submits.
type PublicBookingInput struct {
	Business        int    `json:"business"`
	Service         int    `json:"service"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	Notes           string `json:"notes,omitempty"`
}

type BookingReference struct {
	BookingID string `json:"booking_id"`
}

type BusinessSummary struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	ServiceType string  `json:"service_type,omitempty"`
	Address     string  `json:"address,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
}

type HeatmapDay struct {
	Date      string  `json:"date"`
	Bookings  int     `json:"bookings"`
	Revenue   float64 `json:"revenue"`
	Intensity int     `json:"intensity"`
}

type ActivityHeatmap struct {
	Year  int          `json:"year"`
	Data  []HeatmapDay `json:"data"`
	Stats struct {
		TotalBookings    int     `json:"total_bookings"`
		TotalRevenue     float64 `json:"total_revenue"`
		AvgDailyBookings float64 `json:"avg_daily_bookings"`
		PeakDay          struct {
			Date     string `json:"date"`
			Bookings int    `json:"bookings"`
		} `json:"peak_day"`
	} `json:"stats"`
}

type ServicePerformanceEntry struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	NameAr          string  `json:"name_ar,omitempty"`
	Bookings        int     `json:"bookings"`
	Revenue         float64 `json:"revenue"`
	Rating          float64 `json:"rating"`
	ProfitMargin    float64 `json:"profit_margin"`
	EfficiencyScore float64 `json:"efficiency_score"`
	Trend           string  `json:"trend"`
}

type ServicePerformance struct {
	Services []ServicePerformanceEntry `json:"services"`
	Summary  struct {
		TopPerformer   string `json:"top_performer"`
		MostProfitable string `json:"most_profitable"`
		HighestRated   string `json:"highest_rated"`
		FastestGrowing string `json:"fastest_growing"`
	} `json:"summary"`
}

// Analytics is a free-form analytics payload keyed by section (revenue, bookings, charts...).
type Analytics map[string]any

// TokenPair is the refresh endpoint reply. Refresh is empty unless the server rotates.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}
