package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wagtee/go-client/api"
	"github.com/wagtee/go-client/booking"
	"github.com/wagtee/go-client/chartcache"
	"github.com/wagtee/go-client/config"
	"github.com/wagtee/go-client/env"
	cstr "github.com/wagtee/go-client/string"
	"github.com/wagtee/go-client/tui"
)

// newRootCmd builds the command tree. The returned cleanup closes whatever the
// command opened and must run even when the command fails.
func newRootCmd(environ []string) (*cobra.Command, func() error) {
	var a *app
	root := &cobra.Command{
		Use:           "wagtee",
		Short:         "Command line client for the Wagtee booking API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			var err error
			a, err = newApp(cmd, environ)
			return err
		},
	}
	config.AddFlags(root)
	root.PersistentFlags().String("otlp-url", "", "OTLP collector for trace export (env WAGTEE_OTLP_URL)")
	root.PersistentFlags().String("otlp-token", "", "bearer token for the OTLP collector (env WAGTEE_OTLP_TOKEN)")

	get := func() *app { return a }
	root.AddCommand(
		loginCmd(get, environ),
		logoutCmd(get),
		whoamiCmd(get),
		refreshCmd(get),
		getCmd(get),
		servicesCmd(get),
		bookingsCmd(get),
		analyticsCmd(get),
		cacheStatsCmd(get),
		configCmd(environ),
		versionCmd(),
	)
	cleanup := func() error {
		if a == nil {
			return nil
		}
		return a.Close()
	}
	return root, cleanup
}

func printJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = w.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func lookupEnviron(environ []string, key string) string {
	for _, kv := range environ {
		if v := env.ParseLine(kv); v.Key == key {
			return v.Val
		}
	}
	return ""
}

func loginCmd(get func() *app, environ []string) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			var err error
			if email == "" {
				if email, err = tui.Input("Email", ""); err != nil {
					return errors.Wrap(err, "--email is required without a terminal")
				}
			}
			password := lookupEnviron(environ, env.Prefix+"PASSWORD")
			if password == "" {
				if password, err = tui.Password("Password"); err != nil {
					return errors.Wrap(err, "set "+env.Prefix+"PASSWORD without a terminal")
				}
			}
			user, err := a.session.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.log.Debug("access token %s", cstr.Mask(a.client.AccessToken(cmd.Context())))
			tui.ShowSuccess(cmd.OutOrStdout(), "signed in as %s (session expires %s)", user.Email, a.session.ExpiresAt().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func logoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and remove stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := get().session.Logout(cmd.Context()); err != nil {
				return err
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func whoamiCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			u := a.session.User()
			rows := [][]string{
				{"id", strconv.Itoa(u.ID)},
				{"email", u.Email},
				{"username", u.Username},
				{"role", string(u.Role)},
				{"business", u.BusinessName},
				{"expires", a.session.ExpiresAt().Format(time.RFC3339)},
			}
			if u.Subscription != nil {
				rows = append(rows, []string{"plan", string(u.Subscription.Tier)})
			}
			tui.Table(cmd.OutOrStdout(), []string{"FIELD", "VALUE"}, rows)
			return nil
		},
	}
}

func refreshCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if !a.client.ForceRefresh(cmd.Context()) {
				return errors.New("token refresh failed, run: wagtee login")
			}
			pair, err := a.client.API().Storage().Load(cmd.Context())
			if err != nil {
				return err
			}
			msg := "access token refreshed"
			if !pair.ExpiresAt.IsZero() {
				msg += ", expires " + pair.ExpiresAt.Format(time.RFC3339)
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "%s", msg)
			return nil
		},
	}
}

func getCmd(get func() *app) *cobra.Command {
	var anonymous bool
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "GET an API path and print the JSON reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp := get().client.API().Do(cmd.Context(), api.Request{Method: http.MethodGet, Path: args[0], SkipAuth: anonymous})
			if err := resp.Err(); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Data)
		},
	}
	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "send without credentials")
	return cmd
}

func servicesCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{Use: "services", Short: "Service catalogue"}
	var category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := get().client.Services.GetAll(cmd.Context(), map[string]any{"category": category}).Unwrap()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(page.Results))
			for _, s := range page.Results {
				rows = append(rows, []string{
					strconv.Itoa(s.ID),
					tui.MaxWidth(s.Name, 40),
					strconv.FormatFloat(s.Price, 'f', 2, 64),
					s.Duration,
					strconv.FormatBool(s.IsActive),
				})
			}
			tui.Table(cmd.OutOrStdout(), []string{"ID", "NAME", "PRICE", "DURATION", "ACTIVE"}, rows)
			return nil
		},
	}
	list.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.AddCommand(list)
	return cmd
}

func bookingsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{Use: "bookings", Short: "Bookings"}
	var status, date string
	list := &cobra.Command{
		Use:   "list",
		Short: "List bookings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" && !booking.BookingStatus(status).Valid() {
				return errors.Newf("unknown status %q", status)
			}
			filters := map[string]any{"status": status, "appointment_date": date}
			page, err := get().client.Bookings.GetAll(cmd.Context(), filters).Unwrap()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(page.Results))
			for _, b := range page.Results {
				customer := ""
				if b.Customer != nil {
					customer = b.Customer.Name
				}
				rows = append(rows, []string{
					b.BookingID,
					b.AppointmentDate + " " + b.AppointmentTime,
					customer,
					string(b.Status),
					strconv.FormatFloat(b.TotalPrice, 'f', 2, 64),
				})
			}
			tui.Table(cmd.OutOrStdout(), []string{"BOOKING", "WHEN", "CUSTOMER", "STATUS", "TOTAL"}, rows)
			if page.HasNext() {
				fmt.Fprintln(cmd.OutOrStdout(), tui.Muted(fmt.Sprintf("showing %d of %d", len(page.Results), page.Count)))
			}
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&date, "date", "", "filter by appointment date (YYYY-MM-DD)")
	cmd.AddCommand(list)
	return cmd
}

func analyticsCmd(get func() *app) *cobra.Command {
	var period, section string
	var charts bool
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the analytics report for a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if section != "" {
				data, err := get().client.Analytics.Section(cmd.Context(), chartcache.Kind(section), period)
				if err != nil {
					return err
				}
				buf, err := json.Marshal(data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), buf)
			}
			var res api.Result[booking.Analytics]
			err := tui.ShowSpinner(cmd.Context(), "Loading analytics", func() {
				res = get().client.Analytics.Analytics(cmd.Context(), period, booking.AnalyticsOptions{Charts: charts})
			})
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				return err
			}
			buf, err := json.Marshal(res.Data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), buf)
		},
	}
	cmd.Flags().StringVar(&period, "period", "month", "today, week, month or year")
	cmd.Flags().BoolVar(&charts, "charts", false, "include chart series")
	cmd.Flags().StringVar(&section, "section", "", "print one section: revenue, bookings, customers, services")
	return cmd
}

func cacheStatsCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cache-stats",
		Short: "Pre-warm the chart cache and print its statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			warmed := a.client.Analytics.PreWarm(cmd.Context())
			stats := a.cache.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d of %d datasets, %d bytes\n", tui.Title("warmed"), warmed, len(chartcache.CommonQueries), stats.MemoryUsage)
			if missed := len(chartcache.CommonQueries) - warmed; missed > 0 {
				tui.ShowWarning(cmd.ErrOrStderr(), "%d datasets could not be loaded, rerun with --log-level debug for details", missed)
			}
			rows := make([][]string, 0, len(stats.Entries))
			for _, e := range stats.Entries {
				rows = append(rows, []string{e.Key, strconv.FormatInt(e.Size, 10), strconv.Itoa(e.Hits), e.Age.Round(time.Millisecond).String()})
			}
			tui.Table(out, []string{"KEY", "BYTES", "HITS", "AGE"}, rows)
			return nil
		},
	}
}

func configCmd(environ []string) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Print the effective configuration",
		Annotations: map[string]string{"offline": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromCommand(cmd, environ, config.Default())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == "env" {
				for _, v := range cfg.Env() {
					fmt.Fprintln(out, env.Encode(v.Key, v.Val))
				}
				return nil
			}
			return yaml.NewEncoder(out).Encode(cfg)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "yaml or env")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the client version",
		Annotations: map[string]string{"offline": "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), api.UserAgent())
		},
	}
}
