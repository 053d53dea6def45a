package booking

import (
	"context"
	"net/http"

	"github.com/wagtee/go-client/api"
)

// AuthService covers the /accounts endpoints. It does not persist tokens;
// that is the job of the session package.
type AuthService struct {
	client *api.Client
}

func (s *AuthService) public(ctx context.Context, path string, body any) *api.Response {
	return s.client.Do(ctx, api.Request{Method: http.MethodPost, Path: path, Body: body, SkipAuth: true})
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) api.Result[AuthResponse] {
	return api.ResultOf[AuthResponse](s.public(ctx, "/accounts/login/", req))
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) api.Result[AuthResponse] {
	return api.ResultOf[AuthResponse](s.public(ctx, "/accounts/register/", req))
}

func (s *AuthService) SendEmailVerification(ctx context.Context, email string) api.Result[Message] {
	return api.ResultOf[Message](s.public(ctx, "/accounts/send-email-verification/", map[string]string{"email": email}))
}

func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) api.Result[Message] {
	return api.ResultOf[Message](s.public(ctx, "/accounts/verify-email/", map[string]string{
		"email":             email,
		"verification_code": code,
	}))
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) api.Result[Message] {
	return api.ResultOf[Message](s.public(ctx, "/accounts/password-reset/", map[string]string{"email": email}))
}

// ConfirmPasswordReset sets a new password using the emailed reset token.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, email, token, password, confirm string) api.Result[Message] {
	return api.ResultOf[Message](s.public(ctx, "/accounts/password-reset-confirm/", map[string]string{
		"email":            email,
		"token":            token,
		"new_password":     password,
		"confirm_password": confirm,
	}))
}

// TokenRefresh exchanges a refresh token directly, bypassing the client's
// single-flight refresh. Storage is not touched.
func (s *AuthService) TokenRefresh(ctx context.Context, refresh string) api.Result[TokenPair] {
	return api.ResultOf[TokenPair](s.public(ctx, api.DefaultRefreshPath, map[string]string{"refresh": refresh}))
}

func (s *AuthService) Profile(ctx context.Context) api.Result[User] {
	return api.Get[User](ctx, s.client, "/accounts/profile/")
}

func (s *AuthService) UpdateProfile(ctx context.Context, patch map[string]any) api.Result[User] {
	return api.Patch[User](ctx, s.client, "/accounts/profile/", patch)
}

// Logout blacklists refresh on the server.
func (s *AuthService) Logout(ctx context.Context, refresh string) api.Result[Message] {
	return api.Post[Message](ctx, s.client, "/accounts/logout/", map[string]string{"refresh": refresh})
}
