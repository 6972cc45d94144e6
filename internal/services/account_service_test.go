package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/models"
)

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.accounts.Register(ctx, RegisterInput{Name: "A", Email: "a@x.com", Password: "pw", Role: models.RoleUser})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.ID == "" || account.Role != models.RoleUser || account.PasswordHash != "" {
		t.Errorf("Register = %+v", account)
	}

	_, err = env.accounts.Register(ctx, RegisterInput{Name: "A2", Email: "A@X.com ", Password: "pw2", Role: models.RoleUser})
	wantCode(t, err, apperr.CodeConflict)

	n, err := env.store.Collection(AccountsCollection).Count(ctx, database.Filter{"email": "a@x.com"})
	if err != nil || n != 1 {
		t.Fatalf("accounts with email = %d, %v; want 1", n, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		in   RegisterInput
		code apperr.Code
	}{
		{"employer via public endpoint", RegisterInput{Name: "E", Email: "e@x.com", Password: "pw", Role: models.RoleEmployer}, apperr.CodeInvalidArgument},
		{"unknown role", RegisterInput{Name: "E", Email: "e@x.com", Password: "pw", Role: "root"}, apperr.CodeInvalidArgument},
		{"missing password", RegisterInput{Name: "E", Email: "e@x.com", Role: models.RoleUser}, apperr.CodeInvalidArgument},
		{"bad email", RegisterInput{Name: "E", Email: "not-an-email", Password: "pw", Role: models.RoleUser}, apperr.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.accounts.Register(context.Background(), tt.in)
			wantCode(t, err, tt.code)
		})
	}
}

func TestCreateEmployerRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := RegisterInput{Name: "Acme", Email: "boss@x.com", Password: "pw"}

	_, err := env.accounts.CreateEmployer(ctx, userP, in)
	wantCode(t, err, apperr.CodeForbidden)
	_, err = env.accounts.CreateEmployer(ctx, auth.Principal{}, in)
	wantCode(t, err, apperr.CodeUnauthorized)

	account, err := env.accounts.CreateEmployer(ctx, adminP, RegisterInput{Name: "Acme", Email: "boss@x.com", Password: "pw", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("CreateEmployer: %v", err)
	}
	if account.Role != models.RoleEmployer {
		t.Errorf("role = %s, want employer", account.Role)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "A", "a@x.com", models.RoleUser)

	res, err := env.accounts.Login(ctx, "a@x.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.TokenType != "bearer" || res.Role != models.RoleUser || res.AccessToken == "" {
		t.Errorf("Login = %+v", res)
	}
	p, err := env.tokens.Validate(res.AccessToken)
	if err != nil || p.Email != "a@x.com" || p.Role != models.RoleUser {
		t.Errorf("token principal = %+v, %v", p, err)
	}

	wrongPw, err := env.accounts.Login(ctx, "a@x.com", "nope")
	wantCode(t, err, apperr.CodeInvalidCredentials)
	if wrongPw.AccessToken != "" {
		t.Error("token issued for wrong password")
	}
	_, errUnknown := env.accounts.Login(ctx, "ghost@x.com", "pw")
	wantCode(t, errUnknown, apperr.CodeInvalidCredentials)
	if apperr.Message(err) != apperr.Message(errUnknown) {
		t.Errorf("messages differ: %q vs %q", apperr.Message(err), apperr.Message(errUnknown))
	}
}

func TestListAccountsAdminOnlyAndWithoutPasswords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Admin", "admin@x.com", models.RoleAdmin)
	env.register(t, "A", "a@x.com", models.RoleUser)
	env.register(t, "Boss", "boss@x.com", models.RoleEmployer)

	_, err := env.accounts.ListAccounts(ctx, userP)
	wantCode(t, err, apperr.CodeForbidden)
	_, err = env.accounts.ListAlumni(ctx, employerP)
	wantCode(t, err, apperr.CodeForbidden)

	all, err := env.accounts.ListAccounts(ctx, adminP)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAccounts returned %d accounts", len(all))
	}
	raw, _ := json.Marshal(all)
	if strings.Contains(string(raw), "password") || strings.Contains(string(raw), "$2a$") {
		t.Fatalf("password data leaked: %s", raw)
	}

	alumni, err := env.accounts.ListAlumni(ctx, adminP)
	if err != nil {
		t.Fatalf("ListAlumni: %v", err)
	}
	if len(alumni) != 1 || alumni[0].Email != "a@x.com" {
		t.Errorf("ListAlumni = %+v", alumni)
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", models.RoleUser)

	account, err := env.accounts.Dashboard(context.Background(), userP)
	if err != nil || account.Name != "A" {
		t.Fatalf("Dashboard = %+v, %v", account, err)
	}
	_, err = env.accounts.Dashboard(context.Background(), auth.Principal{})
	wantCode(t, err, apperr.CodeUnauthorized)
}

func TestVerifyAlumni(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alumnus := env.register(t, "A", "a@x.com", models.RoleUser)
	employer := env.register(t, "Boss", "boss@x.com", models.RoleEmployer)

	_, err := env.accounts.VerifyAlumni(ctx, userP, alumnus.ID)
	wantCode(t, err, apperr.CodeForbidden)
	_, err = env.accounts.VerifyAlumni(ctx, adminP, "missing")
	wantCode(t, err, apperr.CodeNotFound)
	_, err = env.accounts.VerifyAlumni(ctx, adminP, employer.ID)
	wantCode(t, err, apperr.CodeNotFound)

	res, err := env.accounts.VerifyAlumni(ctx, adminP, alumnus.ID)
	if err != nil || !res.Verified() || res.AlumniID != alumnus.ID {
		t.Fatalf("VerifyAlumni = %+v, %v", res, err)
	}
	account, _ := env.accounts.Dashboard(ctx, userP)
	if !account.Verified {
		t.Error("account not marked verified")
	}

	env.verifier.err = errVerifierDown
	_, err = env.accounts.VerifyAlumni(ctx, adminP, alumnus.ID)
	wantCode(t, err, apperr.CodeInternal)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "A", "a@x.com", models.RoleUser)

	if err := env.accounts.ForgotPassword(ctx, "ghost@x.com"); err != nil {
		t.Fatalf("unknown email should succeed silently: %v", err)
	}
	if len(env.dispatcher.all()) != 0 {
		t.Fatal("no mail should be sent for unknown email")
	}

	if err := env.accounts.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	sent := env.dispatcher.all()
	if len(sent) != 1 || sent[0].Recipient != "a@x.com" {
		t.Fatalf("sent = %+v", sent)
	}
	token := tokenFromBody(t, sent[0].Body)

	wantCode(t, env.accounts.ResetPassword(ctx, "bogus", "new"), apperr.CodeInvalidArgument)
	if err := env.accounts.ResetPassword(ctx, token, "new-pw"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	wantCode(t, env.accounts.ResetPassword(ctx, token, "again"), apperr.CodeInvalidArgument)

	if _, err := env.accounts.Login(ctx, "a@x.com", "new-pw"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	_, err := env.accounts.Login(ctx, "a@x.com", "pw")
	wantCode(t, err, apperr.CodeInvalidCredentials)
}

func TestResetTokenExpiresAndIsPurged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "A", "a@x.com", models.RoleUser)

	if err := env.accounts.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatal(err)
	}
	token := tokenFromBody(t, env.dispatcher.all()[0].Body)

	later := time.Now().Add(2 * time.Hour)
	env.accounts.now = func() time.Time { return later }
	wantCode(t, env.accounts.ResetPassword(ctx, token, "new"), apperr.CodeInvalidArgument)

	n, err := env.accounts.PurgeExpiredResets(ctx, later)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredResets = %d, %v", n, err)
	}
	n, err = env.accounts.PurgeExpiredResets(ctx, later)
	if err != nil || n != 0 {
		t.Fatalf("second purge = %d, %v", n, err)
	}
}

func tokenFromBody(t *testing.T, body string) string {
	t.Helper()
	i := strings.Index(body, "http://")
	if i < 0 {
		t.Fatalf("no link in %q", body)
	}
	u, err := url.Parse(strings.TrimSpace(body[i:]))
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/reset-password" {
		t.Fatalf("link path = %s", u.Path)
	}
	return u.Query().Get("token")
}

type failingUpdates struct {
	database.Collection
}

func (failingUpdates) UpdateOne(ctx context.Context, filter database.Filter, set map[string]any) (int64, error) {
	return 0, errors.New("disk full")
}

func TestResetTokenSurvivesFailedPasswordUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "A", "a@x.com", models.RoleUser)
	if err := env.accounts.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatal(err)
	}
	token := tokenFromBody(t, env.dispatcher.all()[0].Body)

	accounts := env.accounts.accounts
	env.accounts.accounts = failingUpdates{accounts}
	wantCode(t, env.accounts.ResetPassword(ctx, token, "new-pw"), apperr.CodeInternal)

	env.accounts.accounts = accounts
	if err := env.accounts.ResetPassword(ctx, token, "new-pw"); err != nil {
		t.Fatalf("retry with the same token: %v", err)
	}
	if _, err := env.accounts.Login(ctx, "a@x.com", "new-pw"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestPurgeKeepsLiveTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "A", "a@x.com", models.RoleUser)
	env.register(t, "B", "b@x.com", models.RoleUser)
	for _, email := range []string{"a@x.com", "b@x.com"} {
		if err := env.accounts.ForgotPassword(ctx, email); err != nil {
			t.Fatal(err)
		}
	}
	if err := env.accounts.ResetPassword(ctx, tokenFromBody(t, env.dispatcher.all()[0].Body), "new-pw"); err != nil {
		t.Fatal(err)
	}

	n, err := env.accounts.PurgeExpiredResets(ctx, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredResets = %d, %v; want only the used token", n, err)
	}
	if err := env.accounts.ResetPassword(ctx, tokenFromBody(t, env.dispatcher.all()[1].Body), "other-pw"); err != nil {
		t.Fatalf("live token was purged: %v", err)
	}
}

func TestForgotPasswordWithoutNotifier(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "A", "a@x.com", models.RoleUser)
	accounts := NewAccountService(env.store, env.tokens, env.verifier, nil, nil, AccountOptions{})
	if err := accounts.ForgotPassword(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
}
