package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/isdelr/alumni-portal-be/internal/notify"
	"github.com/isdelr/alumni-portal-be/internal/verification"
)

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (d *fakeDispatcher) Dispatch(n notify.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
}

func (d *fakeDispatcher) all() []notify.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Notification(nil), d.sent...)
}

func (d *fakeDispatcher) withAction(action string) []notify.Notification {
	var out []notify.Notification
	for _, n := range d.all() {
		if n.Action == action {
			out = append(out, n)
		}
	}
	return out
}

type fakeVerifier struct {
	result verification.Result
	err    error
	calls  []string
}

func (v *fakeVerifier) Verify(ctx context.Context, alumniID string) (verification.Result, error) {
	v.calls = append(v.calls, alumniID)
	if v.err != nil {
		return verification.Result{}, v.err
	}
	res := v.result
	res.AlumniID = alumniID
	return res, nil
}

type testEnv struct {
	store        *database.Store
	tokens       *auth.TokenManager
	dispatcher   *fakeDispatcher
	verifier     *fakeVerifier
	events       *EventService
	accounts     *AccountService
	jobs         *JobService
	applications *ApplicationService
	profiles     *ProfileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := database.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	env := &testEnv{
		store:      store,
		tokens:     auth.NewTokenManager("test-secret", time.Hour),
		dispatcher: &fakeDispatcher{},
		verifier:   &fakeVerifier{result: verification.Result{Result: verification.ResultSuccess, Message: "ok"}},
	}
	env.events = NewEventService(store)
	env.accounts = NewAccountService(store, env.tokens, env.verifier, env.dispatcher, env.events, AccountOptions{
		ResetTokenTTL: time.Hour,
		FrontendURL:   "http://portal.test",
	})
	env.jobs = NewJobService(store, env.dispatcher, env.events)
	env.applications = NewApplicationService(store, env.dispatcher, env.events)
	env.profiles = NewProfileService(store)
	return env
}

var (
	adminP     = auth.Principal{Email: "admin@x.com", Role: models.RoleAdmin}
	userP      = auth.Principal{Email: "a@x.com", Role: models.RoleUser}
	otherUserP = auth.Principal{Email: "b@x.com", Role: models.RoleUser}
	employerP  = auth.Principal{Email: "boss@x.com", Role: models.RoleEmployer}
	employer2P = auth.Principal{Email: "rival@x.com", Role: models.RoleEmployer}
)

func (e *testEnv) register(t *testing.T, name, email string, role models.Role) models.Account {
	t.Helper()
	var (
		account models.Account
		err     error
	)
	if role == models.RoleEmployer {
		account, err = e.accounts.CreateEmployer(context.Background(), adminP, RegisterInput{Name: name, Email: email, Password: "pw", Role: role})
	} else {
		account, err = e.accounts.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: "pw", Role: role})
	}
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return account
}

func (e *testEnv) createJob(t *testing.T, p auth.Principal, title string) models.JobPosting {
	t.Helper()
	job, err := e.jobs.Create(context.Background(), p, JobInput{Title: title, Company: "Acme", Location: "Remote"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Fatalf("error code = %s (%v), want %s", got, err, code)
	}
}

var errVerifierDown = errors.New("verifier down")
