package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/database"
	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/isdelr/alumni-portal-be/internal/notify"
	"github.com/isdelr/alumni-portal-be/internal/verification"
	"github.com/rs/zerolog/log"
)

// AccountServiceProvider defines the interface for account services.
type AccountServiceProvider interface {
	Register(ctx context.Context, in RegisterInput) (models.Account, error)
	CreateEmployer(ctx context.Context, p auth.Principal, in RegisterInput) (models.Account, error)
	Login(ctx context.Context, email, password string) (LoginResult, error)
	Dashboard(ctx context.Context, p auth.Principal) (models.Account, error)
	ListAccounts(ctx context.Context, p auth.Principal) ([]models.Account, error)
	ListAlumni(ctx context.Context, p auth.Principal) ([]models.Account, error)
	VerifyAlumni(ctx context.Context, p auth.Principal, alumniID string) (verification.Result, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	PurgeExpiredResets(ctx context.Context, now time.Time) (int, error)
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// LoginResult is returned on successful login.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	Role        models.Role `json:"role"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// AccountOptions tunes the account service.
type AccountOptions struct {
	ResetTokenTTL time.Duration
	// FrontendURL is the base of the reset link mailed to users.
	FrontendURL   string
	VerifyTimeout time.Duration
}

// AccountService provides business logic for account management.
type AccountService struct {
	accounts database.Collection
	resets   database.Collection
	tokens   *auth.TokenManager
	verifier verification.Verifier
	notifier Dispatcher
	events   EventServiceProvider
	opts     AccountOptions
	now      func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(store *database.Store, tokens *auth.TokenManager, verifier verification.Verifier, notifier Dispatcher, events EventServiceProvider, opts AccountOptions) *AccountService {
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = time.Hour
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 10 * time.Second
	}
	if notifier == nil {
		notifier = discardDispatcher{}
	}
	return &AccountService{
		accounts: store.Collection(AccountsCollection),
		resets:   store.Collection(PasswordResetsCollection),
		tokens:   tokens,
		verifier: verifier,
		notifier: notifier,
		events:   events,
		opts:     opts,
		now:      time.Now,
	}
}

// publicRoles are the roles open to self-registration.
var publicRoles = map[models.Role]bool{models.RoleAdmin: true, models.RoleUser: true}

// Register creates an account through the public endpoint.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (models.Account, error) {
	if !publicRoles[in.Role] {
		return models.Account{}, apperr.New(apperr.CodeInvalidArgument, "Invalid role. Must be 'admin' or 'user'")
	}
	return s.create(ctx, in)
}

// CreateEmployer creates an employer account. Only admins may do this.
func (s *AccountService) CreateEmployer(ctx context.Context, p auth.Principal, in RegisterInput) (models.Account, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return models.Account{}, err
	}
	in.Role = models.RoleEmployer
	account, err := s.create(ctx, in)
	if err != nil {
		return models.Account{}, err
	}
	s.record(ctx, "account.employer.create", fmt.Sprintf("Employer account %s created", account.Email), p.Email)
	return account, nil
}

func (s *AccountService) create(ctx context.Context, in RegisterInput) (models.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return models.Account{}, apperr.New(apperr.CodeInvalidArgument, "name, email and password are required")
	}
	if err := validateEmail(in.Email); err != nil {
		return models.Account{}, err
	}

	var existing models.AccountRecord
	err := s.accounts.FindOne(ctx, database.Filter{"email": in.Email}, &existing)
	if err == nil {
		return models.Account{}, apperr.New(apperr.CodeConflict, "Email already registered")
	}
	if !isNotFound(err) {
		return models.Account{}, storeError("look up account", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.Account{}, err
	}
	account := models.Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.now().UTC(),
	}
	id, err := s.accounts.InsertOne(ctx, account.ToRecord())
	if err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			return models.Account{}, apperr.New(apperr.CodeConflict, "Email already registered")
		}
		return models.Account{}, storeError("insert account", err)
	}
	account.ID = id
	// Return account without password hash
	account.PasswordHash = ""
	return account, nil
}

// dummyHash keeps login timing uniform when the email is unknown.
var dummyHash, _ = auth.HashPassword("dummy-password-for-timing")

// Login verifies credentials and issues a session token. Unknown emails and
// wrong passwords produce the same error.
func (s *AccountService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	invalid := apperr.New(apperr.CodeInvalidCredentials, "Invalid credentials")

	var record models.AccountRecord
	err := s.accounts.FindOne(ctx, database.Filter{"email": normalizeEmail(email)}, &record)
	if err != nil {
		if !isNotFound(err) {
			return LoginResult{}, storeError("look up account", err)
		}
		auth.CheckPassword(dummyHash, password)
		return LoginResult{}, invalid
	}
	if !auth.CheckPassword(record.PasswordHash, password) {
		return LoginResult{}, invalid
	}

	token, expiresAt, err := s.tokens.Issue(auth.Principal{Email: record.Email, Role: record.Role})
	if err != nil {
		return LoginResult{}, apperr.Wrap(apperr.CodeInternal, "issue token", err)
	}
	return LoginResult{AccessToken: token, TokenType: "bearer", Role: record.Role, ExpiresAt: expiresAt}, nil
}

// Dashboard returns the caller's own account.
func (s *AccountService) Dashboard(ctx context.Context, p auth.Principal) (models.Account, error) {
	if err := auth.Require(p, models.RoleAdmin, models.RoleUser, models.RoleEmployer); err != nil {
		return models.Account{}, err
	}
	var record models.AccountRecord
	if err := s.accounts.FindOne(ctx, database.Filter{"email": p.Email}, &record); err != nil {
		if isNotFound(err) {
			return models.Account{}, apperr.New(apperr.CodeNotFound, "Account not found")
		}
		return models.Account{}, storeError("look up account", err)
	}
	return sanitize(record), nil
}

// ListAccounts returns every account. Admin only.
func (s *AccountService) ListAccounts(ctx context.Context, p auth.Principal) ([]models.Account, error) {
	return s.list(ctx, p, nil)
}

// ListAlumni returns accounts with role user. Admin only.
func (s *AccountService) ListAlumni(ctx context.Context, p auth.Principal) ([]models.Account, error) {
	return s.list(ctx, p, database.Filter{"role": string(models.RoleUser)})
}

func (s *AccountService) list(ctx context.Context, p auth.Principal, filter database.Filter) ([]models.Account, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	var records []models.AccountRecord
	if err := s.accounts.FindMany(ctx, filter, &records); err != nil {
		return nil, storeError("list accounts", err)
	}
	accounts := make([]models.Account, 0, len(records))
	for _, r := range records {
		accounts = append(accounts, sanitize(r))
	}
	return accounts, nil
}

// VerifyAlumni asks the verification service to confirm an alumnus and marks
// the account verified on success. Admin only.
func (s *AccountService) VerifyAlumni(ctx context.Context, p auth.Principal, alumniID string) (verification.Result, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return verification.Result{}, err
	}
	var record models.AccountRecord
	err := s.accounts.FindOne(ctx, database.Filter{"id": alumniID, "role": string(models.RoleUser)}, &record)
	if err != nil {
		if isNotFound(err) {
			return verification.Result{}, apperr.New(apperr.CodeNotFound, "Alumni not found")
		}
		return verification.Result{}, storeError("look up alumni", err)
	}

	vctx, cancel := context.WithTimeout(ctx, s.opts.VerifyTimeout)
	defer cancel()
	result, err := s.verifier.Verify(vctx, alumniID)
	if err != nil {
		log.Error().Err(err).Str("alumni_id", alumniID).Msg("Alumni verification failed")
		return verification.Result{}, apperr.Wrap(apperr.CodeInternal, "verify alumni", err)
	}

	if result.Verified() && !record.Verified {
		if _, err := s.accounts.UpdateOne(ctx, database.Filter{"id": alumniID}, map[string]any{"verified": true}); err != nil {
			return verification.Result{}, storeError("mark alumni verified", err)
		}
	}
	s.record(ctx, "alumni.verify", fmt.Sprintf("Verification of %s returned %q", record.Email, result.Result), p.Email)
	return result, nil
}

// ForgotPassword mails a single-use reset link if the email belongs to an
// account. Unknown emails succeed silently so accounts cannot be enumerated.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.New(apperr.CodeInvalidArgument, "email is required")
	}
	var record models.AccountRecord
	if err := s.accounts.FindOne(ctx, database.Filter{"email": email}, &record); err != nil {
		if isNotFound(err) {
			log.Info().Str("email", email).Msg("Password reset requested for unknown email")
			return nil
		}
		return storeError("look up account", err)
	}

	token, err := newResetToken()
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "generate reset token", err)
	}
	expiresAt := s.now().UTC().Add(s.opts.ResetTokenTTL)
	reset := models.PasswordReset{
		Email:       record.Email,
		TokenHash:   hashResetToken(token),
		ExpiresAt:   expiresAt,
		ExpiresAtMS: expiresAt.UnixMilli(),
	}
	if _, err := s.resets.InsertOne(ctx, reset); err != nil {
		return storeError("store reset token", err)
	}

	link := strings.TrimRight(s.opts.FrontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	s.notifier.Dispatch(notify.Notification{
		Recipient: record.Email,
		Subject:   "Password Reset Request",
		Body:      "Click the link to reset your password: " + link,
	})
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return apperr.New(apperr.CodeInvalidArgument, "token and new_password are required")
	}
	invalid := apperr.New(apperr.CodeInvalidArgument, "Invalid or expired reset token")

	var reset models.PasswordReset
	err := s.resets.FindOne(ctx, database.Filter{"token_hash": hashResetToken(token), "used": false}, &reset)
	if err != nil {
		if isNotFound(err) {
			return invalid
		}
		return storeError("look up reset token", err)
	}
	if !s.now().Before(reset.ExpiresAt) {
		return invalid
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	// Claim the token first; a concurrent reset with the same token modifies nothing.
	n, err := s.resets.UpdateOne(ctx, database.Filter{"id": reset.ID, "used": false}, map[string]any{"used": true})
	if err != nil {
		return storeError("consume reset token", err)
	}
	if n == 0 {
		return invalid
	}
	n, err = s.accounts.UpdateOne(ctx, database.Filter{"email": reset.Email}, map[string]any{"password_hash": hash})
	if err != nil {
		// Hand the token back so the user can retry.
		if _, rerr := s.resets.UpdateOne(ctx, database.Filter{"id": reset.ID}, map[string]any{"used": false}); rerr != nil {
			log.Error().Err(rerr).Str("email", reset.Email).Msg("Failed to release reset token")
		}
		return storeError("update password", err)
	}
	if n == 0 {
		return invalid
	}
	log.Info().Str("email", reset.Email).Msg("Password reset completed")
	return nil
}

// PurgeExpiredResets deletes used or expired reset tokens and returns how many were removed.
func (s *AccountService) PurgeExpiredResets(ctx context.Context, now time.Time) (int, error) {
	used, err := s.resets.DeleteMany(ctx, database.Filter{"used": true})
	if err != nil {
		return 0, storeError("delete used reset tokens", err)
	}
	expired, err := s.resets.DeleteMany(ctx, database.Filter{"expires_at_ms": database.LessThan(now.UnixMilli())})
	if err != nil {
		return int(used), storeError("delete expired reset tokens", err)
	}
	return int(used + expired), nil
}

func (s *AccountService) record(ctx context.Context, eventType, message, actor string) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, eventType, "info", message, actor); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to record event")
	}
}

// sanitize converts a stored record to its client-facing form.
func sanitize(r models.AccountRecord) models.Account {
	account := r.Account()
	account.PasswordHash = ""
	return account
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
