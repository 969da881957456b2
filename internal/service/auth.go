package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"catalogue/internal/model"
	"catalogue/internal/repository"
)

var (
	ErrEmailTaken         = errors.New("email is already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnknownRole        = errors.New("role does not exist")
	ErrUserNotFound       = errors.New("user not found")
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// SignUpInput is the registration payload.
type SignUpInput struct {
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Department string   `json:"department"`
	Roles      []string `json:"roles"`
}

// SignInResult is returned on a successful sign-in.
type SignInResult struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Department  string   `json:"department"`
	Roles       []string `json:"roles"`
	AccessToken string   `json:"accessToken"`
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string, roles []string) (string, error)
}

// AuthService defines the account use cases.
type AuthService interface {
	// SignUp validates the input and registers a new user with the user role only.
	// Field errors come back as validation.Errors.
	SignUp(ctx context.Context, in SignUpInput) (*model.User, error)

	// CreateUser is SignUp for administrators: any of the default roles may be granted.
	CreateUser(ctx context.Context, in SignUpInput) (*model.User, error)

	// SignIn checks the credentials and returns the user with a fresh access token.
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)

	// Me returns the user with the given ID.
	Me(ctx context.Context, id string) (*model.User, error)

	// SeedRoles inserts the default roles when none exist.
	SeedRoles(ctx context.Context) error
}

type authService struct {
	users       repository.UserRepository
	roles       repository.RoleRepository
	tokens      TokenIssuer
	emailSuffix *regexp.Regexp
	cost        int
	logger      *slog.Logger
}

// NewAuthService constructs a new AuthService. Sign-up only accepts addresses under emailDomain.
func NewAuthService(users repository.UserRepository, roles repository.RoleRepository, tokens TokenIssuer, emailDomain string, logger *slog.Logger) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		users:       users,
		roles:       roles,
		tokens:      tokens,
		emailSuffix: regexp.MustCompile(`@` + regexp.QuoteMeta(strings.ToLower(emailDomain)) + `$`),
		cost:        bcrypt.DefaultCost,
		logger:      logger.With(slog.String("component", "auth")),
	}
}

func (s *authService) normalize(in SignUpInput) SignUpInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Department = strings.ToUpper(strings.TrimSpace(in.Department))

	seen := make(map[string]bool, len(in.Roles))
	roles := make([]string, 0, len(in.Roles))
	for _, r := range in.Roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" && !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		roles = []string{model.RoleUser}
	}
	in.Roles = roles
	return in
}

// selfServiceRoles are the roles an unauthenticated sign-up may hold.
var selfServiceRoles = []string{model.RoleUser}

func (s *authService) validate(in SignUpInput, grantable []string) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.RuneLength(1, 15)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat,
			validation.Match(s.emailSuffix).Error("must be an organisation address")),
		validation.Field(&in.Password, validation.Required, validation.By(maxBytes(maxPasswordBytes))),
		validation.Field(&in.Department, validation.Required, validation.In(toAny(model.Departments)...)),
		validation.Field(&in.Roles, validation.Each(
			validation.In(toAny(grantable)...).Error("must be granted by an administrator"))),
	)
}

func (s *authService) SignUp(ctx context.Context, in SignUpInput) (*model.User, error) {
	return s.register(ctx, in, selfServiceRoles)
}

func (s *authService) CreateUser(ctx context.Context, in SignUpInput) (*model.User, error) {
	return s.register(ctx, in, model.DefaultRoles)
}

func (s *authService) register(ctx context.Context, in SignUpInput, grantable []string) (*model.User, error) {
	in = s.normalize(in)
	if err := s.validate(in, grantable); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	found, err := s.roles.FindByNames(ctx, in.Roles)
	if err != nil {
		return nil, fmt.Errorf("find roles: %w", err)
	}
	if len(found) != len(in.Roles) {
		return nil, ErrUnknownRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, &model.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Department:   in.Department,
		Roles:        in.Roles,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user_registered",
		slog.String("user_id", u.ID), slog.String("department", u.Department), slog.Any("roles", u.Roles))
	return u, nil
}

func (s *authService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	u, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.Roles)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &SignInResult{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Department:  u.Department,
		Roles:       u.Roles,
		AccessToken: token,
	}, nil
}

func (s *authService) Me(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *authService) SeedRoles(ctx context.Context) error {
	n, err := s.roles.Count(ctx)
	if err != nil {
		return fmt.Errorf("count roles: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, name := range model.DefaultRoles {
		if _, err := s.roles.Create(ctx, name); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("create role %q: %w", name, err)
		}
		s.logger.Info("role_seeded", slog.String("role", name))
	}
	return nil
}

func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); len(s) > n {
			return validation.NewError("validation_max_bytes", fmt.Sprintf("must be at most %d bytes long", n))
		}
		return nil
	}
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
