package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"catalogue/internal/model"
	"catalogue/internal/repository"
	repoMocks "catalogue/internal/repository/mocks"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubIssuer struct {
	token string
	err   error
}

func (s stubIssuer) Issue(string, []string) (string, error) { return s.token, s.err }

func newTestAuthService(users *repoMocks.MockUserRepository, roles *repoMocks.MockRoleRepository, issuer TokenIssuer) *authService {
	svc := NewAuthService(users, roles, issuer, "janaagraha.org", nil).(*authService)
	svc.cost = bcrypt.MinCost
	return svc
}

func validInput() SignUpInput {
	return SignUpInput{
		Username:   "asha",
		Email:      "  Asha@Janaagraha.org ",
		Password:   "s3cret-pass",
		Department: "IT",
	}
}

func TestAuthService_SignUp(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		input        func() SignUpInput
		setupMocks   func(mUsers *repoMocks.MockUserRepository, mRoles *repoMocks.MockRoleRepository)
		wantErr      error
		wantFieldErr string
		wantErrMsg   string
	}{
		{
			name:  "happy path with default role",
			input: validInput,
			setupMocks: func(mUsers *repoMocks.MockUserRepository, mRoles *repoMocks.MockRoleRepository) {
				mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(nil, sql.ErrNoRows)
				mRoles.On("FindByNames", ctx, []string{"user"}).Return([]model.Role{{ID: 1, Name: "user"}}, nil)
				mUsers.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
					return u.ID != "" &&
						u.Email == "asha@janaagraha.org" &&
						bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")) == nil &&
						assert.ObjectsAreEqual([]string{"user"}, u.Roles)
				})).Return(&model.User{ID: "user-1", Roles: []string{"user"}}, nil)
			},
		},
		{
			name: "explicit user role is deduplicated",
			input: func() SignUpInput {
				in := validInput()
				in.Roles = []string{"User", " user "}
				return in
			},
			setupMocks: func(mUsers *repoMocks.MockUserRepository, mRoles *repoMocks.MockRoleRepository) {
				mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(nil, sql.ErrNoRows)
				mRoles.On("FindByNames", ctx, []string{"user"}).Return([]model.Role{{ID: 1, Name: "user"}}, nil)
				mUsers.On("Create", ctx, mock.Anything).Return(&model.User{ID: "user-1"}, nil)
			},
		},
		{
			name: "admin role cannot be self-assigned",
			input: func() SignUpInput {
				in := validInput()
				in.Roles = []string{"admin"}
				return in
			},
			setupMocks:   func(*repoMocks.MockUserRepository, *repoMocks.MockRoleRepository) {},
			wantFieldErr: "roles",
		},
		{
			name: "moderator role cannot be self-assigned",
			input: func() SignUpInput {
				in := validInput()
				in.Roles = []string{"user", "Moderator"}
				return in
			},
			setupMocks:   func(*repoMocks.MockUserRepository, *repoMocks.MockRoleRepository) {},
			wantFieldErr: "roles",
		},
		{
			name: "email outside the organisation",
			input: func() SignUpInput {
				in := validInput()
				in.Email = "asha@example.com"
				return in
			},
			setupMocks:   func(*repoMocks.MockUserRepository, *repoMocks.MockRoleRepository) {},
			wantFieldErr: "email",
		},
		{
			name: "username too long",
			input: func() SignUpInput {
				in := validInput()
				in.Username = strings.Repeat("a", 16)
				return in
			},
			setupMocks:   func(*repoMocks.MockUserRepository, *repoMocks.MockRoleRepository) {},
			wantFieldErr: "username",
		},
		{
			name: "unknown department",
			input: func() SignUpInput {
				in := validInput()
				in.Department = "SALES"
				return in
			},
			setupMocks:   func(*repoMocks.MockUserRepository, *repoMocks.MockRoleRepository) {},
			wantFieldErr: "department",
		},
		{
			name: "password too long",
			input: func() SignUpInput {
				in := validInput()
				in.Password = strings.Repeat("p", 73)
				return in
			},
			setupMocks:   func(*repoMocks.MockUserRepository, *repoMocks.MockRoleRepository) {},
			wantFieldErr: "password",
		},
		{
			name: "role outside the default set",
			input: func() SignUpInput {
				in := validInput()
				in.Roles = []string{"root"}
				return in
			},
			setupMocks:   func(*repoMocks.MockUserRepository, *repoMocks.MockRoleRepository) {},
			wantFieldErr: "roles",
		},
		{
			name:  "email already registered",
			input: validInput,
			setupMocks: func(mUsers *repoMocks.MockUserRepository, mRoles *repoMocks.MockRoleRepository) {
				mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(&model.User{ID: "existing"}, nil)
			},
			wantErr: ErrEmailTaken,
		},
		{
			name:  "role missing from the table",
			input: validInput,
			setupMocks: func(mUsers *repoMocks.MockUserRepository, mRoles *repoMocks.MockRoleRepository) {
				mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(nil, sql.ErrNoRows)
				mRoles.On("FindByNames", ctx, []string{"user"}).Return([]model.Role{}, nil)
			},
			wantErr: ErrUnknownRole,
		},
		{
			name:  "insert races on the unique email",
			input: validInput,
			setupMocks: func(mUsers *repoMocks.MockUserRepository, mRoles *repoMocks.MockRoleRepository) {
				mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(nil, sql.ErrNoRows)
				mRoles.On("FindByNames", ctx, []string{"user"}).Return([]model.Role{{ID: 1, Name: "user"}}, nil)
				mUsers.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicate)
			},
			wantErr: ErrEmailTaken,
		},
		{
			name:  "lookup fails",
			input: validInput,
			setupMocks: func(mUsers *repoMocks.MockUserRepository, mRoles *repoMocks.MockRoleRepository) {
				mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(nil, errors.New("db down"))
			},
			wantErrMsg: "find user: db down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mUsers := new(repoMocks.MockUserRepository)
			mRoles := new(repoMocks.MockRoleRepository)
			svc := newTestAuthService(mUsers, mRoles, stubIssuer{})
			tt.setupMocks(mUsers, mRoles)

			u, err := svc.SignUp(ctx, tt.input())

			switch {
			case tt.wantFieldErr != "":
				var verrs validation.Errors
				require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
				assert.Contains(t, verrs, tt.wantFieldErr)
				assert.Nil(t, u)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
			case tt.wantErrMsg != "":
				assert.EqualError(t, err, tt.wantErrMsg)
				assert.Nil(t, u)
			default:
				require.NoError(t, err)
				assert.Equal(t, "user-1", u.ID)
			}
			mUsers.AssertExpectations(t)
			mRoles.AssertExpectations(t)
		})
	}
}

func TestAuthService_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("grants elevated roles", func(t *testing.T) {
		mUsers := new(repoMocks.MockUserRepository)
		mRoles := new(repoMocks.MockRoleRepository)
		svc := newTestAuthService(mUsers, mRoles, stubIssuer{})

		in := validInput()
		in.Roles = []string{"Moderator", "user", "moderator"}

		mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(nil, sql.ErrNoRows)
		mRoles.On("FindByNames", ctx, []string{"moderator", "user"}).
			Return([]model.Role{{ID: 1, Name: "user"}, {ID: 2, Name: "moderator"}}, nil)
		mUsers.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
			return assert.ObjectsAreEqual([]string{"moderator", "user"}, u.Roles)
		})).Return(&model.User{ID: "user-1", Roles: []string{"moderator", "user"}}, nil)

		u, err := svc.CreateUser(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"moderator", "user"}, u.Roles)
		mUsers.AssertExpectations(t)
		mRoles.AssertExpectations(t)
	})

	t.Run("still rejects unknown roles", func(t *testing.T) {
		svc := newTestAuthService(new(repoMocks.MockUserRepository), new(repoMocks.MockRoleRepository), stubIssuer{})

		in := validInput()
		in.Roles = []string{"root"}

		_, err := svc.CreateUser(ctx, in)
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, "roles")
	})
}

func TestAuthService_SignIn(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := &model.User{
		ID:           "user-1",
		Username:     "asha",
		Email:        "asha@janaagraha.org",
		PasswordHash: string(hash),
		Department:   "IT",
		Roles:        []string{"user"},
	}

	tests := []struct {
		name       string
		email      string
		password   string
		issuer     stubIssuer
		setupMocks func(mUsers *repoMocks.MockUserRepository)
		wantErr    error
		wantErrMsg string
	}{
		{
			name:     "happy path",
			email:    "ASHA@janaagraha.org",
			password: "s3cret-pass",
			issuer:   stubIssuer{token: "signed"},
			setupMocks: func(mUsers *repoMocks.MockUserRepository) {
				mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(stored, nil)
			},
		},
		{
			name:     "wrong password",
			email:    "asha@janaagraha.org",
			password: "nope",
			setupMocks: func(mUsers *repoMocks.MockUserRepository) {
				mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(stored, nil)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			email:    "ghost@janaagraha.org",
			password: "s3cret-pass",
			setupMocks: func(mUsers *repoMocks.MockUserRepository) {
				mUsers.On("FindByEmail", ctx, "ghost@janaagraha.org").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "token signing fails",
			email:    "asha@janaagraha.org",
			password: "s3cret-pass",
			issuer:   stubIssuer{err: errors.New("no key")},
			setupMocks: func(mUsers *repoMocks.MockUserRepository) {
				mUsers.On("FindByEmail", ctx, "asha@janaagraha.org").Return(stored, nil)
			},
			wantErrMsg: "issue token: no key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mUsers := new(repoMocks.MockUserRepository)
			svc := newTestAuthService(mUsers, new(repoMocks.MockRoleRepository), tt.issuer)
			tt.setupMocks(mUsers)

			res, err := svc.SignIn(ctx, tt.email, tt.password)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			case tt.wantErrMsg != "":
				assert.EqualError(t, err, tt.wantErrMsg)
				assert.Nil(t, res)
			default:
				require.NoError(t, err)
				assert.Equal(t, &SignInResult{
					ID:          "user-1",
					Username:    "asha",
					Email:       "asha@janaagraha.org",
					Department:  "IT",
					Roles:       []string{"user"},
					AccessToken: "signed",
				}, res)
			}
			mUsers.AssertExpectations(t)
		})
	}
}

func TestAuthService_Me(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mUsers := new(repoMocks.MockUserRepository)
		mUsers.On("FindByID", ctx, "user-1").Return(&model.User{ID: "user-1"}, nil)
		svc := newTestAuthService(mUsers, new(repoMocks.MockRoleRepository), stubIssuer{})

		u, err := svc.Me(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "user-1", u.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mUsers := new(repoMocks.MockUserRepository)
		mUsers.On("FindByID", ctx, "gone").Return(nil, sql.ErrNoRows)
		svc := newTestAuthService(mUsers, new(repoMocks.MockRoleRepository), stubIssuer{})

		_, err := svc.Me(ctx, "gone")

		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestAuthService_SeedRoles(t *testing.T) {
	ctx := context.Background()

	t.Run("empty table is seeded", func(t *testing.T) {
		mRoles := new(repoMocks.MockRoleRepository)
		mRoles.On("Count", ctx).Return(0, nil)
		for i, name := range model.DefaultRoles {
			mRoles.On("Create", ctx, name).Return(&model.Role{ID: int64(i + 1), Name: name}, nil).Once()
		}
		svc := newTestAuthService(new(repoMocks.MockUserRepository), mRoles, stubIssuer{})

		require.NoError(t, svc.SeedRoles(ctx))
		mRoles.AssertExpectations(t)
	})

	t.Run("existing roles are left alone", func(t *testing.T) {
		mRoles := new(repoMocks.MockRoleRepository)
		mRoles.On("Count", ctx).Return(3, nil)
		svc := newTestAuthService(new(repoMocks.MockUserRepository), mRoles, stubIssuer{})

		require.NoError(t, svc.SeedRoles(ctx))
		mRoles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("insert failure", func(t *testing.T) {
		mRoles := new(repoMocks.MockRoleRepository)
		mRoles.On("Count", ctx).Return(0, nil)
		mRoles.On("Create", ctx, "user").Return(nil, errors.New("db down"))
		svc := newTestAuthService(new(repoMocks.MockUserRepository), mRoles, stubIssuer{})

		assert.EqualError(t, svc.SeedRoles(ctx), `create role "user": db down`)
	})
}
