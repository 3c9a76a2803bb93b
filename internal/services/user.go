package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/visaflow/visaflow-backend/internal/apperr"
	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/repos"
	"github.com/visaflow/visaflow-backend/internal/types"
)

type RegisterUserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`

	Languages []string `json:"languages"`
}

type UserService interface {
	Register(ctx context.Context, input RegisterUserInput) (*types.User, error)
	GetAll(ctx context.Context) ([]*types.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo) UserService {
	serviceLog := baseLog.With("service", "UserService")
	return &userService{db: db, log: serviceLog, userRepo: userRepo}
}

func (us *userService) Register(ctx context.Context, input RegisterUserInput) (*types.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	switch {
	case name == "":
		return nil, apperr.New(apperr.KindValidation, "name is required")
	case email == "" || !strings.Contains(email, "@"):
		return nil, apperr.New(apperr.KindValidation, "a valid email is required")
	case len(input.Password) < 8:
		return nil, apperr.New(apperr.KindValidation, "password must be at least 8 characters")
	}

	exists, err := us.userRepo.EmailExists(ctx, nil, email)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to check email", err)
	}
	if exists {
		return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("an account already exists for %s", email))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}

	user := &types.User{
		ID:       uuid.New(),
		Name:     name,
		Email:    email,
		Password: string(hash),
		Address:  strings.TrimSpace(input.Address),
		Phone:    strings.TrimSpace(input.Phone),
		Role:     types.RoleUser,
		Active:   true,
	}
	if len(input.Languages) > 0 {
		raw, err := json.Marshal(input.Languages)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "invalid languages list", err)
		}
		user.Languages = datatypes.JSON(raw)
	}
	if _, err := us.userRepo.Create(ctx, nil, user); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create user", err)
	}
	us.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (us *userService) GetAll(ctx context.Context) ([]*types.User, error) {
	users, err := us.userRepo.GetAll(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list users", err)
	}
	return users, nil
}

func (us *userService) GetByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	user, err := us.userRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("user %s not found", id))
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load user", err)
	}
	return user, nil
}

func (us *userService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := us.GetByID(ctx, id); err != nil {
		return err
	}
	if err := us.userRepo.Delete(ctx, nil, id); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete user", err)
	}
	us.log.Info("user deleted", "user_id", id)
	return nil
}
