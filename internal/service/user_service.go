package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"dailyshot/internal/models"
	"dailyshot/internal/repository"
	"dailyshot/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo    repository.UserRepository
	adminEmails []string
	hashCost    int
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,password"`
	Image    string `json:"image" validate:"omitempty,max=2048,imageref"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// NewUserService builds the credentials service. Users registering with an address in
// adminEmails are created as administrators.
func NewUserService(userRepo repository.UserRepository, adminEmails []string) *UserService {
	return &UserService{
		userRepo:    userRepo,
		adminEmails: adminEmails,
		hashCost:    bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.hashCost = cost
	return s
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Image = strings.TrimSpace(in.Image)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hash := string(hashed)

	user := &models.User{
		Email:    in.Email,
		Name:     in.Name,
		Image:    in.Image,
		Password: &hash,
		IsAdmin:  slices.Contains(s.adminEmails, in.Email),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewDuplicateError("Email already registered", err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *UserService) Authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || user.Password == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// IsAdmin reports whether id belongs to an administrator. Unknown users are not admins.
func (s *UserService) IsAdmin(ctx context.Context, id uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin, nil
}

// SetAdminByEmail grants or revokes admin rights for an existing account.
func (s *UserService) SetAdminByEmail(ctx context.Context, email string, admin bool) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, models.NewNotFoundMessage(fmt.Sprintf("No user with email %s", strings.TrimSpace(email)))
	}
	if err := s.userRepo.SetAdmin(ctx, user.ID, admin); err != nil {
		return nil, fmt.Errorf("set admin: %w", err)
	}
	user.IsAdmin = admin
	return user, nil
}

// SyncAdmins promotes existing accounts listed in the configured admin emails.
func (s *UserService) SyncAdmins(ctx context.Context) (int64, error) {
	return s.userRepo.PromoteByEmails(ctx, s.adminEmails)
}
