package customer

import (
	"context"
	"net/mail"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront-orders/internal/validation"
)

// maxPasswordLen is the longest input bcrypt accepts.
const maxPasswordLen = 72

// Registration is the input for creating a customer.
type Registration struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// Service handles customer registration and lookups.
type Service struct {
	repo Repository
	cost int
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost overrides bcrypt.DefaultCost for password hashing.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// NewService creates a customer Service backed by repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register validates the registration, hashes the password and stores the
// customer. The plain password never leaves this function.
func (s *Service) Register(ctx context.Context, reg Registration) (*Customer, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	if reg.Role == "" {
		reg.Role = RoleRegular
	}

	v := validation.Violations{}
	v.Required("name", reg.Name)
	v.MaxLen("name", reg.Name, 255)
	v.Required("email", reg.Email)
	v.MaxLen("email", reg.Email, 255)
	if reg.Email != "" {
		if addr, err := mail.ParseAddress(reg.Email); err != nil || addr.Address != reg.Email {
			v.Add("email", "invalid_format")
		}
	}
	v.Required("password", reg.Password)
	v.MaxLen("password", reg.Password, maxPasswordLen)
	if !reg.Role.Valid() {
		v.Add("role", "unknown_role")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	c := &Customer{
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: string(hash),
		Role:         reg.Role,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create customer")
	}
	return c, nil
}

// List returns every customer ordered by ID.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	customers, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	return customers, nil
}

// Get returns a single customer.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get customer")
	}
	return c, nil
}
