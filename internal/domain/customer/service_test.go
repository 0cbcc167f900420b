package customer

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront-orders/internal/validation"
)

type mockRepo struct {
	created   []*Customer
	customers []Customer
	createErr error
	listErr   error
}

func (m *mockRepo) Create(_ context.Context, c *Customer) error {
	if m.createErr != nil {
		return m.createErr
	}
	c.ID = int64(len(m.created) + 1)
	m.created = append(m.created, c)
	return nil
}

func (m *mockRepo) List(_ context.Context) ([]Customer, error) {
	return m.customers, m.listErr
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Customer, error) {
	for i := range m.customers {
		if m.customers[i].ID == id {
			return &m.customers[i], nil
		}
	}
	return nil, ErrNotFound
}

func newTestService(repo Repository) *Service {
	return NewService(repo, WithHashCost(bcrypt.MinCost))
}

func TestRegister(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)

	c, err := svc.Register(context.Background(), Registration{
		Name:     "  Ana Souza ",
		Email:    "Ana@Example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "Ana Souza", c.Name)
	assert.Equal(t, "ana@example.com", c.Email)
	assert.Equal(t, RoleRegular, c.Role)
	assert.NotEqual(t, "s3cret-pass", c.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte("s3cret-pass")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte("wrong")))
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name      string
		reg       Registration
		wantField string
		wantCode  string
	}{
		{name: "missing name", reg: Registration{Email: "a@b.io", Password: "x"}, wantField: "name", wantCode: "required"},
		{name: "missing email", reg: Registration{Name: "A", Password: "x"}, wantField: "email", wantCode: "required"},
		{name: "malformed email", reg: Registration{Name: "A", Email: "not-an-email", Password: "x"}, wantField: "email", wantCode: "invalid_format"},
		{name: "display name in email", reg: Registration{Name: "A", Email: "Bob <bob@b.io>", Password: "x"}, wantField: "email", wantCode: "invalid_format"},
		{name: "missing password", reg: Registration{Name: "A", Email: "a@b.io"}, wantField: "password", wantCode: "required"},
		{name: "unknown role", reg: Registration{Name: "A", Email: "a@b.io", Password: "x", Role: "root"}, wantField: "role", wantCode: "unknown_role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			_, err := newTestService(repo).Register(context.Background(), tt.reg)

			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantCode, verr.Violations[tt.wantField])
			assert.Empty(t, repo.created)
		})
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	svc := newTestService(&mockRepo{createErr: ErrEmailTaken})

	_, err := svc.Register(context.Background(), Registration{Name: "A", Email: "a@b.io", Password: "pw"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestList_Error(t *testing.T) {
	svc := newTestService(&mockRepo{listErr: errors.New("db down")})

	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list customers")
}

func TestGet(t *testing.T) {
	svc := newTestService(&mockRepo{customers: []Customer{{ID: 7, Name: "Bia"}}})

	c, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Bia", c.Name)

	_, err = svc.Get(context.Background(), 8)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWithHashCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewService(nil, WithHashCost(bcrypt.MinCost)).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewService(nil, WithHashCost(bcrypt.MaxCost+1)).cost)
}
