package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinic/internal/platform/db"
	"github.com/clinicore/clinic/internal/platform/metrics"
	"github.com/clinicore/clinic/internal/platform/result"
)

const minPasswordLength = 8

var validate = validator.New()

type RegisterPatientRequest struct {
	FirstName        string     `json:"first_name" validate:"required,max=100"`
	LastName         string     `json:"last_name" validate:"required,max=100"`
	Email            string     `json:"email" validate:"omitempty,email,max=254"`
	Phone            string     `json:"phone" validate:"omitempty,max=32"`
	Gender           string     `json:"gender" validate:"omitempty,oneof=male female other unknown"`
	DateOfBirth      *time.Time `json:"date_of_birth"`
	Address          string     `json:"address" validate:"max=500"`
	AssignedDoctorID *uuid.UUID `json:"assigned_doctor_id"`
}

type RegisterUserRequest struct {
	FirstName string     `json:"first_name" validate:"required,max=100"`
	LastName  string     `json:"last_name" validate:"required,max=100"`
	Email     string     `json:"email" validate:"required,email,max=254"`
	Phone     string     `json:"phone" validate:"omitempty,max=32"`
	Specialty string     `json:"specialty" validate:"max=100"`
	RoleID    *uuid.UUID `json:"role_id"`
}

type CreateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Global      bool   `json:"global"`
}

type Service struct {
	patients PatientRepository
	users    UserRepository
	roles    RoleRepository
	setupTTL time.Duration
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(patients PatientRepository, users UserRepository, roles RoleRepository, setupTTL time.Duration) *Service {
	return &Service{
		patients: patients,
		users:    users,
		roles:    roles,
		setupTTL: setupTTL,
		log:      zerolog.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.log = l.With().Str("component", "identity").Logger() }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// -- Patient --

func (s *Service) RegisterPatient(ctx context.Context, tenantID string, req RegisterPatientRequest) (res result.Result[*Patient], err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("patient.register", start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Patient](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	normalizePatientRequest(&req)
	if verr := validate.Struct(req); verr != nil {
		return result.Fail[*Patient](result.CodeValidationRequest, formatValidationError(verr)), nil
	}

	if req.Email != "" {
		_, err := s.patients.GetByEmail(ctx, tenantID, req.Email)
		switch {
		case err == nil:
			return result.Fail[*Patient](result.CodePatientEmailExists, "a patient with this email already exists"), nil
		case !errors.Is(err, db.ErrNotFound):
			return result.Result[*Patient]{}, fmt.Errorf("lookup patient email: %w", err)
		}
	}

	p := &Patient{
		TenantID:    tenantID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       optional(req.Email),
		Phone:       optional(req.Phone),
		Gender:      optional(req.Gender),
		DateOfBirth: req.DateOfBirth,
		Address:     optional(req.Address),
	}

	if req.AssignedDoctorID != nil && *req.AssignedDoctorID != uuid.Nil {
		doc, err := s.users.GetByID(ctx, tenantID, *req.AssignedDoctorID)
		if errors.Is(err, db.ErrNotFound) {
			return result.Fail[*Patient](result.CodeDoctorNotFound, "assigned doctor not found"), nil
		}
		if err != nil {
			return result.Result[*Patient]{}, fmt.Errorf("lookup assigned doctor: %w", err)
		}
		name := doc.FullName()
		p.AssignedDoctorID = &doc.ID
		p.AssignedDoctorName = &name
	}

	if err := s.patients.Create(ctx, p); err != nil {
		s.log.Error().Err(err).Str("tenant_id", tenantID).Msg("create patient failed")
		return result.Result[*Patient]{}, fmt.Errorf("create patient: %w", err)
	}
	s.log.Info().Str("tenant_id", tenantID).Str("patient_id", p.ID.String()).Msg("patient registered")
	return result.Ok(p), nil
}

func (s *Service) DeletePatient(ctx context.Context, tenantID string, id uuid.UUID) (res result.Empty, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("patient.delete", start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Failed(result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	p, err := s.patients.GetByIDForUpdate(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return result.Failed(result.CodePatientNotFound, "patient not found"), nil
	}
	if err != nil {
		return result.Empty{}, fmt.Errorf("load patient: %w", err)
	}
	if p.TenantID != tenantID {
		return result.Failed(result.CodePatientForbidden, "patient belongs to another tenant"), nil
	}
	if p.IsDeleted {
		return result.Success(), nil
	}
	if err := s.patients.Delete(ctx, tenantID, id); err != nil {
		return result.Empty{}, fmt.Errorf("delete patient: %w", err)
	}
	return result.Success(), nil
}

// -- User --

func (s *Service) RegisterUser(ctx context.Context, tenantID string, req RegisterUserRequest) (res result.Result[*User], err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("user.register", start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*User](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Specialty = strings.TrimSpace(req.Specialty)
	if verr := validate.Struct(req); verr != nil {
		return result.Fail[*User](result.CodeValidationRequest, formatValidationError(verr)), nil
	}

	_, err = s.users.GetByEmail(ctx, tenantID, req.Email)
	switch {
	case err == nil:
		return result.Fail[*User](result.CodeUserEmailExists, "a user with this email already exists"), nil
	case !errors.Is(err, db.ErrNotFound):
		return result.Result[*User]{}, fmt.Errorf("lookup user email: %w", err)
	}

	u := &User{
		TenantID:  tenantID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     optional(req.Phone),
		Specialty: optional(req.Specialty),
	}

	if req.RoleID != nil && *req.RoleID != uuid.Nil {
		role, err := s.roles.GetByID(ctx, tenantID, *req.RoleID)
		if errors.Is(err, db.ErrNotFound) {
			return result.Fail[*User](result.CodeRoleNotFound, "role not found"), nil
		}
		if err != nil {
			return result.Result[*User]{}, fmt.Errorf("lookup role: %w", err)
		}
		u.RoleID = &role.ID
	}

	token, err := newSetupToken()
	if err != nil {
		return result.Result[*User]{}, err
	}
	expires := s.now().Add(s.setupTTL)
	u.SetupToken = &token
	u.SetupTokenExpiresAt = &expires

	if err := s.users.Create(ctx, u); err != nil {
		s.log.Error().Err(err).Str("tenant_id", tenantID).Msg("create user failed")
		return result.Result[*User]{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info().Str("tenant_id", tenantID).Str("user_id", u.ID.String()).Msg("user registered")
	return result.Ok(u), nil
}

// CompletePasswordSetup consumes a one-time setup token and stores the user's password.
func (s *Service) CompletePasswordSetup(ctx context.Context, tenantID, token, password string) (res result.Empty, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("user.passwordSetup", start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Failed(result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return result.Failed(result.CodeUserSetupTokenInvalid, "setup token is invalid"), nil
	}
	if len(password) < minPasswordLength {
		return result.Failed(result.CodeValidationPasswordShort,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength)), nil
	}

	u, err := s.users.GetBySetupToken(ctx, tenantID, token)
	if errors.Is(err, db.ErrNotFound) {
		return result.Failed(result.CodeUserSetupTokenInvalid, "setup token is invalid"), nil
	}
	if err != nil {
		return result.Empty{}, fmt.Errorf("lookup setup token: %w", err)
	}
	if u.SetupTokenExpiresAt == nil || !s.now().Before(*u.SetupTokenExpiresAt) {
		return result.Failed(result.CodeUserSetupTokenExpired, "setup token has expired"), nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return result.Empty{}, fmt.Errorf("hash password: %w", err)
	}
	h := string(hash)
	u.PasswordHash = &h
	u.PasswordConfirmed = true
	u.SetupToken = nil
	u.SetupTokenExpiresAt = nil

	if err := s.users.Update(ctx, u); err != nil {
		return result.Empty{}, fmt.Errorf("update user: %w", err)
	}
	return result.Success(), nil
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(u *User, password string) bool {
	if u == nil || u.PasswordHash == nil || !u.PasswordConfirmed {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)) == nil
}

func (s *Service) DeleteUser(ctx context.Context, tenantID string, id uuid.UUID) (res result.Empty, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("user.delete", start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Failed(result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	u, err := s.users.GetByIDForUpdate(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return result.Failed(result.CodeUserNotFound, "user not found"), nil
	}
	if err != nil {
		return result.Empty{}, fmt.Errorf("load user: %w", err)
	}
	if u.TenantID != tenantID {
		return result.Failed(result.CodeUserForbidden, "user belongs to another tenant"), nil
	}
	if u.IsDeleted {
		return result.Success(), nil
	}
	if err := s.users.Delete(ctx, tenantID, id); err != nil {
		return result.Empty{}, fmt.Errorf("delete user: %w", err)
	}
	return result.Success(), nil
}

// -- Role --

func (s *Service) CreateRole(ctx context.Context, tenantID string, req CreateRoleRequest) (res result.Result[*Role], err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("role.create", start, res.Code(), err) }()

	tenantID = db.NormalizeTenantID(tenantID)
	if !db.ValidTenantID(tenantID) {
		return result.Fail[*Role](result.CodeTenantInvalid, "tenant id is invalid"), nil
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return result.Fail[*Role](result.CodeValidationRoleName, "role name is required"), nil
	}

	scope := tenantID
	if req.Global {
		scope = db.GlobalTenantID
	}
	_, err = s.roles.GetByName(ctx, scope, name)
	switch {
	case err == nil:
		return result.Fail[*Role](result.CodeRoleExists, "a role with this name already exists"), nil
	case !errors.Is(err, db.ErrNotFound):
		return result.Result[*Role]{}, fmt.Errorf("lookup role name: %w", err)
	}

	role := &Role{
		TenantID:    scope,
		Name:        name,
		Description: optional(strings.TrimSpace(req.Description)),
		IsGlobal:    req.Global,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return result.Result[*Role]{}, fmt.Errorf("create role: %w", err)
	}
	return result.Ok(role), nil
}

func normalizePatientRequest(req *RegisterPatientRequest) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Gender = strings.ToLower(strings.TrimSpace(req.Gender))
	req.Address = strings.TrimSpace(req.Address)
}

func newSetupToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate setup token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "request is invalid"
	}
	first := verrs[0]
	field := strings.ToLower(first.Field())
	switch first.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "max":
		return field + " must be at most " + first.Param() + " characters"
	case "oneof":
		return field + " must be one of " + strings.Join(strings.Fields(first.Param()), ", ")
	default:
		return field + " is invalid"
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
