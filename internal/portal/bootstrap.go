package portal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

const (
	adminLogin    = "admin"
	adminFullName = "Administrador do Sistema"

	sampleProjectCode   = "PRJ000001"
	sampleIncidentTitle = "Incidente de Exemplo"
)

// Built-in profile descriptions
var defaultProfiles = []store.Profile{
	{Name: store.ProfileAdmin, Description: "Administrador do sistema"},
	{Name: store.ProfileUser, Description: "Usuário comum"},
}

// Migrate applies pending schema migrations.
func (s *Service) Migrate(ctx context.Context) error {
	if err := s.db.RunMigrations(ctx, store.Migrations()); err != nil {
		return fmt.Errorf("migrating portal schema: %w", err)
	}
	return nil
}

// EnsureProfiles creates the ADMIN and USUARIO profiles when missing.
func (s *Service) EnsureProfiles(ctx context.Context) error {
	for _, p := range defaultProfiles {
		_, created, err := s.store.Profiles.Ensure(ctx, p.Name, p.Description)
		if err != nil {
			return fmt.Errorf("ensuring profile %s: %w", p.Name, err)
		}
		if created {
			s.logger.Info("Profile created", "profile", p.Name)
		}
	}
	return nil
}

// AdminResult reports the outcome of EnsureAdmin. GeneratedPassword is set
// only when the password was generated and must be shown to the operator.
type AdminResult struct {
	User              store.User
	Created           bool
	GeneratedPassword string
}

// EnsureAdmin creates the ADMIN profile and the admin user when missing.
// An empty password is replaced by a generated one.
func (s *Service) EnsureAdmin(ctx context.Context, password string) (AdminResult, error) {
	var res AdminResult
	profile, _, err := s.store.Profiles.Ensure(ctx, store.ProfileAdmin, defaultProfiles[0].Description)
	if err != nil {
		return res, fmt.Errorf("ensuring admin profile: %w", err)
	}

	existing, err := s.store.Users.GetByLogin(ctx, adminLogin)
	if err == nil {
		res.User = existing
		return res, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return res, err
	}

	if password == "" {
		if password, err = generatePassword(); err != nil {
			return res, err
		}
		res.GeneratedPassword = password
	}
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return res, err
	}
	u := store.User{
		ProfileID:    profile.ID,
		Login:        adminLogin,
		FullName:     adminFullName,
		Email:        s.config.AdminEmail,
		PasswordHash: hash,
		Status:       store.UserActive,
		CreatedAt:    s.now(),
	}
	if err := s.store.Users.Create(ctx, &u); err != nil {
		return res, fmt.Errorf("creating admin user: %w", err)
	}
	s.publish(ctx, Change{Entity: EntityUser, Action: ActionCreated, EntityID: u.ID, Summary: u.Login})
	res.User = u
	res.Created = true
	return res, nil
}

// ResetAdminPassword sets a new admin password. An empty password is
// replaced by a generated one, which is returned.
func (s *Service) ResetAdminPassword(ctx context.Context, password string) (string, error) {
	u, err := s.store.Users.GetByLogin(ctx, adminLogin)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrAdminMissing
	}
	if err != nil {
		return "", err
	}

	var generated string
	if password == "" {
		if password, err = generatePassword(); err != nil {
			return "", err
		}
		generated = password
	}
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	if err := s.store.Users.SetPassword(ctx, u.ID, hash); err != nil {
		return "", err
	}
	s.publish(ctx, Change{Entity: EntityUser, Action: ActionUpdated, EntityID: u.ID, Summary: "admin password reset"})
	return generated, nil
}

// Bootstrap prepares the database for serving: migrations, built-in
// profiles and, when a password is configured, the admin user.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	if err := s.EnsureProfiles(ctx); err != nil {
		return err
	}

	if s.config.AdminPassword != "" {
		res, err := s.EnsureAdmin(ctx, s.config.AdminPassword)
		if err != nil {
			return err
		}
		if res.Created {
			s.logger.Info("Admin user created", "login", adminLogin)
		}
		return nil
	}
	if _, err := s.store.Users.GetByLogin(ctx, adminLogin); errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("No admin user exists; run 'portal admin create' or set portal.admin_password")
	}
	return nil
}

// InitOptions controls InitDatabase.
type InitOptions struct {
	Force         bool
	WithSample    bool
	AdminPassword string
}

// InitDatabase builds the schema with the built-in profiles and the admin
// user. With Force every portal table and every session is dropped first;
// without it a database that already holds users is refused.
func (s *Service) InitDatabase(ctx context.Context, opts InitOptions) (AdminResult, error) {
	var res AdminResult
	if opts.Force {
		if err := store.DropAll(ctx, s.db.DB()); err != nil {
			return res, err
		}
		s.logger.Warn("Portal tables dropped")
		// Ids restart after the drop, so earlier sessions could resolve to new users.
		n, err := s.auth.RevokeAllSessions(ctx)
		if err != nil {
			return res, err
		}
		s.logger.Warn("Sessions revoked", "count", n)
	}
	if err := s.Migrate(ctx); err != nil {
		return res, err
	}
	if !opts.Force {
		n, err := s.store.Users.Count(ctx)
		if err != nil {
			return res, err
		}
		if n > 0 {
			return res, ErrAlreadyInitialized
		}
	}
	if err := s.EnsureProfiles(ctx); err != nil {
		return res, err
	}
	password := opts.AdminPassword
	if password == "" {
		password = s.config.AdminPassword
	}
	res, err := s.EnsureAdmin(ctx, password)
	if err != nil {
		return res, err
	}
	if opts.WithSample {
		if err := s.createSample(ctx, res.User); err != nil {
			return res, err
		}
	}
	return res, nil
}

// createSample adds the example project and incident.
func (s *Service) createSample(ctx context.Context, admin store.User) error {
	p, err := s.CreateProject(ctx, admin, ProjectInput{
		Code:             sampleProjectCode,
		Name:             "Projeto de Exemplo",
		EconomicControl:  "CE001",
		InitiativeNumber: "INI001",
		Situation:        store.ProjectActive,
	})
	if err != nil {
		return fmt.Errorf("creating sample project: %w", err)
	}
	_, err = s.CreateIncident(ctx, admin, IncidentInput{
		ProjectID:   p.ID,
		Title:       sampleIncidentTitle,
		Description: "Este é um incidente de exemplo criado durante a inicialização do banco de dados.",
		Priority:    store.PriorityMedium,
	})
	if err != nil {
		return fmt.Errorf("creating sample incident: %w", err)
	}
	return nil
}

const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generatePassword() (string, error) {
	const length = 16
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	for i, b := range buf {
		buf[i] = passwordAlphabet[int(b)%len(passwordAlphabet)]
	}
	return string(buf), nil
}
