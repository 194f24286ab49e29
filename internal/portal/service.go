package portal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GoCodeAlone/modular"

	"github.com/GoCodeAlone/portal/internal/portal/store"
	"github.com/GoCodeAlone/portal/modules/auth"
	"github.com/GoCodeAlone/portal/modules/database"
)

// Service applies the portal's business rules on top of the store. Every
// successful mutation publishes a change event.
type Service struct {
	db     Database
	store  *store.Store
	auth   *auth.Service
	events *Events
	config *Config
	logger modular.Logger
	now    func() time.Time
}

// Database is the part of the database service used for schema
// maintenance.
type Database interface {
	DB() *sql.DB
	RunMigrations(ctx context.Context, migrations []database.Migration) error
}

// NewService creates the service. st must be built over db.
func NewService(db Database, st *store.Store, authSvc *auth.Service, events *Events, cfg *Config, logger modular.Logger) *Service {
	return &Service{
		db:     db,
		store:  st,
		auth:   authSvc,
		events: events,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store { return s.store }

func (s *Service) publish(ctx context.Context, c Change) {
	if _, err := s.events.Publish(ctx, c); err != nil {
		s.logger.Warn("Change event not fully published", "entity", c.Entity, "action", c.Action, "error", err)
	}
}

func checkLen(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return &FieldError{Field: field, Kind: FieldTooLong, Max: max}
	}
	return nil
}

// firstError returns the first non-nil error.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Authenticate verifies a login and password and stamps the last login
// time. Unknown logins, wrong passwords and inactive users all fail with
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (store.User, error) {
	u, err := s.store.Users.GetByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		return u, ErrInvalidCredentials
	}
	if err != nil {
		return u, err
	}
	if err := s.auth.VerifyPassword(u.PasswordHash, password); err != nil {
		return u, ErrInvalidCredentials
	}
	if !u.IsActive() {
		return u, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.store.Users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return u, err
	}
	u.LastLoginAt = &now
	s.publish(ctx, Change{Entity: EntityUser, Action: ActionLogin, EntityID: u.ID, Actor: &u, Summary: "login " + u.Login})
	return u, nil
}

// ProjectInput is the editable part of a project.
type ProjectInput struct {
	Code             string
	Name             string
	EconomicControl  string
	InitiativeNumber string
	Situation        string
}

func (in ProjectInput) validate() error {
	for _, f := range []struct{ name, v string }{
		{"codigo_projeto", in.Code},
		{"nome_projeto", in.Name},
		{"controle_economico", in.EconomicControl},
		{"numero_iniciativa", in.InitiativeNumber},
		{"situacao_projeto", in.Situation},
	} {
		if f.v == "" {
			return required(f.name)
		}
	}
	if !store.IsProjectSituation(in.Situation) {
		return invalid("situacao_projeto")
	}
	return firstError(
		checkLen("codigo_projeto", in.Code, 10),
		checkLen("nome_projeto", in.Name, 100),
		checkLen("controle_economico", in.EconomicControl, 50),
		checkLen("numero_iniciativa", in.InitiativeNumber, 50),
	)
}

func (in ProjectInput) apply(p *store.Project) {
	p.Code = in.Code
	p.Name = in.Name
	p.EconomicControl = in.EconomicControl
	p.InitiativeNumber = in.InitiativeNumber
	p.Situation = in.Situation
}

// CreateProject creates a project authored by actor. A new project counts
// as updated by its creator.
func (s *Service) CreateProject(ctx context.Context, actor store.User, in ProjectInput) (store.Project, error) {
	var p store.Project
	if err := in.validate(); err != nil {
		return p, err
	}
	in.apply(&p)
	now := s.now()
	p.CreatedBy = actor.ID
	p.UpdatedBy = &actor.ID
	p.CreatedAt = now
	p.UpdatedAt = &now
	if err := s.store.Projects.Create(ctx, &p); err != nil {
		return p, err
	}
	s.publish(ctx, Change{Entity: EntityProject, Action: ActionCreated, EntityID: p.ID, Actor: &actor, Summary: p.Code + " " + p.Name})
	return p, nil
}

// UpdateProject rewrites p from in and stamps the update.
func (s *Service) UpdateProject(ctx context.Context, actor store.User, p store.Project, in ProjectInput) (store.Project, error) {
	if err := in.validate(); err != nil {
		return p, err
	}
	in.apply(&p)
	now := s.now()
	p.UpdatedBy = &actor.ID
	p.UpdatedAt = &now
	if err := s.store.Projects.Update(ctx, p); err != nil {
		return p, err
	}
	s.publish(ctx, Change{Entity: EntityProject, Action: ActionUpdated, EntityID: p.ID, Actor: &actor, Summary: p.Code})
	return p, nil
}

func (s *Service) DeleteProject(ctx context.Context, actor store.User, p store.Project) error {
	if err := s.store.Projects.Delete(ctx, p.ID); err != nil {
		return err
	}
	s.publish(ctx, Change{Entity: EntityProject, Action: ActionDeleted, EntityID: p.ID, Actor: &actor, Summary: p.Code})
	return nil
}

// IncidentInput is the editable part of an incident. Status is ignored on
// creation.
type IncidentInput struct {
	ProjectID   int64
	Title       string
	Description string
	Priority    string
	Status      string
}

func (in IncidentInput) validate(creating bool) error {
	if creating && in.ProjectID == 0 {
		return required("id_projeto")
	}
	switch {
	case in.Title == "":
		return required("titulo")
	case in.Description == "":
		return required("descricao")
	case in.Priority == "":
		return required("prioridade")
	case !creating && in.Status == "":
		return required("status")
	case !store.IsPriority(in.Priority):
		return invalid("prioridade")
	case !creating && !store.IsIncidentStatus(in.Status):
		return invalid("status")
	}
	return checkLen("titulo", in.Title, 200)
}

// CreateIncident opens an incident; its status always starts as ABERTO.
func (s *Service) CreateIncident(ctx context.Context, actor store.User, in IncidentInput) (store.Incident, error) {
	var i store.Incident
	if err := in.validate(true); err != nil {
		return i, err
	}
	now := s.now()
	i = store.Incident{
		ProjectID:   in.ProjectID,
		CreatedBy:   actor.ID,
		UpdatedBy:   &actor.ID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      store.IncidentOpen,
		CreatedAt:   now,
		UpdatedAt:   &now,
	}
	if err := s.store.Incidents.Create(ctx, &i); err != nil {
		return i, err
	}
	s.publish(ctx, Change{Entity: EntityIncident, Action: ActionCreated, EntityID: i.ID, Actor: &actor, Summary: i.Title})
	return i, nil
}

// UpdateIncident rewrites the incident. Moving it to RESOLVIDO or FECHADO
// stamps the resolution time.
func (s *Service) UpdateIncident(ctx context.Context, actor store.User, i store.Incident, in IncidentInput) (store.Incident, error) {
	if err := in.validate(false); err != nil {
		return i, err
	}
	now := s.now()
	i.Title = in.Title
	i.Description = in.Description
	i.Priority = in.Priority
	i.Status = in.Status
	i.UpdatedBy = &actor.ID
	i.UpdatedAt = &now
	if store.IncidentResolves(i.Status) {
		i.ResolvedAt = &now
	}
	if err := s.store.Incidents.Update(ctx, i); err != nil {
		return i, err
	}
	s.publish(ctx, Change{Entity: EntityIncident, Action: ActionUpdated, EntityID: i.ID, Actor: &actor, Summary: i.Title + " " + i.Status})
	return i, nil
}

func (s *Service) DeleteIncident(ctx context.Context, actor store.User, i store.Incident) error {
	if err := s.store.Incidents.Delete(ctx, i.ID); err != nil {
		return err
	}
	s.publish(ctx, Change{Entity: EntityIncident, Action: ActionDeleted, EntityID: i.ID, Actor: &actor, Summary: i.Title})
	return nil
}

// TaskInput is the editable part of a task. Status is ignored on creation.
type TaskInput struct {
	ProjectID   int64
	AssigneeID  *int64
	Title       string
	Description string
	Priority    string
	Status      string
	DueDate     *time.Time
}

func (in TaskInput) validate(creating bool) error {
	switch {
	case in.Title == "":
		return required("titulo")
	case in.Description == "":
		return required("descricao")
	case in.Priority == "":
		return required("prioridade")
	case in.ProjectID == 0:
		return required("id_projeto")
	case !creating && in.Status == "":
		return required("status")
	case !store.IsPriority(in.Priority):
		return invalid("prioridade")
	case !creating && !store.IsTaskStatus(in.Status):
		return invalid("status")
	}
	return checkLen("titulo", in.Title, 200)
}

// CreateTask creates a task; its status always starts as PENDENTE.
func (s *Service) CreateTask(ctx context.Context, actor store.User, in TaskInput) (store.Task, error) {
	var t store.Task
	if err := in.validate(true); err != nil {
		return t, err
	}
	now := s.now()
	t = store.Task{
		ProjectID:   in.ProjectID,
		CreatedBy:   actor.ID,
		UpdatedBy:   &actor.ID,
		AssigneeID:  in.AssigneeID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      store.TaskPending,
		CreatedAt:   now,
		UpdatedAt:   &now,
		DueDate:     in.DueDate,
	}
	if err := s.store.Tasks.Create(ctx, &t); err != nil {
		return t, err
	}
	s.publish(ctx, Change{Entity: EntityTask, Action: ActionCreated, EntityID: t.ID, Actor: &actor, Summary: t.Title})
	return t, nil
}

// UpdateTask rewrites every task field. Completing a task stamps its
// completion time once; any other status clears it.
func (s *Service) UpdateTask(ctx context.Context, actor store.User, t store.Task, in TaskInput) (store.Task, error) {
	if err := in.validate(false); err != nil {
		return t, err
	}
	now := s.now()
	t.ProjectID = in.ProjectID
	t.AssigneeID = in.AssigneeID
	t.Title = in.Title
	t.Description = in.Description
	t.Priority = in.Priority
	t.Status = in.Status
	t.DueDate = in.DueDate
	t.UpdatedBy = &actor.ID
	t.UpdatedAt = &now
	switch {
	case t.Status == store.TaskDone && t.CompletedAt == nil:
		t.CompletedAt = &now
	case t.Status != store.TaskDone:
		t.CompletedAt = nil
	}
	if err := s.store.Tasks.Update(ctx, t); err != nil {
		return t, err
	}
	s.publish(ctx, Change{Entity: EntityTask, Action: ActionUpdated, EntityID: t.ID, Actor: &actor, Summary: t.Title + " " + t.Status})
	return t, nil
}

func (s *Service) DeleteTask(ctx context.Context, actor store.User, t store.Task) error {
	if err := s.store.Tasks.Delete(ctx, t.ID); err != nil {
		return err
	}
	s.publish(ctx, Change{Entity: EntityTask, Action: ActionDeleted, EntityID: t.ID, Actor: &actor, Summary: t.Title})
	return nil
}

// UserInput is the editable part of a user. An empty Password on update
// keeps the current one.
type UserInput struct {
	ProfileID int64
	Login     string
	FullName  string
	Email     string
	Password  string
	Status    string
}

func (in UserInput) validate(creating bool) error {
	switch {
	case in.ProfileID == 0:
		return required("id_perfil")
	case in.Login == "":
		return required("login")
	case in.FullName == "":
		return required("nome_completo")
	case in.Email == "":
		return required("email")
	case creating && in.Password == "":
		return required("senha")
	case in.Status == "":
		return required("status")
	case !store.IsUserStatus(in.Status):
		return invalid("status")
	case !strings.Contains(in.Email, "@"):
		return invalid("email")
	}
	return firstError(
		checkLen("login", in.Login, 50),
		checkLen("nome_completo", in.FullName, 100),
		checkLen("email", in.Email, 120),
	)
}

// checkUnique fails with ErrLoginTaken or ErrEmailTaken when another user
// than exceptID already uses the login or email.
func (s *Service) checkUnique(ctx context.Context, in UserInput, exceptID int64) error {
	taken, err := s.store.Users.LoginTaken(ctx, in.Login, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return ErrLoginTaken
	}
	taken, err = s.store.Users.EmailTaken(ctx, in.Email, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	if err := s.auth.ValidatePasswordStrength(password); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}
	return s.auth.HashPassword(password)
}

// CreateUser creates an account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, actor *store.User, in UserInput) (store.User, error) {
	var u store.User
	if err := in.validate(true); err != nil {
		return u, err
	}
	if err := s.checkUnique(ctx, in, 0); err != nil {
		return u, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return u, err
	}
	u = store.User{
		ProfileID:    in.ProfileID,
		Login:        in.Login,
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Status:       in.Status,
		CreatedAt:    s.now(),
	}
	if err := s.store.Users.Create(ctx, &u); err != nil {
		return u, err
	}
	s.publish(ctx, Change{Entity: EntityUser, Action: ActionCreated, EntityID: u.ID, Actor: actor, Summary: u.Login})
	return u, nil
}

// UpdateUser rewrites the user; the password changes only when provided.
func (s *Service) UpdateUser(ctx context.Context, actor store.User, u store.User, in UserInput) (store.User, error) {
	if err := in.validate(false); err != nil {
		return u, err
	}
	if err := s.checkUnique(ctx, in, u.ID); err != nil {
		return u, err
	}
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = s.hashPassword(in.Password); err != nil {
			return u, err
		}
	}

	u.ProfileID = in.ProfileID
	u.Login = in.Login
	u.FullName = in.FullName
	u.Email = in.Email
	u.Status = in.Status
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.Users.Update(ctx, u); err != nil {
			return err
		}
		if hash == "" {
			return nil
		}
		return tx.Users.SetPassword(ctx, u.ID, hash)
	})
	if err != nil {
		return u, err
	}
	if hash != "" {
		u.PasswordHash = hash
	}
	s.publish(ctx, Change{Entity: EntityUser, Action: ActionUpdated, EntityID: u.ID, Actor: &actor, Summary: u.Login})
	return u, nil
}

// DeleteUser removes u. Users cannot delete their own account.
func (s *Service) DeleteUser(ctx context.Context, actor store.User, u store.User) error {
	if u.ID == actor.ID {
		return ErrSelfDelete
	}
	if err := s.store.Users.Delete(ctx, u.ID); err != nil {
		return err
	}
	s.publish(ctx, Change{Entity: EntityUser, Action: ActionDeleted, EntityID: u.ID, Actor: &actor, Summary: u.Login})
	return nil
}

// ProfileInput is the editable part of a profile.
type ProfileInput struct {
	Name        string
	Description string
}

func (in ProfileInput) validate() error {
	if in.Name == "" {
		return required("nome")
	}
	return firstError(checkLen("nome", in.Name, 50), checkLen("descricao", in.Description, 200))
}

func (s *Service) CreateProfile(ctx context.Context, actor store.User, in ProfileInput) (store.Profile, error) {
	var p store.Profile
	if err := in.validate(); err != nil {
		return p, err
	}
	p = store.Profile{Name: in.Name, Description: in.Description, CreatedAt: s.now()}
	if err := s.store.Profiles.Create(ctx, &p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return p, ErrProfileNameTaken
		}
		return p, err
	}
	s.publish(ctx, Change{Entity: EntityProfile, Action: ActionCreated, EntityID: p.ID, Actor: &actor, Summary: p.Name})
	return p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, actor store.User, p store.Profile, in ProfileInput) (store.Profile, error) {
	if err := in.validate(); err != nil {
		return p, err
	}
	p.Name = in.Name
	p.Description = in.Description
	if err := s.store.Profiles.Update(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return p, ErrProfileNameTaken
		}
		return p, err
	}
	s.publish(ctx, Change{Entity: EntityProfile, Action: ActionUpdated, EntityID: p.ID, Actor: &actor, Summary: p.Name})
	return p, nil
}

// DeleteProfile removes p; it fails with store.ErrReferenced while users
// belong to it.
func (s *Service) DeleteProfile(ctx context.Context, actor store.User, p store.Profile) error {
	if err := s.store.Profiles.Delete(ctx, p.ID); err != nil {
		return err
	}
	s.publish(ctx, Change{Entity: EntityProfile, Action: ActionDeleted, EntityID: p.ID, Actor: &actor, Summary: p.Name})
	return nil
}

// OverdueReport counts unfinished tasks past their due date and publishes
// the count.
func (s *Service) OverdueReport(ctx context.Context) (int, error) {
	tasks, err := s.store.Tasks.Overdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, strconv.FormatInt(t.ID, 10))
	}
	s.logger.Info("Overdue task report", "count", len(tasks), "tasks", strings.Join(ids, ","))
	s.publish(ctx, Change{Entity: EntityTask, Action: ActionOverdue, Summary: fmt.Sprintf("%d tarefas em atraso", len(tasks))})
	return len(tasks), nil
}

// PruneActivity deletes activity entries older than the retention period.
func (s *Service) PruneActivity(ctx context.Context) (int64, error) {
	if s.config.ActivityRetentionDays == 0 {
		return 0, nil
	}
	before := s.now().AddDate(0, 0, -s.config.ActivityRetentionDays)
	n, err := s.store.Activity.Prune(ctx, before)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Activity log pruned", "removed", n, "before", before.Format(store.TimeLayout))
	return n, nil
}
