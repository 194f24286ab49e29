package portal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

func TestAuthenticate(t *testing.T) {
	f := newServiceFixture(t)
	admin := f.admin(t)
	ctx := context.Background()

	u, err := f.svc.Authenticate(ctx, "admin", testAdminPassword)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, u.ID)
	require.NotNil(t, u.LastLoginAt)
	assert.True(t, f.now.Equal(*u.LastLoginAt))

	stored, err := f.store.Users.Get(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, f.now.Equal(*stored.LastLoginAt))

	_, err = f.svc.Authenticate(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "ghost", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	f.user(t, admin, "off", store.UserInactive)
	_, err = f.svc.Authenticate(ctx, "off", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestProjectRules(t *testing.T) {
	f := newServiceFixture(t)
	admin := f.admin(t)
	ctx := context.Background()

	valid := ProjectInput{Code: "PRJ1", Name: "Nome", EconomicControl: "CE", InitiativeNumber: "IN", Situation: store.ProjectActive}

	tests := []struct {
		name  string
		edit  func(*ProjectInput)
		field string
		kind  FieldErrorKind
	}{
		{"missing code", func(in *ProjectInput) { in.Code = "" }, "codigo_projeto", FieldRequired},
		{"missing name", func(in *ProjectInput) { in.Name = "" }, "nome_projeto", FieldRequired},
		{"missing control", func(in *ProjectInput) { in.EconomicControl = "" }, "controle_economico", FieldRequired},
		{"missing initiative", func(in *ProjectInput) { in.InitiativeNumber = "" }, "numero_iniciativa", FieldRequired},
		{"missing situation", func(in *ProjectInput) { in.Situation = "" }, "situacao_projeto", FieldRequired},
		{"unknown situation", func(in *ProjectInput) { in.Situation = "PAUSADO" }, "situacao_projeto", FieldInvalid},
		{"long code", func(in *ProjectInput) { in.Code = strings.Repeat("X", 11) }, "codigo_projeto", FieldTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.edit(&in)
			_, err := f.svc.CreateProject(ctx, admin, in)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.Equal(t, tt.kind, fe.Kind)
		})
	}

	p, err := f.svc.CreateProject(ctx, admin, valid)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, p.CreatedBy)
	require.NotNil(t, p.UpdatedBy)
	assert.Equal(t, admin.ID, *p.UpdatedBy)

	_, err = f.svc.CreateProject(ctx, admin, valid)
	assert.ErrorIs(t, err, store.ErrConflict)

	f.now = f.now.Add(time.Hour)
	other := f.user(t, admin, "editor", store.UserActive)
	in := valid
	in.Name = "Novo nome"
	p, err = f.svc.UpdateProject(ctx, other, p, in)
	require.NoError(t, err)
	got, err := f.store.Projects.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Novo nome", got.Name)
	assert.Equal(t, other.ID, *got.UpdatedBy)
	assert.True(t, f.now.Equal(*got.UpdatedAt))

	require.NoError(t, f.svc.DeleteProject(ctx, admin, got))
	_, err = f.store.Projects.Get(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncidentRules(t *testing.T) {
	f := newServiceFixture(t)
	admin := f.admin(t)
	p := f.project(t, admin, "INC1")
	ctx := context.Background()

	_, err := f.svc.CreateIncident(ctx, admin, IncidentInput{Title: "t", Description: "d", Priority: store.PriorityHigh})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "id_projeto", fe.Field)

	_, err = f.svc.CreateIncident(ctx, admin, IncidentInput{ProjectID: p.ID, Title: "t", Description: "d", Priority: "URGENTE"})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FieldInvalid, fe.Kind)

	i, err := f.svc.CreateIncident(ctx, admin, IncidentInput{
		ProjectID: p.ID, Title: "t", Description: "d", Priority: store.PriorityMedium, Status: store.IncidentClosed,
	})
	require.NoError(t, err)
	assert.Equal(t, store.IncidentOpen, i.Status)
	assert.Nil(t, i.ResolvedAt)

	update := IncidentInput{Title: "t", Description: "d", Priority: store.PriorityMedium, Status: store.IncidentInProgress}
	i, err = f.svc.UpdateIncident(ctx, admin, i, update)
	require.NoError(t, err)
	assert.Nil(t, i.ResolvedAt)

	update.Status = ""
	_, err = f.svc.UpdateIncident(ctx, admin, i, update)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "status", fe.Field)

	for _, status := range []string{store.IncidentResolved, store.IncidentClosed} {
		f.now = f.now.Add(time.Minute)
		update.Status = status
		i, err = f.svc.UpdateIncident(ctx, admin, i, update)
		require.NoError(t, err)
		require.NotNil(t, i.ResolvedAt, status)
		assert.True(t, f.now.Equal(*i.ResolvedAt), status)
	}

	got, err := f.store.Incidents.Get(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, store.IncidentClosed, got.Status)
	require.NoError(t, f.svc.DeleteIncident(ctx, admin, got))
}

func TestTaskRules(t *testing.T) {
	f := newServiceFixture(t)
	admin := f.admin(t)
	p := f.project(t, admin, "TSK1")
	ctx := context.Background()

	_, err := f.svc.CreateTask(ctx, admin, TaskInput{Title: "t", Description: "d", Priority: store.PriorityLow})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "id_projeto", fe.Field)

	due := time.Date(2025, 3, 1, 0, 0, 0, 0, saoPaulo)
	task, err := f.svc.CreateTask(ctx, admin, TaskInput{
		ProjectID: p.ID, AssigneeID: &admin.ID, Title: "t", Description: "d",
		Priority: store.PriorityLow, Status: store.TaskDone, DueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, store.TaskPending, task.Status)
	assert.Nil(t, task.CompletedAt)

	in := TaskInput{ProjectID: p.ID, Title: "t", Description: "d", Priority: store.PriorityLow, Status: store.TaskDone}
	task, err = f.svc.UpdateTask(ctx, admin, task, in)
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	completed := *task.CompletedAt
	assert.Nil(t, task.DueDate, "an empty due date clears it")
	assert.Nil(t, task.AssigneeID)

	f.now = f.now.Add(time.Hour)
	task, err = f.svc.UpdateTask(ctx, admin, task, in)
	require.NoError(t, err)
	assert.True(t, completed.Equal(*task.CompletedAt), "completion is stamped once")

	in.Status = store.TaskCancelled
	task, err = f.svc.UpdateTask(ctx, admin, task, in)
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)

	in.Status = "PARADA"
	_, err = f.svc.UpdateTask(ctx, admin, task, in)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "status", fe.Field)

	require.NoError(t, f.svc.DeleteTask(ctx, admin, task))
}

func TestUserRules(t *testing.T) {
	f := newServiceFixture(t)
	admin := f.admin(t)
	ctx := context.Background()
	profile := f.profile(t, store.ProfileUser)

	valid := UserInput{
		ProfileID: profile.ID, Login: "ana", FullName: "Ana", Email: "ana@example.com",
		Password: "secret1", Status: store.UserActive,
	}
	ana, err := f.svc.CreateUser(ctx, &admin, valid)
	require.NoError(t, err)
	require.NoError(t, f.svc.auth.VerifyPassword(ana.PasswordHash, "secret1"))

	dup := valid
	dup.Email = "other@example.com"
	_, err = f.svc.CreateUser(ctx, &admin, dup)
	assert.ErrorIs(t, err, ErrLoginTaken)

	dup = valid
	dup.Login = "ana2"
	_, err = f.svc.CreateUser(ctx, &admin, dup)
	assert.ErrorIs(t, err, ErrEmailTaken)

	weak := valid
	weak.Login, weak.Email, weak.Password = "bia", "bia@example.com", "123"
	_, err = f.svc.CreateUser(ctx, &admin, weak)
	assert.ErrorIs(t, err, ErrWeakPassword)

	bad := valid
	bad.Login, bad.Email = "caio", "caio.example.com"
	_, err = f.svc.CreateUser(ctx, &admin, bad)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "email", fe.Field)

	noPassword := valid
	noPassword.Login, noPassword.Email, noPassword.Password = "duda", "duda@example.com", ""
	_, err = f.svc.CreateUser(ctx, &admin, noPassword)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "senha", fe.Field)

	t.Run("update excludes itself from uniqueness", func(t *testing.T) {
		in := valid
		in.Password = ""
		in.FullName = "Ana Lima"
		got, err := f.svc.UpdateUser(ctx, admin, ana, in)
		require.NoError(t, err)
		assert.Equal(t, "Ana Lima", got.FullName)
		assert.Equal(t, ana.PasswordHash, got.PasswordHash)

		in.Password = "newpass"
		got, err = f.svc.UpdateUser(ctx, admin, got, in)
		require.NoError(t, err)
		_, err = f.svc.Authenticate(ctx, "ana", "newpass")
		assert.NoError(t, err)

		in.Login = "admin"
		_, err = f.svc.UpdateUser(ctx, admin, got, in)
		assert.ErrorIs(t, err, ErrLoginTaken)
	})

	t.Run("a failed password write rolls the update back", func(t *testing.T) {
		_, err := f.db.ExecContext(ctx, `CREATE TRIGGER reject_password BEFORE UPDATE OF password_hash ON users
			BEGIN SELECT RAISE(ABORT, 'password store unavailable'); END`)
		require.NoError(t, err)
		t.Cleanup(func() { _, _ = f.db.ExecContext(ctx, `DROP TRIGGER reject_password`) })

		before, err := f.store.Users.Get(ctx, ana.ID)
		require.NoError(t, err)
		in := valid
		in.FullName = "Ana Partial"
		in.Password = "another1"
		_, err = f.svc.UpdateUser(ctx, admin, before, in)
		require.Error(t, err)

		after, err := f.store.Users.Get(ctx, ana.ID)
		require.NoError(t, err)
		assert.Equal(t, before.FullName, after.FullName)
		assert.Equal(t, before.PasswordHash, after.PasswordHash)
	})

	t.Run("delete", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.DeleteUser(ctx, admin, admin), ErrSelfDelete)

		p := f.project(t, ana, "ANA1")
		assert.ErrorIs(t, f.svc.DeleteUser(ctx, admin, ana), store.ErrReferenced, "users referenced by projects stay")
		require.NoError(t, f.svc.DeleteProject(ctx, admin, p))
		assert.NoError(t, f.svc.DeleteUser(ctx, admin, ana))
	})
}

func TestProfileRules(t *testing.T) {
	f := newServiceFixture(t)
	admin := f.admin(t)
	ctx := context.Background()

	p, err := f.svc.CreateProfile(ctx, admin, ProfileInput{Name: "AUDITOR", Description: "Somente leitura"})
	require.NoError(t, err)

	_, err = f.svc.CreateProfile(ctx, admin, ProfileInput{Name: "AUDITOR"})
	assert.ErrorIs(t, err, ErrProfileNameTaken)
	_, err = f.svc.UpdateProfile(ctx, admin, p, ProfileInput{Name: store.ProfileAdmin})
	assert.ErrorIs(t, err, ErrProfileNameTaken)

	_, err = f.svc.CreateProfile(ctx, admin, ProfileInput{Name: strings.Repeat("A", 51)})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FieldTooLong, fe.Kind)
	assert.Equal(t, "O campo nome excede o tamanho máximo de 50 caracteres.", fe.Message())

	assert.ErrorIs(t, f.svc.DeleteProfile(ctx, admin, f.profile(t, store.ProfileAdmin)), store.ErrReferenced)
	assert.NoError(t, f.svc.DeleteProfile(ctx, admin, p))
}

func TestOverdueReport(t *testing.T) {
	f := newServiceFixture(t)
	admin := f.admin(t)
	p := f.project(t, admin, "OVR1")
	ctx := context.Background()

	past := time.Date(2025, 3, 1, 0, 0, 0, 0, saoPaulo)
	future := time.Date(2025, 4, 1, 0, 0, 0, 0, saoPaulo)
	for _, due := range []*time.Time{&past, &past, &future, nil} {
		_, err := f.svc.CreateTask(ctx, admin, TaskInput{
			ProjectID: p.ID, Title: "t", Description: "d", Priority: store.PriorityLow, DueDate: due,
		})
		require.NoError(t, err)
	}

	n, err := f.svc.OverdueReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, f.logger.has("info", "Overdue task report"))

	entries, err := f.store.Activity.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventType(EntityTask, ActionOverdue), entries[0].EventType)
	assert.Equal(t, "2 tarefas em atraso", entries[0].Summary)
}

func TestPruneActivity(t *testing.T) {
	f := newServiceFixture(t)
	admin := f.admin(t)
	ctx := context.Background()

	f.events.now = func() time.Time { return f.now.AddDate(0, 0, -120) }
	f.project(t, admin, "OLD1")
	f.events.now = func() time.Time { return f.now }
	f.project(t, admin, "NEW1")

	f.config.ActivityRetentionDays = 0
	n, err := f.svc.PruneActivity(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.config.ActivityRetentionDays = 90
	n, err = f.svc.PruneActivity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := f.store.Activity.Recent(ctx, 10)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Summary, "OLD1")
	}
}
