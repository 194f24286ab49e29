package portal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

// lifecycleBDDContext holds the state of one scenario.
type lifecycleBDDContext struct {
	t        *testing.T
	fixture  *serviceFixture
	admin    store.User
	project  store.Project
	incident store.Incident
	task     store.Task
	overdue  int
	lastErr  error
}

func (c *lifecycleBDDContext) thePortalHasAnAdminUser() error {
	c.fixture = newServiceFixture(c.t)
	res, err := c.fixture.svc.EnsureAdmin(context.Background(), testAdminPassword)
	c.admin = res.User
	return err
}

func (c *lifecycleBDDContext) aProjectExists(code string) error {
	p, err := c.fixture.svc.CreateProject(context.Background(), c.admin, ProjectInput{
		Code: code, Name: "Projeto " + code, EconomicControl: "CE", InitiativeNumber: "IN",
		Situation: store.ProjectActive,
	})
	c.project = p
	return err
}

func (c *lifecycleBDDContext) iRegisterAnIncidentWithStatus(title, status string) error {
	i, err := c.fixture.svc.CreateIncident(context.Background(), c.admin, IncidentInput{
		ProjectID: c.project.ID, Title: title, Description: "Detalhes de " + title,
		Priority: store.PriorityHigh, Status: status,
	})
	c.incident = i
	return err
}

func (c *lifecycleBDDContext) anIncidentIsRegistered(title string) error {
	return c.iRegisterAnIncidentWithStatus(title, "")
}

func (c *lifecycleBDDContext) theIncidentStatusChangesTo(status string) error {
	c.fixture.now = c.fixture.now.Add(time.Minute)
	i, err := c.fixture.svc.UpdateIncident(context.Background(), c.admin, c.incident, IncidentInput{
		Title: c.incident.Title, Description: c.incident.Description, Priority: c.incident.Priority, Status: status,
	})
	c.incident = i
	return err
}

func (c *lifecycleBDDContext) theIncidentStatusShouldBe(status string) error {
	got, err := c.fixture.store.Incidents.Get(context.Background(), c.incident.ID)
	if err != nil {
		return err
	}
	if got.Status != status {
		return fmt.Errorf("incident status is %s, want %s", got.Status, status)
	}
	return nil
}

func (c *lifecycleBDDContext) theIncidentShouldHaveAResolutionDate() error {
	got, err := c.fixture.store.Incidents.Get(context.Background(), c.incident.ID)
	if err != nil {
		return err
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(c.fixture.now) {
		return fmt.Errorf("incident resolved at %v, want %v", got.ResolvedAt, c.fixture.now)
	}
	return nil
}

func (c *lifecycleBDDContext) theIncidentShouldNotHaveAResolutionDate() error {
	got, err := c.fixture.store.Incidents.Get(context.Background(), c.incident.ID)
	if err != nil {
		return err
	}
	if got.ResolvedAt != nil {
		return fmt.Errorf("incident unexpectedly resolved at %v", *got.ResolvedAt)
	}
	return nil
}

func (c *lifecycleBDDContext) createTask(title string, due *time.Time, status string) error {
	ctx := context.Background()
	t, err := c.fixture.svc.CreateTask(ctx, c.admin, TaskInput{
		ProjectID: c.project.ID, Title: title, Description: "Detalhes de " + title,
		Priority: store.PriorityMedium, DueDate: due,
	})
	if err != nil {
		return err
	}
	if status != "" {
		t, err = c.fixture.svc.UpdateTask(ctx, c.admin, t, TaskInput{
			ProjectID: t.ProjectID, Title: t.Title, Description: t.Description,
			Priority: t.Priority, Status: status, DueDate: due,
		})
	}
	c.task = t
	return err
}

func (c *lifecycleBDDContext) aTaskIsRegistered(title string) error {
	return c.createTask(title, nil, "")
}

func (c *lifecycleBDDContext) dueIn(days int) *time.Time {
	due := dateOnly(c.fixture.now.AddDate(0, 0, days))
	return &due
}

func (c *lifecycleBDDContext) aTaskDueDaysAgo(title string, days int) error {
	return c.createTask(title, c.dueIn(-days), "")
}

func (c *lifecycleBDDContext) aTaskDueDaysAgoWithStatus(title string, days int, status string) error {
	return c.createTask(title, c.dueIn(-days), status)
}

func (c *lifecycleBDDContext) aTaskDueInDays(title string, days int) error {
	return c.createTask(title, c.dueIn(days), "")
}

func (c *lifecycleBDDContext) theTaskStatusChangesTo(status string) error {
	c.fixture.now = c.fixture.now.Add(time.Minute)
	t, err := c.fixture.svc.UpdateTask(context.Background(), c.admin, c.task, TaskInput{
		ProjectID: c.task.ProjectID, Title: c.task.Title, Description: c.task.Description,
		Priority: c.task.Priority, Status: status,
	})
	c.task = t
	return err
}

func (c *lifecycleBDDContext) theTaskShouldHaveACompletionDate() error {
	got, err := c.fixture.store.Tasks.Get(context.Background(), c.task.ID)
	if err != nil {
		return err
	}
	if got.CompletedAt == nil {
		return errors.New("task has no completion date")
	}
	return nil
}

func (c *lifecycleBDDContext) theTaskShouldNotHaveACompletionDate() error {
	got, err := c.fixture.store.Tasks.Get(context.Background(), c.task.ID)
	if err != nil {
		return err
	}
	if got.CompletedAt != nil {
		return fmt.Errorf("task unexpectedly completed at %v", *got.CompletedAt)
	}
	return nil
}

func (c *lifecycleBDDContext) iDeleteTheProject() error {
	c.lastErr = c.fixture.svc.DeleteProject(context.Background(), c.admin, c.project)
	return nil
}

func (c *lifecycleBDDContext) theDeletionShouldBeRefused() error {
	if !errors.Is(c.lastErr, store.ErrReferenced) {
		return fmt.Errorf("delete returned %v, want %v", c.lastErr, store.ErrReferenced)
	}
	_, err := c.fixture.store.Projects.Get(context.Background(), c.project.ID)
	return err
}

func (c *lifecycleBDDContext) theOverdueReportRuns() error {
	n, err := c.fixture.svc.OverdueReport(context.Background())
	c.overdue = n
	return err
}

func (c *lifecycleBDDContext) theReportShouldCountOverdueTask(n int) error {
	if c.overdue != n {
		return fmt.Errorf("report counted %d overdue tasks, want %d", c.overdue, n)
	}
	return nil
}

func (c *lifecycleBDDContext) theActivityLogShouldRecord(summary string) error {
	entries, err := c.fixture.store.Activity.Recent(context.Background(), 1)
	if err != nil {
		return err
	}
	if len(entries) == 0 || entries[0].Summary != summary {
		return fmt.Errorf("latest activity is %+v, want summary %q", entries, summary)
	}
	return nil
}

func TestLifecycleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			c := &lifecycleBDDContext{t: t}

			ctx.Step(`^the portal has an admin user$`, c.thePortalHasAnAdminUser)
			ctx.Step(`^a project "([^"]*)" exists$`, c.aProjectExists)

			// Incidents
			ctx.Step(`^I register an incident "([^"]*)" with status "([^"]*)"$`, c.iRegisterAnIncidentWithStatus)
			ctx.Step(`^an incident "([^"]*)" is registered$`, c.anIncidentIsRegistered)
			ctx.Step(`^the incident status changes to "([^"]*)"$`, c.theIncidentStatusChangesTo)
			ctx.Step(`^the incident status should be "([^"]*)"$`, c.theIncidentStatusShouldBe)
			ctx.Step(`^the incident should have a resolution date$`, c.theIncidentShouldHaveAResolutionDate)
			ctx.Step(`^the incident should not have a resolution date$`, c.theIncidentShouldNotHaveAResolutionDate)

			// Tasks
			ctx.Step(`^a task "([^"]*)" is registered$`, c.aTaskIsRegistered)
			ctx.Step(`^a task "([^"]*)" due (\d+) days ago$`, c.aTaskDueDaysAgo)
			ctx.Step(`^a task "([^"]*)" due (\d+) days ago with status "([^"]*)"$`, c.aTaskDueDaysAgoWithStatus)
			ctx.Step(`^a task "([^"]*)" due in (\d+) days$`, c.aTaskDueInDays)
			ctx.Step(`^the task status changes to "([^"]*)"$`, c.theTaskStatusChangesTo)
			ctx.Step(`^the task should have a completion date$`, c.theTaskShouldHaveACompletionDate)
			ctx.Step(`^the task should not have a completion date$`, c.theTaskShouldNotHaveACompletionDate)

			// Projects and reports
			ctx.Step(`^I delete the project$`, c.iDeleteTheProject)
			ctx.Step(`^the deletion should be refused because the project is referenced$`, c.theDeletionShouldBeRefused)
			ctx.Step(`^the overdue report runs$`, c.theOverdueReportRuns)
			ctx.Step(`^the report should count (\d+) overdue tasks?$`, c.theReportShouldCountOverdueTask)
			ctx.Step(`^the activity log should record "([^"]*)"$`, c.theActivityLogShouldRecord)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
