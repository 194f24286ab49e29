package portal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

//go:embed fixtures/*.yaml
var fixturesFS embed.FS

// Fixture sets accepted by Seed.
const (
	SeedUsers    = "users"
	SeedProjects = "projects"
	SeedTasks    = "tasks"
	SeedAll      = "all"
)

type userFixture struct {
	Login    string `yaml:"login"`
	FullName string `yaml:"full_name"`
	Email    string `yaml:"email"`
	Profile  string `yaml:"profile"`
	Password string `yaml:"password"`
	Status   string `yaml:"status"`
}

type projectFixture struct {
	Code             string `yaml:"code"`
	Name             string `yaml:"name"`
	EconomicControl  string `yaml:"economic_control"`
	InitiativeNumber string `yaml:"initiative_number"`
	Situation        string `yaml:"situation"`
}

type taskFixture struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Priority    string `yaml:"priority"`
	Status      string `yaml:"status"`
	Assignee    *int   `yaml:"assignee"`
	DueInDays   *int   `yaml:"due_in_days"`
}

func loadFixtures[T any](name string) ([]T, error) {
	raw, err := fixturesFS.ReadFile("fixtures/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("reading %s fixtures: %w", name, err)
	}
	var out []T
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parsing %s fixtures: %w", name, err)
	}
	return out, nil
}

// SeedResult reports what one fixture set did. Skipped holds the reason
// when nothing was inserted.
type SeedResult struct {
	Set     string
	Created int
	Skipped string
}

// Seed inserts the demo rows of set, which is users, projects, tasks or
// all. A set is skipped when its table already holds data.
func (s *Service) Seed(ctx context.Context, set string) ([]SeedResult, error) {
	steps := map[string]func(context.Context) (SeedResult, error){
		SeedUsers:    s.seedUsers,
		SeedProjects: s.seedProjects,
		SeedTasks:    s.seedTasks,
	}
	order := []string{set}
	if set == SeedAll {
		order = []string{SeedUsers, SeedProjects, SeedTasks}
	} else if _, ok := steps[set]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFixture, set)
	}

	var results []SeedResult
	for _, name := range order {
		res, err := steps[name](ctx)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) seedUsers(ctx context.Context) (SeedResult, error) {
	res := SeedResult{Set: SeedUsers}
	n, err := s.store.Users.Count(ctx)
	if err != nil {
		return res, err
	}
	if n > 1 {
		res.Skipped = "users already exist"
		return res, nil
	}

	fixtures, err := loadFixtures[userFixture](SeedUsers)
	if err != nil {
		return res, err
	}
	profiles := map[string]int64{}
	for _, f := range fixtures {
		if _, ok := profiles[f.Profile]; ok {
			continue
		}
		p, err := s.store.Profiles.GetByName(ctx, f.Profile)
		if errors.Is(err, store.ErrNotFound) {
			return res, fmt.Errorf("%w: profile %s", ErrMissingPrereqs, f.Profile)
		}
		if err != nil {
			return res, err
		}
		profiles[f.Profile] = p.ID
	}

	for _, f := range fixtures {
		_, err := s.CreateUser(ctx, nil, UserInput{
			ProfileID: profiles[f.Profile],
			Login:     f.Login,
			FullName:  f.FullName,
			Email:     f.Email,
			Password:  f.Password,
			Status:    f.Status,
		})
		if err != nil {
			return res, fmt.Errorf("seeding user %s: %w", f.Login, err)
		}
		res.Created++
	}
	return res, nil
}

func (s *Service) seedProjects(ctx context.Context) (SeedResult, error) {
	res := SeedResult{Set: SeedProjects}
	n, err := s.store.Projects.Count(ctx)
	if err != nil {
		return res, err
	}
	if n > 0 {
		res.Skipped = "projects already exist"
		return res, nil
	}
	admin, err := s.store.Users.GetByLogin(ctx, adminLogin)
	if errors.Is(err, store.ErrNotFound) {
		return res, fmt.Errorf("%w: admin user", ErrMissingPrereqs)
	}
	if err != nil {
		return res, err
	}

	fixtures, err := loadFixtures[projectFixture](SeedProjects)
	if err != nil {
		return res, err
	}
	for _, f := range fixtures {
		_, err := s.CreateProject(ctx, admin, ProjectInput{
			Code:             f.Code,
			Name:             f.Name,
			EconomicControl:  f.EconomicControl,
			InitiativeNumber: f.InitiativeNumber,
			Situation:        f.Situation,
		})
		if err != nil {
			return res, fmt.Errorf("seeding project %s: %w", f.Code, err)
		}
		res.Created++
	}
	return res, nil
}

func (s *Service) seedTasks(ctx context.Context) (SeedResult, error) {
	res := SeedResult{Set: SeedTasks}
	n, err := s.store.Tasks.Count(ctx)
	if err != nil {
		return res, err
	}
	if n > 0 {
		res.Skipped = "tasks already exist"
		return res, nil
	}
	projects, err := s.store.Projects.All(ctx)
	if err != nil {
		return res, err
	}
	if len(projects) == 0 {
		res.Skipped = "no project found"
		return res, nil
	}
	users, err := s.store.Users.ListActive(ctx)
	if err != nil {
		return res, err
	}
	if len(users) == 0 {
		res.Skipped = "no active user found"
		return res, nil
	}

	fixtures, err := loadFixtures[taskFixture](SeedTasks)
	if err != nil {
		return res, err
	}
	author := users[0]
	today := s.now().In(s.store.Location())
	for _, f := range fixtures {
		t := store.Task{
			ProjectID:   projects[0].ID,
			CreatedBy:   author.ID,
			UpdatedBy:   &author.ID,
			Title:       f.Title,
			Description: f.Description,
			Priority:    f.Priority,
			Status:      f.Status,
			CreatedAt:   today,
			UpdatedAt:   &today,
		}
		if f.Assignee != nil && *f.Assignee < len(users) {
			t.AssigneeID = &users[*f.Assignee].ID
		}
		if f.DueInDays != nil {
			due := dateOnly(today.AddDate(0, 0, *f.DueInDays))
			t.DueDate = &due
		}
		if t.Status == store.TaskDone {
			t.CompletedAt = &today
		}
		if err := s.store.Tasks.Create(ctx, &t); err != nil {
			return res, fmt.Errorf("seeding task %q: %w", f.Title, err)
		}
		s.publish(ctx, Change{Entity: EntityTask, Action: ActionCreated, EntityID: t.ID, Actor: &author, Summary: t.Title})
		res.Created++
	}
	return res, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
