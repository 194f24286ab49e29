package store

import "slices"

// Incident statuses
const (
	IncidentOpen       = "ABERTO"
	IncidentAnalysis   = "EM_ANÁLISE"
	IncidentInProgress = "EM_ANDAMENTO"
	IncidentResolved   = "RESOLVIDO"
	IncidentClosed     = "FECHADO"
)

// Task statuses
const (
	TaskPending    = "PENDENTE"
	TaskInProgress = "EM_ANDAMENTO"
	TaskDone       = "CONCLUIDA"
	TaskCancelled  = "CANCELADA"
)

// Priorities shared by incidents and tasks
const (
	PriorityHigh   = "ALTA"
	PriorityMedium = "MÉDIA"
	PriorityLow    = "BAIXA"
)

// Project situations
const (
	ProjectActive    = "ATIVO"
	ProjectDone      = "CONCLUIDO"
	ProjectCancelled = "CANCELADO"
)

// User statuses
const (
	UserActive   = "ATIVO"
	UserInactive = "INATIVO"
)

// Built-in profiles
const (
	ProfileAdmin = "ADMIN"
	ProfileUser  = "USUARIO"
)

var (
	IncidentStatuses  = []string{IncidentOpen, IncidentAnalysis, IncidentInProgress, IncidentResolved, IncidentClosed}
	TaskStatuses      = []string{TaskPending, TaskInProgress, TaskDone, TaskCancelled}
	Priorities        = []string{PriorityHigh, PriorityMedium, PriorityLow}
	ProjectSituations = []string{ProjectActive, ProjectDone, ProjectCancelled}
	UserStatuses      = []string{UserActive, UserInactive}
)

func IsIncidentStatus(v string) bool { return slices.Contains(IncidentStatuses, v) }
func IsTaskStatus(v string) bool { return slices.Contains(TaskStatuses, v) }
func IsPriority(v string) bool { return slices.Contains(Priorities, v) }
func IsProjectSituation(v string) bool { return slices.Contains(ProjectSituations, v) }
func IsUserStatus(v string) bool { return slices.Contains(UserStatuses, v) }

// IncidentResolves reports whether moving an incident to status stamps its
// resolution time.
func IncidentResolves(status string) bool {
	return status == IncidentResolved || status == IncidentClosed
}
