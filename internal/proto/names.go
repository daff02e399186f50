// Package proto holds the types shared by every participant on the bus:
// envelopes, roles, resources, health, and the small data models that
// cross service boundaries (tasks, tools, memory entries, schedules).
package proto

// Well-known service names. A name does not decide a role: the Kernel
// registers its own endpoint and KernelService as Role=System, and
// every other service registers with the Role its runtime.Factory
// declares (HubService declares Role=System).
const (
	KernelName      = "Kernel"
	KernelService    = "KernelService"
	UserService      = "UserService"
	HubService       = "HubService"
	ConfigService    = "ConfigService"
	FsService        = "FsService"
	ToolkitService   = "ToolkitService"
	ChatService      = "ChatService"
	AuthService      = "AuthService"
	StatsService     = "StatsService"
	TaskService      = "TaskService"
	ScheduleService  = "ScheduleService"
	WebuiService     = "WebuiService"
	MemoryService    = "MemoryService"
	EmbedService     = "EmbedService"
)

// AdminServiceNames mirrors heleny-kernel's ADMIN_SERVICE constant.
// Registration does not consult it: no code path grants Role=System by
// name from this list.
var AdminServiceNames = [2]string{KernelService, UserService}
