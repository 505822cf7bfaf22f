// Package rbac is the static role to page-permission table.
package rbac

import "sort"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleSupervisor Role = "supervisor"
	RoleStaff      Role = "staff"
)

type Module string

const (
	ModuleDashboard      Module = "dashboard"
	ModuleCheckin        Module = "checkin"
	ModuleSchedule       Module = "schedule"
	ModuleSettings       Module = "settings"
	ModuleAnalytics      Module = "analytics"
	ModuleUserManagement Module = "userManagement"
	ModuleRoleManagement Module = "roleManagement"
)

type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

type roleDef struct {
	name        string
	rank        int
	permissions map[Module][]Action
}

var all = []Action{ActionView, ActionEdit, ActionDelete}

// 系統管理員 > 高階主管 > 初階主管 > 勤務人員
var table = map[Role]roleDef{
	RoleAdmin: {
		name: "系統管理員",
		rank: 4,
		permissions: map[Module][]Action{
			ModuleDashboard:      all,
			ModuleCheckin:        all,
			ModuleSchedule:       all,
			ModuleSettings:       all,
			ModuleAnalytics:      all,
			ModuleUserManagement: all,
			ModuleRoleManagement: all,
		},
	},
	RoleManager: {
		name: "高階主管",
		rank: 3,
		permissions: map[Module][]Action{
			ModuleDashboard:      {ActionView},
			ModuleCheckin:        {ActionView},
			ModuleSchedule:       {ActionView, ActionEdit},
			ModuleSettings:       {ActionView, ActionEdit},
			ModuleAnalytics:      {ActionView},
			ModuleUserManagement: {ActionView},
			ModuleRoleManagement: {},
		},
	},
	RoleSupervisor: {
		name: "初階主管",
		rank: 2,
		permissions: map[Module][]Action{
			ModuleDashboard:      {ActionView},
			ModuleCheckin:        {ActionView, ActionEdit},
			ModuleSchedule:       {ActionView, ActionEdit},
			ModuleSettings:       {ActionView, ActionEdit},
			ModuleAnalytics:      {ActionView},
			ModuleUserManagement: {},
			ModuleRoleManagement: {},
		},
	},
	RoleStaff: {
		name: "勤務人員",
		rank: 1,
		permissions: map[Module][]Action{
			ModuleDashboard:      {ActionView},
			ModuleCheckin:        {ActionView, ActionEdit},
			ModuleSchedule:       {ActionView},
			ModuleSettings:       {ActionView, ActionEdit},
			ModuleAnalytics:      {},
			ModuleUserManagement: {},
			ModuleRoleManagement: {},
		},
	},
}

func Valid(role Role) bool {
	_, ok := table[role]
	return ok
}

// HasPermission: 未知のロール・モジュール・アクションは全て拒否
func HasPermission(role Role, module Module, action Action) bool {
	def, ok := table[role]
	if !ok {
		return false
	}
	for _, a := range def.permissions[module] {
		if a == action {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the role's module table; unknown roles get an empty map.
func Permissions(role Role) map[Module][]Action {
	def, ok := table[role]
	if !ok {
		return map[Module][]Action{}
	}
	out := make(map[Module][]Action, len(def.permissions))
	for m, acts := range def.permissions {
		out[m] = append([]Action{}, acts...)
	}
	return out
}

// RoleName returns the display name, or the raw role for unknown roles.
func RoleName(role Role) string {
	if def, ok := table[role]; ok {
		return def.name
	}
	return string(role)
}

// Roles lists roles from most to least privileged.
func Roles() []Role {
	out := make([]Role, 0, len(table))
	for r := range table {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return table[out[i]].rank > table[out[j]].rank })
	return out
}

// CanEditRole: admin は全ロール、manager は supervisor/staff、supervisor は staff のみ
func CanEditRole(actor, target Role) bool {
	if !Valid(actor) || !Valid(target) {
		return false
	}
	switch actor {
	case RoleAdmin:
		return true
	case RoleManager:
		return target == RoleSupervisor || target == RoleStaff
	case RoleSupervisor:
		return target == RoleStaff
	default:
		return false
	}
}

type RoleOption struct {
	Value Role   `json:"value"`
	Label string `json:"label"`
}

func EditableRoles(actor Role) []RoleOption {
	out := []RoleOption{}
	for _, r := range Roles() {
		if CanEditRole(actor, r) {
			out = append(out, RoleOption{Value: r, Label: RoleName(r)})
		}
	}
	return out
}
