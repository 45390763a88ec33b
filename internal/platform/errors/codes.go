package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Mode registry errors
	CodeModeTeamSizeInvalid Code = "MODE_TEAM_SIZE_INVALID"
	CodeModeExists          Code = "MODE_EXISTS"
	CodeModeNotFound        Code = "MODE_NOT_FOUND"
	CodeModeReserved        Code = "MODE_RESERVED"
	CodeAliasExists         Code = "ALIAS_EXISTS"
	CodeAliasShadowsMode    Code = "ALIAS_SHADOWS_MODE"
	CodeAliasNotFound       Code = "ALIAS_NOT_FOUND"

	// Player errors
	CodePlayerNotFound  Code = "PLAYER_NOT_FOUND"
	CodePlayerIDInvalid Code = "PLAYER_ID_INVALID"
	CodeTenantRequired  Code = "TENANT_REQUIRED"

	// Match ledger errors
	CodeMatchNotFound  Code = "MATCH_NOT_FOUND"
	CodeMatchNotActive Code = "MATCH_NOT_ACTIVE"
	CodeTeamInvalid    Code = "TEAM_INVALID"

	// Map rotation errors
	CodeMapExists    Code = "MAP_EXISTS"
	CodeMapNotFound  Code = "MAP_NOT_FOUND"
	CodeMapPoolEmpty Code = "MAP_POOL_EMPTY"
)
