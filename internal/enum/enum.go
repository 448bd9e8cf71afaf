package enum

// ── Per-table cart lifecycle ──

const (
	CartStateUninitialized = "UNINITIALIZED"
	CartStateLoading       = "LOADING"
	CartStateReady         = "READY"
)

// ── Session events pushed over the websocket ──

const (
	EventCartUpdated   = "cart.updated"
	EventTablesUpdated = "tables.updated"
	EventOrderPlaced   = "order.placed"
	EventNotice        = "notice"
)

const (
	NoticeLevelInfo  = "INFO"
	NoticeLevelError = "ERROR"
)

// ── NATS subjects published by the restaurant backend ──

const (
	SubjectTablesUpdated = "tables.updated"
	SubjectOrdersPlaced  = "orders.placed"
)

const (
	AdminRoleOwner = "OWNER"
	AdminRoleStaff = "STAFF"
)
