package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldUserID    = "user_id"
	FieldKind      = "kind"
	FieldEntityID  = "entity_id"
	FieldCount     = "count"
	FieldAmount    = "amount_cents"
	FieldCategory  = "category_id"
	FieldMonth     = "month"
	FieldDuration  = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentLedger      = "ledger"
	ComponentStorage     = "storage"
	ComponentRemote      = "remote"
	ComponentRealtime    = "realtime"
	ComponentAMQP        = "amqp"
	ComponentSheets      = "sheets"
	ComponentWorker      = "worker"
	ComponentMaterialize = "materializer"
	ComponentAlerts      = "alerts"
	ComponentBackend     = "backend"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpPersist     = "persist"
	OpLoad        = "load"
	OpPush        = "push"
	OpPull        = "pull"
	OpBootstrap   = "bootstrap"
	OpSnapshot    = "snapshot"
	OpMaterialize = "materialize"
	OpAlert       = "alert"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithEntity adds the kind and id of the entity being synced
func (f LogFields) WithEntity(kind, id string) LogFields {
	f[FieldKind] = kind
	if id != "" {
		f[FieldEntityID] = id
	}
	return f
}

// WithUser adds the attached identity
func (f LogFields) WithUser(userID string) LogFields {
	if userID != "" {
		f[FieldUserID] = userID
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
