package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldRunDate        = "run_date"
	FieldBatchID        = "batch_id"
	FieldPaymentID      = "payment_id"
	FieldPaymentName    = "payment_name"
	FieldOwnerID        = "owner_id"
	FieldAmountCents    = "amount_cents"
	FieldInterval       = "interval"
	FieldNextOccurrence = "next_occurrence"
	FieldProcessedCount = "processed_count"
	FieldCreatedCount   = "created_count"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentPlanner   = "planner"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentReport    = "report"
	ComponentScheduler = "scheduler"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpList        = "list"
	OpDeactivate  = "deactivate"
	OpSelectDue   = "select_due"
	OpMaterialize = "materialize"
	OpRunBatch    = "run_batch"
	OpMirror      = "mirror"
	OpStartup     = "startup"
	OpShutdown    = "shutdown"
)
