package redisx

const (
	// idem:stock:{operation}:{idempotency-key} -> request id that claimed it
	KeyIdemStock = "idem:stock:%s:%s"

	// hash of event type -> count, written by the auditor
	KeyAuditCounts = "stock:audit:counts"
	// hash of event type -> last seen timestamp
	KeyAuditLastSeen = "stock:audit:last_seen"
	// hash of event type -> records touched by batch events
	KeyAuditRows = "stock:audit:rows"
)
