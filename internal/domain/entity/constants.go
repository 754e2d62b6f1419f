package entity

// Status constants for WorkflowInstance
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusApproved   = "APPROVED"
	StatusRejected   = "REJECTED"
	StatusCancelled  = "CANCELLED"
	StatusEscalated  = "ESCALATED"
	StatusTimeout    = "TIMEOUT"
)

// ActiveStatuses lists the statuses in which an instance still accepts decisions.
var ActiveStatuses = []string{StatusPending, StatusInProgress, StatusEscalated, StatusTimeout}

// Priority levels for workflow instances
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// IsValid returns true if the priority is one of the defined levels.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Source document type constants
const (
	DocTypeDailyDelivery      = "DAILY_DELIVERY"
	DocTypeSupplierInvoice    = "SUPPLIER_INVOICE"
	DocTypeCustomerInvoice    = "CUSTOMER_INVOICE"
	DocTypeBulkInvoiceRequest = "BULK_INVOICE_REQUEST"
	DocTypeUPPFClaim          = "UPPF_CLAIM"
)

// Product grade constants
const (
	ProductPMS        = "PMS"
	ProductAGO        = "AGO"
	ProductIFO        = "IFO"
	ProductLPG        = "LPG"
	ProductKerosene   = "KEROSENE"
	ProductLubricants = "LUBRICANTS"
)
