package workflow

// State is a record status as stored on the ledger.
type State string

// Canonical statuses of the export workflow.
const (
	StateDraft State = "DRAFT"

	StateECXPending  State = "ECX_PENDING"
	StateECXVerified State = "ECX_VERIFIED"
	StateECXRejected State = "ECX_REJECTED"

	StateLicensePending  State = "ECTA_LICENSE_PENDING"
	StateLicenseApproved State = "ECTA_LICENSE_APPROVED"
	StateLicenseRejected State = "ECTA_LICENSE_REJECTED"

	StateQualityPending  State = "ECTA_QUALITY_PENDING"
	StateQualityApproved State = "ECTA_QUALITY_APPROVED"
	StateQualityRejected State = "ECTA_QUALITY_REJECTED"

	StateOriginPending  State = "ECTA_ORIGIN_PENDING"
	StateOriginApproved State = "ECTA_ORIGIN_APPROVED"
	StateOriginRejected State = "ECTA_ORIGIN_REJECTED"

	StateContractPending  State = "ECTA_CONTRACT_PENDING"
	StateContractApproved State = "ECTA_CONTRACT_APPROVED"
	StateContractRejected State = "ECTA_CONTRACT_REJECTED"

	StateBankDocumentPending  State = "BANK_DOCUMENT_PENDING"
	StateBankDocumentVerified State = "BANK_DOCUMENT_VERIFIED"
	StateBankDocumentRejected State = "BANK_DOCUMENT_REJECTED"

	StateFXApplicationPending State = "FX_APPLICATION_PENDING"
	StateFXApproved           State = "FX_APPROVED"
	StateFXRejected           State = "FX_REJECTED"

	StateCustomsPending  State = "CUSTOMS_PENDING"
	StateCustomsCleared  State = "CUSTOMS_CLEARED"
	StateCustomsRejected State = "CUSTOMS_REJECTED"

	StateShipmentPending   State = "SHIPMENT_PENDING"
	StateShipmentScheduled State = "SHIPMENT_SCHEDULED"
	StateShipped           State = "SHIPPED"
	StateShipmentRejected  State = "SHIPMENT_REJECTED"
	StateArrived           State = "ARRIVED"

	StateImportCustomsPending  State = "IMPORT_CUSTOMS_PENDING"
	StateImportCustomsCleared  State = "IMPORT_CUSTOMS_CLEARED"
	StateImportCustomsRejected State = "IMPORT_CUSTOMS_REJECTED"

	StateDelivered       State = "DELIVERED"
	StatePaymentPending  State = "PAYMENT_PENDING"
	StatePaymentReceived State = "PAYMENT_RECEIVED"
	StateFXRepatriated   State = "FX_REPATRIATED"
	StateCompleted       State = "COMPLETED"
	StateCancelled       State = "CANCELLED"
)

// Legacy status names still written by older ledger clients.
const (
	StatePending                State = "PENDING"
	StateLegacyLicenseRejected  State = "LICENSE_REJECTED"
	StateLegacyQualityPending   State = "QUALITY_PENDING"
	StateQualityCertified       State = "QUALITY_CERTIFIED"
	StateLegacyQualityRejected  State = "QUALITY_REJECTED"
	StateLegacyContractRejected State = "CONTRACT_REJECTED"
	StateFXPending              State = "FX_PENDING"
	StateExportCustomsPending   State = "EXPORT_CUSTOMS_PENDING"
	StateExportCustomsCleared   State = "EXPORT_CUSTOMS_CLEARED"
	StateExportCustomsRejected  State = "EXPORT_CUSTOMS_REJECTED"
)

// DefaultAliases maps every legacy status to its canonical status.
var DefaultAliases = map[State]State{
	StatePending:                StateDraft,
	StateLegacyLicenseRejected:  StateLicenseRejected,
	StateLegacyQualityPending:   StateQualityPending,
	StateQualityCertified:       StateQualityApproved,
	StateLegacyQualityRejected:  StateQualityRejected,
	StateLegacyContractRejected: StateContractRejected,
	StateFXPending:              StateFXApplicationPending,
	StateExportCustomsPending:   StateCustomsPending,
	StateExportCustomsCleared:   StateCustomsCleared,
	StateExportCustomsRejected:  StateCustomsRejected,
}

// Canonical resolves a legacy status using DefaultAliases.
// Canonical and unknown statuses are returned unchanged.
func Canonical(s State) State {
	if c, ok := DefaultAliases[s]; ok {
		return c
	}
	return s
}

// Stage is the human-facing grouping of statuses used for progress display.
type Stage string

// Stages of the export workflow, in workflow order.
const (
	StageUnknown         Stage = "Unknown"
	StageCreation        Stage = "Creation"
	StageECXVerification Stage = "ECX Verification"
	StageLicense         Stage = "ECTA License"
	StageQuality         Stage = "ECTA Quality"
	StageOrigin          Stage = "ECTA Origin"
	StageContract        Stage = "ECTA Contract"
	StageBanking         Stage = "Banking"
	StageFXApproval      Stage = "FX Approval"
	StageExportCustoms   Stage = "Export Customs"
	StageShipping        Stage = "Shipping"
	StageImportCustoms   Stage = "Import Customs"
	StageDelivery        Stage = "Delivery"
	StagePayment         Stage = "Payment"
	StageFXRepatriation  Stage = "FX Repatriation"
	StageCompletion      Stage = "Completion"
	StageCancellation    Stage = "Cancellation"
)
