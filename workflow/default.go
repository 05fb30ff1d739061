package workflow

import "sync"

var (
	defaultOnce  sync.Once
	defaultGraph *Graph
)

// DefaultGraph returns the export workflow graph. The graph is built once
// and shared.
func DefaultGraph() *Graph {
	defaultOnce.Do(func() {
		defaultGraph = MustGraph(ExportDefinition())
	})
	return defaultGraph
}

// ExportDefinition returns a fresh copy of the export workflow table.
func ExportDefinition() Definition {
	return Definition{
		Edges: map[State][]State{
			StateDraft: {StateECXPending},

			StateECXPending:  {StateECXVerified, StateECXRejected},
			StateECXVerified: {StateLicensePending},
			StateECXRejected: {StateDraft},

			StateLicensePending:  {StateLicenseApproved, StateLicenseRejected},
			StateLicenseApproved: {StateQualityPending},
			StateLicenseRejected: {StateDraft},

			StateQualityPending:  {StateQualityApproved, StateQualityRejected},
			StateQualityApproved: {StateOriginPending},
			StateQualityRejected: {StateDraft},

			StateOriginPending:  {StateOriginApproved, StateOriginRejected},
			StateOriginApproved: {StateContractPending},
			StateOriginRejected: {StateDraft},

			StateContractPending:  {StateContractApproved, StateContractRejected},
			StateContractApproved: {StateBankDocumentPending},
			StateContractRejected: {StateDraft},

			StateBankDocumentPending:  {StateBankDocumentVerified, StateBankDocumentRejected},
			StateBankDocumentVerified: {StateFXApplicationPending},
			StateBankDocumentRejected: {StateDraft},

			StateFXApplicationPending: {StateFXApproved, StateFXRejected},
			StateFXApproved:           {StateCustomsPending},
			StateFXRejected:           {StateDraft},

			StateCustomsPending:  {StateCustomsCleared, StateCustomsRejected},
			StateCustomsCleared:  {StateShipmentPending},
			StateCustomsRejected: {StateDraft},

			StateShipmentPending:   {StateShipmentScheduled},
			StateShipmentScheduled: {StateShipped},
			StateShipped:           {StateArrived},
			StateShipmentRejected:  {StateDraft},
			StateArrived:           {StateImportCustomsPending},

			StateImportCustomsPending:  {StateImportCustomsCleared, StateImportCustomsRejected},
			StateImportCustomsCleared:  {StateDelivered},
			StateImportCustomsRejected: {StateDraft},

			StateDelivered:       {StatePaymentPending},
			StatePaymentPending:  {StatePaymentReceived},
			StatePaymentReceived: {StateFXRepatriated},
			StateFXRepatriated:   {StateCompleted},
			StateCompleted:       {},
			StateCancelled:       {},
		},
		Stages: map[State]Stage{
			StateDraft: StageCreation,

			StateECXPending:  StageECXVerification,
			StateECXVerified: StageECXVerification,
			StateECXRejected: StageECXVerification,

			StateLicensePending:  StageLicense,
			StateLicenseApproved: StageLicense,
			StateLicenseRejected: StageLicense,

			StateQualityPending:  StageQuality,
			StateQualityApproved: StageQuality,
			StateQualityRejected: StageQuality,

			StateOriginPending:  StageOrigin,
			StateOriginApproved: StageOrigin,
			StateOriginRejected: StageOrigin,

			StateContractPending:  StageContract,
			StateContractApproved: StageContract,
			StateContractRejected: StageContract,

			StateBankDocumentPending:  StageBanking,
			StateBankDocumentVerified: StageBanking,
			StateBankDocumentRejected: StageBanking,

			StateFXApplicationPending: StageFXApproval,
			StateFXApproved:           StageFXApproval,
			StateFXRejected:           StageFXApproval,

			StateCustomsPending:  StageExportCustoms,
			StateCustomsCleared:  StageExportCustoms,
			StateCustomsRejected: StageExportCustoms,

			StateShipmentPending:   StageShipping,
			StateShipmentScheduled: StageShipping,
			StateShipped:           StageShipping,
			StateShipmentRejected:  StageShipping,
			StateArrived:           StageShipping,

			StateImportCustomsPending:  StageImportCustoms,
			StateImportCustomsCleared:  StageImportCustoms,
			StateImportCustomsRejected: StageImportCustoms,

			StateDelivered:       StageDelivery,
			StatePaymentPending:  StagePayment,
			StatePaymentReceived: StagePayment,
			StateFXRepatriated:   StageFXRepatriation,
			StateCompleted:       StageCompletion,
			StateCancelled:       StageCancellation,
		},
		Progress: map[State]int{
			StateDraft:                5,
			StateECXPending:           10,
			StateECXVerified:          15,
			StateLicensePending:       20,
			StateLicenseApproved:      25,
			StateQualityPending:       30,
			StateQualityApproved:      35,
			StateOriginPending:        40,
			StateOriginApproved:       45,
			StateContractPending:      50,
			StateContractApproved:     55,
			StateBankDocumentPending:  60,
			StateBankDocumentVerified: 65,
			StateFXApplicationPending: 70,
			StateFXApproved:           75,
			StateCustomsPending:       80,
			StateCustomsCleared:       85,
			StateShipmentPending:      88,
			StateShipmentScheduled:    90,
			StateShipped:              92,
			StateArrived:              94,
			StateImportCustomsPending: 95,
			StateImportCustomsCleared: 96,
			StateDelivered:            97,
			StatePaymentPending:       98,
			StatePaymentReceived:      99,
			StateFXRepatriated:        99,
			StateCompleted:            100,
		},
		Rejections: []State{
			StateECXRejected,
			StateLicenseRejected,
			StateQualityRejected,
			StateOriginRejected,
			StateContractRejected,
			StateBankDocumentRejected,
			StateFXRejected,
			StateCustomsRejected,
			StateShipmentRejected,
			StateImportCustomsRejected,
			StateCancelled,
		},
		Aliases: copyAliases(DefaultAliases),
	}
}

func copyAliases(in map[State]State) map[State]State {
	out := make(map[State]State, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
