package workflow

import "slices"

// Org identifies a participating organization.
type Org string

// Organizations of the export consortium.
const (
	OrgExporter       Org = "exporter"
	OrgECX            Org = "ecx"
	OrgECTA           Org = "ecta"
	OrgCommercialBank Org = "commercial-bank"
	OrgNationalBank   Org = "national-bank"
	OrgCustoms        Org = "customs"
	OrgShippingLine   Org = "shipping-line"
)

// Orgs lists every consortium organization.
func Orgs() []Org {
	return []Org{
		OrgExporter,
		OrgECX,
		OrgECTA,
		OrgCommercialBank,
		OrgNationalBank,
		OrgCustoms,
		OrgShippingLine,
	}
}

// ParseOrg returns the organization named s.
func ParseOrg(s string) (Org, bool) {
	org := Org(s)
	return org, slices.Contains(Orgs(), org)
}

// Authority maps a target state to the organizations allowed to move a
// record into it. States without an entry may not be entered by anyone.
type Authority map[State][]Org

// Allows reports whether org may move a record into to.
func (a Authority) Allows(org Org, to State) bool {
	return slices.Contains(a[Canonical(to)], org)
}

// Authorize validates from -> to against the graph and then checks that
// org may perform it. Illegal transitions are reported before
// authorization; unauthorized ones wrap ErrUnauthorizedTransition.
func (g *Graph) Authorize(auth Authority, org Org, from, to State) error {
	if err := g.Validate(from, to); err != nil {
		return err
	}
	if auth.Allows(org, g.canonical(to)) {
		return nil
	}
	return &ValidationError{
		From:    from,
		To:      to,
		Allowed: g.NextStates(from),
		Org:     org,
		Err:     ErrUnauthorizedTransition,
	}
}

// DefaultAuthority returns the export consortium's authority table.
func DefaultAuthority() Authority {
	exporter := []Org{OrgExporter}
	ecx := []Org{OrgECX}
	ecta := []Org{OrgECTA}
	bank := []Org{OrgCommercialBank}
	nbe := []Org{OrgNationalBank}
	customs := []Org{OrgCustoms}
	shipping := []Org{OrgShippingLine}

	return Authority{
		StateDraft:     exporter,
		StateCancelled: exporter,

		StateECXPending:          exporter,
		StateLicensePending:      exporter,
		StateQualityPending:      exporter,
		StateOriginPending:       exporter,
		StateContractPending:     exporter,
		StateBankDocumentPending: exporter,
		StateCustomsPending:      exporter,
		StatePaymentPending:      exporter,

		StateFXApplicationPending: bank,

		StateECXVerified: ecx,
		StateECXRejected: ecx,

		StateLicenseApproved:  ecta,
		StateLicenseRejected:  ecta,
		StateQualityApproved:  ecta,
		StateQualityRejected:  ecta,
		StateOriginApproved:   ecta,
		StateOriginRejected:   ecta,
		StateContractApproved: ecta,
		StateContractRejected: ecta,

		StateBankDocumentVerified: bank,
		StateBankDocumentRejected: bank,
		StatePaymentReceived:      bank,

		StateFXApproved:    nbe,
		StateFXRejected:    nbe,
		StateFXRepatriated: nbe,

		StateCustomsCleared:        customs,
		StateCustomsRejected:       customs,
		StateImportCustomsPending:  shipping,
		StateImportCustomsCleared:  customs,
		StateImportCustomsRejected: customs,

		StateShipmentPending:   {OrgExporter, OrgShippingLine},
		StateShipmentScheduled: shipping,
		StateShipped:           shipping,
		StateArrived:           shipping,
		StateShipmentRejected:  shipping,
		StateDelivered:         shipping,

		StateCompleted: {OrgNationalBank, OrgCommercialBank},
	}
}
