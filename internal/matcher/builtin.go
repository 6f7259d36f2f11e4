package matcher

import (
	"strings"

	"github.com/opencompliance/complycal/internal/domain"
)

// Rupee thresholds for the built-in predicates. Comparisons are inclusive:
// a resolved value equal to the threshold triggers the obligation.
const (
	gstServiceThreshold   = 2_000_000  // Rs. 20 lakh
	gstGoodsThreshold     = 4_000_000  // Rs. 40 lakh
	auditProfThreshold    = 5_000_000  // Rs. 50 lakh
	auditGeneralThreshold = 10_000_000 // Rs. 1 crore
)

const (
	epfEmployeeThreshold = 20
	esiEmployeeThreshold = 10
)

// professionalTaxStates are the states that levy professional tax on
// employers. Membership checks are case-insensitive.
var professionalTaxStates = []string{
	"Maharashtra", "Karnataka", "West Bengal", "Tamil Nadu", "Gujarat",
	"Andhra Pradesh", "Telangana", "Madhya Pradesh", "Kerala", "Assam",
	"Odisha", "Punjab", "Tripura", "Meghalaya", "Chhattisgarh",
	"Sikkim", "Jharkhand",
}

// LeviesProfessionalTax reports whether the state levies professional tax.
func LeviesProfessionalTax(state string) bool {
	for _, s := range professionalTaxStates {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}

// appliesBuiltin decides applicability for the ten built-in obligations.
// The profile must already have its numeric fields resolved.
func appliesBuiltin(id string, p *domain.BusinessProfile) bool {
	switch id {
	case domain.ObligationGST:
		if p.BusinessType == domain.BusinessService {
			return p.TurnoverValue >= gstServiceThreshold
		}
		return p.TurnoverValue >= gstGoodsThreshold

	case domain.ObligationEPF:
		return p.EmployeeCount >= epfEmployeeThreshold

	case domain.ObligationESI:
		return p.EmployeeCount >= esiEmployeeThreshold

	case domain.ObligationProfessionalTax:
		return LeviesProfessionalTax(p.State)

	case domain.ObligationTDS, domain.ObligationIncomeTax, domain.ObligationShopsEstab:
		return true

	case domain.ObligationMSMEReturn:
		return p.MSMERegistered

	case domain.ObligationMSMEForm1:
		return p.OwesPaymentToMSME

	case domain.ObligationTaxAudit:
		if p.BusinessType == domain.BusinessProfessional {
			return p.TurnoverValue >= auditProfThreshold
		}
		return p.TurnoverValue >= auditGeneralThreshold
	}
	return false
}
