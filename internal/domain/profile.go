// Package domain defines the core interfaces and types for complycal.
package domain

import "strings"

// BusinessType classifies the nature of the business operation.
type BusinessType string

const (
	BusinessManufacturing BusinessType = "Manufacturing"
	BusinessTrading       BusinessType = "Trading"
	BusinessService       BusinessType = "Service"
	BusinessProfessional  BusinessType = "Professional"
)

// ValidBusinessType reports whether t is one of the four known types.
func ValidBusinessType(t BusinessType) bool {
	switch t {
	case BusinessManufacturing, BusinessTrading, BusinessService, BusinessProfessional:
		return true
	}
	return false
}

// TurnoverBracket is a discrete annual-turnover range from the questionnaire.
type TurnoverBracket string

const (
	TurnoverUnder20L TurnoverBracket = "<20L"
	Turnover20Lto40L TurnoverBracket = "20L-40L"
	Turnover40Lto1Cr TurnoverBracket = "40L-1Cr"
	Turnover1Crto5Cr TurnoverBracket = "1Cr-5Cr"
	Turnover5to10Cr  TurnoverBracket = "5Cr-10Cr"
	TurnoverOver10Cr TurnoverBracket = ">10Cr"
)

// turnoverMidpoints resolves each bracket to its numeric midpoint in rupees.
// Threshold comparisons in the matcher run against these values, never
// against the bracket labels.
var turnoverMidpoints = map[TurnoverBracket]float64{
	TurnoverUnder20L: 1_000_000,
	Turnover20Lto40L: 3_000_000,
	Turnover40Lto1Cr: 7_000_000,
	Turnover1Crto5Cr: 30_000_000,
	Turnover5to10Cr:  75_000_000,
	TurnoverOver10Cr: 150_000_000,
}

// Midpoint returns the bracket's resolved rupee value, or 0 and false for an
// unknown bracket.
func (b TurnoverBracket) Midpoint() (float64, bool) {
	v, ok := turnoverMidpoints[b]
	return v, ok
}

// EmployeeBracket is a discrete employee-count range from the questionnaire.
type EmployeeBracket string

const (
	EmployeesUnder10 EmployeeBracket = "<10"
	Employees10to19  EmployeeBracket = "10-19"
	Employees20to49  EmployeeBracket = "20-49"
	Employees50to99  EmployeeBracket = "50-99"
	EmployeesOver100 EmployeeBracket = "100+"
)

// employeeMidpoints resolves each bracket to a representative headcount.
var employeeMidpoints = map[EmployeeBracket]int{
	EmployeesUnder10: 5,
	Employees10to19:  15,
	Employees20to49:  35,
	Employees50to99:  75,
	EmployeesOver100: 150,
}

// Midpoint returns the bracket's resolved headcount, or 0 and false for an
// unknown bracket.
func (b EmployeeBracket) Midpoint() (int, bool) {
	v, ok := employeeMidpoints[b]
	return v, ok
}

// BusinessProfile is an immutable snapshot of a questionnaire submission.
// TurnoverValue and EmployeeCount are always derived from the brackets via
// ResolveProfile, never supplied independently.
type BusinessProfile struct {
	BusinessType      BusinessType    `json:"businessType"`
	State             string          `json:"state"`
	Industry          string          `json:"industry"`
	Turnover          TurnoverBracket `json:"turnover"`
	TurnoverValue     float64         `json:"annualTurnoverValue"`
	Employees         EmployeeBracket `json:"employees"`
	EmployeeCount     int             `json:"employeeCount"`
	MSMERegistered    bool            `json:"msmeRegistered"`
	OwesPaymentToMSME bool            `json:"owesPaymentToMSME"`
}

// ResolveProfile fills in the numeric midpoint fields from the brackets.
// Unknown brackets resolve to zero, which fails every threshold predicate.
func ResolveProfile(p *BusinessProfile) {
	p.TurnoverValue, _ = p.Turnover.Midpoint()
	p.EmployeeCount, _ = p.Employees.Midpoint()
}

// IndianStates lists the 28 states accepted by the questionnaire.
var IndianStates = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
	"Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka",
	"Kerala", "Madhya Pradesh", "Maharashtra", "Manipur", "Meghalaya",
	"Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan", "Sikkim",
	"Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand",
	"West Bengal",
}

// UnionTerritories lists the 8 union territories.
var UnionTerritories = []string{
	"Andaman and Nicobar Islands", "Chandigarh",
	"Dadra and Nagar Haveli and Daman and Diu", "Delhi", "Jammu and Kashmir",
	"Ladakh", "Lakshadweep", "Puducherry",
}

// KnownRegion reports whether state matches a known state or union territory,
// case-insensitively.
func KnownRegion(state string) bool {
	for _, s := range IndianStates {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	for _, s := range UnionTerritories {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}
