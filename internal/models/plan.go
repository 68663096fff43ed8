package models

import (
	"gorm.io/datatypes"
)

// Plan is the persisted row backing GET /plans. The catalog below is the
// source of truth; rows are seeded from it at startup and never mutated at
// runtime.
type Plan struct {
	BaseModel
	Code          PlanCode       `gorm:"uniqueIndex;not null" json:"code"`
	Name          string         `gorm:"not null" json:"name"`
	Price         float64        `gorm:"not null" json:"price"`
	Currency      string         `gorm:"default:'PEN'" json:"currency"`
	UnlockedDepth int            `gorm:"not null" json:"unlocked_depth"`
	Features      datatypes.JSON `gorm:"type:jsonb" json:"features"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	SortOrder     int            `json:"sort_order"`
}

// PlanSpec is the static plan configuration consumed by the commission
// engine and the state machine.
type PlanSpec struct {
	Code          PlanCode
	Name          string
	Price         float64
	UnlockedDepth int
	// Rates maps level (1..4) to the commission fraction paid to an ancestor
	// at that depth when an account on this plan pays.
	Rates    map[int]float64
	Features []string
}

// MaxCommissionDepth is the deepest level any plan can unlock.
const MaxCommissionDepth = 4

var planCatalog = map[PlanCode]PlanSpec{
	PlanBasic: {
		Code:          PlanBasic,
		Name:          "Básico",
		Price:         50,
		UnlockedDepth: 1,
		Rates:         map[int]float64{1: 0.50, 2: 0.20, 3: 0.10, 4: 0.05},
		Features: []string{
			"Acceso a 3 Apps (ContApp, Fast Page, Lead Widget)",
			"Comisión Nivel 1: 50%",
			"Soporte por email",
			"Panel de afiliados básico",
		},
	},
	PlanPro: {
		Code:          PlanPro,
		Name:          "Pro",
		Price:         75,
		UnlockedDepth: 2,
		Rates:         map[int]float64{1: 0.50, 2: 0.20, 3: 0.10, 4: 0.05},
		Features: []string{
			"Todo en Básico",
			"Comisión Nivel 2: 20% (Total: 70%)",
			"Reportes avanzados",
			"Soporte prioritario",
		},
	},
	PlanElite: {
		Code:          PlanElite,
		Name:          "Elite",
		Price:         99,
		UnlockedDepth: 4,
		Rates:         map[int]float64{1: 0.50, 2: 0.20, 3: 0.10, 4: 0.05},
		Features: []string{
			"Todo en Pro",
			"Comisión Nivel 3: 10%",
			"Comisión Nivel 4: 5% (Total: 85%)",
			"Acceso VIP a nuevas herramientas",
		},
	},
}

var planOrder = []PlanCode{PlanBasic, PlanPro, PlanElite}

// DefaultPlan is the plan every new account starts on.
const DefaultPlan = PlanBasic

// GetPlanSpec resolves a plan code in the static catalog.
func GetPlanSpec(code PlanCode) (PlanSpec, bool) {
	spec, ok := planCatalog[code]
	return spec, ok
}

// PlanSpecs returns the catalog in display order.
func PlanSpecs() []PlanSpec {
	specs := make([]PlanSpec, 0, len(planOrder))
	for _, code := range planOrder {
		specs = append(specs, planCatalog[code])
	}
	return specs
}

// UnlockedDepthFor returns the commission depth the given plan entitles an
// account to earn from. Unknown codes fall back to the default plan.
func UnlockedDepthFor(code PlanCode) int {
	if spec, ok := planCatalog[code]; ok {
		return spec.UnlockedDepth
	}
	return planCatalog[DefaultPlan].UnlockedDepth
}
