package urgency

import (
	"strings"

	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
)

// Indicator labels recorded on requests.
const (
	IndicatorDesperation     = "desperation"
	IndicatorLowBattery      = "device:low_battery"
	IndicatorPoorSignal      = "device:poor_signal"
	IndicatorCriticalRescue  = "need:critical_rescue"
	IndicatorCriticalMedical = "need:critical_medical"
	IndicatorRepeated        = "messages:repeated"
	keywordIndicatorPrefix   = "keyword:"

	recentMessages = 5
)

// Classification is the computed urgency of a request snapshot.
type Classification struct {
	Priority    enums.Priority
	SOSDetected bool
	Indicators  []string
	Score       int
}

// Classify derives a priority from a request snapshot. Without any SOS
// indicator the self-declared urgency is kept as is.
func Classify(req models.AidRequest) Classification {
	declared := req.SelfDeclaredUrgency
	if !declared.IsValid() {
		declared = enums.PriorityMedium
	}
	criticalDeclared := declared == enums.PriorityCritical || declared == enums.PrioritySOS

	detection := DetectKeywords(requestText(req), req.Language)
	indicators := indicatorsFor(req, detection, criticalDeclared)
	if len(indicators) == 0 {
		return Classification{Priority: declared}
	}
	if req.RepeatedMessageCount > 2 {
		indicators = append(indicators, IndicatorRepeated)
	}

	score := 0
	if req.Needs.IsRequired(enums.NeedCategoryRescue) {
		score += pick(criticalDeclared, 5, 3)
	}
	if req.Needs.IsRequired(enums.NeedCategoryMedical) {
		score += pick(criticalDeclared, 4, 2)
	}
	if req.Needs.IsRequired(enums.NeedCategoryWater) {
		score += 2
	}
	if req.Needs.IsRequired(enums.NeedCategoryFood) {
		score++
	}

	switch total := req.Beneficiaries.Total(); {
	case total > 20:
		score += 3
	case total > 10:
		score += 2
	case total > 5:
		score++
	}
	if len(req.Medical.Conditions) > 0 {
		score += 2
	}
	if req.Medical.Pregnant {
		score += 2
	}
	if req.Beneficiaries.Infants > 0 {
		score += 2
	}

	if req.Device.LowBattery() {
		score += 2
	}
	if req.Device.PoorSignal() {
		score++
	}

	if detection.Detected {
		score += 7
	}
	if detection.Trapped {
		score += 4
	}
	if detection.Medical {
		score += 3
	}
	if req.RepeatedMessageCount > 2 {
		score += 2
	}

	return Classification{
		Priority:    PriorityForScore(score),
		SOSDetected: true,
		Indicators:  indicators,
		Score:       score,
	}
}

// CheckSOSStatus classifies req and writes the result onto it. Persisting is
// left to the caller.
func CheckSOSStatus(req *models.AidRequest) Classification {
	if req == nil {
		return Classification{}
	}
	result := Classify(*req)
	req.SOSDetected = result.SOSDetected
	req.SOSIndicators = append(req.SOSIndicators[:0], result.Indicators...)
	req.Priority = result.Priority
	return result
}

// PriorityForScore maps an additive urgency score onto a priority.
func PriorityForScore(score int) enums.Priority {
	switch {
	case score >= 15:
		return enums.PrioritySOS
	case score >= 10:
		return enums.PriorityCritical
	case score >= 6:
		return enums.PriorityHigh
	case score >= 3:
		return enums.PriorityMedium
	default:
		return enums.PriorityLow
	}
}

func indicatorsFor(req models.AidRequest, detection Detection, criticalDeclared bool) []string {
	var out []string
	for _, kw := range detection.Keywords {
		out = append(out, keywordIndicatorPrefix+kw)
	}
	if detection.Desperation {
		out = append(out, IndicatorDesperation)
	}
	if req.Device.LowBattery() {
		out = append(out, IndicatorLowBattery)
	}
	if req.Device.PoorSignal() {
		out = append(out, IndicatorPoorSignal)
	}
	if criticalDeclared && req.Needs.IsRequired(enums.NeedCategoryRescue) {
		out = append(out, IndicatorCriticalRescue)
	}
	if criticalDeclared && req.Needs.IsRequired(enums.NeedCategoryMedical) {
		out = append(out, IndicatorCriticalMedical)
	}
	return out
}

// requestText joins the description with the latest follow-up messages.
func requestText(req models.AidRequest) string {
	parts := []string{req.Description}
	for _, msg := range req.Messages.Last(recentMessages) {
		parts = append(parts, msg.Text)
	}
	return strings.Join(parts, "\n")
}

func pick(cond bool, yes, no int) int {
	if cond {
		return yes
	}
	return no
}
