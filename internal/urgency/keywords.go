package urgency

// keywordSet groups the phrases checked for one language. Phrases are matched
// on word boundaries against lower-cased, punctuation-stripped text.
type keywordSet struct {
	distress []string
	trapped  []string
	medical  []string
}

const fallbackLanguage = "en"

var keywordSets = map[string]keywordSet{
	"en": {
		distress: []string{"help", "emergency", "sos", "urgent", "dying", "save us", "please hurry", "mayday"},
		trapped:  []string{"trapped", "stuck", "buried", "under rubble", "collapsed", "can't get out", "cannot get out"},
		medical:  []string{"bleeding", "unconscious", "not breathing", "heart attack", "broken bone", "injured", "seizure", "overdose"},
	},
	"es": {
		distress: []string{"ayuda", "emergencia", "socorro", "urgente", "auxilio", "sálvennos"},
		trapped:  []string{"atrapado", "atrapada", "atrapados", "enterrado", "escombros", "derrumbe"},
		medical:  []string{"sangrando", "inconsciente", "no respira", "herido", "herida", "infarto"},
	},
	"fr": {
		distress: []string{"aide", "au secours", "urgence", "urgent", "sauvez nous"},
		trapped:  []string{"piégé", "piégés", "coincé", "coincés", "enseveli", "décombres"},
		medical:  []string{"saigne", "inconscient", "ne respire pas", "blessé", "blessée", "crise cardiaque"},
	},
	"tr": {
		distress: []string{"yardım", "acil", "imdat", "kurtarın"},
		trapped:  []string{"enkaz", "enkaz altında", "mahsur", "sıkıştı", "göçük"},
		medical:  []string{"kanama", "bilinçsiz", "nefes almıyor", "yaralı", "kalp krizi"},
	},
	"ar": {
		distress: []string{"مساعدة", "النجدة", "طوارئ", "عاجل", "أنقذونا"},
		trapped:  []string{"محاصر", "عالق", "تحت الأنقاض", "مدفون"},
		medical:  []string{"نزيف", "فاقد الوعي", "لا يتنفس", "مصاب", "نوبة قلبية"},
	},
}

// SupportedLanguages lists the languages with dedicated keyword sets.
func SupportedLanguages() []string {
	return []string{"en", "es", "fr", "tr", "ar"}
}
