package domain

// HealthAdvisory carries the health guidance for an AQI category.
type HealthAdvisory struct {
	Category  Category `json:"category"`
	General   string   `json:"general"`   // general population
	Sensitive string   `json:"sensitive"` // children, elderly, respiratory/heart conditions
	Actions   []string `json:"actions"`   // recommended actions
}

var advisories = map[Category]HealthAdvisory{
	CategoryGood: {
		Category:  CategoryGood,
		General:   "Air quality is good. Ideal for outdoor activities.",
		Sensitive: "No restrictions for sensitive groups.",
		Actions: []string{
			"Running, cycling, and outdoor sports are fine",
			"Open windows for ventilation",
		},
	},
	CategoryModerate: {
		Category:  CategoryModerate,
		General:   "Air quality is acceptable for most people.",
		Sensitive: "Unusually sensitive individuals may experience minor symptoms and should consider reducing prolonged outdoor exertion.",
		Actions: []string{
			"Most outdoor activities are fine",
			"Sensitive groups: limit prolonged exertion",
		},
	},
	CategorySensitive: {
		Category:  CategorySensitive,
		General:   "General public can enjoy outdoor activities.",
		Sensitive: "Children, elderly, and people with heart or lung disease should reduce prolonged outdoor activities.",
		Actions: []string{
			"Sensitive groups: limit outdoor time",
			"Consider moving strenuous activities indoors",
		},
	},
	CategoryUnhealthy: {
		Category:  CategoryUnhealthy,
		General:   "Everyone may experience health effects. Reduce prolonged outdoor exertion.",
		Sensitive: "Sensitive groups may experience more serious effects and should avoid outdoor activities.",
		Actions: []string{
			"Sensitive groups: stay indoors",
			"General public: reduce prolonged outdoor exertion",
			"Wear N95 masks if going outside",
		},
	},
	CategoryVeryUnhealthy: {
		Category:  CategoryVeryUnhealthy,
		General:   "Health alert: everyone should limit outdoor activities.",
		Sensitive: "Sensitive groups should stay indoors and keep activity levels low.",
		Actions: []string{
			"Avoid all prolonged outdoor activities",
			"Stay indoors with windows closed",
			"Wear N95/KF94 masks if you must go outside",
			"Use air purifiers indoors",
		},
	},
	CategoryHazardous: {
		Category:  CategoryHazardous,
		General:   "Health emergency: everyone should avoid outdoor activities.",
		Sensitive: "Everyone should stay indoors and avoid all outdoor physical activity.",
		Actions: []string{
			"Stay indoors",
			"Cancel all outdoor activities",
			"Wear N95 masks even for brief outdoor exposure",
			"Use air purifiers at maximum setting",
			"Seek medical attention if experiencing symptoms",
		},
	},
}

// AdvisoryFor returns the health advisory for a category. Unknown categories
// fall back to the Good advisory.
func AdvisoryFor(c Category) HealthAdvisory {
	if a, ok := advisories[c]; ok {
		return a
	}
	return advisories[CategoryGood]
}
