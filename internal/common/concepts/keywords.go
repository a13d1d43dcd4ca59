package concepts

// keywordRule maps any of its patterns (whole-word, case-insensitive, hyphens
// count as spaces) to controlled-vocabulary style terms.
type keywordRule struct {
	patterns []string
	terms    []string
}

var keywordTable = []keywordRule{
	// populations
	{[]string{"obese", "obesity", "overweight"}, []string{"obesity", "overweight", "body mass index"}},
	{[]string{"adult"}, []string{"adult"}},
	{[]string{"elderly", "older adult", "older people", "senior", "aged"}, []string{"aged", "geriatrics"}},
	{[]string{"child", "children", "pediatric", "paediatric", "kid"}, []string{"child", "pediatrics"}},
	{[]string{"adolescent", "teen", "teenager", "youth"}, []string{"adolescent"}},
	{[]string{"infant", "newborn", "neonate", "baby", "babies"}, []string{"infant", "infant, newborn"}},
	{[]string{"pregnant", "pregnancy", "prenatal", "antenatal"}, []string{"pregnancy", "prenatal care"}},
	{[]string{"woman", "women"}, []string{"women", "women's health"}},
	{[]string{"caregiver", "carer"}, []string{"caregivers"}},
	{[]string{"patient"}, []string{"patients"}},

	// diet and lifestyle
	{[]string{"weight loss", "lose weight", "losing weight"}, []string{"weight loss", "weight reduction programs", "diet, reducing"}},
	{[]string{"low carb", "low carbohydrate", "keto", "ketogenic"}, []string{"diet, carbohydrate-restricted", "dietary carbohydrates"}},
	{[]string{"low fat"}, []string{"diet, fat-restricted", "dietary fats"}},
	{[]string{"diet", "dietary", "nutrition"}, []string{"diet", "nutrition therapy"}},
	{[]string{"exercise", "physical activity", "fitness"}, []string{"exercise", "exercise therapy"}},
	{[]string{"smoking", "smoker", "tobacco", "cigarette"}, []string{"smoking", "tobacco use", "smoking cessation"}},
	{[]string{"alcohol", "drinking"}, []string{"alcohol drinking"}},
	{[]string{"sleep", "insomnia"}, []string{"sleep", "sleep initiation and maintenance disorders"}},

	// digital health
	{[]string{"online", "internet", "web", "website"}, []string{"telemedicine", "internet", "online systems"}},
	{[]string{"app", "apps", "mobile", "smartphone", "mhealth"}, []string{"mobile applications", "telemedicine", "cell phone"}},
	{[]string{"telehealth", "telemedicine", "remote", "virtual care", "video consultation"}, []string{"telemedicine", "remote consultation"}},
	{[]string{"scheduling", "appointment", "booking"}, []string{"appointments and schedules"}},
	{[]string{"wearable", "sensor"}, []string{"wearable electronic devices"}},
	{[]string{"artificial intelligence", "machine learning"}, []string{"artificial intelligence", "machine learning"}},

	// conditions
	{[]string{"diabetes", "diabetic"}, []string{"diabetes mellitus", "diabetes mellitus, type 2"}},
	{[]string{"hypertension", "blood pressure"}, []string{"hypertension", "blood pressure"}},
	{[]string{"depression", "depressive"}, []string{"depression", "depressive disorder"}},
	{[]string{"anxiety"}, []string{"anxiety", "anxiety disorders"}},
	{[]string{"mental health", "mental illness", "psychiatric"}, []string{"mental health", "mental disorders"}},
	{[]string{"cancer", "tumor", "tumour", "oncology"}, []string{"neoplasms", "medical oncology"}},
	{[]string{"stroke"}, []string{"stroke"}},
	{[]string{"heart", "cardiac", "cardiovascular"}, []string{"cardiovascular diseases", "heart diseases"}},
	{[]string{"asthma"}, []string{"asthma"}},
	{[]string{"dementia", "alzheimer"}, []string{"dementia", "alzheimer disease"}},
	{[]string{"covid", "coronavirus", "sars cov 2"}, []string{"covid-19", "sars-cov-2"}},
	{[]string{"pain"}, []string{"pain", "pain management"}},
	{[]string{"infection"}, []string{"infections", "infection control"}},

	// care delivery
	{[]string{"nurse", "nursing"}, []string{"nurses", "nursing care"}},
	{[]string{"physician", "doctor", "general practitioner"}, []string{"physicians", "general practitioners"}},
	{[]string{"hospital", "inpatient", "hospitalization", "hospitalisation"}, []string{"hospitals", "hospitalization"}},
	{[]string{"primary care", "primary health care"}, []string{"primary health care"}},
	{[]string{"emergency"}, []string{"emergency medical services", "emergency service, hospital"}},
	{[]string{"vaccine", "vaccination", "immunization", "immunisation"}, []string{"vaccination", "vaccines"}},
	{[]string{"medication", "drug", "pharmacological"}, []string{"drug therapy", "pharmaceutical preparations"}},
	{[]string{"adherence", "compliance"}, []string{"patient compliance", "medication adherence"}},
	{[]string{"education", "training", "teaching"}, []string{"health education", "patient education as topic"}},
	{[]string{"counseling", "counselling"}, []string{"counseling"}},

	// outcomes and perspectives
	{[]string{"quality of life", "wellbeing", "well being"}, []string{"quality of life"}},
	{[]string{"mortality", "death", "survival"}, []string{"mortality", "survival rate"}},
	{[]string{"cost", "costs", "economic"}, []string{"costs and cost analysis", "health care costs"}},
	{[]string{"experience", "perception", "perspective", "attitude"}, []string{"attitude to health", "patient satisfaction"}},
	{[]string{"satisfaction"}, []string{"patient satisfaction"}},
	{[]string{"access", "accessibility", "barrier"}, []string{"health services accessibility"}},
	{[]string{"qualitative", "interview", "focus group"}, []string{"qualitative research", "interviews as topic"}},
	{[]string{"randomized", "randomised", "trial"}, []string{"randomized controlled trials as topic"}},
}

// genericConcepts pad short heuristic results; they apply to any framework.
var genericConcepts = []string{
	"health services",
	"delivery of health care",
	"patient care",
	"treatment outcome",
	"quality of life",
	"health promotion",
	"quality of health care",
	"health services accessibility",
	"evaluation studies as topic",
}
