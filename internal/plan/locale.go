package plan

import "fmt"

// phrases holds the localized fallback wording used by Normalize and BuildStub.
type phrases struct {
	draftTitle        string
	draftDescription  string
	levelTitle        string                      // %d level
	sessionTitle      string                      // %d session
	sessionObjective  string                      // %d session, %d level
	outcomeUnderstand string                      // %d level
	outcomeDeliver    string                      // %d level
	accessibility     [2]string
	stubDescription   string                      // %s topic
	stubOutcomes      [2]string                   // %s topic
	levelThemes       [LevelsCount]string
	sessionTemplates  [SessionsPerLevel][2]string // title, objective
}

var phraseBook = map[string]phrases{
	LanguageFR: {
		draftTitle:        "Plan de formation (brouillon)",
		draftDescription:  "Plan de formation structure par niveaux.",
		levelTitle:        "Niveau %d",
		sessionTitle:      "Seance %d",
		sessionObjective:  "Objectif de la seance %d du niveau %d",
		outcomeUnderstand: "Comprendre les objectifs du niveau %d",
		outcomeDeliver:    "Realiser un livrable pratique pour le niveau %d",
		accessibility: [2]string{
			"Supports accessibles et lisibles.",
			"Alternatives visuelles et orales disponibles.",
		},
		stubDescription: "Plan de formation structure par niveaux, axe sur %s.",
		stubOutcomes:    [2]string{"Maitriser les bases de %s", "Realiser un livrable pratique lie a %s"},
		levelThemes: [LevelsCount]string{
			"Fondations & outils",
			"Projets guides",
			"Innovation & collaboration",
			"Capstone & certification",
		},
		sessionTemplates: [SessionsPerLevel][2]string{
			{"Decouverte & objectifs", "Comprendre les enjeux et definir les objectifs d'apprentissage."},
			{"Prise en main des outils", "Installer et configurer l'environnement puis realiser des exercices guides."},
			{"Atelier pratique", "Realiser un mini-projet applique avec des livrables simples."},
			{"Prototype technologique", "Ameliorer le projet et integrer des fonctionnalites innovantes."},
			{"Evaluation & feedback", "Auto-evaluation, feedback entre pairs et corrections ciblees."},
			{"Synthese & preparation", "Consolider les acquis et preparer le niveau suivant."},
		},
	},
	LanguageEN: {
		draftTitle:        "Training plan (draft)",
		draftDescription:  "Training plan structured by levels.",
		levelTitle:        "Level %d",
		sessionTitle:      "Session %d",
		sessionObjective:  "Objective of session %d in level %d",
		outcomeUnderstand: "Understand the goals of level %d",
		outcomeDeliver:    "Deliver a practical output for level %d",
		accessibility: [2]string{
			"Accessible and readable materials.",
			"Visual and spoken alternatives available.",
		},
		stubDescription: "Training plan structured by levels, focused on %s.",
		stubOutcomes:    [2]string{"Master the fundamentals of %s", "Deliver a practical project related to %s"},
		levelThemes: [LevelsCount]string{
			"Foundations & tools",
			"Guided projects",
			"Innovation & collaboration",
			"Capstone & certification",
		},
		sessionTemplates: [SessionsPerLevel][2]string{
			{"Discovery & goals", "Understand the stakes and set the learning objectives."},
			{"Getting started with the tools", "Set up the environment and complete guided exercises."},
			{"Hands-on workshop", "Build a small applied project with simple deliverables."},
			{"Technology prototype", "Improve the project and add innovative features."},
			{"Assessment & feedback", "Self-assessment, peer feedback and targeted corrections."},
			{"Wrap-up & next steps", "Consolidate what was learned and prepare the next level."},
		},
	},
	LanguageAR: {
		draftTitle:        "خطة تدريب (مسودة)",
		draftDescription:  "خطة تدريب منظمة حسب المستويات.",
		levelTitle:        "المستوى %d",
		sessionTitle:      "الجلسة %d",
		sessionObjective:  "هدف الجلسة %d من المستوى %d",
		outcomeUnderstand: "فهم أهداف المستوى %d",
		outcomeDeliver:    "إنجاز عمل تطبيقي للمستوى %d",
		accessibility: [2]string{
			"مواد ميسرة وسهلة القراءة.",
			"بدائل مرئية وشفهية متاحة.",
		},
		stubDescription: "خطة تدريب منظمة حسب المستويات، تركز على %s.",
		stubOutcomes:    [2]string{"إتقان أساسيات %s", "إنجاز عمل تطبيقي مرتبط بـ %s"},
		levelThemes: [LevelsCount]string{
			"الأسس والأدوات",
			"مشاريع موجهة",
			"الابتكار والتعاون",
			"المشروع الختامي والشهادة",
		},
		sessionTemplates: [SessionsPerLevel][2]string{
			{"الاكتشاف والأهداف", "فهم الرهانات وتحديد أهداف التعلم."},
			{"التعرف على الأدوات", "إعداد بيئة العمل وإنجاز تمارين موجهة."},
			{"ورشة تطبيقية", "إنجاز مشروع مصغر تطبيقي بمخرجات بسيطة."},
			{"نموذج تقني أولي", "تحسين المشروع وإضافة وظائف مبتكرة."},
			{"التقييم والتغذية الراجعة", "تقييم ذاتي وتغذية راجعة بين الأقران وتصحيحات موجهة."},
			{"التلخيص والتحضير", "ترسيخ المكتسبات والتحضير للمستوى التالي."},
		},
	},
}

func phrasesFor(lang string) phrases {
	if p, ok := phraseBook[lang]; ok {
		return p
	}
	return phraseBook[LanguageFR]
}

func (p phrases) level(i int) string { return fmt.Sprintf(p.levelTitle, i) }

func (p phrases) session(j int) string { return fmt.Sprintf(p.sessionTitle, j) }

func (p phrases) objective(i, j int) string { return fmt.Sprintf(p.sessionObjective, j, i) }

func (p phrases) outcomes(i int) []string {
	return []string{fmt.Sprintf(p.outcomeUnderstand, i), fmt.Sprintf(p.outcomeDeliver, i)}
}

func (p phrases) notes() []string {
	return []string{p.accessibility[0], p.accessibility[1]}
}
