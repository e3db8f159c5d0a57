package mapping

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SynonymEntry binds one canonical taxonomy term to the vendor phrasings
// that should resolve to it. Confidence falls back to the configured synonym
// tier confidence when zero; specific multi-word phrasings carry a higher
// value so they beat generic single-word entries when both appear.
type SynonymEntry struct {
	Canonical  string   `yaml:"canonical" json:"canonical"`
	Terms      []string `yaml:"terms" json:"terms"`
	Confidence float64  `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

type synonymFile struct {
	Synonyms []SynonymEntry `yaml:"synonyms"`
}

// LoadSynonyms reads a synonym table from a YAML file of the shape
// {synonyms: [{canonical, terms, confidence?}, ...]}. An empty path returns
// the built-in table.
func LoadSynonyms(path string) ([]SynonymEntry, error) {
	if path == "" {
		return DefaultSynonyms(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading synonym table: %w", err)
	}

	var f synonymFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing synonym table %s: %w", path, err)
	}

	return f.Synonyms, nil
}

// DefaultSynonyms returns the built-in table for the default retail
// taxonomy. Canonical values must resolve through the category index;
// entries that do not resolve are skipped at engine load with a warning.
//
// Matching is substring-based, so short terms are only listed where
// collisions with unrelated words are unlikely ("vin" would hit "vinete",
// so wine only has qualified phrasings). Entries whose terms are prefixes
// of more specific phrasings elsewhere ("lapte" vs "lapte praf") rely on
// the specific entry's higher confidence to win ties.
func DefaultSynonyms() []SynonymEntry {
	return []SynonymEntry{
		// Specific phrasings first, at raised confidence.
		{Canonical: "Hrană Bebeluși", Confidence: 0.9, Terms: []string{"lapte praf", "piure bebelusi", "hrana bebelusi"}},
		{Canonical: "Legume Congelate", Confidence: 0.9, Terms: []string{"legume congelate", "mazare congelata", "spanac congelat"}},
		{Canonical: "Pizza & Aluaturi Congelate", Confidence: 0.9, Terms: []string{"pizza congelata", "aluat congelat", "foietaj"}},
		{Canonical: "Fructe Uscate & Semințe", Confidence: 0.9, Terms: []string{"fructe uscate", "seminte", "stafide", "nuci", "alune"}},
		{Canonical: "Detergenți Rufe", Confidence: 0.9, Terms: []string{"detergent rufe", "balsam de rufe", "detergent lichid", "detergent pudra"}},

		{Canonical: "Lapte", Terms: []string{"lapte proaspat", "lapte uht", "lapte de vaca", "milk"}},
		{Canonical: "Iaurt & Kefir", Terms: []string{"iaurt", "kefir", "sana", "lapte batut"}},
		{Canonical: "Brânză & Cașcaval", Terms: []string{"branza", "brânză", "cascaval", "telemea", "mozzarella", "parmezan"}},
		{Canonical: "Unt & Smântână", Terms: []string{"unt", "smantana", "smântână", "frisca"}},
		{Canonical: "Ouă", Terms: []string{"oua", "ouă", "oua de gaina"}},
		{Canonical: "Deserturi Lactate", Terms: []string{"budinca", "desert lactat"}},

		{Canonical: "Carne de Pui", Terms: []string{"piept de pui", "pulpe de pui", "aripioare de pui", "carne de pui"}},
		{Canonical: "Carne de Porc", Terms: []string{"carne de porc", "ceafa de porc", "cotlet de porc"}},
		{Canonical: "Carne de Vită", Terms: []string{"carne de vita", "carne de vită", "muschi de vita"}},
		{Canonical: "Mezeluri", Terms: []string{"salam", "sunca", "șuncă", "carnati", "cârnați", "parizer", "crenvursti"}},
		{Canonical: "Pește & Fructe de Mare", Terms: []string{"peste proaspat", "pește", "somon", "sardine", "macrou", "creveti"}},

		{Canonical: "Fructe Proaspete", Terms: []string{"fructe proaspete", "mere", "banane", "portocale", "capsuni"}},
		{Canonical: "Legume Proaspete", Terms: []string{"legume proaspete", "rosii", "roșii", "castraveti", "cartofi", "morcovi"}},
		{Canonical: "Verdețuri & Salate", Terms: []string{"verdeturi", "salata verde", "patrunjel", "marar"}},

		{Canonical: "Pâine", Terms: []string{"paine", "pâine", "franzela", "bagheta"}},
		{Canonical: "Patiserie & Cofetărie", Terms: []string{"patiserie", "cofetarie", "croissant", "prajituri"}},

		{Canonical: "Paste Făinoase", Terms: []string{"paste fainoase", "spaghete", "macaroane", "penne", "fusilli"}},
		{Canonical: "Orez & Cereale", Terms: []string{"orez", "cereale", "musli", "fulgi de ovaz"}},
		{Canonical: "Conserve", Terms: []string{"conserva", "conserve", "compot"}},
		{Canonical: "Ulei & Oțet", Terms: []string{"ulei", "otet", "oțet"}},
		{Canonical: "Condimente & Sosuri", Terms: []string{"condimente", "sosuri", "ketchup", "mustar", "maioneza", "boia"}},
		{Canonical: "Zahăr & Făină", Terms: []string{"zahar", "faina", "făină", "drojdie"}},
		{Canonical: "Mic Dejun", Terms: []string{"mic dejun", "gem de", "miere", "dulceata", "crema de alune"}},

		{Canonical: "Ciocolată", Terms: []string{"ciocolata", "ciocolată", "praline"}},
		{Canonical: "Biscuiți & Napolitane", Terms: []string{"biscuiti", "biscuiți", "napolitane"}},
		{Canonical: "Bomboane & Jeleuri", Terms: []string{"bomboane", "jeleuri", "acadele", "guma de mestecat"}},
		{Canonical: "Chipsuri & Snacks Sărate", Terms: []string{"chipsuri", "covrigei", "pufuleti", "snack"}},

		{Canonical: "Apă", Terms: []string{"apa minerala", "apa plata", "apa carbogazoasa"}},
		{Canonical: "Sucuri & Băuturi Răcoritoare", Terms: []string{"suc de", "sucuri", "bauturi racoritoare", "limonada"}},
		{Canonical: "Cafea", Terms: []string{"cafea", "espresso", "cappuccino"}},
		{Canonical: "Ceai", Terms: []string{"ceai"}},
		{Canonical: "Bere", Terms: []string{"bere"}},
		{Canonical: "Vin", Terms: []string{"vin rosu", "vin alb", "vin roze", "vin spumant", "prosecco"}},
		{Canonical: "Băuturi Spirtoase", Terms: []string{"vodka", "whisky", "whiskey", "tuica", "țuică", "palinca", "coniac", "lichior"}},

		{Canonical: "Înghețată", Terms: []string{"inghetata", "înghețată", "gelato"}},

		{Canonical: "Îngrijire Păr", Terms: []string{"sampon", "șampon", "balsam de par"}},
		{Canonical: "Îngrijire Corp", Terms: []string{"gel de dus", "sapun", "deodorant", "crema de corp"}},
		{Canonical: "Igienă Orală", Terms: []string{"pasta de dinti", "apa de gura", "periuta"}},

		{Canonical: "Curățenie Bucătărie", Terms: []string{"detergent de vase", "degresant"}},
		{Canonical: "Curățenie Baie", Terms: []string{"anticalcar", "dezinfectant"}},
		{Canonical: "Hârtie Igienică & Șervețele", Terms: []string{"hartie igienica", "servetele", "prosoape de hartie"}},

		{Canonical: "Scutece", Terms: []string{"scutece"}},
		{Canonical: "Hrană Câini", Terms: []string{"hrana caini", "hrana pentru caini", "mancare caini"}},
		{Canonical: "Hrană Pisici", Terms: []string{"hrana pisici", "hrana pentru pisici", "mancare pisici"}},
	}
}
