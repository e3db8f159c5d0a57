package mapping

// keywordFallbackConfidence is the fixed confidence attached to a broad
// keyword guess. Deliberately low: the result parks a product near the right
// aisle, it is not a real classification.
const keywordFallbackConfidence = 0.3

// keywordFallbacks maps tokens to broad root categories. Checked in order
// against the combined category/name/brand text only after every matching
// tier has failed, so precision matters less than recall here. Kept separate
// from the synonym table: synonym hits count as mapped, these do not.
var keywordFallbacks = []struct {
	Keyword  string
	Category string
}{
	{"lapte", "Lactate & Ouă"},
	{"iaurt", "Lactate & Ouă"},
	{"branza", "Lactate & Ouă"},
	{"lactate", "Lactate & Ouă"},
	{"carne", "Carne & Pește"},
	{"pui", "Carne & Pește"},
	{"porc", "Carne & Pește"},
	{"mezeluri", "Carne & Pește"},
	{"fructe", "Fructe & Legume"},
	{"legume", "Fructe & Legume"},
	{"paine", "Pâine & Patiserie"},
	{"patiserie", "Pâine & Patiserie"},
	{"dulciuri", "Dulciuri & Snacks"},
	{"ciocolata", "Dulciuri & Snacks"},
	{"biscuiti", "Dulciuri & Snacks"},
	{"snack", "Dulciuri & Snacks"},
	{"bautur", "Băuturi"},
	{"suc", "Băuturi"},
	{"bere", "Băuturi"},
	{"cafea", "Băuturi"},
	{"ceai", "Băuturi"},
	{"congelat", "Congelate"},
	{"inghetata", "Congelate"},
	{"detergent", "Curățenie & Menaj"},
	{"curatenie", "Curățenie & Menaj"},
	{"menaj", "Curățenie & Menaj"},
	{"sampon", "Îngrijire Personală"},
	{"igiena", "Îngrijire Personală"},
	{"cosmetice", "Îngrijire Personală"},
	{"bebe", "Bebeluși"},
	{"scutece", "Bebeluși"},
	{"caine", "Animale de Companie"},
	{"caini", "Animale de Companie"},
	{"pisic", "Animale de Companie"},
	{"animale", "Animale de Companie"},
	{"conserv", "Băcănie"},
	{"paste", "Băcănie"},
	{"orez", "Băcănie"},
	{"ulei", "Băcănie"},
	{"condimente", "Băcănie"},
	{"bacanie", "Băcănie"},
}
