package taxonomy

// CategorySeed defines a category for seeding the default tree.
type CategorySeed struct {
	Name     string
	Slug     string
	Children []CategorySeed
}

// DefaultSeeds is the built-in retail taxonomy used when no taxonomy file is
// configured. Deployments usually start from this and customize per market.
var DefaultSeeds = []CategorySeed{
	{
		Name: "Lactate & Ouă",
		Slug: "lactate-oua",
		Children: []CategorySeed{
			{Name: "Lapte", Slug: "lapte"},
			{Name: "Iaurt & Kefir", Slug: "iaurt-kefir"},
			{Name: "Brânză & Cașcaval", Slug: "branza-cascaval"},
			{Name: "Unt & Smântână", Slug: "unt-smantana"},
			{Name: "Ouă", Slug: "oua"},
			{Name: "Deserturi Lactate", Slug: "deserturi-lactate"},
		},
	},
	{
		Name: "Carne & Pește",
		Slug: "carne-peste",
		Children: []CategorySeed{
			{Name: "Carne de Pui", Slug: "carne-pui"},
			{Name: "Carne de Porc", Slug: "carne-porc"},
			{Name: "Carne de Vită", Slug: "carne-vita"},
			{Name: "Mezeluri", Slug: "mezeluri"},
			{Name: "Pește & Fructe de Mare", Slug: "peste-fructe-de-mare"},
		},
	},
	{
		Name: "Fructe & Legume",
		Slug: "fructe-legume",
		Children: []CategorySeed{
			{Name: "Fructe Proaspete", Slug: "fructe-proaspete"},
			{Name: "Legume Proaspete", Slug: "legume-proaspete"},
			{Name: "Verdețuri & Salate", Slug: "verdeturi-salate"},
			{Name: "Fructe Uscate & Semințe", Slug: "fructe-uscate-seminte"},
		},
	},
	{
		Name: "Pâine & Patiserie",
		Slug: "paine-patiserie",
		Children: []CategorySeed{
			{Name: "Pâine", Slug: "paine"},
			{Name: "Specialități de Panificație", Slug: "specialitati-panificatie"},
			{Name: "Patiserie & Cofetărie", Slug: "patiserie-cofetarie"},
		},
	},
	{
		Name: "Băcănie",
		Slug: "bacanie",
		Children: []CategorySeed{
			{Name: "Paste Făinoase", Slug: "paste-fainoase"},
			{Name: "Orez & Cereale", Slug: "orez-cereale"},
			{Name: "Conserve", Slug: "conserve"},
			{Name: "Ulei & Oțet", Slug: "ulei-otet"},
			{Name: "Condimente & Sosuri", Slug: "condimente-sosuri"},
			{Name: "Zahăr & Făină", Slug: "zahar-faina"},
			{Name: "Mic Dejun", Slug: "mic-dejun"},
		},
	},
	{
		Name: "Dulciuri & Snacks",
		Slug: "dulciuri-snacks",
		Children: []CategorySeed{
			{Name: "Ciocolată", Slug: "ciocolata"},
			{Name: "Biscuiți & Napolitane", Slug: "biscuiti-napolitane"},
			{Name: "Bomboane & Jeleuri", Slug: "bomboane-jeleuri"},
			{Name: "Chipsuri & Snacks Sărate", Slug: "chipsuri-snacks-sarate"},
		},
	},
	{
		Name: "Băuturi",
		Slug: "bauturi",
		Children: []CategorySeed{
			{Name: "Apă", Slug: "apa"},
			{Name: "Sucuri & Băuturi Răcoritoare", Slug: "sucuri-racoritoare"},
			{Name: "Cafea", Slug: "cafea"},
			{Name: "Ceai", Slug: "ceai"},
			{Name: "Bere", Slug: "bere"},
			{Name: "Vin", Slug: "vin"},
			{Name: "Băuturi Spirtoase", Slug: "bauturi-spirtoase"},
		},
	},
	{
		Name: "Congelate",
		Slug: "congelate",
		Children: []CategorySeed{
			{Name: "Legume Congelate", Slug: "legume-congelate"},
			{Name: "Pizza & Aluaturi Congelate", Slug: "pizza-aluaturi-congelate"},
			{Name: "Înghețată", Slug: "inghetata"},
		},
	},
	{
		Name: "Îngrijire Personală",
		Slug: "ingrijire-personala",
		Children: []CategorySeed{
			{Name: "Îngrijire Păr", Slug: "ingrijire-par"},
			{Name: "Îngrijire Corp", Slug: "ingrijire-corp"},
			{Name: "Igienă Orală", Slug: "igiena-orala"},
		},
	},
	{
		Name: "Curățenie & Menaj",
		Slug: "curatenie-menaj",
		Children: []CategorySeed{
			{Name: "Detergenți Rufe", Slug: "detergenti-rufe"},
			{Name: "Curățenie Bucătărie", Slug: "curatenie-bucatarie"},
			{Name: "Curățenie Baie", Slug: "curatenie-baie"},
			{Name: "Hârtie Igienică & Șervețele", Slug: "hartie-servetele"},
		},
	},
	{
		Name: "Bebeluși",
		Slug: "bebelusi",
		Children: []CategorySeed{
			{Name: "Scutece", Slug: "scutece"},
			{Name: "Hrană Bebeluși", Slug: "hrana-bebelusi"},
		},
	},
	{
		Name: "Animale de Companie",
		Slug: "animale-companie",
		Children: []CategorySeed{
			{Name: "Hrană Câini", Slug: "hrana-caini"},
			{Name: "Hrană Pisici", Slug: "hrana-pisici"},
		},
	},
	{
		// Parking lot for anything no tier can place. The mapping engine
		// depends on this root existing.
		Name: "Other",
		Slug: "other",
	},
}

// DefaultTree builds the default taxonomy tree from the seeds.
func DefaultTree() Tree {
	tree := make(Tree, len(DefaultSeeds))
	for _, seed := range DefaultSeeds {
		tree[seed.Name] = seedToNode(seed)
	}
	return tree
}

func seedToNode(seed CategorySeed) *Node {
	node := &Node{Slug: seed.Slug}
	if len(seed.Children) > 0 {
		node.Children = make(map[string]*Node, len(seed.Children))
		for _, child := range seed.Children {
			node.Children[child.Name] = seedToNode(child)
		}
	}
	return node
}
