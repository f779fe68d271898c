package suggest

import (
	"slices"
	"strings"
)

// Argentine provinces plus the autonomous city, keyed by display name.
var provinceAliases = map[string][]string{
	"Buenos Aires":        {"buenos aires", "provincia de buenos aires", "pba", "bs as", "bsas", "bs as provincia", "la plata", "mar del plata", "bahia blanca", "quilmes", "lomas de zamora", "moron", "tandil", "lujan", "san isidro", "tigre", "avellaneda", "lanus", "banfield", "junin", "pergamino", "olavarria", "azul", "necochea", "chivilcoy"},
	"CABA":                {"caba", "ciudad autonoma de buenos aires", "ciudad de buenos aires", "capital federal", "capital", "cap fed", "buenos aires capital"},
	"Catamarca":           {"catamarca", "san fernando del valle de catamarca"},
	"Chaco":               {"chaco", "resistencia", "presidencia roque saenz pena"},
	"Chubut":              {"chubut", "rawson", "trelew", "comodoro rivadavia", "puerto madryn", "esquel"},
	"Córdoba":             {"cordoba", "rio cuarto", "villa maria", "villa carlos paz", "san francisco"},
	"Corrientes":          {"corrientes", "goya", "paso de los libres"},
	"Entre Ríos":          {"entre rios", "parana", "concordia", "gualeguaychu", "concepcion del uruguay"},
	"Formosa":             {"formosa"},
	"Jujuy":               {"jujuy", "san salvador de jujuy"},
	"La Pampa":            {"la pampa", "santa rosa", "general pico"},
	"La Rioja":            {"la rioja", "chilecito"},
	"Mendoza":             {"mendoza", "san rafael", "godoy cruz", "maipu"},
	"Misiones":            {"misiones", "posadas", "obera", "puerto iguazu"},
	"Neuquén":             {"neuquen", "san martin de los andes", "zapala", "cutral co"},
	"Río Negro":           {"rio negro", "viedma", "bariloche", "san carlos de bariloche", "general roca", "cipolletti"},
	"Salta":               {"salta", "oran", "tartagal"},
	"San Juan":            {"san juan"},
	"San Luis":            {"san luis", "villa mercedes"},
	"Santa Cruz":          {"santa cruz", "rio gallegos", "caleta olivia", "el calafate"},
	"Santa Fe":            {"santa fe", "rosario", "rafaela", "venado tuerto", "reconquista"},
	"Santiago del Estero": {"santiago del estero", "la banda", "termas de rio hondo"},
	"Tierra del Fuego":    {"tierra del fuego", "tierra del fuego antartida e islas del atlantico sur", "ushuaia", "rio grande"},
	"Tucumán":             {"tucuman", "san miguel de tucuman", "tafi viejo"},
}

type placeAlias struct {
	alias    string
	province string
}

var (
	aliasIndex  map[string]string
	aliasBySize []placeAlias
)

func init() {
	aliasIndex = make(map[string]string)
	for province, aliases := range provinceAliases {
		for _, alias := range aliases {
			aliasIndex[alias] = province
			aliasBySize = append(aliasBySize, placeAlias{alias: alias, province: province})
		}
	}
	slices.SortFunc(aliasBySize, func(a, b placeAlias) int {
		if d := len(b.alias) - len(a.alias); d != 0 {
			return d
		}
		return strings.Compare(a.alias, b.alias)
	})
}

// Provinces returns the 24 Argentine jurisdictions known to ProvinceOf.
func Provinces() []string {
	names := make([]string, 0, len(provinceAliases))
	for name := range provinceAliases {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ProvinceOf resolves a free-text place such as "Rosario, Santa Fe" to its
// Argentine province. Comma separated parts are tried from the most general
// (last) one; failing that the longest alias contained in the text wins.
// It returns "" when nothing matches.
func ProvinceOf(place string) string {
	parts := strings.Split(place, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		if province, ok := aliasIndex[Normalize(parts[i])]; ok {
			return province
		}
	}

	folded := " " + Normalize(place) + " "
	if strings.TrimSpace(folded) == "" {
		return ""
	}
	for _, pa := range aliasBySize {
		if strings.Contains(folded, " "+pa.alias+" ") {
			return pa.province
		}
	}
	return ""
}
