package models

// Bilingual stop-word list shared by the lexical scorer and the re-ranking
// heuristics. The corpus mixes Spanish source documents with English
// standards, so both languages are filtered.
var StopWords = map[string]struct{}{
	// Spanish
	"las": {}, "los": {}, "una": {}, "uno": {}, "unas": {}, "unos": {},
	"del": {}, "con": {}, "por": {}, "para": {}, "que": {}, "este": {},
	"esta": {}, "esto": {}, "estos": {}, "estas": {}, "como": {}, "donde": {},
	"cuando": {}, "entre": {}, "sobre": {}, "desde": {}, "hasta": {},
	"ser": {}, "son": {}, "sus": {}, "mas": {}, "más": {}, "pero": {},
	// English
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {},
	"with": {}, "from": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"have": {}, "has": {}, "had": {}, "not": {}, "can": {}, "will": {},
	"its": {}, "their": {}, "which": {}, "when": {}, "where": {}, "into": {},
}

// DomainTerms drives the technical-density heuristics in re-ranking and
// quality validation. Water distribution engineering vocabulary, Spanish
// first.
var DomainTerms = map[string]struct{}{
	"tubería": {}, "tuberia": {}, "caudal": {}, "presión": {}, "presion": {},
	"pérdida": {}, "perdida": {}, "carga": {}, "fricción": {}, "friccion": {},
	"rugosidad": {}, "diámetro": {}, "diametro": {}, "velocidad": {},
	"bomba": {}, "bombeo": {}, "válvula": {}, "valvula": {}, "tanque": {},
	"nodo": {}, "red": {}, "hidráulica": {}, "hidraulica": {}, "coeficiente": {},
	"caudales": {}, "piezométrica": {}, "piezometrica": {}, "demanda": {},
	"pvc": {}, "acero": {}, "hierro": {}, "concreto": {},
	"hazen": {}, "williams": {}, "darcy": {}, "weisbach": {}, "manning": {},
	"reynolds": {}, "colebrook": {}, "headloss": {}, "friction": {},
	"pipe": {}, "flow": {}, "pressure": {}, "pump": {}, "valve": {},
	"roughness": {}, "diameter": {}, "hydraulic": {}, "velocity": {},
}

// UnitTokens are recognized measurement units; their presence raises the
// technical-accuracy score.
var UnitTokens = map[string]struct{}{
	"m": {}, "mm": {}, "cm": {}, "km": {}, "m/s": {}, "m3/s": {}, "m³/s": {},
	"l/s": {}, "lps": {}, "kpa": {}, "mpa": {}, "pa": {}, "bar": {},
	"mca": {}, "psi": {}, "hp": {}, "kw": {}, "gpm": {}, "pulg": {}, "in": {},
	"°c": {}, "s": {}, "h": {}, "hz": {},
}

// AuthoritativeSources raises source reliability when mentioned in a result's
// title or content. Regulatory bodies and standard references for the domain.
var AuthoritativeSources = []string{
	"conagua", "cna", "nom-", "awwa", "epa", "iso ", "astm", "epanet",
	"sotelo", "saldarriaga", "rocha", "azevedo", "manual de agua potable",
	"mapas",
}
