package importing

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	gradeSynonyms   = map[string]string{}
	subjectSynonyms = map[string]string{}
)

func init() {
	grades := map[string][]string{
		"PK": {"pk", "prekinder", "pre kinder", "prekinder garden", "pre k"},
		"K":  {"k", "kinder", "kindergarten", "kinder garden", "preescolar", "transicion"},
		"1":  {"1er", "1ero", "1ro", "primero", "primer", "first", "1st"},
		"2":  {"2do", "segundo", "second", "2nd"},
		"3":  {"3er", "3ero", "3ro", "tercero", "tercer", "third", "3rd"},
		"4":  {"4to", "cuarto", "fourth", "4th"},
		"5":  {"5to", "quinto", "fifth", "5th"},
		"6":  {"6to", "sexto", "sixth", "6th"},
		"7":  {"7mo", "septimo", "setimo", "seventh", "7th"},
		"8":  {"8vo", "octavo", "eighth", "8th"},
		"9":  {"9no", "noveno", "ninth", "9th"},
		"10": {"10mo", "decimo", "tenth", "10th"},
		"11": {"11vo", "11mo", "undecimo", "onceavo", "decimo primero", "decimoprimero", "eleventh", "11th"},
		"12": {"12vo", "12mo", "duodecimo", "doceavo", "decimo segundo", "decimosegundo", "twelfth", "12th"},
	}
	for canonical, words := range grades {
		gradeSynonyms[strings.ToLower(canonical)] = canonical
		if n, err := strconv.Atoi(canonical); err == nil {
			gradeSynonyms[strconv.Itoa(n)+"o"] = canonical
			if n < 10 {
				gradeSynonyms["0"+canonical] = canonical
			}
		}
		for _, w := range words {
			gradeSynonyms[w] = canonical
		}
	}

	subjects := map[string][]string{
		"matematicas":      {"matematica", "mate", "mat", "math", "maths", "mathematics"},
		"espanol":          {"lengua", "lenguaje", "lengua espanola", "castellano", "spanish", "lectoescritura"},
		"ingles":           {"idioma ingles", "english"},
		"ciencias":         {"ciencia", "ciencias naturales", "naturales", "science", "sciences"},
		"sociales":         {"ciencias sociales", "estudios sociales", "historia", "social studies"},
		"religion":         {"educacion religiosa", "moral", "religion y valores"},
		"arte":             {"artes", "artistica", "educacion artistica", "art"},
		"musica":           {"music"},
		"educacion_fisica": {"educacion fisica", "ed fisica", "ef", "deporte", "deportes", "physical education", "pe"},
		"tecnologia":       {"informatica", "computacion", "technology", "computer science"},
		"lectura":          {"plan lector", "reading"},
		"frances":          {"french"},
	}
	for canonical, words := range subjects {
		subjectSynonyms[foldKey(canonical)] = canonical
		for _, w := range words {
			subjectSynonyms[w] = canonical
		}
	}
}

var gradeNoise = map[string]bool{"grado": true, "grade": true, "curso": true, "de": true, "nivel": true}

// NormalizeGrade devuelve el grado canónico ("1".."12", "K", "PK") o "" si no lo reconoce.
func NormalizeGrade(raw string) string {
	var words []string
	for _, w := range strings.Fields(foldKey(raw)) {
		if !gradeNoise[w] {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return ""
	}
	if g, ok := gradeSynonyms[strings.Join(words, " ")]; ok {
		return g
	}
	if g, ok := gradeSynonyms[strings.Join(words, "")]; ok {
		return g
	}
	return ""
}

// NormalizeSubject devuelve el identificador canónico de la materia o "".
func NormalizeSubject(raw string) string {
	return subjectSynonyms[foldKey(raw)]
}

var errInvalidNumber = errors.New("número inválido")

// ParsePrice acepta "25.50", "25,50", "$1,234.50" o "1.234,50". Rechaza negativos.
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '$', ' ', '\u00a0':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	s = strings.ToUpper(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "USD"), "US")

	lastComma, lastDot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0 && strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil || s == "" {
		return decimal.Zero, errInvalidNumber
	}
	if d.IsNegative() {
		return decimal.Zero, errInvalidNumber
	}
	return d, nil
}

// ParseQuantity acepta enteros no negativos; vacío cuenta como 0.
func ParseQuantity(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errInvalidNumber
	}
	return n, nil
}
