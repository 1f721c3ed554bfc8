package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical column keys. Values are the pt-BR names shown to operators when
// a column is reported missing.
const (
	ColumnCPF     = "cpf"
	ColumnRG      = "rg"
	ColumnName    = "nome"
	ColumnAccount = "conta"
	ColumnProject = "projeto"
	ColumnAmount  = "valor"
	ColumnDate    = "data"
	ColumnStatus  = "status"
	ColumnHolder  = "titular"
)

// columnAliases maps canonical keys to the header spellings seen in the
// wild. Matching is case, accent and spacing insensitive.
var columnAliases = map[string][]string{
	ColumnCPF: {
		"cpf", "cpf do beneficiario", "documento cpf", "num cpf", "nr cpf",
	},
	ColumnRG: {
		"rg", "rg do beneficiario", "documento rg",
	},
	ColumnName: {
		"nome", "beneficiario", "nome do beneficiario", "nome beneficiario",
		"nome completo",
	},
	ColumnAccount: {
		"conta", "numero da conta", "numero conta", "numero_conta", "n conta",
		"n da conta", "num conta", "conta corrente", "nro conta",
	},
	ColumnProject: {
		"projeto", "frente", "frente de trabalho", "programa",
	},
	ColumnAmount: {
		"valor", "valor pago", "valor do pagamento", "vl pagamento",
		"valor (r$)", "valor r$",
	},
	ColumnDate: {
		"data", "data do pagamento", "data pagamento", "dt pagamento",
	},
	ColumnStatus: {
		"status", "situacao", "status do pagamento", "situacao do pagamento",
	},
	ColumnHolder: {
		"titular", "nome do titular", "titular da conta", "nome",
	},
}

// Columns resolves canonical keys to header positions for one spreadsheet.
type Columns struct {
	indexes map[string]int
}

// ResolveColumns matches the header row against the alias table.
func ResolveColumns(header []string) Columns {
	folded := make([]string, len(header))
	for i, cell := range header {
		folded[i] = foldHeader(cell)
	}

	indexes := map[string]int{}
	for key, aliases := range columnAliases {
		for _, alias := range aliases {
			if idx, ok := indexOf(folded, alias); ok {
				indexes[key] = idx
				break
			}
		}
	}
	return Columns{indexes: indexes}
}

// Index returns the header position for a canonical key.
func (c Columns) Index(key string) (int, bool) {
	idx, ok := c.indexes[key]
	return idx, ok
}

// Value returns the trimmed cell value for a canonical key, or "" when the
// column is absent or the row is short.
func (c Columns) Value(row []string, key string) string {
	idx, ok := c.indexes[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Missing returns the keys among required that resolved to no column.
func (c Columns) Missing(required ...string) []string {
	var missing []string
	for _, key := range required {
		if _, ok := c.indexes[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

var ordinalReplacer = strings.NewReplacer("º", "", "°", "", "ª", "")

// headerFolder builds a fresh accent-stripping transformer. Chained
// transformers carry state, so they are not shared across goroutines.
func headerFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// foldHeader lowers, strips accents and ordinal markers, and collapses
// whitespace so "Nº da Conta" and "numero da conta" compare equal.
func foldHeader(value string) string {
	folded, _, err := transform.String(headerFolder(), value)
	if err != nil {
		folded = value
	}
	folded = strings.ToLower(folded)
	folded = ordinalReplacer.Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

func indexOf(folded []string, alias string) (int, bool) {
	for i, cell := range folded {
		if cell == alias {
			return i, true
		}
	}
	return 0, false
}
