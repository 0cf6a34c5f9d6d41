package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength = 255
	maxSKULength  = 100
	maxBasePrice  = 999999.99
	maxWeight     = 9999.99

	unnamedProduct = "(sem nome)"
)

var (
	nonNumeric     = regexp.MustCompile(`[^0-9.,-]`)
	leadingDecimal = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)
)

// ProductRecord is one validated CSV row.
type ProductRecord struct {
	Name          string
	Description   string
	SKU           string
	BasePrice     float64
	Weight        *float64
	Category      string
	Material      string
	Size          string
	Color         string
	Width         string
	Images        string
	StockQuantity *int
}

// HasVariant reports whether the row carries any variant attribute of its own.
func (r *ProductRecord) HasVariant() bool {
	return r.Size != "" || r.Color != "" || r.Width != ""
}

// ParseRow maps one raw CSV row onto a ProductRecord and validates it.
// Cells are matched to headers by position. Validation stops at the first
// failing rule and returns a *RowError.
func ParseRow(headers []string, row []string, mapping Mapping) (*ProductRecord, error) {
	if headers == nil {
		return nil, &RowError{Message: "Cabeçalhos inválidos"}
	}
	if row == nil {
		return nil, &RowError{Message: "Dados da linha inválidos"}
	}

	values := mappedValues(headers, row, mapping)
	rec := &ProductRecord{
		Name:        values[FieldName],
		Description: values[FieldDescription],
		SKU:         values[FieldSKU],
		Category:    values[FieldCategory],
		Material:    values[FieldMaterial],
		Size:        values[FieldSize],
		Color:       values[FieldColor],
		Width:       values[FieldWidth],
		Images:      values[FieldImages],
	}

	if rec.Name == "" {
		return nil, &RowError{Message: "Nome do produto é obrigatório"}
	}
	if utf8.RuneCountInString(rec.Name) > maxNameLength {
		return nil, &RowError{Message: fmt.Sprintf("Nome do produto deve ter no máximo %d caracteres", maxNameLength)}
	}

	rawPrice := values[FieldBasePrice]
	if rawPrice == "" {
		return nil, &RowError{Message: "Preço base é obrigatório"}
	}
	price, ok := parseDecimal(rawPrice)
	if !ok || price < 0 {
		return nil, &RowError{Message: fmt.Sprintf("Preço inválido: %s", rawPrice)}
	}
	if price > maxBasePrice {
		return nil, &RowError{Message: fmt.Sprintf("Preço deve ser no máximo %.2f", maxBasePrice)}
	}
	rec.BasePrice = price

	if rawWeight := values[FieldWeight]; rawWeight != "" {
		// An unreadable or negative weight is dropped rather than rejected.
		if weight, ok := parseDecimal(rawWeight); ok && weight >= 0 {
			if weight > maxWeight {
				return nil, &RowError{Message: fmt.Sprintf("Peso deve ser no máximo %.2f", maxWeight)}
			}
			rec.Weight = &weight
		}
	}

	if utf8.RuneCountInString(rec.SKU) > maxSKULength {
		return nil, &RowError{Message: fmt.Sprintf("SKU deve ter no máximo %d caracteres", maxSKULength)}
	}

	if rawStock := values[FieldStockQuantity]; rawStock != "" {
		if stock, err := strconv.Atoi(rawStock); err == nil {
			if stock < 0 {
				return nil, &RowError{Message: "Estoque não pode ser negativo"}
			}
			rec.StockQuantity = &stock
		}
	}

	return rec, nil
}

// ProductName extracts the row's product name for log attribution without validating anything.
func ProductName(headers []string, row []string, mapping Mapping) string {
	if name := mappedValues(headers, row, mapping)[FieldName]; name != "" {
		return name
	}
	return unnamedProduct
}

// mappedValues walks headers in order, so when two headers target the same
// field the later one wins, including when its cell is empty.
func mappedValues(headers []string, row []string, mapping Mapping) map[Field]string {
	values := make(map[Field]string, len(mapping))
	for i, header := range headers {
		field, ok := mapping[header]
		if !ok {
			continue
		}
		value := ""
		if i < len(row) {
			value = strings.TrimSpace(row[i])
		}
		if value == "" {
			delete(values, field)
			continue
		}
		values[field] = value
	}
	return values
}

// parseDecimal strips currency symbols and spacing, treats a comma as the
// decimal separator and reads the longest leading number.
func parseDecimal(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(nonNumeric.ReplaceAllString(raw, ""), ",", ".")
	match := leadingDecimal.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(match, "."), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
