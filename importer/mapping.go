package importer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"catalog-backend/dtos"
)

// Field is a product attribute a CSV column can be mapped to.
type Field string

const (
	FieldName          Field = "name"
	FieldDescription   Field = "description"
	FieldSKU           Field = "sku"
	FieldBasePrice     Field = "base_price"
	FieldWeight        Field = "weight"
	FieldCategory      Field = "category"
	FieldMaterial      Field = "material"
	FieldSize          Field = "size"
	FieldColor         Field = "color"
	FieldWidth         Field = "width"
	FieldImages        Field = "images"
	FieldStockQuantity Field = "stock_quantity"
)

// Fields lists every mappable field in template order.
var Fields = []Field{
	FieldName,
	FieldDescription,
	FieldSKU,
	FieldBasePrice,
	FieldWeight,
	FieldCategory,
	FieldMaterial,
	FieldSize,
	FieldColor,
	FieldWidth,
	FieldImages,
	FieldStockQuantity,
}

const ignoreColumn = "ignore"

func (f Field) valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Mapping goes from CSV header to target field. Unmapped headers are absent.
type Mapping map[string]Field

// ParseMapping validates the user supplied header mapping. Null, empty and
// "ignore" targets leave the column unmapped; any other unknown target is rejected.
func ParseMapping(raw map[string]*string) (Mapping, error) {
	mapping := make(Mapping, len(raw))
	var unknown []string

	for header, target := range raw {
		if target == nil {
			continue
		}
		name := strings.TrimSpace(*target)
		if name == "" || name == ignoreColumn {
			continue
		}
		field := Field(name)
		if !field.valid() {
			unknown = append(unknown, name)
			continue
		}
		mapping[header] = field
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, strings.Join(unknown, ", "))
	}
	for _, required := range []Field{FieldName, FieldBasePrice} {
		if !mapping.Maps(required) {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequiredField, required)
		}
	}
	return mapping, nil
}

// Maps reports whether any header targets field.
func (m Mapping) Maps(field Field) bool {
	for _, f := range m {
		if f == field {
			return true
		}
	}
	return false
}

type DuplicatePolicy string

const (
	DuplicateSkip   DuplicatePolicy = "skip"
	DuplicateUpdate DuplicatePolicy = "update"
	DuplicateError  DuplicatePolicy = "error"
)

// Config is the validated configuration of one import run. It is stored on
// the job as mapping_config and travels with queued tasks.
type Config struct {
	Mapping          Mapping         `json:"mapping"`
	DuplicatePolicy  DuplicatePolicy `json:"duplicate_handling"`
	CreateCategories bool            `json:"category_creation"`
	CreateMaterials  bool            `json:"material_creation"`
}

func NewConfig(in dtos.ImportConfig) (Config, error) {
	mapping, err := ParseMapping(in.Mapping)
	if err != nil {
		return Config{}, err
	}

	policy := DuplicatePolicy(in.DuplicateHandling)
	switch policy {
	case DuplicateSkip, DuplicateUpdate, DuplicateError:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, in.DuplicateHandling)
	}

	return Config{
		Mapping:          mapping,
		DuplicatePolicy:  policy,
		CreateCategories: in.CategoryCreation,
		CreateMaterials:  in.MaterialCreation,
	}, nil
}

// Encode renders the config as stored in the job's mapping_config column.
func (c Config) Encode() ([]byte, error) {
	return json.Marshal(c)
}
