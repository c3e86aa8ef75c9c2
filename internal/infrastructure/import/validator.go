package csvimport

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldType represents the expected type of a field
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
	TypeBool    FieldType = "bool"
)

// DateLayouts are tried in order when parsing date columns
var DateLayouts = []string{time.DateOnly, "02/01/2006", time.RFC3339, "2006-01-02 15:04:05"}

// FieldRule defines validation rules for a field
type FieldRule struct {
	Column      string
	Type        FieldType
	Required    bool
	MinValue    *decimal.Decimal
	Pattern     *regexp.Regexp
	PatternDesc string
	OneOf       []string
	Unique      bool
}

// FieldRuleBuilder helps build field rules fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field creates a new field rule builder
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column, Type: TypeString}}
}

// Required marks the field as required
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Int sets the field type to integer
func (b *FieldRuleBuilder) Int() *FieldRuleBuilder {
	b.rule.Type = TypeInt
	return b
}

// Decimal sets the field type to decimal
func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

// Date sets the field type to date
func (b *FieldRuleBuilder) Date() *FieldRuleBuilder {
	b.rule.Type = TypeDate
	return b
}

// Bool sets the field type to boolean
func (b *FieldRuleBuilder) Bool() *FieldRuleBuilder {
	b.rule.Type = TypeBool
	return b
}

// Min sets the minimum numeric value
func (b *FieldRuleBuilder) Min(v int64) *FieldRuleBuilder {
	d := decimal.NewFromInt(v)
	b.rule.MinValue = &d
	return b
}

// Pattern sets a regex pattern for validation
func (b *FieldRuleBuilder) Pattern(pattern, description string) *FieldRuleBuilder {
	b.rule.Pattern = regexp.MustCompile(pattern)
	b.rule.PatternDesc = description
	return b
}

// OneOf restricts the value to a fixed set, compared case-insensitively
func (b *FieldRuleBuilder) OneOf(values ...string) *FieldRuleBuilder {
	b.rule.OneOf = values
	return b
}

// Unique rejects a value already seen earlier in the file
func (b *FieldRuleBuilder) Unique() *FieldRuleBuilder {
	b.rule.Unique = true
	return b
}

// Build returns the built field rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// FieldValidator validates rows according to rules
type FieldValidator struct {
	rules  []FieldRule
	seen   map[string]map[string]int // column -> value -> first row
	errors *ErrorCollection
}

// NewFieldValidator creates a new field validator; errors are added to errs
func NewFieldValidator(rules []FieldRule, errs *ErrorCollection) *FieldValidator {
	return &FieldValidator{
		rules:  rules,
		seen:   make(map[string]map[string]int),
		errors: errs,
	}
}

// RequiredColumns lists the columns of required rules
func (v *FieldValidator) RequiredColumns() []string {
	var cols []string
	for _, r := range v.rules {
		if r.Required {
			cols = append(cols, r.Column)
		}
	}
	return cols
}

// ValidateRow checks every rule against row and reports whether it passed
func (v *FieldValidator) ValidateRow(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		value := row.Get(rule.Column)
		if value == "" {
			if rule.Required {
				v.errors.Addf(row.LineNumber, rule.Column, CodeRequiredField, "", "field '%s' is required", rule.Column)
				ok = false
			}
			continue
		}

		if err := checkType(value, rule.Type); err != nil {
			v.errors.Addf(row.LineNumber, rule.Column, CodeInvalidType, value, "expected %s", rule.Type)
			ok = false
			continue
		}
		if rule.MinValue != nil {
			if d, _ := ParseDecimal(value); d.LessThan(*rule.MinValue) {
				v.errors.Addf(row.LineNumber, rule.Column, CodeOutOfRange, value, "value must be at least %s", rule.MinValue)
				ok = false
			}
		}
		if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
			v.errors.Addf(row.LineNumber, rule.Column, CodePatternMismatch, value, "value does not match %s", rule.PatternDesc)
			ok = false
		}
		if len(rule.OneOf) > 0 && !slices.Contains(rule.OneOf, strings.ToUpper(value)) {
			v.errors.Addf(row.LineNumber, rule.Column, CodeInvalidValue, value, "must be one of [%s]", strings.Join(rule.OneOf, ", "))
			ok = false
		}
		if rule.Unique {
			if v.seen[rule.Column] == nil {
				v.seen[rule.Column] = make(map[string]int)
			}
			if first, dup := v.seen[rule.Column][value]; dup {
				v.errors.Addf(row.LineNumber, rule.Column, CodeDuplicateInFile, value, "duplicate value '%s' (first seen in row %d)", value, first)
				ok = false
			} else {
				v.seen[rule.Column][value] = row.LineNumber
			}
		}
	}
	return ok
}

func checkType(value string, t FieldType) error {
	var err error
	switch t {
	case TypeInt:
		_, err = strconv.Atoi(value)
	case TypeDecimal:
		_, err = ParseDecimal(value)
	case TypeDate:
		_, err = ParseDate(value)
	case TypeBool:
		_, err = ParseBool(value)
	}
	return err
}

// ParseDecimal accepts "1234.50" and the Brazilian "1.234,50"
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

// ParseDate parses s with the first matching layout of DateLayouts, in UTC
func ParseDate(s string) (time.Time, error) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ParseBool accepts true/false, 1/0, yes/no and the Portuguese sim/nao
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "sim", "s":
		return true, nil
	case "false", "0", "no", "n", "nao", "não":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", s)
}
