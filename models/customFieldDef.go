package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

// CustomFieldDef declares one tenant-defined field on an entity type. The
// set of definitions drives validation and coercion of the entity's
// attribute bag; values for keys with no definition are silently dropped.
type CustomFieldDef struct {
	ID           int        `gorm:"primary_key" json:"id"`
	CompanyId    string     `gorm:"size:36;not null;uniqueIndex:idx_custom_field_unique" json:"company_id"`
	EntityType   EntityType `gorm:"size:30;not null;uniqueIndex:idx_custom_field_unique" json:"entity_type"`
	FieldKey     string     `gorm:"size:60;not null;uniqueIndex:idx_custom_field_unique" json:"field_key"`
	Label        string     `gorm:"size:100;not null" json:"label"`
	FieldType    FieldType  `gorm:"size:20;not null" json:"field_type"`
	Required        *bool       `gorm:"default:false" json:"required"`
	Options         StringList  `gorm:"type:json" json:"options"`
	ValidationRules *FieldRules `gorm:"type:json" json:"validation_rules"`
	DefaultValue    *string     `gorm:"size:255" json:"default_value"`
	SortOrder       int         `gorm:"default:0" json:"sort_order"`
	IsActive        *bool       `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// FieldRules is a definition's optional validation rule bag. Each rule only
// applies to the field types it makes sense for: length bounds and pattern
// to text kinds, min/max to numeric kinds, before/after to date kinds.
type FieldRules struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
	Before    *string  `json:"before,omitempty"`
	After     *string  `json:"after,omitempty"`
	Pattern   *string  `json:"pattern,omitempty"`
}

func (r FieldRules) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *FieldRules) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	}
	return fmt.Errorf("failed to unmarshal JSON value: %v", value)
}

// validate rejects rule bags that could never be evaluated: an
// uncompilable pattern, inverted bounds, or a date bound the field's own
// layout cannot parse.
func (r *FieldRules) validate(fieldType FieldType) error {
	if r == nil {
		return nil
	}
	if r.Pattern != nil {
		if _, err := regexp.Compile(*r.Pattern); err != nil {
			return fmt.Errorf("invalid pattern rule: %v", err)
		}
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("min rule %v exceeds max rule %v", *r.Min, *r.Max)
	}
	if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
		return fmt.Errorf("min_length rule %d exceeds max_length rule %d", *r.MinLength, *r.MaxLength)
	}
	layout := ""
	switch fieldType {
	case FieldTypeDate:
		layout = "2006-01-02"
	case FieldTypeDatetime:
		layout = time.RFC3339
	}
	if layout != "" {
		if r.Before != nil {
			if _, err := time.Parse(layout, *r.Before); err != nil {
				return fmt.Errorf("invalid before rule: %s", *r.Before)
			}
		}
		if r.After != nil {
			if _, err := time.Parse(layout, *r.After); err != nil {
				return fmt.Errorf("invalid after rule: %s", *r.After)
			}
		}
	}
	return nil
}

type NewCustomFieldDef struct {
	EntityType      EntityType  `json:"entity_type" validate:"required"`
	FieldKey        string      `json:"field_key" validate:"required,max=60"`
	Label           string      `json:"label" validate:"required,max=100"`
	FieldType       FieldType   `json:"field_type" validate:"required"`
	Required        *bool       `json:"required"`
	Options         StringList  `json:"options"`
	ValidationRules *FieldRules `json:"validation_rules"`
	DefaultValue    *string     `json:"default_value"`
	SortOrder       int         `json:"sort_order"`
}

type UpdateCustomFieldDefInput struct {
	Label           *string     `json:"label" validate:"omitempty,max=100"`
	Required        *bool       `json:"required"`
	Options         StringList  `json:"options"`
	ValidationRules *FieldRules `json:"validation_rules"`
	DefaultValue    *string     `json:"default_value"`
	SortOrder       *int        `json:"sort_order"`
	IsActive        *bool       `json:"is_active"`
}

var fieldKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func (input *NewCustomFieldDef) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.EntityType.IsValid() {
		return fmt.Errorf("invalid entity type: %s", input.EntityType)
	}
	if !input.FieldType.IsValid() {
		return fmt.Errorf("invalid field type: %s", input.FieldType)
	}
	if !fieldKeyPattern.MatchString(input.FieldKey) {
		return fmt.Errorf("field key must be snake_case: %s", input.FieldKey)
	}
	if input.FieldType == FieldTypeSelect || input.FieldType == FieldTypeMultiselect {
		if len(input.Options) == 0 {
			return fmt.Errorf("%s field %s requires options", input.FieldType, input.FieldKey)
		}
	}
	return input.ValidationRules.validate(input.FieldType)
}

// GetCustomFieldDefinitions returns the active definitions for one entity
// type, ordered for display. Definitions change rarely and are read on every
// entity write, so the list is served read-through from redis when available.
func GetCustomFieldDefinitions(ctx context.Context, companyId string, entity EntityType) ([]*CustomFieldDef, error) {
	if !entity.IsValid() {
		return nil, fmt.Errorf("invalid entity type: %s", entity)
	}

	scope := companyId + "-" + string(entity)
	cached, err := utils.RetrieveRedisList[CustomFieldDef](scope)
	if err == nil && cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var defs []*CustomFieldDef
	err = db.WithContext(utils.TenantScope(ctx, companyId)).
		Where("company_id = ? AND entity_type = ? AND is_active = ?", companyId, entity, true).
		Order("sort_order ASC, field_key ASC").
		Find(&defs).Error
	if err != nil {
		return nil, err
	}

	_ = utils.StoreRedisList(defs, scope)
	return defs, nil
}

func CreateCustomFieldDefinition(ctx context.Context, companyId string, input *NewCustomFieldDef) (*CustomFieldDef, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[CustomFieldDef](ctx, companyId,
		"entity_type = ? AND field_key = ?", input.EntityType, input.FieldKey)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s on %s", utils.ErrorDuplicateFieldKey, input.FieldKey, input.EntityType)
	}

	def := CustomFieldDef{
		CompanyId:       companyId,
		EntityType:      input.EntityType,
		FieldKey:        input.FieldKey,
		Label:           input.Label,
		FieldType:       input.FieldType,
		Required:        input.Required,
		Options:         input.Options,
		ValidationRules: input.ValidationRules,
		DefaultValue:    input.DefaultValue,
		SortOrder:       input.SortOrder,
		IsActive:        utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).Create(&def).Error; err != nil {
		return nil, err
	}

	invalidateDefinitionCache(companyId, input.EntityType)
	return &def, nil
}

// UpdateCustomFieldDefinition changes the mutable parts of a definition.
// The field key and field type are frozen at creation; stored attribute
// values would silently stop coercing if either could drift.
func UpdateCustomFieldDefinition(ctx context.Context, companyId string, id int, input *UpdateCustomFieldDefInput) (*CustomFieldDef, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	def, err := utils.FetchModel[CustomFieldDef](ctx, companyId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Label != nil {
		updates["label"] = *input.Label
	}
	if input.Required != nil {
		updates["required"] = *input.Required
	}
	if input.Options != nil {
		if def.FieldType == FieldTypeSelect || def.FieldType == FieldTypeMultiselect {
			if len(input.Options) == 0 {
				return nil, fmt.Errorf("%s field %s requires options", def.FieldType, def.FieldKey)
			}
		}
		updates["options"] = input.Options
	}
	if input.ValidationRules != nil {
		if err := input.ValidationRules.validate(def.FieldType); err != nil {
			return nil, err
		}
		updates["validation_rules"] = input.ValidationRules
	}
	if input.DefaultValue != nil {
		updates["default_value"] = input.DefaultValue
	}
	if input.SortOrder != nil {
		updates["sort_order"] = *input.SortOrder
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return def, nil
	}

	db := config.GetDB()
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).
		Model(def).Updates(updates).Error; err != nil {
		return nil, err
	}

	invalidateDefinitionCache(companyId, def.EntityType)
	return utils.FetchModel[CustomFieldDef](ctx, companyId, id)
}

// DeleteCustomFieldDefinition removes a definition. Existing attribute
// values under its key are left in place; they become unknown keys and get
// dropped on the entity's next validated write.
func DeleteCustomFieldDefinition(ctx context.Context, companyId string, id int) error {
	def, err := utils.FetchModel[CustomFieldDef](ctx, companyId, id)
	if err != nil {
		return err
	}

	db := config.GetDB()
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).Delete(def).Error; err != nil {
		return err
	}

	invalidateDefinitionCache(companyId, def.EntityType)
	return nil
}

func invalidateDefinitionCache(companyId string, entity EntityType) {
	_ = utils.RemoveRedisList[CustomFieldDef](companyId + "-" + string(entity))
}

// ValidateCustomFields checks an attribute bag against the entity's field
// definitions and returns the cleaned bag. Unknown keys are dropped, missing
// fields get their default when one is declared, required fields must end up
// present, and every value is coerced to its field type's canonical form.
// All failures are collected into one ValidationErrors instead of stopping
// at the first.
func ValidateCustomFields(ctx context.Context, companyId string, entity EntityType, attributes JSONMap) (JSONMap, error) {
	defs, err := GetCustomFieldDefinitions(ctx, companyId, entity)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return JSONMap{}, nil
	}

	cleaned := JSONMap{}
	var failures utils.ValidationErrors

	for _, def := range defs {
		raw, present := attributes[def.FieldKey]
		if !present || raw == nil {
			if def.DefaultValue != nil {
				raw = *def.DefaultValue
				present = true
			}
		}
		if !present || raw == nil {
			if utils.DereferencePtr(def.Required, false) {
				failures = append(failures, &utils.FieldValidationError{
					Field:   def.FieldKey,
					Message: fmt.Sprintf("%s is required", def.Label),
				})
			}
			continue
		}

		value, ferr := coerceFieldValue(def, raw)
		if ferr != nil {
			failures = append(failures, ferr)
			continue
		}
		cleaned[def.FieldKey] = value
	}

	if len(failures) > 0 {
		return nil, failures
	}
	return cleaned, nil
}

// coerceFieldValue converts one raw attribute value to the canonical stored
// form for its field type. The switch is exhaustive over FieldType; an
// unlisted type is a programming error surfaced as a field failure.
func coerceFieldValue(def *CustomFieldDef, raw interface{}) (interface{}, *utils.FieldValidationError) {
	fail := func(format string, args ...interface{}) (interface{}, *utils.FieldValidationError) {
		return nil, &utils.FieldValidationError{
			Field:   def.FieldKey,
			Message: fmt.Sprintf(format, args...),
		}
	}

	rules := def.ValidationRules

	switch def.FieldType {
	case FieldTypeText, FieldTypeTextarea:
		s, ok := stringValue(raw)
		if !ok {
			return fail("%s must be text", def.Label)
		}
		if rules != nil {
			length := utf8.RuneCountInString(s)
			if rules.MinLength != nil && length < *rules.MinLength {
				return fail("%s must be at least %d characters", def.Label, *rules.MinLength)
			}
			if rules.MaxLength != nil && length > *rules.MaxLength {
				return fail("%s must be at most %d characters", def.Label, *rules.MaxLength)
			}
			if rules.Pattern != nil {
				re, err := regexp.Compile(*rules.Pattern)
				if err != nil || !re.MatchString(s) {
					return fail("%s has an invalid format", def.Label)
				}
			}
		}
		return s, nil

	case FieldTypeNumber, FieldTypeDecimal:
		d, ok := decimalValue(raw)
		if !ok {
			return fail("%s must be a number", def.Label)
		}
		if ferr := checkNumericRules(def, d); ferr != nil {
			return nil, ferr
		}
		f, _ := d.Float64()
		return f, nil

	case FieldTypeInteger:
		n, ok := integerValue(raw)
		if !ok {
			return fail("%s must be a whole number", def.Label)
		}
		if ferr := checkNumericRules(def, decimal.NewFromInt(n)); ferr != nil {
			return nil, ferr
		}
		return n, nil

	case FieldTypeBoolean:
		b, ok := booleanValue(raw)
		if !ok {
			return fail("%s must be true or false", def.Label)
		}
		return b, nil

	case FieldTypeDate:
		s, ok := stringValue(raw)
		if !ok {
			return fail("%s must be a date (YYYY-MM-DD)", def.Label)
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return fail("%s must be a date (YYYY-MM-DD)", def.Label)
		}
		if ferr := checkTimeRules(def, t, "2006-01-02"); ferr != nil {
			return nil, ferr
		}
		return t.Format("2006-01-02"), nil

	case FieldTypeDatetime:
		s, ok := stringValue(raw)
		if !ok {
			return fail("%s must be an RFC 3339 datetime", def.Label)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fail("%s must be an RFC 3339 datetime", def.Label)
		}
		if ferr := checkTimeRules(def, t, time.RFC3339); ferr != nil {
			return nil, ferr
		}
		return t.Format(time.RFC3339), nil

	case FieldTypeSelect:
		s, ok := stringValue(raw)
		if !ok || !containsOption(def.Options, s) {
			return fail("%s must be one of: %s", def.Label, strings.Join(def.Options, ", "))
		}
		return s, nil

	case FieldTypeMultiselect:
		values, ok := stringSliceValue(raw)
		if !ok {
			return fail("%s must be a list of options", def.Label)
		}
		for _, v := range values {
			if !containsOption(def.Options, v) {
				return fail("%s contains an unknown option: %s", def.Label, v)
			}
		}
		return utils.UniqueSlice(values), nil

	case FieldTypeEmail:
		s, ok := stringValue(raw)
		if !ok || !utils.IsValidEmail(s) {
			return fail("%s must be a valid email address", def.Label)
		}
		return s, nil

	case FieldTypeURL:
		s, ok := stringValue(raw)
		if !ok || !utils.IsValidURL(s) {
			return fail("%s must be a valid http(s) URL", def.Label)
		}
		return s, nil

	case FieldTypePhone:
		s, ok := stringValue(raw)
		if !ok {
			return fail("%s must be a phone number", def.Label)
		}
		if err := utils.ValidatePhoneNumber(s, utils.CountryCode); err != nil {
			return fail("%s must be a valid phone number", def.Label)
		}
		return s, nil
	}

	return fail("%s has an unsupported field type: %s", def.Label, def.FieldType)
}

func checkNumericRules(def *CustomFieldDef, d decimal.Decimal) *utils.FieldValidationError {
	rules := def.ValidationRules
	if rules == nil {
		return nil
	}
	if rules.Min != nil && d.LessThan(decimal.NewFromFloat(*rules.Min)) {
		return &utils.FieldValidationError{
			Field:   def.FieldKey,
			Message: fmt.Sprintf("%s must be at least %v", def.Label, *rules.Min),
		}
	}
	if rules.Max != nil && d.GreaterThan(decimal.NewFromFloat(*rules.Max)) {
		return &utils.FieldValidationError{
			Field:   def.FieldKey,
			Message: fmt.Sprintf("%s must be at most %v", def.Label, *rules.Max),
		}
	}
	return nil
}

func checkTimeRules(def *CustomFieldDef, t time.Time, layout string) *utils.FieldValidationError {
	rules := def.ValidationRules
	if rules == nil {
		return nil
	}
	if rules.Before != nil {
		bound, err := time.Parse(layout, *rules.Before)
		if err == nil && !t.Before(bound) {
			return &utils.FieldValidationError{
				Field:   def.FieldKey,
				Message: fmt.Sprintf("%s must be before %s", def.Label, *rules.Before),
			}
		}
	}
	if rules.After != nil {
		bound, err := time.Parse(layout, *rules.After)
		if err == nil && !t.After(bound) {
			return &utils.FieldValidationError{
				Field:   def.FieldKey,
				Message: fmt.Sprintf("%s must be after %s", def.Label, *rules.After),
			}
		}
	}
	return nil
}

func stringValue(raw interface{}) (string, bool) {
	s, ok := raw.(string)
	return s, ok
}

func decimalValue(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case decimal.Decimal:
		return v, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

func integerValue(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func booleanValue(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case float64:
		if v == 1 {
			return true, true
		}
		if v == 0 {
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	}
	return false, false
}

func stringSliceValue(raw interface{}) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		// A single value is accepted as a one-element selection.
		return []string{v}, true
	}
	return nil, false
}

func containsOption(options StringList, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
