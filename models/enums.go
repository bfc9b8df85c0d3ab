package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "Draft"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

func (t OrderStatus) IsValid() bool {
	switch t {
	case OrderStatusDraft, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentState string

const (
	PaymentStatePendingReceipt PaymentState = "PendingReceipt"
	PaymentStateReceived       PaymentState = "Received"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

func (t PaymentMethod) IsValid() bool {
	switch t {
	case PaymentMethodCash, PaymentMethodTransfer:
		return true
	}
	return false
}

// StockRefType classifies what caused a stock movement.
type StockRefType string

const (
	StockRefTypeOpening    StockRefType = "OPENING"
	StockRefTypePurchase   StockRefType = "PURCHASE"
	StockRefTypeSale       StockRefType = "SALE"
	StockRefTypeReturn     StockRefType = "RETURN"
	StockRefTypeAdjustment StockRefType = "ADJUSTMENT"
)

func (t StockRefType) IsValid() bool {
	switch t {
	case StockRefTypeOpening, StockRefTypePurchase, StockRefTypeSale,
		StockRefTypeReturn, StockRefTypeAdjustment:
		return true
	}
	return false
}

type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeAmount  DiscountType = "amount"
)

type SlipStatus string

const (
	SlipStatusPending  SlipStatus = "Pending"
	SlipStatusApproved SlipStatus = "Approved"
	SlipStatusRejected SlipStatus = "Rejected"
)

// EntityType names an entity a custom field definition can attach to.
type EntityType string

const (
	EntityTypeProduct       EntityType = "PRODUCT"
	EntityTypeCustomer      EntityType = "CUSTOMER"
	EntityTypeSaleOrder     EntityType = "SALE_ORDER"
	EntityTypeSaleOrderItem EntityType = "SALE_ORDER_ITEM"
)

func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeProduct, EntityTypeCustomer, EntityTypeSaleOrder, EntityTypeSaleOrderItem:
		return true
	}
	return false
}

// FieldType is the closed set of custom field kinds. Validation dispatches on
// it exhaustively; adding a kind means adding a case.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeNumber      FieldType = "number"
	FieldTypeDecimal     FieldType = "decimal"
	FieldTypeInteger     FieldType = "integer"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeDate        FieldType = "date"
	FieldTypeDatetime    FieldType = "datetime"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiselect FieldType = "multiselect"
	FieldTypeEmail       FieldType = "email"
	FieldTypeURL         FieldType = "url"
	FieldTypePhone       FieldType = "phone"
)

func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeTextarea, FieldTypeNumber, FieldTypeDecimal,
		FieldTypeInteger, FieldTypeBoolean, FieldTypeDate, FieldTypeDatetime,
		FieldTypeSelect, FieldTypeMultiselect, FieldTypeEmail, FieldTypeURL,
		FieldTypePhone:
		return true
	}
	return false
}

// StringList stores a list of strings as a JSON column.
type StringList []string

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return errors.New(fmt.Sprint("failed to unmarshal JSON value:", value))
}

// JSONMap stores a free-form attribute bag as a JSON column.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New(fmt.Sprint("failed to unmarshal JSON value:", value))
}
