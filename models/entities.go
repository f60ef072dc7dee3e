package models

import "time"

// Typed views over the generic [Record] envelope. The UI layer works with
// these structs; the engine never does. Conversions go through the schema
// field names, nothing is annotated on the structs themselves.

// Partner is a trading counterparty. Role discriminates farmers, suppliers
// and buyers; legacy "farmer" rows were folded into this entity during the
// partners migration.
type Partner struct {
	Meta           SyncMeta
	Name           string
	Phone          string
	Address        string
	OpeningBalance float64
	Role           string
}

func (p Partner) Record() Record {
	return Record{Meta: p.Meta, Fields: map[string]any{
		"name":            p.Name,
		"phone":           p.Phone,
		"address":         p.Address,
		"opening_balance": p.OpeningBalance,
		"role":            p.Role,
	}}
}

func PartnerFromRecord(r Record) Partner {
	return Partner{
		Meta:           r.Meta,
		Name:           r.StringField("name"),
		Phone:          r.StringField("phone"),
		Address:        r.StringField("address"),
		OpeningBalance: r.FloatField("opening_balance"),
		Role:           r.StringField("role"),
	}
}

// Category groups stock items.
type Category struct {
	Meta SyncMeta
	Name string
}

func (c Category) Record() Record {
	return Record{Meta: c.Meta, Fields: map[string]any{"name": c.Name}}
}

func CategoryFromRecord(r Record) Category {
	return Category{Meta: r.Meta, Name: r.StringField("name")}
}

// Role is a partner role definition maintained by the admin dashboard.
type Role struct {
	Meta SyncMeta
	Name string
}

func (ro Role) Record() Record {
	return Record{Meta: ro.Meta, Fields: map[string]any{"name": ro.Name}}
}

func RoleFromRecord(r Record) Role {
	return Role{Meta: r.Meta, Name: r.StringField("name")}
}

// StockItem is a tradable good kept in stock.
type StockItem struct {
	Meta            SyncMeta
	Name            string
	CategoryLocalID string
	Unit            string
	Quantity        float64
	Rate            float64
}

func (s StockItem) Record() Record {
	return Record{Meta: s.Meta, Fields: map[string]any{
		"name":              s.Name,
		"category_local_id": s.CategoryLocalID,
		"unit":              s.Unit,
		"quantity":          s.Quantity,
		"rate":              s.Rate,
	}}
}

func StockItemFromRecord(r Record) StockItem {
	return StockItem{
		Meta:            r.Meta,
		Name:            r.StringField("name"),
		CategoryLocalID: r.StringField("category_local_id"),
		Unit:            r.StringField("unit"),
		Quantity:        r.FloatField("quantity"),
		Rate:            r.FloatField("rate"),
	}
}

// Purchase records goods bought from a partner.
type Purchase struct {
	Meta             SyncMeta
	PartnerLocalID   string
	StockItemLocalID string
	Quantity         float64
	Rate             float64
	Amount           float64
	PurchasedOn      time.Time
	Notes            string
}

func (p Purchase) Record() Record {
	return Record{Meta: p.Meta, Fields: map[string]any{
		"partner_local_id":    p.PartnerLocalID,
		"stock_item_local_id": p.StockItemLocalID,
		"quantity":            p.Quantity,
		"rate":                p.Rate,
		"amount":              p.Amount,
		"purchased_on":        p.PurchasedOn,
		"notes":               p.Notes,
	}}
}

func PurchaseFromRecord(r Record) Purchase {
	return Purchase{
		Meta:             r.Meta,
		PartnerLocalID:   r.StringField("partner_local_id"),
		StockItemLocalID: r.StringField("stock_item_local_id"),
		Quantity:         r.FloatField("quantity"),
		Rate:             r.FloatField("rate"),
		Amount:           r.FloatField("amount"),
		PurchasedOn:      r.TimeField("purchased_on"),
		Notes:            r.StringField("notes"),
	}
}

// Invoice is a billing document issued to a partner.
type Invoice struct {
	Meta           SyncMeta
	PartnerLocalID string
	InvoiceNo      string
	Total          float64
	IssuedOn       time.Time
	Status         string
}

func (i Invoice) Record() Record {
	return Record{Meta: i.Meta, Fields: map[string]any{
		"partner_local_id": i.PartnerLocalID,
		"invoice_no":       i.InvoiceNo,
		"total":            i.Total,
		"issued_on":        i.IssuedOn,
		"status":           i.Status,
	}}
}

func InvoiceFromRecord(r Record) Invoice {
	return Invoice{
		Meta:           r.Meta,
		PartnerLocalID: r.StringField("partner_local_id"),
		InvoiceNo:      r.StringField("invoice_no"),
		Total:          r.FloatField("total"),
		IssuedOn:       r.TimeField("issued_on"),
		Status:         r.StringField("status"),
	}
}

// Charge is a fee or adjustment applied to a partner, optionally tied to an
// invoice.
type Charge struct {
	Meta           SyncMeta
	PartnerLocalID string
	InvoiceLocalID string
	Label          string
	Amount         float64
	ChargedOn      time.Time
}

func (c Charge) Record() Record {
	return Record{Meta: c.Meta, Fields: map[string]any{
		"partner_local_id": c.PartnerLocalID,
		"invoice_local_id": c.InvoiceLocalID,
		"label":            c.Label,
		"amount":           c.Amount,
		"charged_on":       c.ChargedOn,
	}}
}

func ChargeFromRecord(r Record) Charge {
	return Charge{
		Meta:           r.Meta,
		PartnerLocalID: r.StringField("partner_local_id"),
		InvoiceLocalID: r.StringField("invoice_local_id"),
		Label:          r.StringField("label"),
		Amount:         r.FloatField("amount"),
		ChargedOn:      r.TimeField("charged_on"),
	}
}

// StringField returns the named field as a string, empty when absent or of
// another type.
func (r Record) StringField(field string) string {
	v, _ := r.Fields[field].(string)
	return v
}

// FloatField returns the named field as a float64, tolerating integer values
// produced by JSON decoding or the database driver.
func (r Record) FloatField(field string) float64 {
	switch v := r.Fields[field].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// TimeField returns the named field as a time.Time, zero when absent.
func (r Record) TimeField(field string) time.Time {
	v, _ := r.Fields[field].(time.Time)
	return v
}
