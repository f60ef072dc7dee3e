package models

// ColumnType enumerates the storage types the local store understands.
type ColumnType string

const (
	ColText      ColumnType = "text"
	ColReal      ColumnType = "real"
	ColInteger   ColumnType = "integer"
	ColTimestamp ColumnType = "timestamp"
)

// Column maps one domain field to its local store column.
type Column struct {
	// Field is the key used in [Record.Fields] and on the wire.
	Field string
	// Name is the column name in the local store.
	Name string
	// Type is the declared storage type.
	Type ColumnType
}

// ForeignKey declares that a field holds the LocalID of a record in another
// table. During push the engine rewrites it to the referent's CloudID, during
// pull back to the LocalID.
type ForeignKey struct {
	Field    string
	RefTable string
	// Optional foreign keys may be empty; required ones defer the record's
	// push until the referent has a CloudID.
	Optional bool
}

// TableSchema is the explicit field-to-column mapping for one synced table.
// Sync metadata columns (local_id, cloud_id, created_at, updated_at,
// deleted_at, dirty, sync_error) are implicit on every table.
type TableSchema struct {
	Name    string
	Columns []Column
	Refs    []ForeignKey
}

// Ref returns the foreign key declared for field, if any.
func (s TableSchema) Ref(field string) (ForeignKey, bool) {
	for _, fk := range s.Refs {
		if fk.Field == field {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// Table names of the synced entity set.
const (
	TableCategories = "categories"
	TableRoles      = "roles"
	TablePartners   = "partners"
	TableStockItems = "stock_items"
	TablePurchases  = "purchases"
	TableInvoices   = "invoices"
	TableCharges    = "charges"
)

// Tables lists every synced table in dependency order: referents before
// dependents. Both pull and push walk this slice front to back so that
// foreign keys can always be remapped.
var Tables = []TableSchema{
	{
		Name: TableCategories,
		Columns: []Column{
			{Field: "name", Name: "name", Type: ColText},
		},
	},
	{
		Name: TableRoles,
		Columns: []Column{
			{Field: "name", Name: "name", Type: ColText},
		},
	},
	{
		Name: TablePartners,
		Columns: []Column{
			{Field: "name", Name: "name", Type: ColText},
			{Field: "phone", Name: "phone", Type: ColText},
			{Field: "address", Name: "address", Type: ColText},
			{Field: "opening_balance", Name: "opening_balance", Type: ColReal},
			{Field: "role", Name: "role", Type: ColText},
		},
	},
	{
		Name: TableStockItems,
		Columns: []Column{
			{Field: "name", Name: "name", Type: ColText},
			{Field: "category_local_id", Name: "category_local_id", Type: ColText},
			{Field: "unit", Name: "unit", Type: ColText},
			{Field: "quantity", Name: "quantity", Type: ColReal},
			{Field: "rate", Name: "rate", Type: ColReal},
		},
		Refs: []ForeignKey{
			{Field: "category_local_id", RefTable: TableCategories, Optional: true},
		},
	},
	{
		Name: TablePurchases,
		Columns: []Column{
			{Field: "partner_local_id", Name: "partner_local_id", Type: ColText},
			{Field: "stock_item_local_id", Name: "stock_item_local_id", Type: ColText},
			{Field: "quantity", Name: "quantity", Type: ColReal},
			{Field: "rate", Name: "rate", Type: ColReal},
			{Field: "amount", Name: "amount", Type: ColReal},
			{Field: "purchased_on", Name: "purchased_on", Type: ColTimestamp},
			{Field: "notes", Name: "notes", Type: ColText},
		},
		Refs: []ForeignKey{
			{Field: "partner_local_id", RefTable: TablePartners},
			{Field: "stock_item_local_id", RefTable: TableStockItems},
		},
	},
	{
		Name: TableInvoices,
		Columns: []Column{
			{Field: "partner_local_id", Name: "partner_local_id", Type: ColText},
			{Field: "invoice_no", Name: "invoice_no", Type: ColText},
			{Field: "total", Name: "total", Type: ColReal},
			{Field: "issued_on", Name: "issued_on", Type: ColTimestamp},
			{Field: "status", Name: "status", Type: ColText},
		},
		Refs: []ForeignKey{
			{Field: "partner_local_id", RefTable: TablePartners},
		},
	},
	{
		Name: TableCharges,
		Columns: []Column{
			{Field: "partner_local_id", Name: "partner_local_id", Type: ColText},
			{Field: "invoice_local_id", Name: "invoice_local_id", Type: ColText},
			{Field: "label", Name: "label", Type: ColText},
			{Field: "amount", Name: "amount", Type: ColReal},
			{Field: "charged_on", Name: "charged_on", Type: ColTimestamp},
		},
		Refs: []ForeignKey{
			{Field: "partner_local_id", RefTable: TablePartners},
			{Field: "invoice_local_id", RefTable: TableInvoices, Optional: true},
		},
	},
}

// SchemaFor returns the schema registered for table.
func SchemaFor(table string) (TableSchema, bool) {
	for _, s := range Tables {
		if s.Name == table {
			return s, true
		}
	}
	return TableSchema{}, false
}
