package model

// Category is one of the six fixed mail categories. The set is closed:
// anything the oracle returns outside it collapses to CategoryOther.
type Category string

const (
	CategoryNewInvoice        Category = "new_invoice"
	CategorySupplierStatement Category = "supplier_statement"
	CategoryRequestForStatus  Category = "request_for_status"
	CategoryAccountUpdate     Category = "account_update"
	CategoryMiscSpam          Category = "misc_spam"
	CategoryOther             Category = "other"
)

// AllCategories returns the closed category set.
func AllCategories() []Category {
	return []Category{
		CategoryNewInvoice,
		CategorySupplierStatement,
		CategoryRequestForStatus,
		CategoryAccountUpdate,
		CategoryMiscSpam,
		CategoryOther,
	}
}

// ValidCategory reports whether c is one of the six fixed categories.
func ValidCategory(c Category) bool {
	for _, v := range AllCategories() {
		if v == c {
			return true
		}
	}
	return false
}

// Classification is the oracle's categorization of a single message.
type Classification struct {
	Category       Category `json:"category"`
	Reason         string   `json:"reason"`
	HasInvoice     bool     `json:"has_invoice"`
	InvoiceNumbers []string `json:"invoice_numbers"`
}

// MailboxLabel maps a category to the mailbox label tag applied to the
// source message. The table is fixed; unknown categories fall back to the
// same label as CategoryOther.
func MailboxLabel(c Category) string {
	switch c {
	case CategoryNewInvoice:
		return "Green category"
	case CategorySupplierStatement:
		return "Blue category"
	case CategoryRequestForStatus:
		return "Yellow category"
	case CategoryAccountUpdate:
		return "Orange category"
	case CategoryMiscSpam:
		return "Red category"
	default:
		return "Purple category"
	}
}
