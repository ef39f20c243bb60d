package posting

import (
	"fmt"
	"strconv"
	"strings"

	"udhaar/backend/internal/domain"
	"udhaar/backend/internal/store"
)

const invoicePrefix = "INV-"

func FormatInvoiceNumber(day string, n int) string {
	return fmt.Sprintf("%s%s-%04d", invoicePrefix, day, n)
}

func ParseInvoiceSequence(invoice string) (int, bool) {
	idx := strings.LastIndex(invoice, "-")
	if !strings.HasPrefix(invoice, invoicePrefix) || idx < len(invoicePrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(invoice[idx+1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// NextInvoice advances the org-day counter and returns it with the invoice
// number it issues. When no counter exists yet for the day the count
// continues from latest, the most recent sale issued that day, if any.
func NextInvoice(orgID string, day string, counter *domain.InvoiceCounter, latest *domain.Sale) (domain.InvoiceCounter, string) {
	next := domain.InvoiceCounter{ID: store.InvoiceCounterID(orgID, day), OrgID: orgID, Day: day}
	if counter != nil {
		next = *counter
	} else if latest != nil && strings.HasPrefix(latest.InvoiceNumber, invoicePrefix+day+"-") {
		if n, ok := ParseInvoiceSequence(latest.InvoiceNumber); ok {
			next.LastNumber = n
		}
	}
	next.LastNumber++
	return next, FormatInvoiceNumber(day, next.LastNumber)
}
