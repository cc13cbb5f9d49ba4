package notify

import (
	"fmt"

	"github.com/dmarquez/pcitrack/internal/model"
)

// documentMessage builds the subject and body for a document event. Transport
// level formatting stays out of here; channels receive plain strings.
func documentMessage(doc *model.Document, kind model.NotificationKind, daysRemaining int) (subject, body string) {
	expires := doc.ExpirationDate.Format("2006-01-02")
	switch kind {
	case model.KindExpiration:
		if daysRemaining <= 0 {
			subject = fmt.Sprintf("Alert: PCI document for %s has expired", doc.MerchantName)
			body = fmt.Sprintf(
				"The %s document for %s expired on %s.\nPlease contact the merchant to request an updated document.",
				doc.DocumentType, doc.MerchantName, expires)
			return subject, body
		}
		subject = fmt.Sprintf("Alert: PCI document for %s expires in %d days", doc.MerchantName, daysRemaining)
		body = fmt.Sprintf(
			"The %s document for %s expires on %s (%d days remaining).\nPlease contact the merchant to request an updated document before it expires.",
			doc.DocumentType, doc.MerchantName, expires, daysRemaining)
	case model.KindUpdate:
		subject = fmt.Sprintf("PCI document updated: %s", doc.MerchantName)
		body = fmt.Sprintf("The %s document for %s has been updated. Current status: %s.",
			doc.DocumentType, doc.MerchantName, doc.Status)
	default:
		subject = fmt.Sprintf("PCI document notification: %s", doc.MerchantName)
		body = fmt.Sprintf("Notification for the %s document of %s.", doc.DocumentType, doc.MerchantName)
	}
	return subject, body
}
