package enums

// WebhookEventType labels the inbound supplier push notifications.
type WebhookEventType string

const (
	WebhookEventProduct WebhookEventType = "PRODUCT"
	WebhookEventVariant WebhookEventType = "VARIANT"
	WebhookEventStock   WebhookEventType = "STOCK"
)

var validWebhookEventTypes = []WebhookEventType{
	WebhookEventProduct,
	WebhookEventVariant,
	WebhookEventStock,
}

// String implements fmt.Stringer.
func (t WebhookEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known WebhookEventType.
func (t WebhookEventType) IsValid() bool {
	for _, candidate := range validWebhookEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}
