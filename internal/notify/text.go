package notify

// NotificationTitle returns the push notification title for an order status.
func NotificationTitle(status string) string {
	switch status {
	case "accepted":
		return "Ordine confermato! 🎉"
	case "preparing":
		return "Ordine in preparazione! 👨‍🍳"
	case "ready_to_pickup":
		return "Ordine pronto! 🍕"
	case "delivering":
		return "Ordine in consegna! 🚚"
	case "delivered", "completed":
		return "Ordine consegnato! ✅"
	case "cancelled", "failed":
		return "Ordine annullato ❌"
	default:
		return "Aggiornamento ordine"
	}
}

// NotificationBody returns the push notification body for an order status.
// orderNumber is the customer-facing order number derived from the order id.
func NotificationBody(status, orderNumber string) string {
	switch status {
	case "accepted":
		return "Il tuo ordine #" + orderNumber + " è stato confermato e verrà preparato presto."
	case "preparing":
		return "Il tuo ordine #" + orderNumber + " è in preparazione."
	case "ready_to_pickup":
		return "Il tuo ordine #" + orderNumber + " è pronto per il ritiro!"
	case "delivering":
		return "Il tuo ordine #" + orderNumber + " è in consegna."
	case "delivered", "completed":
		return "Il tuo ordine #" + orderNumber + " è stato consegnato. Buon appetito!"
	case "cancelled", "failed":
		return "Il tuo ordine #" + orderNumber + " è stato annullato."
	default:
		return "Il tuo ordine #" + orderNumber + " ha un nuovo stato."
	}
}

// SMS bodies for the two transitions that trigger a text message.
func PickupReadySMS(orderNumber string) string {
	return "Il tuo ordine #" + orderNumber + " è pronto per il ritiro in sede"
}

func DeliveringSMS(orderNumber string) string {
	return "Il tuo ordine #" + orderNumber + " è in consegna, aspetta una chiamata dal fattorino"
}
