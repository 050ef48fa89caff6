package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotificationTitle(t *testing.T) {
	cases := map[string]string{
		"accepted":        "Ordine confermato! 🎉",
		"preparing":       "Ordine in preparazione! 👨‍🍳",
		"ready_to_pickup": "Ordine pronto! 🍕",
		"delivering":      "Ordine in consegna! 🚚",
		"delivered":       "Ordine consegnato! ✅",
		"completed":       "Ordine consegnato! ✅",
		"cancelled":       "Ordine annullato ❌",
		"failed":          "Ordine annullato ❌",
		"something_else":  "Aggiornamento ordine",
	}
	for status, want := range cases {
		assert.Equal(t, want, NotificationTitle(status), "status %q", status)
	}
}

func TestNotificationBody(t *testing.T) {
	cases := map[string]string{
		"accepted":        "Il tuo ordine #A1B2C3D4 è stato confermato e verrà preparato presto.",
		"preparing":       "Il tuo ordine #A1B2C3D4 è in preparazione.",
		"ready_to_pickup": "Il tuo ordine #A1B2C3D4 è pronto per il ritiro!",
		"delivering":      "Il tuo ordine #A1B2C3D4 è in consegna.",
		"delivered":       "Il tuo ordine #A1B2C3D4 è stato consegnato. Buon appetito!",
		"completed":       "Il tuo ordine #A1B2C3D4 è stato consegnato. Buon appetito!",
		"cancelled":       "Il tuo ordine #A1B2C3D4 è stato annullato.",
		"failed":          "Il tuo ordine #A1B2C3D4 è stato annullato.",
		"something_else":  "Il tuo ordine #A1B2C3D4 ha un nuovo stato.",
	}
	for status, want := range cases {
		assert.Equal(t, want, NotificationBody(status, "A1B2C3D4"), "status %q", status)
	}
}

func TestSMSBodies(t *testing.T) {
	assert.Equal(t,
		"Il tuo ordine #a1b2c3d4 è pronto per il ritiro in sede",
		PickupReadySMS("a1b2c3d4"))
	assert.Equal(t,
		"Il tuo ordine #a1b2c3d4 è in consegna, aspetta una chiamata dal fattorino",
		DeliveringSMS("a1b2c3d4"))
}
