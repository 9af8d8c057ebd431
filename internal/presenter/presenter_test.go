package presenter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Notify(Info("Signed in successfully!", ""))
	c.Notify(Failure("Upgrade Failed", "Could not process upgrade. Please try again."))
	c.Navigate(ViewAuth)

	assert.Equal(t,
		"✔ Signed in successfully!\n"+
			"✖ Upgrade Failed: Could not process upgrade. Please try again.\n"+
			"→ Sign in with: cookify login\n",
		buf.String())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	_, ok := r.Last()
	assert.False(t, ok)
	assert.Equal(t, View(""), r.LastView())

	r.Notify(Info("a", "b"))
	r.Navigate(ViewDashboard)

	n, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, VariantDefault, n.Variant)
	assert.Equal(t, ViewDashboard, r.LastView())
	assert.Len(t, r.Views(), 1)
}
