// Package presenter defines how coordinators talk back to whatever front end drives them.
package presenter

import (
	"fmt"
	"io"
	"sync"
)

// Variant styles a notification.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a transient message shown to the user.
type Notification struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier shows notifications.
type Notifier interface {
	Notify(n Notification)
}

// View is a navigation target.
type View string

const (
	ViewAuth            View = "/auth"
	ViewDashboard       View = "/dashboard"
	ViewProfile         View = "/profile"
	ViewCompleteProfile View = "/complete-profile"
	ViewPricing         View = "/pricing"
)

// Navigator moves the front end to a view.
type Navigator interface {
	Navigate(v View)
}

// Info builds a default notification.
func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDefault}
}

// Failure builds a destructive notification.
func Failure(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDestructive}
}

// Console prints notifications and navigation to a writer.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console on w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	marker := "✔"
	if n.Variant == VariantDestructive {
		marker = "✖"
	}
	if n.Description == "" {
		fmt.Fprintf(c.w, "%s %s\n", marker, n.Title)
		return
	}
	fmt.Fprintf(c.w, "%s %s: %s\n", marker, n.Title, n.Description)
}

func (c *Console) Navigate(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hint, ok := nextSteps[v]; ok {
		fmt.Fprintf(c.w, "→ %s\n", hint)
	}
}

var nextSteps = map[View]string{
	ViewAuth:            "Sign in with: cookify login",
	ViewDashboard:       "Find recipes with: cookify search -i <ingredients>",
	ViewProfile:         "Review your account with: cookify whoami",
	ViewCompleteProfile: "Finish onboarding with: cookify complete-profile",
	ViewPricing:         "Pick a plan with: cookify upgrade -plan free|pro",
}

// Recorder keeps everything it receives. Used by tests.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
	views         []View
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *Recorder) Navigate(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

// Notifications returns a copy of the received notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Views returns a copy of the navigation history.
func (r *Recorder) Views() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.views...)
}

// LastView returns the latest navigation target, or "".
func (r *Recorder) LastView() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return ""
	}
	return r.views[len(r.views)-1]
}

// Last returns the latest notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}
