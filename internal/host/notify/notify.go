package notify

import (
	"context"
	"errors"
)

// Channel is the platform channel configuration notifications are posted to.
type Channel struct {
	// ID identifies the channel.
	ID string
	// Name is the human-readable channel name.
	Name string
	// Description explains the channel to the user.
	Description string
}

// Message is a single notification.
type Message struct {
	// ID identifies the notification; posting the same ID again replaces it.
	ID int
	// Title is the headline.
	Title string
	// Body is the message text.
	Body string
	// SoundPath is an optional local sound file to play with the notification.
	SoundPath string
}

// Notifier is the host notification service.
type Notifier interface {
	// Initialize prepares the channel. It is called once before Show.
	Initialize(ctx context.Context, channel Channel) error
	// Show posts the message to the channel.
	Show(ctx context.Context, msg Message, channel Channel) error
}

var (
	// ErrNotInitialized is returned by Show before Initialize.
	ErrNotInitialized = errors.New("notifier is not initialized")
	// ErrUnsupportedOS indicates the current OS has no supported notification tool.
	ErrUnsupportedOS = errors.New("unsupported operating system")
)
