// Package notify posts user-visible alarm notifications.
//
// LogNotifier writes a structured log record; DesktopNotifier shells out to
// the notification tool that ships with the operating system.
package notify
