// Package notifier turns fired alarms into user-visible notifications and
// fans events out to every connected foreground client.
package notifier
