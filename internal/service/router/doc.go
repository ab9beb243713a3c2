// Package router validates inbound commands and maps them onto alarm
// operations. Every command produces at most one reply event: ACK for applied
// mutations, ALARM_STATUS for status queries, ERROR for rejected or failed
// commands, and nothing for unknown command types.
package router
