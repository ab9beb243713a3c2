// Package alarm implements the gRPC transport for the task alarm service.
//
// Commands and events travel as google.protobuf.Struct messages whose fields
// mirror the JSON wire shapes of the domain package. The service descriptor is
// declared by hand in service.go so no generated code is required.
package alarm
