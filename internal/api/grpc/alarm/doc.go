// Package alarm implements the gRPC transport for the alarm engine.
//
// The service is declared by hand with a grpc.ServiceDesc and carries
// google.protobuf.Struct messages, so no generated code is needed. Alarm
// payloads use the same field-tagged record schema the store persists.
package alarm
