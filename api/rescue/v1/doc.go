// Package rescuev1 defines the rescue.v1.QueueService gRPC API: request and
// response messages, the service descriptor and a client stub.
//
// Messages are plain structs encoded in protobuf wire format through
// protowire, so a rescue.v1 .proto with the same field numbers decodes them.
// The codec is registered under the "rescue-proto" content-subtype, forced on
// the client by DialOptions and picked up by the server from the request.
package rescuev1
