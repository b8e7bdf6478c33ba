package rescuev1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

func TestWireBytes(t *testing.T) {
	b, err := Codec{}.Marshal(&InsertRequest{Namespace: "ns", Candidate: "ab"})
	require.NoError(t, err)
	require.Equal(t, []byte{0x0a, 2, 'n', 's', 0x12, 2, 'a', 'b'}, b)

	// proto3 int32 -1 is a ten byte varint
	b, err = Codec{}.Marshal(&InsertResponse{Code: -1})
	require.NoError(t, err)
	require.Equal(t, []byte{0x08, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, b)

	b, err = Codec{}.Marshal(&PollResponse{})
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		in, out any
	}{
		{&InsertRequest{Namespace: "default", Candidate: "Hi wo!"}, new(InsertRequest)},
		{&InsertResponse{Code: -1, Result: "already_known"}, new(InsertResponse)},
		{&PollRequest{Namespace: "x", Hint: "worker-1"}, new(PollRequest)},
		{&PollResponse{Found: true, Candidate: "Hi.RL!"}, new(PollResponse)},
		{&ReturnRequest{Namespace: "x", Candidate: "c", Succeeded: true}, new(ReturnRequest)},
		{&ReturnResponse{Code: -1, Result: "lease_not_found"}, new(ReturnResponse)},
		{&SolvedRequest{Namespace: "x"}, new(SolvedRequest)},
		{&SolvedResponse{Solved: true}, new(SolvedResponse)},
		{&WinnersRequest{Namespace: "x"}, new(WinnersRequest)},
		{&WinnersResponse{Candidates: []string{"a", "", "b"}}, new(WinnersResponse)},
		{&StatsRequest{Namespace: "x"}, new(StatsRequest)},
		{&StatsResponse{Candidates: 5, Pending: 1, Leased: 1, Succeeded: 1, Failed: 2}, new(StatsResponse)},
	}
	for _, c := range cases {
		b, err := Codec{}.Marshal(c.in)
		require.NoError(t, err)
		require.NoError(t, Codec{}.Unmarshal(b, c.out))
		require.Equal(t, c.in, c.out)
	}
}

func TestUnmarshalResetsAndSkipsUnknown(t *testing.T) {
	b := protowire.AppendTag(nil, 9, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 42)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, "cand")

	m := &InsertRequest{Namespace: "stale"}
	require.NoError(t, Codec{}.Unmarshal(b, m))
	require.Equal(t, &InsertRequest{Candidate: "cand"}, m)
}

func TestUnmarshalErrors(t *testing.T) {
	wrongType := protowire.AppendTag(nil, 1, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 1)
	require.Error(t, Codec{}.Unmarshal(wrongType, new(InsertRequest)))

	truncated := []byte{0x0a, 5, 'a'}
	require.Error(t, Codec{}.Unmarshal(truncated, new(InsertRequest)))

	_, err := Codec{}.Marshal(struct{}{})
	require.Error(t, err)
	require.Error(t, Codec{}.Unmarshal(nil, &struct{}{}))
}

func TestProtoMessagesPassThrough(t *testing.T) {
	in := &healthpb.HealthCheckRequest{Service: ServiceName}
	b, err := Codec{}.Marshal(in)
	require.NoError(t, err)
	want, err := proto.Marshal(in)
	require.NoError(t, err)
	require.True(t, bytes.Equal(want, b))

	out := new(healthpb.HealthCheckRequest)
	require.NoError(t, Codec{}.Unmarshal(b, out))
	require.Equal(t, ServiceName, out.GetService())
}
